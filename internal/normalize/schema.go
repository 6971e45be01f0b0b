package normalize

import "zkcred/internal/domain"

// Schema is a versioned, ordered list of required credential attributes.
type Schema struct {
	Version string
	Fields  []domain.AttributeField
}

// Field returns the slot and definition of name.
func (s Schema) Field(name string) (int, domain.AttributeField, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, f, true
		}
	}
	return -1, domain.AttributeField{}, false
}

const IdentityV1 = "identity/v1"

// IdentitySchema is the built-in identity credential layout.
var IdentitySchema = Schema{
	Version: IdentityV1,
	Fields: []domain.AttributeField{
		{Name: "name", Type: domain.AttributeString},
		{Name: "birthYear", Type: domain.AttributeInteger},
		{Name: "income", Type: domain.AttributeInteger},
		{Name: "nationality", Type: domain.AttributeString},
	},
}
