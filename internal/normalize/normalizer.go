package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"zkcred/internal/domain"
	"zkcred/internal/zk"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
)

// Normalizer turns credentials into fixed-width attribute vectors. Schema
// fields occupy the leading slots in schema order; remaining attributes follow
// sorted by key and are encoded together with their key.
type Normalizer struct {
	schemas map[string]Schema
	width   int
	enc     cbor.EncMode
}

// New builds a normalizer for schemas, defaulting to IdentitySchema.
func New(schemas ...Schema) (*Normalizer, error) {
	if len(schemas) == 0 {
		schemas = []Schema{IdentitySchema}
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	n := &Normalizer{
		schemas: make(map[string]Schema, len(schemas)),
		width:   zk.Width,
		enc:     enc,
	}
	for _, s := range schemas {
		if s.Version == "" {
			return nil, fmt.Errorf("%w: schema version is required", domain.ErrUnsupportedSchema)
		}
		if len(s.Fields) > n.width {
			return nil, fmt.Errorf("%w: schema %s has %d fields, circuit width is %d", domain.ErrUnsupportedSchema, s.Version, len(s.Fields), n.width)
		}
		n.schemas[s.Version] = s
	}
	return n, nil
}

func (n *Normalizer) Schema(version string) (Schema, bool) {
	s, ok := n.schemas[version]
	return s, ok
}

func (n *Normalizer) Normalize(cred domain.VerifiableCredential, schemaVersion string) (domain.AttributeVector, error) {
	schema, ok := n.schemas[schemaVersion]
	if !ok {
		return domain.AttributeVector{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedSchema, schemaVersion)
	}
	if cred.ID == "" {
		return domain.AttributeVector{}, fmt.Errorf("%w: credential id", domain.ErrMissingField)
	}

	extras := make([]string, 0, len(cred.Attributes))
	for key := range cred.Attributes {
		if _, _, known := schema.Field(key); !known {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	if used := len(schema.Fields) + len(extras); used > n.width {
		return domain.AttributeVector{}, fmt.Errorf("%w: %d attributes exceed %d slots", domain.ErrUnsupportedSchema, used, n.width)
	}

	out := domain.AttributeVector{
		SchemaVersion: schemaVersion,
		CredentialTag: zk.ToDomain(zk.CredentialTag(cred.ID)),
		Keys:          make([]string, n.width),
		Values:        make([]domain.FieldElement, n.width),
	}
	for i, field := range schema.Fields {
		value, ok := cred.Attributes[field.Name]
		if !ok || value == nil {
			return domain.AttributeVector{}, fmt.Errorf("%w: %s", domain.ErrMissingField, field.Name)
		}
		e, err := EncodeValue(field.Type, value)
		if err != nil {
			return domain.AttributeVector{}, fmt.Errorf("attribute %s: %w", field.Name, err)
		}
		out.Keys[i] = field.Name
		out.Values[i] = zk.ToDomain(e)
	}
	for j, key := range extras {
		e, err := n.encodeExtra(key, cred.Attributes[key])
		if err != nil {
			return domain.AttributeVector{}, fmt.Errorf("attribute %s: %w", key, err)
		}
		slot := len(schema.Fields) + j
		out.Keys[slot] = key
		out.Values[slot] = zk.ToDomain(e)
	}

	layout := make([]string, 0, len(schema.Fields)+len(extras)+1)
	layout = append(layout, schemaVersion)
	for _, key := range out.Keys {
		if key != "" {
			layout = append(layout, key)
		}
	}
	out.Layout = zk.ToDomain(zk.HashStrings(zk.TagLayout, layout...))
	return out, nil
}

// EncodeDisclosed re-derives the slot encoding of a plaintext attribute, as a
// verifier does when checking disclosed values against public signals.
func (n *Normalizer) EncodeDisclosed(schemaVersion string, slot int, key string, value any) (fr.Element, error) {
	schema, ok := n.schemas[schemaVersion]
	if !ok {
		return fr.Element{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedSchema, schemaVersion)
	}
	if slot < 0 || slot >= n.width {
		return fr.Element{}, fmt.Errorf("%w: slot %d out of range", domain.ErrSchemaMismatch, slot)
	}
	if slot < len(schema.Fields) {
		field := schema.Fields[slot]
		if field.Name != key {
			return fr.Element{}, fmt.Errorf("%w: slot %d holds %s, not %s", domain.ErrSchemaMismatch, slot, field.Name, key)
		}
		return EncodeValue(field.Type, value)
	}
	if _, _, known := schema.Field(key); known {
		return fr.Element{}, fmt.Errorf("%w: %s is a schema field", domain.ErrSchemaMismatch, key)
	}
	return n.encodeExtra(key, value)
}

// PredicateSlots resolves a predicate spec to circuit slot positions.
func (n *Normalizer) PredicateSlots(spec domain.PredicateSpec) (zk.Predicate, error) {
	schema, ok := n.schemas[spec.SchemaVersion]
	if !ok {
		return zk.Predicate{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedSchema, spec.SchemaVersion)
	}
	subject, field, ok := schema.Field(spec.Subject)
	if !ok {
		return zk.Predicate{}, fmt.Errorf("%w: subject %s is not a %s field", domain.ErrInvalidDescriptor, spec.Subject, spec.SchemaVersion)
	}
	if spec.Kind.NumericSubject() && field.Type != domain.AttributeInteger {
		return zk.Predicate{}, fmt.Errorf("%w: %s predicates need an integer subject", domain.ErrInvalidDescriptor, spec.Kind)
	}
	p := zk.Predicate{Kind: spec.Kind, Subject: subject}
	for _, key := range spec.AlwaysPrivate() {
		slot, _, ok := schema.Field(key)
		if !ok {
			return zk.Predicate{}, fmt.Errorf("%w: private attribute %s is not a %s field", domain.ErrInvalidDescriptor, key, spec.SchemaVersion)
		}
		p.Private[slot] = true
	}
	return p, p.Validate()
}

// EncodeValue encodes a schema-typed attribute value.
func EncodeValue(t domain.AttributeType, value any) (fr.Element, error) {
	switch t {
	case domain.AttributeInteger:
		v, err := toInt64(value)
		if err != nil {
			return fr.Element{}, err
		}
		if v < 0 {
			return fr.Element{}, fmt.Errorf("%w: negative integers are not supported", domain.ErrUnsupportedSchema)
		}
		return zk.FromInt64(v), nil
	case domain.AttributeBoolean:
		b, ok := value.(bool)
		if !ok {
			return fr.Element{}, fmt.Errorf("%w: expected boolean, got %T", domain.ErrUnsupportedSchema, value)
		}
		if b {
			return zk.FromInt64(1), nil
		}
		return zk.FromInt64(0), nil
	case domain.AttributeString:
		s, ok := value.(string)
		if !ok {
			return fr.Element{}, fmt.Errorf("%w: expected string, got %T", domain.ErrUnsupportedSchema, value)
		}
		return zk.HashToField(zk.TagAttribute, []byte(t), []byte(s)), nil
	case domain.AttributeBytes:
		var raw []byte
		switch v := value.(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			return fr.Element{}, fmt.Errorf("%w: expected bytes, got %T", domain.ErrUnsupportedSchema, value)
		}
		return zk.HashToField(zk.TagAttribute, []byte(t), raw), nil
	default:
		return fr.Element{}, fmt.Errorf("%w: attribute type %q", domain.ErrUnsupportedSchema, t)
	}
}

func (n *Normalizer) encodeExtra(key string, value any) (fr.Element, error) {
	canonical, err := canonicalValue(value)
	if err != nil {
		return fr.Element{}, err
	}
	raw, err := n.enc.Marshal(canonical)
	if err != nil {
		return fr.Element{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedSchema, err)
	}
	return zk.HashToField(zk.TagExtra, []byte(key), raw), nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", domain.ErrUnsupportedSchema, v)
		}
		return i, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %v is not an integer", domain.ErrUnsupportedSchema, v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: expected integer, got %T", domain.ErrUnsupportedSchema, value)
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: integer overflows int64", domain.ErrUnsupportedSchema)
	}
	return int64(v), nil
}

// canonicalValue folds equivalent decodings (json.Number, float64, sized
// integers) onto one representation before deterministic CBOR encoding.
func canonicalValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, []byte:
		return v, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %s", domain.ErrUnsupportedSchema, v)
		}
		return canonicalValue(f)
	case float32:
		return canonicalValue(float64(v))
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), nil
		}
		return v, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return toInt64(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			c, err := canonicalValue(v[i])
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			c, err := canonicalValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported attribute value %T", domain.ErrUnsupportedSchema, value)
	}
}
