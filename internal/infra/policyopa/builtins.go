package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins excludes anything reading clocks, randomness or the network
// so a disclosure decision depends on its input alone.
var allowedBuiltins = map[string]struct{}{
	"assign":            {},
	"concat":            {},
	"contains":          {},
	"count":             {},
	"endswith":          {},
	"eq":                {},
	"equal":             {},
	"gt":                {},
	"gte":               {},
	"internal.member_2": {},
	"lower":             {},
	"lt":                {},
	"lte":               {},
	"max":               {},
	"min":               {},
	"neq":               {},
	"object.get":        {},
	"regex.match":       {},
	"sort":              {},
	"split":             {},
	"sprintf":           {},
	"startswith":        {},
	"substring":         {},
	"trim":              {},
	"upper":             {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
