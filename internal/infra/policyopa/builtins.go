package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins keeps issuance policies pure: no clock, randomness or network.
var allowedBuiltins = map[string]struct{}{
	"assign":         {},
	"eq":             {},
	"equal":          {},
	"neq":            {},
	"gt":             {},
	"gte":            {},
	"lt":             {},
	"lte":            {},
	"plus":           {},
	"minus":          {},
	"mul":            {},
	"div":            {},
	"abs":            {},
	"count":          {},
	"concat":         {},
	"contains":       {},
	"endswith":       {},
	"startswith":     {},
	"format_int":     {},
	"lower":          {},
	"upper":          {},
	"max":            {},
	"min":            {},
	"object.get":     {},
	"sort":           {},
	"split":          {},
	"sprintf":        {},
	"substring":      {},
	"sum":            {},
	"trim":           {},
	"trim_space":     {},
	"json.marshal":   {},
	"json.unmarshal": {},
	"regex.match":    {},
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
