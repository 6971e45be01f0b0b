package policyopa

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"zkcred/internal/usecase"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const (
	defaultQuery    = "data.zkcred.disclosure.result"
	defaultBundleID = "embedded_disclosure_v1"
)

//go:embed policy/disclosure.rego
var defaultModule string

// Engine evaluates disclosure requests against a rego policy restricted to
// deterministic builtins.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
	bundleID   string
}

// NewDefaultEngine compiles the embedded disclosure policy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	sum := sha256.Sum256([]byte(defaultModule))
	return newEngine(ctx, defaultBundleID, hex.EncodeToString(sum[:]), rego.Module("disclosure.rego", defaultModule))
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath string, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, bundleID, bundleHash, rego.Load([]string{bundlePath}, nil))
}

func newEngine(ctx context.Context, bundleID, bundleHash string, source func(*rego.Rego)) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		source,
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{
		query:      prepared,
		bundleHash: bundleHash,
		bundleID:   bundleID,
	}, nil
}

func (e *Engine) BundleHash() string {
	return e.bundleHash
}

func (e *Engine) BundleID() string {
	return e.bundleID
}

func (e *Engine) Evaluate(ctx context.Context, input usecase.DisclosureInput) (usecase.DisclosureDecision, error) {
	if e == nil {
		return usecase.DisclosureDecision{}, errors.New("policy engine is nil")
	}
	if input.Disclose == nil {
		input.Disclose = []string{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return usecase.DisclosureDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return usecase.DisclosureDecision{}, errors.New("empty policy result")
	}
	decision, err := decodeDecision(results[0].Expressions[0].Value)
	if err != nil {
		return usecase.DisclosureDecision{}, err
	}
	sort.Strings(decision.Deny)
	if len(decision.Deny) > 0 {
		decision.Allow = false
	}
	return decision, nil
}

func decodeDecision(value any) (usecase.DisclosureDecision, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return usecase.DisclosureDecision{}, err
	}
	var decision usecase.DisclosureDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return usecase.DisclosureDecision{}, err
	}
	return decision, nil
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}

var _ usecase.DisclosureGuard = (*Engine)(nil)
