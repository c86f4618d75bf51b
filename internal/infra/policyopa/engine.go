package policyopa

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nftcate/internal/domain"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.nftcate.issuance.result"

//go:embed issuance.rego
var defaultPolicy string

// Engine evaluates issuance requests against a prepared rego query.
type Engine struct {
	query rego.PreparedEvalQuery
	hash  string
}

// NewEngine compiles the built-in issuance policy, or every .rego file under path
// when path is set. path may name a single file or a directory.
func NewEngine(ctx context.Context, path string) (*Engine, error) {
	modules := map[string]string{"issuance.rego": defaultPolicy}
	if strings.TrimSpace(path) != "" {
		loaded, err := loadModules(path)
		if err != nil {
			return nil, err
		}
		modules = loaded
	}
	return newEngine(ctx, modules)
}

func newEngine(ctx context.Context, modules map[string]string) (*Engine, error) {
	if len(modules) == 0 {
		return nil, errors.New("no policy modules")
	}
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := []func(*rego.Rego){
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
	}
	h := sha256.New()
	for _, name := range names {
		opts = append(opts, rego.Module(name, modules[name]))
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(modules[name]))
		h.Write([]byte{0})
	}
	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Engine{query: prepared, hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// Hash identifies the compiled module set.
func (e *Engine) Hash() string {
	return e.hash
}

func (e *Engine) Evaluate(ctx context.Context, input domain.IssuancePolicyInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}
	result, err := decodePolicyResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	normalizePolicyResult(&result)
	return result, nil
}

func loadModules(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("policy path: %w", err)
	}
	modules := make(map[string]string)
	if !info.IsDir() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		modules[filepath.Base(path)] = string(raw)
		return modules, nil
	}
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || filepath.Ext(p) != ".rego" || strings.HasSuffix(p, "_test.rego") {
			return nil
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		modules[filepath.ToSlash(rel)] = string(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("no .rego files under %s", path)
	}
	return modules, nil
}

func decodePolicyResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

func normalizePolicyResult(result *domain.PolicyResult) {
	if result == nil {
		return
	}
	sort.Slice(result.Deny, func(i, j int) bool {
		if result.Deny[i].Code == result.Deny[j].Code {
			return result.Deny[i].Message < result.Deny[j].Message
		}
		return result.Deny[i].Code < result.Deny[j].Code
	})
	if len(result.Deny) > 0 {
		result.Allow = false
	}
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
