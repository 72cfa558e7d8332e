package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hattiebot/funcchat/internal/core"
)

// ErrUnknownFunction is returned by Bind when no declaration has the given name.
var ErrUnknownFunction = errors.New("function not declared")

// Policy values a declaration may carry.
const (
	PolicySafe       = "safe"
	PolicyRestricted = "restricted"
)

// Declaration is one entry of the declaration source.
type Declaration struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
	Policy      string         `json:"policy,omitempty" yaml:"policy,omitempty"`
}

type entry struct {
	decl   Declaration
	schema *jsonschema.Schema
	impl   Function
}

// Registry holds the declared functions and their bound implementations.
// The set of names is fixed at construction; only implementations change.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[string]*entry

	describeOnce sync.Once
	described    []core.FunctionSpec

	tokenMu    sync.Mutex
	tokenLen   int
	tokenReady bool
}

// New builds a registry from declarations. Every declaration needs a name, a description
// and a parameters schema that compiles; names must be unique.
func New(decls []Declaration) (*Registry, error) {
	return build("", decls)
}

func build(source string, decls []Declaration) (*Registry, error) {
	r := &Registry{index: make(map[string]*entry, len(decls))}
	for i, d := range decls {
		d.Name = strings.TrimSpace(d.Name)
		switch {
		case d.Name == "":
			return nil, &ConfigError{Source: source, Index: i, Field: "name", Err: errMissingField}
		case strings.TrimSpace(d.Description) == "":
			return nil, &ConfigError{Source: source, Index: i, Name: d.Name, Field: "description", Err: errMissingField}
		case d.Parameters == nil:
			return nil, &ConfigError{Source: source, Index: i, Name: d.Name, Field: "parameters", Err: errMissingField}
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, &ConfigError{Source: source, Index: i, Name: d.Name, Field: "name", Err: errDuplicateName}
		}
		schema, err := compileSchema(d.Name, d.Parameters)
		if err != nil {
			return nil, &ConfigError{Source: source, Index: i, Name: d.Name, Field: "parameters", Err: err}
		}
		e := &entry{decl: d, schema: schema}
		r.entries = append(r.entries, e)
		r.index[d.Name] = e
	}
	return r, nil
}

// Bind attaches an implementation to the named declaration. Binding twice replaces the first.
func (r *Registry) Bind(name string, fn Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	e.impl = fn
	return nil
}

// Describe returns the public view of all declarations in source order.
// The slice is computed once and shared; callers must not modify it.
func (r *Registry) Describe() []core.FunctionSpec {
	r.describeOnce.Do(func() {
		out := make([]core.FunctionSpec, 0, len(r.entries))
		for _, e := range r.entries {
			out = append(out, core.FunctionSpec{
				Name:        e.decl.Name,
				Description: e.decl.Description,
				Parameters:  e.decl.Parameters,
			})
		}
		r.described = out
	})
	return r.described
}

// EstimateTokenLength returns the token count of the JSON-encoded Describe view.
// The first tokenizer passed in determines the cached value.
func (r *Registry) EstimateTokenLength(tok Tokenizer) int {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()
	if r.tokenReady {
		return r.tokenLen
	}
	b, err := json.Marshal(r.Describe())
	if err != nil {
		// FunctionSpec only holds JSON-decoded data, so this cannot fail for loaded sources.
		return 0
	}
	if tok == nil {
		tok = ApproxTokenizer
	}
	r.tokenLen = tok(string(b))
	r.tokenReady = true
	return r.tokenLen
}

// NotFoundMessage is the dispatch result for names without a usable implementation.
func NotFoundMessage(name string) string {
	return fmt.Sprintf("Function %s not found.", name)
}

// InvalidArgumentsMessage is the dispatch result for arguments the model got wrong.
func InvalidArgumentsMessage(name string, err error) string {
	return fmt.Sprintf("Invalid arguments for function %s: %v", name, err)
}

// Dispatch runs the named function. Lookup misses and schema violations come back as
// text for the model; errors raised by the implementation are returned to the caller.
func (r *Registry) Dispatch(ctx context.Context, name string, args Arguments) (string, error) {
	r.mu.RLock()
	e, ok := r.index[name]
	var impl Function
	if ok {
		impl = e.impl
	}
	r.mu.RUnlock()
	if !ok || impl == nil {
		return NotFoundMessage(name), nil
	}
	args, err := args.normalize()
	if err != nil {
		return InvalidArgumentsMessage(name, err), nil
	}
	if err := e.schema.Validate(map[string]any(args)); err != nil {
		return InvalidArgumentsMessage(name, err), nil
	}
	out, err := impl.Call(ctx, args)
	if err != nil {
		return "", fmt.Errorf("function %s: %w", name, err)
	}
	return out, nil
}

// Names returns declared names in source order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.decl.Name)
	}
	return out
}

// Lookup returns the declaration for name.
func (r *Registry) Lookup(name string) (Declaration, bool) {
	e, ok := r.index[name]
	if !ok {
		return Declaration{}, false
	}
	return e.decl, true
}

// Bound reports whether name has an implementation attached.
func (r *Registry) Bound(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.index[name]
	return ok && e.impl != nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile(url)
}
