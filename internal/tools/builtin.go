// Package tools implements the built-in functions the model can call.
package tools

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hattiebot/funcchat/internal/registry"
	"github.com/hattiebot/funcchat/internal/sandbox"
	"github.com/hattiebot/funcchat/internal/websearch"
)

// Built-in function names, matching functions.json.
const (
	NameExecuteCode = "execute_code"
	NameWebSearch   = "web_search"
)

// Deps carries what the built-ins need. A nil collaborator leaves its function unbound.
type Deps struct {
	Sandbox  *sandbox.Executor
	Searcher websearch.Searcher

	// MaxExecTimeout caps the timeout a model may ask execute_code for.
	MaxExecTimeout time.Duration

	// Wrap, when set, decorates each function before it is bound (truncation, confirmation).
	Wrap func(decl registry.Declaration, fn registry.Function) registry.Function
}

// Builtins returns the functions that deps can back, keyed by name.
func Builtins(deps Deps) map[string]registry.Function {
	out := map[string]registry.Function{}
	if deps.Sandbox != nil {
		out[NameExecuteCode] = ExecuteCode(deps.Sandbox, deps.MaxExecTimeout)
	}
	if deps.Searcher != nil {
		out[NameWebSearch] = WebSearch(deps.Searcher)
	}
	return out
}

// Bind attaches every built-in whose name reg declares. It returns the declared names
// left without an implementation.
func Bind(reg *registry.Registry, deps Deps) (unbound []string, err error) {
	fns := Builtins(deps)
	for _, name := range reg.Names() {
		fn, ok := fns[name]
		if !ok {
			unbound = append(unbound, name)
			continue
		}
		if deps.Wrap != nil {
			decl, _ := reg.Lookup(name)
			fn = deps.Wrap(decl, fn)
		}
		if err := reg.Bind(name, fn); err != nil {
			return unbound, fmt.Errorf("bind %s: %w", name, err)
		}
	}
	if len(unbound) > 0 {
		log.Printf("[TOOLS] declared without implementation: %v", unbound)
	}
	return unbound, nil
}

// ErrJSON renders err as {"error": "..."} for the model.
func ErrJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
