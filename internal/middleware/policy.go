package middleware

import (
	"context"
	"fmt"

	"github.com/hattiebot/funcchat/internal/registry"
)

// ConfirmationFunc asks the user for permission.
type ConfirmationFunc func(msg string) (bool, error)

// DeniedMessage is returned to the model when the user refuses a call.
const DeniedMessage = "Error: User denied permission to execute this function."

// Confirm asks before every call of a restricted function. Safe functions, and all
// functions when confirm is nil, run without asking.
func Confirm(fn registry.Function, name, policy string, confirm ConfirmationFunc) registry.Function {
	if confirm == nil || policy != registry.PolicyRestricted {
		return fn
	}
	return registry.FunctionFunc(func(ctx context.Context, args registry.Arguments) (string, error) {
		approved, err := confirm(fmt.Sprintf("Allow function '%s'? Policy: %s", name, policy))
		if err != nil {
			return "", fmt.Errorf("confirmation error: %w", err)
		}
		if !approved {
			return DeniedMessage, nil
		}
		return fn.Call(ctx, args)
	})
}

// Chain applies truncation and confirmation to a declared function. Confirmation runs first
// so a denied call never reaches the implementation.
func Chain(maxRunes int, confirm ConfirmationFunc) func(registry.Declaration, registry.Function) registry.Function {
	return func(decl registry.Declaration, fn registry.Function) registry.Function {
		return Confirm(Truncate(fn, maxRunes), decl.Name, decl.Policy, confirm)
	}
}
