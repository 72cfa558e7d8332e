package tools

import (
	"context"
	"time"

	"github.com/hattiebot/funcchat/internal/registry"
	"github.com/hattiebot/funcchat/internal/sandbox"
)

// ExecuteCode runs {"code": "...", "timeout": seconds} in the sandbox. The requested
// timeout is capped at maxTimeout (when > 0); absent or non-positive uses the sandbox default.
func ExecuteCode(ex *sandbox.Executor, maxTimeout time.Duration) registry.Function {
	return registry.FunctionFunc(func(ctx context.Context, args registry.Arguments) (string, error) {
		code, _ := args.String("code")
		var timeout time.Duration
		if secs, ok := args.Int("timeout"); ok && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
		if maxTimeout > 0 && timeout > maxTimeout {
			timeout = maxTimeout
		}
		return ex.ExecuteWithTimeout(ctx, code, timeout), nil
	})
}
