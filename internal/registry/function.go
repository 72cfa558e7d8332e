package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Function is an implementation bound to a declaration. It receives the call's
// arguments as one object, already checked against the declared schema.
type Function interface {
	Call(ctx context.Context, args Arguments) (string, error)
}

// FunctionFunc adapts a plain func to Function.
type FunctionFunc func(ctx context.Context, args Arguments) (string, error)

func (f FunctionFunc) Call(ctx context.Context, args Arguments) (string, error) {
	return f(ctx, args)
}

// Arguments are the decoded arguments of a function call.
type Arguments map[string]any

// ParseArguments decodes the JSON text a model emitted as function arguments.
// Empty text means no arguments.
func ParseArguments(raw string) (Arguments, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Arguments{}, nil
	}
	var args Arguments
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return Arguments{}, nil
	}
	return args, nil
}

// Decode fills v (a pointer to a struct) from the arguments.
func (a Arguments) Decode(v any) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// String returns the string argument key.
func (a Arguments) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// Int returns the integral argument key. Non-integral numbers are rejected.
func (a Arguments) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// normalize round-trips the arguments through JSON so values have the types
// encoding/json produces, which is what schema validation expects.
func (a Arguments) normalize() (Arguments, error) {
	if len(a) == 0 {
		return Arguments{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	var out Arguments
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
