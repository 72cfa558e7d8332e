package registry

import (
	"errors"
	"fmt"
)

// ErrConfig matches every *ConfigError.
var ErrConfig = errors.New("invalid function declarations")

var (
	errMissingField  = errors.New("missing required field")
	errDuplicateName = errors.New("duplicate function name")
)

// ConfigError reports a malformed or incomplete declaration source.
type ConfigError struct {
	// Source is the file the declarations came from, if any.
	Source string
	// Index is the position of the offending declaration; -1 when the whole document is bad.
	Index int
	Name  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	where := "function declarations"
	if e.Source != "" {
		where = e.Source
	}
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", where, e.Err)
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: declaration %d (%s): %s: %v", where, e.Index, e.Name, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: declaration %d: %s: %v", where, e.Index, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConfig) true for any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
