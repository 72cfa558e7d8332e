package sandbox

import (
	"errors"
	"log"
	"time"
)

// ErrConfiguration is returned by New when the executor cannot be built.
var ErrConfiguration = errors.New("sandbox: invalid configuration")

// Defaults used when the corresponding Config field is empty.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultLintTimeout = 30 * time.Second
	DefaultFileName    = "snippet.py"
)

var (
	DefaultInterpreter = []string{"python3"}
	DefaultLinter      = []string{"pyflakes"}
	DefaultFormatter   = []string{"autopep8", "--in-place"}
)

// Config controls how snippets are checked and run. Interpreter, Linter and Formatter
// are argv prefixes; the snippet file name is appended as the last argument.
type Config struct {
	Interpreter []string
	// Linter reports issues on stdout/stderr or with a non-zero exit. Empty disables linting.
	Linter []string
	// Formatter rewrites the file in place. Empty skips straight to the second lint pass.
	Formatter []string

	Timeout     time.Duration
	LintTimeout time.Duration

	// TempDir is the parent for per-run work directories; empty uses os.TempDir.
	TempDir  string
	FileName string

	// Env is the child environment. Empty gets a minimal PATH/HOME/LANG set.
	Env []string

	Logger *log.Logger
}

// DefaultConfig returns the python3/pyflakes/autopep8 setup.
func DefaultConfig() Config {
	return Config{
		Interpreter: append([]string(nil), DefaultInterpreter...),
		Linter:      append([]string(nil), DefaultLinter...),
		Formatter:   append([]string(nil), DefaultFormatter...),
		Timeout:     DefaultTimeout,
		LintTimeout: DefaultLintTimeout,
		FileName:    DefaultFileName,
	}
}

func (c Config) withDefaults() (Config, error) {
	if len(c.Interpreter) == 0 || c.Interpreter[0] == "" {
		return c, errors.Join(ErrConfiguration, errors.New("interpreter is required"))
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LintTimeout <= 0 {
		c.LintTimeout = DefaultLintTimeout
	}
	if c.FileName == "" {
		c.FileName = DefaultFileName
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c, nil
}
