// Package sandbox runs untrusted code snippets in a separate process with a
// lint gate in front and a hard timeout behind.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// TimeoutMessage is the whole output of a run that hit its deadline.
const TimeoutMessage = "Execution timed out!"

// Result describes one pass through the executor.
type Result struct {
	Output string

	// Linted is false when no linter ran (none configured or not installed).
	Linted bool
	// Formatted is true when the first lint pass found issues and the formatter ran.
	Formatted bool
	// Rejected is true when issues survived formatting; the code was not run.
	Rejected bool
	// LintReport holds the first pass report followed by the second one, when there was one.
	LintReport string

	Executed bool
	TimedOut bool
	ExitCode int
	// PID of the interpreter process, 0 if it never started.
	PID int

	Err error
}

// Executor checks and runs snippets. Safe for concurrent use; every run gets its own directory.
type Executor struct {
	cfg Config
}

// New validates cfg and fills defaults for empty fields.
func New(cfg Config) (*Executor, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Executor{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Execute runs input with the configured timeout and returns its output.
// It never fails: problems come back as text.
func (e *Executor) Execute(ctx context.Context, input string) string {
	return e.Run(ctx, input, e.cfg.Timeout).Output
}

// ExecuteWithTimeout is Execute with an explicit timeout; d <= 0 uses the configured one.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, input string, d time.Duration) string {
	return e.Run(ctx, input, d).Output
}

// Run is Execute with the details of what happened.
func (e *Executor) Run(ctx context.Context, input string, timeout time.Duration) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			res.Output = errorMessage(res.Err)
			e.cfg.Logger.Printf("[SANDBOX] recovered: %v", r)
		}
	}()
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}

	dir, err := os.MkdirTemp(e.cfg.TempDir, "sandbox-")
	if err != nil {
		return failed(res, err)
	}
	defer os.RemoveAll(dir)

	code := ExtractCode(input)
	path := filepath.Join(dir, e.cfg.FileName)
	if err := os.WriteFile(path, []byte(code+"\n"), 0o600); err != nil {
		return failed(res, err)
	}

	if ok := e.gate(ctx, dir, &res); !ok {
		return res
	}
	return e.execute(ctx, dir, timeout, res)
}

// gate runs the lint, format, lint sequence. It returns false when the code must not run;
// res.Output is set in that case.
func (e *Executor) gate(ctx context.Context, dir string, res *Result) bool {
	if len(e.cfg.Linter) == 0 {
		return true
	}
	file := e.cfg.FileName
	first, err := e.lintReport(ctx, dir, file)
	if errors.Is(err, errToolMissing) {
		e.cfg.Logger.Printf("[SANDBOX] linter %q not installed, skipping lint", e.cfg.Linter[0])
		return true
	}
	if err != nil {
		*res = failed(*res, fmt.Errorf("lint: %w", err))
		return false
	}
	res.Linted = true
	if first == "" {
		return true
	}
	res.LintReport = first

	if len(e.cfg.Formatter) > 0 {
		res.Formatted = true
		if err := e.format(ctx, dir, file); err != nil {
			// A broken formatter leaves the file as it was; the second pass decides.
			e.cfg.Logger.Printf("[SANDBOX] formatter: %v", err)
		}
	}

	second, err := e.lintReport(ctx, dir, file)
	if err != nil {
		*res = failed(*res, fmt.Errorf("lint: %w", err))
		return false
	}
	if second == "" {
		return true
	}
	res.Rejected = true
	res.LintReport = first + "\n" + second
	res.Output = res.LintReport
	return false
}

func (e *Executor) execute(ctx context.Context, dir string, timeout time.Duration, res Result) Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := e.cfg.Interpreter
	args := append(append([]string(nil), argv[1:]...), e.cfg.FileName)
	cmd := exec.CommandContext(runCtx, argv[0], args...)
	cmd.Dir = dir
	cmd.Env = e.env(dir)
	killProcessGroup(cmd)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return failed(res, err)
	}
	res.PID = cmd.Process.Pid
	res.Executed = true
	runErr := cmd.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		res.Output = TimeoutMessage
		e.cfg.Logger.Printf("[SANDBOX] pid %d timed out after %s", res.PID, timeout)
		return res
	}
	if errors.Is(runCtx.Err(), context.Canceled) {
		e.cfg.Logger.Printf("[SANDBOX] pid %d cancelled", res.PID)
		return failed(res, runCtx.Err())
	}
	if runErr != nil {
		var exit *exec.ExitError
		if !errors.As(runErr, &exit) {
			return failed(res, runErr)
		}
		// The snippet's own failure; its traceback is the output.
		res.ExitCode = exit.ExitCode()
	}
	res.Output = stdout.String() + stderr.String()
	return res
}

func (e *Executor) env(dir string) []string {
	if len(e.cfg.Env) > 0 {
		return e.cfg.Env
	}
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
		"PYTHONDONTWRITEBYTECODE=1",
	}
}

func failed(res Result, err error) Result {
	res.Err = err
	res.Output = errorMessage(err)
	return res
}

func errorMessage(err error) string {
	return "An error occurred: " + err.Error()
}
