package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// errToolMissing means the linter or formatter binary is not installed.
var errToolMissing = errors.New("tool not found in PATH")

// lintReport runs the linter on file inside dir. An empty report means the code is clean.
func (e *Executor) lintReport(ctx context.Context, dir, file string) (string, error) {
	out, exitCode, err := e.runTool(ctx, e.cfg.Linter, dir, file)
	if err != nil {
		return "", err
	}
	report := strings.TrimRight(out, "\n")
	if report == "" && exitCode != 0 {
		report = file + ": linter exited with status " + strconv.Itoa(exitCode)
	}
	return report, nil
}

// format rewrites file in place.
func (e *Executor) format(ctx context.Context, dir, file string) error {
	out, exitCode, err := e.runTool(ctx, e.cfg.Formatter, dir, file)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return errors.New("formatter exited with status " + strconv.Itoa(exitCode) + ": " + strings.TrimSpace(out))
	}
	return nil
}

// runTool runs argv + file in dir and returns combined stdout/stderr. A non-zero exit
// is reported through exitCode, not err.
func (e *Executor) runTool(ctx context.Context, argv []string, dir, file string) (string, int, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return "", -1, errToolMissing
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LintTimeout)
	defer cancel()
	args := append(append([]string(nil), argv[1:]...), file)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Env = e.env(dir)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	runErr := cmd.Run()
	if runErr != nil {
		var exit *exec.ExitError
		if errors.As(runErr, &exit) && ctx.Err() == nil {
			return buf.String(), exit.ExitCode(), nil
		}
		return buf.String(), -1, runErr
	}
	return buf.String(), 0, nil
}
