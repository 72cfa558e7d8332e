//go:build unix

package sandbox

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grepLinter flags every line containing BAD, pyflakes style: report on stdout, exit 1.
const grepLinter = "#!/bin/sh\ngrep -n BAD \"$1\" && exit 1\nexit 0\n"

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
	return p
}

type fixture struct {
	exec   *Executor
	marker string
	work   string
}

// newFixture builds an executor whose formatter records each call in marker and,
// when fix is true, replaces BAD with 1.
func newFixture(t *testing.T, fix bool) fixture {
	t.Helper()
	requirePython(t)
	tools := t.TempDir()
	marker := filepath.Join(tools, "formatter-ran")
	formatter := "#!/bin/sh\necho ran >> '" + marker + "'\n"
	if fix {
		formatter += "sed 's/BAD/1/g' \"$1\" > \"$1.tmp\" && mv \"$1.tmp\" \"$1\"\n"
	}
	work := t.TempDir()
	ex, err := New(Config{
		Interpreter: []string{"python3"},
		Linter:      []string{writeScript(t, tools, "lint.sh", grepLinter)},
		Formatter:   []string{writeScript(t, tools, "fmt.sh", formatter)},
		Timeout:     5 * time.Second,
		TempDir:     work,
		Logger:      log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	return fixture{exec: ex, marker: marker, work: work}
}

func (f fixture) formatterRan() bool {
	_, err := os.Stat(f.marker)
	return err == nil
}

func TestRun_CleanCodeSkipsFormatter(t *testing.T) {
	f := newFixture(t, true)

	res := f.exec.Run(context.Background(), "```python\nprint(\"hi\")\n```", 0)
	require.NoError(t, res.Err)
	assert.Equal(t, "hi\n", res.Output)
	assert.True(t, res.Linted)
	assert.False(t, res.Formatted)
	assert.False(t, res.Rejected)
	assert.Empty(t, res.LintReport)
	assert.False(t, f.formatterRan())
}

func TestRun_FormatterFixesIssues(t *testing.T) {
	f := newFixture(t, true)

	res := f.exec.Run(context.Background(), "x = BAD\nprint(x)", 0)
	require.NoError(t, res.Err)
	assert.True(t, res.Formatted)
	assert.True(t, res.Executed)
	assert.Equal(t, "1\n", res.Output)
	assert.Equal(t, "1:x = BAD", res.LintReport)
	assert.True(t, f.formatterRan())
}

func TestRun_PersistentIssuesNeverRun(t *testing.T) {
	f := newFixture(t, false)
	sentinel := filepath.Join(t.TempDir(), "ran")
	code := "open(" + strconv.Quote(sentinel) + ", 'w').write('x')\nBAD\n"

	res := f.exec.Run(context.Background(), code, 0)
	assert.True(t, res.Rejected)
	assert.False(t, res.Executed)
	assert.Equal(t, "2:BAD\n2:BAD", res.Output)
	_, err := os.Stat(sentinel)
	assert.True(t, os.IsNotExist(err), "rejected code must not run")
}

func TestExecute_RuntimeFaultIsOutput(t *testing.T) {
	f := newFixture(t, false)

	res := f.exec.Run(context.Background(), "raise ValueError(\"boom\")", 0)
	require.NoError(t, res.Err)
	assert.True(t, res.Executed)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "ValueError: boom")
}

func TestExecute_StdoutThenStderr(t *testing.T) {
	f := newFixture(t, false)

	out := f.exec.Execute(context.Background(), "import sys\nsys.stderr.write('err\\n')\nprint('out')")
	assert.Equal(t, "out\nerr\n", out)
}

func TestExecute_TimeoutKillsProcessGroup(t *testing.T) {
	f := newFixture(t, false)
	pidFile := filepath.Join(t.TempDir(), "pids")
	code := strings.Join([]string{
		"import os, subprocess, time",
		"child = subprocess.Popen(['sleep', '60'])",
		"with open(" + strconv.Quote(pidFile) + ", 'w') as fh:",
		"    fh.write('%d %d' % (os.getpid(), child.pid))",
		"print('partial', flush=True)",
		"time.sleep(60)",
	}, "\n")

	start := time.Now()
	res := f.exec.Run(context.Background(), code, 2*time.Second)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutMessage, res.Output)
	assert.Equal(t, "Execution timed out!", f.exec.ExecuteWithTimeout(context.Background(), "import time\ntime.sleep(5)", 500*time.Millisecond))

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	fields := strings.Fields(string(data))
	require.Len(t, fields, 2)
	for _, s := range fields {
		pid, err := strconv.Atoi(s)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return !pidAlive(pid) }, 3*time.Second, 20*time.Millisecond,
			"pid %d still running", pid)
	}
}

func TestExecute_CancelledIsAnError(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	res := f.exec.Run(ctx, "import sys, time\nprint('partial')\nsys.stdout.flush()\ntime.sleep(30)", 10*time.Second)
	require.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "An error occurred: context canceled", res.Output)
}

func TestExecute_MissingLinterDisablesLint(t *testing.T) {
	requirePython(t)
	ex, err := New(Config{
		Interpreter: []string{"python3"},
		Linter:      []string{"funcchat-no-such-linter"},
		Logger:      log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)

	res := ex.Run(context.Background(), "print(2 + 2)", 0)
	assert.False(t, res.Linted)
	assert.Equal(t, "4\n", res.Output)
}

func TestExecute_MissingInterpreter(t *testing.T) {
	ex, err := New(Config{
		Interpreter: []string{"funcchat-no-such-interpreter"},
		Logger:      log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)

	out := ex.Execute(context.Background(), "print(1)")
	assert.True(t, strings.HasPrefix(out, "An error occurred: "), out)
}

func TestRun_RemovesWorkDir(t *testing.T) {
	f := newFixture(t, false)

	f.exec.Execute(context.Background(), "print(1)")
	entries, err := os.ReadDir(f.work)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNew_RequiresInterpreter(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.Is(err, ErrConfiguration))

	ex, err := New(Config{Interpreter: []string{"python3"}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, ex.Config().Timeout)
	assert.Equal(t, DefaultFileName, ex.Config().FileName)
}

// pidAlive reports whether pid exists and is not a zombie.
func pidAlive(pid int) bool {
	if b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat")); err == nil {
		line := string(b)
		if i := strings.LastIndexByte(line, ')'); i >= 0 && i+2 < len(line) {
			if s := line[i+2]; s == 'Z' || s == 'X' {
				return false
			}
		}
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
