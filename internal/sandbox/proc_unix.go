//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts cmd in its own process group and makes cancellation
// kill the whole group, so children the snippet spawned die with it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
