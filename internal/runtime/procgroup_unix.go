//go:build unix

package runtime

import (
	"errors"
	"os/exec"
	"syscall"
)

// ownGroup starts proc in a new process group and makes cancellation kill
// the whole group, so commands spawned by the shell die with it.
func ownGroup(proc *exec.Cmd) {
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	proc.Cancel = func() error {
		err := syscall.Kill(-proc.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
}
