package proc

import (
	"fmt"
	"os/exec"
	"syscall"
)

// Detach starts cmd in a new session so it outlives the CLI and is immune to
// the terminal's job-control signals. The child is released rather than
// waited on; the returned pid is all the caller keeps.
func Detach(cmd *exec.Cmd) (int, error) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release %d: %w", pid, err)
	}
	return pid, nil
}
