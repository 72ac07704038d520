// Package proc wraps the process-level primitives deskctl relies on:
// liveness checks, pidfiles, detached children and environment hygiene.
package proc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Table answers liveness questions about process ids. Session state is
// derived from it, so tests substitute a fake.
type Table interface {
	Alive(pid int) bool
}

// OSTable queries the host's process table with signal 0.
type OSTable struct{}

// Alive reports whether pid names a live process. A process owned by
// another user (EPERM) still counts as alive.
func (OSTable) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// ReadPIDFile reads a pid written as a decimal number, optionally followed
// by whitespace.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pidfile %s: %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid pidfile %s: pid %d", path, pid)
	}
	return pid, nil
}

// Terminate sends SIGTERM to pid, waits up to grace for it to exit and then
// sends SIGKILL. Processes that are already gone are not an error.
func Terminate(table Table, pid int, grace time.Duration) error {
	if !table.Alive(pid) {
		return nil
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to signal %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !table.Alive(pid) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("failed to kill %d: %w", pid, err)
	}
	return nil
}

// IsExecutable reports whether path is a regular file with an execute bit.
func IsExecutable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// FirstExecutable returns the first executable among paths, or "".
func FirstExecutable(paths []string) string {
	for _, p := range paths {
		if IsExecutable(p) {
			return p
		}
	}
	return ""
}
