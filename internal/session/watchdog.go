package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/deskctl/deskctl/internal/logging"
	"github.com/deskctl/deskctl/internal/proc"
)

// RunCleaner waits for the session's VNC server to exit, then terminates
// the auxiliary processes and removes the password file. The session
// directory itself is left for an explicit clean.
func RunCleaner(ctx context.Context, env CleanerEnv, procs proc.Table, logger *zap.Logger) error {
	logger = logging.OrNop(logger).With(zap.Int("vnc_pid", env.VNCPID))
	poll := env.Poll
	if poll <= 0 {
		poll = 5 * time.Second
	}

	if err := waitForExit(ctx, procs, env.VNCPID, poll); err != nil {
		return err
	}
	logger.Info("vnc server exited; cleaning up", zap.Ints("pids", env.PIDs))

	for _, pid := range env.PIDs {
		if err := proc.Terminate(procs, pid, env.Grace); err != nil {
			logger.Warn("failed to terminate", zap.Int("pid", pid), zap.Error(err))
		}
	}

	if err := os.Remove(filepath.Join(env.Dir, passwordFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove password file: %w", err)
	}
	return nil
}

// RunGrabber captures a screenshot of the session's display into
// session.png every interval until the VNC server exits or ctx is done.
func RunGrabber(ctx context.Context, env GrabberEnv, procs proc.Table, logger *zap.Logger) error {
	logger = logging.OrNop(logger).With(zap.Int("display", env.Display))
	interval := env.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if env.VNCPID > 0 && !procs.Alive(env.VNCPID) {
			logger.Info("vnc server exited; grabber stopping")
			return nil
		}
		if err := capture(ctx, env.Display, filepath.Join(env.Dir, screenshotFile)); err != nil {
			logger.Debug("capture failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func waitForExit(ctx context.Context, procs proc.Table, pid int, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for procs.Alive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// capture runs xwd | xwdtopnm | pnmtopng and atomically replaces dst.
func capture(ctx context.Context, display int, dst string) error {
	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	xwd := exec.CommandContext(ctx, CapturePrograms[0], "-root", "-display", ":"+strconv.Itoa(display))
	topnm := exec.CommandContext(ctx, CapturePrograms[1])
	topng := exec.CommandContext(ctx, CapturePrograms[2])

	if topnm.Stdin, err = xwd.StdoutPipe(); err != nil {
		_ = out.Close()
		return err
	}
	if topng.Stdin, err = topnm.StdoutPipe(); err != nil {
		_ = out.Close()
		return err
	}
	topng.Stdout = out

	cmds := []*exec.Cmd{xwd, topnm, topng}
	for i, c := range cmds {
		if err := c.Start(); err != nil {
			for _, started := range cmds[:i] {
				_ = started.Process.Kill()
				_ = started.Wait()
			}
			_ = out.Close()
			return fmt.Errorf("failed to start %s: %w", c.Path, err)
		}
	}

	var firstErr error
	for i := len(cmds) - 1; i >= 0; i-- {
		if err := cmds[i].Wait(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", cmds[i].Path, err)
		}
	}
	if err := out.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return firstErr
	}
	return os.Rename(tmp, dst)
}
