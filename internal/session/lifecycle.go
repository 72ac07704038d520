package session

import (
	"context"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/logging"
	"github.com/deskctl/deskctl/internal/proc"
)

// Kill terminates an active local session through the VNC helper. On
// success the session is killed and, unless DESKCTL_KEEP_KILLED is set,
// its directory is removed.
func (s *Session) Kill(ctx context.Context) error {
	if !s.Local() {
		return apperr.New(apperr.SessionOperation, "session %s is not local", s.ID)
	}
	if !s.Active() {
		return apperr.New(apperr.SessionOperation, "session %s is not active", s.ID)
	}

	cmd := exec.CommandContext(ctx, s.host.Config.VNCServerProgram, "-kill", "-sessiondir", s.Dir())
	cmd.Env = proc.CleanEnv(os.Environ())
	cmd.Dir = "/"
	out, err := cmd.CombinedOutput()
	s.host.logger().Debug("vncserver -kill", zap.String("session", s.ID), zap.ByteString("output", out))
	if err != nil {
		s.reload()
		return apperr.Wrap(apperr.SessionOperation, err, "unable to terminate session %s", s.ID)
	}

	s.state = StateKilled
	if logging.KeepKilled() {
		return nil
	}
	return s.Clean()
}

// Clean removes the directory of a session that is no longer running.
// Active and remote sessions are refused, as are broken sessions whose
// VNC server is still alive. Cleaning twice is a no-op.
func (s *Session) Clean() error {
	switch s.State() {
	case StateCleaned:
		return nil
	case StateActive:
		return apperr.New(apperr.SessionOperation, "session %s is currently active", s.ID)
	case StateRemote:
		return apperr.New(apperr.SessionOperation, "session %s is not local", s.ID)
	case StateNew:
		return apperr.New(apperr.SessionOperation, "session %s has not been started", s.ID)
	case StateBroken:
		if pid, err := proc.ReadPIDFile(s.file(pidFile)); err == nil && s.host.Procs.Alive(pid) {
			return apperr.New(apperr.SessionOperation, "session %s is broken but its server (pid %d) is still running", s.ID, pid)
		}
	}

	if err := os.RemoveAll(s.Dir()); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to remove session %s", s.ID)
	}
	s.state = StateCleaned
	return nil
}
