package session

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/port"
	"github.com/deskctl/deskctl/internal/proc"
)

// CapturePrograms are the X11 tools the grabber pipes together to produce
// session.png. Screenshots are disabled unless all are executable.
var CapturePrograms = []string{"/usr/bin/xwd", "/usr/bin/xwdtopnm", "/usr/bin/pnmtopng"}

// Hidden subcommands the CLI exposes for detached helpers.
const (
	CleanerCommand = "__cleaner"
	GrabberCommand = "__grabber"
)

// startWebsocket launches the websocket proxy for the session's VNC port.
// Failure disables websocket support rather than failing the start.
func (s *Session) startWebsocket(env []string, dir string) {
	logger := s.host.logger().With(zap.String("session", s.ID))
	s.meta.WebsocketPort = 0
	s.meta.WebsocketPID = 0

	exe := proc.FirstExecutable(s.host.Config.WebsockifyPaths)
	if exe == "" {
		logger.Debug("websocket support disabled: no websockify")
		return
	}
	display, _ := s.Display()
	wsPort := port.Websocket(display)
	if wsPort == 0 {
		logger.Debug("websocket support disabled: no free port")
		return
	}

	cmd := exec.Command(exe, fmt.Sprintf("0.0.0.0:%d", wsPort), fmt.Sprintf("127.0.0.1:%d", s.VNCPort()))
	cmd.Dir = dir
	cmd.Env = env
	pid, err := s.detachWithLog(cmd, websocketLog, false)
	if err != nil {
		logger.Debug("websocket support disabled", zap.Error(err))
		return
	}
	s.meta.WebsocketPort = wsPort
	s.meta.WebsocketPID = pid
}

// startGrabber launches the screenshot grabber when the capture tools are
// installed.
func (s *Session) startGrabber(env []string) {
	logger := s.host.logger().With(zap.String("session", s.ID))
	for _, p := range CapturePrograms {
		if !proc.IsExecutable(p) {
			logger.Debug("screenshots disabled", zap.String("missing", p))
			return
		}
	}

	display, _ := s.Display()
	contract := GrabberEnv{
		Dir:      s.Dir(),
		Display:  display,
		Interval: s.host.Config.GrabInterval,
	}
	if pid, err := proc.ReadPIDFile(s.file(pidFile)); err == nil {
		contract.VNCPID = pid
	}

	cmd := exec.Command(s.host.self(), GrabberCommand)
	cmd.Dir = "/"
	cmd.Env = append(append([]string{}, env...), contract.Environ()...)
	pid, err := s.detachWithLog(cmd, grabberLog, false)
	if err != nil {
		logger.Debug("screenshots disabled", zap.Error(err))
		return
	}
	s.grabberPID = pid
}

// startApps runs each application command line through the type's app.sh.
func (s *Session) startApps(env []string, dir string, apps []string) {
	if len(apps) == 0 {
		return
	}
	display, _ := s.Display()
	for _, app := range apps {
		args := append([]string{s.Type.AppScript()}, strings.Fields(app)...)
		cmd := exec.Command("/bin/bash", args...)
		cmd.Dir = dir
		cmd.Env = proc.Setenv(env, "DISPLAY", ":"+strconv.Itoa(display))
		if _, err := s.detachWithLog(cmd, appsLog, true); err != nil {
			s.host.logger().Warn("failed to launch application", zap.String("app", app), zap.Error(err))
		}
	}
}

// startCleaner launches the watchdog that tears down the auxiliary
// processes once the VNC server exits.
func (s *Session) startCleaner() {
	logger := s.host.logger().With(zap.String("session", s.ID))
	vncPID, err := proc.ReadPIDFile(s.file(pidFile))
	if err != nil {
		logger.Debug("cleaner not started: no vnc pid", zap.Error(err))
		return
	}

	contract := CleanerEnv{VNCPID: vncPID, Dir: s.Dir()}
	for _, pid := range []int{s.meta.WebsocketPID, s.grabberPID} {
		if pid > 0 {
			contract.PIDs = append(contract.PIDs, pid)
		}
	}

	cmd := exec.Command(s.host.self(), CleanerCommand)
	cmd.Dir = "/"
	cmd.Env = append(proc.CleanEnv(os.Environ()), contract.Environ()...)
	pid, err := proc.Detach(cmd)
	if err != nil {
		logger.Warn("failed to start session cleaner", zap.Error(err))
		return
	}
	s.cleanerPID = pid
}

// StartWebSupport enables websocket access for an active session started
// without it (or whose proxy has died) and records the new port. A cleaner
// is attached to the new processes.
func (s *Session) StartWebSupport() error {
	if !s.Active() {
		return apperr.New(apperr.SessionOperation, "session %s is not active", s.ID)
	}
	if s.meta.WebsocketPort != 0 && s.host.Procs.Alive(s.meta.WebsocketPID) {
		return nil
	}

	env := s.childEnv(s.host.Config.SessionEnvOverride)
	s.startWebsocket(env, workDir())
	if s.meta.WebsocketPort == 0 {
		return apperr.New(apperr.SessionOperation, "unable to enable websocket support for session %s", s.ID)
	}
	if s.Screenshot() == "" {
		s.startGrabber(env)
	}
	s.startCleaner()
	if err := s.Save(); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to record session")
	}
	return nil
}

// detachWithLog starts cmd detached with stdout and stderr going to the
// named file in the session directory.
func (s *Session) detachWithLog(cmd *exec.Cmd, name string, appendLog bool) (int, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendLog {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	logFile, err := os.OpenFile(s.file(name), flags, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer logFile.Close()

	cmd.Stdout = logFile
	cmd.Stderr = logFile
	return proc.Detach(cmd)
}
