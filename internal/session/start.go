package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/config"
)

// Markers delimiting the VNC helper's YAML report in its output.
const (
	reportStart = "<YAML>"
	reportEnd   = "</YAML>"
)

// StartOptions controls how a session is started.
type StartOptions struct {
	Geometry         string   // Defaults to the configured geometry
	KillOnScriptExit bool     // End the session when the post-init script exits
	OverrideEnv      bool     // Start from a minimal environment
	PostInitScript   string   // User command line run once the desktop is up
	Apps             []string // Application command lines passed to app.sh
}

// Start launches the session: the VNC server synchronously, then the
// detached websocket proxy, screenshot grabber, applications and cleaner.
// Metadata is only written once the VNC server has started.
//
// Start is not safe to call concurrently for the same session.
func (s *Session) Start(ctx context.Context, opts StartOptions) error {
	if s.Type == nil {
		return apperr.New(apperr.Internal, "session %s has no desktop type", s.ID)
	}
	if opts.PostInitScript != "" && !s.Type.Scriptable() {
		return apperr.New(apperr.Internal, "desktop type %s does not support post-init scripts", s.Type.Name)
	}
	if len(opts.Apps) > 0 && !s.Type.LaunchesApps() {
		return apperr.New(apperr.Internal, "desktop type %s does not support launching applications", s.Type.Name)
	}

	geometry := opts.Geometry
	if geometry == "" {
		geometry = s.host.Config.Geometry
	}
	if err := config.ValidateGeometry(geometry); err != nil {
		return err
	}

	logger := s.host.logger().With(zap.String("session", s.ID))
	env := s.childEnv(opts.OverrideEnv)
	dir := workDir()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.writePasswordFile(ctx, env, dir); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to create session password")
	}
	if err := copyFile(s.Type.SessionScript(), s.file(sessionScript), 0755); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to install session script")
	}

	var postInit string
	if opts.PostInitScript != "" {
		postInit = s.file(postInitScript)
		script := GeneratePostInitScript(s.Type.LaunchScript(), strings.Fields(opts.PostInitScript))
		if err := os.WriteFile(postInit, []byte(script), 0755); err != nil {
			return apperr.Wrap(apperr.SessionOperation, err, "unable to install post-init script")
		}
	}

	if err := s.runVNCServer(ctx, env, dir, geometry, postInit, opts.KillOnScriptExit); err != nil {
		return err
	}
	s.state = ""

	s.startWebsocket(env, dir)
	s.startGrabber(env)
	s.startApps(env, dir, opts.Apps)
	s.startCleaner()

	if err := s.Save(); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to record session")
	}
	logger.Debug("session started",
		zap.Int("port", s.VNCPort()),
		zap.Int("websocket_port", s.WebsocketPort()))
	return nil
}

func (s *Session) writePasswordFile(ctx context.Context, env []string, dir string) error {
	cmd := exec.CommandContext(ctx, s.host.Config.VNCPasswdProgram, "-f")
	cmd.Stdin = strings.NewReader(s.meta.Password + "\n")
	cmd.Env = env
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("%s: %w", s.host.Config.VNCPasswdProgram, err)
	}
	return os.WriteFile(s.file(passwordFile), out, 0600)
}

func (s *Session) runVNCServer(ctx context.Context, env []string, dir, geometry, postInit string, killOnExit bool) error {
	cfg := s.host.Config
	args := []string{
		"-autokill",
		"-sessiondir", s.Dir(),
		"-sessionscript", s.file(sessionScript),
		"-vncpasswd", s.file(passwordFile),
		"-exedir", "/usr/bin",
		"-geometry", geometry,
	}
	if postInit != "" {
		args = append(args, "-postinitscript", postInit)
		if killOnExit {
			args = append(args, "-killonscriptexit")
		}
	}

	cmd := exec.CommandContext(ctx, cfg.VNCServerProgram, args...)
	cmd.Dir = dir
	cmd.Env = append(append([]string{}, env...),
		config.RootEnv+"="+cfg.Root,
		"DESKCTL_SESSION_ID="+s.ID,
		"DESKCTL_GEOMETRY="+geometry,
	)
	if cfg.BGImage != "" {
		cmd.Env = append(cmd.Env, "DESKCTL_BG_IMAGE="+cfg.BGImage)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to start session")
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to start session")
	}
	report, parseErr := ParseHelperOutput(stdout, s.host.logger())
	if err := cmd.Wait(); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to start session")
	}
	if parseErr != nil {
		return apperr.Wrap(apperr.SessionOperation, parseErr, "unable to read session details")
	}

	if err := s.meta.mergeHelperOutput(report); err != nil {
		return apperr.Wrap(apperr.SessionOperation, err, "unable to read session details")
	}
	if _, ok := s.Display(); !ok {
		return apperr.New(apperr.SessionOperation, "vnc server did not report a display")
	}
	return nil
}

// ParseHelperOutput scans the VNC helper's combined output and decodes the
// YAML document between the <YAML> and </YAML> marker lines. Other lines
// are logged at debug level. Output without a report yields a nil map.
func ParseHelperOutput(r io.Reader, logger *zap.Logger) (map[string]any, error) {
	var (
		inReport bool
		doc      strings.Builder
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == reportStart:
			inReport = true
			doc.Reset()
		case line == reportEnd:
			inReport = false
		case inReport:
			doc.WriteString(line)
			doc.WriteByte('\n')
		default:
			if logger != nil {
				logger.Debug("vncserver", zap.String("line", line))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if doc.Len() == 0 {
		return nil, nil
	}

	var report map[string]any
	if err := yaml.Unmarshal([]byte(doc.String()), &report); err != nil {
		return nil, fmt.Errorf("failed to parse vnc server report: %w", err)
	}
	return report, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
