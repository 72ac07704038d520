package session

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/config"
	"github.com/deskctl/deskctl/internal/proc"
)

var (
	currentPattern = regexp.MustCompile(`current (\d+) x (\d+)`)
	modePattern    = regexp.MustCompile(`^\s+(\d+x\d+)\s`)
)

// Geometry describes a session's screen configuration.
type Geometry struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

// Geometry queries the running session's current and available screen
// sizes.
func (s *Session) Geometry(ctx context.Context) (Geometry, error) {
	out, err := s.xrandr(ctx, "-q")
	if err != nil {
		return Geometry{}, err
	}
	return ParseXRandr(out), nil
}

// Resize changes the running session's screen size.
func (s *Session) Resize(ctx context.Context, geometry string) error {
	if err := config.ValidateGeometry(geometry); err != nil {
		return err
	}
	_, err := s.xrandr(ctx, "-s", geometry)
	return err
}

// xrandr runs the xrandr program against the session's display, bounded by
// the configured timeout. On expiry it sends SIGTERM and escalates to
// SIGKILL after a second.
func (s *Session) xrandr(ctx context.Context, args ...string) (string, error) {
	if !s.Active() {
		return "", apperr.New(apperr.SessionOperation, "session %s is not active", s.ID)
	}
	display, _ := s.Display()

	ctx, cancel := context.WithTimeout(ctx, s.host.Config.TimeoutDuration())
	defer cancel()

	cmd := exec.CommandContext(ctx, s.host.Config.XRandrProgram, args...)
	cmd.Env = proc.Setenv(proc.CleanEnv(os.Environ()), "DISPLAY", ":"+strconv.Itoa(display))
	cmd.Dir = "/"
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = time.Second

	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", apperr.New(apperr.Timeout, "timed out waiting for xrandr on display :%d", display)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.SessionOperation, err, "xrandr failed on display :%d", display)
	}
	return string(out), nil
}

// ParseXRandr extracts the current size and the list of modes from
// `xrandr -q` output.
func ParseXRandr(out string) Geometry {
	var g Geometry
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		if m := currentPattern.FindStringSubmatch(line); m != nil && g.Current == "" {
			g.Current = m[1] + "x" + m[2]
			continue
		}
		if m := modePattern.FindStringSubmatch(line); m != nil && !seen[m[1]] {
			seen[m[1]] = true
			g.Available = append(g.Available, m[1])
		}
	}
	return g
}
