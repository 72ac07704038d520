// Package session models VNC desktop sessions: their on-disk metadata, the
// state derived from the host's process table, and the orchestration of the
// processes that make up a running session.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/deskctl/deskctl/internal/config"
	"github.com/deskctl/deskctl/internal/desktype"
	"github.com/deskctl/deskctl/internal/logging"
	"github.com/deskctl/deskctl/internal/network"
	"github.com/deskctl/deskctl/internal/proc"
)

// Session directory entries.
const (
	metadataFile   = "metadata.yml"
	passwordFile   = "password.dat"
	sessionScript  = "session.sh"
	postInitScript = "post-init.sh"
	pidFile        = "vncserver.pid"
	activityLog    = "session.log"
	screenshotFile = "session.png"
	websocketLog   = "websocket.log"
	grabberLog     = "grabber.log"
	appsLog        = "apps.log"
)

const vncBasePort = 5900

// TypeResolver looks up desktop types by name.
type TypeResolver interface {
	Get(name string) (*desktype.Type, error)
}

// Host bundles what sessions need to know about the machine they run on.
type Host struct {
	Config  *config.Config
	Types   TypeResolver
	Network *network.Policy
	Procs   proc.Table
	Logger  *zap.Logger
	// Self is the executable re-invoked for the detached cleaner and
	// grabber helpers. Defaults to os.Executable().
	Self string
}

func (h *Host) logger() *zap.Logger {
	return logging.OrNop(h.Logger)
}

func (h *Host) self() string {
	if h.Self != "" {
		return h.Self
	}
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}

// Session is a single VNC desktop rooted at <session_path>/<id>.
type Session struct {
	ID   string
	Type *desktype.Type

	host      *Host
	meta      Metadata
	state     State // hard-set override; empty means derive
	broken    bool
	createdAt time.Time

	grabberPID int
	cleanerPID int
}

// New creates a session of type t that has not been started.
func New(h *Host, t *desktype.Type, name string) *Session {
	now := time.Now()
	hostname, _ := os.Hostname()
	if i := strings.IndexByte(hostname, '.'); i > 0 {
		hostname = hostname[:i]
	}

	meta := Metadata{
		Name:      name,
		Type:      t.Name,
		Password:  GeneratePassword(),
		IP:        h.Network.PrimaryIP(),
		IPs:       network.AllIPs(),
		HostName:  hostname,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	if job := DetectJobID(); job != "" {
		meta.Supplementary = &Supplementary{JobID: job}
	}

	return &Session{
		ID:        uuid.NewString(),
		Type:      t,
		host:      h,
		meta:      meta,
		state:     StateNew,
		createdAt: now.Truncate(time.Second),
	}
}

// load reconstructs the session stored under id. A session whose metadata
// cannot be read or whose type is unknown is returned in the broken state.
func load(h *Host, id string) *Session {
	s := &Session{ID: id, host: h}
	s.reload()
	return s
}

func (s *Session) reload() {
	s.state = ""
	s.broken = false
	if err := s.readMetadata(); err != nil {
		s.host.logger().Debug("session metadata unreadable", zap.String("id", s.ID), zap.Error(err))
		s.meta = Metadata{}
		s.Type = nil
		s.broken = true
	}
	s.createdAt = s.determineCreatedAt()
}

func (s *Session) readMetadata() error {
	data, err := os.ReadFile(s.file(metadataFile))
	if err != nil {
		return err
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}
	t, err := s.host.Types.Get(meta.Type)
	if err != nil {
		return err
	}
	s.meta = meta
	s.Type = t
	return nil
}

// determineCreatedAt prefers the recorded creation time. Without one it
// falls back to the oldest file in the session directory, never later than
// the last activity.
func (s *Session) determineCreatedAt() time.Time {
	if s.meta.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, s.meta.CreatedAt); err == nil {
			return t
		}
	}

	var oldest time.Time
	entries, err := os.ReadDir(s.Dir())
	if err == nil {
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if oldest.IsZero() || info.ModTime().Before(oldest) {
				oldest = info.ModTime()
			}
		}
	}
	if oldest.IsZero() {
		if info, err := os.Stat(s.Dir()); err == nil {
			oldest = info.ModTime()
		}
	}
	if last, ok := s.LastAccessedAt(); ok && (oldest.IsZero() || last.Before(oldest)) {
		oldest = last
	}
	return oldest
}

// State returns the session's state. Hard-set states (new, killed, cleaned)
// win; otherwise the state is derived from metadata and the process table
// on every call.
func (s *Session) State() State {
	switch s.state {
	case StateNew, StateKilled, StateCleaned:
		return s.state
	}
	switch {
	case s.broken:
		return StateBroken
	case s.Local() && s.Active():
		return StateActive
	case s.Local():
		return StateExited
	default:
		return StateRemote
	}
}

// Local reports whether the session was recorded on this host.
func (s *Session) Local() bool {
	return s.meta.IP != "" && s.meta.IP == s.host.Network.PrimaryIP()
}

// Active reports whether the session's VNC server is running.
func (s *Session) Active() bool {
	if s.broken || !s.Local() {
		return false
	}
	pid, err := proc.ReadPIDFile(s.file(pidFile))
	if err != nil {
		return false
	}
	return s.host.Procs.Alive(pid)
}

// Save writes metadata.yml, creating the session directory if needed.
func (s *Session) Save() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(&s.meta)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp := s.file(metadataFile + ".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.file(metadataFile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (s *Session) ensureDir() error {
	if err := os.MkdirAll(s.Dir(), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return nil
}

// Dir returns the session directory.
func (s *Session) Dir() string {
	return filepath.Join(s.host.Config.SessionPath, s.ID)
}

func (s *Session) file(name string) string {
	return filepath.Join(s.Dir(), name)
}

// ShortID returns the first segment of the session id.
func (s *Session) ShortID() string {
	if i := strings.IndexByte(s.ID, '-'); i > 0 {
		return s.ID[:i]
	}
	return s.ID
}

func (s *Session) Name() string     { return s.meta.Name }
func (s *Session) Password() string { return s.meta.Password }
func (s *Session) IP() string       { return s.meta.IP }
func (s *Session) IPs() []string    { return s.meta.IPs }
func (s *Session) HostName() string { return s.meta.HostName }

// TypeName returns the session's type name; broken sessions have none.
func (s *Session) TypeName() string {
	if s.Type != nil {
		return s.Type.Name
	}
	return s.meta.Type
}

// Display returns the X display number once the VNC helper has reported it.
func (s *Session) Display() (int, bool) {
	if s.meta.Display == nil {
		return 0, false
	}
	return *s.meta.Display, true
}

// VNCPort is 5900 + display, or 0 when the display is unknown.
func (s *Session) VNCPort() int {
	d, ok := s.Display()
	if !ok {
		return 0
	}
	return vncBasePort + d
}

// WebsocketPort is 0 when websocket support is disabled.
func (s *Session) WebsocketPort() int { return s.meta.WebsocketPort }
func (s *Session) WebsocketPID() int  { return s.meta.WebsocketPID }
func (s *Session) GrabberPID() int    { return s.grabberPID }
func (s *Session) CleanerPID() int    { return s.cleanerPID }

// JobID returns the batch scheduler job the session was started under.
func (s *Session) JobID() string {
	if s.meta.Supplementary == nil {
		return ""
	}
	return s.meta.Supplementary.JobID
}

// Extra returns metadata keys not modelled by Metadata.
func (s *Session) Extra() map[string]any { return s.meta.Extra }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastAccessedAt is the modification time of the activity log.
func (s *Session) LastAccessedAt() (time.Time, bool) {
	info, err := os.Stat(s.file(activityLog))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Screenshot returns the path of the latest screenshot, or "".
func (s *Session) Screenshot() string {
	path := s.file(screenshotFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// MarshalJSON renders the session for --json output.
func (s *Session) MarshalJSON() ([]byte, error) {
	out := struct {
		ID             string     `json:"id"`
		Name           string     `json:"name,omitempty"`
		Type           string     `json:"type"`
		State          State      `json:"state"`
		HostName       string     `json:"host_name"`
		IP             string     `json:"ip"`
		Display        *int       `json:"display,omitempty"`
		VNCPort        int        `json:"port,omitempty"`
		WebsocketPort  int        `json:"websocket_port,omitempty"`
		Password       string     `json:"password"`
		CreatedAt      time.Time  `json:"created_at"`
		LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
		Screenshot     string     `json:"screenshot_path,omitempty"`
		JobID          string     `json:"job_id,omitempty"`
	}{
		ID:            s.ID,
		Name:          s.Name(),
		Type:          s.TypeName(),
		State:         s.State(),
		HostName:      s.HostName(),
		IP:            s.IP(),
		Display:       s.meta.Display,
		VNCPort:       s.VNCPort(),
		WebsocketPort: s.WebsocketPort(),
		Password:      s.Password(),
		CreatedAt:     s.createdAt,
		Screenshot:    s.Screenshot(),
		JobID:         s.JobID(),
	}
	if last, ok := s.LastAccessedAt(); ok {
		out.LastAccessedAt = &last
	}
	return json.Marshal(out)
}
