package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/desktype"
)

// Registry finds sessions stored under the configured session path.
type Registry struct {
	host *Host
	dir  string
}

// NewRegistry creates the session registry, creating the session directory
// if needed.
func NewRegistry(h *Host) (*Registry, error) {
	dir := h.Config.SessionPath
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Registry{host: h, dir: dir}, nil
}

// New creates an unstarted session of type t.
func (r *Registry) New(t *desktype.Type, name string) *Session {
	return New(r.host, t, name)
}

// Get loads a session by full id or by the first segment of its id.
func (r *Registry) Get(id string) (*Session, error) {
	if !validID(id) {
		return nil, apperr.New(apperr.SessionNotFound, "unknown session: %s", id)
	}
	if r.exists(id) {
		return load(r.host, id), nil
	}

	ids, err := r.ids()
	if err != nil {
		return nil, err
	}
	var match string
	for _, candidate := range ids {
		short := candidate
		if i := strings.IndexByte(candidate, '-'); i > 0 {
			short = candidate[:i]
		}
		if short != id {
			continue
		}
		if match != "" {
			return nil, apperr.New(apperr.SessionNotFound, "ambiguous session id: %s", id)
		}
		match = candidate
	}
	if match == "" {
		return nil, apperr.New(apperr.SessionNotFound, "unknown session: %s", id)
	}
	return load(r.host, match), nil
}

// validID reports whether id names a single entry inside the sessions
// directory.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return false
	}
	return filepath.Base(id) == id
}

// Resolve accepts an id, a short id or a ":N" display reference. Display
// references match active local sessions, and exited ones too when
// includeExited is set.
func (r *Registry) Resolve(ref string, includeExited bool) (*Session, error) {
	if d, ok := strings.CutPrefix(ref, ":"); ok {
		display, err := strconv.Atoi(d)
		if err != nil {
			return nil, apperr.New(apperr.SessionNotFound, "invalid display: %s", ref)
		}
		return r.FindByDisplay(display, includeExited)
	}
	return r.Get(ref)
}

// FindByDisplay returns the local session on display. Only active sessions
// match unless includeExited is set.
func (r *Registry) FindByDisplay(display int, includeExited bool) (*Session, error) {
	sessions, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		d, ok := s.Display()
		if !ok || d != display || !s.Local() {
			continue
		}
		if includeExited || s.Active() {
			return s, nil
		}
	}
	return nil, apperr.New(apperr.SessionNotFound, "no session on display :%d", display)
}

// List returns all stored sessions, including broken ones, ordered by
// creation time.
func (r *Registry) List() ([]*Session, error) {
	ids, err := r.ids()
	if err != nil {
		return nil, err
	}
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sessions = append(sessions, load(r.host, id))
	}
	sortByCreation(sessions)
	return sessions, nil
}

// Dir returns the session storage directory
func (r *Registry) Dir() string {
	return r.dir
}

// ids lists the non-empty session directories.
func (r *Registry) ids() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && r.exists(entry.Name()) {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// exists reports whether id names a non-empty session directory.
func (r *Registry) exists(id string) bool {
	entries, err := os.ReadDir(filepath.Join(r.dir, id))
	return err == nil && len(entries) > 0
}

func sortByCreation(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt().Before(sessions[j].CreatedAt())
	})
}
