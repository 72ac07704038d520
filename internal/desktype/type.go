// Package desktype discovers desktop type definitions on disk and tracks
// whether each has been verified on this host.
package desktype

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/verify"
)

// ScriptRunner executes verify/prepare scripts. *verify.Runner satisfies it.
type ScriptRunner interface {
	Run(ctx context.Context, script, name, op string) (verify.Outcome, error)
	LogPath(name, op string) string
}

// Metadata mirrors a type's metadata.yml.
type Metadata struct {
	Name    string   `yaml:"name"`
	Summary string   `yaml:"summary"`
	URL     string   `yaml:"url"`
	Default bool     `yaml:"default"`
	Arch    []string `yaml:"arch"`
	Hidden  bool     `yaml:"hidden"`
}

// Type is a named desktop environment definition.
type Type struct {
	Name    string
	Summary string
	URL     string
	Default bool
	Arch    []string
	Hidden  bool
	Dir     string

	distro         string
	globalStateDir string
	userStateDir   string
	privileged     bool
}

// SessionScript is copied into each session directory and run by the VNC
// helper to start the desktop.
func (t *Type) SessionScript() string {
	return filepath.Join(t.Dir, "session.sh")
}

// LaunchScript runs a user script inside a session.
func (t *Type) LaunchScript() string {
	return filepath.Join(t.Dir, "script.sh")
}

// AppScript launches an application inside a session.
func (t *Type) AppScript() string {
	return filepath.Join(t.Dir, "app.sh")
}

// Scriptable reports whether the type can run a post-init user script.
func (t *Type) Scriptable() bool {
	return fileExists(t.LaunchScript())
}

// LaunchesApps reports whether the type can launch applications.
func (t *Type) LaunchesApps() bool {
	return fileExists(t.AppScript())
}

// SupportsArch reports whether the type runs on arch. A type without an
// arch list supports everything.
func (t *Type) SupportsArch(arch string) bool {
	if len(t.Arch) == 0 {
		return true
	}
	for _, a := range t.Arch {
		if a == arch || normalizeArch(a) == arch {
			return true
		}
	}
	return false
}

// Verified reports the persisted verification status.
func (t *Type) Verified() bool {
	st, ok := readState(t.stateFiles()...)
	return ok && st.Verified
}

// Verify runs the verify script unless the type is already verified and
// force is false. The outcome is persisted to the caller's state dir. A
// failing script yields an unverified outcome, not an error.
func (t *Type) Verify(ctx context.Context, runner ScriptRunner, force bool) (verify.Outcome, error) {
	if !force && t.Verified() {
		return verify.Outcome{Succeeded: true}, nil
	}

	outcome, err := runner.Run(ctx, t.script("verify"), t.Name, "verify")
	if err != nil {
		return outcome, err
	}
	if err := writeState(t.stateDir(), State{Verified: outcome.Verified()}); err != nil {
		return outcome, fmt.Errorf("failed to record verification of %s: %w", t.Name, err)
	}
	return outcome, nil
}

// Prepare runs the prepare script unless the type is already verified and
// force is false. Success marks the type verified.
func (t *Type) Prepare(ctx context.Context, runner ScriptRunner, force bool) error {
	if !force && t.Verified() {
		return nil
	}

	outcome, err := runner.Run(ctx, t.script("prepare"), t.Name, "prepare")
	if err != nil {
		return err
	}
	if !outcome.Succeeded {
		return apperr.New(apperr.TypeOperation, "unable to prepare desktop type '%s'; see: %s",
			t.Name, runner.LogPath(t.Name, "prepare"))
	}
	if err := writeState(t.stateDir(), State{Verified: true}); err != nil {
		return fmt.Errorf("failed to record preparation of %s: %w", t.Name, err)
	}
	return nil
}

// MarshalJSON renders the type for --json output.
func (t *Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string `json:"name"`
		Summary  string `json:"summary"`
		URL      string `json:"url"`
		Default  bool   `json:"default"`
		Verified bool   `json:"verified"`
	}{t.Name, t.Summary, t.URL, t.Default, t.Verified()})
}

// script picks the distro-specific script for op.
func (t *Type) script(op string) string {
	if t.distro == "" || t.distro == "rhel" {
		return filepath.Join(t.Dir, op+".sh")
	}
	return filepath.Join(t.Dir, op+"."+t.distro+".sh")
}

func (t *Type) stateDir() string {
	if t.privileged {
		return t.globalStateDir
	}
	return t.userStateDir
}

func (t *Type) stateFiles() []string {
	files := []string{filepath.Join(t.globalStateDir, stateFile)}
	if !t.privileged {
		files = append(files, filepath.Join(t.userStateDir, stateFile))
	}
	return files
}

// HostArch returns the running architecture in the naming used by type
// metadata (x86_64, aarch64, ...).
func HostArch() string {
	return normalizeArch(runtime.GOARCH)
}

func normalizeArch(a string) string {
	switch a {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	default:
		return a
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
