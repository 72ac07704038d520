package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/deskctl/deskctl/internal/apperr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()

	cfg, err := load(root, home, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "/usr/bin/vncpasswd", cfg.VNCPasswdProgram)
	assert.Equal(t, filepath.Join(root, "libexec", "vncserver"), cfg.VNCServerProgram)
	assert.Equal(t, []string{filepath.Join(root, "etc", "types")}, cfg.TypePaths)
	assert.Equal(t, filepath.Join(home, ".cache", "deskctl", "sessions"), cfg.SessionPath)
	assert.Equal(t, filepath.Join(root, "var", "lib", "desktop"), cfg.GlobalStatePath)
	assert.Equal(t, filepath.Join(home, ".local", "share", "deskctl", "state"), cfg.UserStatePath)
	assert.Equal(t, "1024x768", cfg.Geometry)
	assert.True(t, cfg.SessionEnvOverride)
	assert.Equal(t, 2, cfg.Timeout)
	assert.Equal(t, 60*time.Second, cfg.GrabInterval)
	assert.Empty(t, cfg.AccessHosts)
	assert.Empty(t, cfg.DesktopType)

	assert.Equal(t, filepath.Join(root, "etc", "config.yml"), cfg.GlobalFile())
	assert.Equal(t, filepath.Join(home, ".config", "deskctl", "config.yml"), cfg.UserFile())
}

func TestLoadUserOverridesGlobal(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()

	writeFile(t, filepath.Join(root, "etc", "config.yml"), `
geometry: 800x600
desktop_type: gnome
access_hosts:
  - 10.1.0.4
`)
	writeFile(t, filepath.Join(home, ".config", "deskctl", "config.yml"), `
geometry: 1920x1080
grab_interval: 30s
type_paths:
  - /srv/types
  - ~/types
`)

	cfg, err := load(root, home, "")
	require.NoError(t, err)

	assert.Equal(t, "1920x1080", cfg.Geometry)
	assert.Equal(t, "gnome", cfg.DesktopType)
	assert.Equal(t, []string{"10.1.0.4"}, cfg.AccessHosts)
	assert.Equal(t, 30*time.Second, cfg.GrabInterval)
	assert.Equal(t, []string{"/srv/types", filepath.Join(home, "types")}, cfg.TypePaths)
}

func TestLoadExplicitUserFile(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	custom := filepath.Join(t.TempDir(), "custom.yml")
	writeFile(t, custom, "timeout: 9\n")

	cfg, err := load(root, home, custom)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Timeout)
	assert.Equal(t, 9*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, custom, cfg.UserFile())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DESKCTL_GEOMETRY", "1280x1024")

	cfg, err := load(t.TempDir(), t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "1280x1024", cfg.Geometry)
}

func TestLoadInvalidFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "etc", "config.yml"), "geometry: [unclosed\n")

	_, err := load(root, t.TempDir(), "")
	assert.Error(t, err)
}

func TestValidateGeometry(t *testing.T) {
	tests := []struct {
		geometry string
		valid    bool
	}{
		{"1024x768", true},
		{"1x1", true},
		{"1024X768", false},
		{"1024x", false},
		{"x768", false},
		{"big", false},
		{"", false},
		{"1024x768 ", false},
	}

	for _, tt := range tests {
		t.Run(tt.geometry, func(t *testing.T) {
			err := ValidateGeometry(tt.geometry)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.InvalidSetting))
		})
	}
}

func TestSaveKey(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	cfg, err := load(root, home, "")
	require.NoError(t, err)

	require.NoError(t, cfg.SaveKey("geometry", "800x600", false))
	require.NoError(t, cfg.SaveKey("desktop_type", "xterm", false))
	require.NoError(t, cfg.SaveKey("geometry", "640x480", true))

	data, err := os.ReadFile(cfg.UserFile())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "800x600", doc["geometry"])
	assert.Equal(t, "xterm", doc["desktop_type"])

	reloaded, err := load(root, home, "")
	require.NoError(t, err)
	assert.Equal(t, "800x600", reloaded.Geometry)
	assert.Equal(t, "xterm", reloaded.DesktopType)

	data, err = os.ReadFile(cfg.GlobalFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "640x480")
}

func TestResolveRootFromEnv(t *testing.T) {
	t.Setenv(RootEnv, "/srv/deskctl")
	assert.Equal(t, "/srv/deskctl", ResolveRoot())
}

func TestTimeoutDurationFallback(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 2*time.Second, cfg.TimeoutDuration())
}

func TestAccessSummaryHost(t *testing.T) {
	assert.Equal(t, "gateway", (&Config{AccessHost: "gateway", AccessIP: "1.2.3.4"}).AccessSummaryHost())
	assert.Equal(t, "1.2.3.4", (&Config{AccessIP: "1.2.3.4"}).AccessSummaryHost())
}

func TestFunctional(t *testing.T) {
	dir := t.TempDir()
	passwd := filepath.Join(dir, "vncpasswd")
	server := filepath.Join(dir, "vncserver")
	writeFile(t, passwd, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(passwd, 0755))

	cfg := &Config{VNCPasswdProgram: passwd, VNCServerProgram: server}
	assert.False(t, cfg.Functional())

	writeFile(t, server, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(server, 0755))
	assert.True(t, cfg.Functional())
}
