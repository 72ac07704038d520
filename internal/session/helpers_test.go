package session

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deskctl/deskctl/internal/config"
	"github.com/deskctl/deskctl/internal/desktype"
	"github.com/deskctl/deskctl/internal/network"
)

const testIP = "10.0.0.5"

type fakeProcs map[int]bool

func (f fakeProcs) Alive(pid int) bool { return f[pid] }

type testEnv struct {
	host     *Host
	registry *Registry
	types    *desktype.Registry
	procs    fakeProcs
	bin      string
	typeDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	typesDir := filepath.Join(root, "types")
	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0755))

	xterm := filepath.Join(typesDir, "xterm")
	require.NoError(t, os.MkdirAll(xterm, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xterm, "metadata.yml"), []byte("name: xterm\nsummary: Plain xterm\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(xterm, "session.sh"), []byte("#!/bin/bash\nexec xterm\n"), 0755))

	types := desktype.NewRegistry(desktype.Options{
		TypePaths:       []string{typesDir},
		GlobalStatePath: filepath.Join(root, "state", "global"),
		UserStatePath:   filepath.Join(root, "state", "user"),
		Arch:            "x86_64",
		Distro:          "rhel",
	})

	policy := &network.Policy{}
	policy.SetPrimaryIP(testIP)

	cfg := &config.Config{
		Root:             root,
		SessionPath:      filepath.Join(root, "sessions"),
		VNCPasswdProgram: filepath.Join(bin, "vncpasswd"),
		VNCServerProgram: filepath.Join(bin, "vncserver"),
		XRandrProgram:    filepath.Join(bin, "xrandr"),
		Geometry:         "1024x768",
		Timeout:          1,
		SessionEnvPath:   "/usr/bin:/bin",
	}

	procs := fakeProcs{}
	host := &Host{
		Config:  cfg,
		Types:   types,
		Network: policy,
		Procs:   procs,
		Self:    "/bin/true",
	}
	registry, err := NewRegistry(host)
	require.NoError(t, err)

	return &testEnv{
		host:     host,
		registry: registry,
		types:    types,
		procs:    procs,
		bin:      bin,
		typeDir:  xterm,
	}
}

func (e *testEnv) xterm(t *testing.T) *desktype.Type {
	t.Helper()
	ty, err := e.types.Get("xterm")
	require.NoError(t, err)
	return ty
}

// script writes an executable shell script into the fake bin directory.
func (e *testEnv) script(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.bin, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

// writeSession stores raw metadata for id and returns the session dir.
func (e *testEnv) writeSession(t *testing.T, id, metadata string) string {
	t.Helper()
	dir := filepath.Join(e.host.Config.SessionPath, id)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFile), []byte(metadata), 0600))
	return dir
}

// activeSession stores a local session on display whose VNC pid is alive.
func (e *testEnv) activeSession(t *testing.T, id string, display int) *Session {
	t.Helper()
	dir := e.writeSession(t, id, "type: xterm\npassword: abcdefgh\nip: "+testIP+"\nhost_name: node1\ndisplay: "+strconv.Itoa(display)+"\n")
	pid := 40000 + display
	require.NoError(t, os.WriteFile(filepath.Join(dir, pidFile), []byte(strconv.Itoa(pid)+"\n"), 0644))
	e.procs[pid] = true

	s, err := e.registry.Get(id)
	require.NoError(t, err)
	return s
}
