package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/session"
)

const (
	exitedID = "7f2c1a9e-0c4b-4c4e-9d51-1f2a3b4c5d6e"
	brokenID = "0b9d8c7e-6f5a-4b3c-8d2e-1a0f9e8d7c6b"
	remoteID = "3e4f5a6b-7c8d-4e9f-a0b1-c2d3e4f5a6b7"
)

func exitedMetadata(ip string) string {
	return "type: xterm\npassword: abcdefgh\nip: " + ip + "\nhost_name: node1\ndisplay: 3\n" +
		"created_at: \"2024-05-01T10:00:00Z\"\n"
}

func TestGeometryValue(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1024x768", false},
		{"1x1", false},
		{"1024X768", true},
		{"1024x", true},
		{"wide", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var g geometryValue
			err := g.Set(tt.input)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.InvalidSetting))
				assert.Empty(t, g.String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, g.String())
		})
	}
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []setting
		wantErr string
	}{
		{
			name: "desktop and geometry",
			args: []string{"desktop=xfce", "geometry=1280x1024"},
			want: []setting{{"desktop_type", "xfce"}, {"geometry", "1280x1024"}},
		},
		{name: "missing value", args: []string{"desktop"}, wantErr: "missing value: desktop"},
		{name: "empty value", args: []string{"geometry="}, wantErr: "missing value: geometry="},
		{name: "unknown setting", args: []string{"colour=blue"}, wantErr: "unrecognized setting: colour"},
		{name: "bad geometry", args: []string{"geometry=big"}, wantErr: "invalid geometry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSettings(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.InvalidSetting))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateLabel(t *testing.T) {
	assert.Equal(t, "Active", stateLabel(session.StateActive))
	assert.Equal(t, "Exited", stateLabel(session.StateExited))
	assert.Equal(t, "Remote", stateLabel(session.StateRemote))
	assert.Equal(t, "Broken", stateLabel(session.StateBroken))
	assert.Equal(t, "killed", stateLabel(session.StateKilled))
}

func TestListEmpty(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "list")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.run(t, "list", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	stdoutTTY = func() bool { return true }
	out, err = c.run(t, "ls")
	require.NoError(t, err)
	assert.Equal(t, "No desktop sessions found.\n", out)
}

func TestListNonTTYColumns(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	dir := c.addSession(t, exitedID, exitedMetadata(testIP))
	c.addSession(t, brokenID, "")

	out, err := c.run(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)

	var exited, broken []string
	for _, line := range lines {
		cells := strings.Split(line, "\t")
		switch cells[0] {
		case exitedID:
			exited = cells
		case brokenID:
			broken = cells
		}
	}

	require.Len(t, exited, 12)
	assert.Equal(t, []string{exitedID, "xterm", "node1", testIP, "3", "5903", "0", "abcdefgh", "Exited"}, exited[:9])
	assert.Equal(t, "2024-05-01T10:00:00+0000", exited[9])
	assert.Empty(t, exited[10])
	assert.Equal(t, filepath.Join(dir, "session.png"), exited[11])

	require.Len(t, broken, 10)
	assert.Equal(t, "Broken", broken[8])
	assert.NotEmpty(t, broken[9])
}

func TestListJSON(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	c.addSession(t, exitedID, exitedMetadata(testIP))

	out, err := c.run(t, "list", "--json")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, exitedID, got[0]["id"])
}

func TestShow(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	c.addSession(t, exitedID, exitedMetadata(testIP))

	out, err := c.run(t, "show", strings.Split(exitedID, "-")[0])
	require.NoError(t, err)
	assert.Contains(t, out, exitedID)
	assert.Contains(t, out, "abcdefgh")

	_, err = c.run(t, "show", "nope")
	assert.True(t, apperr.Is(err, apperr.SessionNotFound))

	c.addSession(t, brokenID, "")
	_, err = c.run(t, "show", brokenID)
	assert.True(t, apperr.Is(err, apperr.SessionOperation))
}

func TestClean(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	exitedDir := c.addSession(t, exitedID, exitedMetadata(testIP))
	brokenDir := c.addSession(t, brokenID, "")
	remoteDir := c.addSession(t, remoteID, exitedMetadata("10.9.9.9"))

	out, err := c.run(t, "clean")
	require.NoError(t, err)
	assert.Contains(t, out, exitedID+": cleaned\n")
	assert.Contains(t, out, brokenID+": skipping; broken\n")
	assert.Contains(t, out, remoteID+": skipping; not local\n")

	assert.NoDirExists(t, exitedDir)
	assert.DirExists(t, brokenDir)
	assert.DirExists(t, remoteDir)

	out, err = c.run(t, "clean", brokenID)
	require.NoError(t, err)
	assert.Equal(t, brokenID+": cleaned\n", out)
	assert.NoDirExists(t, brokenDir)
}

func TestCleanByDisplay(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	dir := c.addSession(t, exitedID, exitedMetadata(testIP))

	out, err := c.run(t, "clean", ":3")
	require.NoError(t, err)
	assert.Equal(t, exitedID+": cleaned\n", out)
	assert.NoDirExists(t, dir)

	out, err = c.run(t, "clean")
	require.NoError(t, err)
	assert.Equal(t, "No desktop sessions found.\n", out)
}

func TestKillRefusesExited(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	c.addSession(t, exitedID, exitedMetadata(testIP))

	_, err := c.run(t, "kill", exitedID)
	require.Error(t, err)

	_, err = c.run(t, "kill", ":9")
	assert.True(t, apperr.Is(err, apperr.SessionNotFound))
}

func TestStartRequiresVNCPrograms(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")

	_, err := c.run(t, "start", "xterm")
	assert.True(t, apperr.Is(err, apperr.SessionOperation))
}

func TestStartRejectsBadGeometry(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "start", "--geometry", "huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid geometry")
}

func TestAvail(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: |\n  Plain\n  xterm\nurl: https://example.org/xterm\n")
	c.addType(t, ".hidden", "summary: Internal\n")

	out, err := c.run(t, "avail")
	require.NoError(t, err)
	assert.Equal(t, "xterm\tPlain xterm\thttps://example.org/xterm\tUnverified\n", out)

	out, err = c.run(t, "av", "--json")
	require.NoError(t, err)
	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "xterm", got[0]["name"])
	assert.Equal(t, false, got[0]["verified"])
}

func TestAvailEmptyTTY(t *testing.T) {
	c := newCLI(t)
	stdoutTTY = func() bool { return true }

	out, err := c.run(t, "avail")
	require.NoError(t, err)
	assert.Equal(t, "No desktop types found.\n", out)
}

func TestSet(t *testing.T) {
	c := newCLI(t)
	c.addType(t, "xterm", "summary: Plain xterm\n")
	c.addType(t, "xfce", "summary: Xfce\n")

	out, err := c.run(t, "set", "desktop=xfce", "geometry=1280x1024")
	require.NoError(t, err)
	assert.Equal(t, "Default desktop type: xfce\n    Default geometry: 1280x1024\n", out)

	data, err := os.ReadFile(c.userFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "desktop_type: xfce")
	assert.Contains(t, string(data), "geometry: 1280x1024")
	assert.Contains(t, string(data), "session_path: "+c.sessions)

	out, err = c.run(t, "set")
	require.NoError(t, err)
	assert.Contains(t, out, "Default desktop type: xfce")
}

func TestSetRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		kind apperr.Kind
	}{
		{"unknown type", []string{"desktop=kde"}, apperr.UnknownType},
		{"unknown setting", []string{"colour=blue"}, apperr.InvalidSetting},
		{"bad geometry", []string{"geometry=1024"}, apperr.InvalidSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCLI(t)
			c.addType(t, "xterm", "summary: Plain xterm\n")
			before, err := os.ReadFile(c.userFile)
			require.NoError(t, err)

			_, err = c.run(t, append([]string{"set"}, tt.args...)...)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)

			after, err := os.ReadFile(c.userFile)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestWritable(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, writable(filepath.Join(dir, "etc", "config.yml")))

	if os.Geteuid() == 0 {
		t.Skip("root can write anywhere")
	}
	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.MkdirAll(locked, 0555))
	assert.False(t, writable(filepath.Join(locked, "config.yml")))
}

func TestCleanerRequiresEnvironment(t *testing.T) {
	c := newCLI(t)
	unsetenv(t, "SESSION_VNC_PID", "SESSION_DIR")

	_, err := c.run(t, session.CleanerCommand)
	assert.True(t, apperr.Is(err, apperr.InvalidSetting))
}

func TestHelpersHidden(t *testing.T) {
	for _, name := range []string{session.CleanerCommand, session.GrabberCommand} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.True(t, cmd.Hidden, name)
	}
}

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}
