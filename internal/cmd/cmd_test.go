package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/deskctl/deskctl/internal/config"
)

const testIP = "10.0.0.5"

// cli is an isolated installation: its own root, user config, type and
// session directories.
type cli struct {
	root     string
	userFile string
	sessions string
	types    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	root := t.TempDir()
	c := &cli{
		root:     root,
		userFile: filepath.Join(root, "home", "config.yml"),
		sessions: filepath.Join(root, "sessions"),
		types:    filepath.Join(root, "etc", "types"),
	}

	libexec := filepath.Join(root, "libexec")
	require.NoError(t, os.MkdirAll(libexec, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(libexec, "get-primary-ip"), []byte("#!/bin/sh\necho "+testIP+"\n"), 0755))
	require.NoError(t, os.MkdirAll(c.types, 0755))

	c.writeConfig(t, "")
	t.Setenv(config.RootEnv, root)

	prevCfg, prevTTY := cfgFile, stdoutTTY
	t.Cleanup(func() {
		cfgFile, stdoutTTY = prevCfg, prevTTY
		resetFlags(rootCmd)
	})
	stdoutTTY = func() bool { return false }
	return c
}

// writeConfig writes the user config, pinning every per-user path inside
// the test root. extra is appended verbatim.
func (c *cli) writeConfig(t *testing.T, extra string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(c.userFile), 0755))
	body := "session_path: " + c.sessions + "\n" +
		"user_state_path: " + filepath.Join(c.root, "state") + "\n" +
		"user_log_path: " + filepath.Join(c.root, "log") + "\n" +
		"vnc_passwd_program: " + filepath.Join(c.root, "bin", "vncpasswd") + "\n" +
		"websockify_paths: [" + filepath.Join(c.root, "bin", "websockify") + "]\n" +
		extra
	require.NoError(t, os.WriteFile(c.userFile, []byte(body), 0644))
}

// addType installs a desktop type with the given metadata.yml body.
func (c *cli) addType(t *testing.T, name, metadata string) {
	t.Helper()
	dir := filepath.Join(c.types, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.yml"), []byte(metadata), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.sh"), []byte("#!/bin/bash\n"), 0755))
}

// markVerified records verification state in the global state
// directory, which is consulted whether or not the tests run as root.
func (c *cli) markVerified(t *testing.T, name string) {
	t.Helper()
	dir := filepath.Join(c.root, "var", "lib", "desktop", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.yml"), []byte("verified: true\n"), 0644))
}

// addSession writes a session directory. An empty metadata leaves the
// directory without metadata.yml, which lists as broken.
func (c *cli) addSession(t *testing.T, id, metadata string) string {
	t.Helper()
	dir := filepath.Join(c.sessions, id)
	require.NoError(t, os.MkdirAll(dir, 0700))
	if metadata == "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "session.log"), []byte("failed\n"), 0600))
	} else {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.yml"), []byte(metadata), 0600))
	}
	return dir
}

// run executes the root command with args and returns what it printed.
func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", c.userFile}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		switch v := f.Value.(type) {
		case *geometryValue:
			*v = ""
		case pflag.SliceValue:
			_ = v.Replace(nil)
		default:
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
