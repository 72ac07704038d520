package session

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskctl/deskctl/internal/proc"
)

// sleeper starts a long-running child and reaps it in the background. The
// returned channel closes once it has exited.
func sleeper(t *testing.T) (int, <-chan struct{}) {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-done
	})
	return cmd.Process.Pid, done
}

// unsetenv removes keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

// switchTable reports every pid alive until switched off. It is safe for
// concurrent use.
type switchTable struct{ alive atomic.Bool }

func (s *switchTable) Alive(int) bool { return s.alive.Load() }

func TestCleanerEnvRoundTrip(t *testing.T) {
	want := CleanerEnv{
		VNCPID: 1234,
		PIDs:   []int{55, 66},
		Dir:    "/tmp/sessions/abc",
		Poll:   250 * time.Millisecond,
		Grace:  2 * time.Second,
	}
	for _, kv := range want.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}

	got, err := LoadCleanerEnv()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCleanerEnvDefaults(t *testing.T) {
	t.Setenv("SESSION_VNC_PID", "9")
	t.Setenv("SESSION_DIR", "/tmp/x")
	unsetenv(t, "SESSION_PIDS", "SESSION_POLL_INTERVAL", "SESSION_KILL_GRACE")

	got, err := LoadCleanerEnv()
	require.NoError(t, err)
	assert.Empty(t, got.PIDs)
	assert.Equal(t, 5*time.Second, got.Poll)
	assert.Equal(t, 5*time.Second, got.Grace)
}

func TestCleanerEnvRequired(t *testing.T) {
	unsetenv(t, "SESSION_VNC_PID", "SESSION_DIR")

	_, err := LoadCleanerEnv()
	assert.Error(t, err)
}

func TestGrabberEnvRoundTrip(t *testing.T) {
	want := GrabberEnv{Dir: "/tmp/s", Display: 4, VNCPID: 77, Interval: 30 * time.Second}
	for _, kv := range want.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		t.Setenv(k, v)
	}

	got, err := LoadGrabberEnv()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDetectJobID(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "")
	t.Setenv("PBS_JOBID", "")
	t.Setenv("JOB_ID", "")
	assert.Empty(t, DetectJobID())

	t.Setenv("JOB_ID", "300")
	assert.Equal(t, "300", DetectJobID())

	t.Setenv("PBS_JOBID", "12.pbs")
	assert.Equal(t, "12.pbs", DetectJobID())

	t.Setenv("SLURM_JOB_ID", "4")
	assert.Equal(t, "4", DetectJobID())
}

func TestRunCleaner(t *testing.T) {
	dir := t.TempDir()
	pwFile := filepath.Join(dir, passwordFile)
	require.NoError(t, os.WriteFile(pwFile, []byte("secret"), 0600))

	vncPID, vncDone := sleeper(t)
	auxPID, auxDone := sleeper(t)

	env := CleanerEnv{
		VNCPID: vncPID,
		PIDs:   []int{auxPID},
		Dir:    dir,
		Poll:   10 * time.Millisecond,
		Grace:  time.Second,
	}

	result := make(chan error, 1)
	go func() { result <- RunCleaner(context.Background(), env, proc.OSTable{}, nil) }()

	select {
	case <-result:
		t.Fatal("cleaner returned while the vnc server was running")
	case <-time.After(100 * time.Millisecond):
	}
	assert.FileExists(t, pwFile)

	require.NoError(t, syscall.Kill(vncPID, syscall.SIGTERM))
	<-vncDone

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cleaner did not finish")
	}

	select {
	case <-auxDone:
	case <-time.After(5 * time.Second):
		t.Fatal("auxiliary process survived")
	}
	assert.NoFileExists(t, pwFile)
}

func TestRunCleanerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := CleanerEnv{VNCPID: 1, Dir: t.TempDir(), Poll: 10 * time.Millisecond}
	err := RunCleaner(ctx, env, fakeProcs{1: true}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunGrabberStopsWithServer(t *testing.T) {
	orig := CapturePrograms
	CapturePrograms = []string{"/nonexistent/xwd", "/nonexistent/xwdtopnm", "/nonexistent/pnmtopng"}
	t.Cleanup(func() { CapturePrograms = orig })

	procs := &switchTable{}
	procs.alive.Store(true)
	env := GrabberEnv{Dir: t.TempDir(), Display: 1, VNCPID: 500, Interval: 10 * time.Millisecond}

	result := make(chan error, 1)
	go func() { result <- RunGrabber(context.Background(), env, procs, nil) }()

	time.Sleep(50 * time.Millisecond)
	procs.alive.Store(false)

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("grabber did not stop")
	}
	assert.NoFileExists(t, filepath.Join(env.Dir, screenshotFile))
}
