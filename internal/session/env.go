package session

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"

	"github.com/deskctl/deskctl/internal/proc"
)

// CleanerEnv is the environment contract of the detached cleaner.
type CleanerEnv struct {
	VNCPID int           `envconfig:"SESSION_VNC_PID" required:"true"`
	PIDs   []int         `envconfig:"SESSION_PIDS"`
	Dir    string        `envconfig:"SESSION_DIR" required:"true"`
	Poll   time.Duration `envconfig:"SESSION_POLL_INTERVAL" default:"5s"`
	Grace  time.Duration `envconfig:"SESSION_KILL_GRACE" default:"5s"`
}

// LoadCleanerEnv decodes the cleaner contract from the process environment.
func LoadCleanerEnv() (CleanerEnv, error) {
	var env CleanerEnv
	err := envconfig.Process("", &env)
	return env, err
}

// Environ encodes the contract for a child process.
func (e CleanerEnv) Environ() []string {
	out := []string{
		"SESSION_VNC_PID=" + strconv.Itoa(e.VNCPID),
		"SESSION_DIR=" + e.Dir,
	}
	if len(e.PIDs) > 0 {
		pids := make([]string, len(e.PIDs))
		for i, pid := range e.PIDs {
			pids[i] = strconv.Itoa(pid)
		}
		out = append(out, "SESSION_PIDS="+strings.Join(pids, ","))
	}
	if e.Poll > 0 {
		out = append(out, "SESSION_POLL_INTERVAL="+e.Poll.String())
	}
	if e.Grace > 0 {
		out = append(out, "SESSION_KILL_GRACE="+e.Grace.String())
	}
	return out
}

// GrabberEnv is the environment contract of the detached screenshot grabber.
type GrabberEnv struct {
	Dir      string        `envconfig:"DESKCTL_SESSION_DIR" required:"true"`
	Display  int           `envconfig:"DESKCTL_DISPLAY" required:"true"`
	VNCPID   int           `envconfig:"DESKCTL_VNC_PID"`
	Interval time.Duration `envconfig:"DESKCTL_GRAB_INTERVAL" default:"60s"`
}

// LoadGrabberEnv decodes the grabber contract from the process environment.
func LoadGrabberEnv() (GrabberEnv, error) {
	var env GrabberEnv
	err := envconfig.Process("", &env)
	return env, err
}

// Environ encodes the contract for a child process.
func (e GrabberEnv) Environ() []string {
	out := []string{
		"DESKCTL_SESSION_DIR=" + e.Dir,
		"DESKCTL_DISPLAY=" + strconv.Itoa(e.Display),
	}
	if e.VNCPID > 0 {
		out = append(out, "DESKCTL_VNC_PID="+strconv.Itoa(e.VNCPID))
	}
	if e.Interval > 0 {
		out = append(out, "DESKCTL_GRAB_INTERVAL="+e.Interval.String())
	}
	return out
}

type schedulerEnv struct {
	Slurm string `envconfig:"SLURM_JOB_ID"`
	PBS   string `envconfig:"PBS_JOBID"`
	SGE   string `envconfig:"JOB_ID"`
}

// DetectJobID returns the id of the batch scheduler job deskctl runs
// under (Slurm, PBS or SGE), or "".
func DetectJobID() string {
	var env schedulerEnv
	if err := envconfig.Process("", &env); err != nil {
		return ""
	}
	for _, id := range []string{env.Slurm, env.PBS, env.SGE} {
		if id != "" {
			return id
		}
	}
	return ""
}

// childEnv is the environment every process spawned for a session starts
// from.
func (s *Session) childEnv(override bool) []string {
	if override {
		return proc.MinimalEnv(os.Environ(), s.host.Config.SessionEnvPath)
	}
	return proc.CleanEnv(os.Environ())
}

// workDir is the directory session processes start in: the user's home,
// or / when it is unavailable.
func workDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "/"
	}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		return "/"
	}
	return home
}
