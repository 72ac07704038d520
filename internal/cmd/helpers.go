package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/logging"
	"github.com/deskctl/deskctl/internal/proc"
	"github.com/deskctl/deskctl/internal/session"
)

const cleanerLog = "cleaner.log"

// The detached helpers re-invoke this binary. They take their parameters
// from the environment and are not meant to be run by hand.
var cleanerCmd = &cobra.Command{
	Use:    session.CleanerCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runCleaner,
}

var grabberCmd = &cobra.Command{
	Use:    session.GrabberCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runGrabber,
}

func init() {
	rootCmd.AddCommand(cleanerCmd)
	rootCmd.AddCommand(grabberCmd)
}

func runCleaner(cmd *cobra.Command, args []string) error {
	env, err := session.LoadCleanerEnv()
	if err != nil {
		return apperr.Wrap(apperr.InvalidSetting, err, "invalid cleaner environment")
	}
	log := helperLogger(filepath.Join(env.Dir, cleanerLog))
	defer func() { _ = log.Sync() }()

	ctx, stop := helperContext(cmd.Context())
	defer stop()

	log.Info("watching session", zap.String("dir", env.Dir), zap.Int("vnc_pid", env.VNCPID))
	if err := session.RunCleaner(ctx, env, proc.OSTable{}, log); err != nil {
		log.Error("cleaner failed", zap.Error(err))
		return err
	}
	return nil
}

func runGrabber(cmd *cobra.Command, args []string) error {
	env, err := session.LoadGrabberEnv()
	if err != nil {
		return apperr.Wrap(apperr.InvalidSetting, err, "invalid grabber environment")
	}
	// The session's grabber.log is already attached to stderr.
	log := helperLogger("stderr")
	defer func() { _ = log.Sync() }()

	ctx, stop := helperContext(cmd.Context())
	defer stop()

	log.Info("grabbing screenshots", zap.Int("display", env.Display), zap.Duration("interval", env.Interval))
	return session.RunGrabber(ctx, env, proc.OSTable{}, log)
}

func helperLogger(path string) *zap.Logger {
	l, err := logging.New(logging.HelperConfig(path))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// helperContext is cancelled when the helper is asked to stop.
func helperContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}
