package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deskctl/deskctl/internal/logging"
)

var (
	cfgFile string
	debug   bool

	logger = zap.NewNop()
)

// Debug prints a message if debug mode is enabled
func Debug(format string, args ...interface{}) {
	if debug {
		logger.Sugar().Debugf(format, args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "deskctl - interactive GUI desktop sessions",
	Long: `deskctl manages interactive VNC desktop sessions on shared compute hosts.

Start a desktop session:
  deskctl start
  deskctl start xfce --geometry 1280x1024

List sessions:
  deskctl list

Manage sessions:
  deskctl show <session>
  deskctl kill <session>
  deskctl clean

A <session> is a session identity, the first segment of one, or a display
number prefixed with ':', e.g. ':1'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	// Persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/deskctl/config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initLogging(cmd *cobra.Command, args []string) error {
	// Set debug env var for subpackages and detached helpers
	if debug {
		_ = os.Setenv(logging.DebugEnv, "1")
	} else if logging.DebugEnabled() {
		debug = true
	}
	logger = logging.NewCLI(debug)
	Debug("deskctl %s", cmd.CommandPath())
	return nil
}
