package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/session"
	"github.com/deskctl/deskctl/internal/ui"
)

var (
	startName             string
	startGeometry         geometryValue
	startOverrideEnv      bool
	startApps             []string
	startScript           string
	startKillOnScriptExit bool
	startJSON             bool
)

var startCmd = &cobra.Command{
	Use:     "start [TYPE]",
	Aliases: []string{"s", "st"},
	Short:   "Start an interactive desktop session",
	Long: `Start a new interactive desktop session and display details about it.

TYPE defaults to the configured desktop type. Available desktop types can be
shown using the 'avail' command; a type must be verified before it is used.

The geometry defaults to the configured value and may be overridden with
--geometry, given as WIDTHxHEIGHT, e.g. 1280x1024.

Examples:
  deskctl start
  deskctl start xfce --geometry 1280x1024
  deskctl start gnome --app "firefox https://example.com"
  deskctl start xterm --script "~/run.sh --fast" --kill-on-script-exit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startName, "name", "n", "", "name the session so it is easier to identify")
	startCmd.Flags().VarP(&startGeometry, "geometry", "g", "desktop geometry (default from config)")
	startCmd.Flags().BoolVar(&startOverrideEnv, "override-env", true, "start from a minimal environment (--override-env=false keeps yours)")
	startCmd.Flags().StringArrayVarP(&startApps, "app", "a", nil, `launch "BINARY [ARGUMENTS...]" in the session (repeatable)`)
	startCmd.Flags().StringVarP(&startScript, "script", "s", "", `run "SCRIPT [ARGUMENTS...]" in a terminal inside the session`)
	startCmd.Flags().BoolVar(&startKillOnScriptExit, "kill-on-script-exit", false, "end the session when the --script exits")
	startCmd.Flags().BoolVar(&startJSON, "json", false, "output the session as JSON")

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if !a.cfg.Functional() {
		return apperr.New(apperr.SessionOperation, "system-level prerequisites not present")
	}

	var typeName string
	if len(args) > 0 {
		typeName = args[0]
	}
	t, err := a.resolveType(typeName)
	if err != nil {
		return err
	}
	if !t.Verified() {
		return apperr.New(apperr.UnverifiedType, "desktop type '%s' has not been verified", t.Name)
	}
	if startKillOnScriptExit && startScript == "" {
		return apperr.New(apperr.InvalidSetting, "--kill-on-script-exit requires --script")
	}

	overrideEnv := a.cfg.SessionEnvOverride
	if cmd.Flags().Changed("override-env") {
		overrideEnv = startOverrideEnv
	}
	opts := session.StartOptions{
		Geometry:         string(startGeometry),
		KillOnScriptExit: startKillOnScriptExit,
		OverrideEnv:      overrideEnv,
		PostInitScript:   startScript,
		Apps:             startApps,
	}

	s := a.sessions.New(t, startName)
	Debug("Starting session %s (type %s, geometry %q)", s.ID, t.Name, opts.Geometry)

	out := cmd.OutOrStdout()
	if startJSON {
		if err := s.Start(cmd.Context(), opts); err != nil {
			return err
		}
		return writeJSON(out, s)
	}

	tty := stdoutTTY()
	_, _ = fmt.Fprintf(out, "Starting a '%s' desktop session:\n\n", ui.TypeStyle.Render(t.Name))
	err = ui.Step(out, "Starting session", tty, func() error {
		return s.Start(cmd.Context(), opts)
	})
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "A '%s' desktop session has been started.\n", ui.TypeStyle.Render(t.Name))
	printDetails(out, s, tty)
	if tty {
		_, _ = fmt.Fprint(out, accessSummary(cmd.Context(), a, s))
	}
	return nil
}
