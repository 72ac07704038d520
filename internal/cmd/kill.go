package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/ui"
)

var killJSON bool

var killCmd = &cobra.Command{
	Use:     "kill DESKTOP",
	Aliases: []string{"k"},
	Short:   "Terminate an interactive desktop session",
	Long: `Instruct an active interactive desktop session to terminate.

DESKTOP is a session identity, the first segment of one, or a display number
prefixed with ':', e.g. ':1'. Only sessions running on this host can be
terminated. A terminated session's directory is removed unless
DESKCTL_KEEP_KILLED is set; --debug only raises log verbosity.`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func init() {
	killCmd.Flags().BoolVar(&killJSON, "json", false, "output the session as JSON")
	rootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	s, err := a.sessions.Resolve(args[0], false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if killJSON {
		if err := s.Kill(cmd.Context()); err != nil {
			return err
		}
		return writeJSON(out, s)
	}

	_, _ = fmt.Fprintf(out, "Killing desktop session %s:\n\n", ui.IdentityStyle.Render(s.ID))
	err = ui.Step(out, "Terminating session", stdoutTTY(), func() error {
		return s.Kill(cmd.Context())
	})
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Desktop session '%s' has been terminated.\n\n", ui.IdentityStyle.Render(s.ID))
	return nil
}
