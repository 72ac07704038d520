package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/session"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show DESKTOP",
	Short: "Show information about a desktop session",
	Long: `Display the details of a desktop session: its type, the host name and IP
address to reach it on, the X11 display number, the VNC port and the
password, followed by instructions for connecting to it.

DESKTOP is a session identity, the first segment of one, or a display number
prefixed with ':', e.g. ':1'.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output the session as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	s, err := a.sessions.Resolve(args[0], true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		return writeJSON(out, s)
	}
	if s.State() == session.StateBroken {
		return apperr.New(apperr.SessionOperation, "session %s is broken", s.ID)
	}

	tty := stdoutTTY()
	printDetails(out, s, tty)
	if tty {
		_, _ = fmt.Fprint(out, accessDetails(cmd.Context(), a, s))
	}
	return nil
}
