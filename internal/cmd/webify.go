package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/ui"
)

var webifyCmd = &cobra.Command{
	Use:     "webify DESKTOP",
	Aliases: []string{"web"},
	Short:   "Start web access support for an active desktop session",
	Long: `Start the websocket proxy and screenshot grabber for an active desktop
session that was started without them, or whose proxy has stopped.

DESKTOP is a session identity, the first segment of one, or a display number
prefixed with ':', e.g. ':1'.`,
	Args: cobra.ExactArgs(1),
	RunE: runWebify,
}

func init() {
	rootCmd.AddCommand(webifyCmd)
}

func runWebify(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	s, err := a.sessions.Resolve(args[0], false)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Starting web access support for desktop session %s:\n\n", ui.IdentityStyle.Render(s.ID))
	err = ui.Step(out, "Starting web access support", stdoutTTY(), s.StartWebSupport)
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return err
	}
	Debug("Websocket port for %s: %d", s.ID, s.WebsocketPort())
	return nil
}
