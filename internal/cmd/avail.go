package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/desktype"
	"github.com/deskctl/deskctl/internal/ui"
)

var availJSON bool

var availCmd = &cobra.Command{
	Use:     "avail",
	Aliases: []string{"av"},
	Short:   "Show available desktop types",
	Long: `Display the desktop types available on this system and whether each has
been verified.

A desktop type must be verified with the 'verify' command before sessions of
that type can be started. Where prerequisites are not met, the superuser must
prepare the desktop type using the 'prepare' command.`,
	Args: cobra.NoArgs,
	RunE: runAvail,
}

func init() {
	availCmd.Flags().BoolVar(&availJSON, "json", false, "output desktop types as JSON")
	rootCmd.AddCommand(availCmd)
}

func runAvail(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	types := a.types.Visible()
	out := cmd.OutOrStdout()
	if availJSON {
		if types == nil {
			types = []*desktype.Type{}
		}
		return writeJSON(out, types)
	}

	tty := stdoutTTY()
	if tty && len(types) == 0 {
		_, _ = fmt.Fprintln(out, "No desktop types found.")
		return nil
	}
	return typeTable(types, tty, ui.Width(os.Stdout)).Render(out, tty)
}

// typeTable builds the avail table. On a terminal long summaries wrap onto
// continuation rows; piped output flattens them onto one line.
func typeTable(types []*desktype.Type, tty bool, width int) *ui.Table {
	if !tty {
		table := ui.NewTable()
		for _, t := range types {
			summary := strings.ReplaceAll(strings.TrimSpace(t.Summary), "\n", " ")
			table.Row(t.Name, summary, t.URL, verifiedLabel(t.Verified()))
		}
		return table
	}

	table := ui.NewTable("Name", "Summary", "State")
	for _, t := range types {
		lines := strings.Split(ui.Wrap(strings.TrimSpace(t.Summary), width-30), "\n")
		table.Row(ui.TypeStyle.Render(t.Name), ui.ValueStyle.Render(strings.TrimRight(lines[0], " ")), verifiedLabel(t.Verified()))
		for _, line := range lines[1:] {
			table.Row("", ui.ValueStyle.Render(strings.TrimRight(line, " ")), "")
		}
		if t.URL != "" {
			table.Row("", " > "+ui.LinkStyle.Render(t.URL), "")
		}
	}
	return table
}

func verifiedLabel(verified bool) string {
	if verified {
		return "Verified"
	}
	return "Unverified"
}
