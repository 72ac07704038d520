package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/session"
	"github.com/deskctl/deskctl/internal/ui"
)

const timestampLayout = "2006-01-02T15:04:05-0700"

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List interactive desktop sessions",
	Long: `Display a table of all known desktop sessions and their states.

Without a terminal (e.g. piped to 'grep') the rows are tab-separated and the
header is omitted, with these columns:

  identity, type, host name, IP, display, port, websocket port, password,
  state, created at, last accessed at, screenshot path`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output sessions as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	sessions, err := a.sessions.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		if sessions == nil {
			sessions = []*session.Session{}
		}
		return writeJSON(out, sessions)
	}

	tty := stdoutTTY()
	if tty && len(sessions) == 0 {
		_, _ = fmt.Fprintln(out, "No desktop sessions found.")
		return nil
	}
	return sessionTable(sessions, tty).Render(out, tty)
}

// sessionTable builds the list table. The terminal form is a short summary;
// the piped form carries every column for scripting.
func sessionTable(sessions []*session.Session, tty bool) *ui.Table {
	if tty {
		table := ui.NewTable("Identity", "Name", "Type", "Host name", "IP address", "Display (Port)", "Password", "State")
		for _, s := range sessions {
			if s.State() == session.StateBroken {
				table.Row(s.ShortID(), "", "", "", "", "", "", "Broken")
				continue
			}
			display, _ := s.Display()
			table.Row(
				s.ShortID(),
				s.Name(),
				s.TypeName(),
				s.HostName(),
				s.IP(),
				fmt.Sprintf(":%d (%d)", display, s.VNCPort()),
				s.Password(),
				stateLabel(s.State()),
			)
		}
		return table
	}

	table := ui.NewTable()
	for _, s := range sessions {
		if s.State() == session.StateBroken {
			row := make([]string, 10)
			row[0] = s.ID
			row[8] = "Broken"
			row[9] = formatTime(s.CreatedAt())
			table.Row(row...)
			continue
		}
		display, _ := s.Display()
		var lastAccessed string
		if t, ok := s.LastAccessedAt(); ok {
			lastAccessed = formatTime(t)
		}
		table.Row(
			s.ID,
			s.TypeName(),
			s.HostName(),
			s.IP(),
			strconv.Itoa(display),
			strconv.Itoa(s.VNCPort()),
			strconv.Itoa(s.WebsocketPort()),
			s.Password(),
			stateLabel(s.State()),
			formatTime(s.CreatedAt()),
			lastAccessed,
			filepath.Join(s.Dir(), "session.png"),
		)
	}
	return table
}

// stateLabel capitalises a state for display.
func stateLabel(st session.State) string {
	switch st {
	case session.StateActive:
		return "Active"
	case session.StateExited:
		return "Exited"
	case session.StateRemote:
		return "Remote"
	case session.StateBroken:
		return "Broken"
	default:
		return string(st)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
