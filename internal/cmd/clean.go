package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deskctl/deskctl/internal/session"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [DESKTOP]",
	Short: "Clean up one or more exited desktop sessions",
	Long: `Remove the session directories of exited desktop sessions.

Sessions that exit uncleanly keep their directory until it is cleaned.
Sessions terminated with 'kill' are cleaned automatically.

DESKTOP is a session identity, the first segment of one, or a display number
prefixed with ':', e.g. ':1'. Without DESKTOP every exited session on this
host is cleaned; active, remote and broken sessions are skipped. A broken
session is only cleaned when named explicitly, and not while its VNC server
is still running.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		s, err := a.sessions.Resolve(args[0], true)
		if err != nil {
			return err
		}
		cleanOne(out, s, true)
		return nil
	}

	sessions, err := a.sessions.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(out, "No desktop sessions found.")
		return nil
	}

	removedCount := 0
	for _, s := range sessions {
		if cleanOne(out, s, false) {
			removedCount++
		}
	}
	Debug("Cleaned %d of %d session(s)", removedCount, len(sessions))
	return nil
}

// cleanOne reports the outcome of cleaning s and whether it was removed.
// Broken sessions are only touched when named.
func cleanOne(out io.Writer, s *session.Session, named bool) bool {
	switch s.State() {
	case session.StateRemote:
		_, _ = fmt.Fprintf(out, "%s: skipping; not local\n", s.ID)
		return false
	case session.StateActive:
		_, _ = fmt.Fprintf(out, "%s: skipping; currently active\n", s.ID)
		return false
	case session.StateBroken:
		if !named {
			_, _ = fmt.Fprintf(out, "%s: skipping; broken\n", s.ID)
			return false
		}
	}
	if err := s.Clean(); err != nil {
		Debug("Failed to clean %s: %v", s.ID, err)
		_, _ = fmt.Fprintf(out, "%s: cleaning failed\n", s.ID)
		return false
	}
	_, _ = fmt.Fprintf(out, "%s: cleaned\n", s.ID)
	return true
}
