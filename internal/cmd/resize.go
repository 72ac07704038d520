package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resizeAvailable bool
	resizeJSON      bool
)

var resizeCmd = &cobra.Command{
	Use:   "resize DESKTOP [WIDTHxHEIGHT]",
	Short: "Show or change the screen size of an active desktop session",
	Long: `Without a geometry, show the current screen size of an active desktop
session. With one, resize the session's screen.

Use --available to list the sizes the session's display supports.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResize,
}

func init() {
	resizeCmd.Flags().BoolVar(&resizeAvailable, "available", false, "list the supported sizes")
	resizeCmd.Flags().BoolVar(&resizeJSON, "json", false, "output the geometry as JSON")
	rootCmd.AddCommand(resizeCmd)
}

func runResize(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	s, err := a.sessions.Resolve(args[0], false)
	if err != nil {
		return err
	}

	if len(args) == 2 {
		var g geometryValue
		if err := g.Set(args[1]); err != nil {
			return err
		}
		if err := s.Resize(cmd.Context(), string(g)); err != nil {
			return err
		}
		Debug("Resized %s to %s", s.ID, g)
	}

	geometry, err := s.Geometry(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resizeJSON {
		return writeJSON(out, geometry)
	}
	_, _ = fmt.Fprintln(out, geometry.Current)
	if resizeAvailable {
		_, _ = fmt.Fprintln(out, strings.Join(geometry.Available, "\n"))
	}
	return nil
}
