package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/config"
)

var setGlobal bool

var setCmd = &cobra.Command{
	Use:   "set [NAME=VALUE...]",
	Short: "Set default configuration",
	Long: `Set the defaults used when starting desktop sessions. Recognised settings:

  desktop   the default desktop type, e.g. desktop=xterm
  geometry  the default screen size, e.g. geometry=1280x1024

Settings are written to your user configuration. Use --global to update the
defaults for every user; this requires permission to write the global
configuration file.

With no arguments the current defaults are shown.`,
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVarP(&setGlobal, "global", "g", false, "update the global defaults")
	rootCmd.AddCommand(setCmd)
}

// setting is a parsed NAME=VALUE argument mapped to its config key.
type setting struct {
	key   string
	value string
}

func runSet(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		if setGlobal && !writable(a.cfg.GlobalFile()) {
			return apperr.New(apperr.InvalidSetting, "permission denied for updating global defaults")
		}
		settings, err := parseSettings(args)
		if err != nil {
			return err
		}
		for _, s := range settings {
			if s.key == "desktop_type" {
				if _, err := a.types.Get(s.value); err != nil {
					return err
				}
			}
		}
		for _, s := range settings {
			if err := a.cfg.SaveKey(s.key, s.value, setGlobal); err != nil {
				return fmt.Errorf("failed to save %s: %w", s.key, err)
			}
			Debug("Saved %s=%s (global=%v)", s.key, s.value, setGlobal)
		}

		if a, err = loadApp(); err != nil {
			return err
		}
	}

	return printDefaults(cmd.OutOrStdout(), a)
}

// parseSettings validates NAME=VALUE arguments before anything is written.
func parseSettings(args []string) ([]setting, error) {
	var settings []setting
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || value == "" {
			return nil, apperr.New(apperr.InvalidSetting, "missing value: %s", arg)
		}
		switch name {
		case "desktop":
			settings = append(settings, setting{key: "desktop_type", value: value})
		case "geometry":
			if err := config.ValidateGeometry(value); err != nil {
				return nil, err
			}
			settings = append(settings, setting{key: "geometry", value: value})
		default:
			return nil, apperr.New(apperr.InvalidSetting, "unrecognized setting: %s", name)
		}
	}
	return settings, nil
}

func printDefaults(w io.Writer, a *app) error {
	name := "(none)"
	if t, err := a.types.Default(); err == nil {
		name = t.Name
	}
	_, _ = fmt.Fprintf(w, "Default desktop type: %s\n", name)
	_, _ = fmt.Fprintf(w, "    Default geometry: %s\n", a.cfg.Geometry)
	return nil
}

// writable reports whether path, or the nearest existing parent when it
// does not exist yet, can be written by this process.
func writable(path string) bool {
	for path != "" {
		err := unix.Access(path, unix.W_OK)
		if err == nil {
			return true
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false
		}
		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		path = parent
	}
	return false
}
