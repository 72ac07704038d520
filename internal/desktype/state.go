package desktype

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const stateFile = "state.yml"

// State is the persisted verification status of a type.
type State struct {
	Verified bool `yaml:"verified"`
}

// readState returns the state from the most recently modified of paths.
func readState(paths ...string) (State, bool) {
	var (
		newest   string
		newestAt time.Time
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestAt) {
			newest = p
			newestAt = info.ModTime()
		}
	}
	if newest == "" {
		return State{}, false
	}

	data, err := os.ReadFile(newest)
	if err != nil {
		return State{}, false
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, false
	}
	return st, true
}

func writeState(dir string, st State) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stateFile), data, 0644)
}
