package session

import (
	"fmt"
	"strconv"
	"strings"
)

// State is the lifecycle state of a session.
type State string

const (
	StateNew     State = "new"     // Constructed, not yet started or loaded
	StateActive  State = "active"  // Local and the VNC server is running
	StateExited  State = "exited"  // Local and the VNC server is gone
	StateRemote  State = "remote"  // Recorded on another host
	StateBroken  State = "broken"  // Metadata could not be loaded
	StateKilled  State = "killed"  // Terminated by this process
	StateCleaned State = "cleaned" // Directory removed by this process
)

// Metadata is the persisted form of a session (metadata.yml). Keys the
// struct does not know about are kept in Extra and written back on save.
type Metadata struct {
	Name          string         `yaml:"name,omitempty"`
	Type          string         `yaml:"type"`
	Password      string         `yaml:"password"`
	IP            string         `yaml:"ip"`
	IPs           []string       `yaml:"ips,omitempty"`
	HostName      string         `yaml:"host_name"`
	Display       *int           `yaml:"display,omitempty"`
	WebsocketPort int            `yaml:"websocket_port"`
	WebsocketPID  int            `yaml:"websocket_pid,omitempty"`
	CreatedAt     string         `yaml:"created_at,omitempty"`
	Supplementary *Supplementary `yaml:"supplementary,omitempty"`
	Extra         map[string]any `yaml:",inline"`
}

// Supplementary holds optional host-environment details.
type Supplementary struct {
	JobID string         `yaml:"job_id,omitempty"`
	Extra map[string]any `yaml:",inline"`
}

var knownKeys = map[string]bool{
	"name": true, "type": true, "password": true, "ip": true, "ips": true,
	"host_name": true, "display": true, "websocket_port": true,
	"websocket_pid": true, "created_at": true, "supplementary": true,
}

// mergeHelperOutput folds the VNC helper's YAML report into m. The display
// number is lifted into Display; everything else not already modelled
// lands in Extra.
func (m *Metadata) mergeHelperOutput(report map[string]any) error {
	for k, v := range report {
		if k == "display" {
			d, err := toInt(v)
			if err != nil {
				return fmt.Errorf("invalid display %v: %w", v, err)
			}
			m.Display = &d
			continue
		}
		if knownKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimPrefix(n, ":"))
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
