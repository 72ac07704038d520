// Package verify runs desktop type verify/prepare scripts and interprets the
// progress messages they send back over a dedicated pipe.
package verify

import "strings"

// EventKind classifies a line received from a script.
type EventKind int

const (
	// EventOutput is free text passed through to the user.
	EventOutput EventKind = iota
	// EventStage announces the start of a new named stage.
	EventStage
	// EventError carries an error message for the user.
	EventError
	// EventMissing names a missing prerequisite.
	EventMissing
)

// Line prefixes of the script protocol.
const (
	stagePrefix   = "STAGE:"
	errorPrefix   = "ERR:"
	missingPrefix = "MISS:"
)

// Event is one parsed protocol line.
type Event struct {
	Kind EventKind
	Text string
}

// ParseLine interprets a single protocol line.
func ParseLine(line string) Event {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(line, stagePrefix):
		return Event{Kind: EventStage, Text: line[len(stagePrefix):]}
	case strings.HasPrefix(line, errorPrefix):
		return Event{Kind: EventError, Text: line[len(errorPrefix):]}
	case strings.HasPrefix(line, missingPrefix):
		return Event{Kind: EventMissing, Text: line[len(missingPrefix):]}
	default:
		return Event{Kind: EventOutput, Text: line}
	}
}

// Outcome is the result of a verify or prepare run.
type Outcome struct {
	Succeeded bool
	Missing   []string
}

// Verified reports whether the run succeeded with nothing missing.
func (o Outcome) Verified() bool {
	return o.Succeeded && len(o.Missing) == 0
}
