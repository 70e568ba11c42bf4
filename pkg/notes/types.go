// Package notes reconstructs sounded notes from decoded MIDI track events
package notes

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultTempo is the MIDI default tempo in microseconds per quarter note (120 BPM)
const DefaultTempo = 500000

// MaxPitch is the highest valid MIDI key number
const MaxPitch = 127

// TimingKind identifies the header division of a MIDI file
type TimingKind int

const (
	TimingMetrical TimingKind = iota
	TimingTimecode
)

// Timing is the header timing mode
type Timing struct {
	Kind TimingKind
	PPQ  uint16 // Ticks per quarter note, metrical timing only
}

// Metrical returns a metrical timing with the given resolution
func Metrical(ppq uint16) Timing {
	return Timing{Kind: TimingMetrical, PPQ: ppq}
}

// EventKind distinguishes the track events the extractor cares about
type EventKind int

const (
	EventOther EventKind = iota
	EventNoteOn
	EventNoteOff
	EventTempo
)

func (k EventKind) String() string {
	switch k {
	case EventNoteOn:
		return "note-on"
	case EventNoteOff:
		return "note-off"
	case EventTempo:
		return "tempo"
	default:
		return "other"
	}
}

// Event is a single track event with its delta time
type Event struct {
	Delta    uint32 // Ticks since the previous event in the track
	Kind     EventKind
	Key      uint8  // Note events only
	Velocity uint8  // Note events only
	Tempo    uint32 // Microseconds per quarter note, tempo events only
}

// Track is an ordered list of events
type Track []Event

// Sequence is a decoded MIDI file: header timing plus tracks
type Sequence struct {
	Timing Timing
	Tracks []Track
}

// Note is a reconstructed note interval
type Note struct {
	Pitch    uint8   `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Track    int     `json:"track"`
}

// End returns the position at which the note stops sounding
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// Mode selects the unit of note positions
type Mode string

const (
	ModeTicks   Mode = "ticks"
	ModeSeconds Mode = "seconds"
)

// ParseMode parses a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTicks, "tick", "":
		return ModeTicks, nil
	case ModeSeconds, "second", "time":
		return ModeSeconds, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Modes returns the supported mode names
func Modes() []string {
	return []string{string(ModeTicks), string(ModeSeconds)}
}

// Options configures an extraction
type Options struct {
	Mode     Mode
	Parallel bool         // Process tracks concurrently
	Logger   *slog.Logger // Diagnostics for dropped events; nil discards
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
