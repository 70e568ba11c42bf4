package converter

import (
	"bytes"
	"fmt"
	"os"

	"github.com/james-see/midi2notes/pkg/notes"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ParseMIDIFile reads a MIDI file and decodes its tracks
func ParseMIDIFile(filename string) (*notes.Sequence, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return ParseMIDI(data)
}

// ParseMIDI decodes a standard MIDI file into a note sequence.
// Decoding errors are reported as notes.ErrMalformedStream and never
// return a partial sequence.
func ParseMIDI(data []byte) (seq *notes.Sequence, err error) {
	// smf panics on some corrupt track bodies
	defer func() {
		if r := recover(); r != nil {
			seq = nil
			err = fmt.Errorf("%w: %v", notes.ErrMalformedStream, r)
		}
	}()

	// smf assumes metric ticks when computing absolute times, so timecode
	// files are decoded from a copy with a metrical division
	timecode := isTimecode(data)
	if timecode {
		data = withMetricalDivision(data)
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notes.ErrMalformedStream, err)
	}

	seq = &notes.Sequence{
		Tracks: make([]notes.Track, 0, len(s.Tracks)),
	}

	// Get ticks per quarter note from time format
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && !timecode {
		seq.Timing = notes.Metrical(mt.Resolution())
	} else {
		seq.Timing = notes.Timing{Kind: notes.TimingTimecode}
	}

	for _, track := range s.Tracks {
		events := make(notes.Track, 0, len(track))
		for _, ev := range track {
			events = append(events, decodeEvent(ev))
		}
		seq.Tracks = append(seq.Tracks, events)
	}

	return seq, nil
}

// headerSize covers the MThd chunk up to and including the division word
const headerSize = 14

// isTimecode reports whether the header division has the SMPTE bit set
func isTimecode(data []byte) bool {
	return len(data) >= headerSize && bytes.HasPrefix(data, []byte("MThd")) && data[12]&0x80 != 0
}

// withMetricalDivision returns a copy of data whose division is metrical,
// keeping the ticks-per-frame byte as the resolution
func withMetricalDivision(data []byte) []byte {
	patched := bytes.Clone(data)
	patched[12] = 0
	if patched[13] == 0 {
		patched[13] = 1
	}
	return patched
}

func decodeEvent(ev smf.Event) notes.Event {
	out := notes.Event{Delta: ev.Delta, Kind: notes.EventOther}
	msg := ev.Message

	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		out.Kind = notes.EventNoteOn
		out.Key = key
		out.Velocity = vel
	case msg.GetNoteOff(&ch, &key, &vel):
		out.Kind = notes.EventNoteOff
		out.Key = key
		out.Velocity = vel
	case isTempo(msg):
		// Tempo meta message (FF 51 03 tt tt tt)
		out.Kind = notes.EventTempo
		out.Tempo = uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
	}
	return out
}

func isTempo(msg smf.Message) bool {
	return len(msg) >= 6 && msg[0] == 0xFF && msg[1] == 0x51 && msg[2] == 0x03
}
