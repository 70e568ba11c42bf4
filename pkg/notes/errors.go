package notes

import "errors"

var (
	// ErrMalformedStream reports that the MIDI bytes could not be decoded
	ErrMalformedStream = errors.New("malformed MIDI stream")

	// ErrUnsupportedTiming reports a non-metrical header in seconds mode
	ErrUnsupportedTiming = errors.New("unsupported MIDI timing")

	ErrUnknownMode = errors.New("unknown mode")
)
