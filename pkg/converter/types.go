// Package converter turns standard MIDI files into note lists
package converter

import (
	"github.com/james-see/midi2notes/pkg/notes"
)

// Converter decodes MIDI data and extracts notes with fixed options
type Converter struct {
	opts notes.Options
}

// New creates a new Converter with the specified extraction options
func New(opts notes.Options) *Converter {
	return &Converter{opts: opts}
}

// Options returns the current extraction options
func (c *Converter) Options() notes.Options {
	return c.opts
}

// SetOptions sets the extraction options
func (c *Converter) SetOptions(opts notes.Options) {
	c.opts = opts
}

// Extract decodes MIDI bytes and returns the notes they contain
func (c *Converter) Extract(midiData []byte) ([]notes.Note, error) {
	ns, _, err := c.ExtractWithTiming(midiData)
	return ns, err
}

// ExtractWithTiming is Extract that also returns the header timing
func (c *Converter) ExtractWithTiming(midiData []byte) ([]notes.Note, notes.Timing, error) {
	seq, err := ParseMIDI(midiData)
	if err != nil {
		return nil, notes.Timing{}, err
	}
	return c.extract(seq)
}

// ExtractFile reads a MIDI file and returns the notes it contains
func (c *Converter) ExtractFile(filename string) ([]notes.Note, error) {
	ns, _, err := c.ExtractFileWithTiming(filename)
	return ns, err
}

// ExtractFileWithTiming is ExtractFile that also returns the header timing
func (c *Converter) ExtractFileWithTiming(filename string) ([]notes.Note, notes.Timing, error) {
	seq, err := ParseMIDIFile(filename)
	if err != nil {
		return nil, notes.Timing{}, err
	}
	return c.extract(seq)
}

func (c *Converter) extract(seq *notes.Sequence) ([]notes.Note, notes.Timing, error) {
	ns, err := notes.Extract(seq, c.opts)
	if err != nil {
		return nil, seq.Timing, err
	}
	return ns, seq.Timing, nil
}
