package converter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/james-see/midi2notes/pkg/notes"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatUnknown Format = "unknown"
)

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrUnknownSort   = errors.New("unknown sort order")
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi", ".smf":
		return FormatMIDI
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Check for MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	switch data[0] {
	case '[', '{':
		return FormatJSON
	}
	return FormatUnknown
}

// ParseFormat parses an output format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// SortOrder selects how extracted notes are ordered before output
type SortOrder string

const (
	SortNone  SortOrder = "none"
	SortStart SortOrder = "start"
	SortPitch SortOrder = "pitch"
)

// ParseSortOrder parses a sort order name
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case SortNone, SortStart, SortPitch:
		return o, nil
	case "":
		return SortNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSort, s)
	}
}

// SortNotes orders notes in place. SortNone keeps extraction order.
func SortNotes(ns []notes.Note, order SortOrder) {
	switch order {
	case SortStart:
		notes.SortByStart(ns)
	case SortPitch:
		notes.SortByPitch(ns)
	}
}

// ConvertFile extracts notes from a MIDI file and writes them to outputPath
// in the format implied by its extension
func (c *Converter) ConvertFile(inputPath, outputPath string, order SortOrder) error {
	outputFormat := DetectFormat(outputPath)
	if outputFormat != FormatJSON && outputFormat != FormatCSV {
		return fmt.Errorf("%w: cannot determine output format from %q", ErrUnknownFormat, outputPath)
	}

	ns, err := c.ExtractFile(inputPath)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	SortNotes(ns, order)

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := Write(f, outputFormat, ns); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

// Write encodes notes in the given format
func Write(w io.Writer, format Format, ns []notes.Note) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, ns)
	case FormatCSV:
		return WriteCSV(w, ns)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// WriteJSON writes notes as an indented JSON array
func WriteJSON(w io.Writer, ns []notes.Note) error {
	if ns == nil {
		ns = []notes.Note{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ns)
}

// WriteCSV writes notes with a pitch,start,duration,track header
func WriteCSV(w io.Writer, ns []notes.Note) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"pitch", "start", "duration", "track"}); err != nil {
		return err
	}
	for _, n := range ns {
		record := []string{
			strconv.Itoa(int(n.Pitch)),
			strconv.FormatFloat(n.Start, 'g', -1, 64),
			strconv.FormatFloat(n.Duration, 'g', -1, 64),
			strconv.Itoa(n.Track),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ContentType returns the HTTP content type for an output format
func ContentType(format Format) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatMIDI:
		return "audio/midi"
	default:
		return "application/octet-stream"
	}
}

// GetSupportedFormats returns the output formats notes can be written in
func GetSupportedFormats() []string {
	return []string{string(FormatJSON), string(FormatCSV)}
}
