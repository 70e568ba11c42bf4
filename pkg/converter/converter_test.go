package converter

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/james-see/midi2notes/pkg/notes"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func tempoMsg(micros uint32) smf.Message {
	return smf.Message([]byte{0xFF, 0x51, 0x03, byte(micros >> 16), byte(micros >> 8), byte(micros)})
}

// buildMIDI writes a metrical SMF with one track per fill function
func buildMIDI(t *testing.T, ppq uint16, fills ...func(tr *smf.Track)) []byte {
	t.Helper()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ppq)
	for _, fill := range fills {
		var tr smf.Track
		fill(&tr)
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("failed to write MIDI: %v", err)
	}
	return buf.Bytes()
}

// timecodeMIDI is a format 0 file with a -25fps/40 subframe division
var timecodeMIDI = []byte{
	'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
	0x00, 0x00, 0x00, 0x01, 0xE7, 0x28,
	'M', 'T', 'r', 'k', 0x00, 0x00, 0x00, 0x0C,
	0x00, 0x90, 0x3C, 0x40,
	0x0A, 0x80, 0x3C, 0x00,
	0x00, 0xFF, 0x2F, 0x00,
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"test.mid", FormatMIDI},
		{"test.MIDI", FormatMIDI},
		{"notes.json", FormatJSON},
		{"notes.csv", FormatCSV},
		{"test.txt", FormatUnknown},
		{"test", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := DetectFormat(tt.filename)
			if result != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, result, tt.expected)
			}
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"JSON array", []byte(`[{"pitch":60}]`), FormatJSON},
		{"Short data", []byte{0x00, 0x01}, FormatUnknown},
		{"Binary data", []byte{0x3C, 0x01, 0x3E, 0x02}, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectFormatFromContent(tt.data)
			if result != tt.expected {
				t.Errorf("DetectFormatFromContent() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseMIDI(t *testing.T) {
	data := buildMIDI(t, 480, func(tr *smf.Track) {
		tr.Add(0, tempoMsg(600000))
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(240, midi.ControlChange(0, 64, 127))
		tr.Add(240, midi.NoteOff(0, 60))
	})

	seq, err := ParseMIDI(data)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}

	if seq.Timing.Kind != notes.TimingMetrical || seq.Timing.PPQ != 480 {
		t.Errorf("Timing = %+v, want metrical 480", seq.Timing)
	}
	if len(seq.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(seq.Tracks))
	}

	tr := seq.Tracks[0]
	// tempo, note on, control change, note off, end of track
	if len(tr) != 5 {
		t.Fatalf("got %d events, want 5: %+v", len(tr), tr)
	}
	if tr[0].Kind != notes.EventTempo || tr[0].Tempo != 600000 {
		t.Errorf("event 0 = %+v, want tempo 600000", tr[0])
	}
	if tr[1].Kind != notes.EventNoteOn || tr[1].Key != 60 || tr[1].Velocity != 100 {
		t.Errorf("event 1 = %+v, want note-on 60/100", tr[1])
	}
	if tr[2].Kind != notes.EventOther || tr[2].Delta != 240 {
		t.Errorf("event 2 = %+v, want other with delta 240", tr[2])
	}
	if tr[3].Kind != notes.EventNoteOff || tr[3].Key != 60 || tr[3].Delta != 240 {
		t.Errorf("event 3 = %+v, want note-off 60 after 240", tr[3])
	}
	if tr[4].Kind != notes.EventOther {
		t.Errorf("event 4 = %+v, want other (end of track)", tr[4])
	}
}

// missingStatusMIDI has a data byte where the first status byte belongs
var missingStatusMIDI = []byte{
	'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
	0x00, 0x00, 0x00, 0x01, 0x01, 0xE0,
	'M', 'T', 'r', 'k', 0x00, 0x00, 0x00, 0x0C,
	0x00, 0x01, 0x3C, 0x40,
	0x0A, 0x80, 0x3C, 0x00,
	0x00, 0xFF, 0x2F, 0x00,
}

func TestParseMIDIMalformed(t *testing.T) {
	valid := buildMIDI(t, 480, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOff(0, 60))
	})

	// first status byte of the track body replaced by a data byte
	corrupt := bytes.Clone(valid)
	corrupt[23] = 0x01

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a midi file at all")},
		{"truncated header", []byte("MThd\x00\x00")},
		{"truncated track", valid[:len(valid)-3]},
		{"missing status byte", missingStatusMIDI},
		{"corrupted track body", corrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := ParseMIDI(tt.data)
			if !errors.Is(err, notes.ErrMalformedStream) {
				t.Errorf("ParseMIDI() error = %v, want ErrMalformedStream", err)
			}
			if seq != nil {
				t.Error("ParseMIDI() should not return a partial sequence")
			}
		})
	}
}

func TestParseMIDITimecode(t *testing.T) {
	seq, err := ParseMIDI(timecodeMIDI)
	if err != nil {
		t.Fatalf("ParseMIDI() error = %v", err)
	}
	if seq.Timing.Kind != notes.TimingTimecode {
		t.Errorf("Timing = %+v, want timecode", seq.Timing)
	}
	if timecodeMIDI[12] != 0xE7 {
		t.Error("ParseMIDI() modified its input")
	}

	if _, err := notes.ExtractSeconds(seq); !errors.Is(err, notes.ErrUnsupportedTiming) {
		t.Errorf("ExtractSeconds() error = %v, want ErrUnsupportedTiming", err)
	}

	ns, err := notes.ExtractTicks(seq)
	if err != nil {
		t.Fatalf("ExtractTicks() error = %v", err)
	}
	if len(ns) != 1 || ns[0].Pitch != 60 || ns[0].Duration != 10 {
		t.Errorf("ExtractTicks() = %+v, want one 10 tick note", ns)
	}
}

func TestConverterExtract(t *testing.T) {
	data := buildMIDI(t, 480,
		func(tr *smf.Track) {
			tr.Add(0, tempoMsg(1000000))
		},
		func(tr *smf.Track) {
			tr.Add(0, midi.NoteOn(0, 60, 100))
			tr.Add(480, midi.NoteOn(0, 64, 90))
			tr.Add(480, midi.NoteOn(0, 60, 0))
			tr.Add(480, midi.NoteOff(0, 64))
		},
	)

	t.Run("ticks", func(t *testing.T) {
		ns, err := New(notes.Options{Mode: notes.ModeTicks}).Extract(data)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		want := []notes.Note{
			{Pitch: 60, Start: 0, Duration: 960, Track: 1},
			{Pitch: 64, Start: 480, Duration: 960, Track: 1},
		}
		if len(ns) != len(want) {
			t.Fatalf("got %+v, want %+v", ns, want)
		}
		for i := range want {
			if ns[i] != want[i] {
				t.Errorf("note %d = %+v, want %+v", i, ns[i], want[i])
			}
		}
	})

	t.Run("seconds", func(t *testing.T) {
		// the tempo on track 0 does not affect track 1
		ns, err := New(notes.Options{Mode: notes.ModeSeconds}).Extract(data)
		if err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		if len(ns) != 2 {
			t.Fatalf("got %d notes, want 2", len(ns))
		}
		if math.Abs(ns[0].Duration-1.0) > 1e-9 || math.Abs(ns[1].Start-0.5) > 1e-9 {
			t.Errorf("notes = %+v, want durations at 120 BPM", ns)
		}
	})
}

func TestConverterOptions(t *testing.T) {
	conv := New(notes.Options{Mode: notes.ModeTicks})
	if conv.Options().Mode != notes.ModeTicks {
		t.Error("Options() should return the constructor options")
	}

	conv.SetOptions(notes.Options{Mode: notes.ModeSeconds, Parallel: true})
	if got := conv.Options(); got.Mode != notes.ModeSeconds || !got.Parallel {
		t.Errorf("Options() after SetOptions = %+v", got)
	}
}

func TestExtractWithTiming(t *testing.T) {
	data := buildMIDI(t, 96, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(96, midi.NoteOff(0, 60))
	})

	ns, timing, err := New(notes.Options{Mode: notes.ModeTicks}).ExtractWithTiming(data)
	if err != nil {
		t.Fatalf("ExtractWithTiming() error = %v", err)
	}
	if timing.Kind != notes.TimingMetrical || timing.PPQ != 96 {
		t.Errorf("timing = %+v, want metrical 96", timing)
	}
	if len(ns) != 1 || ns[0].Duration != 96 {
		t.Errorf("notes = %+v, want one 96 tick note", ns)
	}

	path := filepath.Join(t.TempDir(), "song.mid")
	if err := os.WriteFile(path, timecodeMIDI, 0644); err != nil {
		t.Fatal(err)
	}
	_, timing, err = New(notes.Options{Mode: notes.ModeTicks}).ExtractFileWithTiming(path)
	if err != nil {
		t.Fatalf("ExtractFileWithTiming() error = %v", err)
	}
	if timing.Kind != notes.TimingTimecode {
		t.Errorf("timing = %+v, want timecode", timing)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mid")
	data := buildMIDI(t, 96, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 67, 100))
		tr.Add(0, midi.NoteOn(0, 55, 100))
		tr.Add(96, midi.NoteOff(0, 67))
		tr.Add(0, midi.NoteOff(0, 55))
	})
	if err := os.WriteFile(input, data, 0644); err != nil {
		t.Fatal(err)
	}

	conv := New(notes.Options{})

	t.Run("json sorted by pitch", func(t *testing.T) {
		output := filepath.Join(dir, "out.json")
		if err := conv.ConvertFile(input, output, SortPitch); err != nil {
			t.Fatalf("ConvertFile() error = %v", err)
		}
		raw, err := os.ReadFile(output)
		if err != nil {
			t.Fatal(err)
		}
		var ns []notes.Note
		if err := json.Unmarshal(raw, &ns); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(ns) != 2 || ns[0].Pitch != 55 || ns[1].Pitch != 67 {
			t.Errorf("notes = %+v, want 55 then 67", ns)
		}
	})

	t.Run("csv", func(t *testing.T) {
		output := filepath.Join(dir, "out.csv")
		if err := conv.ConvertFile(input, output, SortNone); err != nil {
			t.Fatalf("ConvertFile() error = %v", err)
		}
		raw, err := os.ReadFile(output)
		if err != nil {
			t.Fatal(err)
		}
		want := "pitch,start,duration,track\n67,0,96,0\n55,0,96,0\n"
		if string(raw) != want {
			t.Errorf("csv = %q, want %q", raw, want)
		}
	})

	t.Run("unknown output format", func(t *testing.T) {
		err := conv.ConvertFile(input, filepath.Join(dir, "out.txt"), SortNone)
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("ConvertFile() error = %v, want ErrUnknownFormat", err)
		}
	})

	t.Run("missing input", func(t *testing.T) {
		err := conv.ConvertFile(filepath.Join(dir, "missing.mid"), filepath.Join(dir, "x.json"), SortNone)
		if err == nil {
			t.Error("ConvertFile() should fail for a missing input")
		}
	})
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("WriteJSON(nil) = %q, want []", buf.String())
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    SortOrder
		wantErr bool
	}{
		{"", SortNone, false},
		{"start", SortStart, false},
		{"PITCH", SortPitch, false},
		{"velocity", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortOrder(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortOrder(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSortOrder(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if f, err := ParseFormat("CSV"); err != nil || f != FormatCSV {
		t.Errorf("ParseFormat(CSV) = %v, %v", f, err)
	}
	if _, err := ParseFormat("midi"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(midi) error = %v, want ErrUnknownFormat", err)
	}
}

func TestGetSupportedFormats(t *testing.T) {
	formats := GetSupportedFormats()
	if len(formats) != 2 || formats[0] != "json" || formats[1] != "csv" {
		t.Errorf("GetSupportedFormats() = %v", formats)
	}
}
