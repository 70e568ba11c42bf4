// Package render draws piano-roll snapshots of extracted notes
package render

import (
	"fmt"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/james-see/midi2notes/pkg/notes"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Color is an RGB color with components in [0, 1]
type Color struct {
	R, G, B float64
}

// Track colors, cycled by track index
var Palette = []Color{
	{0.9, 0.3, 0.4},
	{0.3, 0.8, 0.9},
	{0.5, 0.9, 0.4},
	{0.9, 0.8, 0.2},
	{0.7, 0.4, 0.9},
}

var (
	background = Color{0, 0, 0}
	slateGray  = Color{112.0 / 255, 128.0 / 255, 144.0 / 255}
	labelColor = Color{0.85, 0.85, 0.85}
)

// MinNoteWidth keeps very short notes visible
const MinNoteWidth = 2.0

// Frame is the geometry of a snapshot
type Frame struct {
	Width       int
	Height      int
	ScrollSpeed float64 // Pixels per unit of note time
	PitchLow    float64 // Pitch drawn at the bottom margin
	PitchHigh   float64 // Pitch drawn at the top margin
	NoteHeight  float64
	Margin      float64
}

// DefaultFrame returns a 1024x768 frame scrolling 300 px per unit over pitches 30..90
func DefaultFrame() Frame {
	return Frame{
		Width:       1024,
		Height:      768,
		ScrollSpeed: 300,
		PitchLow:    30,
		PitchHigh:   90,
		NoteHeight:  12,
		Margin:      50,
	}
}

// ForTiming adapts the scroll speed to the position unit of mode.
// In tick mode one quarter note spans ScrollSpeed pixels.
func (f Frame) ForTiming(mode notes.Mode, timing notes.Timing) Frame {
	if mode == notes.ModeTicks && timing.Kind == notes.TimingMetrical && timing.PPQ > 0 {
		f.ScrollSpeed /= float64(timing.PPQ)
	}
	return f
}

// Rect is a note rectangle in image coordinates (origin top-left)
type Rect struct {
	X, Y, W, H float64
	Track      int
}

// PlayheadX returns the x coordinate of the playhead line
func (f Frame) PlayheadX() float64 {
	// one third of the width left of centre
	return float64(f.Width)/2 - float64(f.Width)/3
}

// PitchY maps a pitch to the y coordinate of its row centre
func (f Frame) PitchY(pitch float64) float64 {
	bottom := float64(f.Height) - f.Margin
	top := f.Margin
	if f.PitchHigh == f.PitchLow {
		return (top + bottom) / 2
	}
	return bottom + (pitch-f.PitchLow)*(top-bottom)/(f.PitchHigh-f.PitchLow)
}

// Layout positions every note visible at playhead time at.
// Notes entirely left or right of the image are culled.
func (f Frame) Layout(ns []notes.Note, at float64) []Rect {
	playhead := f.PlayheadX()
	width := float64(f.Width)

	rects := make([]Rect, 0, len(ns))
	for _, n := range ns {
		w := max(n.Duration*f.ScrollSpeed, MinNoteWidth)
		x := playhead + (n.Start-at)*f.ScrollSpeed
		if x+w < 0 || x > width {
			continue
		}
		rects = append(rects, Rect{
			X:     x,
			Y:     f.PitchY(float64(n.Pitch)) - f.NoteHeight/2,
			W:     w,
			H:     f.NoteHeight,
			Track: n.Track,
		})
	}
	return rects
}

// TrackColor returns the palette color for a track index
func TrackColor(track int) Color {
	if track < 0 {
		track = -track
	}
	return Palette[track%len(Palette)]
}

var (
	fontOnce  sync.Once
	labelFont *truetype.Font
	fontErr   error
)

// labelFace returns a new face per call; faces cache glyphs and are not
// safe for concurrent use
func labelFace() (font.Face, error) {
	fontOnce.Do(func() {
		labelFont, fontErr = truetype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = fmt.Errorf("failed to parse font: %w", fontErr)
		}
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(labelFont, &truetype.Options{Size: 12}), nil
}

// Draw paints the snapshot at playhead time at onto a new context
func (f Frame) Draw(ns []notes.Note, at float64, unit string) (*gg.Context, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}

	dc := gg.NewContext(f.Width, f.Height)
	dc.SetRGB(background.R, background.G, background.B)
	dc.Clear()

	playhead := f.PlayheadX()
	dc.SetRGB(slateGray.R, slateGray.G, slateGray.B)
	dc.SetLineWidth(2)
	dc.DrawLine(playhead, 0, playhead, float64(f.Height))
	dc.Stroke()

	for _, r := range f.Layout(ns, at) {
		c := TrackColor(r.Track)
		dc.SetRGB(c.R, c.G, c.B)
		dc.DrawRectangle(r.X, r.Y, r.W, r.H)
		dc.Fill()
	}

	face, err := labelFace()
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(face)
	dc.SetRGB(labelColor.R, labelColor.G, labelColor.B)
	dc.DrawString(fmt.Sprintf("%.2f %s", at, unit), playhead+6, 18)

	return dc, nil
}

// Render writes the snapshot as PNG
func (f Frame) Render(w io.Writer, ns []notes.Note, at float64, unit string) error {
	dc, err := f.Draw(ns, at, unit)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}
