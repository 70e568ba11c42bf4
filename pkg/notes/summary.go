package notes

import (
	"cmp"
	"slices"
)

// SortByStart orders notes by start, then pitch, then track
func SortByStart(ns []Note) {
	slices.SortStableFunc(ns, func(a, b Note) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.Pitch, b.Pitch),
			cmp.Compare(a.Track, b.Track),
		)
	})
}

// SortByPitch orders notes by pitch, then start
func SortByPitch(ns []Note) {
	slices.SortStableFunc(ns, func(a, b Note) int {
		return cmp.Or(
			cmp.Compare(a.Pitch, b.Pitch),
			cmp.Compare(a.Start, b.Start),
		)
	})
}

// Summary describes an extracted note list
type Summary struct {
	Notes     int         `json:"notes"`
	Tracks    map[int]int `json:"tracks"` // Notes per track index
	LowPitch  uint8       `json:"low_pitch"`
	HighPitch uint8       `json:"high_pitch"`
	End       float64     `json:"end"`
}

// Summarize computes counts, pitch range and the latest note end
func Summarize(ns []Note) Summary {
	s := Summary{Tracks: make(map[int]int)}
	for i, n := range ns {
		s.Notes++
		s.Tracks[n.Track]++
		if i == 0 || n.Pitch < s.LowPitch {
			s.LowPitch = n.Pitch
		}
		if i == 0 || n.Pitch > s.HighPitch {
			s.HighPitch = n.Pitch
		}
		s.End = max(s.End, n.End())
	}
	return s
}
