package notes

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildTrack turns generated integers into a track. Each value encodes the
// event kind, key, velocity and delta so the generator stays a plain slice.
func buildTrack(codes []int) Track {
	track := make(Track, 0, len(codes))
	for _, c := range codes {
		delta := uint32(c % 97)
		key := uint8((c / 97) % 16) + 56
		switch (c / (97 * 16)) % 5 {
		case 0, 1:
			track = append(track, on(delta, key, 100))
		case 2:
			track = append(track, off(delta, key))
		case 3:
			track = append(track, on(delta, key, 0))
		default:
			track = append(track, tempo(delta, uint32(200000+c%800000)))
		}
	}
	return track
}

func buildSequence(tracks [][]int) *Sequence {
	seq := &Sequence{Timing: Metrical(96)}
	for _, codes := range tracks {
		seq.Tracks = append(seq.Tracks, buildTrack(codes))
	}
	return seq
}

func trackGen() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 1_000_000))
}

func TestExtractOutputProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("notes have non-negative duration and valid pitch", prop.ForAll(
		func(a, b []int) bool {
			seq := buildSequence([][]int{a, b})
			for _, mode := range []Mode{ModeTicks, ModeSeconds} {
				ns, err := Extract(seq, Options{Mode: mode})
				if err != nil {
					return false
				}
				for _, n := range ns {
					if n.Duration < 0 || n.Start < 0 || n.Pitch > MaxPitch {
						return false
					}
					if n.Track < 0 || n.Track > 1 {
						return false
					}
				}
			}
			return true
		},
		trackGen(), trackGen(),
	))

	properties.Property("emitted notes never exceed releases", prop.ForAll(
		func(a []int) bool {
			seq := buildSequence([][]int{a})
			ns, err := ExtractTicks(seq)
			if err != nil {
				return false
			}
			releases := 0
			for _, ev := range seq.Tracks[0] {
				if ev.Kind == EventNoteOff || (ev.Kind == EventNoteOn && ev.Velocity == 0) {
					releases++
				}
			}
			return len(ns) <= releases
		},
		trackGen(),
	))

	properties.Property("parallel extraction matches sequential", prop.ForAll(
		func(a, b, c []int) bool {
			seq := buildSequence([][]int{a, b, c})
			want, err := Extract(seq, Options{Mode: ModeSeconds})
			if err != nil {
				return false
			}
			got, err := Extract(seq, Options{Mode: ModeSeconds, Parallel: true})
			if err != nil || len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		trackGen(), trackGen(), trackGen(),
	))

	properties.Property("seconds equal ticks scaled at constant tempo", prop.ForAll(
		func(a []int) bool {
			seq := buildSequence([][]int{a})
			// Strip tempo changes so the default tempo holds throughout
			var flat Track
			for _, ev := range seq.Tracks[0] {
				if ev.Kind == EventTempo {
					ev.Kind = EventOther
				}
				flat = append(flat, ev)
			}
			seq.Tracks[0] = flat

			ticks, err := ExtractTicks(seq)
			if err != nil {
				return false
			}
			secs, err := ExtractSeconds(seq)
			if err != nil || len(ticks) != len(secs) {
				return false
			}
			scale := float64(DefaultTempo) / 1e6 / float64(seq.Timing.PPQ)
			for i := range ticks {
				if ticks[i].Pitch != secs[i].Pitch {
					return false
				}
				if !approxRel(ticks[i].Start*scale, secs[i].Start) || !approxRel(ticks[i].Duration*scale, secs[i].Duration) {
					return false
				}
			}
			return true
		},
		trackGen(),
	))

	properties.TestingRun(t)
}

func approxRel(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= 1e-9*(1+max(a, b))
}
