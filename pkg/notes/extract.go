package notes

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Extract pairs note-on and note-off events in every track of seq and
// returns the resulting notes in emission order, track by track.
//
// In ModeTicks positions are absolute ticks and tempo events are ignored.
// In ModeSeconds positions are seconds, converted with the tempo in effect
// when each delta elapses; this requires metrical timing.
func Extract(seq *Sequence, opts Options) ([]Note, error) {
	if seq == nil {
		return nil, fmt.Errorf("%w: nil sequence", ErrMalformedStream)
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeTicks
	}

	var ppq float64
	switch mode {
	case ModeTicks:
	case ModeSeconds:
		if seq.Timing.Kind != TimingMetrical {
			return nil, fmt.Errorf("%w: timecode division", ErrUnsupportedTiming)
		}
		if seq.Timing.PPQ == 0 {
			return nil, fmt.Errorf("%w: zero ticks per quarter note", ErrUnsupportedTiming)
		}
		ppq = float64(seq.Timing.PPQ)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	log := opts.logger()
	scan := func(idx int) []Note {
		s := scanner{mode: mode, ppq: ppq, track: idx, log: log}
		return s.run(seq.Tracks[idx])
	}

	perTrack := make([][]Note, len(seq.Tracks))
	if opts.Parallel && len(seq.Tracks) > 1 {
		var g errgroup.Group
		for i := range seq.Tracks {
			g.Go(func() error {
				perTrack[i] = scan(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range seq.Tracks {
			perTrack[i] = scan(i)
		}
	}

	total := 0
	for _, tn := range perTrack {
		total += len(tn)
	}
	all := make([]Note, 0, total)
	for _, tn := range perTrack {
		all = append(all, tn...)
	}
	return all, nil
}

// ExtractTicks is Extract in tick mode with default options
func ExtractTicks(seq *Sequence) ([]Note, error) {
	return Extract(seq, Options{Mode: ModeTicks})
}

// ExtractSeconds is Extract in seconds mode with default options
func ExtractSeconds(seq *Sequence) ([]Note, error) {
	return Extract(seq, Options{Mode: ModeSeconds})
}

// IsUnsupportedTiming reports whether err was caused by a non-metrical header
func IsUnsupportedTiming(err error) bool {
	return errors.Is(err, ErrUnsupportedTiming)
}

// scanner holds the transient state of one track
type scanner struct {
	mode  Mode
	ppq   float64
	track int
	log   *slog.Logger

	position float64
	tempo    uint32
	active   [MaxPitch + 1]float64
	pending  [MaxPitch + 1]bool
}

func (s *scanner) run(events Track) []Note {
	s.tempo = DefaultTempo
	var out []Note

	for i, ev := range events {
		s.advance(ev.Delta)

		switch ev.Kind {
		case EventTempo:
			if s.mode != ModeSeconds {
				continue
			}
			if ev.Tempo == 0 {
				s.log.Debug("ignoring zero tempo", "track", s.track, "event", i)
				continue
			}
			s.tempo = ev.Tempo

		case EventNoteOn, EventNoteOff:
			if ev.Key > MaxPitch {
				s.log.Debug("ignoring note event with invalid key", "track", s.track, "event", i, "key", ev.Key)
				continue
			}
			if ev.Kind == EventNoteOn && ev.Velocity > 0 {
				if s.pending[ev.Key] {
					// Retrigger: the earlier interval is lost
					s.log.Debug("note retriggered before release", "track", s.track, "pitch", ev.Key, "dropped_start", s.active[ev.Key])
				}
				s.active[ev.Key] = s.position
				s.pending[ev.Key] = true
				continue
			}
			if n, ok := s.release(ev.Key); ok {
				out = append(out, n)
			} else {
				s.log.Debug("note-off without matching note-on", "track", s.track, "event", i, "pitch", ev.Key)
			}
		}
	}

	if hanging := s.hanging(); hanging > 0 {
		s.log.Debug("dropping unterminated notes", "track", s.track, "count", hanging)
	}
	return out
}

// advance moves the absolute position by delta ticks
func (s *scanner) advance(delta uint32) {
	if s.mode == ModeSeconds {
		secondsPerTick := (float64(s.tempo) / 1_000_000) / s.ppq
		s.position += float64(delta) * secondsPerTick
		return
	}
	s.position += float64(delta)
}

func (s *scanner) release(key uint8) (Note, bool) {
	if !s.pending[key] {
		return Note{}, false
	}
	start := s.active[key]
	s.pending[key] = false

	duration := s.position - start
	if duration < 0 {
		duration = 0
	}
	return Note{
		Pitch:    key,
		Start:    start,
		Duration: duration,
		Track:    s.track,
	}, true
}

func (s *scanner) hanging() int {
	n := 0
	for _, p := range s.pending {
		if p {
			n++
		}
	}
	return n
}
