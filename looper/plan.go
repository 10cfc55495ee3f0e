package looper

import (
	"time"

	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/music"
	"github.com/jsphweid/levelup/theory"
)

// Timed is a note placed at an offset from when its loop was enabled.
type Timed struct {
	At   time.Duration
	Note model.Note
}

// Plan lays out the first cycles of a loop without playing them: every
// note at the offset where its delay puts it, and every cycle starting one
// interval after the last. Only Root, Scale, Tempo, Lookup, Selector,
// OnComplete and Rearm are used.
func Plan(opts Options, cycles int) ([]Timed, error) {
	if err := music.CheckTempo(opts.Tempo); err != nil {
		return nil, err
	}
	if opts.Lookup == nil {
		opts.Lookup = theory.ScaleNotes
	}
	if opts.Selector == nil {
		opts.Selector = music.NewSelector(nil)
	}

	var res []Timed
	var start, interval time.Duration
	scale := opts.Scale
	for c := 0; c < cycles; c++ {
		if c > 0 && opts.OnComplete != nil {
			if name := opts.OnComplete(); name != "" {
				scale = name
			}
		}
		pitches, err := opts.Lookup(opts.Root, scale)
		if err != nil {
			return nil, err
		}
		raw := opts.Selector.GetNotes(pitches)
		if c == 0 || opts.Rearm {
			interval = model.Seconds(music.Runtime(raw, opts.Tempo))
			if interval <= 0 {
				interval = constants.IdleInterval
			}
		}
		for _, n := range music.AdjustTempo(raw, opts.Tempo) {
			res = append(res, Timed{At: start + n.DelayTime(), Note: n})
		}
		start += interval
	}
	return res, nil
}
