package music

import (
	"fmt"

	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/util"
)

func CheckTempo(tempo float64) error {
	if tempo <= 0 {
		return fmt.Errorf("tempo factor must be positive, got %v", tempo)
	}
	return nil
}

// AdjustTempo divides every duration by the tempo factor and lines the
// notes up back to back: each note after the first is delayed by the sum
// of the adjusted durations before it.
func AdjustTempo(notes []model.Note, tempo float64) []model.Note {
	res := make([]model.Note, len(notes))
	var offset float64
	for i, n := range notes {
		n.Duration = n.Duration / tempo
		if i > 0 {
			n.Delay = offset
		}
		offset += n.Duration
		res[i] = n
	}
	return res
}

// Runtime is how long one pass over the notes takes at the tempo factor.
func Runtime(notes []model.Note, tempo float64) float64 {
	durations := make([]float64, len(notes))
	for i, n := range notes {
		durations[i] = n.Duration / tempo
	}
	return util.Sum(durations)
}
