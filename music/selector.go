package music

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/util"
)

// Selector turns a scale into a freshly shuffled run of notes.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Selector{rng: rand.New(src)}
}

// GetNotes shuffles the scale and gives every pitch a random duration.
// Only the first note starts right away; the rest carry a spacing delay
// that the loop replaces with its own timing. An empty scale gives no
// notes.
func (s *Selector) GetNotes(scale []string) []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	shuffled := util.Shuffle(s.rng, scale)
	span := constants.MaxNoteDuration - constants.MinNoteDuration + 1
	res := make([]model.Note, len(shuffled))
	for i, pitch := range shuffled {
		res[i] = model.Note{
			Pitch:    model.Pitches{pitch},
			Duration: float64(s.rng.Intn(span) + constants.MinNoteDuration),
		}
		if i > 0 {
			res[i].Delay = constants.NoteSpacing
		}
	}
	return res
}

// Intn is a locked draw from the selector's source, for callers that want
// their randomness to follow the same seed.
func (s *Selector) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Selector) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Selector) Shuffle(items []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return util.Shuffle(s.rng, items)
}
