package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jsphweid/levelup/constants"
)

// Pitches is one or more pitch names in scientific notation ("D4", "F#3").
// It is a single string on the wire when it holds one pitch.
type Pitches []string

func (p Pitches) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(p[0])
	}
	return json.Marshal([]string(p))
}

func (p *Pitches) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = Pitches{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("note must be a pitch or a list of pitches: %w", err)
	}
	*p = many
	return nil
}

func (p Pitches) String() string {
	return strings.Join(p, ",")
}

// First returns the lead pitch, or "" when there is none.
func (p Pitches) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Note is a single performable event. Duration and Delay are seconds.
type Note struct {
	Pitch    Pitches `json:"note"`
	Duration float64 `json:"duration"`
	Delay    float64 `json:"delay"`
}

var ErrNoPitch = errors.New("note has no pitch")

func NewNote(duration, delay float64, pitches ...string) (Note, error) {
	n := Note{Pitch: Pitches(pitches), Duration: duration, Delay: delay}
	return n, n.Validate()
}

// Validate checks that a note can be played: at least one pitch, no blank
// pitches, and a duration and delay between zero and MaxNoteSeconds.
func (n Note) Validate() error {
	if len(n.Pitch) == 0 {
		return ErrNoPitch
	}
	for _, p := range n.Pitch {
		if strings.TrimSpace(p) == "" {
			return ErrNoPitch
		}
	}
	if !inRange(n.Duration) {
		return fmt.Errorf("note %v has duration %v outside [0, %d]", n.Pitch, n.Duration, constants.MaxNoteSeconds)
	}
	if !inRange(n.Delay) {
		return fmt.Errorf("note %v has delay %v outside [0, %d]", n.Pitch, n.Delay, constants.MaxNoteSeconds)
	}
	return nil
}

// NaN fails both comparisons
func inRange(s float64) bool {
	return s >= 0 && s <= constants.MaxNoteSeconds
}

func (n Note) DurationTime() time.Duration {
	return Seconds(n.Duration)
}

func (n Note) DelayTime() time.Duration {
	return Seconds(n.Delay)
}

func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// NoteEvent is a note somebody played on the surface, with where they
// touched it in normalized coordinates.
type NoteEvent struct {
	Note
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (e NoteEvent) Validate() error {
	if err := e.Note.Validate(); err != nil {
		return err
	}
	if !(e.X >= 0 && e.X <= 1 && e.Y >= 0 && e.Y <= 1) {
		return fmt.Errorf("position (%v, %v) is outside the surface", e.X, e.Y)
	}
	return nil
}
