package theory

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
)

const letters = "CDEFGAB"

// semitones above C for each natural letter
var naturals = [7]int{0, 2, 4, 5, 7, 9, 11}

// defaultOctave is used to sound pitch classes that carry no octave
const defaultOctave = 4

// Pitch is a spelled pitch: a letter, an accidental offset and maybe an
// octave. "F#3" is {Letter: 3, Alt: 1, Octave: 3, HasOctave: true}.
type Pitch struct {
	Letter    int
	Alt       int
	Octave    int
	HasOctave bool
}

func ParsePitch(name string) (Pitch, error) {
	var p Pitch
	s := strings.TrimSpace(name)
	if s == "" {
		return p, fmt.Errorf("empty pitch name")
	}

	letter := strings.IndexByte(letters, upper(s[0]))
	if letter < 0 {
		return p, fmt.Errorf("bad pitch name %q: unknown letter", name)
	}
	p.Letter = letter
	s = s[1:]

	for len(s) > 0 && (s[0] == '#' || s[0] == 'b') {
		if s[0] == '#' {
			p.Alt++
		} else {
			p.Alt--
		}
		s = s[1:]
	}

	if s == "" {
		return p, nil
	}
	oct, err := strconv.Atoi(s)
	if err != nil {
		return p, fmt.Errorf("bad pitch name %q: octave %q", name, s)
	}
	p.Octave = oct
	p.HasOctave = true
	return p, nil
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func (p Pitch) String() string {
	var b strings.Builder
	b.WriteByte(letters[p.Letter])
	if p.Alt > 0 {
		b.WriteString(strings.Repeat("#", p.Alt))
	} else if p.Alt < 0 {
		b.WriteString(strings.Repeat("b", -p.Alt))
	}
	if p.HasOctave {
		b.WriteString(strconv.Itoa(p.Octave))
	}
	return b.String()
}

// Chroma is the pitch class, 0 for C up to 11 for B.
func (p Pitch) Chroma() int {
	return ((naturals[p.Letter]+p.Alt)%12 + 12) % 12
}

func (p Pitch) semitones() int {
	oct := p.Octave
	if !p.HasOctave {
		oct = defaultOctave
	}
	return (oct+1)*12 + naturals[p.Letter] + p.Alt
}

// Key is the MIDI key number, middle C (C4) being 60.
func (p Pitch) Key() (midi.Note, error) {
	s := p.semitones()
	if s < 0 || s > 127 {
		return 0, fmt.Errorf("pitch %v is outside the MIDI range", p)
	}
	return midi.Note(uint8(s)), nil
}

func (p Pitch) Freq() float64 {
	return 440 * math.Pow(2, float64(p.semitones()-69)/12)
}

// Transpose moves the pitch up by the interval, spelling the result by the
// interval's number so a minor third above D is F, not E#.
func (p Pitch) Transpose(iv Interval) Pitch {
	oct := p.Octave
	if !p.HasOctave {
		oct = defaultOctave
	}
	steps := p.Letter + iv.Number - 1
	res := Pitch{
		Letter:    steps % 7,
		Octave:    oct + steps/7,
		HasOctave: p.HasOctave,
	}
	want := p.semitones() + iv.Semitones()
	res.Alt = want - ((res.Octave+1)*12 + naturals[res.Letter])
	if !p.HasOctave {
		res.Octave = 0
	}
	return res
}

func MidiKey(name string) (midi.Note, error) {
	p, err := ParsePitch(name)
	if err != nil {
		return 0, err
	}
	return p.Key()
}

func Freq(name string) (float64, error) {
	p, err := ParsePitch(name)
	if err != nil {
		return 0, err
	}
	return p.Freq(), nil
}
