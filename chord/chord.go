package chord

import (
	"fmt"
	"sort"

	"github.com/jsphweid/levelup/theory"
)

type Chord struct {
	Name      string
	Intervals []theory.Interval
}

var chordIntervals = map[string]string{
	"5":       "1P 5P",
	"M":       "1P 3M 5P",
	"m":       "1P 3m 5P",
	"dim":     "1P 3m 5d",
	"aug":     "1P 3M 5A",
	"sus2":    "1P 2M 5P",
	"sus4":    "1P 4P 5P",
	"6":       "1P 3M 5P 6M",
	"m6":      "1P 3m 5P 6M",
	"7":       "1P 3M 5P 7m",
	"maj7":    "1P 3M 5P 7M",
	"m7":      "1P 3m 5P 7m",
	"mMaj7":   "1P 3m 5P 7M",
	"m7b5":    "1P 3m 5d 7m",
	"dim7":    "1P 3m 5d 7d",
	"7sus4":   "1P 4P 5P 7m",
	"add9":    "1P 3M 5P 9M",
	"madd9":   "1P 3m 5P 9M",
	"69":      "1P 3M 5P 6M 9M",
	"9":       "1P 3M 5P 7m 9M",
	"maj9":    "1P 3M 5P 7M 9M",
	"m9":      "1P 3m 5P 7m 9M",
	"m11":     "1P 3m 5P 7m 9M 11P",
	"maj7#11": "1P 3M 5P 7M 11A",
}

var chords = loadChords()

func loadChords() map[string]Chord {
	res := make(map[string]Chord, len(chordIntervals))
	for name, list := range chordIntervals {
		res[name] = Chord{Name: name, Intervals: theory.MustParseIntervals(list)}
	}
	return res
}

func Get(name string) (Chord, bool) {
	c, ok := chords[name]
	return c, ok
}

func Names() []string {
	names := make([]string, 0, len(chords))
	for name := range chords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Notes spells the chord upwards from root.
func Notes(name string, root string) ([]string, error) {
	c, ok := chords[name]
	if !ok {
		return nil, fmt.Errorf("unknown chord %q", name)
	}
	tonic, err := theory.ParsePitch(root)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(c.Intervals))
	for i, iv := range c.Intervals {
		res[i] = tonic.Transpose(iv).String()
	}
	return res, nil
}

func (c Chord) chromas() []int {
	res := make([]int, len(c.Intervals))
	for i, iv := range c.Intervals {
		res[i] = iv.Semitones() % 12
	}
	return res
}

// ForScale lists the chords built on the scale's tonic whose notes all
// belong to the scale and that have more than two notes, so the power
// chord never shows up.
func ForScale(scaleName string) ([]string, error) {
	inScale, err := theory.ScaleChromas(scaleName)
	if err != nil {
		return nil, err
	}
	var res []string
ChordLoop:
	for _, name := range Names() {
		c := chords[name]
		if len(c.Intervals) <= 2 {
			continue
		}
		for _, chroma := range c.chromas() {
			if !inScale[chroma] {
				continue ChordLoop
			}
		}
		res = append(res, name)
	}
	return res, nil
}
