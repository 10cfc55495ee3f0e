package theory

import (
	"fmt"
	"strings"

	"github.com/jsphweid/levelup/util"
)

var scaleIntervals = map[string]string{
	// pentatonics
	"major pentatonic":            "1P 2M 3M 5P 6M",
	"minor pentatonic":            "1P 3m 4P 5P 7m",
	"ionian pentatonic":           "1P 3M 4P 5P 7M",
	"mixolydian pentatonic":       "1P 3M 4P 5P 7m",
	"lydian pentatonic":           "1P 3M 4A 5P 7M",
	"ritusen":                     "1P 2M 4P 5P 6M",
	"egyptian":                    "1P 2M 4P 5P 7m",
	"neopolitan major pentatonic": "1P 3M 4P 5d 7m",
	"vietnamese 1":                "1P 3m 4P 5P 6m",
	"pelog":                       "1P 2m 3m 5P 6m",
	"kumoijoshi":                  "1P 2m 4P 5P 6m",
	"hirajoshi":                   "1P 2M 3m 5P 6m",
	"iwato":                       "1P 2m 4P 5d 7m",
	"in-sen":                      "1P 2m 4P 5P 7m",
	"malkos raga":                 "1P 3m 4P 6m 7m",
	"scriabin":                    "1P 2m 3M 5P 6M",
	"whole tone pentatonic":       "1P 3M 5d 6m 7m",

	// hexatonics
	"major blues": "1P 2M 3m 3M 5P 6M",
	"minor blues": "1P 3m 4P 5d 5P 7m",
	"augmented":   "1P 2A 3M 5P 5A 7M",
	"whole tone":  "1P 2M 3M 4A 5A 7m",
	"prometheus":  "1P 2M 3M 4A 6M 7m",

	// heptatonics
	"major":                 "1P 2M 3M 4P 5P 6M 7M",
	"dorian":                "1P 2M 3m 4P 5P 6M 7m",
	"phrygian":              "1P 2m 3m 4P 5P 6m 7m",
	"lydian":                "1P 2M 3M 4A 5P 6M 7M",
	"mixolydian":            "1P 2M 3M 4P 5P 6M 7m",
	"aeolian":               "1P 2M 3m 4P 5P 6m 7m",
	"locrian":               "1P 2m 3m 4P 5d 6m 7m",
	"harmonic minor":        "1P 2M 3m 4P 5P 6m 7M",
	"melodic minor":         "1P 2M 3m 4P 5P 6M 7M",
	"enigmatic":             "1P 2m 3M 5d 6m 7m 7M",
	"hungarian minor":       "1P 2M 3m 4A 5P 6m 7M",
	"double harmonic major": "1P 2m 3M 4P 5P 6m 7M",
	"persian":               "1P 2m 3M 4P 5d 6m 7M",
	"flamenco":              "1P 2m 3m 3M 4A 5P 7m",

	// more
	"bebop":      "1P 2M 3M 4P 5P 6M 7m 7M",
	"diminished": "1P 2M 3m 4P 5d 6m 6M 7M",
	"chromatic":  "1P 2m 2M 3m 3M 4P 4A 5P 6m 6M 7m 7M",
}

var scaleAliases = map[string]string{
	"ionian":     "major",
	"minor":      "aeolian",
	"blues":      "minor blues",
	"pentatonic": "major pentatonic",
}

var scales = parseScales()

func parseScales() map[string][]Interval {
	res := make(map[string][]Interval, len(scaleIntervals))
	for name, list := range scaleIntervals {
		res[name] = MustParseIntervals(list)
	}
	return res
}

func lookupScale(name string) ([]Interval, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := scaleAliases[key]; ok {
		key = alias
	}
	ivs, ok := scales[key]
	return ivs, ok
}

// ScaleNames lists every known scale, sorted. Aliases are not listed.
func ScaleNames() []string {
	return util.GetSortedKeys(scales)
}

func HasScale(name string) bool {
	_, ok := lookupScale(name)
	return ok
}

// ScaleNotes spells the scale upwards from root. A root with an octave
// ("D4") gives pitches with octaves.
func ScaleNotes(root, name string) ([]string, error) {
	ivs, ok := lookupScale(name)
	if !ok {
		return nil, fmt.Errorf("unknown scale %q", name)
	}
	tonic, err := ParsePitch(root)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(ivs))
	for i, iv := range ivs {
		res[i] = tonic.Transpose(iv).String()
	}
	return res, nil
}

// ScaleChromas is the set of pitch classes the scale touches, relative to
// its tonic.
func ScaleChromas(name string) (map[int]bool, error) {
	ivs, ok := lookupScale(name)
	if !ok {
		return nil, fmt.Errorf("unknown scale %q", name)
	}
	res := make(map[int]bool, len(ivs))
	for _, iv := range ivs {
		res[iv.Semitones()%12] = true
	}
	return res, nil
}
