package theory

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is a spelled interval such as "3m" or "5d": a number (1 for
// unison) and a quality offset from the major or perfect interval.
type Interval struct {
	Number int
	Alt    int
}

// perfect intervals have no major/minor form
func isPerfect(number int) bool {
	switch (number - 1) % 7 {
	case 0, 3, 4:
		return true
	}
	return false
}

func ParseInterval(s string) (Interval, error) {
	var iv Interval
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	num, err := strconv.Atoi(s[:i])
	if err != nil || num < 1 {
		return iv, fmt.Errorf("bad interval %q", s)
	}
	iv.Number = num
	quality := s[i:]
	perfect := isPerfect(num)

	switch {
	case quality == "P" && perfect, quality == "M" && !perfect:
		iv.Alt = 0
	case quality == "m" && !perfect:
		iv.Alt = -1
	case quality != "" && strings.Trim(quality, "A") == "":
		iv.Alt = len(quality)
	case quality != "" && strings.Trim(quality, "d") == "":
		iv.Alt = -len(quality)
		if !perfect {
			iv.Alt--
		}
	default:
		return iv, fmt.Errorf("bad interval %q: quality %q", s, quality)
	}
	return iv, nil
}

func MustParseIntervals(list string) []Interval {
	fields := strings.Fields(list)
	res := make([]Interval, 0, len(fields))
	for _, f := range fields {
		iv, err := ParseInterval(f)
		if err != nil {
			panic(err)
		}
		res = append(res, iv)
	}
	return res
}

func (iv Interval) Semitones() int {
	simple := (iv.Number - 1) % 7
	octaves := (iv.Number - 1) / 7
	return naturals[simple] + 12*octaves + iv.Alt
}
