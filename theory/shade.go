package theory

import "math"

var shades = []struct {
	above float64
	name  string
}{
	{80, "amber-700"},
	{70, "amber-600"},
	{60, "amber-500"},
	{50, "slate-500"},
	{40, "slate-600"},
	{30, "slate-700"},
	{20, "slate-800"},
}

// Shade buckets a frequency into a background shade for whoever draws the
// surface. Only the frequency modulo 100 matters.
func Shade(freq float64) string {
	f := math.Mod(freq, 100)
	for _, s := range shades {
		if f > s.above {
			return s.name
		}
	}
	return "slate-900"
}
