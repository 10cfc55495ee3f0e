package touch

import (
	"sync"
	"time"

	"github.com/jsphweid/levelup/util"
)

// noPress marks a pointer that is not held down.
const noPress time.Duration = -1

type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Point is one touch contact in page coordinates.
type Point struct {
	ID int
	X  float64
	Y  float64
}

// PlayFunc receives a released gesture: where it ended, normalized to the
// surface, and how long it was held.
type PlayFunc func(x, y float64, touchLength time.Duration)

// Surface turns press/release pairs into notes to play. Timestamps are
// offsets from any fixed origin, the way DOM event timestamps are.
type Surface struct {
	mu      sync.Mutex
	rect    Rect
	mouse   time.Duration
	touches map[int]time.Duration
	play    PlayFunc
}

func New(rect Rect, play PlayFunc) *Surface {
	return &Surface{
		rect:    rect,
		mouse:   noPress,
		touches: make(map[int]time.Duration),
		play:    play,
	}
}

func (s *Surface) Resize(rect Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rect = rect
}

func (s *Surface) normalize(px, py float64) (float64, float64) {
	var x, y float64
	if s.rect.Width > 0 {
		x = (px - s.rect.Left) / s.rect.Width
	}
	if s.rect.Height > 0 {
		y = (py - s.rect.Top) / s.rect.Height
	}
	return util.Clamp(x, 0, 1), util.Clamp(y, 0, 1)
}

func (s *Surface) MouseDown(ts time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mouse = ts
}

// MouseUp reports whether the release completed a press.
func (s *Surface) MouseUp(ts time.Duration, pageX, pageY float64) bool {
	s.mu.Lock()
	start := s.mouse
	if start <= noPress {
		s.mu.Unlock()
		return false
	}
	s.mouse = noPress
	x, y := s.normalize(pageX, pageY)
	s.mu.Unlock()

	s.play(x, y, ts-start)
	return true
}

func (s *Surface) TouchStart(ts time.Duration, touches ...Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range touches {
		s.touches[t.ID] = ts
	}
}

// TouchEnd plays one note per released touch that was pressed, and returns
// how many it played.
func (s *Surface) TouchEnd(ts time.Duration, touches ...Point) int {
	type release struct {
		x, y   float64
		length time.Duration
	}

	s.mu.Lock()
	var releases []release
	for _, t := range touches {
		start, ok := s.touches[t.ID]
		if !ok {
			continue
		}
		delete(s.touches, t.ID)
		x, y := s.normalize(t.X, t.Y)
		releases = append(releases, release{x: x, y: y, length: ts - start})
	}
	s.mu.Unlock()

	for _, r := range releases {
		s.play(r.x, r.y, r.length)
	}
	return len(releases)
}
