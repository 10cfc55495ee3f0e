package looper

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/music"
	"github.com/jsphweid/levelup/theory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type armed struct {
	d       time.Duration
	f       func()
	stopped bool
}

type fakeTimer struct {
	mu    sync.Mutex
	armed []*armed
}

func (t *fakeTimer) Every(d time.Duration, f func()) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := &armed{d: d, f: f}
	t.armed = append(t.armed, a)
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		a.stopped = true
	}
}

func (t *fakeTimer) live() []*armed {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []*armed
	for _, a := range t.armed {
		if !a.stopped {
			res = append(res, a)
		}
	}
	return res
}

// fire runs every live timer the way a ticker would.
func (t *fakeTimer) fire() {
	for _, a := range t.live() {
		a.f()
	}
}

type silent struct{}

func (silent) TriggerAttackRelease([]string, time.Duration) error { return nil }
func (silent) SetVolume(float64)                                  {}
func (silent) Volume() float64                                    { return 0 }

type recorder struct {
	mu    sync.Mutex
	notes []model.Note
}

func (r *recorder) onPlay(n model.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) pitches() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []string
	for _, n := range r.notes {
		res = append(res, n.Pitch.First())
	}
	return res
}

func instantPerformer() *music.Performer {
	p := music.NewPerformer(log.New(io.Discard))
	p.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func newTestLooper(t *testing.T, timer Timer, rec *recorder, opts Options) *Looper {
	t.Helper()
	if opts.Root == "" {
		opts.Root = "D4"
	}
	if opts.Scale == "" {
		opts.Scale = "enigmatic"
	}
	if opts.Tempo == 0 {
		opts.Tempo = 4
	}
	opts.Instrument = silent{}
	opts.Timer = timer
	opts.Selector = music.NewSelector(rand.NewSource(1))
	opts.Performer = instantPerformer()
	opts.Logger = log.New(io.Discard)
	if rec != nil {
		opts.OnPlayNote = rec.onPlay
	}
	l, err := New(opts)
	require.NoError(t, err)
	return l
}

func TestEnablePlaysCycleAndArmsRuntime(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	l := newTestLooper(t, timer, rec, Options{})

	require.NoError(t, l.Enable(context.Background()))
	l.Wait()

	want, err := theory.ScaleNotes("D4", "enigmatic")
	require.NoError(t, err)
	assert.ElementsMatch(t, want, rec.pitches())

	var runtime float64
	for _, n := range rec.notes {
		runtime += n.Duration
	}
	assert.Greater(t, runtime, 0.0)
	require.Len(t, timer.live(), 1)
	assert.Equal(t, model.Seconds(runtime), timer.live()[0].d)
	assert.Equal(t, model.Seconds(runtime), l.Interval())
}

func TestCycleNotesAreBackToBack(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	l := newTestLooper(t, timer, rec, Options{})
	require.NoError(t, l.Enable(context.Background()))
	l.Wait()

	var offset float64
	for i, n := range rec.notes {
		if i > 0 {
			assert.InDelta(t, offset, n.Delay, 1e-9)
		}
		offset += n.Duration
	}
}

func TestEnableTwiceIsNoop(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	l := newTestLooper(t, timer, rec, Options{})

	require.NoError(t, l.Enable(context.Background()))
	require.NoError(t, l.Enable(context.Background()))
	l.Wait()

	assert.Len(t, timer.armed, 1)
	assert.Len(t, rec.notes, 7)
}

func TestDisableStopsFurtherNotes(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	l := newTestLooper(t, timer, rec, Options{})

	require.NoError(t, l.Enable(context.Background()))
	l.Wait()
	tick := timer.armed[0].f
	played := len(rec.pitches())

	l.Disable()
	assert.False(t, l.Enabled())
	assert.Empty(t, timer.live())
	assert.Zero(t, l.Interval())

	// a tick already in flight when the timer is cleared
	tick()
	l.Wait()
	assert.Len(t, rec.pitches(), played)
}

func TestReenableStartsFresh(t *testing.T) {
	timer := &fakeTimer{}
	l := newTestLooper(t, timer, nil, Options{})

	require.NoError(t, l.Enable(context.Background()))
	l.Disable()
	require.NoError(t, l.Enable(context.Background()))
	l.Wait()

	assert.Len(t, timer.armed, 2)
	assert.Len(t, timer.live(), 1)
}

func TestTickUsesOnCompleteScale(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	calls := 0
	l := newTestLooper(t, timer, rec, Options{
		Scale: "major pentatonic",
		OnComplete: func() string {
			calls++
			return "minor pentatonic"
		},
	})

	require.NoError(t, l.Enable(context.Background()))
	l.Wait()
	first := l.Interval()
	timer.fire()
	l.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, "minor pentatonic", l.Scale())
	want, err := theory.ScaleNotes("D4", "minor pentatonic")
	require.NoError(t, err)
	assert.ElementsMatch(t, want, rec.pitches()[5:])

	// interval stays with the first cycle
	require.Len(t, timer.live(), 1)
	assert.Equal(t, first, timer.live()[0].d)
}

func TestTickKeepsScaleOnUnknownName(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	l := newTestLooper(t, timer, rec, Options{
		Scale:      "major pentatonic",
		OnComplete: func() string { return "not a scale" },
	})

	require.NoError(t, l.Enable(context.Background()))
	timer.fire()
	l.Wait()

	assert.Equal(t, "major pentatonic", l.Scale())
	assert.Len(t, rec.pitches(), 10)
}

func TestRearmFollowsEachCycle(t *testing.T) {
	timer := &fakeTimer{}
	l := newTestLooper(t, timer, nil, Options{
		Scale:      "major",
		Rearm:      true,
		OnComplete: func() string { return "major pentatonic" },
	})

	require.NoError(t, l.Enable(context.Background()))
	timer.fire()
	l.Wait()

	live := timer.live()
	require.Len(t, live, 1)
	assert.Equal(t, l.Interval(), live[0].d)
	if len(timer.armed) == 2 {
		assert.True(t, timer.armed[0].stopped)
	}
}

func TestEmptyScaleIdles(t *testing.T) {
	timer := &fakeTimer{}
	rec := &recorder{}
	l := newTestLooper(t, timer, rec, Options{
		Lookup: func(root, scale string) ([]string, error) {
			if scale == "nothing" {
				return nil, nil
			}
			return theory.ScaleNotes(root, scale)
		},
		Scale:      "nothing",
		OnComplete: func() string { return "major" },
	})

	require.NoError(t, l.Enable(context.Background()))
	l.Wait()
	assert.Empty(t, rec.pitches())
	assert.Equal(t, time.Second, l.Interval())

	timer.fire()
	l.Wait()
	assert.Len(t, rec.pitches(), 7)
}

func TestTwoLoopsKeepTheirOwnOrder(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var events []string

	run := func(name, root string, tempo float64) (*Looper, *recorder) {
		rec := &recorder{}
		opts := Options{
			Root:       root,
			Scale:      "major",
			Tempo:      tempo,
			Instrument: silent{},
			Timer:      &fakeTimer{},
			Selector:   music.NewSelector(rand.NewSource(int64(tempo))),
			Logger:     log.New(io.Discard),
			OnPlayNote: func(n model.Note) {
				mu.Lock()
				events = append(events, name+":"+n.Pitch.First())
				mu.Unlock()
				rec.onPlay(n)
			},
		}
		perf := music.NewPerformer(log.New(io.Discard))
		perf.Sleep = func(ctx context.Context, d time.Duration) error {
			return music.Sleep(ctx, d/1000)
		}
		opts.Performer = perf
		l, err := New(opts)
		require.NoError(t, err)
		require.NoError(t, l.Enable(ctx))
		return l, rec
	}

	bass, bassRec := run("bass", "D3", 30)
	mid, midRec := run("mid", "D4", 4)
	bass.Wait()
	mid.Wait()

	for _, rec := range []*recorder{bassRec, midRec} {
		require.Len(t, rec.notes, 7)
		for i := 1; i < len(rec.notes); i++ {
			assert.GreaterOrEqual(t, rec.notes[i].Delay, rec.notes[i-1].Delay)
		}
	}

	var bassSeen, midSeen []string
	for _, e := range events {
		switch e[:3] {
		case "bas":
			bassSeen = append(bassSeen, e[5:])
		case "mid":
			midSeen = append(midSeen, e[4:])
		}
	}
	assert.Equal(t, bassRec.pitches(), bassSeen)
	assert.Equal(t, midRec.pitches(), midSeen)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Root: "D4", Scale: "major", Tempo: 1})
	assert.ErrorIs(t, err, ErrNoInstrument)

	_, err = New(Options{Root: "D4", Scale: "major", Tempo: 0, Instrument: silent{}})
	assert.Error(t, err)

	_, err = New(Options{Root: "D4", Scale: "nope", Tempo: 1, Instrument: silent{}})
	assert.Error(t, err)
}

func TestTickerTimer(t *testing.T) {
	fired := make(chan struct{}, 10)
	stop := TickerTimer{}.Every(time.Millisecond, func() { fired <- struct{}{} })
	<-fired
	stop()
	stop()
}

func TestPlanKeepsFirstInterval(t *testing.T) {
	opts := Options{
		Root:       "D4",
		Scale:      "major",
		Tempo:      4,
		Selector:   music.NewSelector(rand.NewSource(5)),
		OnComplete: func() string { return "major pentatonic" },
	}
	plan, err := Plan(opts, 3)
	require.NoError(t, err)
	require.Len(t, plan, 7+5+5)

	var first time.Duration
	for _, tn := range plan[:7] {
		first += tn.Note.DurationTime()
	}
	assert.Zero(t, plan[0].At)
	assert.Equal(t, plan[7].At, plan[0].At+model.Seconds(music.Runtime(notesOf(plan[:7]), 1)))
	assert.InDelta(t, first.Seconds(), plan[7].At.Seconds(), 1e-6)
	assert.InDelta(t, 2*first.Seconds(), plan[12].At.Seconds(), 1e-6)
	for i := 1; i < len(plan); i++ {
		assert.GreaterOrEqual(t, plan[i].At, plan[i-1].At)
	}
}

func TestPlanRearm(t *testing.T) {
	opts := Options{
		Root:       "D4",
		Scale:      "major",
		Tempo:      4,
		Selector:   music.NewSelector(rand.NewSource(5)),
		OnComplete: func() string { return "major pentatonic" },
		Rearm:      true,
	}
	plan, err := Plan(opts, 3)
	require.NoError(t, err)

	second := model.Seconds(music.Runtime(notesOf(plan[7:12]), 1))
	assert.InDelta(t, (plan[7].At + second).Seconds(), plan[12].At.Seconds(), 1e-6)
}

func TestPlanErrors(t *testing.T) {
	_, err := Plan(Options{Root: "D4", Scale: "major"}, 1)
	assert.Error(t, err)
	_, err = Plan(Options{Root: "D4", Scale: "nope", Tempo: 1}, 1)
	assert.Error(t, err)
}

func notesOf(plan []Timed) []model.Note {
	res := make([]model.Note, len(plan))
	for i, tn := range plan {
		res[i] = tn.Note
	}
	return res
}
