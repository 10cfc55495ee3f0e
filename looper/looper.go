package looper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/instrument"
	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/music"
	"github.com/jsphweid/levelup/theory"
)

// Lookup resolves a scale name rooted at a pitch into its notes.
type Lookup func(root, scale string) ([]string, error)

type Options struct {
	Root  string
	Scale string
	// Tempo divides every note's duration; larger is slower.
	Tempo      float64
	Instrument instrument.Instrument

	Lookup Lookup
	// OnComplete runs every time the timer fires and names the scale for
	// the next cycle. An empty name keeps the current scale.
	OnComplete func() string
	// OnPlayNote runs as each note starts to sound.
	OnPlayNote func(model.Note)

	Timer     Timer
	Selector  *music.Selector
	Performer *music.Performer
	// Rearm resets the timer to each cycle's own runtime instead of keeping
	// the first cycle's for as long as the loop stays enabled.
	Rearm  bool
	Logger *log.Logger
}

// Looper plays a scale over and over. Each cycle is a fresh shuffle of the
// scale, played note after note with no gaps, and a new cycle starts every
// time the timer fires.
type Looper struct {
	opts Options

	mu       sync.Mutex
	enabled  bool
	stop     func()
	gen      int
	scale    string
	interval time.Duration

	wg sync.WaitGroup
}

var ErrNoInstrument = errors.New("looper needs an instrument")

func New(opts Options) (*Looper, error) {
	if opts.Instrument == nil {
		return nil, ErrNoInstrument
	}
	if err := music.CheckTempo(opts.Tempo); err != nil {
		return nil, err
	}
	if opts.Lookup == nil {
		opts.Lookup = theory.ScaleNotes
	}
	if opts.Timer == nil {
		opts.Timer = TickerTimer{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Selector == nil {
		opts.Selector = music.NewSelector(nil)
	}
	if opts.Performer == nil {
		opts.Performer = music.NewPerformer(opts.Logger)
	}
	if _, err := opts.Lookup(opts.Root, opts.Scale); err != nil {
		return nil, fmt.Errorf("bad loop on %s: %w", opts.Root, err)
	}
	return &Looper{opts: opts, scale: opts.Scale}, nil
}

// Enable plays a cycle right away and arms the timer with that cycle's
// runtime. Enabling a running loop does nothing. ctx bounds every cycle
// started until the next Disable.
func (l *Looper) Enable(ctx context.Context) error {
	l.mu.Lock()
	if l.enabled && l.stop != nil {
		l.mu.Unlock()
		return nil
	}
	notes, interval, err := l.next()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.enabled = true
	l.arm(ctx, interval)
	l.mu.Unlock()

	l.opts.Logger.Debug("loop enabled", "root", l.opts.Root, "scale", l.Scale(), "interval", interval)
	l.play(ctx, notes)
	return nil
}

// Disable clears the timer. A cycle that is already playing finishes.
func (l *Looper) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	l.gen++
	l.enabled = false
}

func (l *Looper) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Interval is the period the timer is currently armed with, zero when
// disabled.
func (l *Looper) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop == nil {
		return 0
	}
	return l.interval
}

func (l *Looper) Scale() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scale
}

// Wait blocks until every started cycle has finished playing.
func (l *Looper) Wait() {
	l.wg.Wait()
}

// arm must be called with mu held.
func (l *Looper) arm(ctx context.Context, interval time.Duration) {
	if l.stop != nil {
		l.stop()
	}
	l.gen++
	gen := l.gen
	l.interval = interval
	l.stop = l.opts.Timer.Every(interval, func() { l.tick(ctx, gen) })
}

func (l *Looper) tick(ctx context.Context, gen int) {
	if !l.current(gen) {
		return
	}
	var name string
	if l.opts.OnComplete != nil {
		name = l.opts.OnComplete()
	}

	l.mu.Lock()
	if !l.enabled || gen != l.gen {
		l.mu.Unlock()
		return
	}
	prev := l.scale
	if name != "" {
		l.scale = name
	}
	notes, interval, err := l.next()
	if err != nil {
		l.opts.Logger.Warn("keeping previous scale", "scale", name, "err", err)
		l.scale = prev
		notes, interval, err = l.next()
	}
	if err != nil {
		l.mu.Unlock()
		l.opts.Logger.Error("could not start cycle", "err", err)
		return
	}
	if l.opts.Rearm && interval != l.interval {
		l.arm(ctx, interval)
	}
	l.mu.Unlock()

	l.play(ctx, notes)
}

func (l *Looper) current(gen int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled && gen == l.gen
}

// next draws the notes for a cycle and the interval it needs. mu must be
// held.
func (l *Looper) next() ([]model.Note, time.Duration, error) {
	pitches, err := l.opts.Lookup(l.opts.Root, l.scale)
	if err != nil {
		return nil, 0, err
	}
	raw := l.opts.Selector.GetNotes(pitches)
	runtime := music.Runtime(raw, l.opts.Tempo)
	interval := model.Seconds(runtime)
	if interval <= 0 {
		interval = constants.IdleInterval
	}
	return music.AdjustTempo(raw, l.opts.Tempo), interval, nil
}

func (l *Looper) play(ctx context.Context, notes []model.Note) {
	if len(notes) == 0 {
		return
	}
	perf := l.opts.Performer
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		pending := make([]*music.Pending, len(notes))
		for i, n := range notes {
			pending[i] = perf.Schedule(ctx, n, l.opts.Instrument)
		}
		for _, pn := range pending {
			if err := pn.Wait(ctx); err != nil {
				return
			}
			if l.opts.OnPlayNote != nil {
				l.opts.OnPlayNote(pn.Note)
			}
			if err := perf.Commit(ctx, pn); err != nil {
				return
			}
		}
	}()
}
