package jam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/broadcast"
	"github.com/jsphweid/levelup/chord"
	"github.com/jsphweid/levelup/config"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/instrument"
	"github.com/jsphweid/levelup/looper"
	"github.com/jsphweid/levelup/model"
	"github.com/jsphweid/levelup/music"
	"github.com/jsphweid/levelup/theory"
	"github.com/jsphweid/levelup/touch"
	"github.com/jsphweid/levelup/util"
)

type Options struct {
	Config config.Config
	// Loops holds one instrument per configured loop, in the same order.
	Loops []instrument.Instrument
	Chord instrument.Instrument
	User  instrument.Instrument
	// Bridge is optional. Without it the session plays alone.
	Bridge *broadcast.Bridge

	Selector  *music.Selector
	Performer *music.Performer
	Timer     looper.Timer
	// Debounce wraps volume changes. Defaults to bep/debounce with the
	// configured delay.
	Debounce func(f func())
	// OnActive is told about every new active note and the shade it maps
	// to.
	OnActive func(note model.Note, shade string)
	Logger   *log.Logger
}

// Session is one person's jam: the ambient loops, the chord voice that
// follows the bass and the notes they play themselves, shared with
// everyone else on the channel.
type Session struct {
	opts   Options
	logger *log.Logger
	loops  []*looper.Looper

	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	scale         string
	chords        []string
	active        *model.Note
	chordsEnabled bool
	chordsPlaying bool
	unsubscribe   func()

	wg sync.WaitGroup
}

var ErrLoopInstruments = errors.New("need one instrument per loop")

func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(opts.Loops) != len(cfg.Loops) {
		return nil, ErrLoopInstruments
	}
	if opts.Chord == nil || opts.User == nil {
		return nil, errors.New("chord and user voices need instruments")
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
	if opts.Debounce == nil {
		if cfg.Debounce > 0 {
			opts.Debounce = debounce.New(cfg.Debounce)
		} else {
			opts.Debounce = func(f func()) { f() }
		}
	}

	s := &Session{
		opts:          opts,
		logger:        opts.Logger,
		ctx:           context.Background(),
		chordsEnabled: cfg.Chords,
	}
	scale := cfg.Scale
	if scale == "" {
		scale = s.randomScale()
	}
	s.setScale(scale)

	for i, l := range cfg.Loops {
		lo := looper.Options{
			Root:       l.Root,
			Scale:      scale,
			Tempo:      l.Tempo,
			Instrument: opts.Loops[i],
			OnComplete: s.nextScale,
			Timer:      opts.Timer,
			Selector:   opts.Selector,
			Performer:  opts.Performer,
			Rearm:      cfg.Rearm,
			Logger:     opts.Logger.With("loop", l.Name),
		}
		// the first loop is the bass everything else follows
		if i == 0 {
			lo.OnPlayNote = s.onBassNote
		}
		lp, err := looper.New(lo)
		if err != nil {
			return nil, fmt.Errorf("loop %s: %w", l.Name, err)
		}
		s.loops = append(s.loops, lp)
	}
	return s, nil
}

// Start enables every loop and, with a bridge, starts playing what others
// play. The session keeps playing after ctx is done; Shutdown ends it.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.ctx = ctx
	s.cancel = cancel
	s.mu.Unlock()

	for _, l := range s.loops {
		if err := l.Enable(ctx); err != nil {
			s.Stop()
			cancel()
			return err
		}
	}
	if s.opts.Bridge != nil {
		cancel := s.opts.Bridge.Subscribe(s.playRemote)
		s.mu.Lock()
		s.unsubscribe = cancel
		s.mu.Unlock()
	}
	s.logger.Info("jam started", "scale", s.Scale(), "loops", len(s.loops))
	return nil
}

// Stop disables the loops and the remote feed. Notes already sounding
// finish; Wait blocks until they have.
func (s *Session) Stop() {
	for _, l := range s.loops {
		l.Disable()
	}
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Session) Wait() {
	for _, l := range s.loops {
		l.Wait()
	}
	s.wg.Wait()
}

// Shutdown stops the session and lets sounding notes ring out until ctx is
// done, then cuts whatever is left short. It returns once nothing plays.
func (s *Session) Shutdown(ctx context.Context) error {
	s.Stop()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done
	return err
}

func (s *Session) Scale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// Chord is the chord the voices currently draw from, "" when the scale has
// none.
func (s *Session) Chord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chords) == 0 {
		return ""
	}
	return s.chords[0]
}

func (s *Session) Active() (model.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return model.Note{}, false
	}
	return *s.active, true
}

func (s *Session) ToggleChords() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chordsEnabled = !s.chordsEnabled
	return s.chordsEnabled
}

func (s *Session) ChordsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chordsEnabled
}

func (s *Session) randomScale() string {
	names := theory.ScaleNames()
	return names[s.opts.Selector.Intn(len(names))]
}

func (s *Session) setScale(name string) {
	chords, err := chord.ForScale(name)
	if err != nil {
		s.logger.Warn("no chords for scale", "scale", name, "err", err)
	}
	s.mu.Lock()
	s.scale = name
	s.chords = chords
	s.mu.Unlock()
}

func (s *Session) nextScale() string {
	name := s.randomScale()
	s.setScale(name)
	s.logger.Info("scale", "name", name)
	return name
}

func (s *Session) onBassNote(n model.Note) {
	s.mu.Lock()
	active := n
	s.active = &active
	s.chords = s.opts.Selector.Shuffle(s.chords)
	play := s.chordsEnabled && !s.chordsPlaying && len(s.chords) > 0
	var name string
	if play {
		s.chordsPlaying = true
		name = s.chords[0]
	}
	ctx := s.ctx
	s.mu.Unlock()

	if s.opts.OnActive != nil {
		freq, err := theory.Freq(n.Pitch.First())
		if err != nil {
			freq = 1
		}
		s.opts.OnActive(n, theory.Shade(freq))
	}
	if play {
		s.wg.Add(1)
		go s.playChord(ctx, name, n)
	}
}

// playChord arpeggiates the chord rooted at the active note, squeezed into
// that note's own timing.
func (s *Session) playChord(ctx context.Context, name string, active model.Note) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.chordsPlaying = false
		s.mu.Unlock()
	}()

	pitches, err := chord.Notes(name, active.Pitch.First())
	if err != nil {
		s.logger.Warn("could not spell chord", "chord", name, "err", err)
		return
	}
	pitches = s.opts.Selector.Shuffle(pitches)
	parts := float64(len(pitches))
	for _, p := range pitches {
		note := model.Note{
			Pitch:    model.Pitches{p},
			Delay:    active.Delay / parts,
			Duration: active.Duration / parts,
		}
		pn, err := s.opts.Performer.Perform(ctx, note, s.opts.Chord)
		if err != nil {
			return
		}
		if err := s.opts.Performer.Commit(ctx, pn); err != nil {
			return
		}
	}
}

// userNote picks what a gesture plays: a note of the current chord rooted
// at the active note, further up the chord the closer the gesture is to
// the diagonal, held for the base length plus however long the gesture
// was held, up to MaxNoteSeconds.
func (s *Session) userNote(x, y float64, hold time.Duration) (model.NoteEvent, error) {
	s.mu.Lock()
	root := s.opts.Config.Loops[0].Root
	if s.active != nil {
		root = s.active.Pitch.First()
	}
	var name string
	if len(s.chords) > 0 {
		name = s.chords[0]
	}
	tempo := s.opts.Config.Loops[0].Tempo
	s.mu.Unlock()

	pitches := []string{root}
	if name != "" {
		notes, err := chord.Notes(name, root)
		if err != nil {
			return model.NoteEvent{}, err
		}
		pitches = notes
	}

	ratio := 1.0
	switch {
	case x > y:
		ratio = y / x
	case x < y:
		ratio = x / y
	}
	idx := int(math.Floor(s.opts.Selector.Float64() * ratio * float64(len(pitches))))
	idx = util.Clamp(idx, 0, len(pitches)-1)

	duration := util.Min(constants.UserNoteLength/tempo+hold.Seconds(), constants.MaxNoteSeconds)
	note, err := model.NewNote(duration, 0, pitches[idx])
	if err != nil {
		return model.NoteEvent{}, err
	}
	return model.NoteEvent{Note: note, X: x, Y: y}, nil
}

// PlayGesture plays a note for a released gesture and shares it. x and y
// are normalized to the surface.
func (s *Session) PlayGesture(x, y float64, hold time.Duration) (model.NoteEvent, error) {
	ev, err := s.userNote(x, y, hold)
	if err != nil {
		return ev, err
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pn, err := s.opts.Performer.Perform(ctx, ev.Note, s.opts.User)
		if err != nil {
			return
		}
		if s.opts.Bridge != nil {
			if err := s.opts.Bridge.Publish(ctx, ev); err != nil {
				s.logger.Warn("could not share note", "note", ev.Pitch, "err", err)
			}
		}
		s.opts.Performer.Commit(ctx, pn)
	}()
	return ev, nil
}

// Surface is a touch surface of the given size that plays gestures into
// the session.
func (s *Session) Surface(rect touch.Rect) *touch.Surface {
	return touch.New(rect, func(x, y float64, hold time.Duration) {
		if _, err := s.PlayGesture(x, y, hold); err != nil {
			s.logger.Warn("could not play gesture", "err", err)
		}
	})
}

func (s *Session) playRemote(userID string, ev model.NoteEvent) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("remote note", "from", userID, "note", ev.Pitch)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pn, err := s.opts.Performer.Perform(ctx, ev.Note, s.opts.User)
		if err != nil {
			return
		}
		s.opts.Performer.Commit(ctx, pn)
	}()
}

// SetVolume sets the ambient level once changes settle. The loops take db
// as is and the chord voice sits below them; the user voice keeps its own
// level.
func (s *Session) SetVolume(db float64) {
	s.opts.Debounce(func() {
		for _, inst := range s.opts.Loops {
			inst.SetVolume(db)
		}
		s.opts.Chord.SetVolume(db + constants.ChordVolumeOffset)
		s.logger.Debug("volume", "db", db)
	})
}
