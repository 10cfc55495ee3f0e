package music

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/instrument"
	"github.com/jsphweid/levelup/model"
)

type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Performer plays notes in two steps. Schedule starts waiting out a note's
// delay in the background and hands back a Pending note; Commit waits for
// that delay, sounds the note and returns once it has rung out. Scheduling
// a whole run first and committing one at a time lets the delays overlap
// while the notes themselves stay in order.
type Performer struct {
	Sleep  Sleeper
	Tail   float64
	Logger *log.Logger
}

func NewPerformer(logger *log.Logger) *Performer {
	if logger == nil {
		logger = log.Default()
	}
	return &Performer{Sleep: Sleep, Tail: constants.ReleaseTail, Logger: logger}
}

type Pending struct {
	Note model.Note

	p     *Performer
	inst  instrument.Instrument
	ready chan struct{}
	err   error
}

func (p *Performer) Schedule(ctx context.Context, note model.Note, inst instrument.Instrument) *Pending {
	pn := &Pending{Note: note, p: p, inst: inst, ready: make(chan struct{})}
	go func() {
		pn.err = p.Sleep(ctx, note.DelayTime())
		close(pn.ready)
	}()
	return pn
}

// Perform schedules the note and waits out its delay.
func (p *Performer) Perform(ctx context.Context, note model.Note, inst instrument.Instrument) (*Pending, error) {
	pn := p.Schedule(ctx, note, inst)
	return pn, pn.Wait(ctx)
}

func (p *Performer) Commit(ctx context.Context, pn *Pending) error {
	return pn.Play(ctx)
}

// Ready is closed once the delay is over.
func (pn *Pending) Ready() <-chan struct{} {
	return pn.ready
}

func (pn *Pending) Wait(ctx context.Context) error {
	select {
	case <-pn.ready:
		return pn.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play sounds the note once its delay is over and waits for the note plus
// its release tail. A failing instrument is logged, never returned: one
// bad note must not stop the run it is part of.
func (pn *Pending) Play(ctx context.Context) error {
	if err := pn.Wait(ctx); err != nil {
		return err
	}
	pn.trigger()
	ring := time.Duration(float64(pn.Note.DurationTime()) * pn.p.Tail)
	return pn.p.Sleep(ctx, ring)
}

func (pn *Pending) trigger() {
	logger := pn.p.Logger
	defer func() {
		if r := recover(); r != nil {
			logger.Error("instrument panicked", "note", pn.Note.Pitch, "panic", r)
		}
	}()
	if err := pn.inst.TriggerAttackRelease(pn.Note.Pitch, pn.Note.DurationTime()); err != nil {
		logger.Error("could not play note", "note", pn.Note.Pitch, "err", err)
	}
}
