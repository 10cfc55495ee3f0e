package midi

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/instrument"
	"github.com/jsphweid/levelup/theory"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type Sender = func(msg midi.Message) error

const allNotesOffCC = 123

// Instrument plays notes on one channel of a MIDI output. Volume is mapped
// to note-on velocity. A key struck again while it still sounds is
// released only by its last note-off.
type Instrument struct {
	send    Sender
	channel uint8
	vol     *instrument.Volume
	logger  *log.Logger

	mu   sync.Mutex
	held map[uint8]int

	// after schedules the note-off; replaced in tests
	after func(d time.Duration, f func())
}

func NewInstrument(send Sender, channel uint8, db float64, logger *log.Logger) *Instrument {
	if logger == nil {
		logger = log.Default()
	}
	return &Instrument{
		send:    send,
		channel: channel,
		vol:     instrument.NewVolume(db),
		logger:  logger.With("channel", channel),
		held:    make(map[uint8]int),
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

func (i *Instrument) velocity() uint8 {
	return uint8(math.Round(i.vol.Gain() * 127))
}

func (i *Instrument) TriggerAttackRelease(pitches []string, d time.Duration) error {
	keys := make([]uint8, 0, len(pitches))
	for _, p := range pitches {
		key, err := theory.MidiKey(p)
		if err != nil {
			return err
		}
		keys = append(keys, uint8(key))
	}

	vel := i.velocity()
	if vel == 0 {
		// a zero velocity note-on is a note-off, nothing to play
		return nil
	}

	var errs []error
	var struck []uint8
	for _, key := range keys {
		if err := i.send(midi.NoteOn(i.channel, key, vel)); err != nil {
			errs = append(errs, fmt.Errorf("note on %v: %w", key, err))
			continue
		}
		i.mu.Lock()
		i.held[key]++
		i.mu.Unlock()
		struck = append(struck, key)
	}
	if len(struck) > 0 {
		i.after(d, func() {
			for _, key := range struck {
				i.release(key)
			}
		})
	}
	return errors.Join(errs...)
}

func (i *Instrument) release(key uint8) {
	i.mu.Lock()
	n := i.held[key]
	switch {
	case n == 0:
		// already let go by Close
		i.mu.Unlock()
		return
	case n > 1:
		i.held[key] = n - 1
		i.mu.Unlock()
		return
	}
	delete(i.held, key)
	i.mu.Unlock()

	if err := i.send(midi.NoteOff(i.channel, key)); err != nil {
		i.logger.Error("could not send note off", "key", key, "err", err)
	}
}

// Close releases every key still sounding and sends all-notes-off on the
// channel. Note-offs still scheduled afterwards send nothing.
func (i *Instrument) Close() error {
	i.mu.Lock()
	keys := make([]uint8, 0, len(i.held))
	for key := range i.held {
		keys = append(keys, key)
	}
	i.held = make(map[uint8]int)
	i.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := i.send(midi.NoteOff(i.channel, key)); err != nil {
			errs = append(errs, fmt.Errorf("note off %v: %w", key, err))
		}
	}
	if err := i.send(midi.ControlChange(i.channel, allNotesOffCC, 0)); err != nil {
		errs = append(errs, fmt.Errorf("all notes off: %w", err))
	}
	return errors.Join(errs...)
}

func (i *Instrument) SetVolume(db float64) {
	i.vol.Set(db)
}

func (i *Instrument) Volume() float64 {
	return i.vol.Get()
}

// OpenOut finds an output port whose name contains name and returns a
// sender for it. A driver must be registered by the caller.
func OpenOut(name string) (Sender, error) {
	var names []string
	for _, port := range midi.GetOutPorts() {
		if strings.Contains(port.String(), name) {
			send, err := midi.SendTo(port)
			if err != nil {
				return nil, fmt.Errorf("could not open midi out %q: %w", port.String(), err)
			}
			return send, nil
		}
		names = append(names, port.String())
	}
	return nil, fmt.Errorf("no midi out port matching %q (have %v)", name, names)
}

func ReadMidiFile(filepath string) (s *smf.SMF, e error) {
	var blank smf.SMF

	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			s = &blank
			e = errors.New(r)
		}
	}()

	dat, err := os.ReadFile(filepath)
	if err != nil {
		return &blank, fmt.Errorf("error reading midi file: %w", err)
	}
	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return &blank, fmt.Errorf("error parsing midi file: %w", err)
	}

	return res, nil
}
