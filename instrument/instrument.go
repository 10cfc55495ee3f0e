package instrument

import (
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Instrument is anything that can sound a note. Implementations must be
// safe to trigger from several goroutines at once.
type Instrument interface {
	TriggerAttackRelease(pitches []string, d time.Duration) error
	SetVolume(db float64)
	Volume() float64
}

// Volume is a shared volume setting in decibels. Triggers read it at the
// moment they fire, so a change never reaches a note already sounding.
type Volume struct {
	bits atomic.Uint64
}

func NewVolume(db float64) *Volume {
	v := &Volume{}
	v.Set(db)
	return v
}

func (v *Volume) Set(db float64) {
	v.bits.Store(math.Float64bits(db))
}

func (v *Volume) Get() float64 {
	return math.Float64frombits(v.bits.Load())
}

// Gain converts the volume to a linear amplitude in [0, 1].
func (v *Volume) Gain() float64 {
	db := v.Get()
	if db >= 0 {
		return 1
	}
	return math.Pow(10, db/20)
}

// Logger is an instrument that only reports what it would play. It stands
// in when no output port is configured.
type Logger struct {
	Name   string
	logger *log.Logger
	vol    *Volume
}

func NewLogger(name string, db float64, logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &Logger{Name: name, logger: logger.With("instrument", name), vol: NewVolume(db)}
}

func (l *Logger) TriggerAttackRelease(pitches []string, d time.Duration) error {
	l.logger.Info("note", "pitches", pitches, "duration", d, "volume", l.vol.Get())
	return nil
}

func (l *Logger) SetVolume(db float64) {
	l.vol.Set(db)
}

func (l *Logger) Volume() float64 {
	return l.vol.Get()
}

// Multi sounds every note on all of its instruments, for example a MIDI
// port and a recorder. Volume changes go to all of them.
type Multi []Instrument

func (m Multi) TriggerAttackRelease(pitches []string, d time.Duration) error {
	var errs []error
	for _, inst := range m {
		if err := inst.TriggerAttackRelease(pitches, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SetVolume(db float64) {
	for _, inst := range m {
		inst.SetVolume(db)
	}
}

func (m Multi) Volume() float64 {
	if len(m) == 0 {
		return 0
	}
	return m[0].Volume()
}
