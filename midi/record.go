package midi

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jsphweid/levelup/instrument"
	"github.com/jsphweid/levelup/theory"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	ticksPerQuarter = 960
	recordBPM       = 120
)

type recordedEvent struct {
	tick uint32
	msg  midi.Message
}

// Recorder is an instrument that writes what it hears to a Standard MIDI
// File instead of a port. Several instruments can share one recorder, each
// on its own channel, through Channel.
type Recorder struct {
	mu     sync.Mutex
	start  time.Time
	now    func() time.Time
	events []recordedEvent
}

func NewRecorder() *Recorder {
	r := &Recorder{now: time.Now}
	r.start = r.now()
	return r
}

func toTicks(d time.Duration) uint32 {
	perSecond := float64(ticksPerQuarter) * recordBPM / 60
	return uint32(math.Round(d.Seconds() * perSecond))
}

func (r *Recorder) add(at time.Duration, msg midi.Message) {
	r.events = append(r.events, recordedEvent{tick: toTicks(at), msg: msg})
}

func (r *Recorder) record(channel uint8, vel uint8, pitches []string, d time.Duration) error {
	r.mu.Lock()
	at := r.now().Sub(r.start)
	r.mu.Unlock()
	return r.recordAt(at, channel, vel, pitches, d)
}

func (r *Recorder) recordAt(at time.Duration, channel uint8, vel uint8, pitches []string, d time.Duration) error {
	keys := make([]uint8, 0, len(pitches))
	for _, p := range pitches {
		key, err := theory.MidiKey(p)
		if err != nil {
			return err
		}
		keys = append(keys, uint8(key))
	}
	if vel == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.add(at, midi.NoteOn(channel, key, vel))
		r.add(at+d, midi.NoteOff(channel, key))
	}
	return nil
}

// Len is the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Channel returns an instrument that records onto the given channel.
func (r *Recorder) Channel(channel uint8, db float64) *RecorderChannel {
	return &RecorderChannel{rec: r, channel: channel, vol: instrument.NewVolume(db)}
}

func (r *Recorder) SMF() (*smf.SMF, error) {
	r.mu.Lock()
	events := make([]recordedEvent, len(r.events))
	copy(events, r.events)
	r.mu.Unlock()

	// note-offs before note-ons on the same tick so repeated keys retrigger
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].msg.Is(midi.NoteOffMsg) && !events[j].msg.Is(midi.NoteOffMsg)
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaTempo(recordBPM))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}

	var notes smf.Track
	var last uint32
	for _, ev := range events {
		notes.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	notes.Close(0)
	if err := s.Add(notes); err != nil {
		return nil, fmt.Errorf("error adding note track: %w", err)
	}
	return s, nil
}

func (r *Recorder) WriteFile(path string) error {
	s, err := r.SMF()
	if err != nil {
		return err
	}
	if err := s.WriteFile(path); err != nil {
		return fmt.Errorf("error writing midi file: %w", err)
	}
	return nil
}

type RecorderChannel struct {
	rec     *Recorder
	channel uint8
	vol     *instrument.Volume
}

func (c *RecorderChannel) TriggerAttackRelease(pitches []string, d time.Duration) error {
	vel := uint8(math.Round(c.vol.Gain() * 127))
	return c.rec.record(c.channel, vel, pitches, d)
}

// PlayAt records the notes at a fixed offset from the start of the file
// rather than at the current time, for rendering without playing.
func (c *RecorderChannel) PlayAt(at time.Duration, pitches []string, d time.Duration) error {
	vel := uint8(math.Round(c.vol.Gain() * 127))
	return c.rec.recordAt(at, c.channel, vel, pitches, d)
}

func (c *RecorderChannel) SetVolume(db float64) {
	c.vol.Set(db)
}

func (c *RecorderChannel) Volume() float64 {
	return c.vol.Get()
}
