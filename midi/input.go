package midi

import (
	"fmt"
	"strings"
	"time"

	"github.com/jsphweid/levelup/touch"
	"gitlab.com/gomidi/midi/v2"
)

const (
	volumeCC  = 7
	sustainCC = 64
)

// KeyboardRect is the surface a keyboard plays on: keys across, velocity
// down.
var KeyboardRect = touch.Rect{Width: 127, Height: 127}

// Gestures plays a surface from a MIDI keyboard. Every key is its own
// touch, so chords become simultaneous touches. The volume controller, if
// set, receives CC 7 scaled to decibels. Pressing the sustain pedal calls
// OnPedal.
type Gestures struct {
	Surface  *touch.Surface
	OnVolume func(db float64)
	OnPedal  func()

	velocities map[uint8]uint8
}

func NewGestures(surface *touch.Surface, onVolume func(db float64)) *Gestures {
	return &Gestures{Surface: surface, OnVolume: onVolume, velocities: make(map[uint8]uint8)}
}

// CCToDecibels maps a controller value onto the -100..-10 dB range of the
// volume slider.
func CCToDecibels(value uint8) float64 {
	return -100 + float64(value)/127*90
}

func (g *Gestures) Handle(msg midi.Message, timestampms int32) {
	ts := time.Duration(timestampms) * time.Millisecond
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		g.velocities[key] = vel
		g.Surface.TouchStart(ts, touch.Point{ID: int(key)})
	case msg.GetNoteEnd(&ch, &key):
		vel := g.velocities[key]
		delete(g.velocities, key)
		g.Surface.TouchEnd(ts, touch.Point{ID: int(key), X: float64(key), Y: float64(127 - vel)})
	case msg.GetControlChange(&ch, &cc, &val):
		switch {
		case cc == volumeCC && g.OnVolume != nil:
			g.OnVolume(CCToDecibels(val))
		case cc == sustainCC && val >= 64 && g.OnPedal != nil:
			g.OnPedal()
		}
	default:
		// ignore
	}
}

// Listen feeds an input port matching name into the gestures until stop is
// called. A driver must be registered by the caller.
func Listen(name string, g *Gestures) (stop func(), err error) {
	for _, port := range midi.GetInPorts() {
		if !strings.Contains(port.String(), name) {
			continue
		}
		stop, err := midi.ListenTo(port, g.Handle)
		if err != nil {
			return nil, fmt.Errorf("could not listen to %q: %w", port.String(), err)
		}
		return stop, nil
	}
	return nil, fmt.Errorf("no midi in port matching %q", name)
}
