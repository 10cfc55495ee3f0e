package midi

import (
	"gitlab.com/gomidi/midi/v2/smf"
)

// NoteEvent is a note-on or note-off read back from a file.
type NoteEvent struct {
	Track   int
	Tick    uint64
	Channel uint8
	Key     uint8
	Vel     uint8
	On      bool
}

// Excerpt reads up to max note events per track at or after fromTick.
func Excerpt(s *smf.SMF, fromTick uint64, max int) []NoteEvent {
	var res []NoteEvent
	for i, track := range s.Tracks {
		var abs uint64
		var n int
	TrackEventLoop:
		for _, ev := range track {
			abs += uint64(ev.Delta)
			if abs < fromTick {
				continue
			}
			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteOn(&ch, &key, &vel):
				res = append(res, NoteEvent{Track: i, Tick: abs, Channel: ch, Key: key, Vel: vel, On: true})
			case ev.Message.GetNoteOff(&ch, &key, &vel):
				res = append(res, NoteEvent{Track: i, Tick: abs, Channel: ch, Key: key, Vel: vel})
			default:
				continue
			}
			n++
			if n >= max {
				break TrackEventLoop
			}
		}
	}
	return res
}
