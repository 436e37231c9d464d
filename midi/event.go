package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
	Program uint8 = 0xC0
)

// Controller numbers used by the editor
const (
	CCVolume      uint8 = 7
	CCAllSoundOff uint8 = 120
)

// NoteEvent is a note played on an external keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// ParseNote reads a note-on or note-off. A note-on with velocity 0 is reported as off.
func ParseNote(msg gomidi.Message) (NoteEvent, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return NoteEvent{Note: key, Velocity: vel, Channel: ch, On: true}, true
	case msg.GetNoteEnd(&ch, &key):
		return NoteEvent{Note: key, Channel: ch}, true
	}
	return NoteEvent{}, false
}

// Channel of a channel-voice message
func Channel(msg gomidi.Message) (uint8, bool) {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return 0, false
	}
	return msg[0] & 0x0F, true
}

// IsNoteOff reports note-offs, including note-on with velocity 0
func IsNoteOff(msg gomidi.Message) bool {
	var ch, key uint8
	return msg.GetNoteEnd(&ch, &key)
}

func AllSoundOff(ch uint8) gomidi.Message {
	return gomidi.ControlChange(ch, CCAllSoundOff, 0)
}

func Volume(ch, value uint8) gomidi.Message {
	return gomidi.ControlChange(ch, CCVolume, value)
}
