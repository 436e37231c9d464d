package widgets

import (
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/broker"
	"go-pianoroll/debug"
	"go-pianoroll/midi"
	"go-pianoroll/timeline"
)

// Keyboard is the vertical piano beside the grid. Rows line up with the
// editor's pitch rows, so its view is kept in sync with the editor's scroll.
type Keyboard struct {
	box
	sink midi.Sink

	// Channel is read on every press so it follows the edit channel
	Channel func() uint8

	VelocityMin, VelocityMax uint8

	top        float64 // local y of content row 0's top when scroll is zero
	scrollY    float64
	noteHeight float64

	pressed  int // -1 when up
	external map[uint8]bool
}

func NewKeyboard(sink midi.Sink) *Keyboard {
	if sink == nil {
		sink = midi.Discard
	}
	return &Keyboard{
		sink:        sink,
		VelocityMin: 40,
		VelocityMax: 127,
		noteHeight:  16,
		pressed:     -1,
		external:    make(map[uint8]bool),
	}
}

func (k *Keyboard) SetSink(sink midi.Sink) {
	if sink == nil {
		sink = midi.Discard
	}
	k.sink = sink
}

// SetView matches the keyboard rows to the editor: top is the height of the
// ruler band, scrollY and noteHeight are the editor's
func (k *Keyboard) SetView(top, scrollY, noteHeight float64) {
	k.top, k.scrollY, k.noteHeight = top, scrollY, noteHeight
}

// RowY is the local y of a pitch row's top
func (k *Keyboard) RowY(pitch uint8) float64 {
	return k.top + float64(timeline.NumPitches-1-int(pitch))*k.noteHeight - k.scrollY
}

// PitchAt returns the key under local y, or -1
func (k *Keyboard) PitchAt(y float64) int {
	if y < k.top || k.noteHeight <= 0 {
		return -1
	}
	p := timeline.NumPitches - 1 - int(math.Floor((y-k.top+k.scrollY)/k.noteHeight))
	if p < 0 || p >= timeline.NumPitches {
		return -1
	}
	return p
}

// Velocity maps a press position across the key to the configured range
func (k *Keyboard) Velocity(x float64) uint8 {
	lo, hi := float64(k.VelocityMin), float64(k.VelocityMax)
	if hi < lo {
		lo, hi = hi, lo
	}
	f := 1.0
	if k.rect.W > 0 {
		f = timeline.Clamp(x/k.rect.W, 0, 1)
	}
	return timeline.Clamp(uint8(math.Round(lo+(hi-lo)*f)), 1, 127)
}

// Pressed is the key held with the pointer, or -1
func (k *Keyboard) Pressed() int { return k.pressed }

// Lit reports whether a key is held, either by the pointer or an external device
func (k *Keyboard) Lit(pitch uint8) bool {
	return k.pressed == int(pitch) || k.external[pitch]
}

// SetExternal highlights a key played on another device. Nothing is sent.
func (k *Keyboard) SetExternal(pitch uint8, on bool) {
	if on {
		k.external[pitch] = true
	} else {
		delete(k.external, pitch)
	}
}

func (k *Keyboard) ClearExternal() {
	clear(k.external)
}

func (k *Keyboard) channel() uint8 {
	if k.Channel == nil {
		return 0
	}
	return k.Channel()
}

func (k *Keyboard) noteOn(pitch int, vel uint8) {
	k.pressed = pitch
	if err := k.sink.Send(gomidi.NoteOn(k.channel(), uint8(pitch), vel)); err != nil {
		debug.Log("keyboard", "send failed", "err", err)
	}
}

func (k *Keyboard) noteOff() {
	if k.pressed < 0 {
		return
	}
	if err := k.sink.Send(gomidi.NoteOff(k.channel(), uint8(k.pressed))); err != nil {
		debug.Log("keyboard", "send failed", "err", err)
	}
	k.pressed = -1
}

func (k *Keyboard) HandleEvent(ev broker.Event) broker.Action {
	switch ev.Kind {
	case broker.PointerDown:
		p := k.PitchAt(ev.Pos.Y)
		if p < 0 {
			return broker.None
		}
		k.noteOff()
		k.noteOn(p, k.Velocity(ev.Pos.X))
		return broker.Capture

	case broker.PointerMove:
		if k.pressed < 0 {
			return broker.None
		}
		// glissando: sliding onto another key retriggers
		p := k.PitchAt(ev.Pos.Y)
		if p >= 0 && p != k.pressed {
			k.noteOff()
			k.noteOn(p, k.Velocity(ev.Pos.X))
		}
		return broker.Persist

	case broker.PointerUp, broker.OutsideClick:
		k.noteOff()
		return broker.Release
	}
	return broker.None
}
