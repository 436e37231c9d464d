package timeline

import (
	"cmp"
	"slices"
)

// MessageType doubles as the tie-break rank at equal ticks: offs, then others, then ons
type MessageType uint8

const (
	NoteOffMsg MessageType = iota
	OtherMsg
	NoteOnMsg
)

func (t MessageType) String() string {
	switch t {
	case NoteOffMsg:
		return "noteOff"
	case NoteOnMsg:
		return "noteOn"
	default:
		return "other"
	}
}

// Message is one discrete, timestamped entry of a chronological message list
type Message struct {
	Type     MessageType
	Tick     int64
	Pitch    uint8
	Velocity uint8
	Channel  uint8
	Data     []byte // OtherMsg only
}

// rank is the tie-break at equal ticks, treating a velocity 0 note-on as a note-off
func (m Message) rank() MessageType {
	if m.Type == NoteOnMsg && m.Velocity == 0 {
		return NoteOffMsg
	}
	return m.Type
}

type noteKey struct {
	pitch, channel uint8
}

type openNote struct {
	start    int64
	velocity uint8
}

// Import pairs note-ons with their note-offs. A note-on with velocity 0 counts as a note-off,
// a second note-on for an already sounding key closes the first one, and notes that never
// close or have zero length are dropped. Releases are paired before attacks at the same tick
// whatever order the file wrote them in.
func Import(msgs []Message) ([]Note, []OtherEvent) {
	ordered := slices.Clone(msgs)
	slices.SortStableFunc(ordered, func(a, b Message) int {
		if c := cmp.Compare(a.Tick, b.Tick); c != 0 {
			return c
		}
		return cmp.Compare(a.rank(), b.rank())
	})

	var notes []Note
	var others []OtherEvent
	open := make(map[noteKey]openNote)

	closeNote := func(k noteKey, at int64) {
		o, ok := open[k]
		if !ok {
			return
		}
		delete(open, k)
		if at > o.start {
			notes = append(notes, Note{
				Pitch:    k.pitch,
				Velocity: o.velocity,
				Channel:  k.channel,
				Start:    o.start,
				Duration: at - o.start,
			})
		}
	}

	for _, m := range ordered {
		k := noteKey{pitch: m.Pitch, channel: m.Channel}
		switch m.Type {
		case NoteOnMsg:
			if m.Velocity == 0 {
				closeNote(k, m.Tick)
				continue
			}
			closeNote(k, m.Tick)
			open[k] = openNote{start: m.Tick, velocity: m.Velocity}
		case NoteOffMsg:
			closeNote(k, m.Tick)
		default:
			others = append(others, OtherEvent{Tick: m.Tick, Data: slices.Clone(m.Data)})
		}
	}

	SortNotes(notes)
	return notes, others
}

// Export flattens notes and other events into a sorted message list
func Export(notes []Note, others []OtherEvent) []Message {
	msgs := make([]Message, 0, 2*len(notes)+len(others))
	for _, n := range notes {
		msgs = append(msgs,
			Message{Type: NoteOnMsg, Tick: n.Start, Pitch: n.Pitch, Velocity: n.Velocity, Channel: n.Channel},
			Message{Type: NoteOffMsg, Tick: n.End(), Pitch: n.Pitch, Channel: n.Channel},
		)
	}
	for _, e := range others {
		msgs = append(msgs, Message{Type: OtherMsg, Tick: e.Tick, Data: slices.Clone(e.Data)})
	}
	SortMessages(msgs)
	return msgs
}

// SortMessages orders by tick; at equal ticks note-offs come first so a note ending where
// another starts is released before the new one sounds
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		if c := cmp.Compare(a.Tick, b.Tick); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
}

// SortNotes orders by start, then pitch, then channel
func SortNotes(notes []Note) {
	slices.SortStableFunc(notes, func(a, b Note) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Pitch, b.Pitch); c != 0 {
			return c
		}
		return cmp.Compare(a.Channel, b.Channel)
	})
}

// Messages exports the timeline's current content
func (t *Timeline) Messages() []Message {
	return Export(t.Snapshot(), t.Others)
}
