package midifile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/timeline"
)

var (
	ErrHeader    = errors.New("bad header chunk")
	ErrTrack     = errors.New("bad track chunk")
	ErrTruncated = errors.New("unexpected end of data")
	ErrTiming    = errors.New("unsupported timing")
)

const (
	metaTrackName  = 0x03
	metaEndOfTrack = 0x2F
	metaTempo      = 0x51

	maxPPQN = 0x7FFF
)

// File is the decoded content of a Standard MIDI File, flattened to one message list
type File struct {
	Name     string
	PPQN     int
	BPM      float64
	Messages []timeline.Message
}

// FromTimeline exports a timeline ready for encoding
func FromTimeline(t *timeline.Timeline) File {
	return File{PPQN: t.PPQN, BPM: t.BPM, Messages: t.Messages()}
}

func malformed(sentinel error, format string, args ...any) error {
	return fault.Wrap(sentinel,
		fmsg.WithDesc(fmt.Sprintf(format, args...), "The file is not a readable MIDI file."),
		ftag.With(ftag.InvalidArgument),
	)
}

// TempoMicros converts beats per minute to microseconds per quarter note
func TempoMicros(bpm float64) uint32 {
	if bpm <= 0 {
		bpm = timeline.DefaultBPM
	}
	us := math.Round(60_000_000 / bpm)
	return uint32(timeline.Clamp(us, 1, 0xFFFFFF))
}

// Encode writes a format 0 file. Messages are written in the order given, so they
// must already be sorted by tick.
func Encode(f File) ([]byte, error) {
	if f.PPQN <= 0 || f.PPQN > maxPPQN {
		return nil, malformed(ErrTiming, "ppqn %d outside 1..%d", f.PPQN, maxPPQN)
	}

	body := make([]byte, 0, 64+len(f.Messages)*4)
	if f.Name != "" {
		body = append(body, 0x00, 0xFF, metaTrackName)
		body = AppendVLQ(body, uint32(len(f.Name)))
		body = append(body, f.Name...)
	}

	us := TempoMicros(f.BPM)
	body = append(body, 0x00, 0xFF, metaTempo, 0x03, byte(us>>16), byte(us>>8), byte(us))

	var last int64
	for i, m := range f.Messages {
		if m.Tick < last {
			return nil, malformed(ErrTrack, "message %d at tick %d precedes tick %d", i, m.Tick, last)
		}
		delta := m.Tick - last
		if !ValidVLQ(delta) {
			return nil, malformed(ErrTiming, "delta %d does not fit a variable-length quantity", delta)
		}
		ev := eventBytes(m)
		if len(ev) == 0 {
			continue
		}
		body = AppendVLQ(body, uint32(delta))
		body = append(body, ev...)
		last = m.Tick
	}
	body = append(body, 0x00, 0xFF, metaEndOfTrack, 0x00)

	out := make([]byte, 0, 22+len(body))
	out = append(out, "MThd"...)
	out = binary.BigEndian.AppendUint32(out, 6)
	out = binary.BigEndian.AppendUint16(out, 0)
	out = binary.BigEndian.AppendUint16(out, 1)
	out = binary.BigEndian.AppendUint16(out, uint16(f.PPQN))
	out = append(out, "MTrk"...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...), nil
}

// eventBytes renders one message as track event bytes, without the delta
func eventBytes(m timeline.Message) []byte {
	ch := m.Channel & 0x0F
	switch m.Type {
	case timeline.NoteOnMsg:
		return gomidi.NoteOn(ch, m.Pitch&0x7F, m.Velocity&0x7F)
	case timeline.NoteOffMsg:
		return gomidi.NoteOff(ch, m.Pitch&0x7F)
	}

	d := m.Data
	switch {
	case len(d) == 0:
		return nil
	case d[0] == 0xF0:
		out := []byte{0xF0}
		out = AppendVLQ(out, uint32(len(d)-1))
		return append(out, d[1:]...)
	case d[0] == 0xFF && len(d) >= 2:
		out := []byte{0xFF, d[1]}
		out = AppendVLQ(out, uint32(len(d)-2))
		return append(out, d[2:]...)
	case d[0] >= 0x80 && d[0] < 0xF0:
		return slices.Clone(d)
	default:
		// anything else travels as an escape sequence
		out := []byte{0xF7}
		out = AppendVLQ(out, uint32(len(d)))
		return append(out, d...)
	}
}

// EncodeTimeline exports and encodes t in one step
func EncodeTimeline(t *timeline.Timeline) ([]byte, error) {
	return Encode(FromTimeline(t))
}

// channelDataLen is the number of data bytes following a channel status byte
func channelDataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	default:
		return 2
	}
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.b) - r.pos
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, malformed(ErrTruncated, "need %d bytes at offset %d, have %d", n, r.pos, r.remaining())
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) vlq() (uint32, error) {
	v, n, err := DecodeVLQ(r.b[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

func (r *reader) chunk() (string, []byte, error) {
	head, err := r.next(8)
	if err != nil {
		return "", nil, err
	}
	size := binary.BigEndian.Uint32(head[4:])
	if uint64(size) > uint64(r.remaining()) {
		return "", nil, malformed(ErrTruncated, "chunk %q declares %d bytes, %d left", head[:4], size, r.remaining())
	}
	body, _ := r.next(int(size))
	return string(head[:4]), body, nil
}

// trackState collects what one track contributes
type trackState struct {
	msgs     []timeline.Message
	tempo    uint32
	hasTempo bool
	name     string
}

// Decode parses a format 0 or format 1 file. Tracks are merged by absolute tick.
// Nothing is returned unless the whole buffer parses.
func Decode(data []byte) (*File, error) {
	r := &reader{b: data}

	id, head, err := r.chunk()
	if err != nil {
		return nil, err
	}
	if id != "MThd" {
		return nil, malformed(ErrHeader, "expected MThd, found %q", id)
	}
	if len(head) < 6 {
		return nil, malformed(ErrHeader, "header length %d, expected 6", len(head))
	}
	format := binary.BigEndian.Uint16(head[0:])
	ntracks := int(binary.BigEndian.Uint16(head[2:]))
	division := binary.BigEndian.Uint16(head[4:])

	if format > 1 {
		return nil, malformed(ErrHeader, "format %d is not supported", format)
	}
	if division&0x8000 != 0 {
		return nil, malformed(ErrTiming, "SMPTE time division is not supported")
	}
	if division == 0 {
		return nil, malformed(ErrTiming, "zero ticks per quarter note")
	}

	f := &File{PPQN: int(division), BPM: timeline.DefaultBPM}
	var tempoSet bool
	tracks := 0
	for r.remaining() > 0 && tracks < ntracks {
		id, body, err := r.chunk()
		if err != nil {
			return nil, err
		}
		if id != "MTrk" {
			continue
		}
		ts, err := decodeTrack(body)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("track %d", tracks)))
		}
		tracks++

		f.Messages = append(f.Messages, ts.msgs...)
		if ts.hasTempo && !tempoSet {
			f.BPM = 60_000_000 / float64(ts.tempo)
			tempoSet = true
		}
		if f.Name == "" {
			f.Name = ts.name
		}
	}
	if tracks < ntracks {
		return nil, malformed(ErrTruncated, "header announces %d tracks, found %d", ntracks, tracks)
	}

	slices.SortStableFunc(f.Messages, func(a, b timeline.Message) int {
		switch {
		case a.Tick < b.Tick:
			return -1
		case a.Tick > b.Tick:
			return 1
		}
		return 0
	})
	return f, nil
}

func decodeTrack(body []byte) (*trackState, error) {
	r := &reader{b: body}
	ts := &trackState{}
	var tick int64
	var running byte

	for r.remaining() > 0 {
		delta, err := r.vlq()
		if err != nil {
			return nil, err
		}
		tick += int64(delta)

		status, err := r.readByte()
		if err != nil {
			return nil, err
		}

		switch {
		case status == 0xFF:
			running = 0
			kind, err := r.readByte()
			if err != nil {
				return nil, err
			}
			n, err := r.vlq()
			if err != nil {
				return nil, err
			}
			payload, err := r.next(int(n))
			if err != nil {
				return nil, err
			}
			switch kind {
			case metaEndOfTrack:
				return ts, nil
			case metaTempo:
				if len(payload) != 3 {
					return nil, malformed(ErrTrack, "tempo event with %d bytes", len(payload))
				}
				us := uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
				if us == 0 {
					return nil, malformed(ErrTiming, "zero tempo")
				}
				if !ts.hasTempo {
					ts.tempo, ts.hasTempo = us, true
				}
			case metaTrackName:
				if ts.name == "" {
					ts.name = string(payload)
				}
			}

		case status == 0xF0 || status == 0xF7:
			running = 0
			n, err := r.vlq()
			if err != nil {
				return nil, err
			}
			payload, err := r.next(int(n))
			if err != nil {
				return nil, err
			}
			data := slices.Clone(payload)
			if status == 0xF0 {
				data = append([]byte{0xF0}, data...)
			}
			ts.msgs = append(ts.msgs, timeline.Message{Type: timeline.OtherMsg, Tick: tick, Data: data})

		case status >= 0xF1:
			return nil, malformed(ErrTrack, "status %#x is not valid in a file", status)

		default:
			var first []byte
			if status < 0x80 {
				if running == 0 {
					return nil, malformed(ErrTrack, "data byte %#x without running status", status)
				}
				first = []byte{status}
				status = running
			} else {
				running = status
			}
			n := channelDataLen(status) - len(first)
			rest, err := r.next(n)
			if err != nil {
				return nil, err
			}
			raw := append(append([]byte{status}, first...), rest...)
			ts.msgs = append(ts.msgs, channelMessage(gomidi.Message(raw), tick))
		}
	}
	return ts, nil
}

func channelMessage(msg gomidi.Message, tick int64) timeline.Message {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return timeline.Message{Type: timeline.NoteOnMsg, Tick: tick, Pitch: key, Velocity: vel, Channel: ch}
	case msg.GetNoteEnd(&ch, &key):
		return timeline.Message{Type: timeline.NoteOffMsg, Tick: tick, Pitch: key, Channel: ch}
	}
	return timeline.Message{Type: timeline.OtherMsg, Tick: tick, Data: slices.Clone(msg.Bytes())}
}

// ToTimeline builds a fresh timeline from a decoded file
func (f *File) ToTimeline() *timeline.Timeline {
	notes, others := timeline.Import(f.Messages)
	t := timeline.New(f.PPQN, f.BPM)
	t.Load(f.PPQN, f.BPM, notes, others)
	return t
}
