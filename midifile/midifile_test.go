package midifile

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-pianoroll/timeline"
)

func TestVLQKnownValues(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{0x40, []byte{0x40}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xC0, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x1FFFFF, []byte{0xFF, 0xFF, 0x7F}},
		{0x200000, []byte{0x81, 0x80, 0x80, 0x00}},
		{MaxVLQ, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeVLQ(tt.v), "%#x", tt.v)
		got, n, err := DecodeVLQ(tt.want)
		require.NoError(t, err)
		assert.Equal(t, tt.v, got)
		assert.Equal(t, len(tt.want), n)
	}
}

func minimalLen(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	}
	return 4
}

func TestVLQRoundTripMinimal(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for range 5000 {
		v := uint32(r.Int63n(MaxVLQ + 1))
		enc := EncodeVLQ(v)
		got, n, err := DecodeVLQ(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
		assert.Equal(t, minimalLen(v), len(enc), "%#x", v)
	}
}

func TestVLQErrors(t *testing.T) {
	_, _, err := DecodeVLQ([]byte{0x81, 0x80})
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeVLQ([]byte{0x81, 0x80, 0x80, 0x80, 0x00})
	assert.ErrorIs(t, err, ErrTrack)
}

func TestEncodeExactBytes(t *testing.T) {
	tl := timeline.New(96, 120)
	tl.Add(timeline.Note{Pitch: 60, Velocity: 100, Start: 0, Duration: 96})

	got, err := EncodeTimeline(tl)
	require.NoError(t, err)

	want := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0, 96,
		'M', 'T', 'r', 'k', 0, 0, 0, 19,
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20,
		0x00, 0x90, 60, 100,
		0x60, 0x80, 60, 0,
		0x00, 0xFF, 0x2F, 0x00,
	}
	assert.Equal(t, want, got)
}

func TestEncodeRejectsBadInput(t *testing.T) {
	_, err := Encode(File{PPQN: 0})
	assert.ErrorIs(t, err, ErrTiming)

	_, err = Encode(File{PPQN: 96, Messages: []timeline.Message{
		{Type: timeline.NoteOnMsg, Tick: 10, Pitch: 60, Velocity: 1},
		{Type: timeline.NoteOffMsg, Tick: 5, Pitch: 60},
	}})
	assert.ErrorIs(t, err, ErrTrack)
}

func TestTempoMicros(t *testing.T) {
	assert.Equal(t, uint32(500000), TempoMicros(120))
	assert.Equal(t, uint32(600000), TempoMicros(100))
	assert.Equal(t, uint32(500000), TempoMicros(0))
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for range 30 {
		tl := timeline.New(96+r.Intn(900), float64(40+r.Intn(200)))
		used := make(map[[2]uint8]bool)
		for len(tl.Notes) < 1+r.Intn(30) {
			k := [2]uint8{uint8(r.Intn(128)), uint8(r.Intn(16))}
			if used[k] {
				continue
			}
			used[k] = true
			tl.Add(timeline.Note{
				Pitch: k[0], Channel: k[1],
				Velocity: uint8(1 + r.Intn(127)),
				Start:    int64(r.Intn(100000)),
				Duration: int64(1 + r.Intn(5000)),
			})
		}
		tl.AddOther(int64(r.Intn(1000)), []byte{0xC0 | uint8(r.Intn(16)), uint8(r.Intn(128))})

		data, err := EncodeTimeline(tl)
		require.NoError(t, err)
		f, err := Decode(data)
		require.NoError(t, err)

		got := f.ToTimeline()
		assert.Equal(t, tl.PPQN, got.PPQN)
		assert.InDelta(t, tl.BPM, got.BPM, 0.01)

		want := tl.Snapshot()
		timeline.SortNotes(want)
		assert.Equal(t, want, got.Snapshot())
		assert.Equal(t, tl.Others, got.Others)
	}
}

func TestRoundTripKeepsOtherEvents(t *testing.T) {
	f := File{PPQN: 480, BPM: 90, Name: "lead", Messages: []timeline.Message{
		{Type: timeline.OtherMsg, Tick: 0, Data: []byte{0xC2, 5}},
		{Type: timeline.OtherMsg, Tick: 10, Data: []byte{0xF0, 0x7E, 0x7F, 0xF7}},
		{Type: timeline.OtherMsg, Tick: 48, Data: []byte{0xB2, 7, 100}},
		{Type: timeline.OtherMsg, Tick: 50, Data: []byte{0xF8}},
	}}

	data, err := Encode(f)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "lead", got.Name)
	assert.Equal(t, f.Messages, got.Messages)
}

func TestDecodeRunningStatus(t *testing.T) {
	data := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0, 96,
		'M', 'T', 'r', 'k', 0, 0, 0, 17,
		0x00, 0x90, 60, 100,
		0x60, 60, 0,
		0x00, 62, 80,
		0x60, 62, 0,
		0x00, 0xFF, 0x2F, 0x00,
	}
	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 96, f.PPQN)
	assert.Equal(t, 120.0, f.BPM)

	tl := f.ToTimeline()
	assert.Equal(t, []timeline.Note{
		{Pitch: 60, Velocity: 100, Start: 0, Duration: 96},
		{Pitch: 62, Velocity: 80, Start: 96, Duration: 96},
	}, tl.Snapshot())
}

func TestDecodeFormat1MergesTracks(t *testing.T) {
	data := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 1, 0, 2, 0, 96,
		'M', 'T', 'r', 'k', 0, 0, 0, 11,
		0x00, 0xFF, 0x51, 0x03, 0x09, 0x27, 0xC0,
		0x00, 0xFF, 0x2F, 0x00,
		'X', 'Y', 'Z', 'W', 0, 0, 0, 2, 1, 2,
		'M', 'T', 'r', 'k', 0, 0, 0, 12,
		0x30, 0x91, 64, 90,
		0x30, 0x81, 64, 0,
		0x00, 0xFF, 0x2F, 0x00,
	}
	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.BPM)

	tl := f.ToTimeline()
	assert.Equal(t, []timeline.Note{
		{Pitch: 64, Velocity: 90, Channel: 1, Start: 48, Duration: 48},
	}, tl.Snapshot())
}

func TestDecodeErrors(t *testing.T) {
	valid, err := EncodeTimeline(timeline.New(96, 120))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"bad magic", append([]byte("RIFF"), valid[4:]...), ErrHeader},
		{"truncated track", valid[:len(valid)-2], ErrTruncated},
		{"smpte", []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0xE7, 0x28}, ErrTiming},
		{"format 2", []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 2, 0, 1, 0, 96}, ErrHeader},
		{"missing track", []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0, 96}, ErrTruncated},
		{"orphan data byte", []byte{
			'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0, 96,
			'M', 'T', 'r', 'k', 0, 0, 0, 3,
			0x00, 60, 100,
		}, ErrTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(tt.data)
			assert.Nil(t, f)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGomidiReadsOurFiles(t *testing.T) {
	tl := timeline.New(96, 100)
	tl.Add(timeline.Note{Pitch: 60, Velocity: 100, Channel: 2, Start: 0, Duration: 96})
	tl.Add(timeline.Note{Pitch: 64, Velocity: 80, Channel: 2, Start: 96, Duration: 48})

	data, err := EncodeTimeline(tl)
	require.NoError(t, err)

	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)
	assert.Equal(t, smf.MetricTicks(96), s.TimeFormat)

	var bpm float64
	var ons []uint8
	var abs uint32
	var starts []uint32
	for _, ev := range s.Tracks[0] {
		abs += ev.Delta
		var tempo float64
		if ev.Message.GetMetaTempo(&tempo) {
			bpm = tempo
		}
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			assert.Equal(t, uint8(2), ch)
			ons = append(ons, key)
			starts = append(starts, abs)
		}
	}
	assert.InDelta(t, 100.0, bpm, 0.001)
	assert.Equal(t, []uint8{60, 64}, ons)
	assert.Equal(t, []uint32{0, 96}, starts)
}

func TestWeReadGomidiFiles(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(120)

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("piano"))
	tr.Add(0, smf.MetaTempo(150))
	tr.Add(0, gomidi.ProgramChange(0, 4))
	tr.Add(0, gomidi.NoteOn(0, 60, 100))
	tr.Add(0, gomidi.NoteOn(0, 67, 90))
	tr.Add(120, gomidi.NoteOff(0, 60))
	tr.Add(0, gomidi.NoteOff(0, 67))
	tr.Close(0)
	require.NoError(t, s.Add(tr))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	f, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 120, f.PPQN)
	assert.InDelta(t, 150.0, f.BPM, 0.001)
	assert.Equal(t, "piano", f.Name)

	tl := f.ToTimeline()
	assert.Equal(t, []timeline.Note{
		{Pitch: 60, Velocity: 100, Start: 0, Duration: 120},
		{Pitch: 67, Velocity: 90, Start: 0, Duration: 120},
	}, tl.Snapshot())
	assert.Equal(t, []timeline.OtherEvent{{Tick: 0, Data: []byte{0xC0, 4}}}, tl.Others)
}
