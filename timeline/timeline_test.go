package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pianoroll/geom"
)

func TestAddClampsFields(t *testing.T) {
	tl := New(96, 120)
	n := tl.Add(Note{Pitch: 200, Velocity: 0, Channel: 20, Start: -5, Duration: 0})

	assert.Equal(t, uint8(127), n.Pitch)
	assert.Equal(t, uint8(1), n.Velocity)
	assert.Equal(t, uint8(15), n.Channel)
	assert.Equal(t, int64(0), n.Start)
	assert.Equal(t, int64(1), n.Duration)
}

func TestSongDurationTracksMutations(t *testing.T) {
	tl := New(96, 120)
	a := tl.Add(Note{Pitch: 60, Velocity: 100, Start: 0, Duration: 96})
	b := tl.Add(Note{Pitch: 62, Velocity: 100, Start: 96, Duration: 192})
	assert.Equal(t, int64(288), tl.SongDuration())

	tl.AddOther(400, []byte{0xC0, 5})
	assert.Equal(t, int64(400), tl.SongDuration())

	tl.Others = nil
	tl.Remove(b)
	assert.Equal(t, int64(96), tl.SongDuration())
	assert.Equal(t, []*Note{a}, tl.Notes)
}

func TestBPMClamped(t *testing.T) {
	tl := New(96, 1000)
	assert.Equal(t, MaxBPM, tl.BPM)
	tl.SetBPM(1)
	assert.Equal(t, MinBPM, tl.BPM)
	tl.SetBPM(0)
	assert.Equal(t, DefaultBPM, tl.BPM)
	assert.Equal(t, 192.0, tl.TicksPerSecond())
}

func TestRestoreClearsSelection(t *testing.T) {
	tl := New(96, 120)
	n := tl.Add(Note{Pitch: 60, Velocity: 100, Duration: 96})
	tl.Select(n)
	snap := tl.Snapshot()

	n.Start = 500
	tl.Restore(snap)

	assert.Equal(t, 0, tl.SelectionLen())
	assert.Equal(t, int64(0), tl.Notes[0].Start)
	assert.NotSame(t, n, tl.Notes[0])
}

func TestSelection(t *testing.T) {
	tl := New(96, 120)
	a := tl.Add(Note{Pitch: 60, Velocity: 100, Duration: 96})
	b := tl.Add(Note{Pitch: 61, Velocity: 100, Duration: 96})

	assert.True(t, tl.ToggleSelected(b))
	tl.Select(a)
	assert.Equal(t, []*Note{a, b}, tl.Selected())
	assert.False(t, tl.ToggleSelected(a))

	tl.SelectOnly(a)
	assert.Equal(t, []*Note{a}, tl.Selected())

	tl.Remove(a)
	assert.Equal(t, 0, tl.SelectionLen())
}

func TestGridMapping(t *testing.T) {
	g := Grid{PPQN: 96, BeatWidth: 40, NoteHeight: 10}

	assert.Equal(t, 0.0, g.PitchToY(127))
	assert.Equal(t, 1270.0, g.PitchToY(0))
	assert.Equal(t, 127, g.YToPitch(0))
	assert.Equal(t, 127, g.YToPitch(9.9))
	assert.Equal(t, 126, g.YToPitch(10))
	assert.Equal(t, 80.0, g.TickToX(192))
	assert.Equal(t, 192.0, g.XToTick(80))
	assert.Equal(t, 1280.0, g.ContentHeight())

	r := g.NoteRect(Note{Pitch: 126, Start: 96, Duration: 48})
	assert.Equal(t, geom.R(40, 10, 20, 10), r)
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		tick float64
		want int64
	}{
		{0, 0},
		{11, 0},
		{12, 24},
		{30, 24},
		{37, 48},
		{-40, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quantize(tt.tick, 24), "tick %v", tt.tick)
	}

	assert.Equal(t, int64(48), QuantizeUp(25, 24))
	assert.Equal(t, int64(24), QuantizeUp(24, 24))
}

func TestQuantizeIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, q := range []int64{1, 6, 24, 120} {
		for range 200 {
			once := Quantize(r.Float64()*10000, q)
			assert.Equal(t, once, Quantize(float64(once), q))
			assert.Zero(t, once%q)
		}
	}
}

func TestNoteSizeTicks(t *testing.T) {
	assert.Equal(t, int64(24), NoteSizeTicks("1/16", 96))
	assert.Equal(t, int64(384), NoteSizeTicks("1", 96))
	assert.Equal(t, int64(48), NoteSizeTicks("bogus", 96))
}

func TestExportTieBreak(t *testing.T) {
	notes := []Note{
		{Pitch: 62, Velocity: 90, Start: 96, Duration: 96},
		{Pitch: 60, Velocity: 100, Start: 0, Duration: 96},
	}
	others := []OtherEvent{{Tick: 96, Data: []byte{0xC0, 1}}}

	msgs := Export(notes, others)
	require.Len(t, msgs, 5)

	var types []MessageType
	for _, m := range msgs {
		types = append(types, m.Type)
	}
	assert.Equal(t, []MessageType{NoteOnMsg, NoteOffMsg, OtherMsg, NoteOnMsg, NoteOffMsg}, types)
	assert.Equal(t, uint8(60), msgs[1].Pitch)
	assert.Equal(t, uint8(62), msgs[3].Pitch)

	for i := 1; i < len(msgs); i++ {
		assert.LessOrEqual(t, msgs[i-1].Tick, msgs[i].Tick)
	}
}

func TestImportPairing(t *testing.T) {
	msgs := []Message{
		{Type: NoteOnMsg, Tick: 0, Pitch: 60, Velocity: 100},
		{Type: NoteOnMsg, Tick: 0, Pitch: 60, Velocity: 80, Channel: 1},
		{Type: OtherMsg, Tick: 10, Data: []byte{0xB0, 7, 100}},
		{Type: NoteOffMsg, Tick: 48, Pitch: 60, Channel: 1},
		{Type: NoteOnMsg, Tick: 96, Pitch: 60, Velocity: 0},
		{Type: NoteOnMsg, Tick: 100, Pitch: 64, Velocity: 70},
		{Type: NoteOnMsg, Tick: 120, Pitch: 64, Velocity: 71},
		{Type: NoteOffMsg, Tick: 130, Pitch: 64},
		{Type: NoteOnMsg, Tick: 200, Pitch: 65, Velocity: 70},
		{Type: NoteOffMsg, Tick: 300, Pitch: 66},
	}

	notes, others := Import(msgs)

	assert.Equal(t, []Note{
		{Pitch: 60, Velocity: 100, Channel: 0, Start: 0, Duration: 96},
		{Pitch: 60, Velocity: 80, Channel: 1, Start: 0, Duration: 48},
		{Pitch: 64, Velocity: 70, Start: 100, Duration: 20},
		{Pitch: 64, Velocity: 71, Start: 120, Duration: 10},
	}, notes)
	assert.Equal(t, []OtherEvent{{Tick: 10, Data: []byte{0xB0, 7, 100}}}, others)
}

func TestImportDropsZeroLength(t *testing.T) {
	notes, _ := Import([]Message{
		{Type: NoteOnMsg, Tick: 5, Pitch: 60, Velocity: 100},
		{Type: NoteOffMsg, Tick: 5, Pitch: 60},
	})
	assert.Empty(t, notes)
}

func TestImportReleasesBeforeRetriggerAtSameTick(t *testing.T) {
	notes, _ := Import([]Message{
		{Type: NoteOnMsg, Tick: 0, Pitch: 60, Velocity: 100},
		{Type: NoteOnMsg, Tick: 96, Pitch: 60, Velocity: 90},
		{Type: NoteOffMsg, Tick: 96, Pitch: 60},
		{Type: NoteOnMsg, Tick: 120, Pitch: 62, Velocity: 80},
		{Type: NoteOnMsg, Tick: 192, Pitch: 62, Velocity: 70},
		{Type: NoteOnMsg, Tick: 192, Pitch: 62, Velocity: 0},
		{Type: NoteOffMsg, Tick: 192, Pitch: 60},
		{Type: NoteOffMsg, Tick: 240, Pitch: 62},
	})

	assert.Equal(t, []Note{
		{Pitch: 60, Velocity: 100, Start: 0, Duration: 96},
		{Pitch: 60, Velocity: 90, Start: 96, Duration: 96},
		{Pitch: 62, Velocity: 80, Start: 120, Duration: 72},
		{Pitch: 62, Velocity: 70, Start: 192, Duration: 48},
	}, notes)
}

func randomNotes(r *rand.Rand, count int) []Note {
	// one note per (pitch, channel) keeps same-key intervals disjoint
	used := make(map[[2]uint8]bool)
	var notes []Note
	for len(notes) < count {
		k := [2]uint8{uint8(r.Intn(128)), uint8(r.Intn(16))}
		if used[k] {
			continue
		}
		used[k] = true
		notes = append(notes, Note{
			Pitch:    k[0],
			Channel:  k[1],
			Velocity: uint8(1 + r.Intn(127)),
			Start:    int64(r.Intn(5000)),
			Duration: int64(1 + r.Intn(1000)),
		})
	}
	return notes
}

func TestImportExportRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for range 50 {
		notes := randomNotes(r, 1+r.Intn(40))
		got, others := Import(Export(notes, nil))

		want := append([]Note(nil), notes...)
		SortNotes(want)
		assert.Equal(t, want, got)
		assert.Empty(t, others)
	}
}

func TestImportExportAdjacentSameKey(t *testing.T) {
	notes := []Note{
		{Pitch: 60, Velocity: 100, Start: 0, Duration: 96},
		{Pitch: 60, Velocity: 90, Start: 96, Duration: 96},
	}
	got, _ := Import(Export(notes, nil))
	assert.Equal(t, notes, got)
}

func TestHistoryInverseLaw(t *testing.T) {
	tl := New(96, 120)
	h := NewHistory(0)

	mutate := func(f func()) {
		h.Push(tl.Snapshot())
		f()
		tl.Recalculate()
	}

	mutate(func() { tl.Add(Note{Pitch: 60, Velocity: 100, Duration: 96}) })
	mutate(func() { tl.Notes[0].Start = 96 })
	mutate(func() { tl.Add(Note{Pitch: 64, Velocity: 100, Start: 10, Duration: 20}) })

	before := tl.Snapshot()
	prev, ok := h.Undo(tl.Snapshot())
	require.True(t, ok)
	tl.Restore(prev)
	afterUndo := tl.Snapshot()

	next, ok := h.Redo(tl.Snapshot())
	require.True(t, ok)
	tl.Restore(next)
	assert.Equal(t, before, tl.Snapshot())

	prev, ok = h.Undo(tl.Snapshot())
	require.True(t, ok)
	tl.Restore(prev)
	assert.Equal(t, afterUndo, tl.Snapshot())

	mutate(func() { tl.Notes[0].Pitch = 70 })
	assert.False(t, h.CanRedo())
	_, ok = h.Redo(tl.Snapshot())
	assert.False(t, ok)
}

func TestHistoryDepthCapped(t *testing.T) {
	h := NewHistory(3)
	for i := range 5 {
		h.Push([]Note{{Start: int64(i)}})
	}
	assert.Equal(t, 3, h.UndoLen())

	got, ok := h.Undo(nil)
	require.True(t, ok)
	assert.Equal(t, int64(4), got[0].Start)
	h.Undo(nil)
	got, _ = h.Undo(nil)
	assert.Equal(t, int64(2), got[0].Start)
	assert.False(t, h.CanUndo())
}
