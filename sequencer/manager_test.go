package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/broker"
	"go-pianoroll/config"
	"go-pianoroll/editor"
	"go-pianoroll/geom"
	"go-pianoroll/midi"
	"go-pianoroll/midifile"
	"go-pianoroll/timeline"
)

// newManager lays out an 800x600 surface with the default config:
// 48px keys, a 160px drawer and a 752x440 canvas
func newManager(t *testing.T) (*Manager, *midi.Recorder) {
	t.Helper()
	rec := &midi.Recorder{}
	m := New(config.DefaultConfig(), rec)
	m.SetSize(800, 600)
	return m, rec
}

// canvas converts a grid content point to surface space
func canvas(m *Manager, x, y float64) geom.Point {
	return m.EditorRect().Min().Add(m.Editor().ToLocal(geom.Pt(x, y)))
}

func click(m *Manager, p geom.Point) {
	m.HandleEvent(broker.Event{Kind: broker.PointerDown, Pos: p})
	m.HandleEvent(broker.Event{Kind: broker.PointerUp, Pos: p})
}

func TestLayout(t *testing.T) {
	m, _ := newManager(t)

	assert.Equal(t, geom.R(0, 0, 48, 440), m.KeyboardRect())
	assert.Equal(t, geom.R(0, 440, 800, 160), m.DrawerRect())
	assert.Equal(t, geom.R(48, 0, 752, 440), m.EditorRect())

	// keyboard rows line up with the grid rows
	grid := m.Editor().Grid()
	for _, p := range []int{0, 60, 127} {
		row := m.Editor().ToLocal(geom.Pt(0, grid.PitchToY(p))).Y
		assert.Equal(t, row, m.Keyboard().RowY(uint8(p)), "pitch %d", p)
	}
}

func TestStartsCentredOnMiddleC(t *testing.T) {
	m, _ := newManager(t)
	y := m.Editor().ToLocal(geom.Pt(0, m.Editor().Grid().PitchToY(60))).Y
	g := m.Editor().GridRect()
	assert.True(t, y >= g.Y && y < g.Y+g.H, "row 60 visible at %v", y)
}

func TestClickOnCanvasAddsNote(t *testing.T) {
	m, rec := newManager(t)
	grid := m.Editor().Grid()

	click(m, canvas(m, 5, grid.PitchToY(60)+4))

	require.Len(t, m.Timeline().Notes, 1)
	n := m.Timeline().Notes[0]
	assert.Equal(t, uint8(60), n.Pitch)
	assert.Equal(t, int64(0), n.Start)
	assert.False(t, m.Editor().Active())

	notes := rec.Notes()
	require.Len(t, notes, 2, "preview on and off")
	assert.True(t, notes[0].On)
	assert.False(t, notes[1].On)
}

func TestKeyboardPlaysWithoutEditing(t *testing.T) {
	m, rec := newManager(t)
	y := m.Keyboard().RowY(60) + 2

	m.HandleEvent(broker.Event{Kind: broker.PointerDown, Pos: geom.Pt(10, y)})
	assert.Equal(t, 60, m.Keyboard().Pressed())
	assert.True(t, m.Token().Captured())
	m.HandleEvent(broker.Event{Kind: broker.PointerUp, Pos: geom.Pt(10, y)})
	assert.False(t, m.Token().Captured())

	notes := rec.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, uint8(60), notes[0].Note)
	assert.True(t, notes[0].On)
	assert.Empty(t, m.Timeline().Notes)
}

func TestDrawerPlayButton(t *testing.T) {
	m, _ := newManager(t)
	m.Timeline().Add(timeline.Note{Pitch: 60, Velocity: 100, Duration: 480})

	// play sits at content (8, 8), below the 8px handle
	click(m, geom.Pt(20, 460))
	assert.True(t, m.Scheduler().IsPlaying())

	click(m, geom.Pt(20, 460))
	assert.False(t, m.Scheduler().IsPlaying())
}

func TestDrawerResizeRelaysOut(t *testing.T) {
	m, _ := newManager(t)
	calls := 0
	m.SetOnSettingsChange(func() { calls++ })

	m.HandleEvent(broker.Event{Kind: broker.PointerDown, Pos: geom.Pt(100, 444)})
	m.HandleEvent(broker.Event{Kind: broker.PointerMove, Pos: geom.Pt(100, 404)})
	m.HandleEvent(broker.Event{Kind: broker.PointerUp, Pos: geom.Pt(100, 404)})

	assert.Equal(t, geom.R(0, 400, 800, 200), m.DrawerRect())
	assert.Equal(t, geom.Pt(752, 400), m.Editor().Size())
	assert.Equal(t, 1, calls)

	cfg := config.DefaultConfig()
	m.StoreSettings(cfg)
	assert.Equal(t, 200.0, cfg.Drawer.Height)
}

func TestRulerSeeks(t *testing.T) {
	m, _ := newManager(t)

	// 64px beats at 480 ppqn
	click(m, geom.Pt(48+64, 5))
	assert.InDelta(t, 480, m.Scheduler().Playhead(), 1e-9)
}

func TestTransportKeys(t *testing.T) {
	m, _ := newManager(t)
	m.Timeline().Add(timeline.Note{Pitch: 60, Velocity: 100, Duration: 4800})

	require.NoError(t, m.HandleKey(" "))
	assert.True(t, m.Scheduler().IsPlaying())
	m.Frame(0)
	m.Frame(500)
	assert.Greater(t, m.Scheduler().Playhead(), 0.0)

	require.NoError(t, m.HandleKey("home"))
	assert.False(t, m.Scheduler().IsPlaying())
	assert.Equal(t, 0.0, m.Scheduler().Playhead())
}

func TestEmptySelectionNotice(t *testing.T) {
	m, _ := newManager(t)
	m.Frame(1000)

	err := m.HandleKey("delete")
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Equal(t, "Nothing selected", m.Notice())

	m.Frame(2000)
	assert.NotEmpty(t, m.Notice())
	m.Frame(4000)
	assert.Empty(t, m.Notice())
}

func TestImport(t *testing.T) {
	m, _ := newManager(t)
	before := m.Timeline()

	err := m.Import([]byte("not a midi file"))
	assert.Error(t, err)
	assert.Same(t, before, m.Timeline())

	src := timeline.New(96, 140)
	src.Add(timeline.Note{Pitch: 48, Velocity: 100, Channel: 0, Start: 0, Duration: 96})
	src.Add(timeline.Note{Pitch: 52, Velocity: 90, Channel: 1, Start: 96, Duration: 48})
	data, err := midifile.EncodeTimeline(src)
	require.NoError(t, err)

	require.NoError(t, m.Import(data))
	tl := m.Timeline()
	assert.NotSame(t, before, tl)
	assert.Same(t, tl, m.Editor().Timeline())
	assert.Equal(t, 96, tl.PPQN)
	assert.InDelta(t, 140, tl.BPM, 0.01)
	assert.Equal(t, 140, m.controls.tempo.Value)
	assert.Equal(t, src.Snapshot(), tl.Snapshot())

	// the canvas follows the first note
	y := m.Editor().ToLocal(geom.Pt(0, m.Editor().Grid().PitchToY(48))).Y
	g := m.Editor().GridRect()
	assert.True(t, y >= g.Y && y < g.Y+g.H)
}

func TestExportRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	m.Timeline().Add(timeline.Note{Pitch: 60, Velocity: 100, Start: 0, Duration: 240})
	m.Timeline().Add(timeline.Note{Pitch: 67, Velocity: 80, Start: 240, Duration: 240})
	m.SetVolume(90)

	data, err := m.Export()
	require.NoError(t, err)

	other, _ := newManager(t)
	require.NoError(t, other.Import(data))
	assert.Equal(t, m.Timeline().Snapshot(), other.Timeline().Snapshot())
	assert.Equal(t, m.Timeline().Others, other.Timeline().Others)
}

func TestAutomationCoalesces(t *testing.T) {
	m, rec := newManager(t)

	m.SetProgram(5)
	m.SetProgram(7)
	require.Len(t, m.Timeline().Others, 1)
	assert.Equal(t, []byte{0xC0, 7}, m.Timeline().Others[0].Data)

	m.SetVolume(90)
	require.Len(t, m.Timeline().Others, 2)
	assert.Equal(t, []byte{0xB0, 7, 90}, m.Timeline().Others[1].Data)

	m.Seek(480)
	m.SetVolume(60)
	require.Len(t, m.Timeline().Others, 3)
	assert.Equal(t, int64(480), m.Timeline().Others[2].Tick)

	assert.Len(t, rec.Messages(), 4, "every change is sent live")
	assert.Equal(t, uint8(7), m.Program())
	assert.Equal(t, uint8(60), m.Volume())
}

func TestChannelFollowsEverywhere(t *testing.T) {
	m, rec := newManager(t)
	m.SetChannel(3)

	assert.Equal(t, uint8(3), m.Editor().Channel())
	assert.Equal(t, 3, m.controls.channel.Selected)

	y := m.Keyboard().RowY(60) + 2
	click(m, geom.Pt(10, y))
	notes := rec.Notes()
	require.NotEmpty(t, notes)
	assert.Equal(t, uint8(3), notes[0].Channel)

	cfg := config.DefaultConfig()
	m.StoreSettings(cfg)
	assert.Equal(t, 3, cfg.Editor.EditChannel)
}

func TestExternalNotesOnlyHighlight(t *testing.T) {
	m, rec := newManager(t)

	m.HandleExternal(gomidi.NoteOn(0, 64, 100))
	assert.True(t, m.Keyboard().Lit(64))
	m.HandleExternal(gomidi.NoteOff(0, 64))
	assert.False(t, m.Keyboard().Lit(64))

	m.HandleExternal(gomidi.ControlChange(0, 7, 100))
	assert.Empty(t, rec.Messages())
	assert.Empty(t, m.Timeline().Notes)
}

func TestEdgeScrollDuringMarquee(t *testing.T) {
	m, _ := newManager(t)
	m.Timeline().Add(timeline.Note{Pitch: 60, Velocity: 100, Start: 480 * 40, Duration: 480})
	m.Editor().SetMode(editor.ModeSelect)

	origin := m.EditorRect().Min()
	g := m.Editor().GridRect()
	m.HandleEvent(broker.Event{Kind: broker.PointerDown, Pos: origin.Add(geom.Pt(100, 100))})
	m.HandleEvent(broker.Event{Kind: broker.PointerMove, Pos: origin.Add(geom.Pt(g.W-4, 100))})
	require.IsType(t, &editor.Marquee{}, m.Editor().Gesture())

	m.Frame(0)
	m.Frame(100)
	assert.InDelta(t, 60, m.Editor().Scroll().X, 1e-9)

	m.HandleEvent(broker.Event{Kind: broker.PointerUp, Pos: origin.Add(geom.Pt(g.W-4, 100))})
	m.Frame(200)
	assert.InDelta(t, 60, m.Editor().Scroll().X, 1e-9, "stops with the gesture")
}

func TestWheelOverCanvasScrolls(t *testing.T) {
	m, _ := newManager(t)
	m.Timeline().Add(timeline.Note{Pitch: 60, Velocity: 100, Start: 480 * 40, Duration: 480})
	before := m.Editor().Scroll()

	m.HandleEvent(broker.Event{Kind: broker.Wheel, Pos: geom.Pt(300, 200), DX: 50})
	assert.Equal(t, before.X+50, m.Editor().Scroll().X)
}
