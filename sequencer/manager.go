// Package sequencer ties the piano roll together: it lays out the keyboard,
// the editor canvas and the settings drawer, routes pointer and key input
// between them, and drives playback from the host's frame clock.
package sequencer

import (
	"errors"
	"math"
	"slices"
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/broker"
	"go-pianoroll/config"
	"go-pianoroll/debug"
	"go-pianoroll/editor"
	"go-pianoroll/geom"
	"go-pianoroll/midi"
	"go-pianoroll/midifile"
	"go-pianoroll/playback"
	"go-pianoroll/timeline"
	"go-pianoroll/widgets"
)

// ErrEmptySelection is returned by edits that need selected notes
var ErrEmptySelection = editor.ErrEmptySelection

const (
	noticeMs = 3000

	// edge scrolling while dragging past the grid
	edgeZone  = 16.0
	edgeSpeed = 600.0 // px per second
)

// Manager is the engine: one song, one editor, one scheduler, and the widgets around them
type Manager struct {
	tl     *timeline.Timeline
	editor *editor.Editor
	sched  *playback.Scheduler
	sink   midi.Sink

	keyboard *widgets.Keyboard
	drawer   *widgets.Drawer
	tok      broker.Token
	controls controls

	size         geom.Point
	keyWidth     float64
	drawerHeight float64

	autoScroll bool
	follow     bool
	program    uint8
	volume     uint8

	focusPitch  int        // pitch row to centre once the canvas has a size, -1 when none
	pointer     geom.Point // last pointer position, surface space
	lastNow     float64
	hasNow      bool
	notice      string
	noticeUntil float64
	dirty       bool

	onSettings func()
}

// controls are the drawer's widgets
type controls struct {
	play, stop   *widgets.Button
	tempo        *widgets.Slider
	follow, mute *widgets.Toggle
	mode         *widgets.Dropdown
	noteSize     *widgets.Dropdown
	channel      *widgets.Dropdown
	program      *widgets.Dropdown
	velocity     *widgets.PopupSlider
	volume       *widgets.PopupSlider
}

// New builds an engine with an empty song from the config's defaults
func New(cfg *config.Config, sink midi.Sink) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if sink == nil {
		sink = midi.Discard
	}
	tl := timeline.New(cfg.Timeline.PPQN, cfg.Timeline.BPM)

	m := &Manager{
		tl:           tl,
		sink:         sink,
		keyWidth:     cfg.Keyboard.KeyWidth,
		drawerHeight: cfg.Drawer.Height,
		autoScroll:   cfg.Drawer.AutoScroll,
		follow:       cfg.Drawer.FollowPlayhead,
		program:      uint8(timeline.Clamp(cfg.Drawer.Program, 0, 127)),
		volume:       uint8(timeline.Clamp(cfg.Drawer.Volume, 0, 127)),
		dirty:        true,
	}

	m.editor = editor.New(tl, sink, editor.Options{
		BeatWidth:  cfg.Editor.BeatWidth,
		NoteHeight: cfg.Editor.NoteHeight,
		NoteSize:   cfg.Editor.NoteSize,
		UndoDepth:  cfg.Editor.UndoDepth,
		Channel:    uint8(timeline.Clamp(cfg.Editor.EditChannel, 0, timeline.NumChannels-1)),
		Mode:       editor.ParseMode(cfg.Editor.Mode),
	})
	m.editor.SetOnChange(m.edited)
	m.editor.SetOnSeek(m.Seek)

	m.sched = playback.New(tl, sink)
	m.sched.SetOnStop(func() { m.dirty = true })

	m.keyboard = widgets.NewKeyboard(sink)
	m.keyboard.Channel = m.editor.Channel
	m.keyboard.VelocityMin = uint8(timeline.Clamp(cfg.Keyboard.VelocityMin, 1, 127))
	m.keyboard.VelocityMax = uint8(timeline.Clamp(cfg.Keyboard.VelocityMax, 1, 127))

	m.buildDrawer()
	m.scrollToPitch(60)
	return m
}

func (m *Manager) buildDrawer() {
	d := widgets.NewDrawer()
	d.OnResize = func(h float64) {
		m.drawerHeight = h
		m.layout()
		m.settingsChanged()
	}
	c := &m.controls

	c.play = widgets.NewButton("play", m.sched.Toggle)
	c.stop = widgets.NewButton("stop", m.Stop)
	c.tempo = widgets.NewSlider("bpm", int(timeline.MinBPM), int(timeline.MaxBPM), int(math.Round(m.tl.BPM)), func(v int) {
		m.tl.SetBPM(float64(v))
		debug.Log("sequencer", "tempo", "bpm", v)
	})
	c.follow = widgets.NewToggle("follow", m.follow, func(on bool) {
		m.follow = on
		m.settingsChanged()
	})
	c.mute = widgets.NewToggle("mute", false, func(on bool) {
		m.sched.SetMuted(m.editor.Channel(), on)
	})

	modes := []string{editor.ModeAdd.String(), editor.ModeSelect.String(), editor.ModePan.String()}
	c.mode = widgets.NewDropdown("mode", modes, int(m.editor.Mode()), func(i int) {
		m.editor.SetMode(editor.Mode(i))
		m.settingsChanged()
	})

	sizes := make([]string, len(timeline.NoteSizes))
	for i, s := range timeline.NoteSizes {
		sizes[i] = s.Name
	}
	c.noteSize = widgets.NewDropdown("note", sizes, max(0, slices.Index(sizes, m.editor.NoteSize())), func(i int) {
		m.editor.SetNoteSize(sizes[i])
		m.settingsChanged()
	})

	channels := make([]string, timeline.NumChannels)
	for i := range channels {
		channels[i] = strconv.Itoa(i + 1)
	}
	c.channel = widgets.NewDropdown("ch", channels, int(m.editor.Channel()), func(i int) {
		m.SetChannel(uint8(i))
	})

	c.program = widgets.NewDropdown("program", midi.GMPrograms[:], int(m.program), func(i int) {
		m.SetProgram(uint8(i))
	})

	c.velocity = widgets.NewPopupSlider(widgets.NewSlider("vel", 1, 127, int(m.editor.Velocity()), func(v int) {
		m.editor.SetVelocity(uint8(v))
	}))
	c.volume = widgets.NewPopupSlider(widgets.NewSlider("vol", 0, 127, int(m.volume), func(v int) {
		m.SetVolume(uint8(v))
	}))

	// the drawer sits at the bottom, so overlays open upward
	for _, dd := range []*widgets.Dropdown{c.mode, c.noteSize, c.channel, c.program} {
		dd.Up = true
	}
	c.velocity.Up, c.volume.Up = true, true

	d.Add(c.play, geom.R(8, 8, 64, 16))
	d.Add(c.stop, geom.R(80, 8, 64, 16))
	d.Add(c.tempo, geom.R(152, 8, 160, 16))
	d.Add(c.follow, geom.R(320, 8, 96, 16))
	d.Add(c.mute, geom.R(424, 8, 80, 16))

	d.Add(c.mode, geom.R(8, 24, 120, 16))
	d.Add(c.noteSize, geom.R(136, 24, 96, 16))
	d.Add(c.channel, geom.R(240, 24, 72, 16))
	d.Add(c.program, geom.R(320, 24, 232, 16))

	d.Add(c.velocity, geom.R(8, 40, 120, 16))
	d.Add(c.volume, geom.R(136, 40, 120, 16))

	m.drawer = d
}

func (m *Manager) Timeline() *timeline.Timeline   { return m.tl }
func (m *Manager) Editor() *editor.Editor         { return m.editor }
func (m *Manager) Scheduler() *playback.Scheduler { return m.sched }
func (m *Manager) Keyboard() *widgets.Keyboard    { return m.keyboard }
func (m *Manager) Drawer() *widgets.Drawer        { return m.drawer }
func (m *Manager) Token() broker.Token            { return m.tok }
func (m *Manager) Size() geom.Point               { return m.size }
func (m *Manager) Program() uint8                 { return m.program }
func (m *Manager) Volume() uint8                  { return m.volume }

// Widgets are the broker's top-level targets in layout order
func (m *Manager) Widgets() []broker.Widget {
	return []broker.Widget{m.keyboard, m.drawer}
}

// PaintOrder is Widgets with any open overlay last
func (m *Manager) PaintOrder() []broker.Widget {
	return broker.PaintOrder(m.Widgets())
}

// SetSink routes all live output (editing, keyboard, playback) somewhere else
func (m *Manager) SetSink(sink midi.Sink) {
	if sink == nil {
		sink = midi.Discard
	}
	m.sink = sink
	m.editor.SetSink(sink)
	m.sched.SetSink(sink)
	m.keyboard.SetSink(sink)
}

// SetOnSettingsChange registers a callback for changes worth persisting
func (m *Manager) SetOnSettingsChange(fn func()) { m.onSettings = fn }

func (m *Manager) settingsChanged() {
	m.dirty = true
	if m.onSettings != nil {
		m.onSettings()
	}
}

// StoreSettings copies the persisted parts of the UI state into cfg
func (m *Manager) StoreSettings(cfg *config.Config) {
	cfg.Editor.Mode = m.editor.Mode().String()
	cfg.Editor.NoteSize = m.editor.NoteSize()
	cfg.Editor.EditChannel = int(m.editor.Channel())
	cfg.Editor.BeatWidth = m.editor.Grid().BeatWidth
	cfg.Drawer.Height = m.drawerHeight
	cfg.Drawer.FollowPlayhead = m.follow
	cfg.Drawer.Program = int(m.program)
	cfg.Drawer.Volume = int(m.volume)
}

// Layout

// SetSize lays the surface out for a new logical size
func (m *Manager) SetSize(w, h float64) {
	m.size = geom.Pt(math.Max(0, w), math.Max(0, h))
	m.layout()
}

func (m *Manager) layout() {
	w, h := m.size.X, m.size.Y
	kw := math.Min(m.keyWidth, w)
	dh := timeline.Clamp(m.drawerHeight, widgets.MinDrawerHeight, math.Max(widgets.MinDrawerHeight, h-editor.RulerHeight-editor.ScrollbarSize))
	top := math.Max(0, h-dh)

	m.keyboard.SetBounds(geom.R(0, 0, kw, top))
	m.drawer.SetBounds(geom.R(0, top, w, h-top))
	m.drawer.MaxHeight = math.Max(widgets.MinDrawerHeight, h-editor.RulerHeight-editor.ScrollbarSize)
	m.editor.SetSize(w-kw, top)
	if m.focusPitch >= 0 {
		m.scrollToPitch(m.focusPitch)
	}
	m.sync()
	m.dirty = true
}

// scrollToPitch centres the canvas on a pitch, waiting for a layout if needed
func (m *Manager) scrollToPitch(pitch int) {
	if m.editor.GridRect().H <= 0 {
		m.focusPitch = pitch
		return
	}
	m.focusPitch = -1
	m.editor.ScrollToPitch(pitch)
}

func (m *Manager) KeyboardRect() geom.Rect { return m.keyboard.Bounds() }
func (m *Manager) DrawerRect() geom.Rect   { return m.drawer.Bounds() }

// EditorRect is the canvas in surface space
func (m *Manager) EditorRect() geom.Rect {
	k := m.keyboard.Bounds()
	s := m.editor.Size()
	return geom.R(k.X+k.W, 0, s.X, s.Y)
}

// sync keeps the keyboard's rows on the editor's pitch rows
func (m *Manager) sync() {
	m.keyboard.SetView(editor.RulerHeight, m.editor.Scroll().Y, m.editor.Grid().NoteHeight)
	if m.editor.TakeDirty() {
		m.dirty = true
	}
}

// Input

// HandleEvent routes one pointer event in surface space. A gesture already
// running in the editor keeps the pointer; otherwise the widgets get first
// refusal and the canvas takes what is left.
func (m *Manager) HandleEvent(ev broker.Event) {
	m.pointer = ev.Pos
	defer m.sync()

	if m.editor.Active() {
		m.toEditor(ev)
		return
	}

	var handled bool
	m.tok, handled = broker.Dispatch(m.tok, ev, m.Widgets())
	if handled {
		m.dirty = true
		return
	}

	switch ev.Kind {
	case broker.PointerDown, broker.Wheel:
		if m.EditorRect().Contains(ev.Pos) {
			m.toEditor(ev)
		}
	}
}

func (m *Manager) toEditor(ev broker.Event) {
	m.editor.HandleEvent(ev.At(m.EditorRect().Local(ev.Pos)))
}

// HandleKey runs transport keys here and everything else in the editor.
// An edit that needs a selection reports ErrEmptySelection and shows a notice.
func (m *Manager) HandleKey(key string) error {
	defer m.sync()
	switch key {
	case " ", "space":
		m.sched.Toggle()
		m.dirty = true
		return nil
	case "home":
		m.Stop()
		return nil
	}

	_, err := m.editor.HandleKey(key)
	if errors.Is(err, ErrEmptySelection) {
		m.Notify("Nothing selected")
	}
	return err
}

// Notify shows a short message to the user
func (m *Manager) Notify(msg string) {
	m.notice = msg
	m.noticeUntil = m.lastNow + noticeMs
	m.dirty = true
	debug.Log("sequencer", "notice", "msg", msg)
}

func (m *Manager) Notice() string { return m.notice }

// Transport

func (m *Manager) Play()  { m.sched.Play(); m.dirty = true }
func (m *Manager) Pause() { m.sched.Pause(); m.dirty = true }

func (m *Manager) Stop() {
	m.sched.Stop()
	m.editor.EnsureVisible(0)
	m.dirty = true
}

// Seek moves the playhead; it is never quantized
func (m *Manager) Seek(tick float64) {
	m.sched.Seek(tick)
	m.dirty = true
}

// edited runs after every structural change to the notes
func (m *Manager) edited() {
	if m.sched.IsPlaying() {
		m.sched.Rebuild()
	}
	m.dirty = true
}

// Frame advances playback to nowMs (a monotonic clock in milliseconds)
func (m *Manager) Frame(nowMs float64) {
	elapsed := 0.0
	if m.hasNow {
		elapsed = math.Max(0, nowMs-m.lastNow)
	}
	m.lastNow, m.hasNow = nowMs, true

	if m.sched.IsPlaying() {
		m.sched.Frame(nowMs)
		m.dirty = true
		if m.follow && !m.editor.Active() {
			m.editor.EnsureVisible(m.sched.Playhead())
		}
	}

	if m.autoScroll && elapsed > 0 {
		m.edgeScroll(elapsed)
	}

	if m.notice != "" && nowMs >= m.noticeUntil {
		m.notice = ""
		m.dirty = true
	}
	m.sync()
}

// edgeScroll scrolls the canvas while a drag or marquee sits at the grid's edge
func (m *Manager) edgeScroll(elapsedMs float64) {
	switch m.editor.Gesture().(type) {
	case *editor.Dragging, *editor.Resizing, *editor.Marquee:
	default:
		return
	}
	local := m.EditorRect().Local(m.pointer)
	g := m.editor.GridRect()
	step := edgeSpeed * elapsedMs / 1000

	var d geom.Point
	switch {
	case local.X < g.X+edgeZone:
		d.X = -step
	case local.X >= g.X+g.W-edgeZone:
		d.X = step
	}
	switch {
	case local.Y < g.Y+edgeZone:
		d.Y = -step
	case local.Y >= g.Y+g.H-edgeZone:
		d.Y = step
	}
	if d == (geom.Point{}) {
		return
	}
	before := m.editor.Scroll()
	m.editor.SetScroll(before.Add(d))
	if m.editor.Scroll() != before {
		// the content moved under a still pointer
		m.editor.HandleEvent(broker.Event{Kind: broker.PointerMove, Pos: local})
	}
}

// Files

// Import replaces the song with a decoded file. On error nothing changes.
func (m *Manager) Import(data []byte) error {
	f, err := midifile.Decode(data)
	if err != nil {
		m.Notify("Could not read MIDI file")
		return fault.Wrap(err, fmsg.With("import"))
	}
	tl := f.ToTimeline()

	m.sched.SetTimeline(tl)
	m.editor.SetTimeline(tl)
	m.tl = tl
	m.controls.tempo.Value = timeline.Clamp(int(math.Round(tl.BPM)), m.controls.tempo.Min, m.controls.tempo.Max)

	pitch := 60
	if len(tl.Notes) > 0 {
		pitch = int(tl.Notes[0].Pitch)
	}
	m.scrollToPitch(pitch)
	m.sync()
	m.dirty = true

	debug.Log("sequencer", "imported", "name", f.Name, "ppqn", tl.PPQN, "bpm", tl.BPM, "notes", len(tl.Notes), "others", len(tl.Others))
	return nil
}

// Export encodes the current song as a format 0 file
func (m *Manager) Export() ([]byte, error) {
	data, err := midifile.EncodeTimeline(m.tl)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("export"))
	}
	debug.Log("sequencer", "exported", "bytes", len(data), "notes", len(m.tl.Notes))
	return data, nil
}

// Automation

// SetChannel picks the channel new notes, the keyboard and automation use
func (m *Manager) SetChannel(ch uint8) {
	m.editor.SetChannel(ch)
	m.controls.channel.Selected = int(m.editor.Channel())
	m.controls.mute.On = m.sched.Muted(m.editor.Channel())
	m.settingsChanged()
}

// SetProgram sends a program change now and records it at the playhead
func (m *Manager) SetProgram(p uint8) {
	m.program = timeline.Clamp(p, 0, 127)
	m.controls.program.Selected = int(m.program)
	m.automate(gomidi.ProgramChange(m.editor.Channel(), m.program))
	m.settingsChanged()
}

// SetVolume sends CC 7 now and records it at the playhead
func (m *Manager) SetVolume(v uint8) {
	m.volume = timeline.Clamp(v, 0, 127)
	m.controls.volume.Slider.Value = int(m.volume)
	m.automate(midi.Volume(m.editor.Channel(), m.volume))
	m.settingsChanged()
}

func (m *Manager) automate(msg gomidi.Message) {
	if err := m.sink.Send(msg); err != nil {
		debug.Log("sequencer", "send failed", "err", err)
	}

	tick := int64(m.sched.Playhead())
	others := m.tl.Others
	if n := len(others); n > 0 && others[n-1].Tick == tick && sameControl(others[n-1].Data, msg) {
		// a slider drag at a still playhead keeps only its last value
		others[n-1].Data = slices.Clone(msg.Bytes())
	} else {
		m.tl.AddOther(tick, msg.Bytes())
	}
	if m.sched.IsPlaying() {
		m.sched.Rebuild()
	}
	m.dirty = true
}

// sameControl reports whether two messages set the same thing on the same channel
func sameControl(a []byte, b gomidi.Message) bool {
	if len(a) == 0 || len(b) == 0 || a[0] != b[0] {
		return false
	}
	if a[0]&0xF0 == midi.CC {
		return len(a) > 1 && len(b) > 1 && a[1] == b[1]
	}
	return true
}

// HandleExternal lights the keyboard for notes played on another device.
// It never changes the song.
func (m *Manager) HandleExternal(msg gomidi.Message) {
	ev, ok := midi.ParseNote(msg)
	if !ok {
		return
	}
	m.HandleExternalNote(ev)
}

func (m *Manager) HandleExternalNote(ev midi.NoteEvent) {
	m.keyboard.SetExternal(ev.Note, ev.On)
	m.dirty = true
}

// TakeDirty reports and clears the redraw flag
func (m *Manager) TakeDirty() bool {
	m.sync()
	d := m.dirty
	m.dirty = false
	return d
}
