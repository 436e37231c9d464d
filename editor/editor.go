// Package editor is the piano roll's pointer and keyboard state machine.
//
// Coordinates come in three spaces: local (origin at the editor viewport's
// top-left, ruler included), screen-grid (local minus the ruler band) and
// content (screen-grid plus scroll offset, where timeline.Grid applies).
package editor

import (
	"errors"
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/debug"
	"go-pianoroll/geom"
	"go-pianoroll/midi"
	"go-pianoroll/timeline"
)

// ErrEmptySelection is returned when an action needs selected notes and there are none
var ErrEmptySelection = errors.New("no notes selected")

const (
	RulerHeight   = 16.0
	ScrollbarSize = 16.0
	EdgeGrab      = 6.0 // trailing-edge resize zone
	DragThreshold = 3.0
	MinThumb      = 16.0

	MinBeatWidth = 8.0
	MaxBeatWidth = 800.0

	// empty space kept after the last note so there is room to add more
	tailBeats = 8
)

type Mode int

const (
	ModeAdd Mode = iota
	ModeSelect
	ModePan
)

func (m Mode) String() string {
	switch m {
	case ModeSelect:
		return "select"
	case ModePan:
		return "pan"
	}
	return "add"
}

// ParseMode accepts the names String returns; anything else is ModeAdd
func ParseMode(s string) Mode {
	switch s {
	case "select":
		return ModeSelect
	case "pan":
		return ModePan
	}
	return ModeAdd
}

type Options struct {
	BeatWidth  float64
	NoteHeight float64
	NoteSize   string
	UndoDepth  int
	Channel    uint8
	Velocity   uint8
	Mode       Mode
}

func DefaultOptions() Options {
	return Options{
		BeatWidth:  64,
		NoteHeight: 16,
		NoteSize:   "1/8",
		UndoDepth:  timeline.DefaultUndoDepth,
		Velocity:   timeline.DefaultVelocity,
	}
}

type preview struct {
	pitch, channel uint8
}

// Editor edits a timeline through pointer gestures and key commands
type Editor struct {
	tl   *timeline.Timeline
	hist *timeline.History
	sink midi.Sink

	grid     timeline.Grid
	mode     Mode
	gesture  Gesture
	noteSize string
	channel  uint8
	velocity uint8

	size   geom.Point // viewport size
	scroll geom.Point // content offset of the grid's top-left

	preview *preview
	dirty   bool

	onChange func()
	onSeek   func(tick float64)
}

func New(tl *timeline.Timeline, sink midi.Sink, opts Options) *Editor {
	if sink == nil {
		sink = midi.Discard
	}
	d := DefaultOptions()
	if opts.BeatWidth <= 0 {
		opts.BeatWidth = d.BeatWidth
	}
	if opts.NoteHeight <= 0 {
		opts.NoteHeight = d.NoteHeight
	}
	if !timeline.ValidNoteSize(opts.NoteSize) {
		opts.NoteSize = d.NoteSize
	}
	if opts.Velocity == 0 {
		opts.Velocity = d.Velocity
	}
	return &Editor{
		tl:   tl,
		hist: timeline.NewHistory(opts.UndoDepth),
		sink: sink,
		grid: timeline.Grid{
			PPQN:       tl.PPQN,
			BeatWidth:  timeline.Clamp(opts.BeatWidth, MinBeatWidth, MaxBeatWidth),
			NoteHeight: opts.NoteHeight,
		},
		mode:     opts.Mode,
		gesture:  Idle{},
		noteSize: opts.NoteSize,
		channel:  timeline.Clamp(opts.Channel, 0, timeline.NumChannels-1),
		velocity: timeline.Clamp(opts.Velocity, 1, 127),
		dirty:    true,
	}
}

// SetTimeline replaces the song, dropping history, selection and any gesture in progress
func (e *Editor) SetTimeline(tl *timeline.Timeline) {
	e.endPreview()
	e.tl = tl
	e.grid.PPQN = tl.PPQN
	e.hist.Clear()
	e.gesture = Idle{}
	e.scroll.X = 0
	e.clampScroll()
	e.markDirty()
}

func (e *Editor) SetSink(sink midi.Sink) {
	if sink == nil {
		sink = midi.Discard
	}
	e.sink = sink
}

// SetOnChange registers a callback run after every structural mutation of the notes
func (e *Editor) SetOnChange(fn func()) { e.onChange = fn }

// SetOnSeek registers a callback for playhead drags on the ruler
func (e *Editor) SetOnSeek(fn func(tick float64)) { e.onSeek = fn }

func (e *Editor) Timeline() *timeline.Timeline { return e.tl }
func (e *Editor) History() *timeline.History   { return e.hist }
func (e *Editor) Grid() timeline.Grid          { return e.grid }
func (e *Editor) Mode() Mode                   { return e.mode }
func (e *Editor) Gesture() Gesture             { return e.gesture }
func (e *Editor) Scroll() geom.Point           { return e.scroll }
func (e *Editor) Size() geom.Point             { return e.size }
func (e *Editor) NoteSize() string             { return e.noteSize }
func (e *Editor) Channel() uint8               { return e.channel }
func (e *Editor) Velocity() uint8              { return e.velocity }

// Active reports whether a pointer gesture is in progress
func (e *Editor) Active() bool {
	_, idle := e.gesture.(Idle)
	return !idle
}

func (e *Editor) SetMode(m Mode) {
	if e.mode != m {
		e.mode = m
		debug.Log("editor", "mode", "mode", m)
		e.markDirty()
	}
}

func (e *Editor) SetNoteSize(name string) {
	if timeline.ValidNoteSize(name) {
		e.noteSize = name
		e.markDirty()
	}
}

func (e *Editor) SetChannel(ch uint8) {
	e.channel = timeline.Clamp(ch, 0, timeline.NumChannels-1)
	e.markDirty()
}

func (e *Editor) SetVelocity(v uint8) {
	e.velocity = timeline.Clamp(v, 1, 127)
}

// SetSize resizes the viewport
func (e *Editor) SetSize(w, h float64) {
	e.size = geom.Pt(math.Max(0, w), math.Max(0, h))
	e.clampScroll()
	e.markDirty()
}

func (e *Editor) markDirty() {
	e.dirty = true
}

// TakeDirty reports and clears the redraw flag
func (e *Editor) TakeDirty() bool {
	d := e.dirty
	e.dirty = false
	return d
}

// changed runs after every structural mutation
func (e *Editor) changed() {
	e.tl.Recalculate()
	e.clampScroll()
	e.markDirty()
	if e.onChange != nil {
		e.onChange()
	}
}

// Layout, all in local space

func (e *Editor) RulerRect() geom.Rect {
	return geom.R(0, 0, math.Max(0, e.size.X-ScrollbarSize), math.Min(RulerHeight, e.size.Y))
}

func (e *Editor) GridRect() geom.Rect {
	return geom.R(0, RulerHeight,
		math.Max(0, e.size.X-ScrollbarSize),
		math.Max(0, e.size.Y-RulerHeight-ScrollbarSize))
}

func (e *Editor) VScrollRect() geom.Rect {
	return geom.R(math.Max(0, e.size.X-ScrollbarSize), RulerHeight, ScrollbarSize, e.GridRect().H)
}

func (e *Editor) HScrollRect() geom.Rect {
	return geom.R(0, math.Max(0, e.size.Y-ScrollbarSize), e.GridRect().W, ScrollbarSize)
}

// ContentSize is the scrollable extent of the grid
func (e *Editor) ContentSize() geom.Point {
	w := e.grid.TickToX(float64(e.tl.SongDuration())) + tailBeats*e.grid.BeatWidth
	return geom.Pt(math.Max(w, e.GridRect().W), e.grid.ContentHeight())
}

func (e *Editor) maxScroll() geom.Point {
	c := e.ContentSize()
	g := e.GridRect()
	return geom.Pt(math.Max(0, c.X-g.W), math.Max(0, c.Y-g.H))
}

func (e *Editor) clampScroll() {
	m := e.maxScroll()
	e.scroll.X = timeline.Clamp(e.scroll.X, 0, m.X)
	e.scroll.Y = timeline.Clamp(e.scroll.Y, 0, m.Y)
}

// SetScroll moves the view, clamped to the content
func (e *Editor) SetScroll(p geom.Point) {
	old := e.scroll
	e.scroll = p
	e.clampScroll()
	if e.scroll != old {
		e.markDirty()
	}
}

// ScrollToPitch centres the view on a pitch row
func (e *Editor) ScrollToPitch(pitch int) {
	y := e.grid.PitchToY(pitch) - e.GridRect().H/2 + e.grid.NoteHeight/2
	e.SetScroll(geom.Pt(e.scroll.X, y))
}

// thumb returns the track and thumb rectangles of a scrollbar
func (e *Editor) thumb(axis Axis) (track, thumb geom.Rect) {
	c := e.ContentSize()
	if axis == Vertical {
		track = e.VScrollRect()
		size := math.Max(MinThumb, track.H*math.Min(1, track.H/math.Max(c.Y, 1)))
		size = math.Min(size, track.H)
		pos := 0.0
		if m := e.maxScroll().Y; m > 0 {
			pos = (track.H - size) * e.scroll.Y / m
		}
		return track, geom.R(track.X, track.Y+pos, track.W, size)
	}
	track = e.HScrollRect()
	size := math.Max(MinThumb, track.W*math.Min(1, track.W/math.Max(c.X, 1)))
	size = math.Min(size, track.W)
	pos := 0.0
	if m := e.maxScroll().X; m > 0 {
		pos = (track.W - size) * e.scroll.X / m
	}
	return track, geom.R(track.X+pos, track.Y, size, track.H)
}

func (e *Editor) VThumb() geom.Rect {
	_, t := e.thumb(Vertical)
	return t
}

func (e *Editor) HThumb() geom.Rect {
	_, t := e.thumb(Horizontal)
	return t
}

// ToContent converts a local point to content space
func (e *Editor) ToContent(p geom.Point) geom.Point {
	return geom.Pt(p.X+e.scroll.X, p.Y-RulerHeight+e.scroll.Y)
}

// ToLocal converts a content point back to local space
func (e *Editor) ToLocal(c geom.Point) geom.Point {
	return geom.Pt(c.X-e.scroll.X, c.Y+RulerHeight-e.scroll.Y)
}

// NoteRect is the note's rectangle in local space
func (e *Editor) NoteRect(n *timeline.Note) geom.Rect {
	r := e.grid.NoteRect(*n)
	return r.Translate(geom.Pt(-e.scroll.X, RulerHeight-e.scroll.Y))
}

// TickX is the local x of a tick, for the playhead and ruler marks
func (e *Editor) TickX(tick float64) float64 {
	return e.grid.TickToX(tick) - e.scroll.X
}

// MarqueeRect returns the rubber band in local space while one is being drawn
func (e *Editor) MarqueeRect() (geom.Rect, bool) {
	m, ok := e.gesture.(*Marquee)
	if !ok {
		return geom.Rect{}, false
	}
	return m.Rect().Translate(geom.Pt(-e.scroll.X, RulerHeight-e.scroll.Y)), true
}

// EnsureVisible pages the view so tick is on screen. Returns true if it scrolled.
func (e *Editor) EnsureVisible(tick float64) bool {
	x := e.grid.TickToX(tick)
	w := e.GridRect().W
	if w <= 0 || (x >= e.scroll.X && x < e.scroll.X+w) {
		return false
	}
	old := e.scroll
	e.scroll.X = x
	e.clampScroll()
	if e.scroll != old {
		e.markDirty()
		return true
	}
	return false
}

// NoteAt returns the topmost note under a content point
func (e *Editor) NoteAt(c geom.Point) *timeline.Note {
	for i := len(e.tl.Notes) - 1; i >= 0; i-- {
		n := e.tl.Notes[i]
		if e.grid.NoteRect(*n).Contains(c) {
			return n
		}
	}
	return nil
}

func (e *Editor) onEdge(n *timeline.Note, c geom.Point) bool {
	r := e.grid.NoteRect(*n)
	grab := math.Min(EdgeGrab, r.W/2)
	return c.X >= r.X+r.W-grab
}

// Preview

func (e *Editor) startPreview(pitch, channel, velocity uint8) {
	e.endPreview()
	e.send(midi.NoteOn, channel, pitch, velocity)
	e.preview = &preview{pitch: pitch, channel: channel}
}

func (e *Editor) endPreview() {
	if e.preview == nil {
		return
	}
	e.send(midi.NoteOff, e.preview.channel, e.preview.pitch, 0)
	e.preview = nil
}

func (e *Editor) send(kind, channel, pitch, velocity uint8) {
	var err error
	if kind == midi.NoteOn {
		err = e.sink.Send(gomidi.NoteOn(channel, pitch, velocity))
	} else {
		err = e.sink.Send(gomidi.NoteOff(channel, pitch))
	}
	if err != nil {
		debug.Log("editor", "preview send failed", "err", err)
	}
}
