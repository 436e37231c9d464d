package editor

import (
	"math"

	"go-pianoroll/broker"
	"go-pianoroll/debug"
	"go-pianoroll/geom"
	"go-pianoroll/timeline"
)

// HandleEvent feeds one pointer event in local space through the state machine
func (e *Editor) HandleEvent(ev broker.Event) {
	switch ev.Kind {
	case broker.PointerDown:
		e.pointerDown(ev.Pos, ev.Mod)
	case broker.PointerMove:
		e.pointerMove(ev.Pos)
	case broker.PointerUp:
		e.pointerMove(ev.Pos)
		e.pointerUp()
	case broker.Wheel:
		e.wheel(ev)
	case broker.OutsideClick:
		e.Cancel()
	}
}

func (e *Editor) pointerDown(p geom.Point, mod broker.Modifiers) {
	if e.Active() {
		// a press without a release in between: finish the old gesture first
		e.pointerUp()
	}

	switch {
	case e.RulerRect().Contains(p):
		e.gesture = Scrubbing{}
		e.seek(p.X)
		return
	case e.VScrollRect().Contains(p):
		e.beginScrollDrag(Vertical, p.Y)
		return
	case e.HScrollRect().Contains(p):
		e.beginScrollDrag(Horizontal, p.X)
		return
	}

	c := e.ToContent(p)
	if e.mode == ModePan || !e.GridRect().Contains(p) || c.Y >= e.grid.ContentHeight() {
		e.gesture = &Panning{Anchor: p, Scroll: e.scroll}
		return
	}

	if n := e.NoteAt(c); n != nil {
		if e.onEdge(n, c) {
			e.beginResize(n, c, mod)
		} else {
			e.beginDrag(n, c, mod)
		}
		return
	}

	switch e.mode {
	case ModeAdd:
		e.addNote(c, p)
	case ModeSelect:
		if !mod.Toggle() {
			e.tl.ClearSelection()
		}
		e.gesture = &Marquee{Start: c, End: c, Additive: mod.Toggle()}
		e.markDirty()
	}
}

func (e *Editor) addNote(c, p geom.Point) {
	e.hist.Push(e.tl.Snapshot())
	n := e.tl.Add(timeline.Note{
		Pitch:    timeline.ClampPitch(e.grid.YToPitch(c.Y)),
		Velocity: e.velocity,
		Channel:  e.channel,
		Start:    timeline.Quantize(e.grid.XToTick(c.X), e.tl.Quantum()),
		Duration: timeline.NoteSizeTicks(e.noteSize, e.tl.PPQN),
	})
	e.tl.SelectOnly(n)
	e.gesture = &Resizing{
		AnchorTick: n.Start,
		Original:   map[*timeline.Note]int64{n: n.Duration},
		Tentative:  true,
		Note:       n,
		Press:      p,
	}
	e.startPreview(n.Pitch, n.Channel, n.Velocity)
	debug.Log("editor", "add", "pitch", n.Pitch, "start", n.Start, "duration", n.Duration)
	e.changed()
}

func (e *Editor) beginDrag(n *timeline.Note, c geom.Point, mod broker.Modifiers) {
	g := &Dragging{
		Pressed: n,
		Offsets: make(map[*timeline.Note]geom.Point),
		Before:  e.tl.Snapshot(),
	}
	switch {
	case mod.Toggle():
		e.tl.ToggleSelected(n)
	case e.tl.IsSelected(n) && e.tl.SelectionLen() == 1:
		g.PotentialDeselect = true
	case e.tl.IsSelected(n):
		g.Collapse = true
	default:
		e.tl.SelectOnly(n)
	}

	for _, s := range e.tl.Selected() {
		g.Offsets[s] = e.grid.NoteRect(*s).Min().Sub(c)
	}
	e.gesture = g
	if e.tl.IsSelected(n) {
		e.startPreview(n.Pitch, n.Channel, n.Velocity)
	}
	e.markDirty()
}

func (e *Editor) beginResize(n *timeline.Note, c geom.Point, mod broker.Modifiers) {
	if !e.tl.IsSelected(n) {
		if mod.Toggle() {
			e.tl.Select(n)
		} else {
			e.tl.SelectOnly(n)
		}
	}
	g := &Resizing{
		AnchorTick: timeline.Quantize(e.grid.XToTick(c.X), e.tl.Quantum()),
		Original:   make(map[*timeline.Note]int64),
		Before:     e.tl.Snapshot(),
	}
	for _, s := range e.tl.Selected() {
		g.Original[s] = s.Duration
	}
	e.gesture = g
	e.markDirty()
}

func (e *Editor) beginScrollDrag(axis Axis, pos float64) {
	track, thumb := e.thumb(axis)
	g := &ScrollDrag{Axis: axis, Anchor: pos}

	// clicking the track jumps the thumb's centre to the pointer
	if axis == Vertical && (pos < thumb.Y || pos >= thumb.Y+thumb.H) {
		e.scrollThumbTo(axis, pos-track.Y-thumb.H/2)
	}
	if axis == Horizontal && (pos < thumb.X || pos >= thumb.X+thumb.W) {
		e.scrollThumbTo(axis, pos-track.X-thumb.W/2)
	}

	if axis == Vertical {
		g.Scroll = e.scroll.Y
	} else {
		g.Scroll = e.scroll.X
	}
	e.gesture = g
}

// scrollThumbTo places the thumb's leading edge at offset along its track
func (e *Editor) scrollThumbTo(axis Axis, offset float64) {
	track, thumb := e.thumb(axis)
	m := e.maxScroll()
	s := e.scroll
	if axis == Vertical {
		if free := track.H - thumb.H; free > 0 {
			s.Y = offset / free * m.Y
		}
	} else {
		if free := track.W - thumb.W; free > 0 {
			s.X = offset / free * m.X
		}
	}
	e.SetScroll(s)
}

func (e *Editor) pointerMove(p geom.Point) {
	switch g := e.gesture.(type) {
	case *Dragging:
		e.drag(g, p)
	case *Resizing:
		e.resize(g, p)
	case *Marquee:
		g.End = e.ToContent(p)
		e.markDirty()
	case *Panning:
		e.SetScroll(g.Scroll.Sub(p.Sub(g.Anchor)))
	case *ScrollDrag:
		e.scrollDrag(g, p)
	case Scrubbing:
		e.seek(p.X)
	}
}

func (e *Editor) drag(g *Dragging, p geom.Point) {
	c := e.ToContent(p)
	q := e.tl.Quantum()

	type target struct {
		start int64
		pitch int
	}
	targets := make(map[*timeline.Note]target, len(g.Offsets))
	minStart, minPitch, maxPitch := int64(math.MaxInt64), timeline.NumPitches, -1
	for n, off := range g.Offsets {
		origin := c.Add(off)
		t := target{
			start: snap(e.grid.XToTick(origin.X), q),
			pitch: e.grid.YToPitch(origin.Y + e.grid.NoteHeight/2),
		}
		targets[n] = t
		minStart = min(minStart, t.start)
		minPitch, maxPitch = min(minPitch, t.pitch), max(maxPitch, t.pitch)
	}

	// one shared delta for the group, clamped at the edges
	var dt int64
	if minStart < 0 {
		dt = -minStart
	}
	dp := 0
	switch {
	case minPitch < 0:
		dp = -minPitch
	case maxPitch > timeline.NumPitches-1:
		dp = timeline.NumPitches - 1 - maxPitch
	}

	moved := false
	for n, t := range targets {
		start := t.start + dt
		pitch := timeline.ClampPitch(t.pitch + dp)
		if start == n.Start && pitch == n.Pitch {
			continue
		}
		if !g.Moved {
			e.hist.Push(g.Before)
			g.Moved = true
		}
		if n == g.Pressed && pitch != n.Pitch && e.preview != nil {
			e.startPreview(pitch, n.Channel, n.Velocity)
		}
		n.Start, n.Pitch = start, pitch
		moved = true
	}
	if moved {
		e.changed()
	}
}

// snap rounds to the nearest multiple of quantum without flooring at zero
func snap(tick float64, quantum int64) int64 {
	if quantum <= 0 {
		return int64(math.Round(tick))
	}
	return int64(math.Round(tick/float64(quantum))) * quantum
}

func (e *Editor) resize(g *Resizing, p geom.Point) {
	if g.Tentative {
		if math.Hypot(p.X-g.Press.X, p.Y-g.Press.Y) < DragThreshold {
			return
		}
		// promote: the note's end follows the pointer from here on
		g.Tentative = false
		g.Snap = true
		g.AnchorTick = g.Note.Start
		g.Original = map[*timeline.Note]int64{g.Note: 0}
	}

	x := e.grid.XToTick(e.ToContent(p).X)
	cur := timeline.Quantize(x, e.tl.Quantum())
	if g.Snap {
		cur = timeline.QuantizeUp(x, e.tl.Quantum())
	}
	floor := e.tl.MinDuration()

	moved := false
	for n, orig := range g.Original {
		d := max(floor, orig+cur-g.AnchorTick)
		if d == n.Duration {
			continue
		}
		if g.Before != nil {
			e.hist.Push(g.Before)
			g.Before = nil
		}
		n.Duration = d
		moved = true
	}
	if moved {
		e.changed()
	}
}

func (e *Editor) scrollDrag(g *ScrollDrag, p geom.Point) {
	track, thumb := e.thumb(g.Axis)
	m := e.maxScroll()
	s := e.scroll
	if g.Axis == Vertical {
		if free := track.H - thumb.H; free > 0 {
			s.Y = g.Scroll + (p.Y-g.Anchor)/free*m.Y
		}
	} else {
		if free := track.W - thumb.W; free > 0 {
			s.X = g.Scroll + (p.X-g.Anchor)/free*m.X
		}
	}
	e.SetScroll(s)
}

func (e *Editor) seek(x float64) {
	tick := math.Max(0, e.grid.XToTick(x+e.scroll.X))
	if e.onSeek != nil {
		e.onSeek(tick)
	}
	e.markDirty()
}

func (e *Editor) pointerUp() {
	switch g := e.gesture.(type) {
	case *Dragging:
		if !g.Moved {
			switch {
			case g.PotentialDeselect:
				e.tl.ClearSelection()
			case g.Collapse:
				e.tl.SelectOnly(g.Pressed)
			}
		} else {
			debug.Log("editor", "moved", "notes", len(g.Offsets))
		}
	case *Resizing:
		if !g.Tentative {
			debug.Log("editor", "resized", "notes", len(g.Original))
		}
	case *Marquee:
		e.selectIn(g.Rect())
	}
	e.endPreview()
	e.gesture = Idle{}
	e.tl.Recalculate()
	e.markDirty()
}

// selectIn adds every note overlapping r (content space) to the selection
func (e *Editor) selectIn(r geom.Rect) int {
	count := 0
	for _, n := range e.tl.Notes {
		if e.grid.NoteRect(*n).Intersects(r) {
			e.tl.Select(n)
			count++
		}
	}
	return count
}

// Cancel ends any gesture in progress, keeping what it already changed
func (e *Editor) Cancel() {
	if e.Active() {
		e.pointerUp()
	}
}

func (e *Editor) wheel(ev broker.Event) {
	switch {
	case ev.Mod.Ctrl:
		factor := 1.25
		if ev.DY > 0 {
			factor = 1 / factor
		}
		e.Zoom(factor, ev.Pos.X)
	case ev.Mod.Shift:
		e.SetScroll(e.scroll.Add(geom.Pt(ev.DY, 0)))
	default:
		e.SetScroll(e.scroll.Add(geom.Pt(ev.DX, ev.DY)))
	}
}

// Zoom scales the beat width, keeping the tick under local x in place
func (e *Editor) Zoom(factor, x float64) {
	tick := e.grid.XToTick(x + e.scroll.X)
	e.grid.BeatWidth = timeline.Clamp(e.grid.BeatWidth*factor, MinBeatWidth, MaxBeatWidth)
	e.scroll.X = e.grid.TickToX(tick) - x
	e.clampScroll()
	e.markDirty()
}
