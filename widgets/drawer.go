package widgets

import (
	"math"

	"go-pianoroll/broker"
	"go-pianoroll/debug"
	"go-pianoroll/geom"
	"go-pianoroll/timeline"
)

const (
	HandleHeight     = 8.0
	DrawerScrollbarW = 8.0
	MinDrawerHeight  = 40.0
	drawerPad        = 8.0
)

// Child is a widget the drawer can lay out
type Child interface {
	broker.Widget
	SetBounds(r geom.Rect)
}

type drawerGesture int

const (
	drawerIdle drawerGesture = iota
	drawerResizing
	drawerThumb
	drawerPanning
)

// Drawer is the settings panel under the grid. Children live in its content
// space, which scrolls vertically. The resize handle, scrollbar and background
// pan belong to the drawer itself and win over children while active. Children
// get events through the drawer's own capture token.
type Drawer struct {
	box
	children []broker.Widget
	tok      broker.Token

	scroll    float64
	MaxHeight float64

	// OnResize asks the owner for a new height; without it the drawer resizes
	// itself keeping its bottom edge
	OnResize func(h float64)

	gesture  drawerGesture
	anchor   float64 // parent-space y for resize, local y otherwise
	anchored float64
}

func NewDrawer() *Drawer {
	return &Drawer{}
}

// Add places w at r in content space
func (d *Drawer) Add(w Child, r geom.Rect) {
	w.SetBounds(r)
	d.children = append(d.children, w)
}

func (d *Drawer) Children() []broker.Widget { return d.children }
func (d *Drawer) Token() broker.Token       { return d.tok }
func (d *Drawer) Scroll() float64           { return d.scroll }

// Busy reports a container gesture in progress
func (d *Drawer) Busy() bool { return d.gesture != drawerIdle }

func (d *Drawer) SetBounds(r geom.Rect) {
	d.rect = r
	d.clampScroll()
}

func (d *Drawer) Handle() geom.Rect {
	return geom.R(0, 0, d.rect.W, math.Min(HandleHeight, d.rect.H))
}

// Viewport is where content shows, local space
func (d *Drawer) Viewport() geom.Rect {
	return geom.R(0, HandleHeight, math.Max(0, d.rect.W-DrawerScrollbarW), math.Max(0, d.rect.H-HandleHeight))
}

func (d *Drawer) Track() geom.Rect {
	v := d.Viewport()
	return geom.R(v.W, v.Y, DrawerScrollbarW, v.H)
}

func (d *Drawer) ContentHeight() float64 {
	h := 0.0
	for _, c := range d.children {
		b := c.Bounds()
		h = math.Max(h, b.Y+b.H)
	}
	return h + drawerPad
}

func (d *Drawer) maxScroll() float64 {
	return math.Max(0, d.ContentHeight()-d.Viewport().H)
}

func (d *Drawer) clampScroll() {
	d.scroll = timeline.Clamp(d.scroll, 0, d.maxScroll())
}

func (d *Drawer) SetScroll(y float64) {
	d.scroll = y
	d.clampScroll()
}

func (d *Drawer) Thumb() geom.Rect {
	t := d.Track()
	ch := d.ContentHeight()
	h := t.H
	if ch > t.H && ch > 0 {
		h = math.Max(RowHeight/2, t.H*t.H/ch)
	}
	pos := 0.0
	if m := d.maxScroll(); m > 0 {
		pos = (t.H - h) * d.scroll / m
	}
	return geom.R(t.X, t.Y+pos, t.W, h)
}

// ToContent converts a local point to the children's space
func (d *Drawer) ToContent(p geom.Point) geom.Point {
	return geom.Pt(p.X, p.Y-HandleHeight+d.scroll)
}

// ChildRect is a child's rectangle in the drawer's local space
func (d *Drawer) ChildRect(w broker.Widget) geom.Rect {
	return w.Bounds().Translate(geom.Pt(0, HandleHeight-d.scroll))
}

// NeedsOverlay is true while any child has an overlay open, so the drawer paints last
func (d *Drawer) NeedsOverlay() bool {
	for _, c := range d.children {
		if o, ok := c.(broker.Overlayer); ok && o.NeedsOverlay() {
			return true
		}
	}
	return false
}

func (d *Drawer) HitTest(p geom.Point) bool {
	if d.rect.Contains(p) {
		return true
	}
	cp := d.ToContent(d.rect.Local(p))
	for _, c := range d.children {
		if o, ok := c.(broker.Overlayer); ok && o.NeedsOverlay() && c.HitTest(cp) {
			return true
		}
	}
	return false
}

// ownership tells the parent broker whether the drawer still needs the pointer
func (d *Drawer) ownership() broker.Action {
	if d.tok.Captured() || d.gesture != drawerIdle {
		return broker.Capture
	}
	return broker.Release
}

func (d *Drawer) HandleEvent(ev broker.Event) broker.Action {
	if d.gesture != drawerIdle {
		return d.continueGesture(ev)
	}

	if !d.tok.Captured() {
		switch ev.Kind {
		case broker.PointerDown:
			switch {
			case d.Handle().Contains(ev.Pos):
				d.gesture = drawerResizing
				d.anchor, d.anchored = ev.Pos.Y+d.rect.Y, d.rect.H
				return broker.Capture
			case d.Track().Contains(ev.Pos):
				d.beginThumb(ev.Pos.Y)
				return broker.Capture
			}
		case broker.Wheel:
			d.SetScroll(d.scroll + ev.DY)
			return broker.None
		case broker.OutsideClick:
			return broker.Release
		}
	}

	tok, handled := broker.Dispatch(d.tok, ev.At(d.ToContent(ev.Pos)), d.children)
	d.tok = tok
	if handled {
		return d.ownership()
	}

	if ev.Kind == broker.PointerDown && d.Viewport().Contains(ev.Pos) {
		d.gesture = drawerPanning
		d.anchor, d.anchored = ev.Pos.Y, d.scroll
		return broker.Capture
	}
	return broker.None
}

func (d *Drawer) beginThumb(y float64) {
	th := d.Thumb()
	if y < th.Y || y >= th.Y+th.H {
		// jump so the thumb centres on the pointer
		t := d.Track()
		if free := t.H - th.H; free > 0 {
			d.SetScroll((y - t.Y - th.H/2) / free * d.maxScroll())
		}
	}
	d.gesture = drawerThumb
	d.anchor, d.anchored = y, d.scroll
}

func (d *Drawer) continueGesture(ev broker.Event) broker.Action {
	switch ev.Kind {
	case broker.PointerMove:
		switch d.gesture {
		case drawerResizing:
			d.resize(d.anchored - (ev.Pos.Y + d.rect.Y - d.anchor))
		case drawerThumb:
			t, th := d.Track(), d.Thumb()
			if free := t.H - th.H; free > 0 {
				d.SetScroll(d.anchored + (ev.Pos.Y-d.anchor)/free*d.maxScroll())
			}
		case drawerPanning:
			d.SetScroll(d.anchored - (ev.Pos.Y - d.anchor))
		}
		return broker.Persist
	case broker.PointerUp, broker.OutsideClick:
		if d.gesture == drawerResizing {
			debug.Log("drawer", "resized", "height", d.rect.H)
		}
		d.gesture = drawerIdle
		return broker.Release
	}
	return broker.Persist
}

func (d *Drawer) resize(h float64) {
	h = math.Max(h, MinDrawerHeight)
	if d.MaxHeight > 0 {
		h = math.Min(h, d.MaxHeight)
	}
	if d.OnResize != nil {
		d.OnResize(h)
		return
	}
	bottom := d.rect.Y + d.rect.H
	d.SetBounds(geom.R(d.rect.X, bottom-h, d.rect.W, h))
}
