// Package broker decides which widget receives each pointer event. At most one
// widget owns the pointer at a time; ownership travels as an explicit Token.
package broker

import (
	"fmt"
	"slices"

	"go-pianoroll/debug"
	"go-pianoroll/geom"
)

// Action is what a widget asks the broker to do after handling an event
type Action int

const (
	None    Action = iota
	Capture        // send me everything until I release
	Release        // give up ownership
	Persist        // still open and owned, did something internal
)

func (a Action) String() string {
	switch a {
	case Capture:
		return "capture"
	case Release:
		return "release"
	case Persist:
		return "persist"
	}
	return "none"
}

type Kind int

const (
	PointerDown Kind = iota
	PointerMove
	PointerUp
	Wheel
	OutsideClick // synthesized for the owner when the pointer goes down elsewhere
)

func (k Kind) String() string {
	return [...]string{"down", "move", "up", "wheel", "outside"}[k]
}

type Modifiers struct {
	Shift, Ctrl, Alt bool
}

// Toggle is the multi-select modifier
func (m Modifiers) Toggle() bool {
	return m.Shift || m.Ctrl
}

// Event is a pointer event. Pos is in the receiving widget's local space.
type Event struct {
	Kind   Kind
	Pos    geom.Point
	DX, DY float64 // wheel deltas
	Mod    Modifiers
}

// At returns a copy of ev moved to p
func (ev Event) At(p geom.Point) Event {
	ev.Pos = p
	return ev
}

// Widget is anything that can take part in dispatch
type Widget interface {
	// Bounds is the layout rectangle in the parent's space
	Bounds() geom.Rect
	// HitTest reports whether p (parent space) belongs to the widget, including any open overlay
	HitTest(p geom.Point) bool
	// HandleEvent receives events in local space, origin at Bounds().Min()
	HandleEvent(ev Event) Action
}

// Overlayer is implemented by widgets that can draw above their siblings
type Overlayer interface {
	NeedsOverlay() bool
}

func needsOverlay(w Widget) bool {
	o, ok := w.(Overlayer)
	return ok && o.NeedsOverlay()
}

// Token records the current pointer owner. The zero Token owns nothing.
type Token struct {
	owner Widget
}

func CapturedBy(w Widget) Token {
	return Token{owner: w}
}

func (t Token) Owner() Widget {
	return t.owner
}

func (t Token) Captured() bool {
	return t.owner != nil
}

// Resolve applies the action w returned. A release from anyone but the owner is ignored.
func Resolve(tok Token, w Widget, a Action) Token {
	switch a {
	case Capture:
		if tok.owner != w {
			debug.Log("broker", "capture", "widget", fmt.Sprintf("%T", w))
		}
		return Token{owner: w}
	case Release:
		if tok.owner != nil && tok.owner == w {
			debug.Log("broker", "release", "widget", fmt.Sprintf("%T", w))
			return Token{}
		}
	}
	return tok
}

// Local translates a parent-space point into w's space
func Local(w Widget, p geom.Point) geom.Point {
	return w.Bounds().Local(p)
}

// Dispatch routes ev (parent space) and returns the new token and whether a widget consumed it.
//
//  1. the owner gets an OutsideClick for a press outside its region, and the press goes no further
//  2. otherwise the owner gets the event
//  3. otherwise the topmost widget under the pointer gets it
//  4. otherwise nothing handles it and the caller falls back to its own handling
func Dispatch(tok Token, ev Event, widgets []Widget) (Token, bool) {
	if owner := tok.owner; owner != nil {
		local := ev.At(Local(owner, ev.Pos))
		if ev.Kind == PointerDown && !owner.HitTest(ev.Pos) {
			local.Kind = OutsideClick
		}
		return Resolve(tok, owner, owner.HandleEvent(local)), true
	}

	if ev.Kind == PointerMove || ev.Kind == PointerUp {
		// nobody owns the pointer: hover and stray releases go to the caller
		return tok, false
	}

	if w := HitTest(ev.Pos, widgets); w != nil {
		return Resolve(tok, w, w.HandleEvent(ev.At(Local(w, ev.Pos)))), true
	}
	return tok, false
}

// HitTest returns the topmost widget containing p
func HitTest(p geom.Point, widgets []Widget) Widget {
	order := PaintOrder(widgets)
	for i := len(order) - 1; i >= 0; i-- {
		if order[i].HitTest(p) {
			return order[i]
		}
	}
	return nil
}

// PaintOrder keeps layout order but moves widgets with an open overlay to the end
func PaintOrder(widgets []Widget) []Widget {
	out := slices.Clone(widgets)
	slices.SortStableFunc(out, func(a, b Widget) int {
		ao, bo := needsOverlay(a), needsOverlay(b)
		switch {
		case ao == bo:
			return 0
		case ao:
			return 1
		}
		return -1
	})
	return out
}

// RectHit is the plain bounds test most leaf widgets use
func RectHit(w Widget, p geom.Point) bool {
	return w.Bounds().Contains(p)
}
