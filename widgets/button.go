// Package widgets holds the controls that take part in pointer dispatch: plain
// leaves (Button, Toggle, Slider), composites with overlays (Dropdown,
// PopupSlider), the Keyboard strip and the Drawer container.
package widgets

import (
	"go-pianoroll/broker"
	"go-pianoroll/geom"
)

// box carries a widget's layout rectangle
type box struct {
	rect geom.Rect
}

func (b *box) Bounds() geom.Rect     { return b.rect }
func (b *box) SetBounds(r geom.Rect) { b.rect = r }

func (b *box) HitTest(p geom.Point) bool { return b.rect.Contains(p) }

// local bounds, origin at zero
func (b *box) area() geom.Rect {
	return geom.R(0, 0, b.rect.W, b.rect.H)
}

// Button fires on release inside its bounds
type Button struct {
	box
	Label   string
	OnClick func()

	pressed bool
}

func NewButton(label string, onClick func()) *Button {
	return &Button{Label: label, OnClick: onClick}
}

func (b *Button) Pressed() bool { return b.pressed }

func (b *Button) HandleEvent(ev broker.Event) broker.Action {
	switch ev.Kind {
	case broker.PointerDown:
		b.pressed = true
		return broker.Capture
	case broker.PointerUp:
		inside := b.pressed && b.area().Contains(ev.Pos)
		b.pressed = false
		if inside && b.OnClick != nil {
			b.OnClick()
		}
		return broker.Release
	case broker.OutsideClick:
		b.pressed = false
		return broker.Release
	}
	return broker.None
}

// Toggle flips on press
type Toggle struct {
	box
	Label    string
	On       bool
	OnChange func(on bool)
}

func NewToggle(label string, on bool, onChange func(bool)) *Toggle {
	return &Toggle{Label: label, On: on, OnChange: onChange}
}

func (t *Toggle) HandleEvent(ev broker.Event) broker.Action {
	if ev.Kind != broker.PointerDown {
		return broker.None
	}
	t.On = !t.On
	if t.OnChange != nil {
		t.OnChange(t.On)
	}
	return broker.None
}
