package widgets

import (
	"fmt"
	"math"

	"go-pianoroll/broker"
	"go-pianoroll/geom"
	"go-pianoroll/timeline"
)

// Slider picks an integer by horizontal position
type Slider struct {
	box
	Label    string
	Min, Max int
	Value    int
	OnChange func(v int)

	dragging bool
}

func NewSlider(label string, lo, hi, value int, onChange func(int)) *Slider {
	return &Slider{Label: label, Min: lo, Max: hi, Value: timeline.Clamp(value, lo, hi), OnChange: onChange}
}

func (s *Slider) Dragging() bool { return s.dragging }

// Fraction is the value's position along the track, 0..1
func (s *Slider) Fraction() float64 {
	if s.Max <= s.Min {
		return 0
	}
	return float64(s.Value-s.Min) / float64(s.Max-s.Min)
}

func (s *Slider) SetValue(v int) {
	v = timeline.Clamp(v, s.Min, s.Max)
	if v == s.Value {
		return
	}
	s.Value = v
	if s.OnChange != nil {
		s.OnChange(v)
	}
}

func (s *Slider) valueAt(x float64) int {
	if s.rect.W <= 0 {
		return s.Value
	}
	f := timeline.Clamp(x/s.rect.W, 0, 1)
	return s.Min + int(math.Round(f*float64(s.Max-s.Min)))
}

func (s *Slider) HandleEvent(ev broker.Event) broker.Action {
	switch ev.Kind {
	case broker.PointerDown:
		s.dragging = true
		s.SetValue(s.valueAt(ev.Pos.X))
		return broker.Capture
	case broker.PointerMove:
		if s.dragging {
			s.SetValue(s.valueAt(ev.Pos.X))
			return broker.Persist
		}
	case broker.PointerUp, broker.OutsideClick:
		s.dragging = false
		return broker.Release
	case broker.Wheel:
		step := 1
		if ev.DY > 0 {
			step = -1
		}
		s.SetValue(s.Value + step)
	}
	return broker.None
}

func (s *Slider) Text() string {
	return fmt.Sprintf("%s %d", s.Label, s.Value)
}

// PopupSlider is a compact button that opens a Slider in an overlay below it
type PopupSlider struct {
	box
	Slider *Slider

	// PopupHeight is the overlay's height; it opens upward when Up is set
	PopupHeight float64
	Up          bool

	open bool
}

func NewPopupSlider(s *Slider) *PopupSlider {
	return &PopupSlider{Slider: s, PopupHeight: 24}
}

func (p *PopupSlider) Open() bool         { return p.open }
func (p *PopupSlider) NeedsOverlay() bool { return p.open }

// Popup is the overlay rectangle in local space
func (p *PopupSlider) Popup() geom.Rect {
	if p.Up {
		return geom.R(0, -p.PopupHeight, p.rect.W, p.PopupHeight)
	}
	return geom.R(0, p.rect.H, p.rect.W, p.PopupHeight)
}

func (p *PopupSlider) SetBounds(r geom.Rect) {
	p.rect = r
	p.layout()
}

func (p *PopupSlider) layout() {
	pop := p.Popup()
	p.Slider.SetBounds(geom.R(pop.X+4, pop.Y+4, math.Max(0, pop.W-8), math.Max(0, pop.H-8)))
}

func (p *PopupSlider) HitTest(pt geom.Point) bool {
	if p.rect.Contains(pt) {
		return true
	}
	return p.open && p.Popup().Contains(p.rect.Local(pt))
}

func (p *PopupSlider) close() broker.Action {
	p.open = false
	p.Slider.dragging = false
	return broker.Release
}

func (p *PopupSlider) HandleEvent(ev broker.Event) broker.Action {
	if ev.Kind == broker.OutsideClick {
		return p.close()
	}
	if !p.open {
		if ev.Kind == broker.PointerDown {
			p.open = true
			p.layout()
			return broker.Capture
		}
		if ev.Kind == broker.Wheel {
			return p.Slider.HandleEvent(ev)
		}
		return broker.None
	}

	if ev.Kind == broker.PointerDown && p.area().Contains(ev.Pos) {
		return p.close()
	}

	// everything else goes to the slider; the popup keeps ownership
	if ev.Kind == broker.PointerDown || p.Slider.dragging || ev.Kind == broker.Wheel {
		p.Slider.HandleEvent(ev.At(broker.Local(p.Slider, ev.Pos)))
	}
	return broker.Persist
}
