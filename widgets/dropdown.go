package widgets

import (
	"math"

	"go-pianoroll/broker"
	"go-pianoroll/geom"
	"go-pianoroll/timeline"
)

const (
	RowHeight      = 16.0
	ListScrollbarW = 8.0
	DefaultRows    = 8
)

// Dropdown shows its choice and opens a scrollable list overlay
type Dropdown struct {
	box
	Label    string
	Options  []string
	Selected int
	OnSelect func(i int)

	// Rows is how many options the open list shows; Up opens it above the header
	Rows int
	Up   bool

	open     bool
	first    float64 // scroll offset in rows
	hover    int
	thumbing bool
	anchor   float64
	anchored float64
}

func NewDropdown(label string, options []string, selected int, onSelect func(int)) *Dropdown {
	return &Dropdown{
		Label:    label,
		Options:  options,
		Selected: timeline.Clamp(selected, 0, max(0, len(options)-1)),
		OnSelect: onSelect,
		Rows:     DefaultRows,
		hover:    -1,
	}
}

func (d *Dropdown) Open() bool         { return d.open }
func (d *Dropdown) NeedsOverlay() bool { return d.open }
func (d *Dropdown) Hover() int         { return d.hover }

// Current is the text of the selected option
func (d *Dropdown) Current() string {
	if d.Selected < 0 || d.Selected >= len(d.Options) {
		return ""
	}
	return d.Options[d.Selected]
}

func (d *Dropdown) visibleRows() int {
	return max(1, min(d.Rows, len(d.Options)))
}

// List is the overlay rectangle in local space
func (d *Dropdown) List() geom.Rect {
	h := float64(d.visibleRows()) * RowHeight
	if d.Up {
		return geom.R(0, -h, d.rect.W, h)
	}
	return geom.R(0, d.rect.H, d.rect.W, h)
}

func (d *Dropdown) maxFirst() float64 {
	return float64(max(0, len(d.Options)-d.visibleRows()))
}

// First is the index of the topmost visible option
func (d *Dropdown) First() int {
	return int(d.first)
}

func (d *Dropdown) scrollTo(first float64) {
	d.first = timeline.Clamp(first, 0, d.maxFirst())
}

// Track and Thumb are the list scrollbar in local space
func (d *Dropdown) Track() geom.Rect {
	l := d.List()
	return geom.R(l.X+l.W-ListScrollbarW, l.Y, ListScrollbarW, l.H)
}

func (d *Dropdown) Thumb() geom.Rect {
	t := d.Track()
	n := float64(len(d.Options))
	if n == 0 {
		return t
	}
	h := math.Max(RowHeight/2, t.H*float64(d.visibleRows())/n)
	pos := 0.0
	if m := d.maxFirst(); m > 0 {
		pos = (t.H - h) * d.first / m
	}
	return geom.R(t.X, t.Y+pos, t.W, h)
}

func (d *Dropdown) rowAt(p geom.Point) int {
	l := d.List()
	if !l.Contains(p) {
		return -1
	}
	i := d.First() + int((p.Y-l.Y)/RowHeight)
	if i >= len(d.Options) {
		return -1
	}
	return i
}

func (d *Dropdown) HitTest(p geom.Point) bool {
	if d.rect.Contains(p) {
		return true
	}
	return d.open && d.List().Contains(d.rect.Local(p))
}

func (d *Dropdown) openList() {
	d.open = true
	d.hover = -1
	// bring the current choice into view
	d.scrollTo(float64(d.Selected - d.visibleRows()/2))
}

func (d *Dropdown) close() broker.Action {
	d.open = false
	d.thumbing = false
	d.hover = -1
	return broker.Release
}

func (d *Dropdown) choose(i int) broker.Action {
	d.Selected = i
	if d.OnSelect != nil {
		d.OnSelect(i)
	}
	return d.close()
}

func (d *Dropdown) HandleEvent(ev broker.Event) broker.Action {
	if ev.Kind == broker.OutsideClick {
		return d.close()
	}
	if !d.open {
		if ev.Kind == broker.PointerDown && len(d.Options) > 0 {
			d.openList()
			return broker.Capture
		}
		return broker.None
	}

	switch ev.Kind {
	case broker.PointerDown:
		switch {
		case d.area().Contains(ev.Pos):
			return d.close()
		case d.Thumb().Contains(ev.Pos):
			d.thumbing = true
			d.anchor, d.anchored = ev.Pos.Y, d.first
			return broker.Persist
		case d.Track().Contains(ev.Pos):
			// page towards the pointer
			if ev.Pos.Y < d.Thumb().Y {
				d.scrollTo(d.first - float64(d.visibleRows()))
			} else {
				d.scrollTo(d.first + float64(d.visibleRows()))
			}
			return broker.Persist
		}
		if i := d.rowAt(ev.Pos); i >= 0 {
			return d.choose(i)
		}
		return broker.Persist

	case broker.PointerMove:
		if d.thumbing {
			t, th := d.Track(), d.Thumb()
			if free := t.H - th.H; free > 0 {
				d.scrollTo(d.anchored + (ev.Pos.Y-d.anchor)/free*d.maxFirst())
			}
			return broker.Persist
		}
		d.hover = d.rowAt(ev.Pos)
		return broker.Persist

	case broker.PointerUp:
		d.thumbing = false
		return broker.Persist

	case broker.Wheel:
		d.scrollTo(d.first + ev.DY/RowHeight)
		return broker.Persist
	}
	return broker.None
}
