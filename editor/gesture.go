package editor

import (
	"go-pianoroll/geom"
	"go-pianoroll/timeline"
)

// Gesture is the scratch state of the pointer interaction in progress.
// Exactly one variant is active, Idle when the pointer is up.
type Gesture interface {
	gesture()
}

type Idle struct{}

// Dragging moves the selected notes
type Dragging struct {
	Pressed *timeline.Note
	Offsets map[*timeline.Note]geom.Point // note origin minus pointer, content space
	Before  []timeline.Note               // pushed to history on the first real move
	Moved   bool

	// resolved on release when nothing moved
	PotentialDeselect bool // pressed note was the sole selection: clear it
	Collapse          bool // pressed note was part of a group: select only it
}

// Resizing stretches every selected note by the pointer's travel from AnchorTick
type Resizing struct {
	AnchorTick int64
	Original   map[*timeline.Note]int64
	Before     []timeline.Note // nil once pushed

	// Tentative is set right after an add; moving past the drag threshold
	// turns it into a resize anchored at the new note's start
	Tentative bool
	Note      *timeline.Note
	Press     geom.Point
	Snap      bool // round the end up to the grid instead of to nearest
}

// Marquee is a rubber-band selection, corners in content space
type Marquee struct {
	Start, End geom.Point
	Additive   bool
}

func (m Marquee) Rect() geom.Rect {
	return geom.FromCorners(m.Start, m.End)
}

// Panning drags the view
type Panning struct {
	Anchor geom.Point // local
	Scroll geom.Point
}

type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

// ScrollDrag drags a scrollbar thumb
type ScrollDrag struct {
	Axis   Axis
	Anchor float64 // pointer position along the track
	Scroll float64
}

// Scrubbing drags the playhead along the ruler
type Scrubbing struct{}

func (Idle) gesture()        {}
func (*Dragging) gesture()   {}
func (*Resizing) gesture()   {}
func (*Marquee) gesture()    {}
func (*Panning) gesture()    {}
func (*ScrollDrag) gesture() {}
func (Scrubbing) gesture()   {}
