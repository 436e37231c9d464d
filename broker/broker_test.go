package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pianoroll/geom"
)

// fakeWidget opens on press and closes on an outside click, like a dropdown
type fakeWidget struct {
	bounds  geom.Rect
	overlay geom.Rect // local space, only while open
	open    bool
	got     []Event
}

func (f *fakeWidget) Bounds() geom.Rect { return f.bounds }

func (f *fakeWidget) HitTest(p geom.Point) bool {
	if f.bounds.Contains(p) {
		return true
	}
	return f.open && f.overlay.Contains(Local(f, p))
}

func (f *fakeWidget) NeedsOverlay() bool { return f.open }

func (f *fakeWidget) HandleEvent(ev Event) Action {
	f.got = append(f.got, ev)
	switch ev.Kind {
	case PointerDown:
		if f.open {
			f.open = false
			return Release
		}
		f.open = true
		return Capture
	case OutsideClick:
		f.open = false
		return Release
	case PointerMove:
		if f.open {
			return Persist
		}
	}
	return None
}

func (f *fakeWidget) kinds() []Kind {
	var out []Kind
	for _, ev := range f.got {
		out = append(out, ev.Kind)
	}
	return out
}

func TestCaptureThenOutsideClick(t *testing.T) {
	dd := &fakeWidget{bounds: geom.R(0, 0, 100, 20), overlay: geom.R(0, 20, 100, 100)}
	other := &fakeWidget{bounds: geom.R(0, 200, 100, 20)}
	widgets := []Widget{dd, other}

	tok, handled := Dispatch(Token{}, Event{Kind: PointerDown, Pos: geom.Pt(10, 10)}, widgets)
	require.True(t, handled)
	require.True(t, tok.Captured())
	assert.Same(t, dd, tok.Owner())

	tok, handled = Dispatch(tok, Event{Kind: PointerDown, Pos: geom.Pt(10, 210)}, widgets)
	assert.True(t, handled)
	assert.False(t, tok.Captured())
	assert.Equal(t, []Kind{PointerDown, OutsideClick}, dd.kinds())
	assert.Empty(t, other.got, "outside click is consumed, not forwarded")
}

func TestOwnerGetsEventsInLocalSpace(t *testing.T) {
	dd := &fakeWidget{bounds: geom.R(50, 50, 100, 20), overlay: geom.R(0, 20, 100, 100)}
	tok, _ := Dispatch(Token{}, Event{Kind: PointerDown, Pos: geom.Pt(60, 55)}, []Widget{dd})
	assert.Equal(t, geom.Pt(10, 5), dd.got[0].Pos)

	// inside the overlay: not an outside click
	tok, handled := Dispatch(tok, Event{Kind: PointerMove, Pos: geom.Pt(70, 100)}, []Widget{dd})
	assert.True(t, handled)
	assert.True(t, tok.Captured())
	assert.Equal(t, geom.Pt(20, 50), dd.got[1].Pos)

	// moves far outside still belong to the owner
	tok, _ = Dispatch(tok, Event{Kind: PointerMove, Pos: geom.Pt(900, 900)}, []Widget{dd})
	assert.True(t, tok.Captured())
	assert.Equal(t, PointerMove, dd.got[2].Kind)
}

func TestUncapturedFallsThrough(t *testing.T) {
	w := &fakeWidget{bounds: geom.R(0, 0, 10, 10)}
	tok, handled := Dispatch(Token{}, Event{Kind: PointerDown, Pos: geom.Pt(50, 50)}, []Widget{w})
	assert.False(t, handled)
	assert.False(t, tok.Captured())

	_, handled = Dispatch(Token{}, Event{Kind: PointerMove, Pos: geom.Pt(5, 5)}, []Widget{w})
	assert.False(t, handled, "hover is not routed without a capture")
	assert.Empty(t, w.got)
}

func TestReleaseFromNonOwnerIsIgnored(t *testing.T) {
	a := &fakeWidget{}
	b := &fakeWidget{}
	tok := CapturedBy(a)

	assert.Same(t, a, Resolve(tok, b, Release).Owner())
	assert.Same(t, a, Resolve(tok, a, Persist).Owner())
	assert.Same(t, a, Resolve(tok, a, None).Owner())
	assert.False(t, Resolve(tok, a, Release).Captured())
	assert.False(t, Resolve(Token{}, a, Release).Captured())
}

func TestOverlayPaintsLastAndHitsFirst(t *testing.T) {
	dd := &fakeWidget{bounds: geom.R(0, 0, 100, 20), overlay: geom.R(0, 20, 100, 100)}
	below := &fakeWidget{bounds: geom.R(0, 30, 100, 20)}
	widgets := []Widget{dd, below}

	assert.Equal(t, []Widget{dd, below}, PaintOrder(widgets))
	assert.Same(t, below, HitTest(geom.Pt(5, 35), widgets))

	dd.open = true
	assert.Equal(t, []Widget{below, dd}, PaintOrder(widgets))
	assert.Same(t, dd, HitTest(geom.Pt(5, 35), widgets))
}
