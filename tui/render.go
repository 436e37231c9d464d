package tui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-pianoroll/broker"
	"go-pianoroll/geom"
	"go-pianoroll/midi"
	"go-pianoroll/sequencer"
	"go-pianoroll/theme"
	"go-pianoroll/widgets"
)

type cell struct {
	r      rune
	fg, bg lipgloss.Color
}

// screen is a grid of styled cells; rectangles are given in logical pixels
type screen struct {
	w, h  int
	cells []cell
}

func newScreen(w, h int, bg lipgloss.Color) *screen {
	s := &screen{w: max(0, w), h: max(0, h)}
	s.cells = make([]cell, s.w*s.h)
	for i := range s.cells {
		s.cells[i] = cell{r: ' ', bg: bg}
	}
	return s
}

func (s *screen) at(x, y int) *cell {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return nil
	}
	return &s.cells[y*s.w+x]
}

func (s *screen) set(x, y int, r rune, fg, bg lipgloss.Color) {
	if c := s.at(x, y); c != nil {
		*c = cell{r: r, fg: fg, bg: bg}
	}
}

// mark changes the glyph and foreground, keeping the background
func (s *screen) mark(x, y int, r rune, fg lipgloss.Color) {
	if c := s.at(x, y); c != nil {
		c.r, c.fg = r, fg
	}
}

func (s *screen) text(x, y int, str string, fg, bg lipgloss.Color) {
	for i, r := range []rune(str) {
		s.set(x+i, y, r, fg, bg)
	}
}

// span is the cell range a pixel rectangle covers
func span(r geom.Rect) (x0, y0, x1, y1 int) {
	x0 = int(math.Floor(r.X / cellW))
	y0 = int(math.Floor(r.Y / cellH))
	x1 = int(math.Ceil((r.X + r.W) / cellW))
	y1 = int(math.Ceil((r.Y + r.H) / cellH))
	return
}

func (s *screen) fill(r geom.Rect, ch rune, fg, bg lipgloss.Color) {
	if r.Empty() {
		return
	}
	x0, y0, x1, y1 := span(r)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			s.set(x, y, ch, fg, bg)
		}
	}
}

// centre is the pixel centre of a cell
func centre(x, y int) geom.Point {
	return geom.Pt((float64(x)+0.5)*cellW, (float64(y)+0.5)*cellH)
}

// String renders rows, merging runs of equal style
func (s *screen) String() string {
	var b strings.Builder
	var run strings.Builder
	for y := 0; y < s.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		row := s.cells[y*s.w : (y+1)*s.w]
		for i := 0; i < len(row); {
			j := i
			run.Reset()
			for j < len(row) && row[j].fg == row[i].fg && row[j].bg == row[i].bg {
				run.WriteRune(row[j].r)
				j++
			}
			style := lipgloss.NewStyle().Background(row[i].bg)
			if row[i].fg != "" {
				style = style.Foreground(row[i].fg)
			}
			b.WriteString(style.Render(run.String()))
			i = j
		}
	}
	return b.String()
}

// paint draws the whole surface: canvas first, then the widgets in paint order
func paint(mgr *sequencer.Manager, th *theme.Theme, cols, rows int) *screen {
	s := newScreen(cols, rows, th.BG())
	paintEditor(s, mgr, th)
	for _, w := range mgr.PaintOrder() {
		switch w := w.(type) {
		case *widgets.Keyboard:
			paintKeyboard(s, w, th)
		case *widgets.Drawer:
			paintDrawer(s, w, th)
		}
	}
	return s
}

func paintKeyboard(s *screen, kb *widgets.Keyboard, th *theme.Theme) {
	r := kb.Bounds()
	x0, y0, x1, y1 := span(r)
	for y := y0; y < y1; y++ {
		p := r.Local(centre(x0, y))
		pitch := kb.PitchAt(p.Y)
		if pitch < 0 {
			s.fill(geom.R(r.X, float64(y)*cellH, r.W, cellH), ' ', th.FG(), th.Surface())
			continue
		}
		key := uint8(pitch)
		fg, bg, glyph := th.BG(), th.FG(), th.Symbols.WhiteKey
		if midi.IsBlack(key) {
			fg, bg, glyph = th.FG(), th.BG(), th.Symbols.BlackKey
		}
		if kb.Lit(key) {
			bg = th.Accent()
		}
		label := ""
		if key%12 == 0 {
			label = midi.NoteName(key)
		}
		for x := x0; x < x1; x++ {
			s.set(x, y, ' ', fg, bg)
		}
		s.text(x0, y, label, fg, bg)
		s.set(x1-1, y, glyph, fg, bg)
	}
}

func paintEditor(s *screen, mgr *sequencer.Manager, th *theme.Theme) {
	ed := mgr.Editor()
	origin := mgr.EditorRect().Min()
	tl := mgr.Timeline()
	grid := ed.Grid()
	bar := float64(4 * tl.PPQN)
	beat := float64(tl.PPQN)

	// crosses reports whether a multiple of step starts inside the cell's tick range
	crosses := func(t0, t1, step float64) (float64, bool) {
		k := math.Ceil(t0/step) * step
		return k, step > 0 && k < t1
	}

	// grid rows and bar/beat lines
	g := ed.GridRect().Translate(origin)
	x0, y0, x1, y1 := span(g)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			local := centre(x, y).Sub(origin)
			c := ed.ToContent(local)
			bg := th.BG()
			if pitch := grid.YToPitch(c.Y); pitch >= 0 && pitch < 128 && midi.IsBlack(uint8(pitch)) {
				bg = th.Surface()
			}
			t0 := grid.XToTick(c.X - cellW/2)
			t1 := grid.XToTick(c.X + cellW/2)
			r := ' '
			if _, ok := crosses(t0, t1, bar); ok {
				r = th.Symbols.BarLine
			} else if _, ok := crosses(t0, t1, beat); ok {
				r = th.Symbols.BeatLine
			}
			s.set(x, y, r, th.Grid(), bg)
		}
	}

	// notes, clipped to the grid
	for _, n := range tl.Notes {
		nr := ed.NoteRect(n).Translate(origin)
		if !nr.Intersects(g) {
			continue
		}
		fg := th.Velocity(n.Velocity)
		if tl.IsSelected(n) {
			fg = th.Selected()
		}
		nx0, ny0, nx1, ny1 := span(nr)
		for y := max(ny0, y0); y < min(ny1, y1); y++ {
			for x := max(nx0, x0); x < min(nx1, x1); x++ {
				r := th.Symbols.NoteBody
				if x == nx0 {
					r = th.Symbols.NoteHead
				}
				s.mark(x, y, r, fg)
			}
		}
	}

	if m, ok := ed.MarqueeRect(); ok {
		mr := m.Translate(origin)
		mx0, my0, mx1, my1 := span(mr)
		for y := max(my0, y0); y < min(my1, y1); y++ {
			for x := max(mx0, x0); x < min(mx1, x1); x++ {
				if y == my0 || y == my1-1 || x == mx0 || x == mx1-1 {
					s.mark(x, y, '░', th.Accent())
				}
			}
		}
	}

	// ruler with bar numbers
	ruler := ed.RulerRect().Translate(origin)
	s.fill(ruler, ' ', th.Muted(), th.Surface())
	rx0, ry0, rx1, _ := span(ruler)
	for x := rx0; x < rx1; x++ {
		c := ed.ToContent(centre(x, ry0).Sub(origin))
		t0 := grid.XToTick(c.X - cellW/2)
		t1 := grid.XToTick(c.X + cellW/2)
		if k, ok := crosses(t0, t1, bar); ok {
			s.text(x, ry0, strconv.Itoa(int(k/bar)+1), th.FG(), th.Surface())
		} else if _, ok := crosses(t0, t1, beat); ok {
			if c := s.at(x, ry0); c != nil && c.r == ' ' {
				s.mark(x, ry0, th.Symbols.RulerTick, th.Muted())
			}
		}
	}

	// playhead over grid and ruler
	px := ed.TickX(mgr.Scheduler().Playhead()) + origin.X
	if px >= g.X && px < g.X+g.W {
		col := int(math.Floor(px / cellW))
		for y := ry0; y < y1; y++ {
			s.mark(col, y, th.Symbols.Playhead, th.Playhead())
		}
	}

	// scrollbars
	s.fill(ed.VScrollRect().Translate(origin), th.Symbols.Track, th.Grid(), th.BG())
	s.fill(ed.VThumb().Translate(origin), th.Symbols.Thumb, th.Muted(), th.BG())
	s.fill(ed.HScrollRect().Translate(origin), th.Symbols.Track, th.Grid(), th.BG())
	s.fill(ed.HThumb().Translate(origin), th.Symbols.HThumb, th.Muted(), th.BG())
}

func paintDrawer(s *screen, d *widgets.Drawer, th *theme.Theme) {
	b := d.Bounds()
	s.fill(b, ' ', th.FG(), th.Surface())
	s.fill(d.Handle().Translate(b.Min()), th.Symbols.Handle, th.Muted(), th.Surface())

	vp := d.Viewport().Translate(b.Min())
	_, vy0, _, vy1 := span(vp)
	var overlays []broker.Widget
	for _, c := range d.Children() {
		r := d.ChildRect(c).Translate(b.Min())
		cx0, cy0, cx1, _ := span(r)
		if cy0 >= vy0 && cy0 < vy1 {
			fg, bg := th.FG(), th.Surface()
			switch w := c.(type) {
			case *widgets.Button:
				if w.Pressed() {
					bg = th.Accent()
				}
			case *widgets.Toggle:
				if w.On {
					fg = th.Accent()
				}
			}
			s.text(cx0, cy0, widgets.Caption(c, cx1-cx0), fg, bg)
		}
		if o, ok := c.(broker.Overlayer); ok && o.NeedsOverlay() {
			overlays = append(overlays, c)
		}
	}

	if d.ContentHeight() > d.Viewport().H {
		s.fill(d.Track().Translate(b.Min()), th.Symbols.Track, th.Grid(), th.Surface())
		s.fill(d.Thumb().Translate(b.Min()), th.Symbols.Thumb, th.Muted(), th.Surface())
	}

	// overlays are not clipped to the drawer
	for _, c := range overlays {
		origin := d.ChildRect(c).Translate(b.Min()).Min()
		switch w := c.(type) {
		case *widgets.Dropdown:
			paintList(s, w, origin, th)
		case *widgets.PopupSlider:
			pop := w.Popup().Translate(origin)
			s.fill(pop, ' ', th.FG(), th.BG())
			sr := w.Slider.Bounds().Translate(origin)
			sx0, sy0, sx1, _ := span(sr)
			s.text(sx0, sy0, widgets.Caption(w.Slider, sx1-sx0), th.Accent(), th.BG())
		}
	}
}

func paintList(s *screen, d *widgets.Dropdown, origin geom.Point, th *theme.Theme) {
	list := d.List().Translate(origin)
	x0, y0, x1, _ := span(list)
	rows := int(list.H / widgets.RowHeight)
	scrolls := len(d.Options) > rows
	width := x1 - x0
	if scrolls {
		width -= int(math.Ceil(widgets.ListScrollbarW / cellW))
	}
	for i := 0; i < rows; i++ {
		idx := d.First() + i
		if idx >= len(d.Options) {
			break
		}
		fg, bg := th.FG(), th.BG()
		switch idx {
		case d.Selected:
			fg, bg = th.BG(), th.Accent()
		case d.Hover():
			bg = th.Muted()
		}
		text := d.Options[idx]
		if r := []rune(text); len(r) > width {
			text = string(r[:max(0, width)])
		}
		text += strings.Repeat(" ", max(0, width-len([]rune(text))))
		s.text(x0, y0+i, text, fg, bg)
	}
	if scrolls {
		s.fill(d.Track().Translate(origin), th.Symbols.Track, th.Grid(), th.BG())
		s.fill(d.Thumb().Translate(origin), th.Symbols.Thumb, th.Muted(), th.BG())
	}
}
