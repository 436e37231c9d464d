package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-pianoroll/debug"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	NoteBody  rune // █ note cell
	NoteHead  rune // ▌ first cell of a note
	Playhead  rune // │ playhead column
	BeatLine  rune // ┊ beat division
	BarLine   rune // │ bar division
	RulerTick rune // ╵ ruler beat mark
	Thumb     rune // ┃ vertical scrollbar thumb
	HThumb    rune // ━ horizontal scrollbar thumb
	Track     rune // ░ scrollbar track
	Handle    rune // ═ drawer resize handle
	WhiteKey  rune // ▭
	BlackKey  rune // ▬
}

func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			NoteBody:  '█',
			NoteHead:  '▌',
			Playhead:  '│',
			BeatLine:  '┊',
			BarLine:   '│',
			RulerTick: '╵',
			Thumb:     '┃',
			HThumb:    '━',
			Track:     '░',
			Handle:    '═',
			WhiteKey:  '▭',
			BlackKey:  '▬',
		},
	}
}

// Load builds the theme from a GPL file, falling back to the built-in palette
func Load(path string) *Theme {
	if path == "" {
		return New(nil)
	}
	p, err := LoadGPL(path)
	if err != nil {
		debug.Log("theme", "palette load failed, using default", "path", path, "err", err)
		return New(nil)
	}
	return New(p)
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG       = 0.0
	RoleSurface  = 0.1
	RoleGrid     = 0.2
	RoleMuted    = 0.3
	RoleFG       = 0.45
	RoleAccent   = 0.55
	RolePlayhead = 0.8
	RoleSelected = 1.0
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) Surface() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSurface))
}

func (t *Theme) Grid() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleGrid))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Playhead() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RolePlayhead))
}

func (t *Theme) Selected() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSelected))
}

// Velocity colours a note by how hard it is played, from the accent up
func (t *Theme) Velocity(v uint8) lipgloss.Color {
	return t.Color(RoleAccent + (RolePlayhead-RoleAccent)*float64(v)/127)
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
