package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-pianoroll/broker"
)

// RenderSwatch renders a single colored block
func RenderSwatch(color [3]uint8) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render("■")
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderSwatch(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// Bar draws a fraction as a row of cells
func Bar(frac float64, cells int) string {
	if cells <= 0 {
		return ""
	}
	n := int(math.Round(math.Max(0, math.Min(1, frac)) * float64(cells)))
	return strings.Repeat("▮", n) + strings.Repeat("▯", cells-n)
}

// Caption is the one-line text a widget shows in its bounds, cells wide
func Caption(w broker.Widget, cells int) string {
	var s string
	switch w := w.(type) {
	case *Button:
		s = "[" + w.Label + "]"
	case *Toggle:
		mark := " "
		if w.On {
			mark = "x"
		}
		s = fmt.Sprintf("[%s] %s", mark, w.Label)
	case *Slider:
		label := w.Text()
		s = label + " " + Bar(w.Fraction(), cells-len([]rune(label))-1)
	case *PopupSlider:
		s = w.Slider.Text() + " ▴"
		if !w.Up {
			s = w.Slider.Text() + " ▾"
		}
	case *Dropdown:
		s = w.Label + ": " + w.Current() + " ▾"
	}
	return fit(s, cells)
}

// fit pads or truncates s to exactly cells runes
func fit(s string, cells int) string {
	if cells <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > cells {
		return string(r[:cells])
	}
	return s + strings.Repeat(" ", cells-len(r))
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
