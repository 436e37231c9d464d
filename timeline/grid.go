package timeline

import (
	"math"

	"go-pianoroll/geom"
)

// Note lengths offered by the editor, in quarter notes
var NoteSizes = []struct {
	Name  string
	Beats float64
}{
	{"1/32", 0.125},
	{"1/16", 0.25},
	{"1/8", 0.5},
	{"1/4", 1},
	{"1/2", 2},
	{"1", 4},
}

// NoteSizeTicks resolves a note size name at the given resolution; unknown names fall back to a 1/8
func NoteSizeTicks(name string, ppqn int) int64 {
	for _, s := range NoteSizes {
		if s.Name == name {
			return max(1, int64(s.Beats*float64(ppqn)))
		}
	}
	return max(1, int64(ppqn/2))
}

func ValidNoteSize(name string) bool {
	for _, s := range NoteSizes {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Grid maps ticks and pitches to content-space pixels. Pitch rows are inverted so 127 is on top.
type Grid struct {
	PPQN       int
	BeatWidth  float64 // pixels per quarter note
	NoteHeight float64 // pixels per pitch row
}

func (g Grid) TickToX(tick float64) float64 {
	return tick / float64(g.PPQN) * g.BeatWidth
}

func (g Grid) XToTick(x float64) float64 {
	return x / g.BeatWidth * float64(g.PPQN)
}

func (g Grid) PitchToY(pitch int) float64 {
	return float64(NumPitches-1-pitch) * g.NoteHeight
}

// YToPitch returns the row under y; the result may fall outside 0..127
func (g Grid) YToPitch(y float64) int {
	return NumPitches - 1 - int(math.Floor(y/g.NoteHeight))
}

// NoteRect is the note's rectangle in content space
func (g Grid) NoteRect(n Note) geom.Rect {
	return geom.Rect{
		X: g.TickToX(float64(n.Start)),
		Y: g.PitchToY(int(n.Pitch)),
		W: g.TickToX(float64(n.Duration)),
		H: g.NoteHeight,
	}
}

// ContentHeight covers all 128 rows
func (g Grid) ContentHeight() float64 {
	return NumPitches * g.NoteHeight
}

// Quantize rounds to the nearest multiple of quantum, never below zero
func Quantize(tick float64, quantum int64) int64 {
	if quantum <= 0 {
		return max(0, int64(math.Round(tick)))
	}
	q := float64(quantum)
	return max(0, int64(math.Round(tick/q))*quantum)
}

// QuantizeUp snaps to the next multiple of quantum at or after tick
func QuantizeUp(tick float64, quantum int64) int64 {
	if quantum <= 0 {
		return max(0, int64(math.Ceil(tick)))
	}
	q := float64(quantum)
	return max(0, int64(math.Ceil(tick/q))*quantum)
}

// ClampPitch limits a row index to a valid MIDI pitch
func ClampPitch(p int) uint8 {
	return uint8(Clamp(p, 0, NumPitches-1))
}
