package timeline

import (
	"slices"

	"golang.org/x/exp/constraints"
)

const (
	NumPitches  = 128
	NumChannels = 16

	DefaultPPQN     = 480
	DefaultBPM      = 120.0
	DefaultVelocity = 100

	MinBPM = 20.0
	MaxBPM = 300.0
)

// Note is a played pitch interval in ticks
type Note struct {
	Pitch    uint8 `json:"pitch"`
	Velocity uint8 `json:"velocity"`
	Channel  uint8 `json:"channel"`
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

// End returns the tick at which the note is released
func (n Note) End() int64 {
	return n.Start + n.Duration
}

// clamp pulls every field back into range. Velocity 0 would read back as a note-off, so it floors at 1.
func (n *Note) clamp(minDuration int64) {
	n.Pitch = Clamp(n.Pitch, 0, NumPitches-1)
	n.Velocity = Clamp(n.Velocity, 1, 127)
	n.Channel = Clamp(n.Channel, 0, NumChannels-1)
	n.Start = max(n.Start, 0)
	n.Duration = max(n.Duration, minDuration)
}

// OtherEvent is any non-note MIDI message kept verbatim at a tick
type OtherEvent struct {
	Tick int64  `json:"tick"`
	Data []byte `json:"data"`
}

// Channel returns the channel of a channel-voice message
func (e OtherEvent) Channel() (uint8, bool) {
	if len(e.Data) == 0 || e.Data[0] < 0x80 || e.Data[0] >= 0xF0 {
		return 0, false
	}
	return e.Data[0] & 0x0F, true
}

// Timeline owns the note collection of the song
type Timeline struct {
	PPQN   int
	BPM    float64
	Notes  []*Note
	Others []OtherEvent

	selected map[*Note]struct{}
	duration int64
}

// New creates an empty timeline
func New(ppqn int, bpm float64) *Timeline {
	if ppqn <= 0 {
		ppqn = DefaultPPQN
	}
	t := &Timeline{
		PPQN:     ppqn,
		selected: make(map[*Note]struct{}),
	}
	t.SetBPM(bpm)
	return t
}

// SetBPM sets the tempo, clamped to a playable range
func (t *Timeline) SetBPM(bpm float64) {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	t.BPM = Clamp(bpm, MinBPM, MaxBPM)
}

// TicksPerSecond converts tempo into tick rate
func (t *Timeline) TicksPerSecond() float64 {
	return t.BPM / 60 * float64(t.PPQN)
}

// Quantum is the edit grid: one sixteenth note
func (t *Timeline) Quantum() int64 {
	return max(1, int64(t.PPQN/4))
}

// MinDuration is the shortest note a resize can produce: one 64th note
func (t *Timeline) MinDuration() int64 {
	return max(1, int64(t.PPQN/16))
}

// Add inserts a copy of n (clamped) and returns the stored note
func (t *Timeline) Add(n Note) *Note {
	n.clamp(1)
	p := &n
	t.Notes = append(t.Notes, p)
	t.Recalculate()
	return p
}

// AddOther records a non-note event
func (t *Timeline) AddOther(tick int64, data []byte) {
	t.Others = append(t.Others, OtherEvent{Tick: max(tick, 0), Data: slices.Clone(data)})
	t.Recalculate()
}

// Remove deletes the given notes; returns how many were removed
func (t *Timeline) Remove(notes ...*Note) int {
	if len(notes) == 0 {
		return 0
	}
	drop := make(map[*Note]struct{}, len(notes))
	for _, n := range notes {
		drop[n] = struct{}{}
		delete(t.selected, n)
	}
	before := len(t.Notes)
	t.Notes = slices.DeleteFunc(t.Notes, func(n *Note) bool {
		_, ok := drop[n]
		return ok
	})
	t.Recalculate()
	return before - len(t.Notes)
}

// ClampNotes re-applies range limits to every note, flooring durations at floor
func (t *Timeline) ClampNotes(floor int64) {
	for _, n := range t.Notes {
		n.clamp(floor)
	}
	t.Recalculate()
}

// Recalculate refreshes the derived song duration. Call after every structural mutation.
func (t *Timeline) Recalculate() {
	var end int64
	for _, n := range t.Notes {
		end = max(end, n.End())
	}
	for _, e := range t.Others {
		end = max(end, e.Tick)
	}
	t.duration = end
}

// SongDuration is the end tick of the last event
func (t *Timeline) SongDuration() int64 {
	return t.duration
}

// Snapshot returns a deep copy of the note collection
func (t *Timeline) Snapshot() []Note {
	out := make([]Note, len(t.Notes))
	for i, n := range t.Notes {
		out[i] = *n
	}
	return out
}

// Restore replaces the notes with a snapshot. Selection is cleared since the old pointers are gone.
func (t *Timeline) Restore(snapshot []Note) {
	t.Notes = make([]*Note, len(snapshot))
	for i := range snapshot {
		n := snapshot[i]
		t.Notes[i] = &n
	}
	t.ClearSelection()
	t.Recalculate()
}

// Load replaces the whole song
func (t *Timeline) Load(ppqn int, bpm float64, notes []Note, others []OtherEvent) {
	if ppqn > 0 {
		t.PPQN = ppqn
	}
	t.SetBPM(bpm)
	t.Others = slices.Clone(others)
	t.Restore(notes)
}

// Selection

func (t *Timeline) IsSelected(n *Note) bool {
	_, ok := t.selected[n]
	return ok
}

func (t *Timeline) Select(n *Note) {
	if t.selected == nil {
		t.selected = make(map[*Note]struct{})
	}
	t.selected[n] = struct{}{}
}

func (t *Timeline) Deselect(n *Note) {
	delete(t.selected, n)
}

// ToggleSelected flips membership and reports the new state
func (t *Timeline) ToggleSelected(n *Note) bool {
	if t.IsSelected(n) {
		t.Deselect(n)
		return false
	}
	t.Select(n)
	return true
}

// SelectOnly replaces the selection with n
func (t *Timeline) SelectOnly(n *Note) {
	t.ClearSelection()
	t.Select(n)
}

func (t *Timeline) SelectAll() {
	for _, n := range t.Notes {
		t.Select(n)
	}
}

func (t *Timeline) ClearSelection() {
	clear(t.selected)
}

func (t *Timeline) SelectionLen() int {
	return len(t.selected)
}

// Selected returns the selected notes in collection order
func (t *Timeline) Selected() []*Note {
	out := make([]*Note, 0, len(t.selected))
	for _, n := range t.Notes {
		if t.IsSelected(n) {
			out = append(out, n)
		}
	}
	return out
}

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
