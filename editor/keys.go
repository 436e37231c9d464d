package editor

import (
	"go-pianoroll/debug"
	"go-pianoroll/timeline"
)

// HandleKey runs a keyboard shortcut. Keys are named the way bubbletea prints
// them ("ctrl+z", "shift+up"). It reports whether the key was recognised.
func (e *Editor) HandleKey(key string) (bool, error) {
	switch key {
	case "delete", "backspace":
		return true, e.DeleteSelected()
	case "ctrl+z":
		e.Undo()
	case "ctrl+y", "ctrl+shift+z":
		e.Redo()
	case "ctrl+a":
		e.Cancel()
		e.tl.SelectAll()
		e.markDirty()
	case "esc", "escape":
		e.Cancel()
		e.tl.ClearSelection()
		e.markDirty()
	case "1":
		e.SetMode(ModeAdd)
	case "2":
		e.SetMode(ModeSelect)
	case "3":
		e.SetMode(ModePan)
	case "up":
		return true, e.Transpose(1)
	case "down":
		return true, e.Transpose(-1)
	case "shift+up":
		return true, e.Transpose(12)
	case "shift+down":
		return true, e.Transpose(-12)
	case "right":
		return true, e.Shift(e.tl.Quantum())
	case "left":
		return true, e.Shift(-e.tl.Quantum())
	case "shift+right":
		return true, e.Shift(int64(e.tl.PPQN))
	case "shift+left":
		return true, e.Shift(-int64(e.tl.PPQN))
	case "+", "=":
		e.Zoom(1.25, e.GridRect().W/2)
	case "-":
		e.Zoom(1/1.25, e.GridRect().W/2)
	default:
		return false, nil
	}
	return true, nil
}

// DeleteSelected removes the selected notes as one undoable step
func (e *Editor) DeleteSelected() error {
	e.Cancel()
	sel := e.tl.Selected()
	if len(sel) == 0 {
		return ErrEmptySelection
	}
	e.hist.Push(e.tl.Snapshot())
	for _, n := range sel {
		e.tl.Remove(n)
	}
	debug.Log("editor", "delete", "notes", len(sel))
	e.changed()
	return nil
}

// Transpose moves the selected notes by semitones, clamping at the keyboard's ends
func (e *Editor) Transpose(semitones int) error {
	return e.editSelected(func(n *timeline.Note) {
		n.Pitch = timeline.ClampPitch(int(n.Pitch) + semitones)
	})
}

// Shift moves the selected notes in time, never before tick 0
func (e *Editor) Shift(ticks int64) error {
	return e.editSelected(func(n *timeline.Note) {
		n.Start = max(0, n.Start+ticks)
	})
}

func (e *Editor) editSelected(fn func(n *timeline.Note)) error {
	e.Cancel()
	sel := e.tl.Selected()
	if len(sel) == 0 {
		return ErrEmptySelection
	}
	before := e.tl.Snapshot()
	moved := false
	for _, n := range sel {
		old := *n
		fn(n)
		moved = moved || old != *n
	}
	if !moved {
		return nil
	}
	e.hist.Push(before)
	e.changed()
	return nil
}

// Undo restores the state before the last edit. Selection is cleared.
func (e *Editor) Undo() bool {
	e.Cancel()
	prev, ok := e.hist.Undo(e.tl.Snapshot())
	if !ok {
		return false
	}
	e.tl.Restore(prev)
	debug.Log("editor", "undo", "remaining", e.hist.UndoLen())
	e.changed()
	return true
}

func (e *Editor) Redo() bool {
	e.Cancel()
	next, ok := e.hist.Redo(e.tl.Snapshot())
	if !ok {
		return false
	}
	e.tl.Restore(next)
	debug.Log("editor", "redo", "remaining", e.hist.RedoLen())
	e.changed()
	return true
}
