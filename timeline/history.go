package timeline

const DefaultUndoDepth = 25

// History keeps whole-collection snapshots for undo/redo
type History struct {
	undo  [][]Note
	redo  [][]Note
	depth int
}

func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &History{depth: depth}
}

// Push records the state before a mutating action. Redo is invalidated and the
// oldest entry is dropped once the stack is full.
func (h *History) Push(snapshot []Note) {
	h.redo = nil
	h.undo = append(h.undo, snapshot)
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
}

// Undo pops the latest snapshot and parks current on the redo stack
func (h *History) Undo(current []Note) ([]Note, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current)
	return prev, true
}

// Redo is the mirror of Undo
func (h *History) Redo(current []Note) ([]Note, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current)
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
	return next, true
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }
func (h *History) UndoLen() int  { return len(h.undo) }
func (h *History) RedoLen() int  { return len(h.redo) }

func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}
