// Package history implements the append-only edit arena and commit-group
// boundaries undo/redo are built from.
//
// Kept from the teacher's internal/engine/history/stack.go: the
// sync.Mutex-guarded struct shape, the BeginGroup/EndGroup/CancelGroup/
// IsGrouping naming, and timestamped entries. Replaced: the teacher's
// Command-pattern undo/redo stack (*undoEntry of Command/CompoundCommand)
// with a flat append-only []Edit arena plus group-boundary offsets, since
// spec.md requires undo/redo to yield reversed edit sequences directly
// rather than replaying command objects.
package history

import (
	"sync"
	"time"

	"github.com/nyxed/nyx/internal/engine/position"
)

// Kind distinguishes an Insert from a Delete edit.
type Kind int

const (
	Insert Kind = iota
	Delete
)

// Edit is a single primitive operation recorded in the history arena.
type Edit struct {
	Kind  Kind
	Range position.Range
	Text  string
}

// group is the set of edit indices [start,end) belonging to one commit.
type group struct {
	start, end int
	at         time.Time
}

// History is an append-only log of Edits grouped into commits, with
// separate past/future group stacks for undo/redo.
type History struct {
	mu sync.Mutex

	edits []Edit

	pastGroups   []group
	futureGroups []group

	openStart int // start index of the currently-open (uncommitted) group
	grouping  bool
}

// New returns an empty History with one open group ready to receive edits.
func New() *History {
	return &History{}
}

// AddEdit appends e to the currently open commit group.
func (h *History) AddEdit(e Edit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// An edit arriving while redo groups exist invalidates them: truncate
	// the arena back to the open group's start first, so the stale
	// already-undone edits between openStart and the old end are actually
	// discarded rather than left dangling underneath the new edit.
	if len(h.futureGroups) > 0 {
		h.edits = h.edits[:h.openStart]
		h.futureGroups = h.futureGroups[:0]
	}
	h.edits = append(h.edits, e)
}

// CommitEdits closes the current group; subsequent edits begin a new one.
// No-op if the current group is empty.
func (h *History) CommitEdits() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commitLocked()
}

func (h *History) commitLocked() {
	if len(h.edits) == h.openStart {
		return
	}
	h.pastGroups = append(h.pastGroups, group{start: h.openStart, end: len(h.edits), at: time.Now()})
	h.openStart = len(h.edits)
}

// BeginGroup marks the start of an explicit multi-edit group (e.g. a
// single user command issuing several edits that must undo atomically).
func (h *History) BeginGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commitLocked()
	h.grouping = true
}

// EndGroup closes an explicit group opened by BeginGroup.
func (h *History) EndGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grouping = false
	h.commitLocked()
}

// CancelGroup discards the edits accumulated since BeginGroup without
// committing them as an undoable group. The edits remain applied to the
// buffer; callers must separately reverse their effect if that is desired.
func (h *History) CancelGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grouping = false
	h.openStart = len(h.edits)
}

// IsGrouping reports whether an explicit group is open.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grouping
}

// Undo closes any open group, pops the most recent group, and returns its
// edits in reverse order. Kind is returned unchanged; the caller inverts
// Insert<->Delete when applying.
func (h *History) Undo() []Edit {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.grouping {
		h.commitLocked()
	}
	if len(h.pastGroups) == 0 {
		return nil
	}
	g := h.pastGroups[len(h.pastGroups)-1]
	h.pastGroups = h.pastGroups[:len(h.pastGroups)-1]
	h.futureGroups = append(h.futureGroups, g)

	out := make([]Edit, g.end-g.start)
	for i := g.start; i < g.end; i++ {
		out[g.end-1-i] = h.edits[i]
	}
	h.openStart = g.start
	return out
}

// Redo pops the most recently undone group and returns its edits forward.
func (h *History) Redo() []Edit {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.futureGroups) == 0 {
		return nil
	}
	g := h.futureGroups[len(h.futureGroups)-1]
	h.futureGroups = h.futureGroups[:len(h.futureGroups)-1]
	h.pastGroups = append(h.pastGroups, g)

	out := make([]Edit, g.end-g.start)
	copy(out, h.edits[g.start:g.end])
	h.openStart = g.end
	return out
}

// CanUndo reports whether Undo would return a non-empty group.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pastGroups) > 0 || len(h.edits) > h.openStart
}

// CanRedo reports whether Redo would return a non-empty group.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.futureGroups) > 0
}

// Clear discards all history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.edits = h.edits[:0]
	h.pastGroups = nil
	h.futureGroups = nil
	h.openStart = 0
	h.grouping = false
}
