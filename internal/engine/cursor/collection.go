package cursor

import (
	"sort"
)

// lineReader is the minimal content accessor SaveDisplayDistances needs;
// satisfied by *buffer.Content without importing it (avoids a cursor->buffer
// import cycle, since buffer composes a cursor collection per Buffer).
type lineReader interface {
	LineText(line int) string
}

// Collection is a fixed-capacity (MaxCursors), always sorted-and-merged set
// of cursors with a designated main cursor. All mutation happens through a
// Guard; direct mutation is not exposed, per spec.md §9's "scoped cursor
// guard" design note.
type Collection struct {
	cursors    []Cursor
	mainIndex  int
	distances  []int
	haveSaved  bool
	inGuard    bool
}

// NewCollection returns a Collection holding a single zero cursor.
func NewCollection() *Collection {
	return &Collection{cursors: []Cursor{{}}, mainIndex: 0}
}

// Len returns the number of live cursors. Always >= 1.
func (c *Collection) Len() int { return len(c.cursors) }

// At returns the cursor at index i.
func (c *Collection) At(i int) Cursor { return c.cursors[i] }

// MainIndex returns the index of the main cursor.
func (c *Collection) MainIndex() int { return c.mainIndex }

// Main returns the main cursor.
func (c *Collection) Main() Cursor { return c.cursors[c.mainIndex] }

// All returns a copy of the live cursors, safe for the caller to retain.
func (c *Collection) All() []Cursor {
	out := make([]Cursor, len(c.cursors))
	copy(out, c.cursors)
	return out
}

// DisplayDistance returns the saved display distance for cursor i, and
// whether one was saved during the most recent guard.
func (c *Collection) DisplayDistance(i int) (int, bool) {
	if !c.haveSaved || i >= len(c.distances) {
		return 0, false
	}
	return c.distances[i], true
}

// Guard is a scoped mutation handle. Its Release method is the only place
// the sort+merge invariant (spec.md §3, §4.2) is enforced.
type Guard struct {
	c               *Collection
	savedThisGuard  bool
}

// MutGuard opens a scoped mutation guard. The caller MUST call Release
// when done; forgetting to do so leaves the collection unsorted, which is
// a programmer error per spec.md §7.
func (c *Collection) MutGuard() *Guard {
	if c.inGuard {
		panic("cursor: MutGuard called while another guard is open")
	}
	c.inGuard = true
	return &Guard{c: c}
}

// Clear removes every cursor. The next Release reinstates a zero cursor.
func (g *Guard) Clear() {
	g.c.cursors = g.c.cursors[:0]
}

// Add appends a cursor, panicking if the collection is already at capacity
// (MaxCursors) per spec.md's fixed-capacity invariant.
func (g *Guard) Add(cur Cursor) {
	if len(g.c.cursors) >= MaxCursors {
		panic("cursor: collection at capacity")
	}
	g.c.cursors = append(g.c.cursors, cur)
}

// Len returns the current (pre-merge) cursor count.
func (g *Guard) Len() int { return len(g.c.cursors) }

// At returns a pointer to cursor i for in-place mutation during the guard.
func (g *Guard) At(i int) *Cursor { return &g.c.cursors[i] }

// SetMainCursorIndex designates which cursor is main.
func (g *Guard) SetMainCursorIndex(i int) {
	g.c.mainIndex = i
}

// MainCursor returns a pointer to the current main cursor for mutation.
func (g *Guard) MainCursor() *Cursor { return &g.c.cursors[g.c.mainIndex] }

// SaveDisplayDistances captures the tab-expanded display column of each
// cursor's Position, idempotent within the guard's lifetime (a second call
// during the same guard is a no-op), per spec.md §4.2.
func (g *Guard) SaveDisplayDistances(content lineReader, tabSize int) {
	if g.savedThisGuard {
		return
	}
	g.savedThisGuard = true
	g.c.distances = make([]int, len(g.c.cursors))
	for i, cur := range g.c.cursors {
		line := content.LineText(int(cur.Position.Line))
		g.c.distances[i] = displayColumn(line, int(cur.Position.Column), tabSize)
	}
	g.c.haveSaved = true
}

// displayColumn returns the tab-expanded display column of byte offset col
// within line, grounded on original_source/src/buffer.rs's
// CharDisplayDistance(s): a tab advances to the next tabSize boundary,
// every other char advances by one column.
func displayColumn(line string, col int, tabSize int) int {
	if tabSize <= 0 {
		tabSize = 1
	}
	display := 0
	i := 0
	for _, r := range line {
		if i >= col {
			break
		}
		if r == '\t' {
			display += tabSize - (display % tabSize)
		} else {
			display++
		}
		i += len(string(r))
	}
	return display
}

// Release sorts the collection by range.From, merges touching/overlapping
// cursors (preserving the orientation of the lower-index surviving
// cursor), rebinds the main cursor index, and clears saved display
// distances unless SaveDisplayDistances was called during this guard.
//
// This is the literal sort_and_merge algorithm from
// original_source/pepper/src/cursor.rs, adapted to Go slices in place of
// the Rust Vec + copy_within splice.
func (g *Guard) Release() {
	c := g.c
	defer func() { c.inGuard = false }()

	if len(c.cursors) == 0 {
		c.cursors = append(c.cursors, Cursor{})
		c.mainIndex = 0
	}
	if c.mainIndex >= len(c.cursors) {
		c.mainIndex = len(c.cursors) - 1
	}

	// Track the main cursor by its original slot through the sort rather
	// than by matching Position afterward: two cursors can tie on the sort
	// key (e.g. after a merge-producing move), and Position equality can't
	// tell them apart.
	mainBefore := c.mainIndex
	order := make([]int, len(c.cursors))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return c.cursors[order[i]].Range().From.Before(c.cursors[order[j]].Range().From)
	})

	sorted := make([]Cursor, len(c.cursors))
	newMain := 0
	for newIdx, oldIdx := range order {
		sorted[newIdx] = c.cursors[oldIdx]
		if oldIdx == mainBefore {
			newMain = newIdx
		}
	}
	c.cursors = sorted
	c.mainIndex = newMain

	merged := make([]Cursor, 0, len(c.cursors))
	merged = append(merged, c.cursors[0])
	for i := 1; i < len(c.cursors); i++ {
		last := &merged[len(merged)-1]
		lastRange := last.Range()
		cur := c.cursors[i]
		curRange := cur.Range()

		if !curRange.From.After(lastRange.To) {
			from := lastRange.From
			to := cur.Range().To
			if lastRange.To.After(to) {
				to = lastRange.To
			}
			forward := last.IsForward()
			if forward {
				*last = Cursor{Anchor: from, Position: to}
			} else {
				*last = Cursor{Anchor: to, Position: from}
			}
			if i <= c.mainIndex {
				c.mainIndex--
			}
			continue
		}
		merged = append(merged, cur)
	}
	c.cursors = merged

	if c.mainIndex < 0 {
		c.mainIndex = 0
	}
	if c.mainIndex >= len(c.cursors) {
		c.mainIndex = len(c.cursors) - 1
	}

	if !g.savedThisGuard {
		c.haveSaved = false
		c.distances = nil
	}
}
