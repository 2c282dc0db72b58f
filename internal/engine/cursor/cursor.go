// Package cursor implements the multi-cursor model: a Cursor is an
// anchor/position pair, and a Collection is a fixed-capacity, always
// sorted-and-merged set of cursors mutated only through a scoped guard.
//
// The sort/merge algorithm (Guard.Release) is grounded byte-for-byte
// on original_source/pepper/src/cursor.rs's sort_and_merge, not on the
// teacher's internal/engine/cursor/cursors.go, because the teacher's
// Selection.Merge always returns a forward selection and loses the
// orientation spec.md invariant #2 requires.
package cursor

import "github.com/nyxed/nyx/internal/engine/position"

// MaxCursors is the fixed capacity of a Collection.
const MaxCursors = 255

// Cursor is an anchor/position pair. A zero-width cursor (Anchor ==
// Position) is a caret; otherwise it is a selection.
type Cursor struct {
	Anchor   position.Position
	Position position.Position
}

// Range returns the min/max pair spanned by the cursor.
func (c Cursor) Range() position.Range {
	return position.NewRange(c.Anchor, c.Position)
}

// IsForward reports whether Anchor <= Position (anchor-before-position
// orientation).
func (c Cursor) IsForward() bool {
	return !c.Position.Before(c.Anchor)
}
