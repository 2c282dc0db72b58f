// Package events implements the double-buffered Editor Event Queue
// (spec.md §4.6): a read arena and a write arena, each holding events plus
// interned text/cursor sidearrays, swapped via Flip() once per server
// tick.
//
// The teacher's internal/event/bus.go is a general topic-based pub/sub
// Bus with sync/async dispatchers — too general for spec.md's literal
// double-arena design. This package is grounded instead on
// original_source/pepper/src/events.rs's EditorEventQueue
// (flip/enqueue/enqueue_buffer_insert/enqueue_fix_cursors) and
// EditorEventIter, while keeping bus.go's "subscribe, dispatch, stats"
// documentation register for package-doc density.
package events

import (
	"strings"

	"github.com/nyxed/nyx/internal/engine/buffer"
	"github.com/nyxed/nyx/internal/engine/cursor"
	"github.com/nyxed/nyx/internal/engine/position"
)

// Kind enumerates EditorEvent variants.
type Kind int

const (
	Idle Kind = iota
	BufferOpen
	BufferInsertText
	BufferDeleteText
	BufferSave
	BufferClose
	FixCursors
	BufferViewLostFocus
)

// TextRef is a (start,end) byte-offset slice into the read arena's text
// sidearray.
type TextRef struct{ Start, End int }

// CursorsRef is a (start,end) index slice into the read arena's cursor
// sidearray.
type CursorsRef struct{ Start, End int }

// Event is one entry in the queue. Not every field is meaningful for
// every Kind; see spec.md §3's EditorEvent variant list.
type Event struct {
	Kind         Kind
	BufferHandle buffer.Handle
	Range        position.Range
	TextRef      TextRef
	NewPath      bool
	ViewHandle   uint8
	CursorsRef   CursorsRef
}

type arena struct {
	events  []Event
	texts   strings.Builder
	cursors []cursor.Cursor
}

// Queue is the double-buffered event queue. Producers only write into
// write; consumers read from read via an Iter, which may be created
// multiple times per tick by independent observers.
type Queue struct {
	read  arena
	write arena
}

// New returns an empty Queue.
func New() *Queue { return &Queue{} }

// Enqueue appends a plain event (Idle, BufferOpen, BufferSave,
// BufferClose, BufferViewLostFocus) with no interned payload.
func (q *Queue) Enqueue(e Event) {
	q.write.events = append(q.write.events, e)
}

// EnqueueBufferInsert interns text into the write arena's text sidearray
// and appends a BufferInsertText event referencing it.
func (q *Queue) EnqueueBufferInsert(h buffer.Handle, r position.Range, text string) {
	start := q.write.texts.Len()
	q.write.texts.WriteString(text)
	end := q.write.texts.Len()
	q.write.events = append(q.write.events, Event{
		Kind: BufferInsertText, BufferHandle: h, Range: r,
		TextRef: TextRef{Start: start, End: end},
	})
}

// EnqueueFixCursors interns cursors into the write arena's cursor
// sidearray and appends a FixCursors event referencing them.
func (q *Queue) EnqueueFixCursors(viewHandle uint8, cursors []cursor.Cursor) {
	start := len(q.write.cursors)
	q.write.cursors = append(q.write.cursors, cursors...)
	end := len(q.write.cursors)
	q.write.events = append(q.write.events, Event{
		Kind: FixCursors, ViewHandle: viewHandle,
		CursorsRef: CursorsRef{Start: start, End: end},
	})
}

// Flip clears read, then swaps read and write: read becomes the events
// just produced, write becomes the (now empty) former read, ready for the
// next tick's producers.
func (q *Queue) Flip() {
	q.read.events = q.read.events[:0]
	q.read.texts.Reset()
	q.read.cursors = q.read.cursors[:0]
	q.read, q.write = q.write, q.read
}

// ResolveText dereferences a TextRef against the read arena. Refs
// produced against write before a Flip must never be dereferenced here.
func (q *Queue) ResolveText(ref TextRef) string {
	s := q.read.texts.String()
	return s[ref.Start:ref.End]
}

// ResolveCursors dereferences a CursorsRef against the read arena.
func (q *Queue) ResolveCursors(ref CursorsRef) []cursor.Cursor {
	return q.read.cursors[ref.Start:ref.End]
}

// Iter walks the read arena's events from an independent position, safe
// to create multiple times per tick.
type Iter struct {
	q   *Queue
	idx int
}

// Iter returns a new independent iterator over the current read arena.
func (q *Queue) Iter() *Iter { return &Iter{q: q} }

// Next returns the next event, or ok=false once exhausted.
func (it *Iter) Next() (Event, bool) {
	if it.idx >= len(it.q.read.events) {
		return Event{}, false
	}
	e := it.q.read.events[it.idx]
	it.idx++
	return e, true
}
