package events

import (
	"testing"

	"github.com/nyxed/nyx/internal/engine/buffer"
	"github.com/nyxed/nyx/internal/engine/cursor"
	"github.com/nyxed/nyx/internal/engine/position"
)

func TestEnqueueNotVisibleUntilFlip(t *testing.T) {
	q := New()
	q.Enqueue(Event{Kind: Idle})

	it := q.Iter()
	if _, ok := it.Next(); ok {
		t.Fatalf("event visible before Flip")
	}

	q.Flip()
	it = q.Iter()
	e, ok := it.Next()
	if !ok || e.Kind != Idle {
		t.Fatalf("after Flip: got %+v, ok=%v", e, ok)
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("expected exactly one event")
	}
}

func TestFlipClearsPriorTickAndTextArena(t *testing.T) {
	q := New()
	q.EnqueueBufferInsert(buffer.Handle(1), position.Range{}, "hello")
	q.Flip()

	it := q.Iter()
	e, ok := it.Next()
	if !ok {
		t.Fatalf("expected event")
	}
	if got := q.ResolveText(e.TextRef); got != "hello" {
		t.Fatalf("ResolveText = %q, want %q", got, "hello")
	}

	// Second tick: nothing enqueued, Flip should empty the read arena.
	q.Flip()
	it2 := q.Iter()
	if _, ok := it2.Next(); ok {
		t.Fatalf("expected empty read arena after second Flip with no new events")
	}
}

func TestMultipleIteratorsIndependent(t *testing.T) {
	q := New()
	q.Enqueue(Event{Kind: Idle})
	q.Enqueue(Event{Kind: BufferClose, BufferHandle: buffer.Handle(3)})
	q.Flip()

	itA := q.Iter()
	itB := q.Iter()

	a1, _ := itA.Next()
	b1, _ := itB.Next()
	if a1.Kind != b1.Kind {
		t.Fatalf("independent iterators diverged on first event: %+v vs %+v", a1, b1)
	}
	a2, okA := itA.Next()
	if !okA || a2.Kind != BufferClose {
		t.Fatalf("itA second event = %+v, ok=%v", a2, okA)
	}
	// itB continuing independently of itA's advancement.
	b2, okB := itB.Next()
	if !okB || b2.Kind != BufferClose {
		t.Fatalf("itB second event = %+v, ok=%v", b2, okB)
	}
}

func TestEnqueueFixCursorsResolvesCursors(t *testing.T) {
	q := New()
	cs := []cursor.Cursor{
		{Anchor: position.Position{Line: 0, Column: 0}, Position: position.Position{Line: 0, Column: 3}},
		{Anchor: position.Position{Line: 1, Column: 0}, Position: position.Position{Line: 1, Column: 5}},
	}
	q.EnqueueFixCursors(2, cs)
	q.Flip()

	it := q.Iter()
	e, ok := it.Next()
	if !ok || e.Kind != FixCursors || e.ViewHandle != 2 {
		t.Fatalf("unexpected event %+v ok=%v", e, ok)
	}
	got := q.ResolveCursors(e.CursorsRef)
	if len(got) != 2 || got[1].Position.Column != 5 {
		t.Fatalf("ResolveCursors = %+v", got)
	}
}

func TestSinkSatisfiesBufferEvents(t *testing.T) {
	q := New()
	sink := Sink{Queue: q}
	sink.BufferOpen(buffer.Handle(1))
	sink.BufferInsertText(buffer.Handle(1), position.Range{}, "hi")
	sink.BufferDeleteText(buffer.Handle(1), position.Range{})
	sink.BufferSave(buffer.Handle(1), true)
	sink.BufferClose(buffer.Handle(1))
	q.Flip()

	it := q.Iter()
	var kinds []Kind
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		kinds = append(kinds, e.Kind)
	}
	want := []Kind{BufferOpen, BufferInsertText, BufferDeleteText, BufferSave, BufferClose}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}
