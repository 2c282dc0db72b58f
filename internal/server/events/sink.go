package events

import (
	"github.com/nyxed/nyx/internal/engine/buffer"
	"github.com/nyxed/nyx/internal/engine/position"
)

// Sink adapts a Queue to buffer.Events, so buffer.Buffer's mutators can
// publish into the queue without the buffer package importing it.
type Sink struct {
	Queue *Queue
}

var _ buffer.Events = Sink{}

// BufferOpen enqueues a BufferOpen event.
func (s Sink) BufferOpen(handle buffer.Handle) {
	s.Queue.Enqueue(Event{Kind: BufferOpen, BufferHandle: handle})
}

// BufferInsertText enqueues a BufferInsertText event, interning text.
func (s Sink) BufferInsertText(handle buffer.Handle, r position.Range, text string) {
	s.Queue.EnqueueBufferInsert(handle, r, text)
}

// BufferDeleteText enqueues a BufferDeleteText event.
func (s Sink) BufferDeleteText(handle buffer.Handle, r position.Range) {
	s.Queue.Enqueue(Event{Kind: BufferDeleteText, BufferHandle: handle, Range: r})
}

// BufferSave enqueues a BufferSave event.
func (s Sink) BufferSave(handle buffer.Handle, newPath bool) {
	s.Queue.Enqueue(Event{Kind: BufferSave, BufferHandle: handle, NewPath: newPath})
}

// BufferClose enqueues a BufferClose event.
func (s Sink) BufferClose(handle buffer.Handle) {
	s.Queue.Enqueue(Event{Kind: BufferClose, BufferHandle: handle})
}
