// Package buffers implements the stable-handle slot store for Buffers
// (spec.md §4.5), including the insert-process supervision sub-feature
// that streams a spawned child's stdout into a buffer at a tracked
// position.
//
// Grounded on internal/project/filestore/store.go's handler-notification
// and double-checked-locking Open idiom for find-or-open-by-path, combined
// with the fixed-capacity slot-table pattern used across
// internal/engine/cursor for stable handle reuse.
package buffers

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/nyxed/nyx/internal/engine/buffer"
	"github.com/nyxed/nyx/internal/engine/position"
)

type slot struct {
	buf   *buffer.Buffer
	alive bool
}

// Collection is the server's stable-handle store of buffers.
type Collection struct {
	mu    sync.RWMutex
	slots []slot

	insertProcs map[string]*insertProcess
}

// insertProcess tracks a single spawned process whose stdout streams into
// a buffer at a position that shifts as other inserts land.
type insertProcess struct {
	alive     bool
	handle    buffer.Handle
	position  position.Position
	stdinBuf  []byte
	accum     strings.Builder
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{insertProcs: make(map[string]*insertProcess)}
}

// AddNew creates a new Buffer, reusing a dead slot's handle if one exists.
func (c *Collection) AddNew(opts ...buffer.Option) *buffer.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.slots {
		if !c.slots[i].alive {
			b := buffer.New(buffer.Handle(i), opts...)
			c.slots[i] = slot{buf: b, alive: true}
			return b
		}
	}
	h := buffer.Handle(len(c.slots))
	b := buffer.New(h, opts...)
	c.slots = append(c.slots, slot{buf: b, alive: true})
	return b
}

// Get returns the buffer at handle. Panics if handle is out of range:
// handles are implementation-controlled, so an invalid handle is a
// programmer error, not a user-facing condition (spec.md §7).
func (c *Collection) Get(h buffer.Handle) *buffer.Buffer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slots[h].buf
}

// Iter calls fn for every alive buffer, skipping dead slots.
func (c *Collection) Iter(fn func(*buffer.Buffer)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.slots {
		if c.slots[i].alive {
			fn(c.slots[i].buf)
		}
	}
}

// FindWithPath returns the alive buffer whose path matches path, after
// stripping root as a common prefix from both sides, or nil.
func (c *Collection) FindWithPath(root, path string) *buffer.Buffer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rel := func(p string) string {
		if root == "" {
			return p
		}
		if r, err := filepath.Rel(root, p); err == nil {
			return r
		}
		return p
	}
	target := rel(path)
	for i := range c.slots {
		if c.slots[i].alive && rel(c.slots[i].buf.Path()) == target {
			return c.slots[i].buf
		}
	}
	return nil
}

// DeferRemove emits BufferClose via events without yet disposing the
// buffer, letting observers react before the content vanishes.
func (c *Collection) DeferRemove(h buffer.Handle, events buffer.Events) {
	if events != nil {
		events.BufferClose(h)
	}
}

// Remove disposes the buffer at h, reclaiming its words from wordDB.
func (c *Collection) Remove(h buffer.Handle, wordDB buffer.WordDB) {
	c.mu.Lock()
	b := c.slots[h].buf
	c.slots[h].alive = false
	c.mu.Unlock()

	if wordDB == nil {
		return
	}
	content := b.Content()
	for i := 0; i < content.LineCount(); i++ {
		for _, w := range content.WordsOnLine(i) {
			wordDB.RemoveWord(w)
		}
	}
}

// StartInsertProcess registers tag as streaming into handle at pos, with
// optional stdin bytes to write-then-close.
func (c *Collection) StartInsertProcess(tag string, handle buffer.Handle, pos position.Position, stdin []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertProcs[tag] = &insertProcess{alive: true, handle: handle, position: pos, stdinBuf: stdin}
}

// StdinFor returns the pending stdin payload for tag (nil if none or
// already consumed) so the caller can write it once and close stdin.
func (c *Collection) StdinFor(tag string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.insertProcs[tag]
	if !ok {
		return nil
	}
	buf := p.stdinBuf
	p.stdinBuf = nil
	return buf
}

// FeedOutput accumulates chunk for tag's insert process; once a trailing
// newline is seen, the accumulated prefix (up to and including the last
// newline) is inserted at the tracked position, and every other insert
// process targeting the same buffer has its position shifted through the
// inserted range, per spec.md §4.5.
func (c *Collection) FeedOutput(tag string, chunk []byte, wordDB buffer.WordDB, events buffer.Events) {
	c.mu.Lock()
	p, ok := c.insertProcs[tag]
	if !ok || !p.alive {
		c.mu.Unlock()
		return
	}
	p.accum.Write(chunk)
	text := p.accum.String()
	lastNL := strings.LastIndexByte(text, '\n')
	if lastNL < 0 {
		c.mu.Unlock()
		return
	}
	toInsert := text[:lastNL+1]
	p.accum.Reset()
	p.accum.WriteString(text[lastNL+1:])
	handle := p.handle
	pos := p.position
	c.mu.Unlock()

	b := c.Get(handle)
	r := b.InsertText(wordDB, pos, toInsert, events)

	c.mu.Lock()
	for _, other := range c.insertProcs {
		if other != p && other.alive && other.handle == handle {
			other.position = r.Insert(other.position)
		}
	}
	p.position = r.Insert(pos)
	c.mu.Unlock()
}

// FinishInsertProcess flushes any residual accumulated output on process
// exit and deregisters the insert process.
func (c *Collection) FinishInsertProcess(tag string, wordDB buffer.WordDB, events buffer.Events) {
	c.mu.Lock()
	p, ok := c.insertProcs[tag]
	if !ok {
		c.mu.Unlock()
		return
	}
	residual := p.accum.String()
	handle := p.handle
	pos := p.position
	delete(c.insertProcs, tag)
	c.mu.Unlock()

	if residual == "" {
		return
	}
	b := c.Get(handle)
	b.InsertText(wordDB, pos, residual, events)
}
