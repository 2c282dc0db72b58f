// Package pool implements the pooled byte buffer (spec.md §4.10): a
// sync.Pool-backed lending mechanism for fixed-minimum-capacity byte
// buffers that flow, single-owner, through the request/event pipeline.
//
// Grounded on internal/engine/rope/pool.go's NodePool/StringBuilderPool
// lend-reset-retain idiom.
package pool

import "sync"

// Buffer is a lent, logically-resizable byte buffer.
type Buffer struct {
	data []byte
	len  int
}

// Bytes returns the buffer's current logical contents.
func (b *Buffer) Bytes() []byte { return b.data[:b.len] }

// Len returns the logical length.
func (b *Buffer) Len() int { return b.len }

// WriteWithLen resizes the underlying storage to at least n bytes and
// returns a slice of length n for the caller to fill.
func (b *Buffer) WriteWithLen(n int) []byte {
	if cap(b.data) < n {
		grown := make([]byte, n)
		copy(grown, b.data[:b.len])
		b.data = grown
	} else if len(b.data) < n {
		b.data = b.data[:n]
	}
	b.len = n
	return b.data[:n]
}

// DrainStart advances the logical start of the buffer by n bytes.
func (b *Buffer) DrainStart(n int) {
	if n >= b.len {
		b.len = 0
		return
	}
	copy(b.data, b.data[n:b.len])
	b.len -= n
}

// Truncate shortens the logical length to n.
func (b *Buffer) Truncate(n int) {
	if n < b.len {
		b.len = n
	}
}

func (b *Buffer) reset() { b.len = 0 }

// Pool lends Buffers with a fixed minimum initial capacity.
type Pool struct {
	minCap int
	sp     sync.Pool

	mu       sync.Mutex
	acquired int
	released int
}

// New returns a Pool whose lent buffers start with at least minCap bytes
// of backing storage.
func New(minCap int) *Pool {
	p := &Pool{minCap: minCap}
	p.sp.New = func() interface{} {
		return &Buffer{data: make([]byte, 0, minCap)}
	}
	return p
}

// Get lends a reset Buffer.
func (p *Pool) Get() *Buffer {
	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()
	return p.sp.Get().(*Buffer)
}

// Put resets and returns a Buffer to the pool. Every PlatformRequest or
// PlatformEvent that transfers ownership of a Buffer must eventually call
// Put, per spec.md §5's single-owner pooled-buffer rule.
func (p *Pool) Put(b *Buffer) {
	b.reset()
	p.sp.Put(b)
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

// Acquired returns the total number of Get calls, for testing the "Quit
// drains buffers" property (spec.md §8, property 10).
func (p *Pool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Released returns the total number of Put calls.
func (p *Pool) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
