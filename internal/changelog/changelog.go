// Package changelog implements the per-buffer versioned change log
// (SPEC_FULL.md §4.12): a monotonic pending-edit queue a plugin
// synchroniser drains on Idle, grounded on internal/lsp/transport.go's
// JSON-RPC didChange framing (a version plus a list of content changes)
// and internal/event/bus.go's subscription vocabulary.
package changelog

import "sync"

// DefaultMaxEntries bounds the log's retained history; older entries are
// dropped once this many have accumulated, in the style of
// internal/engine/tracking/tracker.go's ring buffer.
const DefaultMaxEntries = 4096

// Kind distinguishes the two primitive edits a Buffer can record.
type Kind int

const (
	Insert Kind = iota
	Delete
)

// ChangeRange describes one recorded edit: the span it affected and, for
// an Insert, the text that was written (a Delete's removed text is not
// retained; consumers only need to know the span shrank).
type ChangeRange struct {
	Kind Kind
	From Pos
	To   Pos
	Text string
}

// Pos is a line/column pair, duplicated from position.Position to keep
// this package free of a dependency on the buffer's internals.
type Pos struct {
	Line, Column uint32
}

type entry struct {
	version uint64
	change  ChangeRange
}

// Log is a buffer's append-only, version-stamped change queue.
type Log struct {
	mu      sync.Mutex
	version uint64
	entries []entry
	max     int
}

// New creates an empty Log at version 0.
func New() *Log {
	return &Log{max: DefaultMaxEntries}
}

// Record appends a change, bumps the version, and returns the new
// version (the Buffer's RevisionID after this edit).
func (l *Log) Record(c ChangeRange) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.version++
	l.entries = append(l.entries, entry{version: l.version, change: c})
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	return l.version
}

// Version returns the log's current version without draining anything.
func (l *Log) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Drain returns the changes recorded after sinceVersion, in chronological
// order, along with the log's current version. ok is false when
// sinceVersion predates the oldest retained entry (the ring has dropped
// it); the caller must then treat the buffer as needing a full resync
// rather than an incremental one.
func (l *Log) Drain(sinceVersion uint64) (changes []ChangeRange, version uint64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	version = l.version
	if sinceVersion == version {
		return nil, version, true
	}
	if len(l.entries) == 0 {
		return nil, version, sinceVersion == 0
	}
	oldest := l.entries[0].version
	if sinceVersion < oldest-1 {
		return nil, version, false
	}
	for _, e := range l.entries {
		if e.version > sinceVersion {
			changes = append(changes, e.change)
		}
	}
	return changes, version, true
}
