package buffer

import (
	"io"
	"strings"
	"sync"

	"github.com/nyxed/nyx/internal/changelog"
	"github.com/nyxed/nyx/internal/engine/history"
	"github.com/nyxed/nyx/internal/engine/position"
)

// Handle is a stable index into a buffer slot table; it is never reused
// while the buffer it names is alive.
type Handle uint32

// Capabilities flags which optional behaviors apply to a Buffer.
type Capabilities struct {
	CanSave          bool
	HasHistory       bool
	UsesWordDatabase bool
	AutoClose        bool
}

// WordDB is the external word-index collaborator a Buffer keeps in sync
// when Capabilities.UsesWordDatabase is set. Out of scope per spec.md §1;
// only this interface is described.
type WordDB interface {
	AddWord(word string)
	RemoveWord(word string)
}

// Events is the subset of the editor event queue a Buffer publishes into.
// Out-of-package to avoid an import cycle between buffer and the server's
// event queue; the server wires a concrete implementation at startup.
type Events interface {
	BufferOpen(handle Handle)
	BufferInsertText(handle Handle, r position.Range, text string)
	BufferDeleteText(handle Handle, r position.Range)
	BufferSave(handle Handle, newPath bool)
	BufferClose(handle Handle)
}

// Buffer composes Content + History with capability flags, a word-index
// integration point, and a search-range cache, per spec.md §3/§4.4.
type Buffer struct {
	mu sync.RWMutex

	handle  Handle
	path    string
	content *Content
	history *history.History
	changes *changelog.Log

	highlighted  bool
	searchRanges []position.Range

	needsSave    bool
	caps         Capabilities
	alive        bool
}

// Option configures a Buffer at construction, matching the teacher's
// functional-option idiom (internal/engine/buffer/buffer.go's
// NewBuffer(opts ...Option)).
type Option func(*Buffer)

// WithPath sets the buffer's on-disk path.
func WithPath(path string) Option {
	return func(b *Buffer) { b.path = path }
}

// WithCapabilities sets the buffer's capability flags.
func WithCapabilities(c Capabilities) Option {
	return func(b *Buffer) { b.caps = c }
}

// New constructs an empty, alive Buffer identified by handle.
func New(handle Handle, opts ...Option) *Buffer {
	b := &Buffer{
		handle:  handle,
		content: NewContent(),
		history: history.New(),
		changes: changelog.New(),
		alive:   true,
		caps:    Capabilities{CanSave: true, HasHistory: true},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle returns the buffer's stable handle.
func (b *Buffer) Handle() Handle { return b.handle }

// Path returns the buffer's current path.
func (b *Buffer) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// Alive reports whether the buffer has not been disposed.
func (b *Buffer) Alive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.alive
}

// NeedsSave reports whether the buffer has unsaved edits.
func (b *Buffer) NeedsSave() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.needsSave
}

// Capabilities returns the buffer's capability flags.
func (b *Buffer) Capabilities() Capabilities {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.caps
}

// Content exposes the underlying line content for read-only queries
// (word_at, delimiter/balance search, snapshotting for render).
func (b *Buffer) Content() *Content {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// History exposes the underlying edit history.
func (b *Buffer) History() *history.History {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.history
}

// ChangeLog exposes the buffer's versioned change log (SPEC_FULL.md
// §4.12), the pending-edit queue a plugin synchroniser drains.
func (b *Buffer) ChangeLog() *changelog.Log {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.changes
}

// RevisionID returns the buffer's current monotonic revision counter,
// bumped by every Insert/Delete (including undo/redo).
func (b *Buffer) RevisionID() uint64 {
	return b.changes.Version()
}

// InsertText saturates pos, writes text into the content, updates the
// word database (if enabled), emits BufferInsertText, and records the
// edit in history (if enabled). Returns an empty range without mutation
// if text is empty.
func (b *Buffer) InsertText(wordDB WordDB, pos position.Position, text string, events Events) position.Range {
	b.mu.Lock()
	defer b.mu.Unlock()

	if text == "" {
		return position.Range{From: pos, To: pos}
	}

	pos = b.content.SaturatePosition(pos)

	var before []string
	if b.caps.UsesWordDatabase && wordDB != nil {
		before = b.content.WordsOnLine(int(pos.Line))
	}

	r := b.content.InsertText(pos, text)
	b.needsSave = true
	b.changes.Record(changelog.ChangeRange{Kind: changelog.Insert, From: toChangelogPos(r.From), To: toChangelogPos(r.To), Text: text})

	if b.caps.UsesWordDatabase && wordDB != nil {
		for _, w := range before {
			wordDB.RemoveWord(w)
		}
		for line := r.From.Line; line <= r.To.Line; line++ {
			for _, w := range b.content.WordsOnLine(int(line)) {
				wordDB.AddWord(w)
			}
		}
	}

	if b.caps.HasHistory {
		b.history.AddEdit(history.Edit{Kind: history.Insert, Range: r, Text: text})
	}

	if events != nil {
		events.BufferInsertText(b.handle, r, text)
	}
	return r
}

// DeleteRange saturates both endpoints, removes the spanned text, updates
// the word database and history, and emits BufferDeleteText. No-op if the
// range is empty.
func (b *Buffer) DeleteRange(wordDB WordDB, r position.Range, events Events) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from := b.content.SaturatePosition(r.From)
	to := b.content.SaturatePosition(r.To)
	if from == to {
		return
	}
	r = position.Range{From: from, To: to}

	var before []string
	var removedText strings.Builder
	if b.caps.UsesWordDatabase && wordDB != nil {
		for line := r.From.Line; line <= r.To.Line; line++ {
			before = append(before, b.content.WordsOnLine(int(line))...)
		}
	}
	if b.caps.HasHistory {
		b.content.AppendRangeText(r, &removedText)
	}

	b.content.DeleteRange(r)
	b.needsSave = true
	b.changes.Record(changelog.ChangeRange{Kind: changelog.Delete, From: toChangelogPos(r.From), To: toChangelogPos(r.To)})

	if b.caps.UsesWordDatabase && wordDB != nil {
		for _, w := range before {
			wordDB.RemoveWord(w)
		}
		for _, w := range b.content.WordsOnLine(int(r.From.Line)) {
			wordDB.AddWord(w)
		}
	}

	if b.caps.HasHistory {
		b.history.AddEdit(history.Edit{Kind: history.Delete, Range: r, Text: removedText.String()})
	}

	if events != nil {
		events.BufferDeleteText(b.handle, r)
	}
}

// Undo applies the most recent commit group's edits in reverse, inverting
// Insert<->Delete, and emits the corresponding events.
func (b *Buffer) Undo(wordDB WordDB, events Events) {
	b.mu.Lock()
	edits := b.history.Undo()
	b.mu.Unlock()

	for _, e := range edits {
		switch e.Kind {
		case history.Insert:
			b.applyWithoutHistory(wordDB, e.Range, "", events, true)
		case history.Delete:
			b.applyInsertWithoutHistory(wordDB, e.Range.From, e.Text, events)
		}
	}
}

// Redo re-applies the most recently undone group forward.
func (b *Buffer) Redo(wordDB WordDB, events Events) {
	b.mu.Lock()
	edits := b.history.Redo()
	b.mu.Unlock()

	for _, e := range edits {
		switch e.Kind {
		case history.Insert:
			b.applyInsertWithoutHistory(wordDB, e.Range.From, e.Text, events)
		case history.Delete:
			b.applyWithoutHistory(wordDB, e.Range, "", events, true)
		}
	}
}

// applyWithoutHistory performs a delete (used by undo of an insert, or
// redo of a delete) without recording a new history edit.
func (b *Buffer) applyWithoutHistory(wordDB WordDB, r position.Range, _ string, events Events, emitDelete bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var before []string
	if b.caps.UsesWordDatabase && wordDB != nil {
		for line := r.From.Line; line <= r.To.Line; line++ {
			before = append(before, b.content.WordsOnLine(int(line))...)
		}
	}
	b.content.DeleteRange(r)
	b.needsSave = true
	b.changes.Record(changelog.ChangeRange{Kind: changelog.Delete, From: toChangelogPos(r.From), To: toChangelogPos(r.To)})

	if b.caps.UsesWordDatabase && wordDB != nil {
		for _, w := range before {
			wordDB.RemoveWord(w)
		}
		for _, w := range b.content.WordsOnLine(int(r.From.Line)) {
			wordDB.AddWord(w)
		}
	}
	if emitDelete && events != nil {
		events.BufferDeleteText(b.handle, r)
	}
}

// applyInsertWithoutHistory performs an insert (used by undo of a delete,
// or redo of an insert) without recording a new history edit.
func (b *Buffer) applyInsertWithoutHistory(wordDB WordDB, pos position.Position, text string, events Events) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var before []string
	if b.caps.UsesWordDatabase && wordDB != nil {
		before = b.content.WordsOnLine(int(pos.Line))
	}
	r := b.content.InsertText(pos, text)
	b.needsSave = true
	b.changes.Record(changelog.ChangeRange{Kind: changelog.Insert, From: toChangelogPos(r.From), To: toChangelogPos(r.To), Text: text})

	if b.caps.UsesWordDatabase && wordDB != nil {
		for _, w := range before {
			wordDB.RemoveWord(w)
		}
		for line := r.From.Line; line <= r.To.Line; line++ {
			for _, w := range b.content.WordsOnLine(int(line)) {
				wordDB.AddWord(w)
			}
		}
	}
	if events != nil {
		events.BufferInsertText(b.handle, r, text)
	}
}

// SaveToFile writes the buffer's content (lines joined by '\n', trailing
// '\n') to w. If newPath is non-empty, it replaces the buffer's path and
// forces CanSave.
func (b *Buffer) SaveToFile(w io.Writer, newPath string, events Events) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := io.WriteString(w, b.content.Text()); err != nil {
		return err
	}
	b.needsSave = false

	replaced := newPath != ""
	if replaced {
		b.path = newPath
		b.caps.CanSave = true
	}
	if events != nil {
		events.BufferSave(b.handle, replaced)
	}
	return nil
}

// DiscardAndReloadFromFile clears history, search ranges, and word-index
// contributions, reads fresh content from r, re-adds words, and emits
// BufferOpen.
func (b *Buffer) DiscardAndReloadFromFile(r io.Reader, wordDB WordDB, events Events) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.caps.UsesWordDatabase && wordDB != nil {
		for i := 0; i < b.content.LineCount(); i++ {
			for _, w := range b.content.WordsOnLine(i) {
				wordDB.RemoveWord(w)
			}
		}
	}
	b.history.Clear()
	b.searchRanges = nil
	b.changes = changelog.New()

	if err := b.content.ReadFrom(r); err != nil {
		return err
	}
	b.needsSave = false

	if b.caps.UsesWordDatabase && wordDB != nil {
		for i := 0; i < b.content.LineCount(); i++ {
			for _, w := range b.content.WordsOnLine(i) {
				wordDB.AddWord(w)
			}
		}
	}
	if events != nil {
		events.BufferOpen(b.handle)
	}
	return nil
}

// SetSearch repopulates the search-range cache using matcher, which is
// handed each line's text and returns the matching ranges within it. The
// pattern engine itself (with multi-line Pending-state support per
// spec.md §9) is an external collaborator out of this package's scope.
func (b *Buffer) SetSearch(matcher func(line string) []position.Range) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.searchRanges = b.searchRanges[:0]
	for i := 0; i < b.content.LineCount(); i++ {
		for _, r := range matcher(b.content.LineText(i)) {
			r.From.Line = uint32(i)
			r.To.Line = uint32(i)
			b.searchRanges = append(b.searchRanges, r)
		}
	}
}

// SearchRanges returns the current cached search ranges.
func (b *Buffer) SearchRanges() []position.Range {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]position.Range, len(b.searchRanges))
	copy(out, b.searchRanges)
	return out
}

// toChangelogPos converts a position.Position to the changelog package's
// dependency-free Pos, so changelog stays importable from buffer without
// a cycle.
func toChangelogPos(p position.Position) changelog.Pos {
	return changelog.Pos{Line: p.Line, Column: p.Column}
}

// dispose marks the buffer dead; its slot is retained for handle
// stability by the owning Collection.
func (b *Buffer) dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alive = false
}
