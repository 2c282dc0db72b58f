// Package editor composes the buffer/cursor/history/word-index/event-queue
// collaborators into the concrete server.Editor the Server Event Loop
// drives each tick (spec.md §4.8's Editor.Update contract).
//
// Grounded on internal/app/app.go's composition-root shape (one struct
// gathering every subsystem, constructed via an Options-style
// constructor) generalized from its 60fps render loop to the
// event-driven Update(events) []requests contract internal/server/loop.go
// defines; key dispatch itself is new, since modal command sets are out
// of this module's scope (spec.md §1 Non-goals) — each connection gets a
// plain single-cursor-capable text buffer with cursor motion, insert,
// delete, save, and process-spawn commands, enough to exercise every
// named CORE component without inventing a modal UX.
package editor

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nyxed/nyx/internal/applog"
	"github.com/nyxed/nyx/internal/engine/buffer"
	"github.com/nyxed/nyx/internal/engine/cursor"
	"github.com/nyxed/nyx/internal/engine/position"
	"github.com/nyxed/nyx/internal/engine/worddb"
	"github.com/nyxed/nyx/internal/help"
	"github.com/nyxed/nyx/internal/plugin"
	"github.com/nyxed/nyx/internal/server"
	"github.com/nyxed/nyx/internal/server/buffers"
	"github.com/nyxed/nyx/internal/server/events"
	"github.com/nyxed/nyx/internal/server/pool"
	"github.com/nyxed/nyx/internal/server/process"
	"github.com/nyxed/nyx/internal/wire"
)

// connState is the per-connection session: its own cursor collection and
// partial-frame reassembly buffer, all editing a buffer shared by every
// connected client (spec.md §4's multi-client architecture).
//
// Fields mirror original_source/src/client.rs's Client{viewport_size,
// scroll, view, navigation_history, suspended} (spec.md §3's ClientHandle
// data model), minus the custom-view-renderer variant of ClientView, which
// has no counterpart here since every connection views the one shared text
// buffer.
type connState struct {
	recv    wire.ClientEventReceiver
	cursors *cursor.Collection
	width   int
	height  int

	// scroll is the top-left position of this connection's viewport into
	// view, in buffer coordinates.
	scroll position.Position
	// view is the buffer this connection is currently displaying.
	view buffer.Handle
	// navigationHistory is the stack of positions left behind by a jump
	// (e.g. into a help page), most recent last.
	navigationHistory []position.Position
	// suspended is set once a Suspend ServerEvent has been sent to this
	// client and cleared on its next input, per spec.md §6's "treated as
	// an out-of-band directive... the server continues to run".
	suspended bool
}

// Editor implements server.Editor over this module's buffer/cursor/
// history/word-index/event-queue collaborators.
type Editor struct {
	mu sync.Mutex

	bufs   *buffers.Collection
	wordDB *worddb.DB
	queue  *events.Queue
	sink   events.Sink
	log    *applog.Logger
	pool   *pool.Pool
	tabSize int
	plugins *plugin.Synchroniser

	mainBuf    buffer.Handle
	haveMain   bool
	conns      map[server.ConnHandle]*connState
	spawnSeq   int
}

// New constructs an Editor. p is the pool the loop itself uses for
// pooled write buffers, shared here so Display payloads are allocated
// the same way connection reads are.
func New(bufs *buffers.Collection, wordDB *worddb.DB, queue *events.Queue, p *pool.Pool, tabSize int, log *applog.Logger) *Editor {
	return &Editor{
		bufs:    bufs,
		wordDB:  wordDB,
		queue:   queue,
		sink:    events.Sink{Queue: queue},
		pool:    p,
		tabSize: tabSize,
		log:     log,
		conns:   make(map[server.ConnHandle]*connState),
	}
}

// SetPlugins attaches the change-log synchroniser (SPEC_FULL.md §4.12)
// polled on every Idle tick. Optional; a nil Synchroniser is never set.
func (e *Editor) SetPlugins(s *plugin.Synchroniser) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plugins = s
}

var _ server.Editor = (*Editor)(nil)

// Update implements server.Editor.
func (e *Editor) Update(evs []server.PlatformEvent) []server.PlatformRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	var reqs []server.PlatformRequest
	for _, ev := range evs {
		switch ev.Kind {
		case server.EvConnectionOpen:
			e.onOpen(ev.Conn)

		case server.EvConnectionOutput:
			reqs = append(reqs, e.onConnOutput(ev.Conn, ev.Buf)...)

		case server.EvConnectionClose:
			delete(e.conns, ev.Conn)

		case server.EvProcessOutput:
			e.bufs.FeedOutput(ev.ProcTag, ev.Buf.Bytes(), e.wordDB, e.sink)
			reqs = append(reqs, e.redrawAll()...)

		case server.EvProcessExit:
			e.bufs.FinishInsertProcess(ev.ProcTag, e.wordDB, e.sink)
			reqs = append(reqs, e.redrawAll()...)

		case server.EvIdle:
			e.queue.Flip()
			if e.plugins != nil {
				e.plugins.Poll()
			}
		}
	}
	return reqs
}

func (e *Editor) onOpen(h server.ConnHandle) {
	if !e.haveMain {
		b := e.bufs.AddNew(buffer.WithCapabilities(buffer.Capabilities{
			CanSave: true, HasHistory: true, UsesWordDatabase: true,
		}))
		e.sink.BufferOpen(b.Handle())
		e.mainBuf = b.Handle()
		e.haveMain = true
	}
	e.conns[h] = &connState{cursors: cursor.NewCollection(), view: e.mainBuf}
}

// onConnOutput decodes every framed ClientEvent in buf, applies it, and
// returns the resulting requests.
func (e *Editor) onConnOutput(h server.ConnHandle, buf *pool.Buffer) []server.PlatformRequest {
	cs, ok := e.conns[h]
	if !ok {
		return nil
	}

	var reqs []server.PlatformRequest
	it := cs.recv.Receive(buf.Bytes())
	for {
		ce, ok := it.Next()
		if !ok {
			break
		}
		reqs = append(reqs, e.applyClientEvent(h, cs, ce)...)
	}
	it.Finish()
	return reqs
}

func (e *Editor) applyClientEvent(h server.ConnHandle, cs *connState, ce wire.ClientEvent) []server.PlatformRequest {
	cs.suspended = false

	switch ce.Kind {
	case wire.ClientEventKey:
		return e.applyKey(h, cs, ce.Key)
	case wire.ClientEventResize:
		cs.width, cs.height = int(ce.Width), int(ce.Height)
		return nil
	case wire.ClientEventCommand:
		return e.applyCommand(h, cs, ce.Text)
	case wire.ClientEventStdinInput:
		return nil
	default:
		return nil
	}
}

func (e *Editor) applyKey(h server.ConnHandle, cs *connState, k wire.Key) []server.PlatformRequest {
	b := e.bufs.Get(e.mainBuf)

	switch {
	case k.Kind == wire.KeyCtrl && k.Rune == 'q':
		return []server.PlatformRequest{{Kind: server.ReqQuit}}

	case k.Kind == wire.KeyCtrl && k.Rune == 's':
		_ = b.SaveToFile(discard{}, "", e.sink)
		return e.redrawAll()

	case k.Kind == wire.KeyChar:
		g := cs.cursors.MutGuard()
		pos := g.MainCursor().Position
		g.Release()
		b.InsertText(e.wordDB, pos, string(k.Rune), e.sink)
		e.advanceMain(cs, 0, 1)
		return e.redrawAll()

	case k.Kind == wire.KeyEnter:
		g := cs.cursors.MutGuard()
		pos := g.MainCursor().Position
		g.Release()
		b.InsertText(e.wordDB, pos, "\n", e.sink)
		e.advanceMain(cs, 1, -int(pos.Column))
		return e.redrawAll()

	case k.Kind == wire.KeyBackspace:
		g := cs.cursors.MutGuard()
		pos := g.MainCursor().Position
		g.Release()
		if pos.Column == 0 && pos.Line == 0 {
			return nil
		}
		from := pos
		if from.Column > 0 {
			from.Column--
		} else {
			from.Line--
			from.Column = uint32(b.Content().LineLen(int(from.Line)))
		}
		b.DeleteRange(e.wordDB, position.Range{From: from, To: pos}, e.sink)
		e.setMain(cs, from)
		return e.redrawAll()

	case k.Kind == wire.KeyLeft:
		e.moveMain(cs, b, 0, -1)
	case k.Kind == wire.KeyRight:
		e.moveMain(cs, b, 0, 1)
	case k.Kind == wire.KeyUp:
		e.moveMain(cs, b, -1, 0)
	case k.Kind == wire.KeyDown:
		e.moveMain(cs, b, 1, 0)
	case k.Kind == wire.KeyHome:
		e.setMainColumn(cs, 0)
	case k.Kind == wire.KeyEnd:
		g := cs.cursors.MutGuard()
		pos := g.MainCursor().Position
		pos.Column = uint32(b.Content().LineLen(int(pos.Line)))
		g.MainCursor().Position = pos
		g.MainCursor().Anchor = pos
		g.Release()
	}
	return nil
}

func (e *Editor) applyCommand(h server.ConnHandle, cs *connState, text string) []server.PlatformRequest {
	switch {
	case text == "q":
		return []server.PlatformRequest{{Kind: server.ReqQuit}}
	case strings.HasPrefix(text, "w "):
		path := strings.TrimSpace(strings.TrimPrefix(text, "w "))
		f, err := os.Create(path)
		if err != nil {
			if e.log != nil {
				e.log.Error("save failed", "path", path, "err", err)
			}
			return nil
		}
		defer f.Close()
		b := e.bufs.Get(e.mainBuf)
		_ = b.SaveToFile(f, path, e.sink)
		return e.redrawAll()
	case strings.HasPrefix(text, "r "):
		return e.spawnInsert(h, cs, strings.TrimSpace(strings.TrimPrefix(text, "r ")))
	case text == "help" || strings.HasPrefix(text, "help "):
		return e.openHelp(cs, strings.TrimSpace(strings.TrimPrefix(text, "help")))
	case strings.HasPrefix(text, "e help://"):
		return e.loadHelpPage(cs, strings.TrimPrefix(text, "e help://"))
	case text == "suspend":
		return e.suspendClient(h, cs)
	case text == "back":
		return e.navigateBack(cs)
	}
	return nil
}

// navigateBack pops cs's navigation history and restores the main cursor to
// that position, per original_source/src/client.rs's NavigationHistory
// (spec.md §3's per-client navigation_history). A no-op if nothing was
// recorded.
func (e *Editor) navigateBack(cs *connState) []server.PlatformRequest {
	n := len(cs.navigationHistory)
	if n == 0 {
		return nil
	}
	pos := cs.navigationHistory[n-1]
	cs.navigationHistory = cs.navigationHistory[:n-1]
	e.setMain(cs, pos)
	return e.redrawAll()
}

// suspendClient marks cs suspended and sends the out-of-band Suspend
// ServerEvent (spec.md §4.7, §6) so the client performs its platform
// suspend sequence; the server loop itself keeps running.
func (e *Editor) suspendClient(h server.ConnHandle, cs *connState) []server.PlatformRequest {
	cs.suspended = true
	data := wire.EncodeServerEvent(nil, wire.ServerEvent{Kind: wire.ServerEventSuspend})
	buf := e.pool.Get()
	dst := buf.WriteWithLen(len(data))
	copy(dst, data)
	return []server.PlatformRequest{{Kind: server.ReqWriteToClient, Conn: h, Buf: buf}}
}

// openHelp resolves a ":help [keyword]" command: with no keyword it opens
// the well-known "main" page; with one, it searches the catalog (spec.md
// §6) and opens the best match's page.
func (e *Editor) openHelp(cs *connState, keyword string) []server.PlatformRequest {
	name := "main"
	if keyword != "" {
		if m, ok := help.Search(keyword); ok {
			name = m.Page
		}
	}
	return e.loadHelpPage(cs, name)
}

// loadHelpPage discards the main buffer's content and replaces it with a
// help:// page, per spec.md §4.1's discard_and_reload_from_file note that
// a help-scheme path is read from the help content provider rather than
// the filesystem. The jump is recorded in cs.navigationHistory so ":back"
// can return the cursor to where it was.
func (e *Editor) loadHelpPage(cs *connState, name string) []server.PlatformRequest {
	content, ok := help.Page(name)
	if !ok {
		return nil
	}
	b := e.bufs.Get(e.mainBuf)
	cs.navigationHistory = append(cs.navigationHistory, cs.cursors.Main().Position)
	if err := b.DiscardAndReloadFromFile(strings.NewReader(content), e.wordDB, e.sink); err != nil {
		if e.log != nil {
			e.log.Error("loading help page", "page", name, "err", err)
		}
		cs.navigationHistory = cs.navigationHistory[:len(cs.navigationHistory)-1]
		return nil
	}
	return e.redrawAll()
}

// spawnInsert requests a process whose stdout streams into the main
// buffer at the current main cursor position (spec.md §4.5's insert-
// process sub-feature).
func (e *Editor) spawnInsert(h server.ConnHandle, cs *connState, shellCmd string) []server.PlatformRequest {
	g := cs.cursors.MutGuard()
	pos := g.MainCursor().Position
	g.Release()

	e.spawnSeq++
	tag := fmt.Sprintf("conn%d-insert%d", h, e.spawnSeq)
	e.bufs.StartInsertProcess(tag, e.mainBuf, pos, nil)

	return []server.PlatformRequest{{
		Kind:     server.ReqSpawnProcess,
		SpawnTag: tag,
		SpawnCmd: process.Command{Path: "/bin/sh", Args: []string{"-c", shellCmd}, BufLen: 64 * 1024},
	}}
}

// redrawAll renders the main buffer's content as an opaque Display
// payload (spec.md §1 Non-goals: "the server emits opaque display byte
// blobs the client writes verbatim") and fans it out to every connection.
func (e *Editor) redrawAll() []server.PlatformRequest {
	b := e.bufs.Get(e.mainBuf)
	text := b.Content().Text()

	reqs := make([]server.PlatformRequest, 0, len(e.conns))
	for h := range e.conns {
		buf := e.pool.Get()
		dst := buf.WriteWithLen(len(text))
		copy(dst, text)
		reqs = append(reqs, server.PlatformRequest{Kind: server.ReqWriteToClient, Conn: h, Buf: buf})
	}
	return reqs
}

func (e *Editor) moveMain(cs *connState, b *buffer.Buffer, dLine, dCol int) {
	g := cs.cursors.MutGuard()
	g.SaveDisplayDistances(b.Content(), e.tabSize)
	pos := g.MainCursor().Position
	line := int(pos.Line) + dLine
	if line < 0 {
		line = 0
	}
	if line >= b.Content().LineCount() {
		line = b.Content().LineCount() - 1
	}
	col := int(pos.Column) + dCol
	if col < 0 {
		col = 0
	}
	if max := b.Content().LineLen(line); col > max {
		col = max
	}
	np := position.Position{Line: uint32(line), Column: uint32(col)}
	g.MainCursor().Position = np
	g.MainCursor().Anchor = np
	g.Release()
}

func (e *Editor) advanceMain(cs *connState, dLine, dCol int) {
	g := cs.cursors.MutGuard()
	pos := g.MainCursor().Position
	np := position.Position{Line: uint32(int(pos.Line) + dLine), Column: uint32(int(pos.Column) + dCol)}
	g.MainCursor().Position = np
	g.MainCursor().Anchor = np
	g.Release()
}

func (e *Editor) setMain(cs *connState, pos position.Position) {
	g := cs.cursors.MutGuard()
	g.MainCursor().Position = pos
	g.MainCursor().Anchor = pos
	g.Release()
}

func (e *Editor) setMainColumn(cs *connState, col uint32) {
	g := cs.cursors.MutGuard()
	pos := g.MainCursor().Position
	pos.Column = col
	g.MainCursor().Position = pos
	g.MainCursor().Anchor = pos
	g.Release()
}

// discard is an io.Writer that drops everything, used for Ctrl-S's
// "mark saved without a path" shortcut (a real save goes through the
// Command ":w <path>" path, which has a destination).
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
