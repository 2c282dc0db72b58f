package editor

import (
	"testing"

	"github.com/nyxed/nyx/internal/applog"
	"github.com/nyxed/nyx/internal/engine/worddb"
	"github.com/nyxed/nyx/internal/server"
	"github.com/nyxed/nyx/internal/server/buffers"
	"github.com/nyxed/nyx/internal/server/events"
	"github.com/nyxed/nyx/internal/server/pool"
	"github.com/nyxed/nyx/internal/wire"
)

func newTestEditor() (*Editor, *pool.Pool) {
	p := pool.New(256)
	e := New(buffers.New(), worddb.New(), events.New(), p, 8, applog.New())
	return e, p
}

func frameBytes(ce wire.ClientEvent) *pool.Buffer {
	data := wire.EncodeClientEvent(nil, ce)
	p := pool.New(256)
	buf := p.Get()
	dst := buf.WriteWithLen(len(data))
	copy(dst, data)
	return buf
}

func TestConnectionOpenThenKeyInsertsChar(t *testing.T) {
	e, _ := newTestEditor()

	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})

	keyBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventKey, Target: wire.TargetSender,
		Key: wire.Key{Kind: wire.KeyChar, Rune: 'h'},
	})
	reqs := e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: keyBuf}})

	if len(reqs) != 1 || reqs[0].Kind != server.ReqWriteToClient {
		t.Fatalf("expected one ReqWriteToClient, got %+v", reqs)
	}
	if got := string(reqs[0].Buf.Bytes()); got != "h\n" {
		t.Fatalf("expected rendered buffer content %q, got %q", "h\n", got)
	}
}

func TestCtrlQRequestsQuit(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})

	keyBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventKey, Target: wire.TargetSender,
		Key: wire.Key{Kind: wire.KeyCtrl, Rune: 'q'},
	})
	reqs := e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: keyBuf}})

	if len(reqs) != 1 || reqs[0].Kind != server.ReqQuit {
		t.Fatalf("expected one ReqQuit, got %+v", reqs)
	}
}

func TestCommandQRequestsQuit(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})

	cmdBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventCommand, Target: wire.TargetSender, Text: "q",
	})
	reqs := e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: cmdBuf}})

	if len(reqs) != 1 || reqs[0].Kind != server.ReqQuit {
		t.Fatalf("expected one ReqQuit, got %+v", reqs)
	}
}

func TestIdleFlipsEventQueueWithoutPanicking(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})
	e.Update([]server.PlatformEvent{{Kind: server.EvIdle}})
}

func TestHelpCommandLoadsMainPage(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})

	cmdBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventCommand, Target: wire.TargetSender, Text: "help",
	})
	reqs := e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: cmdBuf}})

	if len(reqs) != 1 || reqs[0].Kind != server.ReqWriteToClient {
		t.Fatalf("expected one ReqWriteToClient, got %+v", reqs)
	}
	if len(reqs[0].Buf.Bytes()) == 0 {
		t.Fatalf("expected the main help page to render non-empty content")
	}
}

func TestSuspendCommandSendsSuspendEventAndClearsOnNextInput(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})

	cmdBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventCommand, Target: wire.TargetSender, Text: "suspend",
	})
	reqs := e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: cmdBuf}})

	if len(reqs) != 1 || reqs[0].Kind != server.ReqWriteToClient {
		t.Fatalf("expected one ReqWriteToClient carrying the Suspend event, got %+v", reqs)
	}
	if !e.conns[1].suspended {
		t.Fatalf("expected connection to be marked suspended")
	}

	keyBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventKey, Target: wire.TargetSender,
		Key: wire.Key{Kind: wire.KeyChar, Rune: 'x'},
	})
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: keyBuf}})
	if e.conns[1].suspended {
		t.Fatalf("expected suspended to clear on the next client input")
	}
}

func TestBackRestoresPositionAfterHelpJump(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})

	keyBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventKey, Target: wire.TargetSender,
		Key: wire.Key{Kind: wire.KeyChar, Rune: 'h'},
	})
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: keyBuf}})

	helpBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventCommand, Target: wire.TargetSender, Text: "help",
	})
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: helpBuf}})

	if len(e.conns[1].navigationHistory) != 1 {
		t.Fatalf("expected the pre-jump position to be recorded, got %+v", e.conns[1].navigationHistory)
	}

	backBuf := frameBytes(wire.ClientEvent{
		Kind: wire.ClientEventCommand, Target: wire.TargetSender, Text: "back",
	})
	reqs := e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOutput, Conn: 1, Buf: backBuf}})

	if len(reqs) != 1 || reqs[0].Kind != server.ReqWriteToClient {
		t.Fatalf("expected one ReqWriteToClient, got %+v", reqs)
	}
	if len(e.conns[1].navigationHistory) != 0 {
		t.Fatalf("expected navigation history to be popped, got %+v", e.conns[1].navigationHistory)
	}
	if e.conns[1].cursors.Main().Position.Column != 1 {
		t.Fatalf("expected cursor restored to column 1, got %+v", e.conns[1].cursors.Main().Position)
	}
}

func TestConnectionCloseForgetsSession(t *testing.T) {
	e, _ := newTestEditor()
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionOpen, Conn: 1}})
	e.Update([]server.PlatformEvent{{Kind: server.EvConnectionClose, Conn: 1}})

	if _, ok := e.conns[1]; ok {
		t.Fatalf("expected connection state to be forgotten after close")
	}
}
