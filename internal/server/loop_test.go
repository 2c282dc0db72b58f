package server

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nyxed/nyx/internal/server/pool"
	"github.com/nyxed/nyx/internal/server/process"
)

// echoEditor echoes every ConnectionOutput back to its sender, and
// requests Quit once it sees the text "quit".
type echoEditor struct {
	pool     *pool.Pool
	opened   chan ConnHandle
	quitSeen chan struct{}
}

func (e *echoEditor) Update(events []PlatformEvent) []PlatformRequest {
	var reqs []PlatformRequest
	for _, ev := range events {
		switch ev.Kind {
		case EvConnectionOpen:
			select {
			case e.opened <- ev.Conn:
			default:
			}
		case EvConnectionOutput:
			text := string(ev.Buf.Bytes())
			out := e.pool.Get()
			copy(out.WriteWithLen(len(text)), text)
			reqs = append(reqs, PlatformRequest{Kind: ReqWriteToClient, Conn: ev.Conn, Buf: out})
			e.pool.Put(ev.Buf)
			if strings.Contains(text, "quit") {
				close(e.quitSeen)
				reqs = append(reqs, PlatformRequest{Kind: ReqQuit})
			}
		}
	}
	return reqs
}

func TestLoopEchoesConnectionOutputAndQuits(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	p := pool.New(256)
	procs := process.New(p)
	ed := &echoEditor{pool: p, opened: make(chan ConnHandle, 1), quitSeen: make(chan struct{})}
	l := New(ln, p, procs, ed, 50*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-ed.opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ConnectionOpen")
	}

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}

	if _, err := conn.Write([]byte("quit")); err != nil {
		t.Fatalf("write quit: %v", err)
	}

	select {
	case <-ed.quitSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("editor never saw quit")
	}

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit after Quit request")
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
