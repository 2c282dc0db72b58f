// Package main is the entry point for the nyx terminal client.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/nyxed/nyx/internal/client/terminal"
	"github.com/nyxed/nyx/internal/session"
	"github.com/nyxed/nyx/internal/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	var sessionName string
	var printSocket bool
	flag.StringVar(&sessionName, "session", "", "session name (default: a stable hash of the working directory)")
	flag.BoolVar(&printSocket, "print-socket", false, "print the derived socket path and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "nyx - nyx editor client\n\nUsage: nyx [options]\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if sessionName == "" {
		name, err := session.DeriveName()
		if err != nil {
			fmt.Fprintf(os.Stderr, "nyx: deriving session name: %v\n", err)
			return 1
		}
		sessionName = name
	}
	socketPath := session.SocketPath(sessionName)

	if printSocket {
		fmt.Println(socketPath)
		return 0
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "nyx: stdout is not a terminal")
		return 1
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nyx: connecting to %s: %v\n", socketPath, err)
		return 1
	}
	defer conn.Close()

	backend, err := terminal.New(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nyx: initializing terminal: %v\n", err)
		return 1
	}
	defer backend.Close()

	return runLoop(conn, backend)
}

// runLoop implements the client's three-source readiness loop (spec.md
// §4.8 "Client application mirrors this..."): the server socket, the
// terminal's key/resize/paste events, and (via a signal channel) a
// resize notification delivered independently of tcell's own resize
// event, matching the teacher's signal.Notify idiom in cmd/keystorm.
func runLoop(conn net.Conn, backend *terminal.Backend) int {
	serverBytes := make(chan []byte, 8)
	go func() {
		defer close(serverBytes)
		buf := make([]byte, 64*1024)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				serverBytes <- chunk
			}
			if err != nil {
				return
			}
		}
	}()

	termEvents := make(chan terminal.Event, 8)
	go func() {
		defer close(termEvents)
		for {
			ev, ok := backend.PollEvent()
			if !ok {
				return
			}
			termEvents <- ev
		}
	}()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	defer signal.Stop(winch)

	var recv wire.ServerEventReceiver
	for {
		select {
		case data, ok := <-serverBytes:
			if !ok {
				return 0
			}
			if err := handleServerBytes(&recv, data, backend); err != nil {
				fmt.Fprintf(os.Stderr, "nyx: %v\n", err)
				return 1
			}

		case ev, ok := <-termEvents:
			if !ok {
				return 0
			}
			if err := handleTermEvent(ev, conn); err != nil {
				fmt.Fprintf(os.Stderr, "nyx: %v\n", err)
				return 1
			}

		case <-winch:
			w, h := backend.Size()
			if err := sendResize(conn, w, h); err != nil {
				return 1
			}
		}
	}
}

func handleServerBytes(recv *wire.ServerEventReceiver, data []byte, backend *terminal.Backend) error {
	it := recv.Receive(data)
	defer it.Finish()
	for {
		se, ok := it.Next()
		if !ok {
			return nil
		}
		switch se.Kind {
		case wire.ServerEventDisplay:
			if err := backend.WriteDisplay(se.Payload); err != nil {
				return err
			}
		case wire.ServerEventStdoutOutput:
			if err := backend.WriteStdout(se.Payload); err != nil {
				return err
			}
		case wire.ServerEventSuspend:
			if err := backend.Suspend(); err != nil {
				return err
			}
			if err := backend.Resume(); err != nil {
				return err
			}
		}
	}
}

func handleTermEvent(ev terminal.Event, conn net.Conn) error {
	switch ev.Kind {
	case terminal.EventKey:
		return sendClientEvent(conn, wire.ClientEvent{
			Kind: wire.ClientEventKey, Target: wire.TargetSender, Key: ev.Key,
		})
	case terminal.EventResize:
		return sendResize(conn, ev.Width, ev.Height)
	case terminal.EventPaste:
		return nil
	}
	return nil
}

func sendResize(conn net.Conn, w, h int) error {
	return sendClientEvent(conn, wire.ClientEvent{
		Kind: wire.ClientEventResize, Target: wire.TargetSender,
		Width: uint16(w), Height: uint16(h),
	})
}

func sendClientEvent(conn net.Conn, ce wire.ClientEvent) error {
	buf := wire.EncodeClientEvent(nil, ce)
	_, err := conn.Write(buf)
	return err
}
