// Package terminal implements the client-side terminal backend
// (SPEC_FULL.md §4.15): it captures raw key/resize/paste input via
// tcell, translates it into this module's wire.Key notation, and writes
// Display/StdoutOutput payload bytes from the server straight to the
// terminal.
//
// Grounded on internal/renderer/backend/backend.go's Backend interface
// and NullBackend test double, and internal/renderer/backend/terminal.go
// for the tcell wiring; narrowed from a full cell-grid renderer (the
// teacher draws locally from a Cell buffer) to a thin client that only
// decodes input and passes already-rendered server output straight
// through, per spec.md §6: "Clients write Display payloads to the
// terminal verbatim."
package terminal

import (
	"io"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/nyxed/nyx/internal/wire"
)

// EventKind distinguishes the client-side input events spec.md §4.8's
// three-source client loop can produce.
type EventKind int

const (
	EventKey EventKind = iota
	EventResize
	EventPaste
)

// Event is one decoded client-side input event.
type Event struct {
	Kind   EventKind
	Key    wire.Key
	Width  int
	Height int
	Paste  string
}

// Backend owns the tcell screen used for input capture and suspend/
// resume, and the raw writer server output is copied to verbatim.
type Backend struct {
	screen tcell.Screen
	out    io.Writer
}

// New constructs a Backend. out receives Display and StdoutOutput
// payload bytes verbatim; it is typically the process's own stdout, the
// same fd tcell itself is driving raw-mode input from.
func New(out io.Writer) (*Backend, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return &Backend{screen: screen, out: out}, nil
}

// Close restores the terminal to its original mode.
func (b *Backend) Close() { b.screen.Fini() }

// Size returns the current terminal dimensions.
func (b *Backend) Size() (width, height int) { return b.screen.Size() }

// WriteDisplay writes a server Display payload verbatim.
func (b *Backend) WriteDisplay(data []byte) error {
	_, err := b.out.Write(data)
	return err
}

// WriteStdout writes a server StdoutOutput payload verbatim, per
// spec.md §6.
func (b *Backend) WriteStdout(data []byte) error {
	_, err := b.out.Write(data)
	return err
}

// Suspend performs the platform suspend sequence: restore cooked mode
// and raise the stop signal, per spec.md §5.
func (b *Backend) Suspend() error {
	if err := b.screen.Suspend(); err != nil {
		return err
	}
	return syscall.Kill(syscall.Getpid(), syscall.SIGTSTP)
}

// Resume re-enters raw mode after a suspend; the caller must request a
// full redraw afterward, per spec.md §6.
func (b *Backend) Resume() error { return b.screen.Resume() }

// PollEvent blocks for the next decoded input event. It returns ok=false
// once the underlying screen has been finalized.
func (b *Backend) PollEvent() (Event, bool) {
	for {
		ev := b.screen.PollEvent()
		if ev == nil {
			return Event{}, false
		}
		switch e := ev.(type) {
		case *tcell.EventKey:
			return Event{Kind: EventKey, Key: translateKey(e)}, true
		case *tcell.EventResize:
			w, h := e.Size()
			return Event{Kind: EventResize, Width: w, Height: h}, true
		case *tcell.EventPaste:
			if e.Start() {
				continue
			}
			return Event{Kind: EventPaste}, true
		default:
			continue
		}
	}
}

func translateKey(e *tcell.EventKey) wire.Key {
	mod := e.Modifiers()
	switch e.Key() {
	case tcell.KeyRune:
		r := e.Rune()
		if mod&tcell.ModCtrl != 0 {
			return wire.Key{Kind: wire.KeyCtrl, Rune: r}
		}
		if mod&tcell.ModAlt != 0 {
			return wire.Key{Kind: wire.KeyAlt, Rune: r}
		}
		return wire.Key{Kind: wire.KeyChar, Rune: r}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return wire.Key{Kind: wire.KeyBackspace}
	case tcell.KeyEnter:
		return wire.Key{Kind: wire.KeyEnter}
	case tcell.KeyTab:
		return wire.Key{Kind: wire.KeyTab}
	case tcell.KeyEsc:
		return wire.Key{Kind: wire.KeyEsc}
	case tcell.KeyDelete:
		return wire.Key{Kind: wire.KeyDelete}
	case tcell.KeyUp:
		return wire.Key{Kind: wire.KeyUp}
	case tcell.KeyDown:
		return wire.Key{Kind: wire.KeyDown}
	case tcell.KeyLeft:
		return wire.Key{Kind: wire.KeyLeft}
	case tcell.KeyRight:
		return wire.Key{Kind: wire.KeyRight}
	case tcell.KeyHome:
		return wire.Key{Kind: wire.KeyHome}
	case tcell.KeyEnd:
		return wire.Key{Kind: wire.KeyEnd}
	case tcell.KeyPgUp:
		return wire.Key{Kind: wire.KeyPageUp}
	case tcell.KeyPgDn:
		return wire.Key{Kind: wire.KeyPageDown}
	default:
		if k := e.Key(); k >= tcell.KeyF1 && k <= tcell.KeyF64 {
			return wire.Key{Kind: wire.KeyF, N: int(k-tcell.KeyF1) + 1}
		}
		if e.Key() == tcell.KeyCtrlSpace {
			return wire.Key{Kind: wire.KeyCtrl, Rune: ' '}
		}
		return wire.Key{Kind: wire.KeyChar, Rune: e.Rune()}
	}
}
