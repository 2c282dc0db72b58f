// Package wire implements the key parse/format textual notation and the
// binary length-prefixed framing of ClientEvent/ServerEvent values
// (spec.md §4.7), including the per-connection Receiver that reassembles
// partially-delivered frames.
//
// Key parsing is grounded on internal/input/key/parser.go's Parse
// dispatch structure (Vim-style <...> notation, an alias table, a
// single-rune fallback), adapted to spec.md's simpler Key union (no
// combined Ctrl+Shift+Alt modifiers — only a bare Ctrl(char) or Alt(char)).
// Binary framing and the Receiver's partial-read/finish()-or-panic
// contract are grounded on original_source/pepper/src/events.rs's
// ClientEventReceiver/ClientEventIter, since the teacher has no binary
// framing precedent (only internal/lsp/transport.go's text-header framing).
package wire

import "fmt"

// Kind enumerates the Key tagged union's variants.
type Kind uint8

const (
	KeyNone Kind = iota
	KeyBackspace
	KeyEnter
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyTab
	KeyDelete
	KeyEsc
	KeyF
	KeyChar
	KeyCtrl
	KeyAlt
)

// Key is a tagged union over the key variants spec.md §4.7 describes.
// Char/Ctrl/Alt carry Rune; F carries N.
type Key struct {
	Kind Kind
	Rune rune
	N    int
}

var plainNames = map[Kind]string{
	KeyNone:     "none",
	KeyBackspace: "backspace",
	KeyEnter:    "enter",
	KeyLeft:     "left",
	KeyRight:    "right",
	KeyUp:       "up",
	KeyDown:     "down",
	KeyHome:     "home",
	KeyEnd:      "end",
	KeyPageUp:   "pageup",
	KeyPageDown: "pagedown",
	KeyTab:      "tab",
	KeyDelete:   "delete",
	KeyEsc:      "esc",
}

var namesToKind = func() map[string]Kind {
	m := make(map[string]Kind, len(plainNames))
	for k, v := range plainNames {
		m[v] = k
	}
	return m
}()

// Format renders k in the canonical textual notation (spec.md §4.7):
// "<backspace>", "<space>", "<c-a>", "<a-9>", "<f12>", "<less>", or a bare
// printable char.
func Format(k Key) string {
	switch k.Kind {
	case KeyChar:
		switch k.Rune {
		case ' ':
			return "<space>"
		case '<':
			return "<less>"
		case '>':
			return "<greater>"
		default:
			return string(k.Rune)
		}
	case KeyCtrl:
		return fmt.Sprintf("<c-%c>", k.Rune)
	case KeyAlt:
		return fmt.Sprintf("<a-%c>", k.Rune)
	case KeyF:
		return fmt.Sprintf("<f%d>", k.N)
	default:
		if name, ok := plainNames[k.Kind]; ok {
			return "<" + name + ">"
		}
		return "<none>"
	}
}
