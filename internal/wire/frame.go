package wire

import (
	"encoding/binary"
	"fmt"
)

// TargetClient selects which client a routed ClientEvent applies to.
type TargetClient uint8

const (
	TargetSender  TargetClient = 0
	TargetFocused TargetClient = 1
)

// ClientEvent discriminants, binary framing, host byte order little-endian
// (spec.md §4.7).
const (
	ClientEventKey        uint8 = 0
	ClientEventResize     uint8 = 1
	ClientEventCommand    uint8 = 2
	ClientEventStdinInput uint8 = 3
)

// ClientEvent is a client->server wire event.
type ClientEvent struct {
	Kind    uint8
	Target  TargetClient
	Key     Key
	Width   uint16
	Height  uint16
	Text    string
	Bytes   []byte
}

// ServerEvent discriminants (spec.md §4.7).
const (
	ServerEventDisplay       uint8 = 0
	ServerEventSuspend       uint8 = 1
	ServerEventStdoutOutput  uint8 = 2
)

// ServerEvent is a server->client wire event.
type ServerEvent struct {
	Kind    uint8
	Payload []byte
}

func putU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putKey(buf []byte, k Key) []byte {
	buf = append(buf, byte(k.Kind))
	buf = putU32(buf, uint32(k.Rune))
	buf = putU32(buf, uint32(k.N))
	return buf
}

func getKey(buf []byte) (Key, []byte, error) {
	if len(buf) < 9 {
		return Key{}, buf, errUnexpectedEOF
	}
	k := Key{Kind: Kind(buf[0]), Rune: rune(binary.LittleEndian.Uint32(buf[1:5])), N: int(binary.LittleEndian.Uint32(buf[5:9]))}
	return k, buf[9:], nil
}

// EncodeClientEvent appends e's wire representation to buf and returns it.
func EncodeClientEvent(buf []byte, e ClientEvent) []byte {
	buf = append(buf, e.Kind)
	switch e.Kind {
	case ClientEventKey:
		buf = append(buf, byte(e.Target))
		buf = putKey(buf, e.Key)
	case ClientEventResize:
		buf = putU16(buf, e.Width)
		buf = putU16(buf, e.Height)
	case ClientEventCommand:
		buf = append(buf, byte(e.Target))
		buf = putU32(buf, uint32(len(e.Text)))
		buf = append(buf, e.Text...)
	case ClientEventStdinInput:
		buf = append(buf, byte(e.Target))
		buf = putU32(buf, uint32(len(e.Bytes)))
		buf = append(buf, e.Bytes...)
	}
	return buf
}

// EncodeServerEvent appends e's wire representation to buf. Display and
// StdoutOutput use the specialised header (1-byte discriminant, 4-byte
// little-endian payload length, then payload); Suspend is
// discriminant-only.
func EncodeServerEvent(buf []byte, e ServerEvent) []byte {
	buf = append(buf, e.Kind)
	switch e.Kind {
	case ServerEventDisplay, ServerEventStdoutOutput:
		buf = putU32(buf, uint32(len(e.Payload)))
		buf = append(buf, e.Payload...)
	case ServerEventSuspend:
		// discriminant only
	}
	return buf
}

var errUnexpectedEOF = fmt.Errorf("wire: unexpected end of buffer")

// decodeClientEvent attempts to decode one ClientEvent from buf, returning
// the remaining tail. Returns errUnexpectedEOF if buf does not yet hold a
// complete event.
func decodeClientEvent(buf []byte) (ClientEvent, []byte, error) {
	if len(buf) < 1 {
		return ClientEvent{}, buf, errUnexpectedEOF
	}
	kind := buf[0]
	rest := buf[1:]
	switch kind {
	case ClientEventKey:
		if len(rest) < 1 {
			return ClientEvent{}, buf, errUnexpectedEOF
		}
		target := TargetClient(rest[0])
		k, rest2, err := getKey(rest[1:])
		if err != nil {
			return ClientEvent{}, buf, err
		}
		return ClientEvent{Kind: kind, Target: target, Key: k}, rest2, nil
	case ClientEventResize:
		if len(rest) < 4 {
			return ClientEvent{}, buf, errUnexpectedEOF
		}
		w := binary.LittleEndian.Uint16(rest[0:2])
		h := binary.LittleEndian.Uint16(rest[2:4])
		return ClientEvent{Kind: kind, Width: w, Height: h}, rest[4:], nil
	case ClientEventCommand:
		return decodeTargetAndBytes(kind, rest, true)
	case ClientEventStdinInput:
		return decodeTargetAndBytes(kind, rest, false)
	default:
		return ClientEvent{}, buf, fmt.Errorf("wire: unknown ClientEvent discriminant %d", kind)
	}
}

func decodeTargetAndBytes(kind uint8, rest []byte, asText bool) (ClientEvent, []byte, error) {
	if len(rest) < 1 {
		return ClientEvent{}, rest, errUnexpectedEOF
	}
	target := TargetClient(rest[0])
	rest = rest[1:]
	if len(rest) < 4 {
		return ClientEvent{}, rest, errUnexpectedEOF
	}
	n := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4:]
	if uint32(len(rest)) < n {
		return ClientEvent{}, rest, errUnexpectedEOF
	}
	payload := rest[:n]
	rest = rest[n:]
	e := ClientEvent{Kind: kind, Target: target}
	if asText {
		e.Text = string(payload)
	} else {
		e.Bytes = append([]byte(nil), payload...)
	}
	return e, rest, nil
}

func decodeServerEvent(buf []byte) (ServerEvent, []byte, error) {
	if len(buf) < 1 {
		return ServerEvent{}, buf, errUnexpectedEOF
	}
	kind := buf[0]
	rest := buf[1:]
	switch kind {
	case ServerEventDisplay, ServerEventStdoutOutput:
		if len(rest) < 4 {
			return ServerEvent{}, buf, errUnexpectedEOF
		}
		n := binary.LittleEndian.Uint32(rest[0:4])
		rest = rest[4:]
		if uint32(len(rest)) < n {
			return ServerEvent{}, buf, errUnexpectedEOF
		}
		return ServerEvent{Kind: kind, Payload: append([]byte(nil), rest[:n]...)}, rest[n:], nil
	case ServerEventSuspend:
		return ServerEvent{Kind: kind}, rest, nil
	default:
		return ServerEvent{}, buf, fmt.Errorf("wire: unknown ServerEvent discriminant %d", kind)
	}
}
