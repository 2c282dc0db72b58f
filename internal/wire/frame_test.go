package wire

import "testing"

func TestScenarioDFragmentation(t *testing.T) {
	var all []byte
	const n = 100
	for i := 0; i < n; i++ {
		all = EncodeClientEvent(all, ClientEvent{Kind: ClientEventKey, Target: TargetSender, Key: Key{Kind: KeyChar, Rune: 'x'}})
	}

	var recv ClientEventReceiver
	got := 0

	it := recv.Receive(all[:512])
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		got++
	}
	it.Finish()

	it2 := recv.Receive(all[512:])
	for {
		_, ok := it2.Next()
		if !ok {
			break
		}
		got++
	}
	it2.Finish()

	if got != n {
		t.Fatalf("expected %d events, got %d", n, got)
	}
	if len(recv.buf) != 0 {
		t.Errorf("expected 0 leftover bytes, got %d", len(recv.buf))
	}
}

func TestFragmentationArbitraryChunks(t *testing.T) {
	var all []byte
	const n = 37
	for i := 0; i < n; i++ {
		all = EncodeClientEvent(all, ClientEvent{Kind: ClientEventResize, Width: uint16(i), Height: uint16(i * 2)})
	}

	chunkSizes := []int{1, 3, 7, 11, 2}
	var recv ClientEventReceiver
	got := 0
	pos := 0
	ci := 0
	for pos < len(all) {
		size := chunkSizes[ci%len(chunkSizes)]
		ci++
		end := pos + size
		if end > len(all) {
			end = len(all)
		}
		it := recv.Receive(all[pos:end])
		for {
			_, ok := it.Next()
			if !ok {
				break
			}
			got++
		}
		it.Finish()
		pos = end
	}
	if got != n {
		t.Fatalf("expected %d events, got %d", n, got)
	}
}

func TestServerEventFraming(t *testing.T) {
	var buf []byte
	buf = EncodeServerEvent(buf, ServerEvent{Kind: ServerEventDisplay, Payload: []byte("hello")})
	buf = EncodeServerEvent(buf, ServerEvent{Kind: ServerEventSuspend})
	buf = EncodeServerEvent(buf, ServerEvent{Kind: ServerEventStdoutOutput, Payload: []byte("out")})

	var recv ServerEventReceiver
	it := recv.Receive(buf)
	var events []ServerEvent
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		events = append(events, e)
	}
	it.Finish()

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if string(events[0].Payload) != "hello" || events[1].Kind != ServerEventSuspend || string(events[2].Payload) != "out" {
		t.Errorf("unexpected decoded events: %+v", events)
	}
}
