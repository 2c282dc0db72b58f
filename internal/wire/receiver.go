package wire

import "runtime"

// ClientEventReceiver maintains a per-connection rolling buffer of bytes
// received from a client, decoding ClientEvents as enough bytes arrive.
// Grounded on original_source/pepper/src/events.rs's ClientEventReceiver.
type ClientEventReceiver struct {
	buf []byte
}

// Receive appends data to the rolling buffer and returns an iterator over
// however many complete events are now available. The caller MUST call
// Finish on the returned iterator; forgetting to do so is a programmer
// error (spec.md §7) and is enforced here via a finalizer panic, since Go
// has no destructor to run synchronously like the Rust original's Drop.
func (r *ClientEventReceiver) Receive(data []byte) *ClientEventIter {
	r.buf = append(r.buf, data...)
	it := &ClientEventIter{r: r}
	runtime.SetFinalizer(it, func(it *ClientEventIter) {
		if !it.finished {
			panic("wire: ClientEventIter dropped without calling Finish()")
		}
	})
	return it
}

// ClientEventIter decodes one ClientEvent at a time from the bytes a
// Receive call made available, advancing a read cursor. It is safe to
// hold only one per Receive call; Finish drains the consumed bytes.
type ClientEventIter struct {
	r        *ClientEventReceiver
	pos      int
	finished bool
}

// Next decodes the next available event. ok is false once the remaining
// bytes do not yet form a complete event (UnexpectedEOF); the pending
// tail is retained across Finish for the next Receive call.
func (it *ClientEventIter) Next() (ClientEvent, bool) {
	e, rest, err := decodeClientEvent(it.r.buf[it.pos:])
	if err != nil {
		return ClientEvent{}, false
	}
	it.pos = len(it.r.buf) - len(rest)
	return e, true
}

// Finish drains the bytes consumed so far from the rolling buffer.
func (it *ClientEventIter) Finish() {
	it.r.buf = append([]byte(nil), it.r.buf[it.pos:]...)
	it.finished = true
	runtime.SetFinalizer(it, nil)
}

// ServerEventReceiver is the client-side analog, decoding ServerEvents.
type ServerEventReceiver struct {
	buf []byte
}

// Receive appends data and returns an iterator, with the same
// Finish()-or-panic contract as ClientEventReceiver.
func (r *ServerEventReceiver) Receive(data []byte) *ServerEventIter {
	r.buf = append(r.buf, data...)
	it := &ServerEventIter{r: r}
	runtime.SetFinalizer(it, func(it *ServerEventIter) {
		if !it.finished {
			panic("wire: ServerEventIter dropped without calling Finish()")
		}
	})
	return it
}

// ServerEventIter decodes ServerEvents from a ServerEventReceiver's buffer.
type ServerEventIter struct {
	r        *ServerEventReceiver
	pos      int
	finished bool
}

// Next decodes the next available event, ok=false on an incomplete tail.
func (it *ServerEventIter) Next() (ServerEvent, bool) {
	e, rest, err := decodeServerEvent(it.r.buf[it.pos:])
	if err != nil {
		return ServerEvent{}, false
	}
	it.pos = len(it.r.buf) - len(rest)
	return e, true
}

// Finish drains the consumed bytes from the rolling buffer.
func (it *ServerEventIter) Finish() {
	it.r.buf = append([]byte(nil), it.r.buf[it.pos:]...)
	it.finished = true
	runtime.SetFinalizer(it, nil)
}
