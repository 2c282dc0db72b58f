package buffer

import "sync"

// linePool recycles Line values across inserts and deletes, grounded on
// internal/engine/rope/pool.go's sync.Pool-backed NodePool in the teacher.
// The pool never exposes the previous contents of a recycled Line.
type linePool struct {
	pool sync.Pool
}

func newLinePool() *linePool {
	return &linePool{
		pool: sync.Pool{New: func() interface{} { return &Line{} }},
	}
}

func (p *linePool) get(s string) *Line {
	l := p.pool.Get().(*Line)
	l.reset()
	l.text = append(l.text, s...)
	return l
}

func (p *linePool) put(l *Line) {
	l.reset()
	p.pool.Put(l)
}

var defaultLinePool = newLinePool()
