package buffer

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nyxed/nyx/internal/engine/position"
)

// Content is a non-empty ordered list of Lines. clear() always leaves a
// single empty line; insert_text/delete_range maintain this invariant.
//
// Grounded on original_source/src/buffer.rs's BufferContent: insert_text
// (lines 443-490) and delete_range (492-514) are followed line-for-line,
// adapted to Go's slice-of-pointer-to-Line representation and this
// package's linePool instead of the Rust line_pool.
type Content struct {
	lines []*Line
	pool  *linePool
}

// NewContent returns a Content holding a single empty line.
func NewContent() *Content {
	return &Content{lines: []*Line{NewLine("")}, pool: defaultLinePool}
}

// LineCount returns the number of lines.
func (c *Content) LineCount() int { return len(c.lines) }

// LineText returns the text of line i.
func (c *Content) LineText(i int) string { return c.lines[i].Text() }

// LineLen returns the byte length of line i.
func (c *Content) LineLen(i int) int { return c.lines[i].Len() }

// SaturatePosition clamps p to the last valid position: line index is
// clamped to the last line, column is clamped to that line's length.
func (c *Content) SaturatePosition(p position.Position) position.Position {
	if int(p.Line) >= len(c.lines) {
		p.Line = uint32(len(c.lines) - 1)
	}
	lineLen := uint32(c.lines[p.Line].Len())
	if p.Column > lineLen {
		p.Column = lineLen
	}
	return p
}

// InsertText splices s into the content at p (which is saturated first)
// and returns the Range it occupies.
func (c *Content) InsertText(p position.Position, s string) position.Range {
	p = c.SaturatePosition(p)

	if !strings.Contains(s, "\n") {
		line := c.lines[p.Line]
		line.insertAt(int(p.Column), s)
		to := position.Position{Line: p.Line, Column: p.Column + uint32(len(s))}
		return position.Range{From: p, To: to}
	}

	line := c.lines[p.Line]
	tail := line.Text()[p.Column:]
	line.text = line.text[:p.Column]

	segments := strings.Split(s, "\n")
	// segments[0] continues the current line; segments[last] starts the
	// new trailing line (or, if s ends with "\n", segments[last] == "").
	line.insertAt(int(p.Column), segments[0])

	newLines := make([]*Line, 0, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		newLines = append(newLines, c.pool.get(segments[i]))
	}
	// The last new line absorbs the saved tail.
	last := newLines[len(newLines)-1]
	lastCol := uint32(last.Len())
	last.text = append(last.text, tail...)

	tailIdx := int(p.Line) + 1
	rest := make([]*Line, 0, len(c.lines)+len(newLines))
	rest = append(rest, c.lines[:tailIdx]...)
	rest = append(rest, newLines...)
	rest = append(rest, c.lines[tailIdx:]...)
	c.lines = rest

	toLine := p.Line + uint32(len(newLines))
	to := position.Position{Line: toLine, Column: lastCol}
	return position.Range{From: p, To: to}
}

// DeleteRange removes the text spanning r (endpoints saturated first).
func (c *Content) DeleteRange(r position.Range) {
	from := c.SaturatePosition(r.From)
	to := c.SaturatePosition(r.To)
	if from == to {
		return
	}

	if from.Line == to.Line {
		c.lines[from.Line].deleteRange(int(from.Column), int(to.Column))
		return
	}

	fromLine := c.lines[from.Line]
	toLine := c.lines[to.Line]
	suffix := toLine.Text()[to.Column:]

	// Release every line after from, up to and including to, to the pool;
	// to's surviving suffix was copied out above.
	for i := from.Line + 1; i <= to.Line; i++ {
		c.pool.put(c.lines[i])
	}

	fromLine.text = fromLine.text[:from.Column]
	fromLine.text = append(fromLine.text, suffix...)

	rest := make([]*Line, 0, len(c.lines)-int(to.Line-from.Line))
	rest = append(rest, c.lines[:from.Line+1]...)
	rest = append(rest, c.lines[to.Line+1:]...)
	c.lines = rest
}

// Clear drains all lines to the pool and leaves a single fresh empty line.
func (c *Content) Clear() {
	for _, l := range c.lines {
		c.pool.put(l)
	}
	c.lines = []*Line{c.pool.get("")}
}

// AppendRangeText appends the text spanned by r to out, joining
// intra-range lines with '\n'.
func (c *Content) AppendRangeText(r position.Range, out *strings.Builder) {
	from := c.SaturatePosition(r.From)
	to := c.SaturatePosition(r.To)
	if from.Line == to.Line {
		out.WriteString(c.lines[from.Line].Text()[from.Column:to.Column])
		return
	}
	out.WriteString(c.lines[from.Line].Text()[from.Column:])
	for i := from.Line + 1; i < to.Line; i++ {
		out.WriteByte('\n')
		out.WriteString(c.lines[i].Text())
	}
	out.WriteByte('\n')
	out.WriteString(c.lines[to.Line].Text()[:to.Column])
}

// Text joins every line with '\n' and appends a trailing '\n', matching
// the on-disk write format (§6). An empty last line after at least one
// other line stands for that trailing '\n' already, so none is added.
func (c *Content) Text() string {
	var b strings.Builder
	for i, l := range c.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text())
	}
	if n := len(c.lines); n <= 1 || c.lines[n-1].Text() != "" {
		b.WriteByte('\n')
	}
	return b.String()
}

// WordAt delegates to the line's WordAt.
func (c *Content) WordAt(p position.Position) (from, to position.Position, ok bool) {
	p = c.SaturatePosition(p)
	s, e, found := c.lines[p.Line].WordAt(int(p.Column))
	if !found {
		return position.Position{}, position.Position{}, false
	}
	return position.Position{Line: p.Line, Column: uint32(s)},
		position.Position{Line: p.Line, Column: uint32(e)}, true
}

// FindDelimiterPairAt locates the nearest enclosing pair of identical
// delimiter runes on p's line, per original_source's find_delimiter_pair_at
// (lines 23-46): toggle is_right_delim on each occurrence, and once the
// scan passes the query index, a true flag means we just closed a pair
// ending before/at index (no match), a false flag means the next
// occurrence closes the enclosing pair.
func (c *Content) FindDelimiterPairAt(p position.Position, delim rune) (position.Range, bool) {
	p = c.SaturatePosition(p)
	text := c.lines[p.Line].Text()
	index := int(p.Column)

	isRightDelim := false
	lastI := -1
	runes := []rune(text)
	// Translate rune index back to byte offsets as we go.
	byteOff := 0
	type occ struct{ byteIdx, runeIdx int }
	var occs []occ
	for ri, r := range runes {
		if r == delim {
			occs = append(occs, occ{byteIdx: byteOff, runeIdx: ri})
		}
		byteOff += len(string(r))
	}

	for _, o := range occs {
		if o.byteIdx >= index {
			if isRightDelim {
				if lastI < 0 {
					return position.Range{}, false
				}
				return position.Range{
					From: position.Position{Line: p.Line, Column: uint32(lastI + 1)},
					To:   position.Position{Line: p.Line, Column: uint32(o.byteIdx)},
				}, true
			}
			if o.byteIdx != index {
				break
			}
		}
		isRightDelim = !isRightDelim
		lastI = o.byteIdx
	}
	return position.Range{}, false
}

// findBalance scans text forward for target, treating other as a nested
// opener: a target seen while balance > 0 closes one nesting level instead
// of matching. balance carries across calls so a search spanning several
// lines keeps its nesting count. Grounded on original_source/src/buffer.rs's
// find_balanced_chars_at inner find() closure.
func findBalance(text string, target, other rune, balance *int) (int, bool) {
	off := 0
	for _, r := range text {
		switch r {
		case target:
			if *balance == 0 {
				return off, true
			}
			*balance--
		case other:
			*balance++
		}
		off += utf8.RuneLen(r)
	}
	return 0, false
}

// findBalanceReverse is findBalance scanning text back to front, for the
// left-delimiter half of FindBalancedCharsAt.
func findBalanceReverse(text string, target, other rune, balance *int) (int, bool) {
	runes := []rune(text)
	offs := make([]int, len(runes))
	off := 0
	for i, r := range runes {
		offs[i] = off
		off += utf8.RuneLen(r)
	}
	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case target:
			if *balance == 0 {
				return offs[i], true
			}
			*balance--
		case other:
			*balance++
		}
	}
	return 0, false
}

// FindBalancedCharsAt searches outward from p for a balanced pair of
// left/right runes, maintaining an integer balance counter per
// original_source's find_balanced_chars_at: it first tries the enclosing
// line and, failing that, continues through surrounding lines (forward for
// the right delimiter, backward for the left one). The returned range
// excludes the delimiters.
func (c *Content) FindBalancedCharsAt(p position.Position, left, right rune) (position.Range, bool) {
	p = c.SaturatePosition(p)
	lineIdx := int(p.Line)
	line := c.lines[lineIdx].Text()
	col := int(p.Column)
	before, after := line[:col], line[col:]

	var leftPos, rightPos *position.Position

	// The rune sitting exactly at p decides which half it anchors, mirroring
	// the original's special-cased first char of "after".
	afterRest := after
	if r, size := utf8.DecodeRuneInString(after); size > 0 {
		afterRest = after[size:]
		switch r {
		case left:
			pos := position.Position{Line: uint32(lineIdx), Column: uint32(col + size)}
			leftPos = &pos
		case right:
			pos := position.Position{Line: uint32(lineIdx), Column: uint32(col)}
			rightPos = &pos
		}
	}

	balance := 0
	if rightPos == nil {
		if off, ok := findBalance(afterRest, right, left, &balance); ok {
			pos := position.Position{Line: uint32(lineIdx), Column: uint32(col + (len(after) - len(afterRest)) + off)}
			rightPos = &pos
		} else {
			for li := lineIdx + 1; li < len(c.lines); li++ {
				if off, ok := findBalance(c.lines[li].Text(), right, left, &balance); ok {
					pos := position.Position{Line: uint32(li), Column: uint32(off)}
					rightPos = &pos
					break
				}
			}
		}
	}
	if rightPos == nil {
		return position.Range{}, false
	}

	balance = 0
	leftSize := utf8.RuneLen(left)
	if leftPos == nil {
		if off, ok := findBalanceReverse(before, left, right, &balance); ok {
			pos := position.Position{Line: uint32(lineIdx), Column: uint32(off + leftSize)}
			leftPos = &pos
		} else {
			for li := lineIdx - 1; li >= 0; li-- {
				if off, ok := findBalanceReverse(c.lines[li].Text(), left, right, &balance); ok {
					pos := position.Position{Line: uint32(li), Column: uint32(off + leftSize)}
					leftPos = &pos
					break
				}
			}
		}
	}
	if leftPos == nil {
		return position.Range{}, false
	}

	return position.Range{From: *leftPos, To: *rightPos}, true
}

// ReadFrom strips a leading UTF-8 BOM and normalizes CRLF to LF while
// loading r into fresh pooled lines, per §6's on-disk read format.
func (c *Content) ReadFrom(r io.Reader) error {
	for _, l := range c.lines {
		c.pool.put(l)
	}
	c.lines = c.lines[:0]

	br := bufio.NewReader(r)
	first := true
	for {
		line, err := br.ReadString('\n')
		if first {
			line = strings.TrimPrefix(line, string(rune(0xFEFF)))
			first = false
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if line != "" || err == nil {
			c.lines = append(c.lines, c.pool.get(line))
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	if len(c.lines) == 0 {
		c.lines = append(c.lines, c.pool.get(""))
	}
	return nil
}
