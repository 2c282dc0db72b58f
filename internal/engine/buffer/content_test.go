package buffer

import (
	"strings"
	"testing"

	"github.com/nyxed/nyx/internal/engine/position"
)

func TestScenarioAInsertMidLine(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, "hello world")

	r := c.InsertText(position.Position{Line: 0, Column: 5}, " cruel")
	if c.LineText(0) != "hello cruel world" {
		t.Fatalf("got %q", c.LineText(0))
	}
	want := position.Range{From: position.Position{Line: 0, Column: 5}, To: position.Position{Line: 0, Column: 11}}
	if r != want {
		t.Errorf("got range %v, want %v", r, want)
	}
}

func TestScenarioBDeleteMidLine(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, "hello cruel world")
	c.DeleteRange(position.Range{From: position.Position{Line: 0, Column: 5}, To: position.Position{Line: 0, Column: 11}})
	if c.LineText(0) != "hello world" {
		t.Fatalf("got %q", c.LineText(0))
	}
}

func TestInsertMultiLine(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, "one\ntwo\nthree")
	if c.LineCount() != 3 {
		t.Fatalf("expected 3 lines, got %d", c.LineCount())
	}
	if c.LineText(0) != "one" || c.LineText(1) != "two" || c.LineText(2) != "three" {
		t.Errorf("unexpected lines: %q %q %q", c.LineText(0), c.LineText(1), c.LineText(2))
	}
}

func TestDeleteMultiLineRejoins(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, "one\ntwo\nthree")
	c.DeleteRange(position.Range{From: position.Position{Line: 0, Column: 1}, To: position.Position{Line: 2, Column: 2}})
	if c.LineCount() != 1 {
		t.Fatalf("expected 1 line after multi-line delete, got %d", c.LineCount())
	}
	if c.LineText(0) != "oree" {
		t.Errorf("got %q", c.LineText(0))
	}
}

func TestScenarioFourBufferRoundTrip(t *testing.T) {
	cases := []string{"hello\nworld\n", "hello\nworld", "no newline"}
	for _, text := range cases {
		c := NewContent()
		c.InsertText(position.Position{}, text)
		got := c.Text()
		want := text
		if !strings.HasSuffix(want, "\n") {
			want += "\n"
		}
		if got != want {
			t.Errorf("round trip for %q: got %q, want %q", text, got, want)
		}
	}
}

func TestFindDelimiterPairAt(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, `a "quoted text" b`)
	r, ok := c.FindDelimiterPairAt(position.Position{Column: 5}, '"')
	if !ok {
		t.Fatalf("expected a delimiter pair match")
	}
	if c.lines[0].Text()[r.From.Column:r.To.Column] != "quoted text" {
		t.Errorf("got %q", c.lines[0].Text()[r.From.Column:r.To.Column])
	}
}

func TestFindBalancedCharsAt(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, "f(a, g(b), c)")
	r, ok := c.FindBalancedCharsAt(position.Position{Column: 4}, '(', ')')
	if !ok {
		t.Fatalf("expected a balanced pair match")
	}
	got := c.lines[0].Text()[r.From.Column:r.To.Column]
	if got != "a, g(b), c" {
		t.Errorf("got %q", got)
	}
}

func TestFindBalancedCharsAtSpansLines(t *testing.T) {
	c := NewContent()
	c.InsertText(position.Position{}, "f(\n  a,\n  b\n)")

	r, ok := c.FindBalancedCharsAt(position.Position{Line: 1, Column: 3}, '(', ')')
	if !ok {
		t.Fatalf("expected a balanced pair match spanning lines")
	}
	if r.From != (position.Position{Line: 0, Column: 2}) {
		t.Errorf("expected left delimiter position {0,2}, got %+v", r.From)
	}
	if r.To != (position.Position{Line: 3, Column: 0}) {
		t.Errorf("expected right delimiter position {3,0}, got %+v", r.To)
	}
}
