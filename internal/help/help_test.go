package help

import "testing"

func TestMainPageExists(t *testing.T) {
	content, ok := Page("main")
	if !ok {
		t.Fatalf("expected \"main\" page to exist")
	}
	if content == "" {
		t.Fatalf("main page content is empty")
	}
}

func TestUnknownPageNotFound(t *testing.T) {
	if _, ok := Page("does-not-exist"); ok {
		t.Fatalf("expected unknown page to report not found")
	}
}

func TestSearchPrefersHeadingMatch(t *testing.T) {
	m, ok := Search("cursors")
	if !ok {
		t.Fatalf("expected a match for \"cursors\"")
	}
	content, _ := Page(m.Page)
	lines := splitLines(content)
	if m.Line >= len(lines) {
		t.Fatalf("match line %d out of range for page %q", m.Line, m.Page)
	}
	got := lines[m.Line]
	if got[0] != '#' {
		t.Fatalf("expected heading-match line, got %q", got)
	}
}

func TestSearchNoMatch(t *testing.T) {
	if _, ok := Search("xyzzy-not-present-anywhere"); ok {
		t.Fatalf("expected no match")
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
