// Package help serves the static help catalog exposed to clients under
// the help:// scheme (spec.md §6).
//
// Grounded on internal/config/schema/schema.go's go:embed usage (the
// only embed.FS in the teacher tree), generalized from one embedded JSON
// file to a directory of Markdown pages.
package help

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed pages/*.md
var pagesFS embed.FS

// catalog maps a page name (without extension) to its content, built
// once at init from the embedded pages.
var catalog = mustLoadCatalog()

func mustLoadCatalog() map[string]string {
	entries, err := pagesFS.ReadDir("pages")
	if err != nil {
		panic("help: embedded pages directory missing: " + err.Error())
	}
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".md")
		data, err := pagesFS.ReadFile("pages/" + e.Name())
		if err != nil {
			panic("help: embedded page unreadable: " + err.Error())
		}
		m[name] = string(data)
	}
	return m
}

// Page returns a help page's content by name ("main" is the well-known
// entry point), and whether it exists.
func Page(name string) (string, bool) {
	content, ok := catalog[name]
	return content, ok
}

// Match is one search hit: the page it was found in and the 0-based line
// index within that page.
type Match struct {
	Page string
	Line int
}

// Search scans every page for keyword, preferring matches on section
// headings (lines starting with '#') over body matches, per spec.md §6.
func Search(keyword string) (Match, bool) {
	if keyword == "" {
		return Match{}, false
	}
	needle := strings.ToLower(keyword)

	var bodyHit *Match
	for _, name := range sortedNames() {
		sc := bufio.NewScanner(strings.NewReader(catalog[name]))
		line := 0
		for sc.Scan() {
			text := sc.Text()
			if strings.Contains(strings.ToLower(text), needle) {
				if strings.HasPrefix(strings.TrimSpace(text), "#") {
					return Match{Page: name, Line: line}, true
				}
				if bodyHit == nil {
					bodyHit = &Match{Page: name, Line: line}
				}
			}
			line++
		}
	}
	if bodyHit != nil {
		return *bodyHit, true
	}
	return Match{}, false
}

func sortedNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	// Deterministic (alphabetical) order, so when several pages have body
	// matches the alphabetically first page wins.
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}
