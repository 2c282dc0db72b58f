package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nyxed/nyx/internal/applog"
	"github.com/nyxed/nyx/internal/engine/position"
	"github.com/nyxed/nyx/internal/server/buffers"
)

func writeScript(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.lua")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestPollDeliversChangesToOnChange(t *testing.T) {
	bufs := buffers.New()
	b := bufs.AddNew()
	b.InsertText(nil, position.Position{}, "hi", nil)

	path := writeScript(t, `
last_version = 0
change_count = 0
function on_change(version, changes)
    last_version = version
    change_count = change_count + #changes
end
`)

	s := NewSynchroniser(bufs, applog.New())
	if err := s.Load("test", path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Poll()

	sc := s.scripts["test"]
	v := sc.state.GetGlobal("change_count")
	if v.String() != "1" {
		t.Fatalf("expected change_count 1, got %v", v)
	}
}

func TestPollSkipsScriptsWithoutOnChange(t *testing.T) {
	bufs := buffers.New()
	b := bufs.AddNew()
	b.InsertText(nil, position.Position{}, "hi", nil)

	path := writeScript(t, `x = 1`)

	s := NewSynchroniser(bufs, applog.New())
	if err := s.Load("noop", path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Poll() // must not panic despite no on_change global
}

func TestPollOnlyForwardsUnseenChanges(t *testing.T) {
	bufs := buffers.New()
	b := bufs.AddNew()
	b.InsertText(nil, position.Position{}, "a", nil)

	path := writeScript(t, `
calls = 0
function on_change(version, changes)
    calls = calls + 1
end
`)

	s := NewSynchroniser(bufs, applog.New())
	if err := s.Load("test", path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Poll()
	s.Poll() // no new edits; on_change must not be called again

	sc := s.scripts["test"]
	if got := sc.state.GetGlobal("calls").String(); got != "1" {
		t.Fatalf("expected exactly 1 call, got %s", got)
	}
}
