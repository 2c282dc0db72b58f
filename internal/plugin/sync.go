package plugin

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/nyxed/nyx/internal/applog"
	"github.com/nyxed/nyx/internal/changelog"
	"github.com/nyxed/nyx/internal/engine/buffer"
	pluglua "github.com/nyxed/nyx/internal/plugin/lua"
	"github.com/nyxed/nyx/internal/server/buffers"
)

const onChangeFunc = "on_change"

// script is one loaded Lua file tracked against every buffer it has
// already synchronised, so Poll only ever hands it the tail of each
// buffer's change log.
type script struct {
	name  string
	state *pluglua.State
	// seen is the last version of each buffer this script has drained.
	seen map[buffer.Handle]uint64
}

// Synchroniser polls open buffers' change logs and forwards new edits to
// every loaded script that defines on_change(version, changes).
type Synchroniser struct {
	mu      sync.Mutex
	bufs    *buffers.Collection
	log     *applog.Logger
	scripts map[string]*script
}

// NewSynchroniser constructs a Synchroniser over bufs's buffer set.
func NewSynchroniser(bufs *buffers.Collection, log *applog.Logger) *Synchroniser {
	return &Synchroniser{
		bufs:    bufs,
		log:     log,
		scripts: make(map[string]*script),
	}
}

// Load reads a Lua file and registers it under name, replacing any
// previous script of the same name.
func (s *Synchroniser) Load(name, path string) error {
	st, err := pluglua.NewState()
	if err != nil {
		return fmt.Errorf("creating lua state for %s: %w", name, err)
	}
	if err := st.DoFile(path); err != nil {
		st.Close()
		return fmt.Errorf("loading plugin %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.scripts[name]; ok {
		old.state.Close()
	}
	s.scripts[name] = &script{name: name, state: st, seen: make(map[buffer.Handle]uint64)}
	return nil
}

// Unload closes and forgets a script.
func (s *Synchroniser) Unload(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.scripts[name]; ok {
		sc.state.Close()
		delete(s.scripts, name)
	}
}

// Poll drains every open buffer's change log and forwards unseen changes
// to each script defining on_change. Intended to be called on EvIdle, per
// spec.md §9's note that idle events are where housekeeping like pushing
// pending plugin changes happens.
func (s *Synchroniser) Poll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scripts) == 0 {
		return
	}

	s.bufs.Iter(func(b *buffer.Buffer) {
		for _, sc := range s.scripts {
			s.deliver(sc, b)
		}
	})
}

func (s *Synchroniser) deliver(sc *script, b *buffer.Buffer) {
	if !sc.state.HasGlobal(onChangeFunc) {
		return
	}

	h := b.Handle()
	since := sc.seen[h]
	changes, version, ok := b.ChangeLog().Drain(since)
	if version == since {
		return
	}
	if !ok {
		// The ring evicted entries this script never saw; it must treat
		// this as a full resync rather than an incremental diff.
		changes = nil
	}

	_, err := sc.state.Call(onChangeFunc, lua.LNumber(version), changesToLua(sc.state, changes))
	if err != nil && s.log != nil {
		s.log.Warn("plugin on_change failed", "plugin", sc.name, "err", err)
	}
	sc.seen[h] = version
}

func changesToLua(st *pluglua.State, changes []changelog.ChangeRange) *lua.LTable {
	L := st.LuaState()
	t := L.NewTable()
	for i, c := range changes {
		entry := L.NewTable()
		kind := "insert"
		if c.Kind == changelog.Delete {
			kind = "delete"
		}
		entry.RawSetString("kind", lua.LString(kind))
		entry.RawSetString("from_line", lua.LNumber(c.From.Line))
		entry.RawSetString("from_col", lua.LNumber(c.From.Column))
		entry.RawSetString("to_line", lua.LNumber(c.To.Line))
		entry.RawSetString("to_col", lua.LNumber(c.To.Column))
		entry.RawSetString("text", lua.LString(c.Text))
		t.RawSetInt(i+1, entry)
	}
	return t
}
