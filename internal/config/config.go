// Package config loads the server's tunables from a TOML file and keeps
// them current via a live-reload watcher (SPEC_FULL.md §2 ambient
// stack).
//
// Grounded on internal/config/loader/toml.go's FileSystem abstraction
// (kept, for test injection) and go-toml/v2 unmarshalling idiom. The
// teacher's full config system (layered merge, JSON-schema validation,
// a setting registry, keymap/plugin sub-configs, version migration) has
// no counterpart in spec.md: the server's configurable surface is a
// handful of flat tunables (idle duration, buffer sizes, table caps,
// session name override), not a layered user-facing settings store. That
// subsystem is not wired; see DESIGN.md.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/nyxed/nyx/internal/config/loader"
)

// Config holds the server's tunable parameters, all with sensible zero-
// value-safe defaults applied by Default().
type Config struct {
	// IdleDuration is the quiet period after which a single Idle event is
	// synthesized (spec.md §4.11).
	IdleDuration time.Duration `toml:"idle_duration"`

	// ConnectionBufferLen is the initial capacity nyxd gives the server's
	// buffer pool; each client read is sized by the server package's own
	// ConnectionBufferLen constant (spec.md §4.8 step 3).
	ConnectionBufferLen int `toml:"connection_buffer_len"`

	// ProcessBufferLen is loaded and defaulted but not read by the server;
	// a spawned process's stdout reads are sized by the BufLen of its
	// process.Command (spec.md §4.9).
	ProcessBufferLen int `toml:"process_buffer_len"`

	// MaxClients caps concurrent client connections (0 = unlimited).
	MaxClients int `toml:"max_clients"`

	// MaxProcesses caps concurrent spawned processes (0 = unlimited).
	MaxProcesses int `toml:"max_processes"`

	// SessionName overrides the derived hash-of-cwd session name
	// (spec.md §6).
	SessionName string `toml:"session_name"`

	// TabSize is the display-column width of a tab stop, used by the
	// cursor collection's display-distance tracking (spec.md §4.5).
	TabSize int `toml:"tab_size"`

	// PluginPaths are Lua scripts loaded at startup into the change-log
	// synchroniser (SPEC_FULL.md §4.12), each named by its base filename.
	PluginPaths []string `toml:"plugin_paths"`
}

// Default returns a Config with the server's built-in defaults.
func Default() Config {
	return Config{
		IdleDuration:        500 * time.Millisecond,
		ConnectionBufferLen: 64 * 1024,
		ProcessBufferLen:    64 * 1024,
		MaxClients:          64,
		MaxProcesses:        32,
		TabSize:             8,
	}
}

// Load reads and parses a TOML config file at path, overlaying it onto
// Default(). A missing file is not an error: it yields the defaults.
func Load(path string) (Config, error) {
	return LoadFS(loader.DefaultFS(), path)
}

// LoadFS is Load with an injectable FileSystem, for testing.
func LoadFS(fs loader.FileSystem, path string) (Config, error) {
	cfg := Default()

	data, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
