// Package plugin hosts the Lua-scriptable change-log synchroniser
// described by SPEC_FULL.md §4.12: on Idle, each registered script's
// on_change global is called with the buffer changes recorded since the
// script last saw them.
//
// A script is loaded from a single Lua file and identified by name. It
// opts in to a buffer's changes by defining a top-level on_change(version,
// changes) function; scripts without that global are ignored by Poll.
package plugin
