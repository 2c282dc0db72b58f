// Package lua provides the sandboxed Lua runtime each loaded change-log
// watcher script runs in.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - Capability-gated access to anything beyond the safe standard libraries
//   - Execution-timeout and instruction-limit settings (recorded on the
//     State and its Sandbox; no running Lua call is stopped by either)
//
// # State
//
// The State type manages a Lua runtime with sandboxing. internal/plugin's
// Synchroniser creates one State per loaded script and calls its on_change
// global whenever the script's buffer has new changelog entries to see:
//
//	state, err := lua.NewState(
//	    lua.WithMemoryLimit(10 * 1024 * 1024),
//	    lua.WithExecutionTimeout(5 * time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer state.Close()
//
//	if err := state.DoFile("watcher.lua"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Sandbox
//
// The Sandbox restricts Lua code execution by:
//   - Removing dangerous functions (dofile, loadfile, load)
//   - Restricting os module to safe functions only
//   - Keeping an instruction counter (IncrementInstructions); nothing in
//     DoFile, DoString or Call advances it, so loops are not cut off
//   - Enforcing capability requirements
//
// # Capabilities
//
// A loaded script runs with none of these by default; on_change(version,
// changes) only ever receives changelog data, so no script needs more. The
// capability system exists so a script could be granted more someday,
// without every script's sandbox growing teeth it doesn't use:
//
//	state.Sandbox().Grant(lua.CapabilityFileRead)
//	state.Sandbox().Grant(lua.CapabilityNetwork)
//
// Available capabilities:
//   - CapabilityFileRead: Read files from filesystem
//   - CapabilityFileWrite: Write files to filesystem
//   - CapabilityNetwork: Make network requests
//   - CapabilityShell: Execute shell commands
//   - CapabilityClipboard: Access system clipboard
//   - CapabilityProcess: Spawn child processes
//   - CapabilityUnsafe: Disable all sandbox restrictions
package lua
