// Package session derives the local stream-socket path a server listens
// on and a client connects to (spec.md §6's "Session naming").
package session

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
)

// DeriveName returns the default session name: a stable hash of the
// current working directory, so running the client from the same
// project directory always reaches the same server.
func DeriveName() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(cwd))
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// SocketPath returns the UNIX domain socket path for a session name,
// rooted under $XDG_RUNTIME_DIR (falling back to os.TempDir()).
func SocketPath(name string) string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "nyx-"+name+".sock")
}
