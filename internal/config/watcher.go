package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Config from disk whenever its source file changes.
// Adapted from internal/project/watcher/fsnotify.go's FSNotifyWatcher:
// kept the wrapped *fsnotify.Watcher plus a single processing goroutine
// translating raw fsnotify.Events into a domain-specific callback;
// dropped the ignore-pattern matcher and multi-path tracking, since a
// config watcher only ever follows one file.
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string

	mu      sync.Mutex
	current Config
	onErr   func(error)

	done chan struct{}
}

// WatchOption configures a Watcher at construction.
type WatchOption func(*Watcher)

// WithErrorHandler sets a callback for reload errors (e.g. invalid TOML
// written mid-edit); reload simply keeps the last-good Config otherwise.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(w *Watcher) { w.onErr = fn }
}

// Watch starts watching path for changes, loading it once immediately.
func Watch(path string, opts ...WatchOption) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		path:    path,
		current: cfg,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w, nil
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				if w.onErr != nil {
					w.onErr(err)
				}
				continue
			}
			w.mu.Lock()
			w.current = cfg
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onErr != nil {
				w.onErr(err)
			}
		}
	}
}
