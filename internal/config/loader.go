package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/openkit-go/openkit/internal/log"
)

// Loader reads FileConfig from disk and, optionally, watches it for changes
// to the Identity fields. It never mutates the server-controlled
// Configuration Snapshot (Store), matching the spec's invariant that the
// Snapshot is updated only via updateSettings from the sender goroutine.
type Loader struct {
	path    string
	watcher *fsnotify.Watcher
	current atomic.Pointer[FileConfig]
}

// NewLoader creates a Loader for the given path. The path may be empty, in
// which case Load returns the zero FileConfig (callers apply their own
// defaults, as Store does).
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and parses the configuration file once.
func (l *Loader) Load() (FileConfig, error) {
	if l.path == "" {
		return FileConfig{}, nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	l.current.Store(&fc)
	return fc, nil
}

// Watch starts an fsnotify watch on the configuration file and invokes
// onIdentityChange whenever the Identity subset changes. It returns
// immediately; the watch loop runs until done is closed. Errors starting the
// watcher are logged and treated as "hot reload unavailable", never fatal:
// the agent already has the identity it loaded at startup.
func (l *Loader) Watch(done <-chan struct{}, onIdentityChange func(Identity)) {
	if l.path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithComponent("config").Warn().Err(err).Msg("config hot-reload unavailable")
		return
	}
	l.watcher = watcher
	if err := watcher.Add(l.path); err != nil {
		log.WithComponent("config").Warn().Err(err).Msg("config hot-reload unavailable")
		_ = watcher.Close()
		return
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				fc, err := l.Load()
				if err != nil {
					log.WithComponent("config").Warn().Err(err).Msg("config reload failed, keeping previous identity")
					continue
				}
				onIdentityChange(fc.identity())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithComponent("config").Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
}
