package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// ReloadableConfig watches the config file and atomically swaps in a new
// Config when it changes. Sessions read Get when they start, so a reload
// affects connections accepted afterwards.
type ReloadableConfig struct {
	path      string
	current   atomic.Pointer[Config]
	mu        sync.RWMutex
	watchers  []func(old, new *Config)
	onError   func(error)
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	reloading atomic.Bool
}

// NewReloadable loads path and starts watching it.
func NewReloadable(path string) (*ReloadableConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("initial config load: %w", err)
	}

	r := &ReloadableConfig{
		path:   path,
		stopCh: make(chan struct{}),
	}
	r.current.Store(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	r.watcher = watcher
	go r.watchLoop()

	return r, nil
}

func (r *ReloadableConfig) Get() *Config {
	return r.current.Load()
}

// Watch registers fn to run after every successful reload.
func (r *ReloadableConfig) Watch(fn func(old, new *Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// OnError registers a callback for reload and watcher failures.
func (r *ReloadableConfig) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// Reload forces a config reload from disk.
func (r *ReloadableConfig) Reload() error {
	if !r.reloading.CompareAndSwap(false, true) {
		return fmt.Errorf("reload already in progress")
	}
	defer r.reloading.Store(false)

	newCfg, err := Load(r.path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	oldCfg := r.Get()
	if err := validateTransition(oldCfg, newCfg); err != nil {
		return fmt.Errorf("validate transition: %w", err)
	}

	r.current.Store(newCfg)

	r.mu.RLock()
	watchers := make([]func(old, new *Config), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.RUnlock()

	for _, fn := range watchers {
		go fn(oldCfg, newCfg)
	}
	return nil
}

// validateTransition rejects changes that need a new listener.
func validateTransition(old, new *Config) error {
	if old.Listen != new.Listen {
		return fmt.Errorf("listen address change requires restart: %s -> %s", old.Listen, new.Listen)
	}
	if old.Path != new.Path {
		return fmt.Errorf("websocket path change requires restart")
	}
	if old.Metrics != new.Metrics {
		return fmt.Errorf("metrics endpoint change requires restart")
	}
	return nil
}

func (r *ReloadableConfig) reportError(err error) {
	r.mu.RLock()
	fn := r.onError
	r.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (r *ReloadableConfig) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) {
				if err := r.Reload(); err != nil {
					r.reportError(fmt.Errorf("config reload failed: %w", err))
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.reportError(fmt.Errorf("config watcher error: %w", err))
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the file watcher.
func (r *ReloadableConfig) Close() error {
	close(r.stopCh)
	return r.watcher.Close()
}
