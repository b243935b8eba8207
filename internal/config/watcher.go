package config

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a config file for changes and calls a callback when the
// file is modified and still valid. File system events trigger an immediate
// check; polling stays on as a fallback for network and container-mounted
// volumes where events are not delivered.
type Watcher struct {
	path     string
	interval time.Duration
	events   bool
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

var errEmptyFile = errors.New("config file is empty")

// eventSettle is how long the file must be quiet after an event before it is
// read.
const eventSettle = 100 * time.Millisecond

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithFileEvents turns file system notifications on or off. They are on by
// default; without them changes are seen on the next poll.
func WithFileEvents(enabled bool) WatcherOption {
	return func(w *Watcher) {
		w.events = enabled
	}
}

// NewWatcher creates a config file watcher. It loads the initial config
// immediately and starts watching in a background goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		events:   true,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = mtime

	go w.watch(w.notifier())
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload checks the file immediately instead of waiting for the next poll.
// It reports whether a new config was applied.
func (w *Watcher) Reload() bool {
	return w.check(true)
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// notifier watches the directory holding the config file, since editors
// and config map updates replace the file rather than write to it. It
// returns nil when events are off or unavailable.
func (w *Watcher) notifier() *fsnotify.Watcher {
	if !w.events {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watcher: file events unavailable, polling only", "err", err)
		return nil
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		slog.Warn("config watcher: file events unavailable, polling only", "path", w.path, "err", err)
		_ = fw.Close()
		return nil
	}
	return fw
}

func (w *Watcher) watch(fw *fsnotify.Watcher) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// A nil channel blocks forever, which disables that case.
	var (
		events  <-chan fsnotify.Event
		errs    <-chan error
		settled <-chan time.Time
	)
	if fw != nil {
		defer fw.Close()
		events, errs = fw.Events, fw.Errors
	}
	name := filepath.Clean(w.path)

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check(false)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == name && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				// A write arrives as several events; read once it settles so a
				// truncated file is never applied.
				settled = time.After(eventSettle)
			}
		case <-settled:
			settled = nil
			w.check(true)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("config watcher: file event error", "path", w.path, "err", err)
		}
	}
}

// check reloads the file when it changed and is valid, then calls onChange.
// Unless force is set, an unchanged mtime skips the read entirely.
func (w *Watcher) check(force bool) bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if !force && info.ModTime().Equal(mtime) {
		return false
	}

	cfg, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return false
	}

	w.mu.Lock()
	if hash == w.lastHash {
		// Touched but identical.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return false
	}
	old := w.current
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true
}

// loadAndHash reads, parses and validates the config file and returns it
// with the file's SHA-256 hash and modification time.
func (w *Watcher) loadAndHash() (*Config, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	// An empty file is a write in progress far more often than an intended
	// config.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, zeroHash, time.Time{}, errEmptyFile
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
