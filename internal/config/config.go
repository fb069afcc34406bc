// Package config loads and hot-reloads a small connection-options file
// (host, port, database, user, app name, packet size) for the tdsl CLI
// shell. No package in this module imports it: neither the core driver
// state machines nor cmd/tdsl, which takes its connection parameters from
// flags only.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tdsl-go/tdsl/internal/errors"
	"github.com/tdsl-go/tdsl/internal/log"
)

// ConnOptions holds the connection parameters a config file describes.
type ConnOptions struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Database   string `json:"database,omitempty"`
	User       string `json:"user"`
	Password   string `json:"password"`
	AppName    string `json:"app_name,omitempty"`
	PacketSize int    `json:"packet_size,omitempty"`
}

// Validate checks that the mandatory fields are present and sane,
// returning an internal/errors.Code-tagged error on failure.
func (o ConnOptions) Validate() error {
	if o.Host == "" {
		return errors.InvalidParam("host", "must not be empty").Err()
	}
	if o.Port <= 0 || o.Port > 65535 {
		return errors.InvalidParam("port", fmt.Sprintf("out of range: %d", o.Port)).Err()
	}
	if o.User == "" {
		return errors.InvalidParam("user", "must not be empty").Err()
	}
	if o.PacketSize != 0 && (o.PacketSize < 512 || o.PacketSize > 32767) {
		return errors.InvalidParam("packet_size", fmt.Sprintf("out of range: %d", o.PacketSize)).Err()
	}
	return nil
}

func parseFile(path string) (ConnOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConnOptions{}, errors.Wrap(err, errors.ErrCodeConfigMissing, "reading config file").Err()
	}
	var o ConnOptions
	if err := json.Unmarshal(data, &o); err != nil {
		return ConnOptions{}, errors.Wrap(err, errors.ErrCodeConfigParse, "parsing config file").Err()
	}
	if err := o.Validate(); err != nil {
		return ConnOptions{}, err
	}
	return o, nil
}

// Watcher monitors a connection-options file for changes and calls a
// registered callback with the freshly re-parsed options, mirroring the
// debounced fsnotify loop the original procedure loader used for .sql
// directories.
type Watcher struct {
	mu sync.RWMutex

	path   string
	logger *log.Logger

	fsWatcher *fsnotify.Watcher

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	debounceDelay time.Duration
	eventTimer    *time.Timer

	current ConnOptions

	onReload func(ConnOptions)
	onError  func(error)
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay overrides the default 100ms debounce window.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounceDelay = d }
}

// WithOnReload registers a callback invoked with freshly validated options
// whenever the file changes.
func WithOnReload(fn func(ConnOptions)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// WithOnError registers a callback invoked when a reload fails to parse
// or validate.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher loads path once (returning any parse/validation error
// immediately) and prepares an fsnotify watch on its parent directory.
func NewWatcher(path string, logger *log.Logger, opts ...WatcherOption) (*Watcher, error) {
	opts_, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "creating fsnotify watcher").Err()
	}

	w := &Watcher{
		path:          path,
		logger:        logger,
		fsWatcher:     fsw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		debounceDelay: 100 * time.Millisecond,
		current:       opts_,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Current returns the most recently loaded, validated options.
func (w *Watcher) Current() ConnOptions {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching the file's parent directory for writes. fsnotify
// watches directories, not individual files, since editors commonly
// replace a file rather than write it in place.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "watching config directory").Err()
	}

	w.logger.Connection().Info("config watcher started", "path", w.path)

	go w.processEvents()
	return nil
}

// Stop halts the watcher and releases its fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.logger.Connection().Info("config watcher stopped")
	return w.fsWatcher.Close()
}

func (w *Watcher) processEvents() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			if w.eventTimer != nil {
				w.eventTimer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			w.mu.Lock()
			if w.eventTimer != nil {
				w.eventTimer.Stop()
			}
			w.eventTimer = time.AfterFunc(w.debounceDelay, w.reload)
			w.mu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Connection().Error("config watcher error", err)
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) reload() {
	opts, err := parseFile(w.path)
	if err != nil {
		w.logger.Connection().Error("config reload failed", err, "path", w.path)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = opts
	w.mu.Unlock()

	w.logger.Connection().Info("config reloaded", "path", w.path, "host", opts.Host)
	if w.onReload != nil {
		w.onReload(opts)
	}
}

// IsRunning reports whether the watcher's event loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
