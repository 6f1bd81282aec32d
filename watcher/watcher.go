// Package watcher watches a documents directory and feeds changed files into
// the store. Changes are debounced and deduplicated by content hash, so
// editor save storms produce a single ingestion.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/docuchat/docqa/source"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 500

// Config configures document file watching.
type Config struct {
	// Dir is the directory to watch recursively.
	Dir string `yaml:"dir"`

	// Patterns are doublestar globs matched against paths relative to Dir.
	Patterns []string `yaml:"patterns"`

	// Debounce is how long to wait for more changes before processing.
	Debounce time.Duration `yaml:"debounce"`

	// ExcludeDirs lists directory names to skip.
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// DefaultConfig returns default watch configuration.
func DefaultConfig() Config {
	return Config{
		Patterns:    []string{"**/*.md", "**/*.txt"},
		Debounce:    500 * time.Millisecond,
		ExcludeDirs: []string{".git", "node_modules", "vendor"},
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("watch dir is required")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	for _, p := range c.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	return nil
}

// Operation indicates the type of file change.
type Operation string

// Upsert and Delete enumerate the change operations a watcher emits. Create
// and modify collapse into Upsert; the consumer re-ingests either way.
const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// Event is a debounced document file change.
type Event struct {
	// Path is the file path relative to the watched directory.
	Path string

	// AbsPath is the absolute file path.
	AbsPath string

	// Operation is the type of change.
	Operation Operation
}

// Watcher emits debounced, hash-deduplicated change events for document
// files under a directory.
type Watcher struct {
	cfg     Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	exclude map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	events chan Event

	dropped atomic.Int64
}

// New creates a watcher for the configured directory.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	exclude := make(map[string]bool)
	for _, dir := range cfg.ExcludeDirs {
		exclude[dir] = true
	}

	return &Watcher{
		cfg:     cfg,
		watcher: fsw,
		logger:  logger,
		exclude: exclude,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		events:  make(chan Event, eventChannelBuffer),
	}, nil
}

// Events returns the channel of watch events. It is closed when the watcher
// stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. The events channel is closed when ctx is cancelled
// or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return err
	}
	if err := w.addWatchesRecursive(w.cfg.Dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Document watcher started",
		"dir", w.cfg.Dir,
		"debounce", w.cfg.Debounce,
		"patterns", w.cfg.Patterns)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the hash for a file, used to seed the change detector
// after an initial directory scan.
func (w *Watcher) SetHash(relPath, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[relPath] = hash
}

func (w *Watcher) getHash(relPath string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[relPath]
	return hash, ok
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *Watcher) DroppedEvents() int64 {
	return w.dropped.Load()
}

// matches reports whether a relative path matches any configured pattern.
func (w *Watcher) matches(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range w.cfg.Patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if path != root && (w.exclude[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name
	relPath, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		return
	}

	if !w.matches(relPath) {
		// New subdirectories need their own watch.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	for excludeDir := range w.exclude {
		if strings.Contains(relPath, excludeDir+string(filepath.Separator)) {
			return
		}
	}

	w.pendingMu.Lock()
	w.pending[path] = w.pending[path] | event.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) handleNewDirectory(path string) {
	base := filepath.Base(path)
	if w.exclude[base] || strings.HasPrefix(base, ".") {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
	}
}

// flushPending turns accumulated fsnotify ops into events, dropping changes
// whose content hash is unchanged.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.cfg.Dir, path)
		event := Event{Path: relPath, AbsPath: path}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			event.Operation = OpDelete
			w.hashMu.Lock()
			delete(w.hashes, relPath)
			w.hashMu.Unlock()
			w.sendEvent(event)
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			event.Operation = OpDelete
			w.sendEvent(event)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("Failed to read changed file", "path", relPath, "error", err)
			continue
		}

		newHash := source.ContentHash(content)
		if oldHash, ok := w.getHash(relPath); ok && oldHash == newHash {
			continue
		}
		w.SetHash(relPath, newHash)

		event.Operation = OpUpsert
		w.sendEvent(event)
	}
}

func (w *Watcher) sendEvent(event Event) {
	select {
	case w.events <- event:
		w.logger.Debug("Watch event", "path", event.Path, "op", event.Operation)
	default:
		dropped := w.dropped.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}
