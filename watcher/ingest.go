package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docuchat/docqa/source"
	"github.com/docuchat/docqa/store"
)

// Ingester consumes watch events and keeps the store in sync with the
// watched directory.
type Ingester struct {
	store  *store.Store
	logger *slog.Logger
}

// NewIngester creates an ingester feeding the given store.
func NewIngester(st *store.Store, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{store: st, logger: logger}
}

// Run consumes events until the channel closes or ctx is cancelled.
func (i *Ingester) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			i.handle(ctx, event)
		}
	}
}

// SeedDirectory ingests every matching file already present under dir and
// seeds the watcher's hash cache so the initial scan does not re-fire.
func (i *Ingester) SeedDirectory(ctx context.Context, w *Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if path != dir && (w.exclude[base] || strings.HasPrefix(base, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil || !w.matches(relPath) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			i.logger.Warn("Failed to read document", "path", relPath, "error", err)
			return nil
		}

		w.SetHash(relPath, source.ContentHash(content))

		title := titleFromPath(path)
		if _, err := i.store.Add(ctx, title, filepath.Base(path), string(content)); err != nil {
			i.logger.Warn("Failed to ingest document", "path", relPath, "error", err)
		}
		return nil
	})
}

func (i *Ingester) handle(ctx context.Context, event Event) {
	title := titleFromPath(event.AbsPath)

	switch event.Operation {
	case OpDelete:
		id := source.DocID(title)
		if err := i.store.Remove(id); err != nil {
			i.logger.Debug("Removed file was not in store", "path", event.Path)
			return
		}
		i.logger.Info("Document removed with file", "id", id, "path", event.Path)

	case OpUpsert:
		content, err := os.ReadFile(event.AbsPath)
		if err != nil {
			i.logger.Warn("Failed to read changed document", "path", event.Path, "error", err)
			return
		}
		if _, err := i.store.Add(ctx, title, filepath.Base(event.AbsPath), string(content)); err != nil {
			i.logger.Warn("Failed to ingest changed document", "path", event.Path, "error", err)
		}
	}
}

// titleFromPath derives a document title from a file path, the base name
// without extension.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
