// Package store provides the in-memory document store. Documents are
// enriched and chunked once at ingestion time; persistence across restarts
// is out of scope.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/docuchat/docqa/enrich"
	"github.com/docuchat/docqa/source"
	"github.com/docuchat/docqa/source/chunker"
)

// ErrNotFound is returned when a document ID is unknown.
var ErrNotFound = fmt.Errorf("document not found")

// Store holds ingested documents in memory, keyed by document ID.
// Safe for concurrent use.
type Store struct {
	enricher *enrich.Enricher
	chunker  *chunker.Chunker
	logger   *slog.Logger

	mu   sync.RWMutex
	docs map[string]*source.Document
}

// New creates a document store. The enricher is shared so its fetch cache
// spans all documents ingested during the process lifetime.
func New(enricher *enrich.Enricher, ch *chunker.Chunker, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if ch == nil {
		ch = chunker.NewDefault()
	}
	return &Store{
		enricher: enricher,
		chunker:  ch,
		logger:   logger,
		docs:     make(map[string]*source.Document),
	}
}

// Add ingests a document: enriches its link content, chunks the enriched
// text, and stores the result. Re-adding a title replaces the previous
// version. Link failures never fail the ingestion; they are recorded inside
// the enriched text.
func (s *Store) Add(ctx context.Context, title, filename, rawText string) (*source.Document, error) {
	if title == "" {
		return nil, fmt.Errorf("document title is required")
	}

	enriched := rawText
	if s.enricher != nil {
		enriched = s.enricher.Enrich(ctx, rawText, title)
	}

	doc := &source.Document{
		ID:           source.DocID(title),
		Title:        title,
		Filename:     filename,
		RawText:      rawText,
		EnrichedText: enriched,
		ContentHash:  source.ContentHash([]byte(rawText)),
		CreatedAt:    time.Now(),
	}
	doc.Chunks = s.chunker.Split(doc.ID, enriched)

	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.mu.Unlock()

	s.logger.Info("Document ingested",
		"id", doc.ID,
		"title", title,
		"raw_chars", len(rawText),
		"enriched_chars", len(enriched),
		"chunks", len(doc.Chunks))

	return doc, nil
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (*source.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// List returns all documents ordered by title.
func (s *Store) List() []*source.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*source.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Title < docs[j].Title })
	return docs
}

// Remove deletes the document with the given ID.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.docs, id)
	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Chunks returns every chunk of every document, document order stable.
func (s *Store) Chunks() []source.Chunk {
	var chunks []source.Chunk
	for _, doc := range s.List() {
		chunks = append(chunks, doc.Chunks...)
	}
	return chunks
}

// TitleByID returns the title for a document ID, or the ID itself when
// unknown.
func (s *Store) TitleByID(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[id]; ok {
		return doc.Title
	}
	return id
}
