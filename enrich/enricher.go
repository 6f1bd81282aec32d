package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// linkedContentDelimiter separates the original document text from the
// appended per-URL blocks.
const linkedContentDelimiter = "--- Linked content ---"

// Enricher merges fetched link content into document text. It owns the
// fetch/clean cycle per URL and records every outcome in the shared cache,
// so repeat enrichments (and other documents referencing the same URLs) are
// served without network traffic.
type Enricher struct {
	cfg     Config
	cache   *Cache
	fetcher *Fetcher
	cleaner *Cleaner
	logger  *slog.Logger
	metrics *Metrics
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// WithMetrics enables metrics collection.
func WithMetrics(m *Metrics) EnricherOption {
	return func(e *Enricher) {
		e.metrics = m
	}
}

// WithFetcher sets a custom fetcher. Tests use this to substitute a fetcher
// pointed at a local server.
func WithFetcher(f *Fetcher) EnricherOption {
	return func(e *Enricher) {
		e.fetcher = f
	}
}

// NewEnricher creates an enricher. The cache is injected rather than owned
// so callers control its scope: production shares one cache process-wide,
// tests get a fresh isolated cache per case.
func NewEnricher(cfg Config, cache *Cache, opts ...EnricherOption) (*Enricher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("enrich config: %w", err)
	}
	if cache == nil {
		cache = NewCache()
	}

	e := &Enricher{
		cfg:     cfg,
		cache:   cache,
		cleaner: NewCleaner(cfg),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = NewFetcher(cfg, e.logger)
	}
	return e, nil
}

// Enrich returns documentText with a labeled block of fetched content (or a
// failure note) appended for every URL the text contains, in first-appearance
// order. Text without URLs is returned unchanged without touching the cache
// or the network. The input is never mutated; with a warm cache the output
// is byte-identical across calls.
func (e *Enricher) Enrich(ctx context.Context, documentText, documentTitle string) string {
	urls := ExtractURLs(documentText)
	if len(urls) == 0 {
		return documentText
	}

	e.logger.Info("Enriching document links",
		"document", documentTitle,
		"urls", len(urls))

	blocks := make([]string, 0, len(urls))
	for _, url := range urls {
		entry := e.lookup(ctx, url)

		// Every extracted URL gets a block, success or not, so a reader
		// can audit coverage of the enriched text.
		if entry.Failed {
			blocks = append(blocks, fmt.Sprintf("[Could not fetch: %s: %s]", url, entry.Reason))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Content from: %s]\n%s", url, entry.Content))
	}

	var sb strings.Builder
	sb.WriteString(documentText)
	sb.WriteString("\n\n")
	sb.WriteString(linkedContentDelimiter)
	sb.WriteString("\n\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	return sb.String()
}

// lookup serves one URL from the cache, fetching and cleaning on a miss.
func (e *Enricher) lookup(ctx context.Context, url string) Entry {
	if entry, ok := e.cache.Get(url); ok {
		e.metrics.recordCacheHit()
		return entry
	}

	return e.cache.GetOrFetch(url, func() (Entry, bool) {
		return e.fetchAndClean(ctx, url)
	})
}

// fetchAndClean performs the live fetch/clean cycle for one URL and shapes
// the outcome into a cache entry. Failures become entries too, so a URL that
// failed once is not retried on every subsequent upload. The second result
// reports whether the entry may be cached: a fetch that failed because the
// caller's context was cancelled or expired says nothing about the URL, so
// it must stay out of the shared cache.
func (e *Enricher) fetchAndClean(ctx context.Context, url string) (Entry, bool) {
	start := time.Now()
	res := e.fetcher.Fetch(ctx, url)
	if !res.OK() {
		e.metrics.recordFetch(string(res.Err.Kind), time.Since(start).Seconds())
		e.logger.Warn("Failed to fetch URL",
			"url", url,
			"attempts", res.Attempts,
			"error", res.Err)
		return Entry{
			Failed:   true,
			Reason:   res.Err.Error(),
			FailedAt: time.Now(),
		}, ctx.Err() == nil
	}

	cleaned, cerr := e.cleaner.Clean(res.Body, res.ContentType, url)
	if cerr != nil {
		e.metrics.recordFetch(string(cerr.Kind), time.Since(start).Seconds())
		e.logger.Warn("Failed to clean fetched content",
			"url", url,
			"content_type", res.ContentType,
			"error", cerr)
		// Cleaning is deterministic over the fetched bytes, so this
		// failure is always cacheable.
		return Entry{
			Failed:   true,
			Reason:   cerr.Error(),
			FailedAt: time.Now(),
		}, true
	}

	e.metrics.recordFetch("success", time.Since(start).Seconds())
	if cleaned.Truncated {
		e.metrics.recordTruncation()
	}
	e.logger.Info("Fetched linked content",
		"url", url,
		"chars", len(cleaned.Text),
		"truncated", cleaned.Truncated)

	return Entry{
		Content:   cleaned.Text,
		Title:     cleaned.Title,
		FetchedAt: time.Now(),
	}, true
}
