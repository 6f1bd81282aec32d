// Package source defines the document and chunk types shared across the
// docqa pipeline.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Document is an uploaded document after ingestion.
type Document struct {
	// ID is the document identifier, derived from the title.
	ID string `json:"id"`

	// Title is the display title (typically the filename without extension).
	Title string `json:"title"`

	// Filename is the original filename, if the document came from a file.
	Filename string `json:"filename,omitempty"`

	// RawText is the text as uploaded. Never mutated after creation.
	RawText string `json:"raw_text"`

	// EnrichedText is RawText plus appended linked content. Equal to
	// RawText when the document contains no fetchable links.
	EnrichedText string `json:"enriched_text"`

	// Chunks is derived from EnrichedText at ingestion time.
	Chunks []Chunk `json:"chunks,omitempty"`

	// ContentHash is the hash of RawText, used for change detection.
	ContentHash string `json:"content_hash,omitempty"`

	// CreatedAt is the ingestion timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is a bounded slice of enriched document text used for relevance
// scoring and prompt construction.
type Chunk struct {
	// DocumentID is the ID of the owning document.
	DocumentID string `json:"document_id"`

	// Index is the chunk sequence number within the document.
	Index int `json:"index"`

	// Section is the heading the chunk belongs to, when known.
	Section string `json:"section,omitempty"`

	// Content is the chunk text.
	Content string `json:"content"`

	// TokenCount is the estimated token count.
	TokenCount int `json:"token_count"`
}

// ContentHash returns a hex-encoded SHA-256 hash of content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DocID creates a document ID slug from a title or base filename.
func DocID(title string) string {
	slug := strings.ToLower(title)
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "untitled"
	}
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return "doc." + slug
}
