package server

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/docuchat/docqa/source"
)

// IngestEvent is published when a document is ingested.
type IngestEvent struct {
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash"`
	Chunks      int       `json:"chunks"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Publisher publishes ingest events to NATS. A nil Publisher is a no-op, so
// deployments without NATS skip event publication without branching at call
// sites.
type Publisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// NewPublisher creates an event publisher. The subject for a document is
// "<prefix>.ingested.<document id>".
func NewPublisher(nc *nats.Conn, subjectPrefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if subjectPrefix == "" {
		subjectPrefix = "docs"
	}
	return &Publisher{nc: nc, subjectPrefix: subjectPrefix, logger: logger}
}

// DocumentIngested publishes an ingest event. Publish failures are logged,
// never propagated; event delivery must not fail document ingestion.
func (p *Publisher) DocumentIngested(doc *source.Document) {
	if p == nil || p.nc == nil {
		return
	}

	event := IngestEvent{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		ContentHash: doc.ContentHash,
		Chunks:      len(doc.Chunks),
		IngestedAt:  doc.CreatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal ingest event", "document_id", doc.ID, "error", err)
		return
	}

	subject := p.subjectPrefix + ".ingested." + doc.ID
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish ingest event", "subject", subject, "error", err)
		return
	}

	p.logger.Debug("Ingest event published", "subject", subject)
}
