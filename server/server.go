// Package server exposes the document store and Q&A engine over a JSON HTTP
// API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/docuchat/docqa/qa"
	"github.com/docuchat/docqa/source"
	"github.com/docuchat/docqa/store"
)

// maxUploadSize limits document upload sizes.
const maxUploadSize = 10 << 20 // 10 MB

// maxRequestBodySize limits JSON POST bodies.
const maxRequestBodySize = 1 << 20 // 1 MB

// allowedExtensions are the upload file types accepted by POST /api/docs.
var allowedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Asker answers questions from the loaded documents. *qa.Engine satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string) (*qa.Answer, error)
}

// Server is the HTTP API over a document store and Q&A engine.
type Server struct {
	store     *store.Store
	asker     Asker
	publisher *Publisher
	metrics   http.Handler
	logger    *slog.Logger

	// ingestTimeout bounds enrichment during upload. Link fetching happens
	// at ingestion time, so the request deadline is the enrichment budget.
	ingestTimeout time.Duration
	askTimeout    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPublisher sets the ingest event publisher.
func WithPublisher(p *Publisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}

// WithMetricsHandler mounts a handler at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithIngestTimeout bounds document ingestion, including link enrichment.
func WithIngestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.ingestTimeout = d
		}
	}
}

// WithAskTimeout bounds question answering, including the LLM call.
func WithAskTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.askTimeout = d
		}
	}
}

// New creates the API server.
func New(st *store.Store, asker Asker, opts ...Option) *Server {
	s := &Server{
		store:         st,
		asker:         asker,
		logger:        slog.Default(),
		ingestTimeout: 2 * time.Minute,
		askTimeout:    3 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/docs", s.handleDocs)
	mux.HandleFunc("/api/docs/", s.handleDocByID)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// ----------------------------------------------------------------------------
// GET/POST /api/docs
// ----------------------------------------------------------------------------

// DocumentSummary is the list representation of a document.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename,omitempty"`
	Chars     int       `json:"chars"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

func summarize(doc *source.Document) DocumentSummary {
	return DocumentSummary{
		ID:        doc.ID,
		Title:     doc.Title,
		Filename:  doc.Filename,
		Chars:     len(doc.RawText),
		Chunks:    len(doc.Chunks),
		CreatedAt: doc.CreatedAt,
	}
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListDocs(w, r)
	case http.MethodPost:
		s.handleUploadDoc(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListDocs(w http.ResponseWriter, _ *http.Request) {
	docs := s.store.List()
	summaries := make([]DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, summarize(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": summaries})
}

// UploadRequest is the JSON request body for POST /api/docs. Multipart
// uploads use the "file" form field instead, with an optional "title" field.
type UploadRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (s *Server) handleUploadDoc(w http.ResponseWriter, r *http.Request) {
	title, filename, text, err := readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.ingestTimeout)
	defer cancel()

	doc, err := s.store.Add(ctx, title, filename, text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.publisher.DocumentIngested(doc)

	writeJSON(w, http.StatusCreated, summarize(doc))
}

// readUpload extracts title, filename, and text from either a multipart file
// upload or a JSON body. JSON uploads have no filename.
func readUpload(w http.ResponseWriter, r *http.Request) (title, filename, text string, err error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return "", "", "", fmt.Errorf("invalid multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", "", fmt.Errorf("file field is required")
		}
		defer file.Close()

		if err := checkExtension(header); err != nil {
			return "", "", "", err
		}

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil {
			return "", "", "", fmt.Errorf("read upload: %w", err)
		}

		filename = filepath.Base(header.Filename)
		title = r.FormValue("title")
		if title == "" {
			title = strings.TrimSuffix(filename, filepath.Ext(filename))
		}
		return title, filename, string(data), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", "", fmt.Errorf("invalid request body")
	}
	if req.Title == "" {
		return "", "", "", fmt.Errorf("title is required")
	}
	return req.Title, "", req.Text, nil
}

func checkExtension(header *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type %q, accepted: .txt, .md, .markdown", ext)
	}
	return nil
}

// ----------------------------------------------------------------------------
// GET/DELETE /api/docs/{id}
// ----------------------------------------------------------------------------

func (s *Server) handleDocByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/docs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := s.store.Get(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "document not found: "+id)
				return
			}
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, doc)

	case http.MethodDelete:
		if err := s.store.Remove(id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "document not found: "+id)
				return
			}
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		s.logger.Info("Document removed", "id", id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ----------------------------------------------------------------------------
// POST /api/ask
// ----------------------------------------------------------------------------

// AskRequest is the request body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.askTimeout)
	defer cancel()

	answer, err := s.asker.Ask(ctx, req.Question)
	if err != nil {
		s.logger.Error("Question failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// ----------------------------------------------------------------------------
// GET /healthz
// ----------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": s.store.Len(),
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
