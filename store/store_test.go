package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docuchat/docqa/enrich"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := enrich.DefaultConfig()
	cfg.MaxAttempts = 1
	cfg.Timeout = 2 * time.Second
	cfg.BackoffBase = time.Millisecond

	e, err := enrich.NewEnricher(cfg, enrich.NewCache())
	if err != nil {
		t.Fatal(err)
	}
	return New(e, nil, nil)
}

func TestStore_AddGetRemove(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Add(context.Background(), "Handbook", "handbook.md", "# Welcome\n\nNo links here.")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if doc.ID != "doc.handbook" {
		t.Errorf("ID = %q, want %q", doc.ID, "doc.handbook")
	}
	if doc.EnrichedText != doc.RawText {
		t.Error("document without links should have enriched text equal to raw text")
	}
	if len(doc.Chunks) == 0 {
		t.Error("document should have chunks")
	}

	got, err := s.Get(doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Handbook" {
		t.Errorf("Title = %q, want %q", got.Title, "Handbook")
	}

	if err := s.Remove(doc.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := s.Get(doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Remove = %v, want ErrNotFound", err)
	}
}

func TestStore_AddEnrichesLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>policy details</p>")
	}))
	defer srv.Close()

	s := newTestStore(t)

	raw := "See the full policy at " + srv.URL
	doc, err := s.Add(context.Background(), "Policy", "", raw)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if doc.RawText != raw {
		t.Error("RawText must not be mutated by enrichment")
	}
	if !strings.Contains(doc.EnrichedText, "policy details") {
		t.Error("EnrichedText should contain fetched link content")
	}
	if !strings.HasPrefix(doc.EnrichedText, raw) {
		t.Error("EnrichedText should begin with the raw text")
	}
}

func TestStore_AddSucceedsWhenAllLinksFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := newTestStore(t)

	doc, err := s.Add(context.Background(), "Doomed", "", "broken "+srv.URL)
	if err != nil {
		t.Fatalf("Add() must not fail when links fail: %v", err)
	}
	if !strings.Contains(doc.EnrichedText, "[Could not fetch:") {
		t.Error("EnrichedText should record the link failure")
	}
}

func TestStore_ListOrderedByTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Add(ctx, title, "", "content of "+title); err != nil {
			t.Fatal(err)
		}
	}

	docs := s.List()
	if len(docs) != 3 {
		t.Fatalf("List() returned %d docs, want 3", len(docs))
	}
	if docs[0].Title != "alpha" || docs[2].Title != "zeta" {
		t.Errorf("List() order = [%s %s %s], want title order",
			docs[0].Title, docs[1].Title, docs[2].Title)
	}
}

func TestStore_ReAddReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, "Notes", "", "version one")
	s.Add(ctx, "Notes", "", "version two")

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after re-adding the same title", s.Len())
	}
	doc, _ := s.Get("doc.notes")
	if doc.RawText != "version two" {
		t.Errorf("RawText = %q, want the replacement", doc.RawText)
	}
}

func TestStore_RequiresTitle(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add(context.Background(), "", "", "text"); err == nil {
		t.Error("Add() should reject an empty title")
	}
}
