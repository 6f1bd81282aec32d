package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// testConfig returns a config with fast timeouts for fetcher tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.Timeout = 2 * time.Second
	cfg.BackoffBase = 5 * time.Millisecond
	cfg.BackoffMultiplier = 2.0
	return cfg
}

func TestFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "Mozilla") {
			t.Errorf("User-Agent = %q, want a browser-like header", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), nil)
	res := f.Fetch(context.Background(), srv.URL)

	if !res.OK() {
		t.Fatalf("Fetch() failed: %v", res.Err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if !strings.Contains(string(res.Body), "ok") {
		t.Errorf("Body = %q, want page content", res.Body)
	}
}

func TestFetcher_404NoRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), nil)
	res := f.Fetch(context.Background(), srv.URL)

	if res.OK() {
		t.Fatal("Fetch() should fail on 404")
	}
	if res.Err.Kind != KindHTTPStatus || res.Err.Status != 404 {
		t.Errorf("Err = %v, want http_status 404", res.Err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1 (4xx is terminal)", n)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestFetcher_500Retries(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), nil)
	res := f.Fetch(context.Background(), srv.URL)

	if res.OK() {
		t.Fatal("Fetch() should fail after exhausting retries")
	}
	if res.Err.Kind != KindHTTPStatus || res.Err.Status != 500 {
		t.Errorf("Err = %v, want http_status 500", res.Err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("server hit %d times, want 3 (5xx is retried)", n)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestFetcher_RecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), nil)
	res := f.Fetch(context.Background(), srv.URL)

	if !res.OK() {
		t.Fatalf("Fetch() failed: %v", res.Err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestFetcher_TimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.BackoffBase = 10 * time.Millisecond

	f := NewFetcher(cfg, nil)
	start := time.Now()
	res := f.Fetch(context.Background(), srv.URL)
	elapsed := time.Since(start)

	if res.OK() {
		t.Fatal("Fetch() should time out")
	}
	if res.Err.Kind != KindTimeout {
		t.Errorf("Kind = %v, want %v", res.Err.Kind, KindTimeout)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want exactly 3", res.Attempts)
	}

	// Backoff between attempts: 10ms then 20ms.
	if minElapsed := 30 * time.Millisecond; elapsed < minElapsed {
		t.Errorf("elapsed = %s, want at least %s of backoff", elapsed, minElapsed)
	}
}

func TestFetcher_ConnectionRefused(t *testing.T) {
	// Bind and immediately close so the port is known dead.
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	cfg := testConfig()
	cfg.BackoffBase = time.Millisecond

	f := NewFetcher(cfg, nil)
	res := f.Fetch(context.Background(), deadURL)

	if res.OK() {
		t.Fatal("Fetch() should fail against a closed port")
	}
	if res.Err.Kind != KindNetwork && res.Err.Kind != KindTimeout {
		t.Errorf("Kind = %v, want a transient classification", res.Err.Kind)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (connection errors are retried)", res.Attempts)
	}
}

func TestFetcher_UnsupportedContentType(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), nil)
	res := f.Fetch(context.Background(), srv.URL)

	if res.OK() {
		t.Fatal("Fetch() should reject binary content")
	}
	if res.Err.Kind != KindUnsupportedContent {
		t.Errorf("Kind = %v, want %v", res.Err.Kind, KindUnsupportedContent)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1 (unsupported content is terminal)", n)
	}
}

func TestFetcher_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BackoffBase = 10 * time.Second // cancellation must preempt the sleep

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	f := NewFetcher(cfg, nil)
	start := time.Now()
	res := f.Fetch(ctx, srv.URL)

	if res.OK() {
		t.Fatal("Fetch() should fail when the context is canceled")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch() took %s after cancellation, want prompt return", elapsed)
	}
}

func TestFetcher_BackoffGrowth(t *testing.T) {
	cfg := testConfig()
	cfg.BackoffBase = time.Second
	cfg.BackoffMultiplier = 2.0
	cfg.MaxBackoff = 3 * time.Second

	f := NewFetcher(cfg, nil)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second}, // capped by MaxBackoff
	}
	for _, tt := range tests {
		if got := f.backoff(tt.attempt); got != tt.expected {
			t.Errorf("backoff(%d) = %s, want %s", tt.attempt, got, tt.expected)
		}
	}
}
