package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// FetchResult is the outcome of fetching one URL. Failures are represented
// as data: Err is set and Body is empty, never the other way around.
type FetchResult struct {
	// Body is the raw response body on success.
	Body []byte

	// ContentType is the response Content-Type header.
	ContentType string

	// StatusCode is the final HTTP status code, 0 if no response arrived.
	StatusCode int

	// Attempts is how many attempts were made, including the first.
	Attempts int

	// Err classifies the failure when the fetch did not succeed.
	Err *FetchError
}

// OK reports whether the fetch succeeded.
func (r *FetchResult) OK() bool {
	return r.Err == nil
}

// Fetcher retrieves URL content with bounded retries and exponential
// backoff. All failures are classified and returned inside the FetchResult;
// Fetch never returns an error to the caller.
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger
}

// NewFetcher creates a fetcher from the given configuration.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch retrieves url, retrying transient failures (network errors,
// timeouts, 5xx statuses) up to Config.MaxAttempts total attempts with
// exponential backoff between them. Terminal failures (4xx statuses,
// unsupported content types) return immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) *FetchResult {
	result := &FetchResult{}

	var lastErr *FetchError
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		body, contentType, status, ferr := f.doAttempt(ctx, url)
		if ferr == nil {
			result.Body = body
			result.ContentType = contentType
			result.StatusCode = status
			f.logger.Debug("Fetched URL",
				"url", url,
				"attempt", attempt,
				"bytes", len(body))
			return result
		}

		lastErr = ferr
		result.StatusCode = status

		if !ferr.Transient() {
			f.logger.Debug("Fetch failed with terminal error",
				"url", url,
				"attempt", attempt,
				"error", ferr)
			break
		}

		if attempt < f.cfg.MaxAttempts {
			backoff := f.backoff(attempt)
			f.logger.Debug("Fetch failed, retrying",
				"url", url,
				"attempt", attempt,
				"max_attempts", f.cfg.MaxAttempts,
				"backoff", backoff,
				"error", ferr)

			select {
			case <-ctx.Done():
				result.Err = &FetchError{Kind: KindNetwork, Err: ctx.Err()}
				return result
			case <-time.After(backoff):
			}
		}
	}

	result.Err = lastErr
	return result
}

// doAttempt performs a single GET and classifies any failure.
func (f *Fetcher) doAttempt(ctx context.Context, url string) (body []byte, contentType string, status int, ferr *FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", 0, &FetchError{Kind: KindNetwork, Err: err}
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	contentType = resp.Header.Get("Content-Type")
	status = resp.StatusCode

	if status < 200 || status > 299 {
		return nil, contentType, status, &FetchError{Kind: KindHTTPStatus, Status: status}
	}

	if !supportedContentType(contentType) {
		return nil, contentType, status, &FetchError{
			Kind: KindUnsupportedContent,
			Err:  fmt.Errorf("content type %q", contentType),
		}
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBodySize)
	body, err = io.ReadAll(limited)
	if err != nil {
		return nil, contentType, status, classifyTransportError(err)
	}

	return body, contentType, status, nil
}

// backoff computes the delay before the next attempt. attempt is 1-based.
func (f *Fetcher) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= f.cfg.BackoffMultiplier
	}

	backoff := time.Duration(float64(f.cfg.BackoffBase) * multiplier)
	if f.cfg.MaxBackoff > 0 && backoff > f.cfg.MaxBackoff {
		backoff = f.cfg.MaxBackoff
	}
	return backoff
}

// classifyTransportError maps a transport-level error to a FetchError kind.
func classifyTransportError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	return &FetchError{Kind: KindNetwork, Err: err}
}

// supportedContentType reports whether a Content-Type header indicates
// HTML or plain text. An empty header is given the benefit of the doubt;
// many small servers omit it for HTML pages.
func supportedContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	for _, prefix := range []string{"text/html", "application/xhtml+xml", "text/plain", "text/markdown"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
