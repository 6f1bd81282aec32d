package enrich

import (
	"fmt"
	"time"
)

// ContentFormat selects the output format for cleaned link content.
type ContentFormat string

// Supported content formats.
const (
	// FormatText extracts visible text with whitespace collapsed.
	FormatText ContentFormat = "text"

	// FormatMarkdown converts the page's main content to markdown.
	FormatMarkdown ContentFormat = "markdown"
)

// Config holds configuration for the enrichment pipeline.
type Config struct {
	// MaxContentLength is the maximum number of characters of cleaned
	// content kept per URL. Longer content is truncated with a marker.
	MaxContentLength int `yaml:"max_content_length"`

	// MaxAttempts is the total number of fetch attempts per URL,
	// including the first. Transient failures are retried up to this
	// bound; terminal failures stop immediately.
	MaxAttempts int `yaml:"max_attempts"`

	// Timeout bounds each individual fetch attempt.
	Timeout time.Duration `yaml:"timeout"`

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration `yaml:"backoff_base"`

	// BackoffMultiplier is applied to the backoff on each retry.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// MaxBodySize is the maximum response body size in bytes read from
	// a fetched URL.
	MaxBodySize int64 `yaml:"max_body_size"`

	// UserAgent is the User-Agent header sent with fetch requests.
	UserAgent string `yaml:"user_agent"`

	// Format selects text or markdown output for cleaned content.
	Format ContentFormat `yaml:"format"`
}

// DefaultConfig returns sensible enrichment defaults.
func DefaultConfig() Config {
	return Config{
		MaxContentLength:  10000,
		MaxAttempts:       3,
		Timeout:           10 * time.Second,
		BackoffBase:       1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
		MaxBodySize:       10 * 1024 * 1024, // 10MB
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Format:            FormatText,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be positive, got %d", c.MaxContentLength)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.BackoffBase < 0 {
		return fmt.Errorf("backoff_base must be non-negative, got %s", c.BackoffBase)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be at least 1, got %g", c.BackoffMultiplier)
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("max_body_size must be positive, got %d", c.MaxBodySize)
	}
	switch c.Format {
	case FormatText, FormatMarkdown:
	default:
		return fmt.Errorf("format must be %q or %q, got %q", FormatText, FormatMarkdown, c.Format)
	}
	return nil
}
