// Package llm provides a client for OpenAI-compatible chat completion
// endpoints with retry and backoff.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// RetryConfig bounds how the client retries transient completion failures.
// Completion calls sit on the question-answering path, so the defaults lean
// toward answering slowly over giving up.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per call, including the
	// first.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the delay on each further retry.
	BackoffMultiplier float64

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry defaults for completion calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Config holds the endpoint settings for the LLM client.
type Config struct {
	// Endpoint is the API base URL (e.g. "https://api.openai.com/v1" or a
	// local Ollama endpoint "http://localhost:11434/v1").
	Endpoint string `yaml:"endpoint"`

	// Model is the model name sent with every request.
	Model string `yaml:"model"`

	// APIKey authenticates requests; empty for unauthenticated local
	// endpoints.
	APIKey string `yaml:"-"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`

	// MaxTokens limits response length. 0 uses the endpoint default.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds each request attempt.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns defaults suitable for a local Ollama endpoint.
func DefaultConfig() Config {
	return Config{
		Endpoint:    "http://localhost:11434/v1",
		Model:       "llama3",
		Temperature: 0.2,
		Timeout:     2 * time.Minute,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %g", c.Temperature)
	}
	return nil
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID uniquely identifies this LLM call for log correlation.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model that produced the response.
	Model string

	// Usage contains token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Client is an LLM client for one OpenAI-compatible endpoint with retry
// support.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// NewClient creates a new LLM client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}

	c := &Client{
		cfg:         cfg,
		retryConfig: DefaultRetryConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 2 * time.Minute
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// Complete sends a chat completion request, retrying transient failures
// (network errors, 429, 5xx) with exponential backoff.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Response, error) {
	requestID := uuid.New().String()

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, messages)
		if err == nil {
			resp.RequestID = requestID
			return resp, nil
		}

		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("LLM request failed, retrying",
				"request_id", requestID,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("llm request failed after %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple clients retry simultaneously.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// --- OpenAI-compatible wire types ---

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// doRequest executes a single HTTP request to the endpoint.
func (c *Client) doRequest(ctx context.Context, messages []Message) (*Response, error) {
	temp := c.cfg.Temperature
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fatalErr(0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fatalErr(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transientErr(0, fmt.Errorf("send request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, transientErr(0, fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%s", truncateForLog(respBody))
		// Rate limits and server errors are worth retrying; the rest
		// indicate a config or request problem.
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			return nil, transientErr(httpResp.StatusCode, err)
		}
		return nil, fatalErr(httpResp.StatusCode, err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, transientErr(0, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return nil, fatalErr(0, fmt.Errorf("endpoint error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, transientErr(0, fmt.Errorf("response contained no choices"))
	}

	return &Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		Usage:        parsed.Usage,
		FinishReason: parsed.Choices[0].FinishReason,
	}, nil
}

// buildURL constructs the chat completions URL from the endpoint base.
func (c *Client) buildURL() string {
	base := strings.TrimSuffix(c.cfg.Endpoint, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// truncateForLog bounds an error body for inclusion in error messages.
func truncateForLog(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
