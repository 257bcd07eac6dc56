package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/apperr"
)

const defaultModelAPIURL = "https://api.anthropic.com/v1/messages"

// Client wraps the model API with retry, a concurrency limiter, and a
// circuit breaker, configured through functional options in the
// teacher's style.
type Client struct {
	apiKey string
	model  string
	apiURL string

	httpClient *http.Client
	retrier    *retrier
	limiter    *concurrencyLimiter
	breaker    *circuitBreaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryConfig overrides the retry/backoff configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) { c.retrier = newRetrier(cfg) }
}

// WithConcurrencyLimit bounds how many model calls may be in flight at once.
func WithConcurrencyLimit(maxConcurrent int, refillRate time.Duration) ClientOption {
	return func(c *Client) { c.limiter = newConcurrencyLimiter(maxConcurrent, refillRate) }
}

// WithAPIURL overrides the model API endpoint, for testing.
func WithAPIURL(url string) ClientOption {
	return func(c *Client) { c.apiURL = url }
}

// NewClient builds a Client for the given API key and model name.
func NewClient(apiKey, model string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      model,
		apiURL:     defaultModelAPIURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		retrier:    newRetrier(DefaultRetryConfig()),
		limiter:    newConcurrencyLimiter(4, 15*time.Second),
		breaker:    newCircuitBreaker(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiRequest struct {
	Model       string         `json:"model"`
	System      string         `json:"system,omitempty"`
	Messages    []Message      `json:"messages"`
	Tools       []ToolSpec     `json:"tools,omitempty"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
}

type apiResponse struct {
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// CreateMessage sends one turn to the model, honoring the concurrency
// limiter, circuit breaker, and retry policy.
func (c *Client) CreateMessage(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ModelResponse{}, fmt.Errorf("%w: %s", apperr.ErrModelError, err)
	}
	defer c.limiter.Release()

	var resp ModelResponse
	err := c.breaker.Execute(func() error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			r, err := c.doRequest(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		return ModelResponse{}, fmt.Errorf("%w: %s", apperr.ErrModelError, err)
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	body, err := json.Marshal(apiRequest{
		Model:       c.model,
		System:      req.System,
		Messages:    req.Messages,
		Tools:       req.Tools,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return ModelResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return ModelResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ModelResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("model API returned non-200")
		return ModelResponse{}, fmt.Errorf("model API returned status %d: %s", resp.StatusCode, truncate(string(data), 500))
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return ModelResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return ModelResponse{
		StopReason:   parsed.StopReason,
		Content:      parsed.Content,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
