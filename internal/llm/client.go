// Package llm talks to an OpenAI-compatible chat-completions endpoint and
// turns model output into query plans or validated SQL.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vidstats/internal/domain"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("model API key is not configured")

const maxResponseBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	SiteURL     string // sent as HTTP-Referer when set
	SiteName    string // sent as X-Title when set
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RateLimit   float64 // requests per second, 0 disables
}

// Request is one chat completion: a system prompt and a user message.
type Request struct {
	System    string
	User      string
	JSONMode  bool
	MaxTokens int
}

// Completer returns the text content of one chat completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var _ Completer = (*Client)(nil)

// Client posts chat completions with bounded retries.
type Client struct {
	opts    Options
	http    domain.HTTPDoer
	limiter *rate.Limiter
	logger  *slog.Logger

	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client. A nil doer uses http.DefaultClient; each
// attempt is bounded by opts.Timeout through its context.
func NewClient(opts Options, doer domain.HTTPDoer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	c := &Client{
		opts:   opts,
		http:   doer,
		logger: logger.With("component", "llm"),
		jitter: uniformJitter(DefaultJitterMax),
		sleep:  sleepCtx,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), int(math.Max(1, math.Ceil(opts.RateLimit))))
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req, retrying transport failures, HTTP errors and
// malformed bodies with exponential backoff. Exhaustion returns a
// *domain.TransientError wrapping the last failure.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.opts.APIKey == "" {
		return "", ErrNotConfigured
	}

	payload := chatRequest{
		Model:     c.opts.Model,
		MaxTokens: req.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
	}
	if req.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	var lastErr error
	attempt := 0
	for attempt < c.opts.MaxAttempts {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}
		text, err := c.attempt(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == c.opts.MaxAttempts {
			break
		}

		delay := Backoff(attempt, c.opts.BaseDelay, c.opts.MaxDelay, c.jitter)
		c.logger.Warn("model call failed",
			"attempt", attempt, "max_attempts", c.opts.MaxAttempts,
			"retry_in_ms", delay.Milliseconds(), "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return "", &domain.TransientError{Attempts: attempt, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, body []byte) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.SiteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.opts.SiteURL)
	}
	if c.opts.SiteName != "" {
		httpReq.Header.Set("X-Title", c.opts.SiteName)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("model endpoint HTTP %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	return contentText(parsed.Choices[0].Message.Content)
}

// contentText accepts content as a plain string or as a list of
// {"type":"text","text":...} parts.
func contentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("unexpected message content: %w", err)
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "" || p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
