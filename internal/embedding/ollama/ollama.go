// Package ollama embeds text through a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

// Client talks to the /api/embed endpoint with retry on 429 and 5xx.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
	client     *http.Client
	dimension  atomic.Int64
}

type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{},
	}
}

func (c *Client) Name() string { return "ollama:" + c.model }

// Dimension is learned from the first successful response.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

func (c *Client) Embed(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request. The configured timeout bounds
// the whole call including retries.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"model": c.model, "input": texts})
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/api/embed"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, lastDelay(lastErr, attempt-1)); err != nil {
				return nil, fmt.Errorf("ollama embeddings: %w (last error: %v)", err, lastErr)
			}
		}

		vecs, err := c.do(ctx, url, body)
		if err == nil {
			if len(vecs) != len(texts) {
				return nil, fmt.Errorf("ollama embeddings: got %d vectors for %d inputs", len(vecs), len(texts))
			}
			c.dimension.CompareAndSwap(0, int64(len(vecs[0])))
			return vecs, nil
		}
		lastErr = err
		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("ollama embeddings: giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

// retryableError marks throttling and server failures.
type retryableError struct {
	status     string
	retryAfter time.Duration
	cause      error
}

func (e *retryableError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return "ollama embeddings failed: " + e.status
}

func (e *retryableError) Unwrap() error { return e.cause }

func (c *Client) do(ctx context.Context, url string, body []byte) ([]domain.Vector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ollama embeddings: %w", ctx.Err())
		}
		return nil, &retryableError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		re := &retryableError{status: resp.Status}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			re.retryAfter = time.Duration(secs) * time.Second
		}
		return nil, re
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama embeddings failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{cause: err}
	}
	return decode(payload)
}

// decode accepts the native {"embeddings": [...]} shape and the
// OpenAI-compatible {"data": [{"embedding": [...]}]} shape.
func decode(payload []byte) ([]domain.Vector, error) {
	var native struct {
		Embeddings []domain.Vector `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &native); err == nil && len(native.Embeddings) > 0 {
		return native.Embeddings, nil
	}
	var compat struct {
		Data []struct {
			Embedding domain.Vector `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &compat); err == nil && len(compat.Data) > 0 {
		out := make([]domain.Vector, len(compat.Data))
		for i, d := range compat.Data {
			out[i] = d.Embedding
		}
		return out, nil
	}
	return nil, errors.New("no embedding returned")
}

func lastDelay(err error, attempt int) time.Duration {
	var re *retryableError
	if errors.As(err, &re) && re.retryAfter > 0 {
		return re.retryAfter
	}
	return retryDelay(attempt)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
