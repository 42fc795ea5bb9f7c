package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ClientConfig configures the HTTP embedding client. It mirrors the
// teacher's config.EmbeddingConfig shape (BaseURL + Path rather than a
// single URL field, pluggable auth header name).
type ClientConfig struct {
	Model     string
	BaseURL   string
	Path      string
	APIKey    string
	APIHeader string // e.g. "Authorization"; empty disables auth headers
	Timeout   time.Duration
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client is an HTTP-backed Embedder calling an OpenAI-compatible
// /embeddings endpoint. Requests are sent one item at a time by default,
// matching the teacher's avoidance of batch-inference instability in some
// local embedding servers (e.g. llama.cpp).
type Client struct {
	cfg       ClientConfig
	dim       int
	http      *http.Client
	batchSize int

	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewClient constructs an HTTP Embedder for cfg, reporting dim as its
// Dimension().
func NewClient(cfg ClientConfig, dim int) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:       cfg,
		dim:       dim,
		http:      &http.Client{Timeout: timeout},
		batchSize: 1,
	}
}

func (c *Client) Name() string   { return c.cfg.Model }
func (c *Client) Dimension() int { return c.dim }

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.EmbedBatch(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= c.batchSize {
		return c.rateLimitedCall(ctx, texts)
	}
	var all [][]float32
	for i := 0; i < len(texts); i += c.batchSize {
		end := i + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		emb, err := c.rateLimitedCall(ctx, texts[i:end])
		if err != nil {
			return all, err
		}
		all = append(all, emb...)
	}
	return all, nil
}

func (c *Client) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	if !c.lastCall.IsZero() {
		if elapsed := time.Since(c.lastCall); elapsed < c.minDelay {
			time.Sleep(c.minDelay - elapsed)
		}
	}
	c.lastCall = time.Now()
	c.mu.Unlock()

	return c.call(ctx, texts)
}

func (c *Client) call(ctx context.Context, inputs []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: inputs})
	if err != nil {
		return nil, err
	}
	url := c.cfg.BaseURL + c.cfg.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if c.cfg.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else if c.cfg.APIHeader != "" {
		req.Header.Set(c.cfg.APIHeader, c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("embeddings error: %s: %s", resp.Status, string(body))
	}

	var er embedResponse
	if err := json.Unmarshal(body, &er); err != nil {
		n := len(body)
		if n > 200 {
			n = 200
		}
		return nil, fmt.Errorf("parse embedding response (input count %d, body %q): %w", len(inputs), body[:n], err)
	}
	if len(er.Data) != len(inputs) {
		return nil, fmt.Errorf("unexpected embedding count: got %d want %d", len(er.Data), len(inputs))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

var _ Embedder = (*Client)(nil)
