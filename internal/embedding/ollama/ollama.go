package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ragstore/internal/domain"
)

// Client calls an Ollama embedding endpoint. One network call per Embed;
// no retries, the caller owns retry policy. The configured dimension is
// enforced on every response.
type Client struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// Config configures the Ollama embedding client.
type Config struct {
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewClient creates an Ollama embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm:33m"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("ollama: dimension must be positive, got %d", cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// Dimension returns the declared embedding vector size.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns the embedding vector for a single text using the
// {model, prompt} -> {embedding} wire shape.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body := map[string]any{"model": c.model, "prompt": text}
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/api/embeddings", body, &out); err != nil {
		return nil, err
	}
	if err := c.checkDimension(len(out.Embedding)); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

// EmbedBatch embeds several texts in one call using the batch wire shape
// {model, input} -> {embeddings}.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := map[string]any{"model": c.model, "input": texts}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/api/embed", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			domain.ErrEmbeddingService, len(out.Embeddings), len(texts))
	}
	for _, v := range out.Embeddings {
		if err := c.checkDimension(len(v)); err != nil {
			return nil, err
		}
	}
	return out.Embeddings, nil
}

func (c *Client) checkDimension(got int) error {
	if got != c.dimension {
		return fmt.Errorf("%w: dimension mismatch, want %d got %d",
			domain.ErrEmbeddingService, c.dimension, got)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", domain.ErrEmbeddingService, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: POST %s: %s", domain.ErrEmbeddingService, url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrEmbeddingService, err)
	}
	return nil
}
