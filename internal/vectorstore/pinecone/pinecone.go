package pinecone

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

// Store is a minimal REST client to a Pinecone-compatible vector index.
// It assumes cosine distance and creates the index on first use if missing.
// The wire surface is the Pinecone data plane: /vectors/upsert, /query,
// /vectors/delete, plus /indexes on the same host for index management
// (the shape Pinecone Local exposes).
type Store struct {
	host      string
	apiKey    string
	index     string
	dimension int
	client    *http.Client
}

// Config configures the Pinecone client.
type Config struct {
	Host      string
	APIKey    string
	Index     string
	Dimension int
	Timeout   time.Duration
}

// New creates a Pinecone store client.
func New(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("pinecone: host is required")
	}
	if cfg.Index == "" {
		return nil, errors.New("pinecone: index name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("pinecone: dimension must be positive, got %d", cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		host:      cfg.Host,
		apiKey:    cfg.APIKey,
		index:     cfg.Index,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// EnsureIndex creates the index if it does not exist yet. A concurrent
// creator winning the race surfaces as 409 from the backend and is treated
// as success.
func (s *Store) EnsureIndex(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, s.host+"/indexes/"+s.index, nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("%w: describe index %q: status %d", domain.ErrStoreOperation, s.index, status)
	}
	body := map[string]any{
		"name":      s.index,
		"dimension": s.dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{"cloud": "aws", "region": "us-east-1"},
		},
	}
	status, err = s.do(ctx, http.MethodPost, s.host+"/indexes", body, nil)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		// Someone else created it between our check and create.
		return nil
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: create index %q: status %d", domain.ErrStoreOperation, s.index, status)
	}
	return nil
}

// Upsert writes records by ID. The whole batch is sent in one call; on a
// non-2xx response the error names the batch so no record fails silently.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]map[string]any, len(records))
	for i, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %q: vector dimension %d, want %d",
				domain.ErrStoreOperation, r.ID, len(r.Vector), s.dimension)
		}
		vectors[i] = map[string]any{
			"id":       r.ID,
			"values":   r.Vector,
			"metadata": r.Metadata,
		}
	}
	body := map[string]any{"vectors": vectors}
	status, err := s.do(ctx, http.MethodPost, s.host+"/vectors/upsert", body, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: upsert %d records: status %d", domain.ErrStoreOperation, len(records), status)
	}
	return nil
}

// Query runs a similarity search. The filter maps to Pinecone's metadata
// filter with $eq on every pair.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter map[string]string, includeMetadata bool) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrStoreOperation, topK)
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": includeMetadata,
	}
	if len(filter) > 0 {
		f := make(map[string]any, len(filter))
		for k, v := range filter {
			f[k] = map[string]string{"$eq": v}
		}
		body["filter"] = f
	}
	var resp struct {
		Matches []struct {
			ID       string            `json:"id"`
			Score    float32           `json:"score"`
			Metadata map[string]string `json:"metadata"`
		} `json:"matches"`
	}
	status, err := s.do(ctx, http.MethodPost, s.host+"/query", body, &resp)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: query: status %d", domain.ErrStoreOperation, status)
	}
	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

// Delete removes records by ID. Pinecone ignores unknown IDs, which gives
// the idempotent-delete behavior callers rely on.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	status, err := s.do(ctx, http.MethodPost, s.host+"/vectors/delete", body, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: delete %d ids: status %d", domain.ErrStoreOperation, len(ids), status)
	}
	return nil
}

// do sends one JSON request and decodes the response into out when given.
// Transport-level failures map to ErrStoreUnavailable; HTTP status handling
// is left to the caller.
func (s *Store) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("%w: encode request: %v", domain.ErrStoreOperation, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreOperation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Api-Key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s %s: %v", domain.ErrStoreUnavailable, method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", domain.ErrStoreOperation, err)
		}
	}
	return resp.StatusCode, nil
}
