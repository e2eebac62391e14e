package service

import (
	"context"
	"fmt"
	"log/slog"

	"ragstore/internal/domain"
)

const (
	defaultTopK = 5

	// bulkListLimit caps ListAll. The store's query path is the only bulk
	// read primitive, so listing is a zero-vector query with a very large
	// topK; tenants with more records than this see a truncated listing.
	bulkListLimit = 10000
)

// Stats summarizes a tenant's stored data.
type Stats struct {
	TotalDocuments int
	TotalChunks    int
}

// Retrieval answers similarity queries and management reads/deletes, always
// scoped to the owning user. Reads that match nothing return empty slices,
// not errors; store failures fail the whole call.
type Retrieval struct {
	embedder domain.Embedder
	store    domain.VectorStore
	logger   *slog.Logger
}

// NewRetrieval creates a retrieval service. A nil logger falls back to
// slog.Default().
func NewRetrieval(embedder domain.Embedder, store domain.VectorStore, logger *slog.Logger) *Retrieval {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrieval{embedder: embedder, store: store, logger: logger}
}

// QuerySimilar embeds queryText and returns the tenant's topK most similar
// records with metadata. topK <= 0 falls back to 5.
func (r *Retrieval) QuerySimilar(ctx context.Context, queryText, userID string, topK int) ([]domain.Match, error) {
	if userID == "" {
		return nil, fmt.Errorf("query: userID is required")
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	vector, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	matches, err := r.store.Query(ctx, vector, topK, ownerFilter(userID), true)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return dropForeign(matches, userID), nil
}

// ListAll returns every record owned by userID, up to the bulk listing cap.
// It queries with a zero vector because the store exposes no scan primitive;
// completeness beyond the cap is not guaranteed.
func (r *Retrieval) ListAll(ctx context.Context, userID string) ([]domain.Match, error) {
	if userID == "" {
		return nil, fmt.Errorf("list: userID is required")
	}
	zero := make([]float32, r.embedder.Dimension())
	matches, err := r.store.Query(ctx, zero, bulkListLimit, ownerFilter(userID), true)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return dropForeign(matches, userID), nil
}

// DeleteSelected deletes the given record IDs after narrowing them to the
// records userID actually owns. IDs outside the owner's set, and IDs already
// gone, are silently skipped.
func (r *Retrieval) DeleteSelected(ctx context.Context, ids []string, userID string) error {
	if len(ids) == 0 {
		return nil
	}
	owned, err := r.ListAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, m := range owned {
		ownedSet[m.ID] = struct{}{}
	}
	keep := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := ownedSet[id]; ok {
			keep = append(keep, id)
		}
	}
	if len(keep) == 0 {
		return nil
	}
	if err := r.store.Delete(ctx, keep); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	r.logger.Debug("deleted records", "user_id", userID, "count", len(keep))
	return nil
}

// Stats counts the tenant's chunks and distinct source documents.
func (r *Retrieval) Stats(ctx context.Context, userID string) (Stats, error) {
	matches, err := r.ListAll(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	docs := make(map[string]struct{})
	for _, m := range matches {
		if id := m.Metadata[domain.MetaOriginalTextID]; id != "" {
			docs[id] = struct{}{}
		}
	}
	return Stats{TotalDocuments: len(docs), TotalChunks: len(matches)}, nil
}

func ownerFilter(userID string) map[string]string {
	return map[string]string{domain.MetaUserID: userID}
}

// dropForeign re-checks ownership on results. The store already filters by
// owner; this keeps a misbehaving backend from leaking another tenant's
// records into the caller's view.
func dropForeign(matches []domain.Match, userID string) []domain.Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.Metadata != nil && m.Metadata[domain.MetaUserID] != userID {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
