package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ragstore/internal/domain"
)

// ChunkStatus reports the outcome for one chunk of an ingestion call.
type ChunkStatus string

const (
	StatusStored ChunkStatus = "stored"
	StatusFailed ChunkStatus = "failed"
)

// ChunkResult is the per-chunk outcome of Ingest.
type ChunkResult struct {
	ChunkIndex int
	Status     ChunkStatus
	ID         string
	Err        error
}

// Chunker splits raw text into ordered chunks tagged with a document ID.
type Chunker interface {
	Split(text string, documentID string) []domain.Chunk
}

// Pipeline turns raw text into embedded, owner-tagged records in the vector
// store. It is stateless; every call derives its own document identity.
type Pipeline struct {
	chunker  Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates an ingestion pipeline. A nil logger falls back to
// slog.Default().
func NewPipeline(chunker Chunker, embedder domain.Embedder, store domain.VectorStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest chunks rawText, embeds each chunk and upserts one record per chunk
// tagged with userID and a shared document identity. Chunks fail
// independently: an embedding or upsert error marks that chunk failed and
// the loop continues, so one bad chunk cannot lose the whole document.
// Record IDs follow {userID}-{submissionTimestamp}-{chunkIndex} and are
// assigned before any network call.
func (p *Pipeline) Ingest(ctx context.Context, rawText, userID string) ([]ChunkResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("ingest: userID is required")
	}
	originalTextID := uuid.NewString()
	chunks := p.chunker.Split(rawText, originalTextID)
	if len(chunks) == 0 {
		return nil, nil
	}
	if err := p.store.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	submittedAt := p.now().UnixMilli()
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = fmt.Sprintf("%s-%d-%d", userID, submittedAt, i)
	}

	results := make([]ChunkResult, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			// Aborted mid-loop: already-stored chunks stay stored.
			return results, err
		}
		vector, err := p.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			p.logger.Warn("chunk embedding failed",
				"user_id", userID, "chunk_index", i, "error", err)
			results = append(results, ChunkResult{ChunkIndex: i, Status: StatusFailed, Err: err})
			continue
		}
		record := domain.Record{
			ID:     ids[i],
			Vector: vector,
			Metadata: map[string]string{
				domain.MetaText:           chunk.Text,
				domain.MetaOriginalTextID: originalTextID,
				domain.MetaUserID:         userID,
				domain.MetaInsertDate:     p.now().UTC().Format(time.RFC3339),
			},
		}
		if err := p.store.Upsert(ctx, []domain.Record{record}); err != nil {
			p.logger.Warn("chunk upsert failed",
				"user_id", userID, "chunk_index", i, "id", ids[i], "error", err)
			results = append(results, ChunkResult{ChunkIndex: i, Status: StatusFailed, Err: err})
			continue
		}
		p.logger.Debug("chunk stored", "user_id", userID, "id", ids[i])
		results = append(results, ChunkResult{ChunkIndex: i, Status: StatusStored, ID: ids[i]})
	}
	return results, nil
}
