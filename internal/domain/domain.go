package domain

import "context"

// Metadata keys shared by every persisted record.
const (
	MetaText           = "text"
	MetaOriginalTextID = "original_text_id"
	MetaUserID         = "user_id"
	MetaInsertDate     = "insert_date"
)

// Chunk is a bounded substring of ingested text, the unit of embedding.
type Chunk struct {
	Text       string
	DocumentID string
	Index      int
}

// Record is the persisted unit: an embedding vector addressed by a globally
// unique ID, tagged with owner and provenance metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is a single similarity-search hit.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Embedder converts free text into a fixed-dimension vector via an external
// embedding service. Dimension reports the deployment's declared vector size;
// implementations reject responses of any other length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorStore is a namespace-scoped upsert/query/delete capability over
// (id, vector, metadata) records. Implementations are addressed to a fixed
// index with a fixed dimension and cosine metric.
type VectorStore interface {
	// EnsureIndex creates the backing index if absent. It is idempotent and
	// tolerates the benign race where two callers both observe "absent".
	EnsureIndex(ctx context.Context) error

	// Upsert writes or overwrites records by ID. A failure never silently
	// drops part of the batch; the returned error names what failed.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK matches ordered by descending cosine
	// similarity. Tie order among equal scores is backend-defined.
	// filter restricts results to records whose metadata contains every
	// given key/value pair.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string, includeMetadata bool) ([]Match, error)

	// Delete removes records by ID. Unknown IDs are skipped, not errors.
	// Ownership narrowing happens one layer up; implementations never
	// combine the ID list with a metadata filter.
	Delete(ctx context.Context, ids []string) error
}
