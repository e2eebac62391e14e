package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstore/internal/chunker"
	"ragstore/internal/domain"
	"ragstore/internal/embedding/local"
	"ragstore/internal/vectorstore/memory"
)

const testDimension = 64

// flakyEmbedder fails selected calls to exercise per-chunk isolation.
type flakyEmbedder struct {
	inner  domain.Embedder
	calls  int
	failOn map[int]bool // 1-based call numbers
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn[f.calls] {
		return nil, fmt.Errorf("%w: HTTP 500", domain.ErrEmbeddingService)
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f.inner.EmbedBatch(ctx, texts)
}

func (f *flakyEmbedder) Dimension() int { return f.inner.Dimension() }

// newTestPipeline wires a pipeline over the in-memory store with a clock
// that advances one millisecond per call, so repeated ingests in one test
// never collide on the submission timestamp.
func newTestPipeline(emb domain.Embedder, store domain.VectorStore, chunkSize, overlap int) *Pipeline {
	p := NewPipeline(chunker.New(chunkSize, overlap), emb, store, nil)
	base := time.Now()
	tick := 0
	p.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return p
}

func TestIngest_StoresAllChunks(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testDimension)
	p := newTestPipeline(local.New(testDimension), store, 500, 50)

	results, err := p.Ingest(ctx, strings.Repeat("a", 1200), "42")
	require.NoError(t, err)
	require.Len(t, results, 3)

	seen := make(map[string]struct{})
	for i, r := range results {
		assert.Equal(t, StatusStored, r.Status)
		assert.Equal(t, i, r.ChunkIndex)
		assert.NotContains(t, seen, r.ID)
		seen[r.ID] = struct{}{}
	}
	assert.Equal(t, 3, store.Len())

	// All chunks of one submission share a document identity and owner.
	matches, err := store.Query(ctx, make([]float32, testDimension), 100,
		map[string]string{domain.MetaUserID: "42"}, true)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	docID := matches[0].Metadata[domain.MetaOriginalTextID]
	require.NotEmpty(t, docID)
	for _, m := range matches {
		assert.Equal(t, docID, m.Metadata[domain.MetaOriginalTextID])
		assert.Equal(t, "42", m.Metadata[domain.MetaUserID])
		assert.NotEmpty(t, m.Metadata[domain.MetaText])
		assert.NotEmpty(t, m.Metadata[domain.MetaInsertDate])
	}
}

func TestIngest_IDFormat(t *testing.T) {
	store := memory.New(testDimension)
	p := newTestPipeline(local.New(testDimension), store, 500, 50)

	results, err := p.Ingest(context.Background(), strings.Repeat("b", 1200), "42")
	require.NoError(t, err)
	idPattern := regexp.MustCompile(`^42-\d+-\d+$`)
	for _, r := range results {
		assert.Regexp(t, idPattern, r.ID)
	}
}

func TestIngest_EmptyText(t *testing.T) {
	store := memory.New(testDimension)
	p := newTestPipeline(local.New(testDimension), store, 500, 50)

	results, err := p.Ingest(context.Background(), "", "42")
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Zero(t, store.Len())
}

func TestIngest_RequiresUserID(t *testing.T) {
	p := newTestPipeline(local.New(testDimension), memory.New(testDimension), 500, 50)
	_, err := p.Ingest(context.Background(), "text", "")
	assert.Error(t, err)
}

func TestIngest_PerChunkFailureIsolation(t *testing.T) {
	store := memory.New(testDimension)
	emb := &flakyEmbedder{inner: local.New(testDimension), failOn: map[int]bool{2: true}}
	p := newTestPipeline(emb, store, 500, 50)

	results, err := p.Ingest(context.Background(), strings.Repeat("c", 1200), "42")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StatusStored, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.ErrorIs(t, results[1].Err, domain.ErrEmbeddingService)
	assert.Empty(t, results[1].ID)
	assert.Equal(t, StatusStored, results[2].Status)
	assert.Equal(t, 2, store.Len())
}

func TestQuerySimilar_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testDimension)
	emb := local.New(testDimension)
	p := newTestPipeline(emb, store, 500, 50)

	// Three chunks for user 42, two for user 7.
	_, err := p.Ingest(ctx, "Streamlit "+strings.Repeat("alpha beta gamma ", 70), "42")
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "Streamlit "+strings.Repeat("delta epsilon ", 60), "7")
	require.NoError(t, err)

	r := NewRetrieval(emb, store, nil)
	matches, err := r.QuerySimilar(ctx, "Streamlit", "42", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 3)
	assert.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, "42", m.Metadata[domain.MetaUserID])
	}
}

func TestQuerySimilar_EmptyStore(t *testing.T) {
	emb := local.New(testDimension)
	r := NewRetrieval(emb, memory.New(testDimension), nil)
	matches, err := r.QuerySimilar(context.Background(), "anything", "42", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestListAll_AndStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testDimension)
	emb := local.New(testDimension)
	p := newTestPipeline(emb, store, 500, 50)

	_, err := p.Ingest(ctx, strings.Repeat("d", 1200), "42") // 3 chunks
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "a single short note", "42") // 1 chunk
	require.NoError(t, err)
	_, err = p.Ingest(ctx, "someone else's note", "7")
	require.NoError(t, err)

	r := NewRetrieval(emb, store, nil)
	matches, err := r.ListAll(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, matches, 4)

	stats, err := r.Stats(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalDocuments: 2, TotalChunks: 4}, stats)
}

func TestDeleteSelected_OwnershipNarrowing(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testDimension)
	emb := local.New(testDimension)
	p := newTestPipeline(emb, store, 500, 50)

	mine, err := p.Ingest(ctx, "my own note", "42")
	require.NoError(t, err)
	theirs, err := p.Ingest(ctx, "their note", "7")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Len(t, theirs, 1)

	r := NewRetrieval(emb, store, nil)

	// Asking to delete a foreign ID silently skips it.
	err = r.DeleteSelected(ctx, []string{mine[0].ID, theirs[0].ID}, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	remaining, err := r.ListAll(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	// Deleting already-deleted IDs is a no-op.
	require.NoError(t, r.DeleteSelected(ctx, []string{mine[0].ID}, "42"))
}

func TestDeleteSelected_EmptyIDs(t *testing.T) {
	r := NewRetrieval(local.New(testDimension), memory.New(testDimension), nil)
	assert.NoError(t, r.DeleteSelected(context.Background(), nil, "42"))
}

func TestRetrieval_RequiresUserID(t *testing.T) {
	r := NewRetrieval(local.New(testDimension), memory.New(testDimension), nil)
	_, err := r.QuerySimilar(context.Background(), "q", "", 5)
	assert.Error(t, err)
	_, err = r.ListAll(context.Background(), "")
	assert.Error(t, err)
}
