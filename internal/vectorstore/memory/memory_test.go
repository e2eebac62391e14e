package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstore/internal/domain"
)

func record(id string, vector []float32, userID string) domain.Record {
	return domain.Record{
		ID:     id,
		Vector: vector,
		Metadata: map[string]string{
			domain.MetaText:   "text of " + id,
			domain.MetaUserID: userID,
		},
	}
}

func TestQuery_OrderedBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.EnsureIndex(ctx))
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("far", []float32{0, 1}, "1"),
		record("mid", []float32{0.7, 0.7}, "1"),
		record("near", []float32{1, 0}, "1"),
	}))

	matches, err := s.Query(ctx, []float32{1, 0}, 3, nil, true)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "mid", matches[1].ID)
	assert.Equal(t, "far", matches[2].ID)
}

func TestQuery_TopKLimits(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("a", []float32{1, 0}, "1"),
		record("b", []float32{0, 1}, "1"),
	}))

	matches, err := s.Query(ctx, []float32{1, 0}, 1, nil, true)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = s.Query(ctx, []float32{1, 0}, 0, nil, true)
	assert.ErrorIs(t, err, domain.ErrStoreOperation)
}

func TestQuery_MetadataFilter(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("mine", []float32{1, 0}, "42"),
		record("theirs", []float32{1, 0}, "7"),
	}))

	matches, err := s.Query(ctx, []float32{1, 0}, 10, map[string]string{domain.MetaUserID: "42"}, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "mine", matches[0].ID)
}

func TestQuery_ZeroVectorListsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("first", []float32{1, 0}, "1"),
		record("second", []float32{0, 1}, "1"),
		record("third", []float32{0.5, 0.5}, "1"),
	}))

	matches, err := s.Query(ctx, []float32{0, 0}, 100, nil, true)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "first", matches[0].ID)
	assert.Equal(t, "second", matches[1].ID)
	assert.Equal(t, "third", matches[2].ID)
	for _, m := range matches {
		assert.Zero(t, m.Score)
	}
}

func TestQuery_MetadataInclusion(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("a", []float32{1, 0}, "1")}))

	with, err := s.Query(ctx, []float32{1, 0}, 1, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "1", with[0].Metadata[domain.MetaUserID])

	without, err := s.Query(ctx, []float32{1, 0}, 1, nil, false)
	require.NoError(t, err)
	assert.Nil(t, without[0].Metadata)
}

func TestUpsert_OverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("a", []float32{1, 0}, "1")}))
	require.NoError(t, s.Upsert(ctx, []domain.Record{record("a", []float32{0, 1}, "1")}))
	assert.Equal(t, 1, s.Len())

	matches, err := s.Query(ctx, []float32{0, 1}, 1, nil, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	err := s.Upsert(ctx, []domain.Record{record("a", []float32{1, 0}, "1")})
	assert.ErrorIs(t, err, domain.ErrStoreOperation)
	assert.Zero(t, s.Len())
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := New(2)
	require.NoError(t, s.Upsert(ctx, []domain.Record{
		record("a", []float32{1, 0}, "1"),
		record("b", []float32{0, 1}, "1"),
	}))

	require.NoError(t, s.Delete(ctx, []string{"a"}))
	assert.Equal(t, 1, s.Len())

	// Deleting again, or deleting unknown IDs, is a no-op.
	require.NoError(t, s.Delete(ctx, []string{"a"}))
	require.NoError(t, s.Delete(ctx, []string{"never-existed"}))
	assert.Equal(t, 1, s.Len())
}

func TestEnsureIndex_ConcurrentCalls(t *testing.T) {
	s := New(2)
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.EnsureIndex(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
