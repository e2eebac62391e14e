package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_Deterministic(t *testing.T) {
	e := New(64)
	first, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestEmbed_Normalized(t *testing.T) {
	e := New(32)
	vec, err := e.Embed(context.Background(), "some text with several words")
	require.NoError(t, err)
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	e := New(16)
	vec, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEmbedBatch(t *testing.T) {
	e := New(16)
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestDimensionFallback(t *testing.T) {
	assert.Equal(t, 384, New(0).Dimension())
	assert.Equal(t, 128, New(128).Dimension())
}
