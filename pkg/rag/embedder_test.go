package rag

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()

	a, err := e.EmbedQuery(ctx, "trace with traceable")
	require.NoError(t, err)
	b, err := e.EmbedQuery(ctx, "Trace, with TRACEABLE!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestHashingEmbedder_RanksSharedVocabulary(t *testing.T) {
	e := NewHashingEmbedder(0)
	ctx := context.Background()

	vecs, err := e.EmbedDocuments(ctx, []string{
		"use the @traceable decorator to trace a function",
		"bake bread at two hundred degrees",
	})
	require.NoError(t, err)
	q, err := e.EmbedQuery(ctx, "how do I trace with the @traceable decorator")
	require.NoError(t, err)

	assert.Greater(t, cosine(q, vecs[0]), cosine(q, vecs[1]))
	assert.Equal(t, "hashing-256", e.Name())
}

func TestHashingEmbedder_EmptyText(t *testing.T) {
	v, err := NewHashingEmbedder(8).EmbedQuery(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestHashingEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashingEmbedder(8).EmbedDocuments(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, -1.5, 3.25, math.MaxFloat32}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
