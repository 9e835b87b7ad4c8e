package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	s := 0.0
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("Should refuse queries before fitting", func(t *testing.T) {
		_, err := NewEmbedder().EmbedQuery(ctx, "anything")
		assert.Error(t, err)
	})

	t.Run("Should refuse an empty corpus", func(t *testing.T) {
		_, err := NewEmbedder().EmbedDocuments(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("Should produce unit vectors of vocabulary size", func(t *testing.T) {
		e := NewEmbedder()
		vecs, err := e.EmbedDocuments(ctx, []string{"Invoices are due in thirty days", "Refunds require a receipt"})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Equal(t, e.Dimension(), len(vecs[0]))
		assert.InDelta(t, 1.0, norm(vecs[0]), 1e-5)
		assert.InDelta(t, 1.0, norm(vecs[1]), 1e-5)
	})

	t.Run("Should rank the matching chunk higher for a query", func(t *testing.T) {
		e := NewEmbedder()
		vecs, err := e.EmbedDocuments(ctx, []string{"Invoices are due in thirty days", "Refunds require a receipt"})
		require.NoError(t, err)
		q, err := e.EmbedQuery(ctx, "when are invoices due?")
		require.NoError(t, err)
		assert.Greater(t, dot(q, vecs[0]), dot(q, vecs[1]))
	})

	t.Run("Should return a zero vector for unknown words", func(t *testing.T) {
		e := NewEmbedder()
		_, err := e.EmbedDocuments(ctx, []string{"alpha beta"})
		require.NoError(t, err)
		q, err := e.EmbedQuery(ctx, "gamma")
		require.NoError(t, err)
		assert.Zero(t, norm(q))
	})
}

func TestEmbedder_Figures(t *testing.T) {
	ctx := context.Background()

	t.Run("Should index documents made only of figures", func(t *testing.T) {
		e := NewEmbedder()
		vecs, err := e.EmbedDocuments(ctx, []string{"2023 1450 980", "2024 1720 1010"})
		require.NoError(t, err)
		assert.Equal(t, 6, e.Dimension())
		q, err := e.EmbedQuery(ctx, "1720")
		require.NoError(t, err)
		assert.Greater(t, dot(q, vecs[1]), dot(q, vecs[0]))
	})

	t.Run("Should keep curly apostrophes inside words", func(t *testing.T) {
		e := NewEmbedder()
		_, err := e.EmbedDocuments(ctx, []string{"the customer’s invoice"})
		require.NoError(t, err)
		assert.Equal(t, 2, e.Dimension())
	})
}
