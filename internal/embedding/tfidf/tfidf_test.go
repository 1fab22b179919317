package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/embedding"
)

var corpus = []string{
	"Go is a statically typed compiled language.",
	"Python is a dynamically typed interpreted language.",
	"The gopher is the Go mascot.",
}

func fit(t *testing.T) *Model {
	t.Helper()
	e, err := NewEmbedder().Fit(corpus)
	require.NoError(t, err)
	m, ok := e.(*Model)
	require.True(t, ok)
	return m
}

func TestFit_EmptyCorpus(t *testing.T) {
	_, err := NewEmbedder().Fit(nil)
	assert.Error(t, err)

	_, err = NewEmbedder().Fit([]string{"the and of"})
	assert.Error(t, err, "only stopwords yields no vocabulary")
}

func TestUnfittedEmbedFails(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "go")
	assert.Error(t, err)
}

func TestModel_EmbedIsNormalized(t *testing.T) {
	m := fit(t)
	vec, err := m.Embed(context.Background(), "compiled Go language")
	require.NoError(t, err)
	require.Len(t, vec, m.Dimension())

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestModel_UnknownTermsGiveZeroVector(t *testing.T) {
	m := fit(t)
	vec, err := m.Embed(context.Background(), "zebra xylophone")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestModel_RanksRelevantText(t *testing.T) {
	m := fit(t)
	ctx := context.Background()
	q, _ := m.Embed(ctx, "gopher mascot")
	var scores []float64
	for _, c := range corpus {
		v, err := m.Embed(ctx, c)
		require.NoError(t, err)
		scores = append(scores, embedding.Cosine(q, v))
	}
	assert.Greater(t, scores[2], scores[0])
	assert.Greater(t, scores[2], scores[1])
}

func TestFit_DoesNotMutateEarlierModels(t *testing.T) {
	e := NewEmbedder()
	first, err := e.Fit(corpus)
	require.NoError(t, err)
	before, _ := first.Embed(context.Background(), "gopher")

	_, err = e.Fit([]string{"completely different vocabulary here"})
	require.NoError(t, err)

	after, _ := first.Embed(context.Background(), "gopher")
	assert.Equal(t, before, after)
}

func TestStateRestore(t *testing.T) {
	m := fit(t)
	data, err := m.State()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)
	assert.Equal(t, m.Dimension(), restored.Dimension())

	a, _ := m.Embed(context.Background(), "typed language")
	b, _ := restored.Embed(context.Background(), "typed language")
	assert.Equal(t, a, b)

	_, err = Restore([]byte(`{"terms":["a"],"idf":[]}`))
	assert.Error(t, err)
}
