package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/domain"
	"webqa/internal/vectorstore"
)

func openTemp(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewStorage(path)
	require.NoError(t, err)
	return s, path
}

func fill(t *testing.T, s *Storage, id, url string, texts ...string) vectorstore.Meta {
	t.Helper()
	ctx := context.Background()
	meta := vectorstore.Meta{
		ID:            id,
		SourceURL:     url,
		Title:         "Title " + id,
		Embedder:      "tfidf",
		EmbedderState: []byte(`{"terms":["x"],"idf":[1]}`),
		Dimension:     2,
		CreatedAt:     time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	}
	col, err := s.Create(ctx, meta)
	require.NoError(t, err)

	chunks := make([]domain.Chunk, len(texts))
	vectors := make([][]float64, len(texts))
	for i, txt := range texts {
		chunks[i] = domain.Chunk{DocumentID: "doc", ChunkID: id + ":" + txt, SourceURL: url, Text: txt, Index: i}
		vectors[i] = []float64{float64(i + 1), 1}
	}
	require.NoError(t, col.Upsert(ctx, chunks, vectors))
	meta.ChunkCount = len(texts)
	return meta
}

func TestStorage_PersistsCommittedIndex(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	_, _, err := s.Latest(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)

	meta := fill(t, s, "gen1", "https://a.example", "alpha", "beta")
	_, _, err = s.Latest(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound, "uncommitted generations are invisible")

	require.NoError(t, s.Commit(ctx, meta))
	require.NoError(t, s.Close())

	reopened, err := NewStorage(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, col, err := reopened.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen1", got.ID)
	assert.Equal(t, "https://a.example", got.SourceURL)
	assert.Equal(t, "Title gen1", got.Title)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, meta.EmbedderState, got.EmbedderState)
	assert.True(t, meta.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, 2, col.Len())

	res, err := col.Search(ctx, []float64{2, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "beta", res[0].Chunk.Text)
}

func TestStorage_CommitReplacesAndDropRemoves(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	first := fill(t, s, "gen1", "https://a.example", "alpha")
	require.NoError(t, s.Commit(ctx, first))
	second := fill(t, s, "gen2", "https://b.example", "gamma", "delta")
	require.NoError(t, s.Commit(ctx, second))
	require.NoError(t, s.Drop(ctx, "gen1"))

	got, col, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen2", got.ID)
	res, err := col.Search(ctx, []float64{1, 1}, 10)
	require.NoError(t, err)
	for _, r := range res {
		assert.Equal(t, "https://b.example", r.Chunk.SourceURL)
	}

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE index_id = 'gen1'`).Scan(&n))
	assert.Zero(t, n)
}

func TestStorage_CommitDeletesOlderGenerationsAcrossHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	for i, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		s, err := NewStorage(path)
		require.NoError(t, err)
		meta := fill(t, s, fmt.Sprintf("gen%d", i+1), url, "alpha", "beta")
		require.NoError(t, s.Commit(ctx, meta))
		require.NoError(t, s.Close())
	}

	s, err := NewStorage(path)
	require.NoError(t, err)
	defer s.Close()

	var indexes, chunks int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM indexes`).Scan(&indexes))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks))
	assert.Equal(t, 1, indexes)
	assert.Equal(t, 2, chunks)

	got, _, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen3", got.ID)
}

func TestStorage_OpenCollectionSearchesAfterNewerCommit(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	first := fill(t, s, "gen1", "https://a.example", "alpha")
	require.NoError(t, s.Commit(ctx, first))
	_, old, err := s.Latest(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Commit(ctx, fill(t, s, "gen2", "https://b.example", "gamma")))

	res, err := old.Search(ctx, []float64{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "alpha", res[0].Chunk.Text)
}

func TestStorage_CommitUnknown(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	assert.Error(t, s.Commit(context.Background(), vectorstore.Meta{ID: "missing"}))
}
