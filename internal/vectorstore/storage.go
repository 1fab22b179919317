package vectorstore

import (
	"context"
	"errors"
	"time"

	"webqa/internal/domain"
)

// ErrNotFound is returned by Latest when no index has been committed.
var ErrNotFound = errors.New("vectorstore: no committed index")

// Meta describes one index generation.
type Meta struct {
	ID            string
	SourceURL     string
	Title         string
	Embedder      string
	EmbedderState []byte
	Dimension     int
	ChunkCount    int
	CreatedAt     time.Time
}

// Storage allocates one collection per index generation. A new collection
// is filled completely before Commit makes it the current one.
type Storage interface {
	Create(ctx context.Context, meta Meta) (Collection, error)
	Commit(ctx context.Context, meta Meta) error
	Latest(ctx context.Context) (Meta, Collection, error)
	Drop(ctx context.Context, id string) error
	Close() error
}

// Collection persists vectors and supports similarity search.
type Collection interface {
	ID() string
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Len() int
}
