// Package index builds immutable searchable indexes from chunks and holds
// the one that is currently live.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"webqa/internal/domain"
	"webqa/internal/embedding"
	"webqa/internal/vectorstore"
)

const defaultConcurrency = 4

// Index is a complete set of chunk/vector pairs together with the embedder
// that produced them. It is never modified after Build returns.
type Index struct {
	meta       vectorstore.Meta
	collection vectorstore.Collection
	embedder   domain.Embedder

	// mu is read-held by in-flight searches; retire takes it exclusively.
	mu      sync.RWMutex
	retired bool
}

func (i *Index) Meta() vectorstore.Meta { return i.meta }

func (i *Index) ID() string { return i.meta.ID }

func (i *Index) Len() int { return i.collection.Len() }

// Embedder returns the embedder queries against this index must use.
func (i *Index) Embedder() domain.Embedder { return i.embedder }

// Search embeds query with the index's own embedder and returns at most k
// results by descending similarity.
func (i *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != i.meta.Dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index has %d", len(vec), i.meta.Dimension)
	}
	return i.collection.Search(ctx, vec, k)
}

// acquire pins i for one search. It reports false once i is retired.
func (i *Index) acquire() bool {
	i.mu.RLock()
	if i.retired {
		i.mu.RUnlock()
		return false
	}
	return true
}

func (i *Index) release() { i.mu.RUnlock() }

// retire waits for in-flight searches and refuses new ones, after which the
// backing collection can be dropped.
func (i *Index) retire() {
	i.mu.Lock()
	i.retired = true
	i.mu.Unlock()
}

// BuildOption customises a single Build call.
type BuildOption func(*vectorstore.Meta)

// WithTitle records the page title on the index.
func WithTitle(title string) BuildOption {
	return func(m *vectorstore.Meta) { m.Title = title }
}

// Builder embeds chunks into a fresh storage collection.
type Builder struct {
	storage     vectorstore.Storage
	embedder    domain.Embedder
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// NewBuilder creates a builder. concurrency bounds parallel embedding calls.
func NewBuilder(storage vectorstore.Storage, embedder domain.Embedder, concurrency int, log *slog.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{storage: storage, embedder: embedder, concurrency: concurrency, log: log, now: time.Now}
}

// Build returns a new Index over chunks. On failure the partially written
// collection is dropped and an *domain.IndexError is returned; nothing that
// is already live is touched.
func (b *Builder) Build(ctx context.Context, src domain.TextBlocks, chunks []domain.Chunk, opts ...BuildOption) (*Index, error) {
	if len(chunks) == 0 {
		return nil, &domain.IndexError{Stage: "prepare", Err: errors.New("no chunks to index")}
	}

	embedder := b.embedder
	if f, ok := embedder.(embedding.Fitter); ok {
		corpus := make([]string, len(chunks))
		for i, c := range chunks {
			corpus[i] = c.Text
		}
		fitted, err := f.Fit(corpus)
		if err != nil {
			return nil, &domain.IndexError{Stage: "fit", Err: err}
		}
		embedder = fitted
	}

	vectors, err := b.embedAll(ctx, embedder, chunks)
	if err != nil {
		return nil, &domain.IndexError{Stage: "embed", Err: err}
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, &domain.IndexError{Stage: "embed", Err: fmt.Errorf("chunk %d: vector dimension %d, want %d", i, len(v), dim)}
		}
	}

	meta := vectorstore.Meta{
		ID:         uuid.NewString(),
		SourceURL:  src.SourceURL(),
		Embedder:   embedder.Name(),
		Dimension:  dim,
		ChunkCount: len(chunks),
		CreatedAt:  b.now().UTC(),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	if s, ok := embedder.(embedding.Stater); ok {
		state, err := s.State()
		if err != nil {
			return nil, &domain.IndexError{Stage: "state", Err: err}
		}
		meta.EmbedderState = state
	}

	col, err := b.storage.Create(ctx, meta)
	if err != nil {
		return nil, &domain.IndexError{Stage: "store", Err: err}
	}
	if err := col.Upsert(ctx, chunks, vectors); err != nil {
		b.drop(meta.ID)
		return nil, &domain.IndexError{Stage: "store", Err: err}
	}

	b.log.Info("index built", "id", meta.ID, "url", meta.SourceURL, "chunks", len(chunks), "embedder", meta.Embedder, "dimension", dim)
	return &Index{meta: meta, collection: col, embedder: embedder}, nil
}

func (b *Builder) embedAll(ctx context.Context, embedder domain.Embedder, chunks []domain.Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %s: %w", chunks[i].ChunkID, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// drop removes an abandoned collection. It runs detached from the build
// context, which may already be cancelled.
func (b *Builder) drop(id string) {
	dropGeneration(b.storage, id, b.log)
}

// dropGeneration removes generation id on a context detached from the
// caller, whose own context may already be cancelled.
func dropGeneration(storage vectorstore.Storage, id string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.Drop(ctx, id); err != nil {
		log.Warn("drop index generation failed", "id", id, "error", err)
	}
}
