package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"webqa/internal/domain"
	"webqa/internal/vectorstore"
)

// Current holds the live index. Readers never see a half-built index:
// Replace swaps a single pointer.
type Current struct {
	ptr     atomic.Pointer[Index]
	storage vectorstore.Storage
	log     *slog.Logger
}

func NewCurrent(storage vectorstore.Storage, log *slog.Logger) *Current {
	if log == nil {
		log = slog.Default()
	}
	return &Current{storage: storage, log: log}
}

// Load returns the live index or nil.
func (c *Current) Load() *Index { return c.ptr.Load() }

// Replace commits idx to storage, makes it live and drops the previous
// generation once its in-flight searches finish. If the commit fails the
// previous index stays live and idx is dropped.
func (c *Current) Replace(ctx context.Context, idx *Index) error {
	if err := c.storage.Commit(ctx, idx.meta); err != nil {
		dropGeneration(c.storage, idx.ID(), c.log)
		return &domain.IndexError{Stage: "commit", Err: err}
	}
	prev := c.ptr.Swap(idx)
	if prev != nil && prev != idx && prev.ID() != idx.ID() {
		prev.retire()
		dropGeneration(c.storage, prev.ID(), c.log)
	}
	return nil
}

// Retrieve returns at most k chunks of the live index ordered by
// descending similarity to query, lower chunk index first on ties.
func (c *Current) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidArgument, k)
	}
	for {
		idx := c.ptr.Load()
		if idx == nil {
			return nil, domain.ErrNoIndex
		}
		// A retired index has already been swapped out; reload.
		if !idx.acquire() {
			continue
		}
		res, err := idx.Search(ctx, query, k)
		idx.release()
		return res, err
	}
}

// ResolveFunc rebuilds the embedder named by a stored index from its saved
// state.
type ResolveFunc func(name string, state []byte) (domain.Embedder, error)

// Open restores the committed index from storage. It returns (nil, nil)
// when storage holds no committed index.
func Open(ctx context.Context, storage vectorstore.Storage, resolve ResolveFunc) (*Index, error) {
	meta, col, err := storage.Latest(ctx)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.IndexError{Stage: "open", Err: err}
	}
	embedder, err := resolve(meta.Embedder, meta.EmbedderState)
	if err != nil {
		return nil, &domain.IndexError{Stage: "open", Err: err}
	}
	if embedder.Name() != meta.Embedder {
		return nil, &domain.IndexError{Stage: "open", Err: fmt.Errorf("index was built with embedder %q, configured embedder is %q", meta.Embedder, embedder.Name())}
	}
	return &Index{meta: meta, collection: col, embedder: embedder}, nil
}

// Restore makes idx live without committing it again.
func (c *Current) Restore(idx *Index) { c.ptr.Store(idx) }
