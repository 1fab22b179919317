package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"webqa/internal/domain"
	"webqa/internal/embedding"
	"webqa/internal/vectorstore"
)

// Storage keeps index generations in process memory.
type Storage struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	metas       map[string]vectorstore.Meta
	current     string
}

func NewStorage() *Storage {
	return &Storage{
		collections: make(map[string]*Collection),
		metas:       make(map[string]vectorstore.Meta),
	}
}

func (s *Storage) Create(_ context.Context, meta vectorstore.Meta) (vectorstore.Collection, error) {
	if meta.ID == "" {
		return nil, errors.New("memory: index id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[meta.ID]; ok {
		return nil, errors.New("memory: index " + meta.ID + " already exists")
	}
	c := NewCollection(meta.ID)
	s.collections[meta.ID] = c
	s.metas[meta.ID] = meta
	return c, nil
}

func (s *Storage) Commit(_ context.Context, meta vectorstore.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[meta.ID]; !ok {
		return errors.New("memory: unknown index " + meta.ID)
	}
	s.metas[meta.ID] = meta
	s.current = meta.ID
	return nil
}

func (s *Storage) Latest(_ context.Context) (vectorstore.Meta, vectorstore.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return vectorstore.Meta{}, nil, vectorstore.ErrNotFound
	}
	return s.metas[s.current], s.collections[s.current], nil
}

// Drop forgets a generation. Readers still holding the collection keep a
// usable, unchanged copy.
func (s *Storage) Drop(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, id)
	delete(s.metas, id)
	if s.current == id {
		s.current = ""
	}
	return nil
}

func (s *Storage) Close() error { return nil }

// Collection is a brute-force cosine similarity index.
type Collection struct {
	id        string
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewCollection(id string) *Collection { return &Collection{id: id} }

func (c *Collection) ID() string { return c.id }

func (c *Collection) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range vectors {
		if c.dimension == 0 {
			c.dimension = len(v)
		}
		if len(v) == 0 || len(v) != c.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	c.chunks = append(c.chunks, chunks...)
	c.vectors = append(c.vectors, vectors...)
	return nil
}

// Search ranks every vector by cosine similarity. Equal scores keep the
// lower chunk index first.
func (c *Collection) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if topK <= 0 {
		return nil, errors.New("topK must be positive")
	}
	if c.dimension != 0 && len(vector) != c.dimension {
		return nil, errors.New("query vector dimension mismatch")
	}
	results := make([]domain.SearchResult, len(c.vectors))
	for i := range c.vectors {
		results[i] = domain.SearchResult{Chunk: c.chunks[i], Score: embedding.Cosine(c.vectors[i], vector)}
	}
	SortResults(results)
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// SortResults orders results by descending score, then ascending chunk index.
func SortResults(results []domain.SearchResult) {
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.Chunk.Index - b.Chunk.Index
	})
}
