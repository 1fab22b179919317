package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"webqa/internal/domain"
	"webqa/internal/vectorstore"
	"webqa/internal/vectorstore/memory"
)

// pointNamespace seeds the UUIDv5 ids Qdrant requires for points.
var pointNamespace = uuid.MustParse("6f1c1b7e-8d55-4a5e-9d0e-2c4f0f2b7a11")

// tieSlack is how many extra points Search requests beyond topK.
const tieSlack = 16

// Storage is a minimal REST client to Qdrant. Every index generation gets
// its own collection; Commit points the alias named Collection at it.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	current string
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "webqa"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// CollectionName returns the Qdrant collection holding generation id.
func (s *Storage) CollectionName(id string) string {
	return s.collection + "_" + strings.ReplaceAll(id, "-", "")
}

// Create makes a cosine-distance collection for the generation.
func (s *Storage) Create(ctx context.Context, meta vectorstore.Meta) (vectorstore.Collection, error) {
	if meta.Dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	name := s.CollectionName(meta.ID)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     meta.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.sendJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, name), body, nil); err != nil {
		return nil, err
	}
	return &Collection{storage: s, id: meta.ID, name: name}, nil
}

// Commit atomically repoints the alias at the generation's collection.
// A process that has not committed before also deletes every other
// generation collection left behind by earlier runs; the previous
// in-process generation is left for the caller to drop.
func (s *Storage) Commit(ctx context.Context, meta vectorstore.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := s.current == ""
	aliased := !fresh
	if fresh {
		target, err := s.aliasTarget(ctx)
		if err != nil {
			return err
		}
		aliased = target != ""
	}
	var actions []map[string]any
	if aliased {
		actions = append(actions, map[string]any{
			"delete_alias": map[string]any{"alias_name": s.collection},
		})
	}
	actions = append(actions, map[string]any{
		"create_alias": map[string]any{
			"collection_name": s.CollectionName(meta.ID),
			"alias_name":      s.collection,
		},
	})
	if err := s.sendJSON(ctx, http.MethodPost, s.url+"/collections/aliases", map[string]any{"actions": actions}, nil); err != nil {
		return err
	}
	s.current = meta.ID
	if fresh {
		// Sweep failures are retried by the next fresh commit.
		_ = s.sweep(ctx, s.CollectionName(meta.ID))
	}
	return nil
}

// aliasTarget returns the collection the alias points at, or "".
func (s *Storage) aliasTarget(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName      string `json:"alias_name"`
				CollectionName string `json:"collection_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	if err := s.sendJSON(ctx, http.MethodGet, s.url+"/aliases", nil, &resp); err != nil {
		return "", err
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == s.collection {
			return a.CollectionName, nil
		}
	}
	return "", nil
}

// sweep deletes every generation collection except keep.
func (s *Storage) sweep(ctx context.Context, keep string) error {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.sendJSON(ctx, http.MethodGet, s.url+"/collections", nil, &resp); err != nil {
		return err
	}
	prefix := s.collection + "_"
	var errs []error
	for _, c := range resp.Result.Collections {
		if c.Name == keep || !strings.HasPrefix(c.Name, prefix) {
			continue
		}
		if err := s.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, c.Name), nil, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest is unsupported: Qdrant does not keep the embedder state an index
// needs to be queried again.
func (s *Storage) Latest(context.Context) (vectorstore.Meta, vectorstore.Collection, error) {
	return vectorstore.Meta{}, nil, vectorstore.ErrNotFound
}

func (s *Storage) Drop(ctx context.Context, id string) error {
	return s.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.CollectionName(id)), nil, nil)
}

func (s *Storage) Close() error { return nil }

// Collection is one generation's Qdrant collection.
type Collection struct {
	storage *Storage
	id      string
	name    string

	mu sync.RWMutex
	n  int
}

func (c *Collection) ID() string { return c.id }

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

func (c *Collection) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(c.id+"/"+chunks[i].ChunkID)).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": chunks[i].DocumentID,
				"chunk_id":    chunks[i].ChunkID,
				"source_url":  chunks[i].SourceURL,
				"index":       chunks[i].Index,
				"text":        chunks[i].Text,
			},
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.storage.url, c.name)
	if err := c.storage.sendJSON(ctx, http.MethodPut, url, body, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.n += len(chunks)
	c.mu.Unlock()
	return nil
}

func (c *Collection) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, errors.New("topK must be positive")
	}
	// Over-fetch so equal scores at the cut can be ordered by chunk index.
	req := map[string]any{
		"vector":       vector,
		"limit":        topK + tieSlack,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.storage.url, c.name)
	if err := c.storage.sendJSON(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ChunkID = v
		}
		if v, ok := r.Payload["source_url"].(string); ok {
			chunk.SourceURL = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	memory.SortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) sendJSON(ctx context.Context, method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
