// Package sqlite persists index generations in a SQLite database so a
// committed index survives process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"webqa/internal/domain"
	"webqa/internal/embedding"
	"webqa/internal/vectorstore"
	"webqa/internal/vectorstore/memory"
)

// Storage is a persistent storage implementation using SQLite.
type Storage struct {
	db   *sql.DB
	path string
}

// NewStorage opens (or creates) the database at path.
func NewStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; keeps :memory: databases on a single connection.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS indexes (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			embedder TEXT NOT NULL,
			embedder_state BLOB,
			dimension INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			current INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS chunks (
			index_id TEXT NOT NULL REFERENCES indexes(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			chunk_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			source_url TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			PRIMARY KEY (index_id, seq)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Create registers an uncommitted generation.
func (s *Storage) Create(ctx context.Context, meta vectorstore.Meta) (vectorstore.Collection, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indexes (id, source_url, title, embedder, embedder_state, dimension, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.SourceURL, meta.Title, meta.Embedder, meta.EmbedderState, meta.Dimension, meta.ChunkCount,
		meta.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create index row: %w", err)
	}
	return &Collection{db: s.db, id: meta.ID, mem: memory.NewCollection(meta.ID)}, nil
}

// Commit makes meta.ID the current generation and deletes every other
// generation in the same transaction. Open collections keep searching their
// in-memory mirror.
func (s *Storage) Commit(ctx context.Context, meta vectorstore.Meta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE indexes SET chunk_count = ?, embedder_state = ?, current = 1 WHERE id = ?`,
		meta.ChunkCount, meta.EmbedderState, meta.ID)
	if err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("commit index: unknown index %s", meta.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM indexes WHERE id <> ?`, meta.ID); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return tx.Commit()
}

// Latest loads the current generation and all of its vectors.
func (s *Storage) Latest(ctx context.Context) (vectorstore.Meta, vectorstore.Collection, error) {
	var (
		meta    vectorstore.Meta
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, title, embedder, embedder_state, dimension, chunk_count, created_at
		 FROM indexes WHERE current = 1`).
		Scan(&meta.ID, &meta.SourceURL, &meta.Title, &meta.Embedder, &meta.EmbedderState, &meta.Dimension, &meta.ChunkCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return vectorstore.Meta{}, nil, vectorstore.ErrNotFound
	}
	if err != nil {
		return vectorstore.Meta{}, nil, fmt.Errorf("load index row: %w", err)
	}
	meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, chunk_id, document_id, source_url, text, embedding FROM chunks WHERE index_id = ? ORDER BY seq`, meta.ID)
	if err != nil {
		return vectorstore.Meta{}, nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	var (
		chunks  []domain.Chunk
		vectors [][]float64
	)
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.Index, &c.ChunkID, &c.DocumentID, &c.SourceURL, &c.Text, &blob); err != nil {
			return vectorstore.Meta{}, nil, err
		}
		vec, err := embedding.DecodeVector(blob)
		if err != nil {
			return vectorstore.Meta{}, nil, err
		}
		chunks = append(chunks, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return vectorstore.Meta{}, nil, err
	}

	mem := memory.NewCollection(meta.ID)
	if err := mem.Upsert(ctx, chunks, vectors); err != nil {
		return vectorstore.Meta{}, nil, err
	}
	return meta, &Collection{db: s.db, id: meta.ID, mem: mem}, nil
}

// Drop deletes a generation and its chunks.
func (s *Storage) Drop(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM indexes WHERE id = ?`, id)
	return err
}

func (s *Storage) Close() error { return s.db.Close() }

// Collection writes through to SQLite and searches an in-memory mirror.
type Collection struct {
	db  *sql.DB
	id  string
	mem *memory.Collection
}

func (c *Collection) ID() string { return c.id }

func (c *Collection) Len() int { return c.mem.Len() }

// Upsert stores chunks and vectors in a single transaction.
func (c *Collection) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (index_id, seq, chunk_id, document_id, source_url, text, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, c.id, ch.Index, ch.ChunkID, ch.DocumentID, ch.SourceURL, ch.Text,
			embedding.EncodeVector(vectors[i])); err != nil {
			return err
		}
	}
	if err := c.mem.Upsert(ctx, chunks, vectors); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Collection) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	return c.mem.Search(ctx, vector, topK)
}
