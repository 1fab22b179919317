// Package service wires the fetch, chunk, index and answer stages into the
// two operations user interfaces call: IndexWebsite and Ask.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"webqa/internal/answer"
	"webqa/internal/chunker"
	"webqa/internal/domain"
	"webqa/internal/index"
	"webqa/internal/vectorstore"
)

const (
	DefaultTopK             = 4
	DefaultSummarySentences = 3
)

// State is the pipeline's externally visible state.
type State int

const (
	StateEmpty State = iota
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateIndexed:
		return "indexed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Summarizer condenses page text into a few sentences.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Config holds pipeline tunables.
type Config struct {
	MaxChars         int
	TopK             int
	SummarySentences int
}

// Deps are the collaborators a Pipeline is assembled from. Summarizer is
// optional.
type Deps struct {
	Fetcher    domain.Fetcher
	Loader     domain.DocumentLoader
	Chunker    domain.Chunker
	Builder    *index.Builder
	Storage    vectorstore.Storage
	Answerer   *answer.Answerer
	Summarizer Summarizer
}

// IndexReport describes a successful IndexWebsite call.
type IndexReport struct {
	IndexID   string    `json:"index_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Chunks    int       `json:"chunks"`
	Summary   string    `json:"summary,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Answer is the result of Ask. Sources are the retrieved chunks the answer
// was grounded on, best first.
type Answer struct {
	Text    string                `json:"answer"`
	Sources []domain.SearchResult `json:"sources"`
}

// Status reports what is currently indexed.
type Status struct {
	State     State     `json:"state"`
	IndexID   string    `json:"index_id,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Chunks    int       `json:"chunks"`
	IndexedAt time.Time `json:"indexed_at,omitzero"`
}

// Pipeline owns the live index. It is safe for concurrent use; index
// builds are serialized while questions are answered from whichever
// complete index is live.
type Pipeline struct {
	deps    Deps
	cfg     Config
	current *index.Current
	mu      sync.Mutex
	log     *slog.Logger
}

func New(deps Deps, cfg Config, log *slog.Logger) *Pipeline {
	// Negative sizes reach the chunker and fail there.
	if cfg.MaxChars == 0 {
		cfg.MaxChars = chunker.DefaultMaxChars
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SummarySentences <= 0 {
		cfg.SummarySentences = DefaultSummarySentences
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{deps: deps, cfg: cfg, current: index.NewCurrent(deps.Storage, log), log: log}
}

// IndexWebsite fetches url and replaces the live index with one built from
// its text. On any failure the previous index, if any, stays live.
func (p *Pipeline) IndexWebsite(ctx context.Context, url string) (IndexReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	doc, err := p.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return IndexReport{}, err
	}
	blocks, err := p.deps.Loader.Load(ctx, doc)
	if err != nil {
		return IndexReport{}, &domain.IndexError{Stage: "load", Err: err}
	}
	chunks, err := p.deps.Chunker.Chunk(blocks, p.cfg.MaxChars)
	if err != nil {
		return IndexReport{}, err
	}
	idx, err := p.deps.Builder.Build(ctx, blocks, chunks, index.WithTitle(doc.Title))
	if err != nil {
		return IndexReport{}, err
	}
	if err := p.current.Replace(ctx, idx); err != nil {
		return IndexReport{}, err
	}

	meta := idx.Meta()
	report := IndexReport{
		IndexID:   meta.ID,
		URL:       meta.SourceURL,
		Title:     meta.Title,
		Chunks:    meta.ChunkCount,
		IndexedAt: meta.CreatedAt,
	}
	if p.deps.Summarizer != nil {
		summary, err := p.deps.Summarizer.Summarize(doc.Text, p.cfg.SummarySentences)
		if err != nil {
			p.log.Warn("summarize failed", "url", doc.URL, "error", err)
		}
		report.Summary = summary
	}
	p.log.Info("website indexed", "url", doc.URL, "chunks", len(chunks), "index_id", meta.ID, "elapsed", time.Since(start))
	return report, nil
}

// Ask answers question from the live index.
func (p *Pipeline) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidArgument)
	}
	results, err := p.Query(ctx, question, p.cfg.TopK)
	if err != nil {
		return Answer{}, err
	}
	chunks := make([]domain.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	text, err := p.deps.Answerer.Answer(ctx, question, chunks)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Sources: results}, nil
}

// Query returns the k chunks most similar to query.
func (p *Pipeline) Query(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	return p.current.Retrieve(ctx, query, k)
}

func (p *Pipeline) Status() Status {
	idx := p.current.Load()
	if idx == nil {
		return Status{State: StateEmpty}
	}
	meta := idx.Meta()
	return Status{
		State:     StateIndexed,
		IndexID:   meta.ID,
		SourceURL: meta.SourceURL,
		Title:     meta.Title,
		Chunks:    meta.ChunkCount,
		IndexedAt: meta.CreatedAt,
	}
}

// Restore makes the index last committed to storage live. It reports
// whether one was found.
func (p *Pipeline) Restore(ctx context.Context, resolve index.ResolveFunc) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := index.Open(ctx, p.deps.Storage, resolve)
	if err != nil || idx == nil {
		return false, err
	}
	p.current.Restore(idx)
	p.log.Info("index restored", "index_id", idx.ID(), "url", idx.Meta().SourceURL, "chunks", idx.Len())
	return true, nil
}
