package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"webqa/internal/answer"
	"webqa/internal/chunker"
	"webqa/internal/config"
	"webqa/internal/docload"
	"webqa/internal/domain"
	"webqa/internal/embedding"
	"webqa/internal/embedding/openai"
	"webqa/internal/embedding/tfidf"
	"webqa/internal/fetcher"
	"webqa/internal/index"
	"webqa/internal/llm"
	"webqa/internal/service"
	"webqa/internal/summarizer"
	"webqa/internal/vectorstore"
	"webqa/internal/vectorstore/memory"
	"webqa/internal/vectorstore/qdrant"
	"webqa/internal/vectorstore/sqlite"
)

// app is the assembled pipeline plus the resources it must release.
type app struct {
	pipeline *service.Pipeline
	embedder domain.Embedder
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// resolve rebuilds the embedder of a stored index. Fitted embedders are
// restored from their saved state; others must match the configured one.
func (a *app) resolve(name string, state []byte) (domain.Embedder, error) {
	if name == tfidf.Name {
		return tfidf.Restore(state)
	}
	if name != a.embedder.Name() {
		return nil, fmt.Errorf("stored index uses embedder %q but %q is configured", name, a.embedder.Name())
	}
	return a.embedder, nil
}

func newApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*app, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	emb, err := buildEmbedder(ctx, cfg, log, a)
	if err != nil {
		return nil, err
	}
	a.embedder = emb

	st, err := buildStorage(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}

	var loader domain.DocumentLoader
	switch cfg.Loader.Type {
	case "file":
		loader = docload.File{Dir: cfg.Loader.Dir}
	default:
		loader = docload.Direct{}
	}

	var sum service.Summarizer
	if cfg.Summarizer.Type == "frequency" {
		sum = summarizer.NewFrequencySummarizer()
	}

	f := fetcher.New(fetcher.Config{
		Timeout:      cfg.Fetcher.Timeout(),
		MaxAttempts:  cfg.Fetcher.MaxAttempts,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		UserAgent:    cfg.Fetcher.UserAgent,
	}, nil, log)

	a.pipeline = service.New(service.Deps{
		Fetcher:    f,
		Loader:     loader,
		Chunker:    chunker.NewSemanticChunker(),
		Builder:    index.NewBuilder(st, emb, cfg.Embedder.Concurrency, log),
		Storage:    st,
		Answerer:   answer.New(gen, answer.Config{Template: cfg.Answer.PromptTemplate, Timeout: cfg.Answer.Timeout()}, log),
		Summarizer: sum,
	}, service.Config{
		MaxChars:         cfg.Chunker.MaxChars,
		TopK:             cfg.Retrieval.TopK,
		SummarySentences: cfg.Summarizer.MaxSentences,
	}, log)

	ok = true
	return a, nil
}

func buildEmbedder(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, a *app) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf":
		if cfg.Embedder.Cache.Type != "none" {
			log.Warn("embedding cache ignored: tfidf is refitted per page")
		}
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:           oc.BaseURL,
			APIKeyEnv:         oc.APIKeyEnv,
			Model:             oc.Model,
			Timeout:           time.Duration(oc.TimeoutSecs) * time.Second,
			RequestsPerSecond: oc.RequestsPerSecond,
			Burst:             oc.Burst,
			MaxRetries:        oc.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	switch cfg.Embedder.Cache.Type {
	case "memory":
		emb = embedding.NewCached(emb, embedding.NewMemoryCache(cfg.Embedder.Cache.MaxEntries), log)
	case "redis":
		rc := cfg.Embedder.Cache.Redis
		var password string
		if rc.PasswordEnv != "" {
			password = os.Getenv(rc.PasswordEnv)
		}
		cache, err := embedding.NewRedisCache(ctx, embedding.RedisConfig{
			Addr:      rc.Addr,
			Password:  password,
			DB:        rc.DB,
			TTL:       time.Duration(rc.TTLSecs) * time.Second,
			KeyPrefix: rc.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cache.Close)
		emb = embedding.NewCached(emb, cache, log)
	}
	return emb, nil
}

func buildStorage(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite":
		path := cfg.VectorStore.SQLite.Path
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return sqlite.NewStorage(path)
	case "qdrant":
		qc := cfg.VectorStore.Qdrant
		var key string
		if qc.APIKeyEnv != "" {
			key = os.Getenv(qc.APIKeyEnv)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     key,
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		}), nil
	}
	return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
}

func buildGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	gc := cfg.Generator
	switch gc.Type {
	case "extractive":
		return llm.NewExtractive(gc.ExtractiveMaxSentences), nil
	case "openai":
		return llm.NewOpenAI(llmConfig(gc.OpenAI, cfg.Answer.Timeout()))
	case "ollama":
		return llm.NewOllama(llmConfig(gc.Ollama, cfg.Answer.Timeout())), nil
	case "anthropic":
		return llm.NewAnthropic(llmConfig(gc.Anthropic, cfg.Answer.Timeout()))
	}
	return nil, fmt.Errorf("unknown generator: %s", gc.Type)
}

func llmConfig(c *config.LLMConfig, timeout time.Duration) llm.Config {
	if c == nil {
		return llm.Config{Timeout: timeout}
	}
	return llm.Config{
		BaseURL:     c.BaseURL,
		APIKeyEnv:   c.APIKeyEnv,
		Model:       c.Model,
		Timeout:     timeout,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}
