package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, "extractive", cfg.Generator.Type)
	assert.Equal(t, "direct", cfg.Loader.Type)
	assert.Equal(t, 500, cfg.Chunker.MaxChars)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Fetcher.MaxAttempts)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_AppliesBackendDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
chunker:
  max_chars: 300
embedder:
  type: openai
  cache:
    type: redis
vector_store:
  type: qdrant
  qdrant:
    collection: pages
generator:
  type: ollama
  ollama:
    model: llama3.2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 300, cfg.Chunker.MaxChars)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	require.NotNil(t, cfg.Embedder.Cache.Redis)
	assert.Equal(t, "localhost:6379", cfg.Embedder.Cache.Redis.Addr)
	assert.Equal(t, "pages", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "llama3.2", cfg.Generator.Ollama.Model)
}

func TestLoad_RejectsUnknownTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  type: milvus\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector_store.type")
}

func TestLoad_RejectsNonPositiveSizes(t *testing.T) {
	for name, body := range map[string]string{
		"chunker.max_chars": "chunker:\n  max_chars: -10\n",
		"retrieval.top_k":   "retrieval:\n  top_k: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Generator.Type = "anthropic"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "webqa", "config.yaml"), path)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.FileExists(t, path)
}
