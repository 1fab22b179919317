package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/config"
	"webqa/internal/embedding/tfidf"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestNewApp_SQLiteIndexSurvivesRestart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Owls</title></head><body><p>Barn owls hunt mice at night.</p></body></html>`))
	}))
	defer srv.Close()

	ctx := context.Background()
	cfg := testConfig(t)
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.SQLite = &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "data", "index.db")}

	first, err := newApp(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = first.pipeline.IndexWebsite(ctx, srv.URL)
	require.NoError(t, err)
	first.Close()

	second, err := newApp(ctx, cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	ok, err := second.pipeline.Restore(ctx, second.resolve)
	require.NoError(t, err)
	require.True(t, ok)

	ans, err := second.pipeline.Ask(ctx, "What do barn owls hunt?")
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "mice")
}

func TestNewApp_RejectsUnknownGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.Type = "gpt-telepathy"
	_, err := newApp(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.resolve("openai:text-embedding-3-small", nil)
	assert.Error(t, err)

	m, err := tfidf.NewEmbedder().Fit([]string{"alpha beta"})
	require.NoError(t, err)
	state, err := m.(*tfidf.Model).State()
	require.NoError(t, err)
	got, err := a.resolve(tfidf.Name, state)
	require.NoError(t, err)
	assert.Equal(t, tfidf.Name, got.Name())
}

func TestAskCommand_WithURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("The library opens at nine.\n\nIt will close at five."))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, testConfig(t)))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "ask", "--url", srv.URL, "When", "does", "the", "library", "close?"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		askURL = ""
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "close at five")
}
