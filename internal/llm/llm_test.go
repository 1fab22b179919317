package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/answer"
)

func TestOpenAI_Generate(t *testing.T) {
	t.Setenv("WEBQA_TEST_OPENAI_KEY", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAI(Config{BaseURL: srv.URL + "/v1/", APIKeyEnv: "WEBQA_TEST_OPENAI_KEY", Model: "gpt-test"})
	require.NoError(t, err)
	got, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
}

func TestOpenAI_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected auth header")
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	g, err := NewOpenAI(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")

	_, err = NewOpenAI(Config{APIKeyEnv: "WEBQA_TEST_UNSET_KEY"})
	assert.NoError(t, err, "openai-compatible servers may not need a key")
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "prompt", req.Prompt)
		w.Write([]byte(`{"response":"from ollama","done":true}`))
	}))
	defer srv.Close()

	got, err := NewOllama(Config{BaseURL: srv.URL, Model: "m"}).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from ollama", got)
}

func TestAnthropic_Generate(t *testing.T) {
	t.Setenv("WEBQA_TEST_ANTHROPIC_KEY", "ak-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultMaxTokens, req.MaxTokens)
		w.Write([]byte(`{"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	g, err := NewAnthropic(Config{BaseURL: srv.URL, APIKeyEnv: "WEBQA_TEST_ANTHROPIC_KEY"})
	require.NoError(t, err)
	got, err := g.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", got)

	_, err = NewAnthropic(Config{APIKeyEnv: "WEBQA_TEST_UNSET_KEY"})
	assert.Error(t, err)
}

func TestExtractive(t *testing.T) {
	e := NewExtractive(1)
	passages := []string{"The bridge opened in 1932. It is painted grey.", "Ferries still run daily."}

	got, err := e.GenerateFromContext(context.Background(), "When did the bridge open? 1932?", passages)
	require.NoError(t, err)
	assert.Equal(t, "The bridge opened in 1932.", got)

	got, err = e.GenerateFromContext(context.Background(), "volcano", passages)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)

	prompt := answer.Render(answer.DefaultTemplate, "How often do ferries run?", passages)
	got, err = e.Generate(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Ferries still run daily.", got)
}
