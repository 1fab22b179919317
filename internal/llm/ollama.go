package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	cfg    Config
	client *http.Client
}

func NewOllama(cfg Config) *Ollama {
	cfg = cfg.withDefaults("http://localhost:11434", "llama3.2")
	return &Ollama{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	var out generateResponse
	err := postJSON(ctx, o.client, o.cfg.BaseURL+"/api/generate", nil, generateRequest{
		Model:  o.cfg.Model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": o.cfg.Temperature,
			"num_predict": o.cfg.MaxTokens,
		},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return out.Response, nil
}
