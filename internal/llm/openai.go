package llm

import (
	"context"
	"fmt"
	"net/http"
)

// OpenAI calls an OpenAI-compatible /chat/completions endpoint.
type OpenAI struct {
	cfg    Config
	apiKey string
	client *http.Client
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	cfg = cfg.withDefaults("https://api.openai.com/v1", "gpt-4o-mini")
	key, err := apiKey(cfg.APIKeyEnv, false)
	if err != nil {
		return nil, err
	}
	return &OpenAI{cfg: cfg, apiKey: key, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	headers := map[string]string{}
	if o.apiKey != "" {
		headers["Authorization"] = "Bearer " + o.apiKey
	}
	var out chatResponse
	err := postJSON(ctx, o.client, o.cfg.BaseURL+"/chat/completions", headers, chatRequest{
		Model:       o.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}
