package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	cfg    Config
	apiKey string
	client *http.Client
}

func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	cfg = cfg.withDefaults("https://api.anthropic.com/v1", "claude-3-5-haiku-latest")
	key, err := apiKey(cfg.APIKeyEnv, true)
	if err != nil {
		return nil, err
	}
	return &Anthropic{cfg: cfg, apiKey: key, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	var out messagesResponse
	err := postJSON(ctx, a.client, a.cfg.BaseURL+"/messages", map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}, messagesRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	var b strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty response content")
	}
	return b.String(), nil
}
