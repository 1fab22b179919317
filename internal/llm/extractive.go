package llm

import (
	"context"
	"regexp"
	"strings"

	"webqa/internal/summarizer"
)

// NoAnswer is returned by Extractive when no context sentence shares a term
// with the question.
const NoAnswer = "The indexed page does not appear to answer that question."

var (
	contextBlock  = regexp.MustCompile(`(?s)Context:\s*\n(.*?)\n\s*Question:`)
	questionLine  = regexp.MustCompile(`(?m)^Question:\s*(.+)$`)
	passageMarker = regexp.MustCompile(`(?m)^\[\d+\]\s*`)
)

// Extractive answers offline by quoting the context sentences that overlap
// most with the question.
type Extractive struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Extractive{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: maxSentences}
}

func (e *Extractive) GenerateFromContext(_ context.Context, question string, passages []string) (string, error) {
	picked := e.summarizer.Extract(question, passages, e.maxSentences)
	if len(picked) == 0 {
		return NoAnswer, nil
	}
	return strings.Join(picked, " "), nil
}

// Generate accepts a rendered prompt with "Context:" and "Question:"
// sections. Without them the whole prompt is treated as context.
func (e *Extractive) Generate(ctx context.Context, prompt string) (string, error) {
	question := prompt
	if m := questionLine.FindStringSubmatch(prompt); m != nil {
		question = m[1]
	}
	body := prompt
	if m := contextBlock.FindStringSubmatch(prompt); m != nil {
		body = m[1]
	}
	var passages []string
	for _, p := range passageMarker.Split(body, -1) {
		if p = strings.TrimSpace(p); p != "" {
			passages = append(passages, p)
		}
	}
	return e.GenerateFromContext(ctx, question, passages)
}
