// Package answer composes grounded prompts from retrieved chunks and calls
// a language model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"webqa/internal/domain"
)

// InsufficientContext is returned, without calling the model, when no
// chunks were retrieved for a question.
const InsufficientContext = "I don't have enough context from the indexed page to answer that question."

// DefaultTemplate instructs the model to answer from the context only.
const DefaultTemplate = `You are a helpful assistant that answers questions about a web page.
Answer the question using only the context below. If the context does not contain the answer, say that you don't know.

Context:
{{context}}

Question: {{question}}

Answer:`

const defaultTimeout = 60 * time.Second

// ContextGenerator is implemented by generators that work on the question
// and passages directly instead of a rendered prompt.
type ContextGenerator interface {
	GenerateFromContext(ctx context.Context, question string, passages []string) (string, error)
}

// Config holds answerer settings.
type Config struct {
	Template string
	Timeout  time.Duration
}

// Answerer turns retrieved chunks into an answer.
type Answerer struct {
	generator domain.Generator
	template  string
	timeout   time.Duration
	log       *slog.Logger
}

func New(generator domain.Generator, cfg Config, log *slog.Logger) *Answerer {
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Answerer{generator: generator, template: cfg.Template, timeout: cfg.Timeout, log: log}
}

// Answer generates an answer to question grounded in chunks, which are
// presented to the model in the given order. Model failures, timeouts and
// empty output are returned as *domain.GenerationError.
func (a *Answerer) Answer(ctx context.Context, question string, chunks []domain.Chunk) (string, error) {
	if len(chunks) == 0 {
		return InsufficientContext, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	passages := make([]string, len(chunks))
	for i, c := range chunks {
		passages[i] = c.Text
	}

	start := time.Now()
	var (
		out string
		err error
	)
	if cg, ok := a.generator.(ContextGenerator); ok {
		out, err = cg.GenerateFromContext(ctx, question, passages)
	} else {
		out, err = a.generator.Generate(ctx, Render(a.template, question, passages))
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", a.timeout, err)
		}
		a.log.Error("answer generation failed", "error", err, "elapsed", time.Since(start))
		return "", &domain.GenerationError{Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &domain.GenerationError{Err: errors.New("model returned an empty answer")}
	}
	a.log.Debug("answer generated", "chars", len(out), "passages", len(passages), "elapsed", time.Since(start))
	return out, nil
}

// Render fills the template's {{context}} and {{question}} placeholders.
// Passages are numbered from 1 in the order given.
func Render(template, question string, passages []string) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, p)
	}
	// One pass, so placeholders inside page text stay literal.
	r := strings.NewReplacer("{{context}}", strings.TrimRight(b.String(), "\n"), "{{question}}", question)
	return r.Replace(template)
}
