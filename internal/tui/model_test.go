package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/domain"
	"webqa/internal/service"
)

type fakePort struct {
	indexed []string
	askErr  error
}

func (f *fakePort) IndexWebsite(_ context.Context, url string) (service.IndexReport, error) {
	if url == "" {
		return service.IndexReport{}, &domain.FetchError{URL: url, Err: errors.New("empty url")}
	}
	f.indexed = append(f.indexed, url)
	return service.IndexReport{URL: url, Title: "Example", Chunks: 3, Summary: "A page."}, nil
}

func (f *fakePort) Ask(_ context.Context, q string) (service.Answer, error) {
	if f.askErr != nil {
		return service.Answer{}, f.askErr
	}
	return service.Answer{Text: "Because. It is so.", Sources: make([]domain.SearchResult, 2)}, nil
}

func (f *fakePort) Status() service.Status {
	if len(f.indexed) == 0 {
		return service.Status{State: service.StateEmpty}
	}
	return service.Status{State: service.StateIndexed}
}

// submit types line, presses enter and runs the resulting command.
func submit(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func newModel(port Port) Model {
	m := New(port, time.Second)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestIndexThenAsk(t *testing.T) {
	port := &fakePort{}
	m := newModel(port)

	m = submit(t, m, "/index https://example.com")
	assert.Equal(t, []string{"https://example.com"}, port.indexed)
	assert.Equal(t, "A page.", m.summary)
	assert.Contains(t, m.status, "3 chunks")
	assert.False(t, m.busy)
	assert.Empty(t, m.input.Value())

	m = submit(t, m, "why is it so?")
	require.Len(t, m.History(), 1)
	assert.Equal(t, "why is it so?", m.History()[0].Question)
	assert.Equal(t, "Because. It is so.", m.History()[0].Answer)
	assert.Contains(t, m.View(), "You: why is it so?")
}

func TestFailuresDoNotAppendHistory(t *testing.T) {
	port := &fakePort{askErr: domain.ErrNoIndex}
	m := newModel(port)

	m = submit(t, m, "anything?")
	assert.Empty(t, m.History())
	assert.Contains(t, m.status, "Error:")

	m = submit(t, m, "/index")
	assert.Contains(t, m.status, "Index failed")
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	m := newModel(&fakePort{})
	m.busy = true
	m.input.SetValue("question")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "question", next.(Model).input.Value())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Cats purr. Dogs bark loudly.", "why do dogs bark")
	assert.Contains(t, out, "Cats purr.")
	assert.Contains(t, out, "Dogs bark loudly.")
	assert.Equal(t, "plain", highlightBestSentence("plain", ""))
}

func TestIndexOnStart(t *testing.T) {
	port := &fakePort{}
	m := newModel(port).IndexOnStart("https://example.com/start")
	assert.True(t, m.busy)
	require.NotNil(t, m.startup)

	next, _ := m.Update(m.startup())
	m = next.(Model)
	assert.Equal(t, []string{"https://example.com/start"}, port.indexed)
	assert.False(t, m.busy)
}
