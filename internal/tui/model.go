package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"webqa/internal/domain"
	"webqa/internal/service"
)

const indexCommand = "/index"

// Port is the TUI-facing subset of the pipeline.
type Port interface {
	IndexWebsite(ctx context.Context, url string) (service.IndexReport, error)
	Ask(ctx context.Context, question string) (service.Answer, error)
	Status() service.Status
}

type indexedMsg struct {
	url    string
	report service.IndexReport
	err    error
}

type answeredMsg struct {
	question string
	answer   service.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	port     Port
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	history  []domain.ConversationTurn
	summary  string
	status   string
	busy     bool
	ready    bool
	startup  tea.Cmd
	now      func() time.Time
}

// New creates a new TUI model instance. Each index or ask action is
// bounded by timeout.
func New(port Port, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "/index <url> or ask a question"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	status := "No page indexed. Type /index <url>."
	if st := port.Status(); st.State == service.StateIndexed {
		status = fmt.Sprintf("Indexed %s (%d chunks). Ask away.", st.SourceURL, st.Chunks)
	}
	return Model{port: port, timeout: timeout, input: ti, viewport: vp, status: status, now: time.Now}
}

// IndexOnStart makes the program index url as soon as it starts.
func (m Model) IndexOnStart(url string) Model {
	m.busy = true
	m.status = "Indexing " + url + "..."
	m.startup = m.indexCmd(url)
	return m
}

// Init initializes the model (text input cursor blink) and runs any
// startup command.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.startup) }

// History returns the answered questions so far.
func (m Model) History() []domain.ConversationTurn { return m.history }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case indexedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Index failed: " + msg.err.Error()
			return m, nil
		}
		m.summary = msg.report.Summary
		m.status = fmt.Sprintf("Indexed %q: %d chunks. Ask away.", orURL(msg.report.Title, msg.url), msg.report.Chunks)
		m.refresh()
		return m, nil
	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.history = append(m.history, domain.ConversationTurn{Question: msg.question, Answer: msg.answer.Text, AskedAt: m.now()})
		m.status = fmt.Sprintf("Answered from %d passages.", len(msg.answer.Sources))
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			if url, ok := strings.CutPrefix(line, indexCommand); ok {
				url = strings.TrimSpace(url)
				m.status = "Indexing " + url + "..."
				return m, m.indexCmd(url)
			}
			m.status = "Thinking..."
			return m, m.askCmd(line)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) indexCmd(url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		report, err := m.port.IndexWebsite(ctx, url)
		return indexedMsg{url: url, report: report, err: err}
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		ans, err := m.port.Ask(ctx, question)
		return answeredMsg{question: question, answer: ans, err: err}
	}
}

// View renders the TUI layout and conversation.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Web Page Q&A")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	history := historyBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + history + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.history, m.viewport.Width))
}

func renderHistory(turns []domain.ConversationTurn, width int) string {
	if len(turns) == 0 {
		return "No questions yet."
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-4))
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.Question))
		b.WriteString("\n")
		b.WriteString(wrap.Render(highlightBestSentence(t.Answer, t.Question)))
	}
	return b.String()
}

func orURL(title, url string) string {
	if title != "" {
		return title
	}
	return url
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe   = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe      = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// highlightBestSentence emphasises the answer sentence sharing the most
// words with the question.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.TrimSpace(text)
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx && bestScore > 0 {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
