package domain

import (
	"strings"
	"time"
)

// Document is the readable text extracted from a single web page.
type Document struct {
	ID        string
	URL       string
	Title     string
	Text      string
	FetchedAt time.Time
}

// TextBlocks is the ordered text handed to the chunker. It is satisfied by
// Document itself and by whatever the document-load step produces.
type TextBlocks interface {
	DocumentID() string
	SourceURL() string
	Blocks() []string
}

func (d Document) DocumentID() string { return d.ID }

func (d Document) SourceURL() string { return d.URL }

// Blocks returns the document's paragraphs in order.
func (d Document) Blocks() []string { return SplitParagraphs(d.Text) }

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	SourceURL  string
	Text       string
	Index      int
}

// Embedding is the vector computed for one chunk.
type Embedding struct {
	ChunkID string
	Vector  []float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// ConversationTurn is a question/answer pair kept by a UI for display.
type ConversationTurn struct {
	Question string
	Answer   string
	AskedAt  time.Time
}

// SplitParagraphs splits text on blank lines and collapses the whitespace
// inside every paragraph. Empty paragraphs are dropped.
func SplitParagraphs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var (
		out  []string
		para []string
	)
	flush := func() {
		if len(para) == 0 {
			return
		}
		joined := strings.Join(strings.Fields(strings.Join(para, " ")), " ")
		if joined != "" {
			out = append(out, joined)
		}
		para = para[:0]
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		para = append(para, line)
	}
	flush()
	return out
}
