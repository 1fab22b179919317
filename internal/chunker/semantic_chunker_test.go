package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webqa/internal/domain"
)

func doc(text string) domain.Document {
	return domain.Document{ID: "doc1", URL: "https://example.com", Text: text}
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func joined(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

func TestChunk_InvalidMaxChars(t *testing.T) {
	for _, m := range []int{0, -1} {
		_, err := NewSemanticChunker().Chunk(doc("text"), m)
		assert.ErrorIs(t, err, domain.ErrChunking)
	}
}

func TestChunk_SingleShortDocument(t *testing.T) {
	chunks, err := NewSemanticChunker().Chunk(doc("Paragraph one. Paragraph two."), 500)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Paragraph one. Paragraph two.", chunks[0].Text)
	assert.Equal(t, "doc1:0", chunks[0].ChunkID)
	assert.Equal(t, "doc1", chunks[0].DocumentID)
	assert.Equal(t, "https://example.com", chunks[0].SourceURL)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunk_EmptyDocument(t *testing.T) {
	chunks, err := NewSemanticChunker().Chunk(doc("  \n\n "), 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_PacksParagraphs(t *testing.T) {
	text := "aaaa bbbb.\n\ncccc dddd.\n\neeee ffff."
	chunks, err := NewSemanticChunker().Chunk(doc(text), 24)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa bbbb.\n\ncccc dddd.", chunks[0].Text)
	assert.Equal(t, "eeee ffff.", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestChunk_SplitsLongParagraphAtSentences(t *testing.T) {
	text := "One two three. Four five six! Seven eight nine?"
	chunks, err := NewSemanticChunker().Chunk(doc(text), 30)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "One two three. Four five six!", chunks[0].Text)
	assert.Equal(t, "Seven eight nine?", chunks[1].Text)
}

func TestChunk_SplitsLongSentenceAtWhitespace(t *testing.T) {
	text := "alpha beta gamma delta epsilon"
	chunks, err := NewSemanticChunker().Chunk(doc(text), 12)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 12)
		assert.False(t, strings.HasPrefix(c.Text, " "))
	}
	assert.Equal(t, "alpha beta", chunks[0].Text)
	assert.Equal(t, squash(text), squash(joined(chunks)))
}

func TestChunk_HardCutsOversizedWord(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks, err := NewSemanticChunker().Chunk(doc(text), 10)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0].Text)
	assert.Equal(t, strings.Repeat("x", 5), chunks[2].Text)
}

func TestChunk_CountsRunesNotBytes(t *testing.T) {
	text := "héllo wörld ünïcode"
	chunks, err := NewSemanticChunker().Chunk(doc(text), 19)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestChunk_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"the", "quick", "brown", "fox", "jumps.", "over", "lazy", "dog!", "ünïcode", "supercalifragilisticexpialidocious", "why?"}
	c := NewSemanticChunker()

	for i := 0; i < 200; i++ {
		var sb strings.Builder
		paras := 1 + rng.Intn(6)
		for p := 0; p < paras; p++ {
			n := 1 + rng.Intn(60)
			for w := 0; w < n; w++ {
				sb.WriteString(words[rng.Intn(len(words))])
				if rng.Intn(10) == 0 {
					sb.WriteString("\n")
				} else {
					sb.WriteString(" ")
				}
			}
			sb.WriteString("\n\n")
		}
		text := sb.String()
		maxChars := 1 + rng.Intn(120)

		first, err := c.Chunk(doc(text), maxChars)
		require.NoError(t, err)
		for _, ch := range first {
			require.LessOrEqual(t, utf8.RuneCountInString(ch.Text), maxChars)
			require.NotEmpty(t, strings.TrimSpace(ch.Text))
		}
		require.Equal(t, squash(text), squash(joined(first)), "content must be preserved")

		second, err := c.Chunk(doc(text), maxChars)
		require.NoError(t, err)
		require.Equal(t, first, second, "chunking must be deterministic")
	}
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"A b.", "C d!", "E f"}, splitSentences("A b. C d! E f"))
	assert.Equal(t, []string{"3.14 is pi."}, splitSentences("3.14 is pi."))
}
