package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"webqa/internal/domain"
)

// DefaultMaxChars is the chunk size used when none is configured.
const DefaultMaxChars = 500

// SemanticChunker packs whole paragraphs into chunks of bounded length.
// Paragraphs over the limit are split at sentence boundaries, then at
// whitespace, and only as a last resort inside a word.
type SemanticChunker struct{}

func NewSemanticChunker() *SemanticChunker { return &SemanticChunker{} }

// Chunk splits src into chunks of at most maxChars runes.
func (c *SemanticChunker) Chunk(src domain.TextBlocks, maxChars int) ([]domain.Chunk, error) {
	if maxChars <= 0 {
		return nil, &domain.ChunkingError{MaxChars: maxChars}
	}

	var (
		pieces []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	add := func(text, sep string) {
		n := utf8.RuneCountInString(text)
		if curLen > 0 && curLen+len(sep)+n > maxChars {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += len(sep)
		}
		cur.WriteString(text)
		curLen += n
	}

	for _, block := range src.Blocks() {
		for _, para := range domain.SplitParagraphs(block) {
			if utf8.RuneCountInString(para) <= maxChars {
				add(para, "\n\n")
				continue
			}
			flush()
			for _, sentence := range splitSentences(para) {
				if utf8.RuneCountInString(sentence) <= maxChars {
					add(sentence, " ")
					continue
				}
				for _, part := range splitWords(sentence, maxChars) {
					add(part, " ")
				}
			}
			flush()
		}
	}
	flush()

	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = domain.Chunk{
			DocumentID: src.DocumentID(),
			ChunkID:    src.DocumentID() + ":" + strconv.Itoa(i),
			SourceURL:  src.SourceURL(),
			Text:       text,
			Index:      i,
		}
	}
	return chunks, nil
}

// splitSentences cuts after '.', '!' or '?' when followed by a space.
// The input has its whitespace collapsed already.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				out = append(out, text[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// splitWords breaks text into parts of at most max runes at the last space
// inside the limit, cutting a word only when it alone exceeds max.
func splitWords(text string, max int) []string {
	var out []string
	r := []rune(text)
	for len(r) > max {
		cut := -1
		for i := max; i > 0; i-- {
			if r[i] == ' ' {
				cut = i
				break
			}
		}
		if cut > 0 {
			out = append(out, string(r[:cut]))
			r = r[cut+1:]
		} else {
			out = append(out, string(r[:max]))
			r = r[max:]
		}
		for len(r) > 0 && r[0] == ' ' {
			r = r[1:]
		}
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}
