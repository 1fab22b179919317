package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences(t *testing.T) {
	got := Sentences("First one. Second one!  Third without stop\n\nFourth? ...")
	assert.Equal(t, []string{"First one.", "Second one!", "Third without stop", "Fourth?"}, got)
	assert.Empty(t, Sentences("   "))
}

func TestSummarize_KeepsOriginalOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Rust is fast. Go compiles quickly and Go is simple. Go has goroutines for Go concurrency. Weather was nice."
	got, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Go compiles quickly and Go is simple. Go has goroutines for Go concurrency.", got)

	got, err = s.Summarize("no punctuation here", 3)
	require.NoError(t, err)
	assert.Equal(t, "no punctuation here", got)
}

func TestExtract(t *testing.T) {
	s := NewFrequencySummarizer()
	passages := []string{
		"The museum opens at nine. Tickets cost ten euros.",
		"Children enter for free. The museum will close at six.",
	}
	got := s.Extract("What time does the museum close?", passages, 1)
	assert.Equal(t, []string{"The museum will close at six."}, got)

	got = s.Extract("How much do tickets cost?", passages, 2)
	assert.Equal(t, []string{"Tickets cost ten euros."}, got)

	assert.Empty(t, s.Extract("quantum chromodynamics", passages, 3))
	assert.Empty(t, s.Extract("what is it", passages, 3))
}
