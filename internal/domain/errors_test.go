package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsMatchTheirKind(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		err      error
		sentinel error
		kind     string
	}{
		{&FetchError{URL: "https://x", Err: cause}, ErrFetch, "fetch"},
		{&ChunkingError{MaxChars: -1}, ErrChunking, "chunking"},
		{&IndexError{Stage: "embed", Err: cause}, ErrIndex, "index"},
		{&GenerationError{Err: cause}, ErrGeneration, "generation"},
		{ErrNoIndex, ErrNoIndex, "no_index"},
		{fmt.Errorf("%w: empty question", ErrInvalidArgument), ErrInvalidArgument, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			wrapped := fmt.Errorf("pipeline: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.kind, Kind(wrapped))
		})
	}
	assert.Equal(t, "internal", Kind(cause))
}

func TestErrorsUnwrapToCause(t *testing.T) {
	cause := errors.New("timeout")
	assert.ErrorIs(t, &FetchError{Err: cause}, cause)
	assert.ErrorIs(t, &IndexError{Stage: "store", Err: cause}, cause)
	assert.ErrorIs(t, &GenerationError{Err: cause}, cause)
	assert.NotErrorIs(t, &FetchError{Err: cause}, ErrIndex)
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{URL: "https://example.com", StatusCode: 503, Err: errors.New("unexpected status 503 Service Unavailable")}
	assert.Equal(t, "fetch https://example.com: HTTP 503: unexpected status 503 Service Unavailable", err.Error())
}

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("  First\tline\n  continues.\n\n\n\nSecond  one. \n \n")
	assert.Equal(t, []string{"First line continues.", "Second one."}, got)
	assert.Empty(t, SplitParagraphs(" \n\n "))
}
