package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Match with errors.Is.
var (
	// ErrFetch indicates the page could not be retrieved or had no text.
	ErrFetch = errors.New("fetch failed")

	// ErrChunking indicates the chunker was called with invalid limits.
	ErrChunking = errors.New("chunking failed")

	// ErrIndex indicates embedding or storage failed while building an index.
	ErrIndex = errors.New("index build failed")

	// ErrNoIndex indicates a query arrived before any successful index build.
	ErrNoIndex = errors.New("no index: index a website first")

	// ErrGeneration indicates the language model call failed or timed out.
	ErrGeneration = errors.New("answer generation failed")

	// ErrInvalidArgument indicates malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// FetchError describes why a URL could not be turned into a Document.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ChunkingError reports an invalid chunk size.
type ChunkingError struct {
	MaxChars int
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("chunking: max chars must be positive, got %d", e.MaxChars)
}

func (e *ChunkingError) Is(target error) bool { return target == ErrChunking }

// IndexError reports the build stage that failed.
type IndexError struct {
	Stage string
	Err   error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index %s: %v", e.Stage, e.Err) }

func (e *IndexError) Unwrap() error { return e.Err }

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// GenerationError wraps a failed or timed out language model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generate answer: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Kind names the error class of err, or "internal" for anything else.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrChunking):
		return "chunking"
	case errors.Is(err, ErrNoIndex):
		return "no_index"
	case errors.Is(err, ErrIndex):
		return "index"
	case errors.Is(err, ErrGeneration):
		return "generation"
	default:
		return "internal"
	}
}
