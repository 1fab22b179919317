package domain

import "context"

// Fetcher retrieves a web page and returns its readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// DocumentLoader turns a fetched document into ordered text blocks.
type DocumentLoader interface {
	Load(ctx context.Context, doc Document) (TextBlocks, error)
}

// Chunker splits text blocks into chunks of at most maxChars runes.
type Chunker interface {
	Chunk(src TextBlocks, maxChars int) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator is a language model that completes a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
