package tfidf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"webqa/internal/domain"
)

// Name identifies TF-IDF models in index metadata.
const Name = "tfidf"

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Embedder is an unfitted TF-IDF vectorizer. Fit learns a vocabulary and
// IDF weights from a corpus and returns them as a new Model.
type Embedder struct {
	stopwords map[string]struct{}
}

// NewEmbedder creates an unfitted TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return Name }

// Embed fails: an unfitted embedder has no vocabulary.
func (e *Embedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("tfidf embedder not fitted")
}

// Fit builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Fit(corpus []string) (domain.Embedder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("empty corpus for TF-IDF fit")
	}
	// Build vocabulary and document frequencies
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(text, e.stopwords) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return nil, errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	idf := make([]float64, len(terms))
	N := float64(len(corpus))
	for i, term := range terms {
		// Smoothed IDF
		idf[i] = math.Log((1+N)/(1+float64(df[term]))) + 1.0
	}
	return newModel(terms, idf, e.stopwords), nil
}

// Model is a fitted, read-only TF-IDF vectorizer.
type Model struct {
	terms      []string
	vocabulary map[string]int
	idf        []float64
	stopwords  map[string]struct{}
}

func newModel(terms []string, idf []float64, stopwords map[string]struct{}) *Model {
	vocab := make(map[string]int, len(terms))
	for i, t := range terms {
		vocab[t] = i
	}
	return &Model{terms: terms, vocabulary: vocab, idf: idf, stopwords: stopwords}
}

// Name returns the identifier of this embedder implementation.
func (m *Model) Name() string { return Name }

// Dimension returns the dimensionality of the produced embedding vectors.
func (m *Model) Dimension() int { return len(m.terms) }

// Embed computes the L2-normalized TF-IDF embedding for the given text.
// Text without known terms yields a zero vector.
func (m *Model) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, len(m.terms))
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokenize(text, m.stopwords) {
		if idx, ok := m.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		tfv := float64(count) / float64(total)
		vec[idx] = tfv * m.idf[idx]
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

type state struct {
	Terms []string  `json:"terms"`
	IDF   []float64 `json:"idf"`
}

// State serializes the fitted vocabulary and IDF weights.
func (m *Model) State() ([]byte, error) {
	return json.Marshal(state{Terms: m.terms, IDF: m.idf})
}

// Restore rebuilds a Model from State output.
func Restore(data []byte) (*Model, error) {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode tfidf state: %w", err)
	}
	if len(st.Terms) == 0 || len(st.Terms) != len(st.IDF) {
		return nil, fmt.Errorf("invalid tfidf state: %d terms, %d weights", len(st.Terms), len(st.IDF))
	}
	return newModel(st.Terms, st.IDF, defaultStopwords()), nil
}

func tokenize(text string, stopwords map[string]struct{}) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "when", "where", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
