package embedding

import (
	"math"

	"webqa/internal/domain"
)

// Fitter is implemented by embedders that learn from the indexed corpus.
// Fit never changes the receiver: it returns a new, immutable embedder so a
// rebuild cannot alter the vectors of an index that is still being queried.
type Fitter interface {
	Fit(corpus []string) (domain.Embedder, error)
}

// Stater is implemented by fitted embedders whose learned state must be
// persisted alongside an index.
type Stater interface {
	State() ([]byte, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
