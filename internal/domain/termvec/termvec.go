// Package termvec provides sparse term-frequency vectors for the
// fine-grained pairwise similarity used by cluster assignment. It is
// independent of the coarse embedding used for retrieval.
package termvec

import (
	"math"

	"github.com/kailas-cloud/postmesh/internal/domain/keywords"
)

// Vector is a sparse term-frequency vector over a document's full text.
type Vector map[string]float64

// FromText builds a term-frequency vector from raw text. Empty or
// non-tokenizable text yields an empty vector.
func FromText(text string) Vector {
	v := make(Vector)
	for _, tok := range keywords.Tokenize(text) {
		v[tok]++
	}
	return v
}

// IsZero reports whether the vector carries no terms.
func (v Vector) IsZero() bool { return len(v) == 0 }

// Cosine returns the cosine similarity between a and b in [0, 1].
// Either vector being empty yields 0.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Iterate the smaller map for the dot product.
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	var dot float64
	for term, f := range small {
		if g, ok := large[term]; ok {
			dot += f * g
		}
	}
	if dot == 0 {
		return 0
	}

	// One sqrt over the product keeps exact ratios exact: multiplying
	// two rounded square roots would push 1/(sqrt(2)*sqrt(2)) just
	// below 0.5 and break threshold comparisons on the boundary.
	return dot / math.Sqrt(sumSquares(a)*sumSquares(b))
}

func sumSquares(v Vector) float64 {
	var sum float64
	for _, f := range v {
		sum += f * f
	}
	return sum
}
