package vector

import (
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// normTolerance bounds how far an embedding's Euclidean norm may drift from
// 1.0 before ValidateUnitNorm rejects it.
const normTolerance = 0.001

// CosineDistance computes 1 - cosine(a, b). It returns an error if the
// vectors have different lengths or if either vector has zero magnitude.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: cosine distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vector: cosine distance on empty vectors")
	}
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0, fmt.Errorf("vector: cosine distance with zero-magnitude vector")
	}
	// CosineDistance is the only variant viant/vec exports on every GOARCH;
	// the magnitude-reusing form exists only under the arm64 build tag.
	return float64(va.CosineDistance(b)), nil
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return float64(search.Float32s(v).Magnitude())
}

// Normalize scales v in place to unit length. A zero vector is left unchanged.
func Normalize(v []float32) []float32 {
	m := Magnitude(v)
	if m == 0 {
		return v
	}
	inv := float32(1 / m)
	for i := range v {
		v[i] *= inv
	}
	return v
}

// ValidateUnitNorm reports an error when v is not unit-normalized within
// tolerance. Cosine distance over non-unit vectors still works, but the
// similarity percentages exposed by the query engine assume unit inputs.
func ValidateUnitNorm(v []float32) error {
	m := Magnitude(v)
	if math.Abs(m-1.0) > normTolerance {
		return fmt.Errorf("vector: embedding norm %.6f outside unit tolerance %.3f", m, normTolerance)
	}
	return nil
}

// Similarity converts a cosine distance in [0, 2] into the percentage score
// exposed by search results: round((1 - distance/2) * 100, 2 decimals).
func Similarity(distance float64) float64 {
	return math.Round((1-distance/2)*100*100) / 100
}

// MaxDistance converts a minimum similarity percentage into the inclusive
// distance ceiling used to filter candidates before ranking.
func MaxDistance(minSimilarity float64) float64 {
	return 2 * (1 - minSimilarity/100)
}
