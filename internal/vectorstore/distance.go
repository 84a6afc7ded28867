package vectorstore

import (
	"math"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

// EuclideanDistance returns the L2 distance between two vectors of equal length.
func EuclideanDistance(a, b domain.Vector) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v domain.Vector) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
}
