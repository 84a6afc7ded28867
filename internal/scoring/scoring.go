// Package scoring turns raw index distances into bounded similarity scores
// and applies the minimum-similarity cutoff.
package scoring

import (
	"math"
	"sort"

	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore"
)

// Similarity maps a non-negative L2 distance into (0, 1]; zero distance is 1.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}

// Rank converts hits to results ordered by similarity, highest first.
// Equal scores keep the order of hits.
func Rank(hits []vectorstore.Hit) []domain.SearchResult {
	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = domain.SearchResult{
			Chunk:    h.Chunk,
			Score:    Similarity(h.Distance),
			Distance: h.Distance,
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// FilterByThreshold keeps results scoring at least minSimilarity, preserving order.
func FilterByThreshold(results []domain.SearchResult, minSimilarity float64) ([]domain.SearchResult, error) {
	if math.IsNaN(minSimilarity) || minSimilarity < 0 || minSimilarity > 1 {
		return nil, domain.NewError(domain.KindInvalidParams, "threshold", "min similarity must be in [0, 1], got %v", minSimilarity)
	}
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minSimilarity {
			out = append(out, r)
		}
	}
	return out, nil
}
