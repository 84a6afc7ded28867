package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.25, 0.8},
		{1, 0.5},
		{3, 0.25},
	}
	for _, tt := range tests {
		if got := Similarity(tt.distance); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Similarity(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
	if Similarity(1e9) <= 0 {
		t.Errorf("similarity must stay positive for large distances")
	}
}

func TestRank(t *testing.T) {
	hits := []vectorstore.Hit{
		{Chunk: domain.Chunk{Index: 0}, Distance: 0.5},
		{Chunk: domain.Chunk{Index: 1}, Distance: 0.1},
		{Chunk: domain.Chunk{Index: 2}, Distance: 0.5},
	}
	results := Rank(hits)
	wantOrder := []int{1, 0, 2}
	for i, r := range results {
		if r.Chunk.Index != wantOrder[i] {
			t.Errorf("result %d is chunk %d, want %d", i, r.Chunk.Index, wantOrder[i])
		}
		if r.Distance != hits[wantOrder[i]].Distance {
			t.Errorf("result %d lost its distance", i)
		}
	}
}

func TestFilterByThreshold(t *testing.T) {
	results := []domain.SearchResult{
		{Chunk: domain.Chunk{Index: 0}, Score: 0.9},
		{Chunk: domain.Chunk{Index: 1}, Score: 0.3},
		{Chunk: domain.Chunk{Index: 2}, Score: 0.29},
		{Chunk: domain.Chunk{Index: 3}, Score: 0.5},
	}

	got, err := FilterByThreshold(results, 0.3)
	if err != nil {
		t.Fatalf("FilterByThreshold() error = %v", err)
	}
	want := []int{0, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Chunk.Index != want[i] {
			t.Errorf("result %d is chunk %d, want %d", i, got[i].Chunk.Index, want[i])
		}
	}

	none, err := FilterByThreshold(results, 1)
	if err != nil || len(none) != 0 {
		t.Errorf("FilterByThreshold(1) = %v, %v; want empty", none, err)
	}
	all, _ := FilterByThreshold(results, 0)
	if len(all) != len(results) {
		t.Errorf("FilterByThreshold(0) dropped results")
	}
}

func TestFilterByThresholdInvalid(t *testing.T) {
	for _, threshold := range []float64{-0.1, 1.5, math.NaN()} {
		if _, err := FilterByThreshold(nil, threshold); !errors.Is(err, domain.ErrInvalidParams) {
			t.Errorf("FilterByThreshold(%v) error = %v, want invalid params", threshold, err)
		}
	}
}
