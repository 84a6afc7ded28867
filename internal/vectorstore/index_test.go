package vectorstore

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

func chunksN(n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{DocumentID: "d", Index: i, Text: string(rune('a' + i))}
	}
	return out
}

func TestBuildAndSearch(t *testing.T) {
	vectors := []domain.Vector{{0, 0}, {3, 4}, {1, 0}, {0, 2}}
	idx, err := Build(chunksN(4), vectors)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.Len() != 4 || idx.Dimension() != 2 {
		t.Fatalf("Len=%d Dimension=%d", idx.Len(), idx.Dimension())
	}

	hits, err := idx.Search(domain.Vector{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	wantPos := []int{0, 2, 3}
	wantDist := []float64{0, 1, 2}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	for i, h := range hits {
		if h.Position != wantPos[i] || math.Abs(h.Distance-wantDist[i]) > 1e-12 {
			t.Errorf("hit %d = (pos %d, dist %v), want (%d, %v)", i, h.Position, h.Distance, wantPos[i], wantDist[i])
		}
		if h.Chunk.Index != h.Position {
			t.Errorf("hit %d carries chunk %d", i, h.Chunk.Index)
		}
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	idx, err := Build(chunksN(2), []domain.Vector{{1}, {2}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	hits, err := idx.Search(domain.Vector{0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestSearchTiesKeepEntryOrder(t *testing.T) {
	vectors := []domain.Vector{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	idx, err := Build(chunksN(4), vectors)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for run := 0; run < 5; run++ {
		hits, err := idx.Search(domain.Vector{0, 0}, 4)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		for i, h := range hits {
			if h.Position != i {
				t.Fatalf("run %d: hit %d has position %d", run, i, h.Position)
			}
		}
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []domain.Chunk
		vectors []domain.Vector
		want    error
	}{
		{"no chunks", nil, nil, domain.ErrEmptyIndex},
		{"count mismatch", chunksN(2), []domain.Vector{{1}}, domain.ErrDimensionMismatch},
		{"empty vector", chunksN(1), []domain.Vector{{}}, domain.ErrDimensionMismatch},
		{"non uniform", chunksN(2), []domain.Vector{{1, 2}, {1}}, domain.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.chunks, tt.vectors)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSearchErrors(t *testing.T) {
	idx, err := Build(chunksN(1), []domain.Vector{{1, 1}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := idx.Search(domain.Vector{1, 1}, 0); !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("k=0 error = %v", err)
	}
	if _, err := idx.Search(domain.Vector{1}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("short query error = %v", err)
	}
	var empty Index
	if _, err := empty.Search(domain.Vector{1}, 1); !errors.Is(err, domain.ErrEmptyIndex) {
		t.Errorf("empty index error = %v", err)
	}
}

func TestBuildCopiesInput(t *testing.T) {
	chunks := chunksN(1)
	vectors := []domain.Vector{{1, 2}}
	idx, err := Build(chunks, vectors)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	vectors[0][0] = 99
	chunks[0].Text = "changed"

	if got := idx.Vector(0); got[0] != 1 {
		t.Errorf("index vector changed with caller slice: %v", got)
	}
	if got := idx.Chunks()[0].Text; got != "a" {
		t.Errorf("index chunk changed with caller slice: %q", got)
	}
}

func TestConcurrentSearch(t *testing.T) {
	vectors := make([]domain.Vector, 50)
	for i := range vectors {
		vectors[i] = domain.Vector{float64(i), float64(i % 7)}
	}
	idx, err := Build(chunksN(50), vectors)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want, _ := idx.Search(domain.Vector{10, 3}, 5)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := idx.Search(domain.Vector{10, 3}, 5)
			if err != nil {
				t.Errorf("Search() error = %v", err)
				return
			}
			for i := range got {
				if got[i].Position != want[i].Position {
					t.Errorf("concurrent result differs at %d", i)
				}
			}
		}()
	}
	wg.Wait()
}

func TestNormalize(t *testing.T) {
	v := domain.Vector{3, 4}
	Normalize(v)
	if math.Abs(v[0]-0.6) > 1e-12 || math.Abs(v[1]-0.8) > 1e-12 {
		t.Errorf("Normalize() = %v", v)
	}
	zero := domain.Vector{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
