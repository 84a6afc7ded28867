package vectorstore

import (
	"sort"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

// Hit is a raw nearest-neighbour match.
type Hit struct {
	Chunk    domain.Chunk
	Position int
	Distance float64
}

// Index is an immutable brute-force L2 index. A built Index is never
// modified, so Search is safe for concurrent use without locking.
type Index struct {
	dimension int
	chunks    []domain.Chunk
	vectors   []domain.Vector
}

// Build copies chunks and vectors into a new Index. Entry i pairs chunks[i]
// with vectors[i].
func Build(chunks []domain.Chunk, vectors []domain.Vector) (*Index, error) {
	if len(chunks) == 0 {
		return nil, domain.NewError(domain.KindEmptyIndex, "build", "no chunks to index")
	}
	if len(chunks) != len(vectors) {
		return nil, domain.NewError(domain.KindDimensionMismatch, "build", "%d chunks but %d vectors", len(chunks), len(vectors))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, domain.NewError(domain.KindDimensionMismatch, "build", "vector 0 is empty")
	}

	idx := &Index{
		dimension: dim,
		chunks:    make([]domain.Chunk, len(chunks)),
		vectors:   make([]domain.Vector, len(vectors)),
	}
	copy(idx.chunks, chunks)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, domain.NewError(domain.KindDimensionMismatch, "build", "vector %d has dimension %d, want %d", i, len(v), dim)
		}
		idx.vectors[i] = append(domain.Vector(nil), v...)
	}
	return idx, nil
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.chunks)
}

func (idx *Index) Dimension() int {
	if idx == nil {
		return 0
	}
	return idx.dimension
}

// Chunks returns a copy of the indexed chunks in entry order.
func (idx *Index) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, idx.Len())
	if idx != nil {
		copy(out, idx.chunks)
	}
	return out
}

// Vector returns a copy of the i-th vector.
func (idx *Index) Vector(i int) domain.Vector {
	return append(domain.Vector(nil), idx.vectors[i]...)
}

// Search returns the min(k, Len()) entries nearest to query by L2 distance,
// ascending. Equal distances keep entry order.
func (idx *Index) Search(query domain.Vector, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, domain.NewError(domain.KindInvalidParams, "search", "k must be positive, got %d", k)
	}
	if idx.Len() == 0 {
		return nil, domain.NewError(domain.KindEmptyIndex, "search", "index has no entries")
	}
	if len(query) != idx.dimension {
		return nil, domain.NewError(domain.KindDimensionMismatch, "search", "query has dimension %d, want %d", len(query), idx.dimension)
	}

	hits := make([]Hit, len(idx.vectors))
	for i, v := range idx.vectors {
		hits[i] = Hit{Position: i, Distance: EuclideanDistance(v, query)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if k > len(hits) {
		k = len(hits)
	}
	hits = hits[:k]
	for i := range hits {
		hits[i].Chunk = idx.chunks[hits[i].Position]
	}
	return hits, nil
}
