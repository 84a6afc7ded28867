// Package service wires normalization, chunking, embedding and the vector
// index into the build and query operations.
package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/observer"
	"github.com/Instinct7439/Athena-V2/internal/scoring"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore"
)

// BuildIndex embeds every chunk and builds an immutable index. Any provider
// failure aborts the build; no partial index is returned.
func BuildIndex(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, opts ...Option) (*vectorstore.Index, error) {
	o := newOptions(opts)
	start := time.Now()

	idx, batches, err := buildIndex(ctx, chunks, embedder, o)
	fields := map[string]any{"chunks": len(chunks), "batches": batches, "embedder": embedder.Name()}
	if err != nil {
		o.emit(observer.ActionBuildIndex, start, fields, err)
		o.log.Error("index build failed", logger.Count(len(chunks)), logger.Error(err))
		return nil, err
	}
	fields["dimension"] = idx.Dimension()
	o.emit(observer.ActionBuildIndex, start, fields, nil)
	o.log.Info("index built", logger.Count(idx.Len()), logger.F("dimension", idx.Dimension()), logger.Duration(time.Since(start)))
	return idx, nil
}

func buildIndex(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, o options) (*vectorstore.Index, int, error) {
	if len(chunks) == 0 {
		return nil, 0, domain.NewError(domain.KindEmptyIndex, "build", "no chunks to index")
	}

	vectors := make([]domain.Vector, 0, len(chunks))
	batches := 0
	for begin := 0; begin < len(chunks); begin += o.batchSize {
		end := min(begin+o.batchSize, len(chunks))
		texts := make([]string, end-begin)
		for i, c := range chunks[begin:end] {
			texts[i] = c.Text
		}

		batchStart := time.Now()
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err == nil {
			err = checkBatch(vecs, len(texts), begin)
		} else {
			err = domain.WrapError(domain.KindEmbeddingFailure, "build", err, "batch %d (chunks %d-%d)", batches, begin, end-1)
		}
		o.emit(observer.ActionEmbedBatch, batchStart, map[string]any{"batch": batches, "size": len(texts)}, err)
		batches++
		if err != nil {
			return nil, batches, err
		}
		vectors = append(vectors, vecs...)
	}

	idx, err := vectorstore.Build(chunks, vectors)
	return idx, batches, err
}

func checkBatch(vecs []domain.Vector, want, offset int) error {
	if len(vecs) != want {
		return domain.NewError(domain.KindEmbeddingFailure, "build", "provider returned %d vectors for %d chunks", len(vecs), want)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return domain.NewError(domain.KindEmbeddingFailure, "build", "provider returned an empty vector for chunk %d", offset+i)
		}
		if j := nonFinite(v); j >= 0 {
			return domain.NewError(domain.KindEmbeddingFailure, "build", "provider returned %v at component %d for chunk %d", v[j], j, offset+i)
		}
	}
	return nil
}

// nonFinite returns the index of the first NaN or infinite component, or -1.
func nonFinite(v domain.Vector) int {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i
		}
	}
	return -1
}

// checkQuery rejects provider output that cannot be compared against idx.
// The index was built from the same provider, so a mismatch is a provider
// fault rather than a caller error.
func checkQuery(vec domain.Vector, dim int) error {
	if len(vec) != dim {
		return domain.NewError(domain.KindEmbeddingFailure, "search", "provider returned a %d-dimensional query vector, index has %d", len(vec), dim)
	}
	if j := nonFinite(vec); j >= 0 {
		return domain.NewError(domain.KindEmbeddingFailure, "search", "provider returned %v at query component %d", vec[j], j)
	}
	return nil
}

// Search embeds query and returns up to k results ordered by similarity.
// A blank query yields an empty result rather than an error.
func Search(ctx context.Context, idx *vectorstore.Index, query string, embedder domain.Embedder, k int, opts ...Option) ([]domain.SearchResult, error) {
	o := newOptions(opts)
	return search(ctx, idx, query, embedder, k, o)
}

func search(ctx context.Context, idx *vectorstore.Index, query string, embedder domain.Embedder, k int, o options) ([]domain.SearchResult, error) {
	start := time.Now()
	if k <= 0 {
		return nil, domain.NewError(domain.KindInvalidParams, "search", "k must be positive, got %d", k)
	}
	if idx.Len() == 0 {
		return nil, domain.NewError(domain.KindEmptyIndex, "search", "index has no entries")
	}
	if strings.TrimSpace(query) == "" {
		o.log.Warn("empty query, returning no results")
		o.emit(observer.ActionQueryEmpty, start, map[string]any{"k": k}, nil)
		return []domain.SearchResult{}, nil
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		err = domain.WrapError(domain.KindEmbeddingFailure, "search", err, "embed query")
	} else {
		err = checkQuery(vec, idx.Dimension())
	}
	if err != nil {
		o.emit(observer.ActionSearch, start, map[string]any{"k": k}, err)
		return nil, err
	}
	hits, err := idx.Search(vec, k)
	if err != nil {
		o.emit(observer.ActionSearch, start, map[string]any{"k": k}, err)
		return nil, err
	}
	results := scoring.Rank(hits)

	fields := map[string]any{"k": k, "hits": len(results)}
	if len(hits) > 0 {
		fields["min_distance"] = hits[0].Distance
		fields["max_distance"] = hits[len(hits)-1].Distance
	}
	o.emit(observer.ActionSearch, start, fields, nil)
	o.log.Debug("search complete", logger.F("k", k), logger.Count(len(results)))
	return results, nil
}

// SearchWithThreshold runs Search and drops results scoring below minSimilarity.
func SearchWithThreshold(ctx context.Context, idx *vectorstore.Index, query string, embedder domain.Embedder, k int, minSimilarity float64, opts ...Option) ([]domain.SearchResult, error) {
	o := newOptions(opts)
	return searchWithThreshold(ctx, idx, query, embedder, k, minSimilarity, o)
}

func searchWithThreshold(ctx context.Context, idx *vectorstore.Index, query string, embedder domain.Embedder, k int, minSimilarity float64, o options) ([]domain.SearchResult, error) {
	if _, err := scoring.FilterByThreshold(nil, minSimilarity); err != nil {
		return nil, err
	}
	results, err := search(ctx, idx, query, embedder, k, o)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	filtered, err := scoring.FilterByThreshold(results, minSimilarity)
	if err != nil {
		return nil, err
	}
	o.emit(observer.ActionThresholdFilter, start, map[string]any{
		"min_similarity": minSimilarity,
		"before":         len(results),
		"after":          len(filtered),
	}, nil)
	return filtered, nil
}
