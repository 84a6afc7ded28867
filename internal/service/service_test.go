package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Instinct7439/Athena-V2/internal/chunker"
	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/observer"
)

// fakeEmbedder maps known texts to fixed vectors and everything else to far.
type fakeEmbedder struct {
	vectors map[string]domain.Vector
	far     domain.Vector
	// failOnBatch makes the n-th EmbedBatch call (1-based) return err.
	failOnBatch int
	err         error
	// mangle rewrites a successful batch before it is returned.
	mangle  func([]domain.Vector) []domain.Vector
	batches atomic.Int32
	embeds  atomic.Int32
}

func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return len(f.far) }

func (f *fakeEmbedder) vector(text string) domain.Vector {
	if v, ok := f.vectors[text]; ok {
		return append(domain.Vector(nil), v...)
	}
	return append(domain.Vector(nil), f.far...)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	f.embeds.Add(1)
	if f.err != nil && f.failOnBatch == 0 {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	n := int(f.batches.Add(1))
	if f.err != nil && (f.failOnBatch == 0 || f.failOnBatch == n) {
		return nil, f.err
	}
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	if f.mangle != nil {
		out = f.mangle(out)
	}
	return out, nil
}

// threeChunkFixture builds the 1200-rune, three-chunk corpus where the query
// sits at distance 0.25 from the third chunk.
func threeChunkFixture(t *testing.T) ([]domain.Chunk, *fakeEmbedder) {
	t.Helper()
	chunks, err := chunker.Split(strings.Repeat("hello ", 200), 500, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("fixture has %d chunks, want 3", len(chunks))
	}
	emb := &fakeEmbedder{
		vectors: map[string]domain.Vector{
			chunks[0].Text: {1, 0},
			chunks[1].Text: {0, 2},
			chunks[2].Text: {0.25, 0},
			"needle":       {0, 0},
		},
		far: domain.Vector{10, 10},
	}
	return chunks, emb
}

func TestBuildAndSearchEndToEnd(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	ctx := context.Background()

	idx, err := BuildIndex(ctx, chunks, emb)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if idx.Len() != 3 || idx.Dimension() != 2 {
		t.Fatalf("Len=%d Dimension=%d", idx.Len(), idx.Dimension())
	}

	results, err := Search(ctx, idx, "needle", emb, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Chunk.Index != 2 {
		t.Errorf("top result is chunk %d, want 2", results[0].Chunk.Index)
	}
	if math.Abs(results[0].Score-0.8) > 1e-9 {
		t.Errorf("Score = %v, want 0.8", results[0].Score)
	}

	all, err := Search(ctx, idx, "needle", emb, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d results, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Score > all[i-1].Score {
			t.Errorf("results not ordered by score: %v > %v", all[i].Score, all[i-1].Score)
		}
	}
}

func TestSearchWithThreshold(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	ctx := context.Background()
	idx, err := BuildIndex(ctx, chunks, emb)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	unfiltered, _ := Search(ctx, idx, "needle", emb, 3)
	for _, threshold := range []float64{0, 0.3, 0.5, 0.6, 1} {
		got, err := SearchWithThreshold(ctx, idx, "needle", emb, 3, threshold)
		if err != nil {
			t.Fatalf("SearchWithThreshold(%v) error = %v", threshold, err)
		}
		want := 0
		for _, r := range unfiltered {
			if r.Score >= threshold {
				want++
			}
		}
		if len(got) != want {
			t.Errorf("threshold %v: got %d results, want %d", threshold, len(got), want)
		}
		for _, r := range got {
			if r.Score < threshold {
				t.Errorf("threshold %v: result with score %v kept", threshold, r.Score)
			}
		}
	}

	got, _ := SearchWithThreshold(ctx, idx, "needle", emb, 3, 0.6)
	if len(got) != 1 || got[0].Chunk.Index != 2 {
		t.Errorf("threshold 0.6 should keep only chunk 2, got %+v", got)
	}

	for _, bad := range []float64{-0.5, 2, math.NaN()} {
		if _, err := SearchWithThreshold(ctx, idx, "needle", emb, 3, bad); !errors.Is(err, domain.ErrInvalidParams) {
			t.Errorf("threshold %v error = %v, want invalid params", bad, err)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	ctx := context.Background()
	idx, err := BuildIndex(ctx, chunks, emb)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	var rec observer.Recorder
	var buf bytes.Buffer
	log := logger.New("test", false)
	log.SetOutput(&buf)

	results, err := Search(ctx, idx, "   ", emb, 5, WithObserver(&rec), WithLogger(log))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("results = %v, want empty slice", results)
	}
	if emb.embeds.Load() != 0 {
		t.Errorf("embedder called for empty query")
	}
	if rec.Count(observer.ActionQueryEmpty) != 1 {
		t.Errorf("actions = %v, want one query_empty", rec.Actions())
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}

func TestSearchInvalidParams(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	idx, _ := BuildIndex(context.Background(), chunks, emb)

	if _, err := Search(context.Background(), idx, "needle", emb, 0); !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("k=0 error = %v", err)
	}
	if _, err := Search(context.Background(), nil, "needle", emb, 1); !errors.Is(err, domain.ErrEmptyIndex) {
		t.Errorf("nil index error = %v", err)
	}
}

func TestBuildIndexEmbeddingFailure(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	emb.failOnBatch = 2
	emb.err = errors.New("provider unavailable")

	var rec observer.Recorder
	idx, err := BuildIndex(context.Background(), chunks, emb, WithBatchSize(1), WithObserver(&rec))
	if idx != nil {
		t.Errorf("expected no partial index")
	}
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("error = %v, want embedding failure", err)
	}
	if domain.IsTimeout(err) {
		t.Errorf("plain provider error reported as timeout")
	}
	if got := emb.batches.Load(); got != 2 {
		t.Errorf("provider called %d times, want 2", got)
	}
	if rec.Count(observer.ActionEmbedBatch) != 2 {
		t.Errorf("actions = %v", rec.Actions())
	}
	events := rec.Events()
	if last := events[len(events)-1]; last.Action != observer.ActionBuildIndex || last.Err == nil {
		t.Errorf("last event = %+v, want failed build_index", last)
	}
}

func TestSearchEmbeddingTimeout(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	idx, err := BuildIndex(context.Background(), chunks, emb)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}

	emb.err = fmt.Errorf("openai embeddings: %w", context.DeadlineExceeded)
	_, err = Search(context.Background(), idx, "needle", emb, 3)
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("error = %v, want embedding failure", err)
	}
	if !domain.IsTimeout(err) {
		t.Errorf("expected timeout to be distinguishable: %v", err)
	}
}

func TestBuildIndexValidatesProviderOutput(t *testing.T) {
	tests := []struct {
		name   string
		mangle func([]domain.Vector) []domain.Vector
		want   error
	}{
		{"missing vector", func(v []domain.Vector) []domain.Vector { return v[:len(v)-1] }, domain.ErrEmbeddingFailure},
		{"empty vector", func(v []domain.Vector) []domain.Vector { v[0] = domain.Vector{}; return v }, domain.ErrEmbeddingFailure},
		{"non uniform", func(v []domain.Vector) []domain.Vector { v[1] = domain.Vector{1, 2, 3}; return v }, domain.ErrDimensionMismatch},
		{"nan component", func(v []domain.Vector) []domain.Vector { v[0] = domain.Vector{math.NaN(), 0}; return v }, domain.ErrEmbeddingFailure},
		{"infinite component", func(v []domain.Vector) []domain.Vector { v[2] = domain.Vector{0, math.Inf(-1)}; return v }, domain.ErrEmbeddingFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, emb := threeChunkFixture(t)
			emb.mangle = tt.mangle
			_, err := BuildIndex(context.Background(), chunks, emb)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	_, emb := threeChunkFixture(t)
	if _, err := BuildIndex(context.Background(), nil, emb); !errors.Is(err, domain.ErrEmptyIndex) {
		t.Errorf("empty chunks error = %v", err)
	}
}

func TestSearchValidatesQueryVector(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	ctx := context.Background()
	idx, err := BuildIndex(ctx, chunks, emb)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	emb.vectors["wide"] = domain.Vector{1, 2, 3}
	emb.vectors["nan"] = domain.Vector{math.NaN(), 0}
	emb.vectors["inf"] = domain.Vector{math.Inf(1), 0}

	for _, query := range []string{"wide", "nan", "inf"} {
		t.Run(query, func(t *testing.T) {
			var rec observer.Recorder
			_, err := Search(ctx, idx, query, emb, 3, WithObserver(&rec))
			if !errors.Is(err, domain.ErrEmbeddingFailure) {
				t.Fatalf("error = %v, want embedding failure", err)
			}
			if errors.Is(err, domain.ErrDimensionMismatch) {
				t.Errorf("error = %v, should not surface as a dimension mismatch", err)
			}
			events := rec.Events()
			if len(events) != 1 || events[0].Err == nil {
				t.Errorf("events = %+v, want one failed search event", events)
			}
		})
	}
}

func TestBuildIndexBatches(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	var rec observer.Recorder
	if _, err := BuildIndex(context.Background(), chunks, emb, WithBatchSize(2), WithObserver(&rec)); err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	if got := emb.batches.Load(); got != 2 {
		t.Errorf("batches = %d, want 2", got)
	}
	want := "embed_batch,embed_batch,build_index"
	if got := strings.Join(rec.Actions(), ","); got != want {
		t.Errorf("actions = %q, want %q", got, want)
	}
}

func TestSearchDeterministicAndConcurrent(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	idx, err := BuildIndex(context.Background(), chunks, emb)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	want, _ := Search(context.Background(), idx, "needle", emb, 3)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Search(context.Background(), idx, "needle", emb, 3)
			if err != nil {
				t.Errorf("Search() error = %v", err)
				return
			}
			for j := range want {
				if got[j].Chunk.ChunkID != want[j].Chunk.ChunkID || got[j].Score != want[j].Score {
					t.Errorf("result %d differs between runs", j)
				}
			}
		}()
	}
	wg.Wait()
}

func TestSearchEventReportsDistanceRange(t *testing.T) {
	chunks, emb := threeChunkFixture(t)
	idx, _ := BuildIndex(context.Background(), chunks, emb)

	var rec observer.Recorder
	if _, err := Search(context.Background(), idx, "needle", emb, 3, WithObserver(&rec)); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	ev := rec.Events()[0]
	if ev.Action != observer.ActionSearch {
		t.Fatalf("action = %s", ev.Action)
	}
	if ev.Fields["min_distance"] != 0.25 || ev.Fields["max_distance"] != 2.0 {
		t.Errorf("fields = %v", ev.Fields)
	}
}
