package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/Instinct7439/Athena-V2/internal/chunker"
	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/embedding"
	"github.com/Instinct7439/Athena-V2/internal/logger"
	"github.com/Instinct7439/Athena-V2/internal/normalizer"
	"github.com/Instinct7439/Athena-V2/internal/observer"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore"
)

// Size classes reported per ingested document.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

// ClassifySize buckets a document by its normalized rune count.
func ClassifySize(runes int) string {
	switch {
	case runes > 5000:
		return SizeLarge
	case runes > 1000:
		return SizeMedium
	default:
		return SizeSmall
	}
}

// DocumentStats summarises how one document went through ingestion.
type DocumentStats struct {
	ID       string
	Source   string
	Runes    int
	Chunks   int
	Size     string
	Reverted bool
	Skipped  bool
}

// Corpus is an immutable, searchable result of Ingest. Embedder is the
// (fitted) embedder the index was built with and must be used for queries.
type Corpus struct {
	Index     *vectorstore.Index
	Embedder  domain.Embedder
	Documents []DocumentStats
	BuiltAt   time.Time
}

// NewCorpus wraps an index restored from storage.
func NewCorpus(idx *vectorstore.Index, embedder domain.Embedder, docs []DocumentStats) *Corpus {
	return &Corpus{Index: idx, Embedder: embedder, Documents: docs, BuiltAt: time.Now()}
}

func (c *Corpus) Search(ctx context.Context, query string, k int, opts ...Option) ([]domain.SearchResult, error) {
	return Search(ctx, c.Index, query, c.Embedder, k, opts...)
}

func (c *Corpus) SearchWithThreshold(ctx context.Context, query string, k int, minSimilarity float64, opts ...Option) ([]domain.SearchResult, error) {
	return SearchWithThreshold(ctx, c.Index, query, c.Embedder, k, minSimilarity, opts...)
}

// Pipeline runs ingestion and queries with one set of collaborators and defaults.
type Pipeline struct {
	normalizer    *normalizer.Normalizer
	chunker       domain.Chunker
	embedder      domain.Embedder
	k             int
	minSimilarity float64
	opts          options
	rawOpts       []Option
}

// NewPipeline assembles a pipeline. search supplies the default k and threshold for Query.
func NewPipeline(n *normalizer.Normalizer, c domain.Chunker, e domain.Embedder, search config.SearchConfig, opts ...Option) *Pipeline {
	if n == nil {
		n = normalizer.New(normalizer.DefaultOptions())
	}
	o := newOptions(opts)
	return &Pipeline{
		normalizer:    n,
		chunker:       c,
		embedder:      e,
		k:             search.K,
		minSimilarity: search.MinSimilarity,
		opts:          o,
		rawOpts:       opts,
	}
}

// NewPipelineFromConfig builds every collaborator from cfg.
func NewPipelineFromConfig(cfg *config.AppConfig, opts ...Option) (*Pipeline, error) {
	n := normalizer.New(normalizer.Options{
		MaxPasses:            cfg.Normalizer.MaxPasses,
		MinRetainedRatio:     cfg.Normalizer.MinRetainedRatio,
		SplitCaseTransitions: cfg.Normalizer.SplitCaseTransitions,
	})
	c, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap, cfg.Chunker.Separators)
	if err != nil {
		return nil, err
	}
	e, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithBatchSize(cfg.Embedder.BatchSize)}, opts...)
	return NewPipeline(n, c, e, cfg.Search, opts...), nil
}

func (p *Pipeline) Embedder() domain.Embedder { return p.embedder }

// Options returns the options the pipeline was built with, for searches run
// directly against a Corpus.
func (p *Pipeline) Options() []Option { return p.rawOpts }

// Ingest normalizes, chunks and indexes docs. Documents with no text after
// normalization are skipped with a warning; ingest fails only when nothing is
// left to index.
func (p *Pipeline) Ingest(ctx context.Context, docs ...domain.Document) (*Corpus, error) {
	start := time.Now()
	var (
		chunks []domain.Chunk
		stats  = make([]DocumentStats, 0, len(docs))
	)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, docChunks, err := p.prepare(doc)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
		chunks = append(chunks, docChunks...)
	}

	embedder := p.embedder
	if fitter, ok := embedder.(domain.CorpusFitter); ok && len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		fitted, err := fitter.Fit(ctx, texts)
		if err != nil {
			return nil, domain.WrapError(domain.KindEmbeddingFailure, "ingest", err, "fit %s", embedder.Name())
		}
		embedder = fitted
	}

	idx, err := BuildIndex(ctx, chunks, embedder, p.rawOpts...)
	if err != nil {
		return nil, err
	}
	p.opts.log.Info("ingest complete", logger.F("documents", len(docs)), logger.Count(len(chunks)), logger.Duration(time.Since(start)))
	return &Corpus{Index: idx, Embedder: embedder, Documents: stats, BuiltAt: time.Now()}, nil
}

func (p *Pipeline) prepare(doc domain.Document) (DocumentStats, []domain.Chunk, error) {
	st := DocumentStats{ID: doc.ID, Source: doc.Source}

	start := time.Now()
	res := p.normalizer.Run(doc.Content)
	st.Runes = utf8.RuneCountInString(res.Text)
	st.Size = ClassifySize(st.Runes)
	st.Reverted = res.Reverted
	p.opts.emit(observer.ActionNormalize, start, map[string]any{
		"document":  doc.ID,
		"runes_in":  utf8.RuneCountInString(doc.Content),
		"runes_out": st.Runes,
		"passes":    res.Passes,
	}, nil)
	if res.Reverted {
		p.opts.emit(observer.ActionNormalizeReverted, start, map[string]any{"document": doc.ID}, nil)
		p.opts.log.Warn("normalization removed too much text, keeping original", logger.F("source", doc.Source))
	}

	start = time.Now()
	normalized := doc
	normalized.Content = res.Text
	chunks, err := p.chunker.Chunk(normalized)
	if errors.Is(err, domain.ErrEmptyInput) {
		st.Skipped = true
		p.opts.log.Warn("document has no text, skipping", logger.F("source", doc.Source))
		return st, nil, nil
	}
	p.opts.emit(observer.ActionChunk, start, map[string]any{"document": doc.ID, "chunks": len(chunks)}, err)
	if err != nil {
		return st, nil, err
	}
	st.Chunks = len(chunks)
	return st, chunks, nil
}

// Query searches corpus with the pipeline's configured k and min_similarity.
func (p *Pipeline) Query(ctx context.Context, corpus *Corpus, query string) ([]domain.SearchResult, error) {
	return searchWithThreshold(ctx, corpus.Index, query, corpus.Embedder, p.k, p.minSimilarity, p.opts)
}
