package domain

import "context"

// Document represents a single piece of extracted text loaded into the system.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Chunk is a bounded segment of a normalized document used as the retrieval unit.
//
// Offset and Length are measured in runes. Overlap is the number of leading
// runes of Text that repeat the tail of the preceding chunk.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Offset     int
	Length     int
	Overlap    int
}

// Content returns the chunk text without the overlap carried over from the
// previous chunk.
func (c Chunk) Content() string {
	if c.Overlap <= 0 {
		return c.Text
	}
	r := []rune(c.Text)
	if c.Overlap >= len(r) {
		return ""
	}
	return string(r[c.Overlap:])
}

// Vector is a fixed-length embedding.
type Vector []float64

// SearchResult represents a matching chunk with a similarity score in (0, 1].
type SearchResult struct {
	Chunk    Chunk
	Score    float64
	Distance float64
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// CorpusFitter is implemented by embedders that need to see the corpus before
// embedding (TF-IDF). Fit returns a new fitted embedder and leaves the
// receiver untouched.
type CorpusFitter interface {
	Fit(ctx context.Context, corpus []string) (Embedder, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, text string, maxSentences int) (string, error)
}
