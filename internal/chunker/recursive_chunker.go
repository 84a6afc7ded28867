package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

const (
	DefaultChunkSize = 500
	DefaultOverlap   = 100
)

// DefaultSeparators are tried coarsest first. The empty separator cuts fixed
// rune windows and guarantees every piece fits.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits text on the coarsest separator that yields pieces
// within budget and merges the pieces into overlapping chunks.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewRecursiveChunker validates the sizes. A nil separator list selects
// DefaultSeparators.
func NewRecursiveChunker(chunkSize, overlap int, separators []string) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, domain.NewError(domain.KindInvalidParams, "chunk", "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, domain.NewError(domain.KindInvalidParams, "chunk", "overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	seps := make([]string, len(separators))
	copy(seps, separators)
	return &RecursiveChunker{chunkSize: chunkSize, overlap: overlap, separators: seps}, nil
}

// Split chunks text with the default separators.
func Split(text string, chunkSize, overlap int) ([]domain.Chunk, error) {
	c, err := NewRecursiveChunker(chunkSize, overlap, nil)
	if err != nil {
		return nil, err
	}
	return c.Chunk(domain.Document{Content: text})
}

func (c *RecursiveChunker) ChunkSize() int { return c.chunkSize }
func (c *RecursiveChunker) Overlap() int   { return c.overlap }

// Chunk splits the document content. Concatenating the first chunk's Text
// with every later chunk's Content() reproduces the input exactly.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	if strings.TrimSpace(document.Content) == "" {
		return nil, domain.NewError(domain.KindEmptyInput, "chunk", "document %q has no text", document.Source)
	}

	segments := c.merge(c.split(document.Content, c.separators, c.chunkSize-c.overlap))

	chunks := make([]domain.Chunk, 0, len(segments))
	offset := 0
	var prev []rune
	for idx, seg := range segments {
		segRunes := []rune(seg)
		carry := 0
		if idx > 0 {
			carry = min(c.overlap, len(prev))
		}
		text := string(prev[len(prev)-carry:]) + seg
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    chunkID(document.ID, idx),
			Text:       text,
			Index:      idx,
			Offset:     offset - carry,
			Length:     carry + len(segRunes),
			Overlap:    carry,
		})
		offset += len(segRunes)
		prev = segRunes
	}
	return chunks, nil
}

func chunkID(docID string, idx int) string {
	if docID == "" {
		return strconv.Itoa(idx)
	}
	return docID + ":" + strconv.Itoa(idx)
}

// split returns pieces whose concatenation is text. A piece only exceeds
// budget when no separator is left to divide it.
func (c *RecursiveChunker) split(text string, seps []string, budget int) []string {
	if utf8.RuneCountInString(text) <= budget {
		return []string{text}
	}
	if len(seps) == 0 {
		return []string{text}
	}

	sep := seps[0]
	if sep == "" {
		return windows(text, budget)
	}
	if !strings.Contains(text, sep) {
		return c.split(text, seps[1:], budget)
	}

	var pieces []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= budget {
			pieces = append(pieces, part)
			continue
		}
		pieces = append(pieces, c.split(part, seps[1:], budget)...)
	}
	return pieces
}

func windows(text string, size int) []string {
	r := []rune(text)
	out := make([]string, 0, len(r)/size+1)
	for start := 0; start < len(r); start += size {
		end := min(start+size, len(r))
		out = append(out, string(r[start:end]))
	}
	return out
}

// merge packs consecutive pieces greedily. The first segment fills up to
// chunkSize; each later segment leaves room for the carry it will receive
// from its predecessor, so no chunk exceeds chunkSize once the overlap is
// prepended.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var segments []string
	var cur strings.Builder
	curLen, limit := 0, c.chunkSize
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+n > limit {
			segments = append(segments, cur.String())
			limit = c.chunkSize - min(c.overlap, curLen)
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(p)
		curLen += n
	}
	if curLen > 0 {
		segments = append(segments, cur.String())
	}
	return segments
}
