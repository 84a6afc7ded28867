// Package snapshot persists built indexes so queries can run without
// re-embedding the corpus.
package snapshot

import (
	"context"
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Instinct7439/Athena-V2/internal/config"
	"github.com/Instinct7439/Athena-V2/internal/domain"
	"github.com/Instinct7439/Athena-V2/internal/embedding"
	"github.com/Instinct7439/Athena-V2/internal/service"
	"github.com/Instinct7439/Athena-V2/internal/vectorstore"
)

// FormatVersion is bumped whenever the stored layout changes.
const FormatVersion = 1

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is a self-contained copy of a corpus.
type Snapshot struct {
	Version       int
	Embedder      string
	Dimension     int
	CreatedAt     time.Time
	Documents     []service.DocumentStats
	EmbedderState []byte
	Chunks        []domain.Chunk
	Vectors       []domain.Vector
}

// header is the metadata stored next to the entries.
type header struct {
	Version       int                     `json:"version"`
	Embedder      string                  `json:"embedder"`
	Dimension     int                     `json:"dimension"`
	Count         int                     `json:"count"`
	CreatedAt     time.Time               `json:"created_at"`
	Documents     []service.DocumentStats `json:"documents"`
	EmbedderState []byte                  `json:"embedder_state,omitempty"`
}

func (s *Snapshot) header() header {
	return header{
		Version:       s.Version,
		Embedder:      s.Embedder,
		Dimension:     s.Dimension,
		Count:         len(s.Chunks),
		CreatedAt:     s.CreatedAt,
		Documents:     s.Documents,
		EmbedderState: s.EmbedderState,
	}
}

func fromHeader(h header) *Snapshot {
	return &Snapshot{
		Version:       h.Version,
		Embedder:      h.Embedder,
		Dimension:     h.Dimension,
		CreatedAt:     h.CreatedAt,
		Documents:     h.Documents,
		EmbedderState: h.EmbedderState,
		Chunks:        make([]domain.Chunk, 0, h.Count),
		Vectors:       make([]domain.Vector, 0, h.Count),
	}
}

// Store saves and loads a single snapshot, replacing any previous one.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Close() error
}

// Open selects the backend named in cfg.
func Open(cfg config.SnapshotConfig) (Store, error) {
	switch cfg.Backend {
	case "", "bolt":
		return OpenBolt(cfg.Path)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", cfg.Backend)
	}
}

// Capture copies a corpus into a snapshot, including any embedder state needed
// to embed queries in the same vector space.
func Capture(c *service.Corpus) (*Snapshot, error) {
	if c == nil || c.Index.Len() == 0 {
		return nil, domain.NewError(domain.KindEmptyIndex, "snapshot", "corpus has no entries")
	}
	s := &Snapshot{
		Version:   FormatVersion,
		Embedder:  c.Embedder.Name(),
		Dimension: c.Index.Dimension(),
		CreatedAt: c.BuiltAt,
		Documents: c.Documents,
		Chunks:    c.Index.Chunks(),
		Vectors:   make([]domain.Vector, c.Index.Len()),
	}
	for i := range s.Vectors {
		s.Vectors[i] = c.Index.Vector(i)
	}
	if m, ok := c.Embedder.(encoding.BinaryMarshaler); ok {
		state, err := m.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("capture embedder state: %w", err)
		}
		s.EmbedderState = state
	}
	return s, nil
}

func (s *Snapshot) validate() error {
	if s.Version != FormatVersion {
		return fmt.Errorf("snapshot format version %d, want %d", s.Version, FormatVersion)
	}
	if len(s.Chunks) != len(s.Vectors) {
		return fmt.Errorf("snapshot has %d chunks but %d vectors", len(s.Chunks), len(s.Vectors))
	}
	return nil
}

// Restore rebuilds the index from a snapshot.
func Restore(s *Snapshot) (*vectorstore.Index, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	return vectorstore.Build(s.Chunks, s.Vectors)
}

// RestoreCorpus rebuilds the index and the embedder it was built with.
func RestoreCorpus(s *Snapshot, cfg config.EmbedderConfig) (*service.Corpus, error) {
	idx, err := Restore(s)
	if err != nil {
		return nil, err
	}
	e, err := embedding.Restore(cfg, s.Embedder, s.EmbedderState)
	if err != nil {
		return nil, fmt.Errorf("restore embedder: %w", err)
	}
	if d := e.Dimension(); d != 0 && d != idx.Dimension() {
		return nil, domain.NewError(domain.KindDimensionMismatch, "restore", "embedder produces %d dimensions, index has %d", d, idx.Dimension())
	}
	c := service.NewCorpus(idx, e, s.Documents)
	c.BuiltAt = s.CreatedAt
	return c, nil
}

func encodeVector(v domain.Vector) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(b []byte) (domain.Vector, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes, not a multiple of 8", len(b))
	}
	v := make(domain.Vector, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
