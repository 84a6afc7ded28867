package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

var (
	bucketMeta    = []byte("meta")
	bucketChunks  = []byte("chunks")
	bucketVectors = []byte("vectors")
	keyHeader     = []byte("header")
)

// BoltStore keeps a snapshot in a bbolt file, one key per entry position.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt snapshot %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func positionKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

// Save replaces the stored snapshot in one transaction.
func (s *BoltStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketChunks, bucketVectors} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		chunks, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		vectors, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}

		for i := range snap.Chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := json.Marshal(snap.Chunks[i])
			if err != nil {
				return err
			}
			if err := chunks.Put(positionKey(i), data); err != nil {
				return err
			}
			if err := vectors.Put(positionKey(i), encodeVector(snap.Vectors[i])); err != nil {
				return err
			}
		}

		data, err := json.Marshal(snap.header())
		if err != nil {
			return err
		}
		return meta.Put(keyHeader, data)
	})
}

// Load returns ErrNoSnapshot when the file holds no snapshot.
func (s *BoltStore) Load(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil || meta.Get(keyHeader) == nil {
			return ErrNoSnapshot
		}
		var h header
		if err := json.Unmarshal(meta.Get(keyHeader), &h); err != nil {
			return fmt.Errorf("decode snapshot header: %w", err)
		}
		snap = fromHeader(h)

		chunks, vectors := tx.Bucket(bucketChunks), tx.Bucket(bucketVectors)
		if chunks == nil || vectors == nil {
			return fmt.Errorf("snapshot is missing its entry buckets")
		}
		if err := chunks.ForEach(func(_, v []byte) error {
			var c domain.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			snap.Chunks = append(snap.Chunks, c)
			return nil
		}); err != nil {
			return fmt.Errorf("decode chunks: %w", err)
		}
		return vectors.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vec, err := decodeVector(v)
			if err != nil {
				return err
			}
			snap.Vectors = append(snap.Vectors, vec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
