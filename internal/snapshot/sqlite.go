package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Instinct7439/Athena-V2/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	position     INTEGER PRIMARY KEY,
	document_id  TEXT NOT NULL,
	chunk_id     TEXT NOT NULL,
	chunk_index  INTEGER NOT NULL,
	offset_runes INTEGER NOT NULL,
	length       INTEGER NOT NULL,
	overlap      INTEGER NOT NULL,
	text         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vectors (
	position INTEGER PRIMARY KEY,
	data     BLOB NOT NULL
);`

// SQLiteStore keeps a snapshot in a SQLite database through the pure-Go
// modernc driver.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite snapshot %s: %w", path, err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) (err error) {
	if err := snap.validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"meta", "chunks", "vectors"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(position, document_id, chunk_id, chunk_index, offset_runes, length, overlap, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	vecStmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (position, data) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i, c := range snap.Chunks {
		if _, err = chunkStmt.ExecContext(ctx, i, c.DocumentID, c.ChunkID, c.Index, c.Offset, c.Length, c.Overlap, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
		if _, err = vecStmt.ExecContext(ctx, i, encodeVector(snap.Vectors[i])); err != nil {
			return fmt.Errorf("insert vector %d: %w", i, err)
		}
	}

	data, err := json.Marshal(snap.header())
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('header', ?)`, data); err != nil {
		return err
	}
	return tx.Commit()
}

// Load returns ErrNoSnapshot when the database holds no snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'header'`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode snapshot header: %w", err)
	}
	snap := fromHeader(h)

	rows, err := s.db.QueryContext(ctx, `SELECT document_id, chunk_id, chunk_index, offset_runes, length, overlap, text
		FROM chunks ORDER BY position`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.DocumentID, &c.ChunkID, &c.Index, &c.Offset, &c.Length, &c.Overlap, &c.Text); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Chunks = append(snap.Chunks, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT data FROM vectors ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		snap.Vectors = append(snap.Vectors, v)
	}
	return snap, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
