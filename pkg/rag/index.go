package rag

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrIndexClosed is returned by operations on a closed SQLiteIndex.
var ErrIndexClosed = errors.New("index is closed")

// SQLiteIndex persists VectorStore entries to SQLite.
type SQLiteIndex struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Index = (*SQLiteIndex)(nil)

// OpenSQLiteIndex opens or creates an index at path (":memory:" for tests).
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			metadata TEXT NOT NULL,
			embedding BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create chunks table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta table: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

// Put implements Index. Entries are written in one transaction.
func (x *SQLiteIndex) Put(ctx context.Context, entries []Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrIndexClosed
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (id, namespace, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		md, err := json.Marshal(e.Document.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Namespace, e.Document.PageContent, string(md), encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// All implements Index, returning entries in insertion order.
func (x *SQLiteIndex) All(ctx context.Context) ([]Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, ErrIndexClosed
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT id, namespace, content, metadata, embedding
		FROM chunks ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			md   string
			blob []byte
		)
		if err := rows.Scan(&e.ID, &e.Namespace, &e.Document.PageContent, &md, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &e.Document.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", e.ID, err)
		}
		if e.Vector, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored chunks.
func (x *SQLiteIndex) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return 0, ErrIndexClosed
	}
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Embedder returns the embedder name recorded by SetEmbedder, or "".
func (x *SQLiteIndex) Embedder(ctx context.Context) (string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return "", ErrIndexClosed
	}
	var name string
	err := x.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'embedder'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read embedder: %w", err)
	}
	return name, nil
}

// SetEmbedder records which embedder produced the stored vectors.
func (x *SQLiteIndex) SetEmbedder(ctx context.Context, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrIndexClosed
	}
	_, err := x.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('embedder', ?)`, name)
	if err != nil {
		return fmt.Errorf("write embedder: %w", err)
	}
	return nil
}

// Reset deletes every chunk and the recorded embedder.
func (x *SQLiteIndex) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrIndexClosed
	}
	if _, err := x.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := x.db.ExecContext(ctx, `DELETE FROM meta`); err != nil {
		return fmt.Errorf("delete meta: %w", err)
	}
	return nil
}

// Close closes the database. Further calls return ErrIndexClosed.
func (x *SQLiteIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return x.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
