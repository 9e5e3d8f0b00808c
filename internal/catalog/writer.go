package catalog

import (
	"bytes"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of runs to buffer before flushing to the database.
	DefaultBatchSize = 16
)

// Writer records runs into a catalogue database.
type Writer struct {
	db        *sql.DB
	batch     []Entry
	batchSize int
	mu        sync.Mutex
	now       func() time.Time
}

// New creates a catalogue writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		batch:     make([]Entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}, nil
}

// createSchema creates the catalogue schema.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS runs (
			name TEXT NOT NULL PRIMARY KEY,
			kind TEXT NOT NULL,
			color_map TEXT NOT NULL,
			path TEXT,
			seed INTEGER NOT NULL,
			octaves INTEGER NOT NULL,
			fall_off REAL NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			min REAL NOT NULL,
			max REAL NOT NULL,
			degenerate INTEGER NOT NULL,
			field_json BLOB NOT NULL,
			image BLOB,
			created_at INTEGER NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// insertMetadata replaces the metadata table contents.
func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

// Record adds a run to the batch. When the batch is full, it is automatically flushed.
// Field JSON and image bytes are gzip-compressed before storage.
func (w *Writer) Record(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("entry name is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = w.now()
	}
	w.batch = append(w.batch, e)

	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// Flush writes any buffered runs to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered runs to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO runs
		(name, kind, color_map, path, seed, octaves, fall_off, width, height, min, max, degenerate, field_json, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		fieldData, err := gzipCompress(e.FieldJSON)
		if err != nil {
			return fmt.Errorf("failed to compress field of %s: %w", e.Name, err)
		}
		var imageData []byte
		if len(e.Image) > 0 {
			imageData, err = gzipCompress(e.Image)
			if err != nil {
				return fmt.Errorf("failed to compress image of %s: %w", e.Name, err)
			}
		}

		degenerate := 0
		if e.Degenerate {
			degenerate = 1
		}

		if _, err := stmt.Exec(
			e.Name, e.Kind, e.ColorMap, e.Path,
			e.Seed, e.Octaves, e.FallOff,
			e.Width, e.Height,
			e.Min, e.Max, degenerate,
			fieldData, imageData,
			e.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to insert run %s: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining runs and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// gzipCompress compresses data with gzip.
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}

	if err := gw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
