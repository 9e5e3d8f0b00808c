package catalog

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ErrNotFound is returned when a run is not in the catalogue.
var ErrNotFound = errors.New("run not found")

// Reader reads runs from a catalogue database.
type Reader struct {
	db *sql.DB
}

// OpenReader opens a catalogue database for reading.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain runs table")
	}

	return &Reader{
		db: db,
	}, nil
}

const entryColumns = `name, kind, color_map, path, seed, octaves, fall_off, width, height, min, max, degenerate, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner, extra ...any) (Entry, error) {
	var (
		e          Entry
		path       sql.NullString
		degenerate int
		createdAt  int64
	)
	dest := []any{
		&e.Name, &e.Kind, &e.ColorMap, &path,
		&e.Seed, &e.Octaves, &e.FallOff,
		&e.Width, &e.Height,
		&e.Min, &e.Max, &degenerate, &createdAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return Entry{}, err
	}
	e.Path = path.String
	e.Degenerate = degenerate != 0
	e.CreatedAt = time.UnixMilli(createdAt)
	return e, nil
}

// Get reads a run including its field JSON and image bytes.
func (r *Reader) Get(name string) (Entry, error) {
	var fieldData, imageData []byte
	row := r.db.QueryRow("SELECT "+entryColumns+", field_json, image FROM runs WHERE name=?", name)

	e, err := scanEntry(row, &fieldData, &imageData)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to query run: %w", err)
	}

	if e.FieldJSON, err = gzipDecompress(fieldData); err != nil {
		return Entry{}, fmt.Errorf("failed to decompress field: %w", err)
	}
	if len(imageData) > 0 {
		if e.Image, err = gzipDecompress(imageData); err != nil {
			return Entry{}, fmt.Errorf("failed to decompress image: %w", err)
		}
	}

	return e, nil
}

// List returns all runs ordered by creation time, without blobs.
func (r *Reader) List() ([]Entry, error) {
	rows, err := r.db.Query("SELECT " + entryColumns + " FROM runs ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return entries, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}

	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// gzipDecompress decompresses gzip data.
func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
