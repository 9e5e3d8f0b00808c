package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(name string) Entry {
	return Entry{
		Name:      name,
		Kind:      "fractal",
		ColorMap:  "terracolor",
		Path:      "/tmp/" + name,
		FieldJSON: []byte(`{"kind":"sum"}`),
		Image:     []byte("fake png data"),
		Seed:      1337,
		Octaves:   200,
		FallOff:   0.98,
		Min:       -4.5,
		Max:       3.25,
		Width:     200,
		Height:    200,
	}
}

func TestWriter_New(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	w, err := New(dbPath, Metadata{Name: "Test", Version: "1.0", Runs: 4})
	require.NoError(t, err)
	defer w.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	var count int
	require.NoError(t, w.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, w.db.QueryRow("SELECT COUNT(*) FROM metadata").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestWriterReaderRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	w, err := New(dbPath, Metadata{Name: "terrasine", Description: "reference runs", Generator: "terrasine", Runs: 2})
	require.NoError(t, err)

	created := time.UnixMilli(1_700_000_000_000)
	first := testEntry("terraina.png")
	first.CreatedAt = created
	second := testEntry("test.png")
	second.Kind = "plain"
	second.ColorMap = "grayscale"
	second.Degenerate = true
	second.Image = nil
	second.CreatedAt = created.Add(time.Second)

	require.NoError(t, w.Record(first))
	require.NoError(t, w.Record(second))
	require.NoError(t, w.Close())

	r, err := OpenReader(dbPath)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Get("terraina.png")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = r.Get("test.png")
	require.NoError(t, err)
	assert.True(t, got.Degenerate)
	assert.Empty(t, got.Image)
	assert.Equal(t, "grayscale", got.ColorMap)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "terraina.png", list[0].Name)
	assert.Equal(t, "test.png", list[1].Name)
	assert.Nil(t, list[0].FieldJSON, "list must not load blobs")

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, Metadata{Name: "terrasine", Description: "reference runs", Generator: "terrasine", Runs: 2}, meta)
}

func TestReaderNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	w, err := New(dbPath, Metadata{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := OpenReader(dbPath)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Get("missing.png")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWriter_BatchFlush(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	w, err := New(dbPath, Metadata{Name: "Test"})
	require.NoError(t, err)

	for i := 0; i < DefaultBatchSize*2+3; i++ {
		require.NoError(t, w.Record(testEntry(fmt.Sprintf("run%03d.png", i))))
	}

	// The first two batches are flushed automatically.
	var count int
	require.NoError(t, w.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, DefaultBatchSize*2, count)

	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
	assert.Equal(t, DefaultBatchSize*2+3, count)
}

func TestWriter_ReplaceExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	w, err := New(dbPath, Metadata{Name: "Test"})
	require.NoError(t, err)
	defer w.Close()

	e := testEntry("terrainb.png")
	require.NoError(t, w.Record(e))
	require.NoError(t, w.Flush())

	e.Seed = 42
	require.NoError(t, w.Record(e))
	require.NoError(t, w.Flush())

	var count int
	var seed int64
	require.NoError(t, w.db.QueryRow("SELECT COUNT(*), MAX(seed) FROM runs").Scan(&count, &seed))
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(42), seed)
}

func TestWriter_RecordRequiresName(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "runs.db"), Metadata{})
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.Record(Entry{}))
}

func TestWriter_StampsCreatedAt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	w, err := New(dbPath, Metadata{})
	require.NoError(t, err)

	stamp := time.UnixMilli(1_650_000_000_123)
	w.now = func() time.Time { return stamp }
	require.NoError(t, w.Record(testEntry("a.png")))
	require.NoError(t, w.Close())

	r, err := OpenReader(dbPath)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Get("a.png")
	require.NoError(t, err)
	assert.True(t, stamp.Equal(got.CreatedAt))
}

func TestOpenReader_RejectsForeignDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE tiles (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenReader(dbPath)
	assert.Error(t, err)
}

func TestMetadataToMapSkipsEmpty(t *testing.T) {
	assert.Empty(t, Metadata{}.ToMap())
	assert.Equal(t, map[string]string{"name": "x", "runs": "3"}, Metadata{Name: "x", Runs: 3}.ToMap())
}

// denyInserts makes every insert into runs fail with "denied".
func denyInserts(t *testing.T, w *Writer) {
	t.Helper()
	_, err := w.db.Exec(`CREATE TRIGGER deny_runs BEFORE INSERT ON runs
		BEGIN SELECT RAISE(ABORT, 'denied'); END`)
	require.NoError(t, err)
}

func TestWriter_CloseReportsBufferedInsertFailure(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "runs.db"), Metadata{})
	require.NoError(t, err)
	denyInserts(t, w)

	// Below DefaultBatchSize, so nothing reaches the database before Close.
	require.NoError(t, w.Record(testEntry("a.png")))

	err = w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}
