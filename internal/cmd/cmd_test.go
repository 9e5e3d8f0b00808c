package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
	"github.com/MeKo-Tech/terrasine/internal/terrain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantWidth  int
		wantHeight int
		wantErr    bool
	}{
		{name: "square", input: "200x200", wantWidth: 200, wantHeight: 200},
		{name: "wide", input: "512x256", wantWidth: 512, wantHeight: 256},
		{name: "upper case and spaces", input: " 64 X 32 ", wantWidth: 64, wantHeight: 32},
		{name: "single cell", input: "1x1", wantWidth: 1, wantHeight: 1},
		{name: "missing height", input: "200", wantErr: true},
		{name: "too many parts", input: "2x2x2", wantErr: true},
		{name: "zero width", input: "0x10", wantErr: true},
		{name: "negative height", input: "10x-1", wantErr: true},
		{name: "not a number", input: "ax10", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := parseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, w)
			assert.Equal(t, tt.wantHeight, h)
		})
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantX   float64
		wantY   float64
		wantErr bool
	}{
		{name: "origin", input: "0,0"},
		{name: "negative with spaces", input: "-0.5, 0.25", wantX: -0.5, wantY: 0.25},
		{name: "one value", input: "0.5", wantErr: true},
		{name: "three values", input: "1,2,3", wantErr: true},
		{name: "invalid number", input: "x,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, err := parsePoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func testOptions(t *testing.T) runOptions {
	t.Helper()
	if logger == nil {
		initLogging()
	}
	return runOptions{
		outputDir:   t.TempDir(),
		compression: png.BestSpeed,
		upscale:     1,
		workers:     2,
	}
}

func smallJobs() []terrain.Job {
	jobs := terrain.ReferenceJobs(11)
	for i := range jobs {
		jobs[i].Width = 20
		jobs[i].Height = 20
		if jobs[i].Kind == terrain.KindFractal {
			jobs[i].Octaves = 16
		}
	}
	return jobs
}

func TestRenderJobsWritesEveryImage(t *testing.T) {
	opts := testOptions(t)
	opts.catalogPath = filepath.Join(t.TempDir(), "runs.db")

	jobs := smallJobs()
	require.NoError(t, renderJobs(context.Background(), opts, jobs))

	for _, job := range jobs {
		_, err := os.Stat(filepath.Join(opts.outputDir, job.Name))
		assert.NoError(t, err, job.Name)
	}

	reader, err := catalog.OpenReader(opts.catalogPath)
	require.NoError(t, err)
	defer reader.Close()

	entries, err := reader.List()
	require.NoError(t, err)
	assert.Len(t, entries, len(jobs))

	meta, err := reader.Metadata()
	require.NoError(t, err)
	assert.Equal(t, len(jobs), meta.Runs)
}

func TestRenderJobsReportsFailures(t *testing.T) {
	opts := testOptions(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	opts.outputDir = filepath.Join(blocker, "out")

	err := renderJobs(context.Background(), opts, smallJobs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 of 4 images failed")

	opts.allowFailures = true
	assert.NoError(t, renderJobs(context.Background(), opts, smallJobs()))
}

func TestRenderJobsFailsWhenCatalogueRejectsRuns(t *testing.T) {
	opts := testOptions(t)
	opts.catalogPath = filepath.Join(t.TempDir(), "runs.db")

	w, err := catalog.New(opts.catalogPath, catalog.Metadata{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", opts.catalogPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TRIGGER deny_runs BEFORE INSERT ON runs
		BEGIN SELECT RAISE(ABORT, 'denied'); END`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Every image is written; only the catalogue insert fails.
	opts.allowFailures = true
	err = renderJobs(context.Background(), opts, smallJobs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	for _, job := range smallJobs() {
		_, statErr := os.Stat(filepath.Join(opts.outputDir, job.Name))
		assert.NoError(t, statErr, job.Name)
	}
}

func TestRenderJobsSequential(t *testing.T) {
	opts := testOptions(t)
	opts.workers = 1

	jobs := smallJobs()
	require.NoError(t, renderJobs(context.Background(), opts, jobs))

	f, err := os.Open(filepath.Join(opts.outputDir, "test.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestInspectAndList(t *testing.T) {
	opts := testOptions(t)
	opts.catalogPath = filepath.Join(t.TempDir(), "runs.db")
	require.NoError(t, renderJobs(context.Background(), opts, smallJobs()))

	viper.Set("catalog", opts.catalogPath)
	t.Cleanup(func() { viper.Set("catalog", "") })

	var out bytes.Buffer
	listCmd.SetOut(&out)
	require.NoError(t, runList(listCmd, nil))
	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "terraina.png")
	assert.Contains(t, out.String(), "test.png")

	extracted := filepath.Join(t.TempDir(), "copy.png")
	require.NoError(t, inspectCmd.Flags().Set("eval", "0,0"))
	require.NoError(t, inspectCmd.Flags().Set("extract", extracted))

	out.Reset()
	inspectCmd.SetOut(&out)
	require.NoError(t, runInspect(inspectCmd, []string{"test.png"}))
	assert.Contains(t, out.String(), `"kind": "scaled"`)
	assert.Contains(t, out.String(), "f(0, 0) = 0\n")

	original, err := os.ReadFile(filepath.Join(opts.outputDir, "test.png"))
	require.NoError(t, err)
	copied, err := os.ReadFile(extracted)
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	assert.ErrorIs(t, runInspect(inspectCmd, []string{"missing.png"}), catalog.ErrNotFound)
}
