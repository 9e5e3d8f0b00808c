package terrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
	"github.com/MeKo-Tech/terrasine/internal/field"
	"github.com/MeKo-Tech/terrasine/internal/grid"
	"github.com/MeKo-Tech/terrasine/internal/palette"
	"github.com/MeKo-Tech/terrasine/internal/render"
)

// Recorder stores a finished run. *catalog.Writer satisfies it.
type Recorder interface {
	Record(catalog.Entry) error
}

// Result is the outcome of one job.
type Result struct {
	Field         field.Field
	Err           error
	Path          string
	HeightmapPath string
	Job           Job
	Stats         grid.Stats
	Elapsed       time.Duration
}

// Runner executes jobs end to end: field, sample, normalize, color map, sink.
type Runner struct {
	Sink     render.Sink
	Recorder Recorder
	Logger   *slog.Logger
	// HeightmapDir, when set, also receives a float EXR of every normalized grid.
	HeightmapDir string
	// SampleWorkers is passed to grid.Options.Workers.
	SampleWorkers int
}

// Run renders a single job. Sink failures are returned as *render.RenderError.
func (r *Runner) Run(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	res := Result{Job: job}

	if r.Sink == nil {
		return res, errors.New("runner has no sink")
	}

	f, err := job.Field()
	if err != nil {
		return res, err
	}
	res.Field = f

	r.log().Debug("Built field", "job", job.Name, "kind", job.Kind, "octaves", field.Octaves(f), "seed", job.Seed)

	g, stats, err := grid.SampleAndNormalize(ctx, f, job.Width, job.Height, grid.Options{
		Logger:  r.log().With("job", job.Name),
		Workers: r.SampleWorkers,
	})
	if err != nil {
		return res, fmt.Errorf("job %s: failed to sample field: %w", job.Name, err)
	}
	res.Stats = stats
	if stats.Degenerate {
		r.log().Warn("Constant field; every cell normalized to 0", "job", job.Name, "value", stats.Min)
	}

	cm, err := palette.ByName(job.ColorMap)
	if err != nil {
		return res, err
	}
	img := palette.Apply(g, cm)

	path, err := r.Sink.Write(job.Name, job.Width, job.Height, render.ImagePixels(img))
	if err != nil {
		return res, err
	}
	res.Path = path

	if r.HeightmapDir != "" {
		hm := filepath.Join(r.HeightmapDir, heightmapName(job.Name))
		if err := render.WriteHeightmapEXR(hm, g); err != nil {
			return res, err
		}
		res.HeightmapPath = hm
	}

	if r.Recorder != nil {
		if err := r.record(res); err != nil {
			return res, fmt.Errorf("job %s: failed to record run: %w", job.Name, err)
		}
	}

	res.Elapsed = time.Since(start)
	r.log().Info("Rendered terrain",
		"job", job.Name,
		"path", path,
		"color_map", job.ColorMap,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// Generate adapts Run to the worker pool's Generator interface.
func (r *Runner) Generate(ctx context.Context, job Job) (Result, error) {
	return r.Run(ctx, job)
}

// RunAll renders jobs in order. Every job yields a Result; a failed job does
// not stop the ones after it. Cancellation marks the remaining jobs with ctx.Err().
func (r *Runner) RunAll(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Job: job, Err: err})
			continue
		}
		res, err := r.Run(ctx, job)
		if err != nil {
			r.log().Error("Render failed", "job", job.Name, "error", err)
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

func (r *Runner) record(res Result) error {
	fieldJSON, err := field.Marshal(res.Field)
	if err != nil {
		return err
	}

	imageData, err := os.ReadFile(res.Path)
	if err != nil {
		r.log().Warn("Recording run without image bytes", "job", res.Job.Name, "error", err)
		imageData = nil
	}

	return r.Recorder.Record(catalog.Entry{
		Name:       res.Job.Name,
		Kind:       string(res.Job.Kind),
		ColorMap:   res.Job.ColorMap,
		Path:       res.Path,
		FieldJSON:  fieldJSON,
		Image:      imageData,
		Seed:       res.Job.Seed,
		Octaves:    field.Octaves(res.Field),
		FallOff:    res.Job.FallOff,
		Min:        res.Stats.Min,
		Max:        res.Stats.Max,
		Width:      res.Job.Width,
		Height:     res.Job.Height,
		Degenerate: res.Stats.Degenerate,
	})
}

func heightmapName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".exr"
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
