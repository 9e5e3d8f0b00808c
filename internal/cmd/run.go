package cmd

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"runtime"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
	"github.com/MeKo-Tech/terrasine/internal/render"
	"github.com/MeKo-Tech/terrasine/internal/terrain"
	"github.com/MeKo-Tech/terrasine/internal/worker"
	"github.com/spf13/viper"
)

// runOptions holds the settings shared by every command that renders.
type runOptions struct {
	outputDir     string
	catalogPath   string
	heightmapDir  string
	compression   png.CompressionLevel
	blur          float32
	upscale       int
	workers       int
	progress      bool
	allowFailures bool
}

func loadRunOptions() (runOptions, error) {
	compression, err := render.ParseCompression(viper.GetString("png_compression"))
	if err != nil {
		return runOptions{}, err
	}

	upscale := viper.GetInt("upscale")
	if upscale < 1 {
		return runOptions{}, fmt.Errorf("invalid upscale %d: must be >= 1", upscale)
	}
	blur := float32(viper.GetFloat64("blur"))
	if blur < 0 {
		return runOptions{}, fmt.Errorf("invalid blur %.2f: must be >= 0", blur)
	}

	workers := viper.GetInt("workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return runOptions{
		outputDir:     viper.GetString("output-dir"),
		catalogPath:   viper.GetString("catalog"),
		heightmapDir:  viper.GetString("heightmaps"),
		compression:   compression,
		upscale:       upscale,
		blur:          blur,
		workers:       workers,
		allowFailures: viper.GetBool("allow_failures"),
	}, nil
}

// renderJobs runs every job, records them when a catalogue is configured and
// reports failures. A failed job never stops the others.
func renderJobs(ctx context.Context, opts runOptions, jobs []terrain.Job) error {
	runner := &terrain.Runner{
		Sink: &render.PNGSink{
			Dir:         opts.outputDir,
			Compression: opts.compression,
			Upscale:     opts.upscale,
			BlurSigma:   opts.blur,
		},
		Logger:       logger,
		HeightmapDir: opts.heightmapDir,
	}
	// A single job gets the row-parallel sampler instead of the job pool.
	if len(jobs) == 1 {
		runner.SampleWorkers = opts.workers
	}

	var recorder *catalog.Writer
	if opts.catalogPath != "" {
		w, err := catalog.New(opts.catalogPath, catalog.Metadata{
			Name:        "terrasine",
			Description: "Summed-sine terrain renders",
			Version:     "1.0",
			Generator:   "terrasine",
			Runs:        len(jobs),
		})
		if err != nil {
			return fmt.Errorf("failed to open catalogue: %w", err)
		}
		recorder = w
		runner.Recorder = w
		logger.Info("Recording runs", "catalog", opts.catalogPath)
	}

	results := runWithPool(ctx, runner, jobs, opts)

	// Runs below the batch size only reach the database here, so a close
	// error means runs were lost. --allow-failures does not cover it.
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			return fmt.Errorf("failed to write catalogue %s: %w", opts.catalogPath, err)
		}
	}

	var failedCount int
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		failedCount++
		var renderErr *render.RenderError
		if errors.As(res.Err, &renderErr) {
			logger.Error("Image could not be written", "job", res.Job.Name, "output", renderErr.Output, "error", renderErr.Err)
		} else {
			logger.Error("Render failed", "job", res.Job.Name, "error", res.Err)
		}
	}

	if failedCount > 0 {
		if opts.allowFailures {
			logger.Warn("Some images failed to render, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d of %d images failed to render", failedCount, len(jobs))
	}
	return nil
}

func runWithPool(ctx context.Context, runner *terrain.Runner, jobs []terrain.Job, opts runOptions) []terrain.Result {
	if opts.workers <= 1 || len(jobs) == 1 {
		return runner.RunAll(ctx, jobs)
	}

	tasks := make([]worker.Task, 0, len(jobs))
	for _, job := range jobs {
		tasks = append(tasks, worker.Task{Job: job})
	}

	progress := worker.NewProgress(len(tasks), opts.progress)
	pool := worker.New(worker.Config{
		Workers:    opts.workers,
		Generator:  runner,
		OnProgress: progress.Callback(),
	})

	poolResults := pool.Run(ctx, tasks)
	progress.Done()
	logger.Info(progress.Summary())

	results := make([]terrain.Result, len(poolResults))
	for i, r := range poolResults {
		results[i] = r.Render
		results[i].Job = r.Task.Job
		results[i].Err = r.Err
	}
	return results
}

func clockSeed() int64 {
	return time.Now().UnixNano()
}
