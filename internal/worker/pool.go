// Package worker runs terrain jobs on a bounded pool of goroutines.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/terrain"
)

// Generator renders a single job. *terrain.Runner satisfies it.
type Generator interface {
	Generate(ctx context.Context, job terrain.Job) (terrain.Result, error)
}

// Task represents a single render task.
type Task struct {
	Job terrain.Job
}

// Result represents the outcome of a render task.
type Result struct {
	Task    Task
	Render  terrain.Result
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes with that task's result
// and the number of tasks finished so far.
type ProgressFunc func(res Result, completed, total int)

// Config configures the worker pool.
type Config struct {
	Generator  Generator
	OnProgress ProgressFunc
	Workers    int
}

// Pool manages parallel rendering.
type Pool struct {
	generator  Generator
	onProgress ProgressFunc
	workers    int
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

type indexedTask struct {
	task  Task
	index int
}

// Run executes all tasks and returns one result per task, in task order.
// A failing task does not stop the others. Tasks not started before the
// context is cancelled report ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan indexedTask, len(tasks))
	for i, task := range tasks {
		taskCh <- indexedTask{task: task, index: i}
	}
	close(taskCh)

	results := make([]Result, len(tasks))

	var (
		completed int
		mu        sync.Mutex
	)
	report := func(res Result) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		// Called under the lock so callbacks observe a monotonic count.
		if p.onProgress != nil {
			p.onProgress(res, completed, len(tasks))
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range taskCh {
				res := p.execute(ctx, it.task)
				// Each index is written by exactly one worker.
				results[it.index] = res
				report(res)
			}
		}()
	}
	wg.Wait()

	return results
}

func (p *Pool) execute(ctx context.Context, task Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{Task: task, Err: err}
	}

	start := time.Now()
	render, err := p.generator.Generate(ctx, task.Job)
	return Result{
		Task:    task,
		Render:  render,
		Err:     err,
		Elapsed: time.Since(start),
	}
}
