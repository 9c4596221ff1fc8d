// Package worker provides a parallel worker pool that evaluates noise
// generators, one task per named field.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/noisemix/internal/noise"
)

// Task represents a single field generation task.
type Task struct {
	Tag       noise.Tag
	Generator noise.Generator
	X         float32
	Y         float32
	Width     int
	Height    int
}

// Result represents the outcome of a field generation task.
type Result struct {
	Task    Task
	Values  []float32
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers int
	// FailFast stops handing out tasks after the first failure. Tasks not yet
	// started report the cancellation error.
	FailFast   bool
	OnProgress ProgressFunc
}

// Pool manages parallel field generation.
type Pool struct {
	workers    int
	failFast   bool
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		failFast:   cfg.FailFast,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns one result per task, in completion order.
// The function blocks until all tasks complete or the context is cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	workers := min(p.workers, len(tasks))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// The channel is buffered for every task, so feeding never blocks.
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		completed, failed := 0, 0
		for result := range resultCh {
			results = append(results, result)

			completed++
			if result.Err != nil {
				failed++
				if p.failFast {
					cancel()
				}
			}

			if p.onProgress != nil {
				p.onProgress(completed, len(tasks), failed)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)

	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{
				Task: task,
				Err:  ctx.Err(),
			}
			continue
		default:
		}

		start := time.Now()
		values, err := task.Generator.Field(task.X, task.Y, task.Width, task.Height)
		elapsed := time.Since(start)

		results <- Result{
			Task:    task,
			Values:  values,
			Err:     err,
			Elapsed: elapsed,
		}
	}
}
