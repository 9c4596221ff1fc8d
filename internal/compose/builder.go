package compose

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/noisemix/internal/field"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/MeKo-Tech/noisemix/internal/worker"
)

// buildBaseFields generates every dictionary entry over region on the worker
// pool. Either every field is returned or none is.
func (e *Engine) buildBaseFields(ctx context.Context, region Region) (map[noise.Tag][]float32, error) {
	dict := e.cfg.Dictionary
	tasks := make([]worker.Task, 0, dict.Len())
	for tag, g := range dict.All() {
		tasks = append(tasks, worker.Task{
			Tag:       tag,
			Generator: g,
			X:         region.X,
			Y:         region.Y,
			Width:     region.Width,
			Height:    region.Height,
		})
	}

	pool := worker.New(worker.Config{
		Workers:    e.workers,
		FailFast:   true,
		OnProgress: e.onProgress,
	})
	results := pool.Run(ctx, tasks)

	base := make(map[noise.Tag][]float32, len(results))
	var firstErr error
	for _, r := range results {
		err := r.Err
		if err == nil {
			err = field.CheckLen(string(r.Task.Tag), r.Values, region.Len())
		}
		if err != nil {
			// Tasks skipped after the first failure only report the
			// cancellation; keep the error that caused it.
			if firstErr == nil || (isCancellation(firstErr) && !isCancellation(err)) {
				firstErr = e.generatorError(r.Task, err)
			}
			continue
		}
		e.log().Debug("Generated base field", "tag", string(r.Task.Tag), "elapsed", r.Elapsed)
		base[r.Task.Tag] = r.Values
	}
	if firstErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, firstErr
	}
	return base, nil
}

func (e *Engine) generatorError(task worker.Task, err error) error {
	kind, _ := e.generators.KindOf(task.Generator)
	return &noise.GeneratorError{Tag: task.Tag, Kind: kind, Err: err}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
