package compose

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/field"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/MeKo-Tech/noisemix/internal/worker"
)

// Options tune an Engine. The zero value is ready to use.
type Options struct {
	// Workers bounds concurrent generator calls; 0 means GOMAXPROCS.
	Workers int
	// Generators names generator kinds in errors; nil means noise.Default().
	Generators *noise.Registry
	Logger     *slog.Logger
	OnProgress worker.ProgressFunc
}

// Engine generates normalized fields from a composition. It holds no
// per-call state and may be used concurrently.
type Engine struct {
	cfg        *Config
	workers    int
	generators *noise.Registry
	logger     *slog.Logger
	onProgress worker.ProgressFunc
}

// NewEngine prepares an engine for cfg.
func NewEngine(cfg *Config, opts Options) (*Engine, error) {
	if cfg == nil || cfg.Dictionary == nil || cfg.Expression == nil {
		return nil, fmt.Errorf("engine needs a complete composition")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	generators := opts.Generators
	if generators == nil {
		generators = noise.Default()
	}
	return &Engine{
		cfg:        cfg,
		workers:    workers,
		generators: generators,
		logger:     opts.Logger,
		onProgress: opts.OnProgress,
	}, nil
}

// Result is a generated field.
type Result struct {
	// Values holds Width*Height samples in row-major order, scaled to [0, 1].
	Values []float32
	Width  int
	Height int
	// Raw is the range of the field before normalization.
	Raw field.Range
}

// Degenerate reports that the field was constant before normalization, in
// which case Values is all zeros.
func (r *Result) Degenerate() bool { return r.Raw.Degenerate() }

// At returns the sample at column x, row y.
func (r *Result) At(x, y int) float32 { return r.Values[y*r.Width+x] }

// Generate builds the base fields of region, evaluates the expression over
// them and normalizes the result. Any generator failure, unresolved tag or
// shape mismatch aborts the call.
func (e *Engine) Generate(ctx context.Context, region Region) (*Result, error) {
	if err := region.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.log().Debug("Building base fields",
		"fields", e.cfg.Dictionary.Len(),
		"width", region.Width,
		"height", region.Height,
		"workers", e.workers)

	base, err := e.buildBaseFields(ctx, region)
	if err != nil {
		return nil, err
	}

	v, err := expr.Evaluate(e.cfg.Expression, base)
	if err != nil {
		return nil, err
	}
	if err := field.CheckLen("expression", v.Data(), region.Len()); err != nil {
		return nil, err
	}

	if err := field.CheckFinite(v.Data()); err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}

	values := v.Take()
	raw := field.Normalize(values)

	e.log().Debug("Generated field",
		"min", raw.Min,
		"max", raw.Max,
		"degenerate", raw.Degenerate(),
		"elapsed", time.Since(start))

	return &Result{
		Values: values,
		Width:  region.Width,
		Height: region.Height,
		Raw:    raw,
	}, nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// Generate is a one-shot helper: it generates the region of cfg with default
// options and returns the normalized samples.
func Generate(ctx context.Context, cfg *Config, x, y float32, width, height int) ([]float32, error) {
	e, err := NewEngine(cfg, Options{})
	if err != nil {
		return nil, err
	}
	res, err := e.Generate(ctx, Region{X: x, Y: y, Width: width, Height: height})
	if err != nil {
		return nil, err
	}
	return res.Values, nil
}
