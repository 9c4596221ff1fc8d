package compose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/field"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp yields the column index of each sample, shifted by xOffset.
type ramp struct{}

func (ramp) Field(xOffset, _ float32, width, height int) ([]float32, error) {
	out := make([]float32, 0, width*height)
	for range height {
		for col := range width {
			out = append(out, xOffset+float32(col))
		}
	}
	return out, nil
}

type failing struct{ err error }

func (f failing) Field(float32, float32, int, int) ([]float32, error) { return nil, f.err }

// short returns one sample too few.
type short struct{}

func (short) Field(_, _ float32, width, height int) ([]float32, error) {
	return make([]float32, max(width*height-1, 0)), nil
}

type counting struct{ calls *atomic.Int32 }

func (c counting) Field(_, _ float32, width, height int) ([]float32, error) {
	c.calls.Add(1)
	return make([]float32, width*height), nil
}

func mustDict(t *testing.T, entries ...noise.Entry) *noise.Dictionary {
	t.Helper()
	d, err := noise.NewDictionary(entries...)
	require.NoError(t, err)
	return d
}

func mustConfig(t *testing.T, dict *noise.Dictionary, e expr.Expr) *Config {
	t.Helper()
	cfg, err := New(dict, e)
	require.NoError(t, err)
	return cfg
}

func generate(t *testing.T, cfg *Config, region Region) *Result {
	t.Helper()
	engine, err := NewEngine(cfg, Options{Workers: 4})
	require.NoError(t, err)
	res, err := engine.Generate(context.Background(), region)
	require.NoError(t, err)
	return res
}

func TestGenerateConstantFieldIsDegenerate(t *testing.T) {
	// A * C + B over constants is 2*5+3 = 13 everywhere.
	dict := mustDict(t,
		noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 2}},
		noise.Entry{Tag: "B", Generator: &noise.Uniform{Val: 3}},
		noise.Entry{Tag: "C", Generator: &noise.Uniform{Val: 5}},
	)
	cfg := mustConfig(t, dict, expr.Apply(&expr.Add{
		LHS: expr.Apply(&expr.Mult{LHS: expr.Noise("A"), RHS: expr.Noise("C")}),
		RHS: expr.Noise("B"),
	}))

	for _, size := range [][2]int{{1, 1}, {7, 3}, {64, 64}} {
		t.Run(fmt.Sprintf("%dx%d", size[0], size[1]), func(t *testing.T) {
			res := generate(t, cfg, Region{Width: size[0], Height: size[1]})
			require.Len(t, res.Values, size[0]*size[1])
			assert.True(t, res.Degenerate())
			assert.Equal(t, field.Range{Min: 13, Max: 13}, res.Raw)
			for i, v := range res.Values {
				require.Zero(t, v, "index %d", i)
			}
		})
	}
}

func TestGenerateNormalizesToUnitRange(t *testing.T) {
	dict := mustDict(t,
		noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 0}},
		noise.Entry{Tag: "B", Generator: &noise.Uniform{Val: 10}},
		noise.Entry{Tag: "R", Generator: ramp{}},
	)
	// (A + B) * R ranges over 10*[3, 10).
	cfg := mustConfig(t, dict, expr.Apply(&expr.Mult{
		LHS: expr.Apply(&expr.Add{LHS: expr.Noise("A"), RHS: expr.Noise("B")}),
		RHS: expr.Noise("R"),
	}))

	const width, height = 7, 3
	res := generate(t, cfg, Region{X: 3, Width: width, Height: height})

	require.Len(t, res.Values, width*height)
	assert.False(t, res.Degenerate())
	assert.Equal(t, field.Range{Min: 30, Max: 90}, res.Raw)

	for y := range height {
		assert.Equal(t, float32(0), res.At(0, y))
		assert.Equal(t, float32(1), res.At(width-1, y))
		for x := range width {
			raw := 10 * float32(3+x)
			assert.Equal(t, (raw-30)/(90-30), res.At(x, y))
		}
	}
}

func TestGenerateWideRangeStaysFinite(t *testing.T) {
	dict := mustDict(t,
		noise.Entry{Tag: "P", Generator: &noise.Gradient{Freq: 0.05, Seed: 7}},
		noise.Entry{Tag: "H", Generator: &noise.Uniform{Val: 3e38}},
	)
	// P * H - (H - P * H) spans [-H, H], wider than MaxFloat32.
	ph := expr.Apply(&expr.Mult{LHS: expr.Noise("P"), RHS: expr.Noise("H")})
	cfg := mustConfig(t, dict, expr.Apply(&expr.Sub{
		LHS: ph,
		RHS: expr.Apply(&expr.Sub{LHS: expr.Noise("H"), RHS: ph}),
	}))

	res := generate(t, cfg, Region{Width: 16, Height: 16})

	assert.Equal(t, field.Range{Min: -3e38, Max: 3e38}, res.Raw)
	for i, v := range res.Values {
		require.False(t, math.IsNaN(float64(v)), "index %d", i)
	}
	assert.Equal(t, field.Range{Min: 0, Max: 1}, field.Bounds(res.Values))
}

func TestGenerateRejectsOverflowedField(t *testing.T) {
	dict := mustDict(t, noise.Entry{Tag: "H", Generator: &noise.Uniform{Val: 3e38}})
	cfg := mustConfig(t, dict, expr.Apply(&expr.Add{LHS: expr.Noise("H"), RHS: expr.Noise("H")}))

	engine, err := NewEngine(cfg, Options{Workers: 1})
	require.NoError(t, err)
	_, err = engine.Generate(context.Background(), Region{Width: 4, Height: 4})

	var nonFinite *field.NonFiniteError
	require.ErrorAs(t, err, &nonFinite)
	assert.Equal(t, 0, nonFinite.Index)
}

func TestGenerateLengthForEveryGenerator(t *testing.T) {
	dict := mustDict(t,
		noise.Entry{Tag: "gradient", Generator: &noise.Gradient{Freq: 0.01}},
		noise.Entry{Tag: "fbm", Generator: &noise.FBM{Freq: 0.02, Octaves: 3, Lacunarity: 1.2}},
		noise.Entry{Tag: "turb", Generator: &noise.Turbulence{Freq: 0.05, Octaves: 4, Lacunarity: 2}},
		noise.Entry{Tag: "simplex", Generator: &noise.Simplex{Freq: 0.03}},
		noise.Entry{Tag: "cell", Generator: &noise.Cellular{Freq: 0.1}},
		noise.Entry{Tag: "flat", Generator: &noise.Uniform{Val: 5}},
	)
	e, err := expr.ParseFormula("mean(gradient, fbm, turb) * simplex + max(cell, flat)", expr.Default())
	require.NoError(t, err)
	cfg := mustConfig(t, dict, e)

	for _, region := range []Region{{Width: 1, Height: 1}, {X: 10, Y: -4, Width: 33, Height: 17}, {Width: 0, Height: 5}} {
		res := generate(t, cfg, region)
		assert.Len(t, res.Values, region.Len())
		for _, v := range res.Values {
			require.True(t, v >= 0 && v <= 1, "value %v outside [0, 1]", v)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg, err := Decode([]byte(originalSample))
	require.NoError(t, err)

	region := Region{X: 120, Y: 80, Width: 40, Height: 30}
	first := generate(t, cfg, region)
	second := generate(t, cfg, region)
	assert.Equal(t, first.Values, second.Values)
}

func TestNewRejectsMissingTag(t *testing.T) {
	dict := mustDict(t, noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 5}})

	_, err := New(dict, expr.Noise("B"))

	var unresolved *expr.UnresolvedTagError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, noise.Tag("B"), unresolved.Tag)
}

func TestGenerateRejectsMissingTagInUncheckedConfig(t *testing.T) {
	// Built without New, so the tree was never checked against the dictionary.
	cfg := &Config{
		Dictionary: mustDict(t, noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 5}}),
		Expression: expr.Noise("B"),
	}

	_, err := Generate(context.Background(), cfg, 0, 0, 4, 4)

	var unresolved *expr.UnresolvedTagError
	require.True(t, errors.As(err, &unresolved))
}

func TestNewRejectsIncompleteInput(t *testing.T) {
	dict := mustDict(t, noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 5}})

	_, err := New(nil, expr.Noise("A"))
	assert.Error(t, err)
	_, err = New(dict, nil)
	assert.Error(t, err)
	_, err = New(dict, expr.Apply(&expr.Add{LHS: expr.Noise("A")}))
	assert.Error(t, err)

	_, err = NewEngine(nil, Options{})
	assert.Error(t, err)
}

func TestGeneratorFailureAbortsGeneration(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	entries := []noise.Entry{{Tag: "bad", Generator: failing{err: boom}}}
	for i := range 20 {
		entries = append(entries, noise.Entry{Tag: noise.Tag(fmt.Sprintf("ok%d", i)), Generator: counting{calls: &calls}})
	}
	cfg := mustConfig(t, mustDict(t, entries...), expr.Apply(&expr.Add{LHS: expr.Noise("bad"), RHS: expr.Noise("ok0")}))

	_, err := Generate(context.Background(), cfg, 0, 0, 8, 8)

	var genErr *noise.GeneratorError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, noise.Tag("bad"), genErr.Tag)
	assert.ErrorIs(t, err, boom)
}

func TestGeneratorErrorNamesRegisteredKind(t *testing.T) {
	cfg := mustConfig(t,
		mustDict(t, noise.Entry{Tag: "A", Generator: &noise.Gradient{}}),
		expr.Noise("A"))

	_, err := Generate(context.Background(), cfg, 0, 0, 2, 2)

	var genErr *noise.GeneratorError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, noise.KindGradient, genErr.Kind)
	assert.ErrorIs(t, err, noise.ErrInvalidParameter)
}

func TestGeneratorShapeMismatch(t *testing.T) {
	cfg := mustConfig(t,
		mustDict(t, noise.Entry{Tag: "S", Generator: short{}}, noise.Entry{Tag: "R", Generator: ramp{}}),
		expr.Apply(&expr.Add{LHS: expr.Noise("S"), RHS: expr.Noise("R")}))

	_, err := Generate(context.Background(), cfg, 0, 0, 5, 5)

	var shapeErr *field.ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 25, shapeErr.Want)
	assert.Equal(t, 24, shapeErr.Got)

	var genErr *noise.GeneratorError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, noise.Tag("S"), genErr.Tag)
}

func TestGenerateCancelled(t *testing.T) {
	cfg := mustConfig(t,
		mustDict(t, noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 1}}),
		expr.Noise("A"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, cfg, 0, 0, 4, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateRejectsNegativeRegion(t *testing.T) {
	cfg := mustConfig(t,
		mustDict(t, noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 1}}),
		expr.Noise("A"))

	_, err := Generate(context.Background(), cfg, 0, 0, -1, 4)
	assert.ErrorIs(t, err, noise.ErrInvalidParameter)
}

func TestGenerateEmptyRegion(t *testing.T) {
	cfg := mustConfig(t,
		mustDict(t, noise.Entry{Tag: "R", Generator: ramp{}}),
		expr.Noise("R"))

	res := generate(t, cfg, Region{Width: 0, Height: 0})
	assert.Empty(t, res.Values)
	assert.True(t, res.Degenerate())
}

func TestGenerateDoesNotMutateSharedLeaf(t *testing.T) {
	// A leaf returned unchanged is a view of the base field; normalizing it
	// must not leak into later calls.
	cfg := mustConfig(t,
		mustDict(t, noise.Entry{Tag: "R", Generator: ramp{}}),
		expr.Noise("R"))

	first := generate(t, cfg, Region{Width: 4, Height: 1})
	second := generate(t, cfg, Region{Width: 4, Height: 1})
	assert.Equal(t, []float32{0, 1.0 / 3, 2.0 / 3, 1}, first.Values)
	assert.Equal(t, first.Values, second.Values)
}

func TestProgressCallback(t *testing.T) {
	var calls atomic.Int32
	cfg := mustConfig(t,
		mustDict(t,
			noise.Entry{Tag: "A", Generator: &noise.Uniform{Val: 1}},
			noise.Entry{Tag: "B", Generator: &noise.Uniform{Val: 2}},
		),
		expr.Noise("A"))
	engine, err := NewEngine(cfg, Options{OnProgress: func(completed, total, failed int) {
		calls.Add(1)
		assert.Equal(t, 2, total)
		assert.Zero(t, failed)
	}})
	require.NoError(t, err)

	_, err = engine.Generate(context.Background(), Region{Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []noise.Tag{"B"}, cfg.Unused())
}
