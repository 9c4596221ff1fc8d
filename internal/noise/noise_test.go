package noise

import (
	"errors"
	"math"
	"testing"

	"github.com/MeKo-Tech/noisemix/internal/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformFillsRegion(t *testing.T) {
	values, err := Uniform{Val: 5}.Field(3, -7, 4, 3)
	require.NoError(t, err)
	require.Len(t, values, 12)
	for i, v := range values {
		assert.Equal(t, float32(5), v, "index %d", i)
	}
}

func TestGeneratorsProduceScaledFields(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
	}{
		{name: "gradient", gen: Gradient{Freq: 0.07, Seed: 3}},
		{name: "fbm", gen: FBM{Freq: 0.05, Octaves: 3, Lacunarity: 2}},
		{name: "turbulence", gen: Turbulence{Freq: 0.05, Octaves: 4, Lacunarity: 1.8, Gain: 0.6}},
		{name: "simplex", gen: Simplex{Freq: 0.09, Seed: 11}},
		{name: "cellular manhattan", gen: Cellular{Freq: 0.2}},
		{name: "cellular euclidean", gen: Cellular{Freq: 0.2, Distance: DistanceEuclidean, Jitter: 0.8, Seed: 42}},
	}

	const width, height = 24, 17

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := tt.gen.Field(0.5, 12.25, width, height)
			require.NoError(t, err)
			require.Len(t, values, width*height)

			lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
			for _, v := range values {
				lo = min(lo, v)
				hi = max(hi, v)
			}
			assert.Equal(t, float32(0), lo)
			assert.Equal(t, float32(1), hi)

			again, err := tt.gen.Field(0.5, 12.25, width, height)
			require.NoError(t, err)
			assert.Equal(t, values, again, "generators must be deterministic")
		})
	}
}

func TestPerlinAtIntegerFrequencyVaries(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
	}{
		{name: "gradient", gen: Gradient{Freq: 1}},
		{name: "fbm", gen: FBM{Freq: 2, Octaves: 3, Lacunarity: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := tt.gen.Field(4, -3, 8, 8)
			require.NoError(t, err)

			r := field.Bounds(values)
			assert.Equal(t, field.Range{Min: 0, Max: 1}, r)
		})
	}
}

func TestGeneratorOffsetShiftsSamples(t *testing.T) {
	g := Simplex{Freq: 0.1}
	wide, err := g.Field(0, 0, 8, 1)
	require.NoError(t, err)
	shifted, err := g.Field(1, 0, 8, 1)
	require.NoError(t, err)
	assert.NotEqual(t, wide, shifted)
}

func TestGeneratorInvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
	}{
		{name: "zero freq", gen: Gradient{}},
		{name: "negative freq", gen: Simplex{Freq: -1}},
		{name: "nan freq", gen: Gradient{Freq: float32(math.NaN())}},
		{name: "zero octaves", gen: FBM{Freq: 0.1, Lacunarity: 2}},
		{name: "zero lacunarity", gen: Turbulence{Freq: 0.1, Octaves: 2}},
		{name: "gain out of range", gen: FBM{Freq: 0.1, Octaves: 2, Lacunarity: 2, Gain: 1.5}},
		{name: "unknown distance", gen: Cellular{Freq: 0.1, Distance: "chebyshev"}},
		{name: "jitter out of range", gen: Cellular{Freq: 0.1, Jitter: 2}},
		{name: "infinite uniform", gen: Uniform{Val: float32(math.Inf(1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.gen.Field(0, 0, 4, 4)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParameter))
			assert.Error(t, Validate(tt.gen))
		})
	}
}

func TestGeneratorRejectsNegativeSize(t *testing.T) {
	_, err := Uniform{Val: 1}.Field(0, 0, -1, 4)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestGeneratorEmptyRegion(t *testing.T) {
	values, err := FBM{Freq: 0.1, Octaves: 2, Lacunarity: 2}.Field(0, 0, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestDictionary(t *testing.T) {
	d, err := NewDictionary(
		Entry{Tag: "B", Generator: Uniform{Val: 3}},
		Entry{Tag: "A", Generator: &Gradient{Freq: 0.01}},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []Tag{"A", "B"}, d.Tags())

	g, ok := d.Resolve("B")
	require.True(t, ok)
	assert.Equal(t, Uniform{Val: 3}, g)

	_, ok = d.Resolve("C")
	assert.False(t, ok)

	var seen []Tag
	for tag := range d.All() {
		seen = append(seen, tag)
	}
	assert.Equal(t, []Tag{"A", "B"}, seen)

	tags := d.Tags()
	tags[0] = "Z"
	assert.Equal(t, []Tag{"A", "B"}, d.Tags(), "Tags must return a copy")
}

func TestDictionaryRejectsDuplicates(t *testing.T) {
	_, err := NewDictionary(
		Entry{Tag: "A", Generator: Uniform{Val: 1}},
		Entry{Tag: "A", Generator: Uniform{Val: 2}},
	)
	var dup *DuplicateTagError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, Tag("A"), dup.Tag)
}

func TestDictionaryRejectsInvalidEntries(t *testing.T) {
	_, err := NewDictionary(Entry{Tag: "", Generator: Uniform{}})
	assert.Error(t, err)
	_, err = NewDictionary(Entry{Tag: "A"})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	assert.Equal(t, []string{
		KindCellular, KindFBM, KindGradient, KindSimplex, KindTurbulence, KindUniform,
	}, r.Kinds())

	g, ok := r.New(KindFBM)
	require.True(t, ok)
	assert.IsType(t, &FBM{}, g)

	_, ok = r.New("Nope")
	assert.False(t, ok)

	kind, ok := r.KindOf(Uniform{Val: 2})
	require.True(t, ok)
	assert.Equal(t, KindUniform, kind)

	kind, ok = r.KindOf(&Cellular{})
	require.True(t, ok)
	assert.Equal(t, KindCellular, kind)

	_, ok = r.KindOf(nil)
	assert.False(t, ok)
}

type custom struct{}

func (custom) Field(_, _ float32, w, h int) ([]float32, error) { return make([]float32, w*h), nil }

func TestRegistryPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("Custom", func() Generator { return &custom{} })

	assert.Panics(t, func() {
		r.Register("Custom", func() Generator { return &custom{} })
	}, "duplicate kind")
	assert.Panics(t, func() {
		r.Register("Other", func() Generator { return &custom{} })
	}, "duplicate type")

	r.Seal()
	assert.Panics(t, func() {
		r.Register("Late", func() Generator { return &Uniform{} })
	}, "sealed")

	assert.Panics(t, func() {
		Default().Register("Late", func() Generator { return &custom{} })
	})
}

func TestGeneratorErrorUnwraps(t *testing.T) {
	err := &GeneratorError{Tag: "A", Kind: KindFBM, Err: ErrInvalidParameter}
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Contains(t, err.Error(), "FBMNoiseConfig")
}
