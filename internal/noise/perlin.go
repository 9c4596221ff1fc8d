package noise

import (
	"fmt"

	"github.com/aquilax/go-perlin"
)

const defaultGain = 0.5

// latticeShift moves sample points off the integer lattice, where go-perlin
// returns exactly 0.
const latticeShift = 0.3719

func offLattice(fn func(x, y float64) float64) func(x, y float64) float64 {
	return func(x, y float64) float64 { return fn(x+latticeShift, y+latticeShift) }
}

// Gradient is single-octave Perlin gradient noise. Samples are taken at a
// fixed fractional shift from the lattice so integer frequencies still vary.
type Gradient struct {
	Freq float32 `yaml:"freq" json:"freq"`
	Seed int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

func (g Gradient) Validate() error {
	return checkFreq(g.Freq)
}

func (g Gradient) Field(xOffset, yOffset float32, width, height int) ([]float32, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	p := perlin.NewPerlin(2, 2, 1, g.Seed)
	return sample(xOffset, yOffset, width, height, g.Freq, offLattice(p.Noise2D)), nil
}

// FBM is fractal Brownian motion: Perlin octaves summed with each octave's
// frequency scaled by Lacunarity and amplitude by Gain.
type FBM struct {
	Freq       float32 `yaml:"freq" json:"freq"`
	Octaves    uint8   `yaml:"octaves" json:"octaves"`
	Lacunarity float32 `yaml:"lacunarity" json:"lacunarity"`
	// Gain defaults to 0.5 when zero.
	Gain float32 `yaml:"gain,omitempty" json:"gain,omitempty"`
	Seed int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

func (f FBM) Validate() error {
	if err := checkFreq(f.Freq); err != nil {
		return err
	}
	if err := checkOctaves(f.Octaves, f.Lacunarity); err != nil {
		return err
	}
	if f.Gain < 0 || f.Gain >= 1 {
		return fmt.Errorf("%w: gain must be within [0,1), got %v", ErrInvalidParameter, f.Gain)
	}
	return nil
}

func (f FBM) Field(xOffset, yOffset float32, width, height int) ([]float32, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	gain := float64(f.Gain)
	if gain == 0 {
		gain = defaultGain
	}
	// go-perlin divides each successive octave by alpha.
	p := perlin.NewPerlin(1/gain, float64(f.Lacunarity), int32(f.Octaves), f.Seed)
	return sample(xOffset, yOffset, width, height, f.Freq, offLattice(p.Noise2D)), nil
}
