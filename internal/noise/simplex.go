package noise

import (
	"fmt"
	"math"

	"github.com/ojrac/opensimplex-go"
)

// Simplex is single-octave OpenSimplex noise.
type Simplex struct {
	Freq float32 `yaml:"freq" json:"freq"`
	Seed int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

func (s Simplex) Validate() error {
	return checkFreq(s.Freq)
}

func (s Simplex) Field(xOffset, yOffset float32, width, height int) ([]float32, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := opensimplex.New(s.Seed)
	return sample(xOffset, yOffset, width, height, s.Freq, n.Eval2), nil
}

// Turbulence sums the absolute value of OpenSimplex octaves, which folds the
// signal at zero and produces the billowy ridges of turbulence noise.
type Turbulence struct {
	Freq       float32 `yaml:"freq" json:"freq"`
	Octaves    uint8   `yaml:"octaves" json:"octaves"`
	Lacunarity float32 `yaml:"lacunarity" json:"lacunarity"`
	// Gain defaults to 0.5 when zero.
	Gain float32 `yaml:"gain,omitempty" json:"gain,omitempty"`
	Seed int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

func (t Turbulence) Validate() error {
	if err := checkFreq(t.Freq); err != nil {
		return err
	}
	if err := checkOctaves(t.Octaves, t.Lacunarity); err != nil {
		return err
	}
	if t.Gain < 0 || t.Gain >= 1 {
		return fmt.Errorf("%w: gain must be within [0,1), got %v", ErrInvalidParameter, t.Gain)
	}
	return nil
}

func (t Turbulence) Field(xOffset, yOffset float32, width, height int) ([]float32, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	gain := float64(t.Gain)
	if gain == 0 {
		gain = defaultGain
	}
	lacunarity := float64(t.Lacunarity)
	octaves := int(t.Octaves)
	n := opensimplex.New(t.Seed)

	return sample(xOffset, yOffset, width, height, t.Freq, func(x, y float64) float64 {
		var sum float64
		amp, freq := 1.0, 1.0
		for range octaves {
			sum += math.Abs(n.Eval2(x*freq, y*freq)) * amp
			amp *= gain
			freq *= lacunarity
		}
		return sum
	}), nil
}
