package noise

import (
	"fmt"
	"math"
)

// Distance functions accepted by Cellular.
const (
	DistanceManhattan = "manhattan"
	DistanceEuclidean = "euclidean"
)

// Cellular is Worley-style cellular noise. Each unit cell of the scaled plane
// holds one feature point; the sample is the gap between the distances to the
// nearest and second-nearest points (F2 - F1), which outlines the cells.
type Cellular struct {
	Freq float32 `yaml:"freq" json:"freq"`
	// Distance is manhattan (default) or euclidean.
	Distance string `yaml:"distance,omitempty" json:"distance,omitempty"`
	// Jitter in (0,1] spreads feature points within their cell; 0 means 1.
	Jitter float32 `yaml:"jitter,omitempty" json:"jitter,omitempty"`
	Seed   int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

func (c Cellular) Validate() error {
	if err := checkFreq(c.Freq); err != nil {
		return err
	}
	switch c.Distance {
	case "", DistanceManhattan, DistanceEuclidean:
	default:
		return fmt.Errorf("%w: unknown distance function %q", ErrInvalidParameter, c.Distance)
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be within [0,1], got %v", ErrInvalidParameter, c.Jitter)
	}
	return nil
}

func (c Cellular) Field(xOffset, yOffset float32, width, height int) ([]float32, error) {
	if err := checkSize(width, height); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	jitter := float64(c.Jitter)
	if jitter == 0 {
		jitter = 1
	}
	dist := manhattan
	if c.Distance == DistanceEuclidean {
		dist = euclidean
	}
	seed := uint32(c.Seed) ^ uint32(c.Seed>>32)

	return sample(xOffset, yOffset, width, height, c.Freq, func(x, y float64) float64 {
		cx, cy := int32(math.Floor(x)), int32(math.Floor(y))
		f1, f2 := math.Inf(1), math.Inf(1)
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				px, py := featurePoint(seed, cx+dx, cy+dy, jitter)
				d := dist(x-px, y-py)
				if d < f1 {
					f1, f2 = d, f1
				} else if d < f2 {
					f2 = d
				}
			}
		}
		return f2 - f1
	}), nil
}

func manhattan(dx, dy float64) float64 { return math.Abs(dx) + math.Abs(dy) }

func euclidean(dx, dy float64) float64 { return math.Sqrt(dx*dx + dy*dy) }

// featurePoint returns the deterministic feature point of cell (cx, cy).
func featurePoint(seed uint32, cx, cy int32, jitter float64) (float64, float64) {
	h := hash2(seed, cx, cy)
	u := float64(h&0xffff) / 0xffff
	v := float64(h>>16) / 0xffff
	off := (1 - jitter) / 2
	return float64(cx) + off + u*jitter, float64(cy) + off + v*jitter
}

func hash2(seed uint32, x, y int32) uint32 {
	h := seed
	h ^= uint32(x) * 0x9e3779b1
	h ^= uint32(y) * 0x85ebca6b
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return h
}
