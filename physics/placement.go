package physics

import (
	opensimplex "github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"
)

// Placer picks the starting position of a freshly allocated node.
type Placer interface {
	Place(index int) r2.Vec
}

// OriginPlacer puts every new node at the origin. Coincident nodes are
// separated by the jitter table on the next step.
type OriginPlacer struct{}

// Place implements Placer.
func (OriginPlacer) Place(int) r2.Vec {
	return r2.Vec{}
}

// NoisePlacer scatters new nodes around the origin using simplex noise.
// The same seed and index always yield the same position.
type NoisePlacer struct {
	noise  opensimplex.Noise
	radius float64
	scale  float64
}

// NewNoisePlacer creates a placer whose positions fall within radius of the
// origin.
func NewNoisePlacer(seed int64, radius float64) *NoisePlacer {
	return &NoisePlacer{
		noise:  opensimplex.NewNormalized(seed),
		radius: radius,
		scale:  0.618,
	}
}

// Place implements Placer.
func (p *NoisePlacer) Place(index int) r2.Vec {
	t := float64(index)*p.scale + 0.5
	// normalized noise is in [0, 1); shift to [-1, 1)
	x := p.noise.Eval2(t, 0.25)*2 - 1
	y := p.noise.Eval2(0.25, t+100)*2 - 1
	return r2.Vec{X: x * p.radius, Y: y * p.radius}
}

// PlacerFor returns the placer registered under name.
func PlacerFor(name string, seed int64, radius float64) Placer {
	switch name {
	case "noise":
		return NewNoisePlacer(seed, radius)
	default:
		return OriginPlacer{}
	}
}
