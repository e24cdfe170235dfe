// Package physics computes the force-directed layout of the friend graph.
//
// The model is first order: forces are integrated straight into positions
// with no velocity term, so a layout comes to rest as soon as the forces
// balance out.
package physics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// State is the view of the graph a simulation step reads from.
// Slots that are not live are skipped entirely.
type State interface {
	Slots() int
	Live(i int) bool
	Position(i int) r2.Vec
	Adjacent(i, j int) bool
}

// Params holds the tunable force constants.
type Params struct {
	SpringK     float64 `toml:"spring_k" yaml:"spring_k"`           // spring stiffness
	SpringRest  float64 `toml:"spring_rest" yaml:"spring_rest"`     // rest length of a spring
	RepelK      float64 `toml:"repel_k" yaml:"repel_k"`             // long-range repulsion strength
	CloseRepelK float64 `toml:"close_repel_k" yaml:"close_repel_k"` // short-range repulsion strength
	CenterK     float64 `toml:"center_k" yaml:"center_k"`           // pull towards the origin
}

// DefaultParams returns the reference force constants.
func DefaultParams() Params {
	return Params{
		SpringK:     0.6,
		SpringRest:  140,
		RepelK:      2600,
		CloseRepelK: 500,
		CenterK:     0.02,
	}
}

// ErrInvalidParams is returned by Validate for unusable force constants.
var ErrInvalidParams = errors.New("invalid physics parameters")

// Validate reports whether the parameters can drive a simulation.
func (p Params) Validate() error {
	values := map[string]float64{
		"spring_k":      p.SpringK,
		"spring_rest":   p.SpringRest,
		"repel_k":       p.RepelK,
		"close_repel_k": p.CloseRepelK,
		"center_k":      p.CenterK,
	}
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidParams, name, v)
		}
	}
	if p.SpringRest == 0 {
		return fmt.Errorf("%w: spring_rest must be positive", ErrInvalidParams)
	}
	return nil
}

// jitter is a ring of eight offsets of length 2.5, 45 degrees apart.
var jitter = [8]r2.Vec{
	{X: 2.5, Y: 0},
	{X: 1.7677669529663689, Y: 1.7677669529663689},
	{X: 0, Y: 2.5},
	{X: -1.7677669529663689, Y: 1.7677669529663689},
	{X: -2.5, Y: 0},
	{X: -1.7677669529663689, Y: -1.7677669529663689},
	{X: 0, Y: -2.5},
	{X: 1.7677669529663689, Y: -1.7677669529663689},
}

// Jitter returns the separation substituted for a pair whose second node
// sits exactly on top of the first.
func Jitter(j int) r2.Vec {
	return jitter[((j%8)+8)%8]
}

// Simulator advances positions one explicit Euler step at a time.
// It keeps no state between steps.
type Simulator struct {
	params Params
}

// NewSimulator creates a simulator with the given constants.
func NewSimulator(p Params) *Simulator {
	return &Simulator{params: p}
}

// Params returns the constants in use.
func (s *Simulator) Params() Params {
	return s.params
}

// PairForce returns the force node j exerts on node i. Node j receives the
// exact negation.
func (s *Simulator) PairForce(pi, pj r2.Vec, j int, adjacent bool) r2.Vec {
	return r2.Add(s.LinkForce(pi, pj, j, adjacent), s.CloseForce(pi, pj, j))
}

// CloseForce returns the inverse-fourth-power crowding term acting on i.
func (s *Simulator) CloseForce(pi, pj r2.Vec, j int) r2.Vec {
	dir, dist := separation(pi, pj, j)
	d2 := dist * dist
	return r2.Scale(-s.params.CloseRepelK/(d2*d2), dir)
}

// LinkForce returns the quadratic spring acting on i when the pair is
// adjacent, inverse-square repulsion otherwise.
func (s *Simulator) LinkForce(pi, pj r2.Vec, j int, adjacent bool) r2.Vec {
	dir, dist := separation(pi, pj, j)
	if adjacent {
		stretch := dist - s.params.SpringRest
		return r2.Scale(s.params.SpringK*stretch*math.Abs(stretch)/s.params.SpringRest, dir)
	}
	return r2.Scale(-s.params.RepelK/(dist*dist), dir)
}

// separation returns the unit direction from i to j and the distance between
// them, clamped to at least one unit.
func separation(pi, pj r2.Vec, j int) (r2.Vec, float64) {
	r := r2.Sub(pj, pi)
	if r.X == 0 && r.Y == 0 {
		r = Jitter(j)
	}
	dist := math.Max(r2.Norm(r), 1)
	return r2.Scale(1/dist, r), dist
}

// Forces accumulates the net force on every slot. Free slots get the zero
// vector.
func (s *Simulator) Forces(st State) []r2.Vec {
	n := st.Slots()
	forces := make([]r2.Vec, n)

	for i := 0; i < n; i++ {
		if !st.Live(i) {
			continue
		}
		pi := st.Position(i)

		for j := i + 1; j < n; j++ {
			if !st.Live(j) {
				continue
			}
			f := s.PairForce(pi, st.Position(j), j, st.Adjacent(i, j))
			forces[i] = r2.Add(forces[i], f)
			forces[j] = r2.Sub(forces[j], f)
		}

		forces[i] = r2.Add(forces[i], r2.Scale(-s.params.CenterK, pi))
	}

	return forces
}

// Step returns the positions after one step of length dt. The result is
// indexed by slot; entries for free slots are the zero vector.
func (s *Simulator) Step(st State, dt float64) []r2.Vec {
	forces := s.Forces(st)
	next := make([]r2.Vec, len(forces))
	for i, f := range forces {
		if !st.Live(i) {
			continue
		}
		next[i] = r2.Add(st.Position(i), r2.Scale(dt, f))
	}
	return next
}

// MaxDisplacement returns the largest distance between a live node's current
// position and its entry in next.
func MaxDisplacement(st State, next []r2.Vec) float64 {
	var max float64
	for i := range next {
		if !st.Live(i) {
			continue
		}
		if d := r2.Norm(r2.Sub(next[i], st.Position(i))); d > max {
			max = d
		}
	}
	return max
}
