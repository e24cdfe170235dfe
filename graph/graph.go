// Package graph holds the friend graph: named nodes in index-stable slots,
// dated undirected edges between them, and the glue that advances their
// layout with the physics simulator.
package graph

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/friendgraph/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// Graph is the public face of the friend graph. Every method takes a
// single exclusive lock, so a simulation step always reads the whole graph
// in one consistent state.
type Graph struct {
	mu     sync.Mutex
	nodes  NodeStore
	edges  *EdgeIndex
	sim    *physics.Simulator
	placer physics.Placer
	unique bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithParams sets the force constants used by Update.
func WithParams(p physics.Params) Option {
	return func(g *Graph) {
		g.sim = physics.NewSimulator(p)
	}
}

// WithPlacer sets how new nodes are positioned.
func WithPlacer(p physics.Placer) Option {
	return func(g *Graph) {
		if p != nil {
			g.placer = p
		}
	}
}

// WithUniqueNames makes Rename reject names held by another live node.
func WithUniqueNames() Option {
	return func(g *Graph) {
		g.unique = true
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		edges:  NewEdgeIndex(),
		sim:    physics.NewSimulator(physics.DefaultParams()),
		placer: physics.OriginPlacer{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func normalize(name string) string {
	return strings.TrimSpace(name)
}

// GetOrCreate returns the index of the live node called name, creating it
// in the lowest free slot (or a new one) when absent.
func (g *Graph) GetOrCreate(name string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getOrCreate(normalize(name))
}

func (g *Graph) getOrCreate(name string) (int, error) {
	i, created, err := g.nodes.GetOrCreate(name)
	if err != nil {
		return -1, err
	}
	if created {
		g.nodes.slots[i].node.Position = g.placer.Place(i)
	}
	return i, nil
}

// AddFriendGroup resolves every name to a node and connects each pair in
// the group, all with the same date. Existing edges keep the earlier of
// their date and date. It returns the node index for each name in order.
func (g *Graph) AddFriendGroup(names []string, date time.Time) ([]int, error) {
	if len(names) == 0 {
		return nil, ErrEmptyGroup
	}
	cleaned := make([]string, len(names))
	for k, name := range names {
		cleaned[k] = normalize(name)
		if cleaned[k] == "" {
			return nil, fmt.Errorf("%w: entry %d of group", ErrEmptyName, k)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	indices := make([]int, len(cleaned))
	for k, name := range cleaned {
		i, err := g.getOrCreate(name)
		if err != nil {
			return nil, err
		}
		indices[k] = i
	}
	for a := 0; a < len(indices); a++ {
		for b := a + 1; b < len(indices); b++ {
			g.edges.AddOrUpdate(indices[a], indices[b], date)
		}
	}
	return indices, nil
}

// IsFree reports whether slot i holds no node.
func (g *Graph) IsFree(i int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.IsFree(i)
}

// Degree returns the number of friends connected to i. A free slot has
// degree zero.
func (g *Graph) Degree(i int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.nodes.check(i); err != nil {
		return 0, err
	}
	return g.edges.Degree(i), nil
}

// Neighbors returns the indices connected to i in ascending order.
func (g *Graph) Neighbors(i int) ([]int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.nodes.check(i); err != nil {
		return nil, err
	}
	return g.edges.Neighbors(i), nil
}

// Rename changes the name of node i. Duplicate names are allowed unless the
// graph was built with WithUniqueNames.
func (g *Graph) Rename(i int, name string) error {
	name = normalize(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.nodes.checkLive(i); err != nil {
		return err
	}
	if g.unique {
		if j, ok := g.nodes.Lookup(name); ok && j != i {
			return fmt.Errorf("%w: %q is node %d", ErrNameCollision, name, j)
		}
	}
	return g.nodes.Rename(i, name)
}

// Node returns a copy of node i.
func (g *Graph) Node(i int) (Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Node(i)
}

// Position returns where node i currently is.
func (g *Graph) Position(i int) (r2.Vec, error) {
	n, err := g.Node(i)
	if err != nil {
		return r2.Vec{}, err
	}
	return n.Position, nil
}

// SetPosition places node i directly, as a drag would. The next Update
// starts from this position.
func (g *Graph) SetPosition(i int, p r2.Vec) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, p.X, p.Y)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.SetPosition(i, p)
}

// SetImage assigns an image handle to node i.
func (g *Graph) SetImage(i int, image string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.SetImage(i, image)
}

// DeleteNode removes node i and every edge touching it. The removed pairs
// are returned so dependent visuals can be cleaned up. Deleting a free slot
// returns an empty list.
func (g *Graph) DeleteNode(i int) ([]Pair, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Delete(i, g.edges)
}

// Update advances every live node by one simulation step of dt seconds.
// dt is not clamped; large steps make the integration oscillate.
func (g *Graph) Update(dt float64) error {
	_, err := g.step(dt)
	return err
}

func (g *Graph) step(dt float64) (float64, error) {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStep, dt)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	st := simState{nodes: &g.nodes, edges: g.edges}
	next := g.sim.Step(st, dt)
	moved := physics.MaxDisplacement(st, next)
	for i := range next {
		if g.nodes.slots[i].live {
			g.nodes.slots[i].node.Position = next[i]
		}
	}
	return moved, nil
}

// Settle steps the simulation until no node moves more than tolerance in a
// step or maxSteps is reached. It returns the number of steps taken.
func (g *Graph) Settle(dt float64, maxSteps int, tolerance float64) (int, error) {
	for n := 1; n <= maxSteps; n++ {
		moved, err := g.step(dt)
		if err != nil {
			return n - 1, err
		}
		if moved <= tolerance {
			return n, nil
		}
	}
	return maxSteps, nil
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Live()
}

// Slots returns the number of slots, including free ones.
func (g *Graph) Slots() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Slots()
}

// Edges returns a copy of all edges in storage order.
func (g *Graph) Edges() []Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edges.Edges()
}

// Params returns the force constants in use.
func (g *Graph) Params() physics.Params {
	return g.sim.Params()
}

// simState exposes the store and index to the simulator without copying.
type simState struct {
	nodes *NodeStore
	edges *EdgeIndex
}

func (s simState) Slots() int             { return s.nodes.Slots() }
func (s simState) Live(i int) bool        { return s.nodes.isLive(i) }
func (s simState) Position(i int) r2.Vec  { return s.nodes.position(i) }
func (s simState) Adjacent(i, j int) bool { return s.edges.Adjacent(i, j) }
