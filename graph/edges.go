package graph

import (
	"fmt"
	"sort"
	"time"
)

// Pair is an undirected pair of node indices in canonical order, A < B.
type Pair struct {
	A, B int
}

// MakePair orders i and j into a canonical pair.
func MakePair(i, j int) Pair {
	if i > j {
		i, j = j, i
	}
	return Pair{A: i, B: j}
}

// MarshalJSON encodes the pair as a two element array.
func (p Pair) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d]", p.A, p.B)), nil
}

// Edge connects two live nodes and remembers the earliest date the pair was
// seen together.
type Edge struct {
	A            int       `json:"a"`
	B            int       `json:"b"`
	EarliestDate time.Time `json:"earliest_date"`
}

// Pair returns the canonical endpoints of the edge.
func (e Edge) Pair() Pair {
	return Pair{A: e.A, B: e.B}
}

// EdgeIndex stores deduplicated undirected edges along with a pair index
// and per-node adjacency sets that always mirror the edge list.
type EdgeIndex struct {
	edges []Edge
	index map[Pair]int
	adj   map[int]map[int]struct{}
}

// NewEdgeIndex creates an empty edge index.
func NewEdgeIndex() *EdgeIndex {
	return &EdgeIndex{
		index: make(map[Pair]int),
		adj:   make(map[int]map[int]struct{}),
	}
}

// AddOrUpdate connects i and j. If the pair already has an edge its date
// becomes the earlier of the stored and given dates. It reports whether a
// new edge was inserted. Self pairs are ignored.
func (x *EdgeIndex) AddOrUpdate(i, j int, date time.Time) bool {
	if i == j {
		return false
	}
	p := MakePair(i, j)
	if pos, ok := x.index[p]; ok {
		if date.Before(x.edges[pos].EarliestDate) {
			x.edges[pos].EarliestDate = date
		}
		return false
	}

	x.index[p] = len(x.edges)
	x.edges = append(x.edges, Edge{A: p.A, B: p.B, EarliestDate: date})
	x.link(p.A, p.B)
	x.link(p.B, p.A)
	return true
}

func (x *EdgeIndex) link(from, to int) {
	set, ok := x.adj[from]
	if !ok {
		set = make(map[int]struct{})
		x.adj[from] = set
	}
	set[to] = struct{}{}
}

func (x *EdgeIndex) unlink(from, to int) {
	set := x.adj[from]
	delete(set, to)
	if len(set) == 0 {
		delete(x.adj, from)
	}
}

// Degree returns the number of nodes sharing an edge with i.
func (x *EdgeIndex) Degree(i int) int {
	return len(x.adj[i])
}

// Adjacent reports whether i and j share an edge.
func (x *EdgeIndex) Adjacent(i, j int) bool {
	_, ok := x.adj[i][j]
	return ok
}

// Neighbors returns the nodes adjacent to i in ascending order.
func (x *EdgeIndex) Neighbors(i int) []int {
	out := make([]int, 0, len(x.adj[i]))
	for j := range x.adj[i] {
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}

// Edge returns the edge between i and j.
func (x *EdgeIndex) Edge(i, j int) (Edge, bool) {
	pos, ok := x.index[MakePair(i, j)]
	if !ok {
		return Edge{}, false
	}
	return x.edges[pos], true
}

// Len returns the number of edges.
func (x *EdgeIndex) Len() int {
	return len(x.edges)
}

// Edges returns a copy of the edges in storage order.
func (x *EdgeIndex) Edges() []Edge {
	out := make([]Edge, len(x.edges))
	copy(out, x.edges)
	return out
}

// RemoveIncident drops every edge touching i and returns the removed pairs
// in storage order. The pair index is rebuilt from the surviving edges;
// adjacency is patched for the removed pairs only.
func (x *EdgeIndex) RemoveIncident(i int) []Pair {
	removed := []Pair{}
	if x.Degree(i) == 0 {
		return removed
	}

	kept := x.edges[:0]
	for _, e := range x.edges {
		if e.A == i || e.B == i {
			removed = append(removed, e.Pair())
			continue
		}
		kept = append(kept, e)
	}
	x.edges = kept

	x.index = make(map[Pair]int, len(x.edges))
	for pos, e := range x.edges {
		x.index[e.Pair()] = pos
	}
	for _, p := range removed {
		x.unlink(p.A, p.B)
		x.unlink(p.B, p.A)
	}
	return removed
}
