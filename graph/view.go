package graph

import "time"

// NodeView is a read-only copy of a live node for renderers.
type NodeView struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Image  string  `json:"image,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Degree int     `json:"degree"`
}

// View is a consistent copy of the graph taken under the lock.
type View struct {
	Nodes []NodeView `json:"nodes"`
	Edges []Edge     `json:"edges"`
}

// View copies the live nodes in index order and every edge in storage order.
func (g *Graph) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := View{
		Nodes: make([]NodeView, 0, g.nodes.Live()),
		Edges: g.edges.Edges(),
	}
	for i, s := range g.nodes.slots {
		if !s.live {
			continue
		}
		v.Nodes = append(v.Nodes, NodeView{
			Index:  i,
			Name:   s.node.Name,
			Image:  s.node.Image,
			X:      s.node.Position.X,
			Y:      s.node.Position.Y,
			Degree: g.edges.Degree(i),
		})
	}
	return v
}

// Node returns the view of node index, if it is live.
func (v View) Node(index int) (NodeView, bool) {
	for _, n := range v.Nodes {
		if n.Index == index {
			return n, true
		}
	}
	return NodeView{}, false
}

// DateRange returns the earliest and latest edge dates. ok is false when
// there are no edges.
func (v View) DateRange() (earliest, latest time.Time, ok bool) {
	for k, e := range v.Edges {
		if k == 0 || e.EarliestDate.Before(earliest) {
			earliest = e.EarliestDate
		}
		if k == 0 || e.EarliestDate.After(latest) {
			latest = e.EarliestDate
		}
	}
	return earliest, latest, len(v.Edges) > 0
}

// NodeFilter selects nodes in view queries.
type NodeFilter func(n NodeView) bool

// EdgeFilter selects edges in view queries.
type EdgeFilter func(e Edge) bool

// Filter returns the nodes and edges that match. An edge is kept only when
// both of its endpoints are. A nil filter matches everything.
func (v View) Filter(nodes NodeFilter, edges EdgeFilter) View {
	out := View{Nodes: []NodeView{}, Edges: []Edge{}}
	kept := make(map[int]bool, len(v.Nodes))
	for _, n := range v.Nodes {
		if nodes == nil || nodes(n) {
			out.Nodes = append(out.Nodes, n)
			kept[n.Index] = true
		}
	}
	for _, e := range v.Edges {
		if kept[e.A] && kept[e.B] && (edges == nil || edges(e)) {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Before keeps the friendships that began on or before t, along with every
// node. It shows the graph as it stood at t.
func (v View) Before(t time.Time) View {
	return v.Filter(nil, func(e Edge) bool {
		return !e.EarliestDate.After(t)
	})
}

// MinDegree keeps the nodes with at least d friends and the edges between
// them.
func (v View) MinDegree(d int) View {
	return v.Filter(func(n NodeView) bool {
		return n.Degree >= d
	}, nil)
}
