package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/TFMV/friendgraph/graph"
	"github.com/goccy/go-json"
)

// JSONRenderer outputs the layout as JSON
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the layout as JSON data for custom visualizations"
}

// Render creates a JSON representation of the view, with canvas
// coordinates and edge colors already resolved
func (r *JSONRenderer) Render(v graph.View, options *Options) ([]byte, error) {
	type jsonNode struct {
		graph.NodeView
		CanvasX float64 `json:"canvas_x"`
		CanvasY float64 `json:"canvas_y"`
	}

	type jsonEdge struct {
		graph.Edge
		Color string `json:"color"`
	}

	type jsonGraph struct {
		Nodes    []jsonNode     `json:"nodes"`
		Edges    []jsonEdge     `json:"edges"`
		Metadata map[string]any `json:"metadata"`
	}

	pos := positions(v, options)
	out := jsonGraph{
		Nodes: make([]jsonNode, 0, len(v.Nodes)),
		Edges: make([]jsonEdge, 0, len(v.Edges)),
		Metadata: map[string]any{
			"width":     options.Width,
			"height":    options.Height,
			"timestamp": options.now().Format(time.RFC3339),
			"nodeCount": len(v.Nodes),
			"edgeCount": len(v.Edges),
		},
	}
	if earliest, latest, ok := v.DateRange(); ok {
		out.Metadata["earliest"] = earliest.Format(time.RFC3339)
		out.Metadata["latest"] = latest.Format(time.RFC3339)
	}

	for _, n := range v.Nodes {
		p := pos[n.Index]
		out.Nodes = append(out.Nodes, jsonNode{NodeView: n, CanvasX: p[0], CanvasY: p[1]})
	}
	for _, e := range v.Edges {
		out.Edges = append(out.Edges, jsonEdge{Edge: e, Color: options.EdgeColor(e.EarliestDate).Hex()})
	}

	return json.MarshalIndent(out, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders the graph in Graphviz DOT format with pinned positions"
}

// Render creates a DOT representation of the view. Positions are pinned so
// neato -n reproduces the layout.
func (r *DOTRenderer) Render(v graph.View, options *Options) ([]byte, error) {
	var buf bytes.Buffer
	pos := positions(v, options)

	buf.WriteString("graph friends {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, size=\"%g,%g\"];\n",
		options.Background, float64(options.Width)/72.0, float64(options.Height)/72.0)
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fillcolor=%q, fontsize=%g];\n",
		nodeColor, options.FontSize)

	for _, n := range v.Nodes {
		p := pos[n.Index]
		// DOT's y axis points up
		fmt.Fprintf(&buf, "  n%d [label=%q, pos=\"%g,%g!\"];\n",
			n.Index, n.Name, p[0], float64(options.Height)-p[1])
	}
	for _, e := range v.Edges {
		fmt.Fprintf(&buf, "  n%d -- n%d [color=%q, tooltip=%q];\n",
			e.A, e.B, options.EdgeColor(e.EarliestDate).Hex(), e.EarliestDate.Format("2006-01-02"))
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders the layout as ASCII art for terminal output"
}

// Render creates an ASCII representation of the view
func (r *ASCIIRenderer) Render(v graph.View, options *Options) ([]byte, error) {
	// one cell is roughly 10x20 pixels
	width := max(options.Width/10, 40)
	height := max(options.Height/20, 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0], grid[0][width-1] = '+', '+'
	grid[height-1][0], grid[height-1][width-1] = '+', '+'

	pos := positions(v, options)
	cell := func(p [2]float64) (int, int) {
		x := int(p[0]*float64(width-2)/float64(options.Width)) + 1
		y := int(p[1]*float64(height-2)/float64(options.Height)) + 1
		return clamp(x, 1, width-2), clamp(y, 1, height-2)
	}

	for _, e := range v.Edges {
		x1, y1 := cell(pos[e.A])
		x2, y2 := cell(pos[e.B])
		drawLine(grid, x1, y1, x2, y2)
	}

	for _, n := range v.Nodes {
		x, y := cell(pos[n.Index])
		grid[y][x] = 'O'

		if options.ShowLabels && n.Name != "" && y+1 < height-1 {
			label := []rune(n.Name)
			for i := 0; i < len(label) && x+i < width-1; i++ {
				grid[y+1][x+i] = label[i]
			}
		}
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// drawLine plots a line on the grid using Bresenham's algorithm, leaving
// node markers in place.
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx, sy := 1, 1
	if x1 >= x2 {
		sx = -1
	}
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if grid[y1][x1] == ' ' {
			grid[y1][x1] = '.'
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
