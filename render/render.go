// Package render draws snapshots of a friend graph layout.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/TFMV/friendgraph/config"
	"github.com/TFMV/friendgraph/graph"
	"github.com/lucasb-eyer/go-colorful"
)

// Options defines rendering configuration options
type Options struct {
	Format     string        // Output format (svg, png, json, ascii, dot)
	Width      int           // Width of the output in pixels
	Height     int           // Height of the output in pixels
	Margin     float64       // Space kept clear around the layout
	Background string        // Background color
	Recent     string        // Edge color for friendships formed at Now
	Old        string        // Edge color for friendships at least Horizon old
	Horizon    time.Duration // Age at which an edge is fully Old
	Now        time.Time     // Reference time for edge ages; zero means time.Now
	NodeRadius float64       // Node radius in pixels
	FontSize   float64       // Font size for labels
	ShowLabels bool          // Show node names
}

// Renderer interface defines methods that all rendering backends must implement
type Renderer interface {
	// Render draws the view using the provided options
	Render(v graph.View, options *Options) ([]byte, error)

	// Name returns the name of the renderer
	Name() string

	// Description returns a description of the renderer
	Description() string
}

const (
	nodeColor   = "#4285F4"
	strokeColor = "#333333"
	labelColor  = "#333333"
)

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *Options {
	return &Options{
		Format:     format,
		Width:      1200,
		Height:     900,
		Margin:     40,
		Background: "#f8f8f8",
		Recent:     "#e4572e",
		Old:        "#6c8ead",
		Horizon:    10 * 365 * 24 * time.Hour,
		NodeRadius: 8,
		FontSize:   11,
		ShowLabels: true,
	}
}

// OptionsFromConfig builds options from the render section of a config.
func OptionsFromConfig(format string, rc config.RenderConfig) *Options {
	o := NewDefaultOptions(format)
	if rc.Width > 0 {
		o.Width = rc.Width
	}
	if rc.Height > 0 {
		o.Height = rc.Height
	}
	if rc.Background != "" {
		o.Background = rc.Background
	}
	if rc.Recent != "" {
		o.Recent = rc.Recent
	}
	if rc.Old != "" {
		o.Old = rc.Old
	}
	if rc.Horizon > 0 {
		o.Horizon = rc.Horizon.Std()
	}
	return o
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "svg":
		return &SVGRenderer{}, nil
	case "png":
		return &PNGRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "ascii", "txt":
		return &ASCIIRenderer{}, nil
	case "dot", "gv":
		return &DOTRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Generate renders v in the format named by options.
func Generate(v graph.View, options *Options) ([]byte, error) {
	if options == nil {
		options = NewDefaultOptions("svg")
	}
	renderer, err := GetRenderer(options.Format)
	if err != nil {
		return nil, err
	}
	return renderer.Render(v, options)
}

func (o *Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// EdgeColor blends from the recent color to the old color by how long ago
// the friendship began, reaching old at the horizon. Dates in the future
// get the recent color.
func (o *Options) EdgeColor(date time.Time) colorful.Color {
	recent := parseColor(o.Recent, "#e4572e")
	old := parseColor(o.Old, "#6c8ead")
	if o.Horizon <= 0 {
		return old
	}
	t := float64(o.now().Sub(date)) / float64(o.Horizon)
	t = math.Max(0, math.Min(1, t))
	return recent.BlendLab(old, t).Clamped()
}

// parseColor falls back to black if neither hex nor fallback parses.
func parseColor(hex, fallback string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(fallback)
	}
	return c
}

// transform maps simulation coordinates onto the canvas. The layout is
// centred and shrunk to fit, but never enlarged.
type transform struct {
	scale  float64
	cx, cy float64
	w, h   float64
}

func fit(v graph.View, o *Options) transform {
	t := transform{scale: 1, w: float64(o.Width), h: float64(o.Height)}
	if len(v.Nodes) == 0 {
		return t
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range v.Nodes {
		minX, maxX = math.Min(minX, n.X), math.Max(maxX, n.X)
		minY, maxY = math.Min(minY, n.Y), math.Max(maxY, n.Y)
	}
	t.cx = (minX + maxX) / 2
	t.cy = (minY + maxY) / 2

	usableW := math.Max(t.w-2*o.Margin, 1)
	usableH := math.Max(t.h-2*o.Margin, 1)
	t.scale = math.Min(1, math.Min(usableW/math.Max(maxX-minX, 1), usableH/math.Max(maxY-minY, 1)))
	return t
}

func (t transform) apply(x, y float64) (float64, float64) {
	return t.w/2 + (x-t.cx)*t.scale, t.h/2 + (y-t.cy)*t.scale
}

// positions returns canvas coordinates keyed by node index.
func positions(v graph.View, o *Options) map[int][2]float64 {
	t := fit(v, o)
	out := make(map[int][2]float64, len(v.Nodes))
	for _, n := range v.Nodes {
		x, y := t.apply(n.X, n.Y)
		out[n.Index] = [2]float64{x, y}
	}
	return out
}

func names(v graph.View) map[int]string {
	out := make(map[int]string, len(v.Nodes))
	for _, n := range v.Nodes {
		out[n.Index] = n.Name
	}
	return out
}
