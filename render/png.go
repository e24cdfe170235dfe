package render

import (
	"bytes"
	"fmt"
	"image/png"

	"git.sr.ht/~sbinet/gg"
	"github.com/TFMV/friendgraph/graph"
	"golang.org/x/image/font/basicfont"
)

// PNGRenderer rasterizes the layout
type PNGRenderer struct{}

// Name returns the name of the renderer
func (r *PNGRenderer) Name() string {
	return "PNG Renderer"
}

// Description returns a description of the renderer
func (r *PNGRenderer) Description() string {
	return "Renders the layout as a PNG image"
}

// Render creates a PNG image of the view
func (r *PNGRenderer) Render(v graph.View, options *Options) ([]byte, error) {
	dc := gg.NewContext(options.Width, options.Height)
	dc.SetColor(parseColor(options.Background, "#f8f8f8"))
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	pos := positions(v, options)

	dc.SetLineWidth(1.5)
	for _, e := range v.Edges {
		a, b := pos[e.A], pos[e.B]
		dc.SetColor(options.EdgeColor(e.EarliestDate))
		dc.DrawLine(a[0], a[1], b[0], b[1])
		dc.Stroke()
	}

	fill := parseColor(nodeColor, nodeColor)
	stroke := parseColor(strokeColor, strokeColor)
	for _, n := range v.Nodes {
		p := pos[n.Index]
		dc.DrawCircle(p[0], p[1], options.NodeRadius)
		dc.SetColor(fill)
		dc.FillPreserve()
		dc.SetColor(stroke)
		dc.SetLineWidth(0.5)
		dc.Stroke()

		if options.ShowLabels && n.Name != "" {
			dc.SetColor(parseColor(labelColor, labelColor))
			dc.DrawStringAnchored(n.Name, p[0], p[1]+options.NodeRadius+8, 0.5, 0.5)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
