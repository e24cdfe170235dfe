package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/TFMV/friendgraph/graph"
	svg "github.com/ajstarks/svgo"
	"github.com/dustin/go-humanize"
)

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders the layout as Scalable Vector Graphics with edges colored by friendship age"
}

// Render creates an SVG representation of the view
func (r *SVGRenderer) Render(v graph.View, options *Options) ([]byte, error) {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(options.Width, options.Height)
	canvas.Rect(0, 0, options.Width, options.Height, "fill:"+options.Background)

	pos := positions(v, options)
	label := names(v)
	now := options.now()

	canvas.Gid("edges")
	for _, e := range v.Edges {
		a, b := pos[e.A], pos[e.B]
		color := options.EdgeColor(e.EarliestDate).Hex()
		canvas.Group(fmt.Sprintf(`class="edge" data-a="%d" data-b="%d"`, e.A, e.B))
		canvas.Title(fmt.Sprintf("%s and %s, friends since %s (%s)",
			label[e.A], label[e.B], e.EarliestDate.Format("2006-01-02"),
			humanize.RelTime(e.EarliestDate, now, "ago", "from now")))
		canvas.Line(px(a[0]), px(a[1]), px(b[0]), px(b[1]),
			fmt.Sprintf("stroke:%s;stroke-width:1.5;stroke-linecap:round", color))
		canvas.Gend()
	}
	canvas.Gend()

	radius := px(options.NodeRadius)
	canvas.Gid("nodes")
	for _, n := range v.Nodes {
		p := pos[n.Index]
		x, y := px(p[0]), px(p[1])

		canvas.Group(fmt.Sprintf(`class="node" data-index="%d"`, n.Index))
		canvas.Title(fmt.Sprintf("%s (%d friends)", n.Name, n.Degree))
		if n.Image != "" {
			canvas.Image(x-radius, y-radius, 2*radius, 2*radius, n.Image)
		} else {
			canvas.Circle(x, y, radius, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:0.5", nodeColor, strokeColor))
		}
		if options.ShowLabels && n.Name != "" {
			canvas.Text(x, y+radius+int(options.FontSize)+2, n.Name,
				fmt.Sprintf("fill:%s;font-size:%gpx;font-family:sans-serif;text-anchor:middle", labelColor, options.FontSize))
		}
		canvas.Gend()
	}
	canvas.Gend()

	canvas.End()
	return buf.Bytes(), nil
}

func px(f float64) int {
	return int(math.Round(f))
}
