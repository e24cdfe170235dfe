package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TFMV/friendgraph/graph"
	"github.com/TFMV/friendgraph/ingest"
	"github.com/TFMV/friendgraph/render"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	layoutOutput    string
	layoutFormat    string
	layoutSteps     int
	layoutDT        float64
	layoutTolerance float64
	layoutWidth     int
	layoutHeight    int
	layoutNoLabels  bool
)

var layoutCmd = &cobra.Command{
	Use:   "layout FEED",
	Short: "Settle the layout of a feed and render a snapshot",
	Long: `Reads a .json or .csv feed of friend groups, runs the simulation until it
settles and writes a snapshot. The format follows the output extension
unless --format is given; "-" writes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runLayout,
}

func init() {
	f := layoutCmd.Flags()
	f.StringVarP(&layoutOutput, "output", "o", "", "output path (default friends.<format>)")
	f.StringVarP(&layoutFormat, "format", "f", "", "svg, png, json, ascii or dot")
	f.IntVar(&layoutSteps, "steps", 5000, "maximum simulation steps")
	f.Float64Var(&layoutDT, "dt", 0, "seconds per step (default simulation.max_step)")
	f.Float64Var(&layoutTolerance, "tolerance", 0.01, "stop once no node moves further than this in a step")
	f.IntVar(&layoutWidth, "width", 0, "override render.width")
	f.IntVar(&layoutHeight, "height", 0, "override render.height")
	f.BoolVar(&layoutNoLabels, "no-labels", false, "omit node names")
}

func runLayout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format, output := resolveOutput(layoutFormat, layoutOutput)
	renderer, err := render.GetRenderer(format)
	if err != nil {
		return err
	}

	groups, err := ingest.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("load feed: %w", err)
	}
	g := graph.New(cfg.GraphOptions()...)
	if err := ingest.Apply(g, groups); err != nil {
		return fmt.Errorf("apply feed: %w", err)
	}

	dt := layoutDT
	if dt <= 0 {
		dt = cfg.Simulation.MaxStep
	}
	start := time.Now()
	steps, err := g.Settle(dt, layoutSteps, layoutTolerance)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	opts := render.OptionsFromConfig(format, cfg.Render)
	if layoutWidth > 0 {
		opts.Width = layoutWidth
	}
	if layoutHeight > 0 {
		opts.Height = layoutHeight
	}
	opts.ShowLabels = !layoutNoLabels

	v := g.View()
	data, err := renderer.Render(v, opts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if output == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	out := cmd.ErrOrStderr()
	status := good.Sprint("settled")
	if steps >= layoutSteps {
		status = warn.Sprint("still moving")
	}
	fmt.Fprintf(out, "%s %d people, %d friendships: %s after %d steps (%s)\n",
		brand.Sprint("friendgraph"), len(v.Nodes), len(v.Edges), status, steps,
		time.Since(start).Round(time.Millisecond))
	if earliest, latest, ok := v.DateRange(); ok {
		subtle.Fprintf(out, "  friendships from %s to %s\n",
			humanize.Time(earliest), humanize.Time(latest))
	}
	subtle.Fprintf(out, "  wrote %s (%s)\n", output, humanize.Bytes(uint64(len(data))))
	return nil
}

// resolveOutput fills in whichever of format and output is missing.
func resolveOutput(format, output string) (string, string) {
	switch {
	case format == "" && output == "":
		return "svg", "friends.svg"
	case format == "" && output == "-":
		return "ascii", output
	case format == "":
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), "."), output
	case output == "":
		return format, "friends." + format
	default:
		return format, output
	}
}
