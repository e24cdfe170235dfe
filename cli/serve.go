package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/TFMV/friendgraph/ingest"
	"github.com/TFMV/friendgraph/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveFeed  string
	serveWatch bool
	serveBind  string
	servePort  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and simulation ticker",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFeed, "feed", "", "preload a .json or .csv feed as a graph session")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-apply the feed whenever it changes")
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "override server.bind")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override server.port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveBind != "" {
		cfg.Server.Bind = serveBind
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveWatch && serveFeed == "" {
		return fmt.Errorf("--watch needs --feed")
	}

	var opts []server.Option
	if debug {
		opts = append(opts, server.WithRequestLog())
	}
	srv := server.New(cfg, VersionString(), opts...)

	out := cmd.ErrOrStderr()
	brand.Fprintf(out, "friendgraph %s\n", Version)
	subtle.Fprintf(out, "  listening on http://%s\n", cfg.ListenAddr())

	var preload func(groups []ingest.Group)
	if serveFeed != "" {
		groups, err := ingest.ParseFile(serveFeed)
		if err != nil {
			return fmt.Errorf("load feed: %w", err)
		}
		g := srv.NewGraph()
		if err := ingest.Apply(g, groups); err != nil {
			return fmt.Errorf("apply feed: %w", err)
		}
		id := srv.Add(g)
		good.Fprintf(out, "  feed %s: %d people, %d friendships\n", serveFeed, g.Len(), len(g.Edges()))
		subtle.Fprintf(out, "  graph id %s\n", id)

		preload = func(groups []ingest.Group) {
			if err := ingest.Apply(g, groups); err != nil {
				log.Printf("watch: apply %s: %v", serveFeed, err)
				return
			}
			log.Printf("watch: reloaded %s (%d groups, %d people)", serveFeed, len(groups), g.Len())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.ListenAndServe(ctx) })
	eg.Go(func() error { return srv.Run(ctx) })
	if serveWatch {
		eg.Go(func() error {
			return ingest.Watch(ctx, serveFeed, ingest.DefaultDebounce, preload, func(err error) {
				warn.Fprintf(out, "watch: %v\n", err)
			})
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "shut down")
	return nil
}
