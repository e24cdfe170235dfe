// Package server hosts friend graphs over HTTP and advances their layouts
// on a fixed tick.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/TFMV/friendgraph/config"
	"github.com/TFMV/friendgraph/graph"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server is the friendgraph HTTP API server. It owns a set of graph
// sessions keyed by id.
type Server struct {
	cfg     config.Config
	version string
	started time.Time
	router  chi.Router
	debug   bool

	mu       sync.RWMutex
	sessions map[string]*graph.Graph
}

// Option configures a Server.
type Option func(*Server)

// WithRequestLog logs every request through chi's logger middleware.
func WithRequestLog() Option {
	return func(s *Server) {
		s.debug = true
	}
}

// New creates a new Server using cfg for every graph it creates.
func New(cfg config.Config, version string, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		version:  version,
		started:  time.Now(),
		sessions: make(map[string]*graph.Graph),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewGraph builds an empty graph configured from the server's settings.
func (s *Server) NewGraph() *graph.Graph {
	return graph.New(s.cfg.GraphOptions()...)
}

// Add registers g as a new session and returns its id.
func (s *Server) Add(g *graph.Graph) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = g
	s.mu.Unlock()
	return id
}

// Get returns the session with the given id.
func (s *Server) Get(id string) (*graph.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.sessions[id]
	return g, ok
}

// Remove drops a session. It reports whether the session existed.
func (s *Server) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// IDs returns the session ids in sorted order.
func (s *Server) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) snapshot() []*graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs := make([]*graph.Graph, 0, len(s.sessions))
	for _, g := range s.sessions {
		gs = append(gs, g)
	}
	return gs
}

// StepAll advances every session by dt seconds, clamped to max_step.
func (s *Server) StepAll(dt float64) {
	dt = s.clampDT(dt)
	for _, g := range s.snapshot() {
		if err := g.Update(dt); err != nil {
			log.Printf("ticker: update failed: %v", err)
		}
	}
}

func (s *Server) clampDT(dt float64) float64 {
	return min(dt, s.cfg.Simulation.MaxStep)
}

// Run advances all sessions once per tick, using the real time elapsed
// since the previous tick as dt. It returns when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	tick := s.cfg.Simulation.Tick.Std()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	log.Printf("ticker: stepping every %v (max dt %gs)", tick, s.cfg.Simulation.MaxStep)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Printf("ticker: stopped")
			return nil
		case now := <-ticker.C:
			s.StepAll(now.Sub(last).Seconds())
			last = now
		}
	}
}

// ListenAndServe serves the API on the configured address until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr(),
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Printf("server: shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestSize(s.cfg.Server.MaxBody))
	if s.debug {
		r.Use(middleware.Logger)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/graphs", s.handleCreateGraph)
		r.Route("/graphs/{graphID}", func(r chi.Router) {
			r.Use(s.withGraph)
			r.Get("/", s.handleView)
			r.Delete("/", s.handleDeleteGraph)
			r.Post("/groups", s.handleAddGroup)
			r.Post("/feed", s.handleFeed)
			r.Post("/nodes", s.handleCreateNode)
			r.Get("/nodes/{index}", s.handleGetNode)
			r.Delete("/nodes/{index}", s.handleDeleteNode)
			r.Get("/nodes/{index}/degree", s.handleDegree)
			r.Get("/nodes/{index}/neighbors", s.handleNeighbors)
			r.Put("/nodes/{index}/name", s.handleRename)
			r.Put("/nodes/{index}/position", s.handleSetPosition)
			r.Put("/nodes/{index}/image", s.handleSetImage)
			r.Post("/step", s.handleStep)
			r.Get("/snapshot.{format}", s.handleSnapshot)
		})
	})

	s.router = r
}
