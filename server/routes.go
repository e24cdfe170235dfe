package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/friendgraph/graph"
	"github.com/TFMV/friendgraph/ingest"
	"github.com/TFMV/friendgraph/render"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/spatial/r2"
)

type ctxKey struct{}

const (
	// maxStepsPerRequest bounds the work one POST .../step can queue.
	maxStepsPerRequest = 1000
	// maxSnapshotSide bounds snapshot width and height in pixels.
	maxSnapshotSide = 8192
)

// withGraph resolves {graphID} and stores the session in the request context.
func (s *Server) withGraph(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g, ok := s.Get(chi.URLParam(r, "graphID"))
		if !ok {
			writeError(w, http.StatusNotFound, "graph not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, g)))
	})
}

func graphFrom(r *http.Request) *graph.Graph {
	return r.Context().Value(ctxKey{}).(*graph.Graph)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("server: encode response: %v", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"encode response failed"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps graph errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrFreedIndex), errors.Is(err, graph.ErrNameCollision):
		return http.StatusConflict
	case errors.Is(err, graph.ErrEmptyName), errors.Is(err, graph.ErrEmptyGroup),
		errors.Is(err, graph.ErrInvalidPosition), errors.Is(err, graph.ErrInvalidStep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeGraphError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// readBody reads the request body, which the RequestSize middleware caps
// at server.max_body bytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "read body failed")
		return nil, false
	}
	return body, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// sizeParam reads an optional pixel dimension from the query string.
func sizeParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxSnapshotSide {
		return 0, fmt.Errorf("%s must be an integer between 1 and %d", name, maxSnapshotSide)
	}
	return n, nil
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return i, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"sessions": len(s.IDs()),
	})
}

func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	id := s.Add(s.NewGraph())
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// queryView applies the optional before and min_degree query parameters
// to the current view of the graph.
func queryView(r *http.Request) (graph.View, error) {
	v := graphFrom(r).View()
	q := r.URL.Query()
	if before := q.Get("before"); before != "" {
		t, err := ingest.ParseDate(before)
		if err != nil {
			return v, err
		}
		v = v.Before(t)
	}
	if md := q.Get("min_degree"); md != "" {
		d, err := strconv.Atoi(md)
		if err != nil {
			return v, fmt.Errorf("min_degree must be an integer")
		}
		v = v.MinDegree(d)
	}
	return v, nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	v, err := queryView(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	s.Remove(chi.URLParam(r, "graphID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
		Date  string   `json:"date"`
	}
	if !decode(w, r, &req) {
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		d, err := ingest.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = d
	}

	indices, err := graphFrom(r).AddFriendGroup(req.Names, date)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"indices": indices})
}

// handleFeed applies a whole feed document. The body format follows the
// Content-Type: text/csv for CSV, JSON otherwise.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	format := "json"
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		format = "csv"
	}
	parser, err := ingest.GetParser(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	groups, err := parser.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g := graphFrom(r)
	if err := ingest.Apply(g, groups); err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"groups": len(groups), "nodes": g.Len()})
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	i, err := graphFrom(r).GetOrCreate(req.Name)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"index": i})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	n, err := graphFrom(r).Node(i)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"index": i,
		"name":  n.Name,
		"image": n.Image,
		"x":     n.Position.X,
		"y":     n.Position.Y,
	})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	removed, err := graphFrom(r).DeleteNode(i)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]graph.Pair{"removed": removed})
}

func (s *Server) handleDegree(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	d, err := graphFrom(r).Degree(i)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"degree": d})
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	ns, err := graphFrom(r).Neighbors(i)
	if err != nil {
		writeGraphError(w, err)
		return
	}
	if ns == nil {
		ns = []int{}
	}
	writeJSON(w, http.StatusOK, map[string][]int{"neighbors": ns})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := graphFrom(r).Rename(i, req.Name); err != nil {
		writeGraphError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := graphFrom(r).SetPosition(i, r2.Vec{X: req.X, Y: req.Y}); err != nil {
		writeGraphError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetImage(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Image string `json:"image"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := graphFrom(r).SetImage(i, req.Image); err != nil {
		writeGraphError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DT    float64 `json:"dt"`
		Steps int     `json:"steps"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Steps <= 0 {
		req.Steps = 1
	}
	if req.Steps > maxStepsPerRequest {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("steps must be at most %d", maxStepsPerRequest))
		return
	}
	dt := s.clampDT(req.DT)
	g := graphFrom(r)
	for n := 0; n < req.Steps; n++ {
		if err := g.Update(dt); err != nil {
			writeGraphError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

var contentTypes = map[string]string{
	"svg":   "image/svg+xml",
	"png":   "image/png",
	"json":  "application/json",
	"ascii": "text/plain; charset=utf-8",
	"dot":   "text/vnd.graphviz",
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	ct, ok := contentTypes[format]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unsupported snapshot format %q", format))
		return
	}

	v, err := queryView(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := render.OptionsFromConfig(format, s.cfg.Render)
	if opts.Width, err = sizeParam(r, "width", opts.Width); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Height, err = sizeParam(r, "height", opts.Height); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts.ShowLabels = r.URL.Query().Get("labels") != "off"

	out, err := render.Generate(v, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Write(out)
}
