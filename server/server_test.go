package server

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TFMV/friendgraph/config"
	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/spatial/r2"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Graph.UniqueNames = true
	return New(cfg, "test-version")
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

// newSession creates a graph and returns its API prefix.
func newSession(t *testing.T, srv *Server) string {
	t.Helper()
	w := do(t, srv, "POST", "/api/graphs", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create graph: status = %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["id"] == "" {
		t.Fatal("no id returned")
	}
	return "/api/graphs/" + body["id"]
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)
	newSession(t, srv)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["sessions"] != float64(1) {
		t.Errorf("sessions = %v, want 1", body["sessions"])
	}
}

func TestUnknownGraph(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/api/graphs/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGroupLifecycle(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)

	w := do(t, srv, "POST", base+"/groups", `{"names":["Ada","Ben","Cy"],"date":"2015"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add group: status = %d body %s", w.Code, w.Body)
	}
	var added map[string][]int
	decodeBody(t, w, &added)
	if got := added["indices"]; len(got) != 3 || got[2] != 2 {
		t.Fatalf("indices = %v", got)
	}

	w = do(t, srv, "GET", base+"/nodes/0/degree", "")
	var deg map[string]int
	decodeBody(t, w, &deg)
	if deg["degree"] != 2 {
		t.Errorf("degree = %d, want 2", deg["degree"])
	}

	w = do(t, srv, "GET", base+"/nodes/1/neighbors", "")
	var nb map[string][]int
	decodeBody(t, w, &nb)
	if got := nb["neighbors"]; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("neighbors = %v, want [0 2]", got)
	}

	w = do(t, srv, "DELETE", base+"/nodes/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete node: status = %d", w.Code)
	}
	var removed struct {
		Removed [][2]int `json:"removed"`
	}
	decodeBody(t, w, &removed)
	if len(removed.Removed) != 2 || removed.Removed[0] != [2]int{0, 1} || removed.Removed[1] != [2]int{1, 2} {
		t.Errorf("removed = %v, want [[0 1] [1 2]]", removed.Removed)
	}

	// freed slot: degree is zero, rename is a conflict
	w = do(t, srv, "GET", base+"/nodes/1/degree", "")
	decodeBody(t, w, &deg)
	if w.Code != http.StatusOK || deg["degree"] != 0 {
		t.Errorf("free slot degree: status %d, degree %d", w.Code, deg["degree"])
	}
	w = do(t, srv, "PUT", base+"/nodes/1/name", `{"name":"Ghost"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("rename freed slot: status = %d, want 409", w.Code)
	}

	// the next new node takes the freed slot
	w = do(t, srv, "POST", base+"/nodes", `{"name":"Dee"}`)
	var created map[string]int
	decodeBody(t, w, &created)
	if created["index"] != 1 {
		t.Errorf("Dee got index %d, want reused slot 1", created["index"])
	}
}

func TestErrorMapping(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)
	do(t, srv, "POST", base+"/groups", `{"names":["Ada","Ben"],"date":"2020-01-02"}`)

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"out of range", "GET", base + "/nodes/9/degree", "", http.StatusNotFound},
		{"bad index", "GET", base + "/nodes/x/degree", "", http.StatusBadRequest},
		{"bad json", "POST", base + "/groups", `{"names":`, http.StatusBadRequest},
		{"empty name", "POST", base + "/groups", `{"names":["Ada"," "]}`, http.StatusBadRequest},
		{"empty group", "POST", base + "/groups", `{"names":[]}`, http.StatusBadRequest},
		{"bad date", "POST", base + "/groups", `{"names":["Ada"],"date":"soon"}`, http.StatusBadRequest},
		{"name collision", "PUT", base + "/nodes/1/name", `{"name":"Ada"}`, http.StatusConflict},
		{"negative dt", "POST", base + "/step", `{"dt":-1}`, http.StatusBadRequest},
		{"unknown snapshot", "GET", base + "/snapshot.gif", "", http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, srv, c.method, c.path, c.body)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, c.want, w.Body)
			}
			var body map[string]string
			decodeBody(t, w, &body)
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestPositionAndStep(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)
	do(t, srv, "POST", base+"/nodes", `{"name":"Ada"}`)

	if w := do(t, srv, "PUT", base+"/nodes/0/position", `{"x":100,"y":0}`); w.Code != http.StatusNoContent {
		t.Fatalf("set position: status = %d", w.Code)
	}
	if w := do(t, srv, "PUT", base+"/nodes/0/image", `{"image":"ada.png"}`); w.Code != http.StatusNoContent {
		t.Fatalf("set image: status = %d", w.Code)
	}
	if w := do(t, srv, "POST", base+"/step", `{"dt":0.5,"steps":2}`); w.Code != http.StatusNoContent {
		t.Fatalf("step: status = %d", w.Code)
	}

	w := do(t, srv, "GET", base+"/nodes/0", "")
	var node map[string]any
	decodeBody(t, w, &node)
	x := node["x"].(float64)
	if x >= 100 || x <= 0 {
		t.Errorf("x = %v, want pulled toward the origin", x)
	}
	if node["image"] != "ada.png" {
		t.Errorf("image = %v", node["image"])
	}
}

func TestFeedUpload(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)

	req := httptest.NewRequest("POST", base+"/feed", strings.NewReader("2010,Ada,Ben\n2012,Ben,Cy\n"))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("csv feed: status = %d body %s", w.Code, w.Body)
	}

	w = do(t, srv, "POST", base+"/feed", `{"groups":[{"names":["Cy","Dee"],"date":"2011"}]}`)
	var body map[string]int
	decodeBody(t, w, &body)
	if body["groups"] != 1 || body["nodes"] != 4 {
		t.Errorf("json feed result = %v", body)
	}

	w = do(t, srv, "GET", base, "")
	var view struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	decodeBody(t, w, &view)
	if len(view.Nodes) != 4 || len(view.Edges) != 3 {
		t.Errorf("view has %d nodes and %d edges, want 4 and 3", len(view.Nodes), len(view.Edges))
	}
}

func TestSnapshots(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)
	do(t, srv, "POST", base+"/groups", `{"names":["Ada","Ben","Cy"],"date":"2015"}`)
	do(t, srv, "POST", base+"/step", `{"dt":0.05,"steps":20}`)

	w := do(t, srv, "GET", base+"/snapshot.svg", "")
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("svg content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Error("svg snapshot is not SVG")
	}

	w = do(t, srv, "GET", base+"/snapshot.png?width=320&height=200", "")
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("png snapshot: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 200 {
		t.Errorf("png is %dx%d, want 320x200", b.Dx(), b.Dy())
	}
}

func TestDeleteGraph(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)
	if w := do(t, srv, "DELETE", base, ""); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if w := do(t, srv, "GET", base, ""); w.Code != http.StatusNotFound {
		t.Errorf("deleted graph still served: %d", w.Code)
	}
}

func TestStepAllClampsDT(t *testing.T) {
	srv := testServer(t)
	g := srv.NewGraph()
	srv.Add(g)
	i, _ := g.GetOrCreate("Ada")
	g.SetPosition(i, r2.Vec{X: 100})

	// a long stall must not turn into one huge step
	srv.StepAll(60)

	p, _ := g.Position(i)
	want := 100 - srv.cfg.Simulation.MaxStep*srv.cfg.Simulation.Forces.CenterK*100
	if d := p.X - want; d > 1e-9 || d < -1e-9 {
		t.Errorf("x = %v, want %v after one clamped step", p.X, want)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := testServer(t)
	srv.cfg.Simulation.Tick = config.Duration(time.Millisecond)
	g := srv.NewGraph()
	srv.Add(g)
	i, _ := g.GetOrCreate("Ada")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	g.SetPosition(i, r2.Vec{X: 100})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	if p, _ := g.Position(i); p.X >= 100 {
		t.Errorf("ticker never advanced the graph: x = %v", p.X)
	}
}

func TestViewQuery(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)
	do(t, srv, "POST", base+"/groups", `{"names":["Ada","Ben"],"date":"2010"}`)
	do(t, srv, "POST", base+"/groups", `{"names":["Ben","Cy"],"date":"2018"}`)

	w := do(t, srv, "GET", base+"?before=2012", "")
	var view struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	decodeBody(t, w, &view)
	if len(view.Nodes) != 3 || len(view.Edges) != 1 {
		t.Errorf("before=2012: %d nodes, %d edges; want 3 and 1", len(view.Nodes), len(view.Edges))
	}

	w = do(t, srv, "GET", base+"?min_degree=2", "")
	decodeBody(t, w, &view)
	if len(view.Nodes) != 1 || len(view.Edges) != 0 {
		t.Errorf("min_degree=2: %d nodes, %d edges; want 1 and 0", len(view.Nodes), len(view.Edges))
	}

	if w := do(t, srv, "GET", base+"?before=later", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad before: status = %d, want 400", w.Code)
	}
}

func TestStepRequestIsClamped(t *testing.T) {
	srv := testServer(t)
	huge := newSession(t, srv)
	small := newSession(t, srv)
	for _, base := range []string{huge, small} {
		do(t, srv, "POST", base+"/groups", `{"names":["A","B","C"],"date":"2015"}`)
	}

	if w := do(t, srv, "POST", huge+"/step", `{"dt":1000000,"steps":8}`); w.Code != http.StatusNoContent {
		t.Fatalf("step: status = %d body %s", w.Code, w.Body)
	}
	do(t, srv, "POST", small+"/step", `{"dt":0.05,"steps":8}`)

	var got, want struct {
		Nodes []struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"nodes"`
	}
	w := do(t, srv, "GET", huge, "")
	if w.Code != http.StatusOK {
		t.Fatalf("view: status = %d", w.Code)
	}
	decodeBody(t, w, &got)
	decodeBody(t, do(t, srv, "GET", small, ""), &want)

	if len(got.Nodes) != 3 || len(want.Nodes) != 3 {
		t.Fatalf("got %d and %d nodes, want 3", len(got.Nodes), len(want.Nodes))
	}
	for i := range got.Nodes {
		if got.Nodes[i] != want.Nodes[i] {
			t.Errorf("node %d at %+v, want %+v as with dt = max_step", i, got.Nodes[i], want.Nodes[i])
		}
	}

	if w := do(t, srv, "POST", huge+"/step", `{"dt":0.05,"steps":1001}`); w.Code != http.StatusBadRequest {
		t.Errorf("too many steps: status = %d, want 400", w.Code)
	}
}

func TestSnapshotSizeLimit(t *testing.T) {
	srv := testServer(t)
	base := newSession(t, srv)
	do(t, srv, "POST", base+"/groups", `{"names":["Ada","Ben"],"date":"2015"}`)

	for _, q := range []string{"width=100000&height=100000", "width=8193", "height=0", "width=wide"} {
		if w := do(t, srv, "GET", base+"/snapshot.png?"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
	if w := do(t, srv, "GET", base+"/snapshot.svg?width=8192&height=10", ""); w.Code != http.StatusOK {
		t.Errorf("largest allowed size: status = %d", w.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxBody = 64
	srv := New(cfg, "test-version")
	base := newSession(t, srv)

	big := strings.Repeat("2010,Ada,Ben\n", 20)
	req := httptest.NewRequest("POST", base+"/feed", strings.NewReader(big))
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("feed: status = %d, want 413", w.Code)
	}

	names := `{"names":["` + strings.Repeat("x", 100) + `","y"]}`
	if w := do(t, srv, "POST", base+"/groups", names); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("groups: status = %d, want 413", w.Code)
	}

	if w := do(t, srv, "POST", base+"/groups", `{"names":["Ada","Ben"]}`); w.Code != http.StatusOK {
		t.Errorf("small body: status = %d", w.Code)
	}
}

func TestWriteJSONReportsEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]any{"x": math.Inf(1)})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("empty body on encode failure")
	}
}
