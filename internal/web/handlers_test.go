package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hpungsan/blockcad/internal/db"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/export"
)

func setupTest(t *testing.T, withDB bool) (*Server, *editor.Session) {
	t.Helper()
	opts := Options{Version: "test", Bind: "127.0.0.1", Port: 0}
	if withDB {
		database, err := db.Init(t.TempDir())
		if err != nil {
			t.Fatalf("db.Init: %v", err)
		}
		t.Cleanup(func() { database.Close() })
		opts.DB = database
	}
	s := editor.New(nil, editor.WithID("01TESTSESSION"))
	opts.Session = s

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, s
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// --- GET / ---

func TestHandleReport(t *testing.T) {
	srv, _ := setupTest(t, false)

	w := do(t, srv, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"<h1>blockcad scene</h1>", "<table>", "01TESTSESSION", `action="/command"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'self'") {
		t.Errorf("CSP = %q", csp)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestHandleReportMarkdown_ListsExports(t *testing.T) {
	srv, _ := setupTest(t, true)
	rec := &db.ExportRecord{SessionID: "01TESTSESSION", Path: "/tmp/tower.stl", Format: "stl", Blocks: 3, Triangles: 36, Bytes: 1884}
	if err := db.InsertExport(context.Background(), srv.handlers.db, rec); err != nil {
		t.Fatalf("InsertExport: %v", err)
	}

	w := do(t, srv, httptest.NewRequest("GET", "/report.md", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "## Recent exports") || !strings.Contains(body, "`/tmp/tower.stl`") {
		t.Errorf("exports not listed:\n%s", body)
	}
}

func TestHandleReport_UnknownPath(t *testing.T) {
	srv, _ := setupTest(t, false)

	w := do(t, srv, httptest.NewRequest("GET", "/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- GET /scene ---

func TestHandleScene(t *testing.T) {
	srv, s := setupTest(t, false)
	s.Do(func(s *editor.Session) { s.GenerateStairs() })

	w := do(t, srv, httptest.NewRequest("GET", "/scene", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp SceneResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State.ID != "01TESTSESSION" {
		t.Errorf("State.ID = %q", resp.State.ID)
	}
	if len(resp.Blocks) != 13 || resp.State.Blocks != 13 {
		t.Errorf("blocks = %d/%d, want 13", len(resp.Blocks), resp.State.Blocks)
	}
	if resp.Blocks[0].Shape != "cube" {
		t.Errorf("Shape = %q, want cube", resp.Blocks[0].Shape)
	}
}

// --- GET /scene.stl ---

func TestHandleSceneSTL(t *testing.T) {
	srv, _ := setupTest(t, false)

	w := do(t, srv, httptest.NewRequest("GET", "/scene.stl", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "model/stl" {
		t.Errorf("Content-Type = %q", ct)
	}
	// Baseplate only: 80-byte header, 4-byte count, 50 bytes per triangle.
	want := 84 + export.TrianglesPerCube*50
	if w.Body.Len() != want {
		t.Errorf("body = %d bytes, want %d", w.Body.Len(), want)
	}
}

// --- POST /command ---

func TestHandleCommand_JSON(t *testing.T) {
	srv, _ := setupTest(t, false)
	req := httptest.NewRequest("POST", "/command", strings.NewReader(`{"lines":["place 2 0 2","bogus"]}`))
	req.Header.Set("Content-Type", "application/json")

	w := do(t, srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp CommandResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Blocks != 2 {
		t.Errorf("Blocks = %d, want 2", resp.Blocks)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].Error != "" || !strings.HasPrefix(resp.Results[0].Message, "Stacked block #2") {
		t.Errorf("place result = %+v", resp.Results[0])
	}
	if resp.Results[1].Code != "UNKNOWN_COMMAND" {
		t.Errorf("bogus code = %q, want UNKNOWN_COMMAND", resp.Results[1].Code)
	}
}

func TestHandleCommand_FormRedirects(t *testing.T) {
	srv, s := setupTest(t, false)
	form := url.Values{"line": {"stairs"}}
	req := httptest.NewRequest("POST", "/command", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := do(t, srv, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	var n int
	s.Do(func(s *editor.Session) { n = s.Store().Len() })
	if n != 13 {
		t.Errorf("blocks = %d, want 13", n)
	}
}

func TestHandleCommand_MissingLine(t *testing.T) {
	srv, _ := setupTest(t, false)
	req := httptest.NewRequest("POST", "/command", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	w := do(t, srv, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body.Error.Code)
	}
}

func TestHandleCommand_BadJSONRendersErrorPage(t *testing.T) {
	srv, _ := setupTest(t, false)
	req := httptest.NewRequest("POST", "/command", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")

	w := do(t, srv, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleCommand_MethodNotAllowed(t *testing.T) {
	srv, _ := setupTest(t, false)

	w := do(t, srv, httptest.NewRequest("GET", "/command", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

// --- static ---

func TestStatic(t *testing.T) {
	srv, _ := setupTest(t, false)

	w := do(t, srv, httptest.NewRequest("GET", "/static/style.css", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

// --- GET /ws ---

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(u, header)
}

func readFrame(t *testing.T, conn *websocket.Conn) FrameMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return decodeFrame(t, b)
}

func TestHandleWS_HelloAndCommandBroadcast(t *testing.T) {
	srv, _ := setupTest(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := dialWS(t, ts, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := readFrame(t, conn)
	if hello.Type != "scene" || len(hello.Blocks) != 1 {
		t.Fatalf("hello = %+v, want scene with the baseplate", hello)
	}

	resp, err := http.Post(ts.URL+"/command", "application/json", strings.NewReader(`{"line":"stairs"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	msg := readFrame(t, conn)
	if msg.Type != "scene" || len(msg.Blocks) != 13 {
		t.Errorf("broadcast = type %q with %d blocks, want scene with 13", msg.Type, len(msg.Blocks))
	}
	if msg.Console != "Stairs generated." {
		t.Errorf("Console = %q", msg.Console)
	}
}

func TestHandleWS_RejectsCrossOrigin(t *testing.T) {
	srv, _ := setupTest(t, false)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, resp, err := dialWS(t, ts, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

// --- Run ---

func TestRun_StopsOnCancel(t *testing.T) {
	srv, s := setupTest(t, false)
	srv.HTTP.Addr = "127.0.0.1:0"
	srv.loop.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		var frame uint64
		s.Do(func(s *editor.Session) { frame = s.State().Frame })
		if frame > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame loop did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
