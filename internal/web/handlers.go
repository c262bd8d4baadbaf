package web

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/hpungsan/blockcad/internal/command"
	"github.com/hpungsan/blockcad/internal/db"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/internal/export"
	"github.com/hpungsan/blockcad/internal/scene"
	"github.com/hpungsan/blockcad/sdk"
)

// maxCommandBody bounds POST /command request bodies.
const maxCommandBody = 64 << 10

// reportExports is how many journal export records the report lists.
const reportExports = 10

// Handlers contains HTTP route handlers for the web inspector.
type Handlers struct {
	session  *editor.Session
	commands *command.Dispatcher
	db       *sql.DB
	renderer *Renderer
	hub      *Hub
	logger   *slog.Logger
	version  string
}

// SceneResponse is the body of GET /scene.
type SceneResponse struct {
	State  editor.State      `json:"state"`
	Blocks []scene.BlockView `json:"blocks"`
}

// CommandResponse is the JSON body of POST /command.
type CommandResponse struct {
	Results []CommandResult `json:"results"`
	Blocks  int             `json:"blocks"`
}

// CommandResult is the outcome of one command line.
type CommandResult struct {
	Input   string `json:"input"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleReport handles GET / and renders the scene report page.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	md := BuildReport(h.reportInput(r))
	h.renderer.renderPage(w, http.StatusOK, "report", ReportPageData{
		PageData: PageData{
			Title:   "Scene",
			Version: h.version,
		},
		RenderedHTML: renderMarkdown(md),
	})
}

// HandleReportMarkdown handles GET /report.md and returns the report markdown.
func (h *Handlers) HandleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = io.WriteString(w, BuildReport(h.reportInput(r)))
}

func (h *Handlers) reportInput(r *http.Request) ReportInput {
	in := ReportInput{Version: h.version}
	h.session.Do(func(s *editor.Session) {
		in.State = s.State()
		in.Blocks = s.Blocks()
	})
	if h.db != nil {
		exports, err := db.ListExports(r.Context(), h.db, reportExports)
		if err != nil {
			h.logger.Warn("failed to list exports", "error", err)
		}
		in.Exports = exports
	}
	return in
}

// HandleScene handles GET /scene with the session state and blocks as JSON.
func (h *Handlers) HandleScene(w http.ResponseWriter, r *http.Request) {
	var resp SceneResponse
	h.session.Do(func(s *editor.Session) {
		resp = SceneResponse{State: s.State(), Blocks: scene.Views(s.Blocks())}
	})
	renderJSON(w, http.StatusOK, resp)
}

// HandleSceneSTL handles GET /scene.stl with the visible cubes as binary STL.
func (h *Handlers) HandleSceneSTL(w http.ResponseWriter, r *http.Request) {
	var blocks []sdk.Block
	h.session.Do(func(s *editor.Session) { blocks = s.Blocks() })

	// WriteSTL patches the count in place, so encode to a seekable temp file.
	f, err := os.CreateTemp("", "blockcad-*.stl")
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if _, err := export.WriteSTL(f, blocks); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		h.renderer.renderError(w, r, errors.NewInternal(err))
		return
	}
	w.Header().Set("Content-Type", "model/stl")
	w.Header().Set("Content-Disposition", `attachment; filename="scene.stl"`)
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("stl download interrupted", "error", err)
	}
}

// HandleCommand handles POST /command by running command lines from a JSON body
// ({"line": "..."} or {"lines": [...]}) or a form field named line.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBody)

	var lines []string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Line  string   `json:"line"`
			Lines []string `json:"lines"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
			return
		}
		if body.Line != "" {
			lines = append(lines, body.Line)
		}
		lines = append(lines, body.Lines...)
	} else {
		if err := r.ParseForm(); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
			return
		}
		if line := r.FormValue("line"); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("line is required"))
		return
	}

	resp := CommandResponse{Results: make([]CommandResult, 0, len(lines))}
	h.session.Do(func(s *editor.Session) {
		for _, line := range lines {
			for _, res := range h.commands.Exec(r.Context(), s, line) {
				cr := CommandResult{Input: res.Input, Message: res.Message}
				if res.Err != nil {
					cr.Error = res.Err.Error()
					if e, ok := res.Err.(*errors.CADError); ok {
						cr.Code = string(e.Code)
					}
				}
				resp.Results = append(resp.Results, cr)
			}
		}
		resp.Blocks = s.Store().Len()
		h.broadcastScene(s)
	})

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, resp)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleWS handles GET /ws with a stream of FrameMessage JSON text messages. The
// first message always carries the full block list.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	var hello []byte
	h.session.Do(func(s *editor.Session) {
		hello, _ = json.Marshal(h.sceneMessage(s))
	})
	h.hub.serveClient(conn, hello)
}

func (h *Handlers) sceneMessage(s *editor.Session) FrameMessage {
	st := s.State()
	return FrameMessage{
		Type:    "scene",
		Frame:   editor.FrameInfo{Frame: st.Frame, Blocks: st.Blocks},
		Blocks:  scene.Views(s.Blocks()),
		Console: s.Console().Last(),
	}
}

// broadcastScene pushes the full scene to every client. Callers hold Session.Do.
func (h *Handlers) broadcastScene(s *editor.Session) {
	if h.hub.Clients() == 0 {
		return
	}
	b, err := json.Marshal(h.sceneMessage(s))
	if err != nil {
		return
	}
	h.hub.Broadcast(b)
}
