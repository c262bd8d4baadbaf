package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/blockcad/internal/command"
	"github.com/hpungsan/blockcad/internal/editor"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/internal/export"
	"github.com/hpungsan/blockcad/internal/extension"
	"github.com/hpungsan/blockcad/internal/physics"
	"github.com/hpungsan/blockcad/internal/scene"
	"github.com/hpungsan/blockcad/sdk"
)

// Handlers holds dependencies for MCP tool handlers. Every handler runs inside
// Session.Do.
type Handlers struct {
	session  *editor.Session
	commands *command.Dispatcher
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(session *editor.Session, commands *command.Dispatcher) *Handlers {
	if commands == nil {
		commands = command.NewDispatcher(nil)
	}
	return &Handlers{session: session, commands: commands}
}

// Request types for each tool

// ListRequest represents the arguments for scene_list.
type ListRequest struct {
	VisibleOnly bool `json:"visible_only,omitempty"`
}

// CreateBlockRequest represents the arguments for scene_create_block.
type CreateBlockRequest struct {
	Position []float32 `json:"position"`
	Size     []float32 `json:"size,omitempty"`
	Rotation []float32 `json:"rotation,omitempty"`
	Color    []int     `json:"color,omitempty"`
	Shape    string    `json:"shape,omitempty"`
	Material string    `json:"material,omitempty"`
	Hidden   bool      `json:"hidden,omitempty"`
}

// DeleteBlockRequest represents the arguments for scene_delete_block.
type DeleteBlockRequest struct {
	ID *int `json:"id"`
}

// CommandRequest represents the arguments for scene_command.
type CommandRequest struct {
	Line  string   `json:"line,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// StepRequest represents the arguments for physics_step.
type StepRequest struct {
	Frames int     `json:"frames,omitempty"`
	Dt     float32 `json:"dt,omitempty"`
}

// PluginRequest represents the arguments for plugin_run.
type PluginRequest struct {
	Path  string `json:"path"`
	Queue bool   `json:"queue,omitempty"`
}

// ExportRequest represents the arguments for scene_export.
type ExportRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// Output types

// ListOutput is returned by scene_list.
type ListOutput struct {
	Blocks []scene.BlockView `json:"blocks"`
	Count  int               `json:"count"`
	State  editor.State      `json:"state"`
}

// BlockOutput is returned by tools that create or delete one block.
type BlockOutput struct {
	ID      int    `json:"id"`
	Blocks  int    `json:"blocks"`
	Message string `json:"message"`
}

// HistoryOutput is returned by the history tools.
type HistoryOutput struct {
	Blocks  int    `json:"blocks"`
	Cursor  int    `json:"cursor"`
	Len     int    `json:"len"`
	CanUndo bool   `json:"can_undo"`
	CanRedo bool   `json:"can_redo"`
	Message string `json:"message,omitempty"`
}

// CommandOutput is returned by scene_command.
type CommandOutput struct {
	Results []CommandResult `json:"results"`
	Blocks  int             `json:"blocks"`
}

// CommandResult is the outcome of one command line.
type CommandResult struct {
	Input   string `json:"input"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StepOutput is returned by physics_step.
type StepOutput struct {
	editor.FrameInfo
	Frames  int  `json:"frames"`
	Settled bool `json:"settled"`
}

// ToggleOutput is returned by physics_toggle.
type ToggleOutput struct {
	Enabled bool `json:"enabled"`
}

// PluginOutput is returned by plugin_run.
type PluginOutput struct {
	extension.Report
	Added  int  `json:"added"`
	Queued bool `json:"queued,omitempty"`
	Blocks int  `json:"blocks"`
}

// HandleList handles the scene_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var out ListOutput
	h.session.Do(func(s *editor.Session) {
		blocks := s.Blocks()
		if input.VisibleOnly {
			visible := blocks[:0]
			for _, b := range blocks {
				if b.Visible {
					visible = append(visible, b)
				}
			}
			blocks = visible
		}
		out = ListOutput{Blocks: scene.Views(blocks), Count: len(blocks), State: s.State()}
	})
	return successResult(out)
}

// HandleCreateBlock handles the scene_create_block tool call.
func (h *Handlers) HandleCreateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateBlockRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	pos, err := toVector("position", input.Position)
	if err != nil {
		return errorResult(err), nil
	}

	var out BlockOutput
	h.session.Do(func(s *editor.Session) {
		st := s.State()
		spec := scene.Spec{
			Position: pos,
			Size:     st.ActiveSize,
			Color:    st.ActiveColor,
			Hidden:   input.Hidden,
		}
		spec.Shape, _ = sdk.ParseShape(st.ActiveShape)
		spec.Material, _ = sdk.ParseMaterial(st.ActiveMaterial)
		if err = applyAttributes(&spec, input); err != nil {
			return
		}
		var id int
		if id, err = s.CreateBlock(spec); err != nil {
			return
		}
		out = BlockOutput{ID: id, Blocks: s.Store().Len(), Message: s.Console().Last()}
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleDeleteBlock handles the scene_delete_block tool call.
func (h *Handlers) HandleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteBlockRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == nil {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	var out BlockOutput
	h.session.Do(func(s *editor.Session) {
		if err = s.DeleteBlock(*input.ID); err != nil {
			return
		}
		out = BlockOutput{ID: *input.ID, Blocks: s.Store().Len(), Message: s.Console().Last()}
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleCommand handles the scene_command tool call.
func (h *Handlers) HandleCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CommandRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	lines := input.Lines
	if input.Line != "" {
		lines = append([]string{input.Line}, lines...)
	}
	if len(lines) == 0 {
		return errorResult(errors.NewInvalidRequest("line or lines is required")), nil
	}

	out := CommandOutput{Results: make([]CommandResult, 0, len(lines))}
	h.session.Do(func(s *editor.Session) {
		for _, line := range lines {
			for _, r := range h.commands.Exec(ctx, s, line) {
				cr := CommandResult{Input: r.Input, Message: r.Message}
				if r.Err != nil {
					cr.Error = r.Err.Error()
				}
				out.Results = append(out.Results, cr)
			}
		}
		out.Blocks = s.Store().Len()
	})
	return successResult(out)
}

// HandleUndo handles the history_undo tool call.
func (h *Handlers) HandleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.history(func(s *editor.Session) error { return s.Undo() })
}

// HandleRedo handles the history_redo tool call.
func (h *Handlers) HandleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.history(func(s *editor.Session) error { return s.Redo() })
}

// HandleCheckpoint handles the history_checkpoint tool call.
func (h *Handlers) HandleCheckpoint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.history(func(s *editor.Session) error {
		s.Checkpoint()
		s.Log("Checkpoint recorded")
		return nil
	})
}

func (h *Handlers) history(fn func(*editor.Session) error) (*mcp.CallToolResult, error) {
	var (
		out HistoryOutput
		err error
	)
	h.session.Do(func(s *editor.Session) {
		if err = fn(s); err != nil {
			return
		}
		st := s.State()
		out = HistoryOutput{
			Blocks:  st.Blocks,
			Cursor:  st.HistoryCursor,
			Len:     st.HistoryLen,
			CanUndo: st.CanUndo,
			CanRedo: st.CanRedo,
			Message: s.Console().Last(),
		}
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleStep handles the physics_step tool call.
func (h *Handlers) HandleStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StepRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	frames := input.Frames
	if frames == 0 {
		frames = 1
	}
	if frames < 1 || frames > 100000 {
		return errorResult(errors.NewInvalidRequest("frames must be between 1 and 100000")), nil
	}
	if input.Dt < 0 {
		return errorResult(errors.NewInvalidRequest("dt must not be negative")), nil
	}

	var out StepOutput
	h.session.Do(func(s *editor.Session) {
		dt := input.Dt
		if dt == 0 {
			dt = s.PhysicsSettings().MaxStep
		}
		for i := 0; i < frames; i++ {
			out.FrameInfo = s.Frame(ctx, dt)
		}
		out.Frames = frames
		out.Settled = physics.Settled(s.Blocks())
	})
	return successResult(out)
}

// HandleToggle handles the physics_toggle tool call.
func (h *Handlers) HandleToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out ToggleOutput
	h.session.Do(func(s *editor.Session) {
		out.Enabled = s.TogglePhysics()
	})
	return successResult(out)
}

// HandlePlugin handles the plugin_run tool call.
func (h *Handlers) HandlePlugin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PluginRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	var out PluginOutput
	h.session.Do(func(s *editor.Session) {
		if input.Queue {
			s.QueuePlugin(input.Path)
			out = PluginOutput{Report: extension.Report{Path: input.Path}, Queued: true}
		} else {
			var rep extension.Report
			if rep, err = s.RunPlugin(ctx, input.Path); err != nil {
				return
			}
			out = PluginOutput{Report: rep, Added: rep.Added()}
		}
		out.Blocks = s.Store().Len()
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// HandleExport handles the scene_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var out *export.Output
	h.session.Do(func(s *editor.Session) {
		switch input.Format {
		case "", "stl":
			out, err = s.ExportSTL(ctx, input.Path)
		case "scene":
			out, err = s.SaveScene(ctx, input.Path)
		default:
			err = errors.NewInvalidRequest(fmt.Sprintf("unknown format %q", input.Format))
		}
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

func toVector(name string, v []float32) (sdk.Vector3, error) {
	if len(v) != 3 {
		return sdk.Vector3{}, errors.NewInvalidRequest(fmt.Sprintf("%s must have 3 components", name))
	}
	return sdk.Vector3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func applyAttributes(spec *scene.Spec, input CreateBlockRequest) error {
	if input.Size != nil {
		size, err := toVector("size", input.Size)
		if err != nil {
			return err
		}
		if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
			return errors.NewInvalidRequest("size components must be positive")
		}
		spec.Size = size
	}
	if input.Rotation != nil {
		rot, err := toVector("rotation", input.Rotation)
		if err != nil {
			return err
		}
		spec.Rotation = rot
	}
	if input.Color != nil {
		if len(input.Color) != 3 && len(input.Color) != 4 {
			return errors.NewInvalidRequest("color must have 3 or 4 channels")
		}
		ch := [4]uint8{255, 255, 255, 255}
		for i, c := range input.Color {
			if c < 0 || c > 255 {
				return errors.NewInvalidRequest("color channels must be 0-255")
			}
			ch[i] = uint8(c)
		}
		spec.Color = sdk.Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}
	}
	if input.Shape != "" {
		sh, ok := sdk.ParseShape(strings.ToLower(input.Shape))
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown shape %q", input.Shape))
		}
		spec.Shape = sh
	}
	if input.Material != "" {
		m, ok := sdk.ParseMaterial(strings.ToLower(input.Material))
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown material %q", input.Material))
		}
		spec.Material = m
	}
	return nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cadErr, ok := err.(*errors.CADError); ok {
		errorObj := map[string]any{
			"code":    cadErr.Code,
			"message": cadErr.Message,
			"status":  cadErr.Status,
		}
		if cadErr.Code != errors.ErrInternal && cadErr.Details != nil {
			errorObj["details"] = cadErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
