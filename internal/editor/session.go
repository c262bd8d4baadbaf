// Package editor ties the scene, history, physics and plugin runtime into one
// editing session. A Session replaces process-wide editor state: everything a
// command, a plugin or a frame touches hangs off it.
//
// Session methods are not safe for concurrent use. Surfaces that serve several
// goroutines go through Do, which runs one caller at a time.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/blockcad/internal/config"
	"github.com/hpungsan/blockcad/internal/db"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/internal/export"
	"github.com/hpungsan/blockcad/internal/extension"
	"github.com/hpungsan/blockcad/internal/generators"
	"github.com/hpungsan/blockcad/internal/history"
	"github.com/hpungsan/blockcad/internal/physics"
	"github.com/hpungsan/blockcad/internal/scene"
	"github.com/hpungsan/blockcad/sdk"
)

// Journal receives console lines and export records. *db.Sink implements it.
type Journal interface {
	Write(ctx context.Context, level, message string) error
	RecordExport(ctx context.Context, r db.ExportRecord) error
}

// FrameInfo is passed to frame observers after every Frame.
type FrameInfo struct {
	Frame   uint64         `json:"frame"`
	Dt      float32        `json:"dt"`
	Physics physics.Result `json:"physics"`
	Plugins int            `json:"plugins"`
	Blocks  int            `json:"blocks"`
}

// Session is one editing session.
type Session struct {
	mu sync.Mutex

	id      string
	cfg     *config.Config
	logger  *slog.Logger
	journal Journal

	store   *scene.Store
	history *history.Engine
	physics physics.Settings
	console *Console
	runtime *extension.Runtime

	gridSize       float32
	activeColor    sdk.Color
	activeSize     sdk.Vector3
	activeShape    sdk.ShapeType
	activeMaterial sdk.MaterialType

	pending   []string
	frame     uint64
	observers []func(*Session, FrameInfo)

	loader extension.Loader
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger. Console lines are mirrored to it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithJournal records console lines and exports.
func WithJournal(j Journal) Option {
	return func(s *Session) { s.journal = j }
}

// WithLoader replaces the plugin loader. The built-in generators stay reachable
// under their "builtin:" names.
func WithLoader(l extension.Loader) Option {
	return func(s *Session) { s.loader = l }
}

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New starts a session: a scene holding only the baseplate, empty history and
// physics off. A nil cfg uses config.DefaultConfig.
func New(cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		cfg:         cfg,
		store:       scene.New(),
		history:     history.New(cfg.HistoryCapacity),
		physics:     physics.DefaultSettings(),
		console:     NewConsole(cfg.ConsoleLines),
		gridSize:    cfg.GridSize,
		activeColor: sdk.Red,
		activeSize:  sdk.Vector3{X: 1, Y: 1, Z: 1},
		activeShape: sdk.ShapeCube,
	}
	if cfg.Gravity > 0 {
		s.physics.Gravity = cfg.Gravity
	}
	if cfg.MaxStepSeconds > 0 {
		s.physics.MaxStep = cfg.MaxStepSeconds
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = ulid.Make().String()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("session", s.id)

	builtins := extension.NewStaticLoader()
	for name, fn := range generators.Registry() {
		builtins.Register(name, fn)
	}
	loader := extension.Chain{builtins, extension.NativeLoader{}}
	if s.loader != nil {
		loader = extension.Chain{builtins, s.loader}
	}
	s.runtime = extension.NewRuntime(loader, s.logger)

	// The baseplate is part of the initial state, not an undoable edit.
	s.store.Create(scene.Baseplate())
	return s
}

// Do runs fn with exclusive access to the session.
func (s *Session) Do(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Store returns the scene store.
func (s *Session) Store() *scene.Store { return s.store }

// History returns the undo engine.
func (s *Session) History() *history.Engine { return s.history }

// Console returns the console log.
func (s *Session) Console() *Console { return s.console }

// Blocks returns a copy of the current block sequence.
func (s *Session) Blocks() []sdk.Block {
	out := make([]sdk.Block, s.store.Len())
	copy(out, s.store.Blocks())
	return out
}

// --- capability table ---

// Log appends msg to the console and mirrors it to the logger and journal.
func (s *Session) Log(msg string) {
	s.emit(slog.LevelInfo, msg)
}

// Logf formats a console line.
func (s *Session) Logf(format string, args ...any) {
	s.emit(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// warnf logs a console line at warning level, used for recoverable failures.
func (s *Session) warnf(format string, args ...any) {
	s.emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (s *Session) emit(level slog.Level, msg string) {
	s.console.Add(msg)
	s.logger.Log(context.Background(), level, msg)
	if s.journal != nil {
		if err := s.journal.Write(context.Background(), strings.ToLower(level.String()), msg); err != nil {
			s.logger.Warn("journal write failed", "error", err)
		}
	}
}

// Checkpoint records the current scene as an undo step.
func (s *Session) Checkpoint() {
	s.history.Checkpoint(s.store.Blocks())
}

// WakePhysics wakes every block.
func (s *Session) WakePhysics() {
	physics.WakeAll(s.store.Blocks())
}

// NextID exposes the shared id counter.
func (s *Session) NextID() *int { return s.store.NextIDRef() }

// ActiveColor exposes the color used for new blocks.
func (s *Session) ActiveColor() *sdk.Color { return &s.activeColor }

// GridSize exposes the placement grid step.
func (s *Session) GridSize() *float32 { return &s.gridSize }

var _ extension.Capabilities = (*Session)(nil)

// --- editing ---

// Undo restores the previous snapshot.
func (s *Session) Undo() error {
	restored, ok := s.history.Undo(s.store.Blocks())
	if !ok {
		s.Log("Nothing to undo")
		return errors.NewNothingToUndo()
	}
	s.store.Replace(restored)
	s.Log("Undo Executed")
	return nil
}

// Redo re-applies the snapshot after the cursor.
func (s *Session) Redo() error {
	restored, ok := s.history.Redo()
	if !ok {
		s.Log("Nothing to redo")
		return errors.NewNothingToRedo()
	}
	s.store.Replace(restored)
	s.Log("Redo Executed")
	return nil
}

// PlaceBlock stacks a block with the active attributes on the surface point p.
// X and Z snap to the grid; the block's bottom face rests at p.Y.
func (s *Session) PlaceBlock(p sdk.Vector3) int {
	s.Checkpoint()
	pos := scene.SnapToGrid(p, s.gridSize)
	pos.Y = p.Y + s.activeSize.Y/2
	id := s.store.Create(scene.Spec{
		Position: pos,
		Size:     s.activeSize,
		Color:    s.activeColor,
		Shape:    s.activeShape,
		Material: s.activeMaterial,
	})
	s.Logf("Stacked block #%d at [%.1f, %.1f, %.1f]", id, pos.X, pos.Y, pos.Z)
	return id
}

// CreateBlock checkpoints and creates a block from spec.
func (s *Session) CreateBlock(spec scene.Spec) (int, error) {
	if spec.Size.X < 0 || spec.Size.Y < 0 || spec.Size.Z < 0 {
		return 0, errors.NewInvalidRequest("size must not be negative")
	}
	s.Checkpoint()
	id := s.store.Create(spec)
	s.Logf("Created block #%d", id)
	return id, nil
}

// DeleteBlock checkpoints and removes the block with id. An absent id is a
// no-op: it logs a line and records no checkpoint.
func (s *Session) DeleteBlock(id int) error {
	if _, ok := s.store.Find(id); !ok {
		s.Logf("No block #%d", id)
		return nil
	}
	s.Checkpoint()
	s.store.Delete(id)
	s.Logf("Deleted block #%d", id)
	return nil
}

// Clear removes every block as one undo step.
func (s *Session) Clear() {
	s.Checkpoint()
	s.store.Clear()
	s.Log("Scene Cleared")
}

// GenerateBaseplate adds another ground plate.
func (s *Session) GenerateBaseplate() int {
	s.Checkpoint()
	id := s.store.Create(scene.Baseplate())
	s.Log("Baseplate generated at origin.")
	return id
}

// GenerateStairs adds a straight staircase in the active color.
func (s *Session) GenerateStairs() []int {
	s.Checkpoint()
	ids := make([]int, 0, scene.StairSteps)
	for _, spec := range scene.Stairs(s.activeColor) {
		ids = append(ids, s.store.Create(spec))
	}
	s.Log("Stairs generated.")
	return ids
}

// TogglePhysics flips the physics switch and wakes every block.
func (s *Session) TogglePhysics() bool {
	s.physics.Enabled = !s.physics.Enabled
	s.WakePhysics()
	s.Log("Physics Toggled")
	return s.physics.Enabled
}

// PhysicsEnabled reports whether Frame integrates physics.
func (s *Session) PhysicsEnabled() bool { return s.physics.Enabled }

// PhysicsSettings returns the current physics settings.
func (s *Session) PhysicsSettings() physics.Settings { return s.physics }

// --- active attributes ---

// SetActiveColor sets the color for new blocks.
func (s *Session) SetActiveColor(c sdk.Color) {
	s.activeColor = c
	s.Logf("Color set to %d %d %d %d", c.R, c.G, c.B, c.A)
}

// SetActiveSize sets the size for new blocks.
func (s *Session) SetActiveSize(v sdk.Vector3) error {
	if v.X <= 0 || v.Y <= 0 || v.Z <= 0 {
		return errors.NewInvalidRequest("size components must be positive")
	}
	s.activeSize = v
	s.Logf("Size set to %.2f x %.2f x %.2f", v.X, v.Y, v.Z)
	return nil
}

// SetActiveShape sets the shape for new blocks.
func (s *Session) SetActiveShape(sh sdk.ShapeType) {
	s.activeShape = sh
	s.Logf("Shape set to %s", sh)
}

// SetActiveMaterial sets the material for new blocks.
func (s *Session) SetActiveMaterial(m sdk.MaterialType) {
	s.activeMaterial = m
	s.Logf("Material set to %s", m)
}

// SetGridSize sets the placement grid step.
func (s *Session) SetGridSize(step float32) error {
	if step <= 0 {
		return errors.NewInvalidRequest("grid size must be positive")
	}
	s.gridSize = step
	s.Logf("Grid set to %.2f", step)
	return nil
}

// State is a read-only summary of the session.
type State struct {
	ID             string      `json:"id"`
	Blocks         int         `json:"blocks"`
	NextID         int         `json:"next_id"`
	Frame          uint64      `json:"frame"`
	Physics        bool        `json:"physics"`
	GridSize       float32     `json:"grid_size"`
	ActiveColor    sdk.Color   `json:"active_color"`
	ActiveSize     sdk.Vector3 `json:"active_size"`
	ActiveShape    string      `json:"active_shape"`
	ActiveMaterial string      `json:"active_material"`
	HistoryLen     int         `json:"history_len"`
	HistoryCursor  int         `json:"history_cursor"`
	CanUndo        bool        `json:"can_undo"`
	CanRedo        bool        `json:"can_redo"`
	PendingPlugins []string    `json:"pending_plugins,omitempty"`
	Console        []string    `json:"console"`
}

// State summarizes the session.
func (s *Session) State() State {
	return State{
		ID:             s.id,
		Blocks:         s.store.Len(),
		NextID:         s.store.NextID(),
		Frame:          s.frame,
		Physics:        s.physics.Enabled,
		GridSize:       s.gridSize,
		ActiveColor:    s.activeColor,
		ActiveSize:     s.activeSize,
		ActiveShape:    s.activeShape.String(),
		ActiveMaterial: s.activeMaterial.String(),
		HistoryLen:     s.history.Len(),
		HistoryCursor:  s.history.Cursor(),
		CanUndo:        s.history.CanUndoFrom(s.store.Blocks()),
		CanRedo:        s.history.CanRedo(),
		PendingPlugins: append([]string(nil), s.pending...),
		Console:        s.console.Lines(),
	}
}

// --- plugins ---

// ResolvePluginPath maps a plugin argument to a loader path. Built-in names pass
// through; relative module paths resolve against the configured plugin directory.
func (s *Session) ResolvePluginPath(path string) string {
	if strings.HasPrefix(path, "builtin:") || filepath.IsAbs(path) || s.cfg.PluginDir == "" {
		return path
	}
	if filepath.Base(path) == path {
		return filepath.Join(s.cfg.PluginDir, path)
	}
	return path
}

// RunPlugin invokes the plugin at path once against the live scene.
func (s *Session) RunPlugin(ctx context.Context, path string) (extension.Report, error) {
	path = s.ResolvePluginPath(path)
	rep, err := s.runtime.Run(ctx, path, s.store.Ref(), s)
	if err != nil {
		s.warnf("Plugin failed: %v", err)
		return rep, err
	}
	return rep, nil
}

// QueuePlugin schedules path to run at the end of the next Frame. A path that is
// already pending is not queued twice.
func (s *Session) QueuePlugin(path string) {
	for _, p := range s.pending {
		if p == path {
			return
		}
	}
	s.pending = append(s.pending, path)
}

// OnFrame registers fn to run after every Frame, still inside the caller's Do.
func (s *Session) OnFrame(fn func(*Session, FrameInfo)) {
	s.observers = append(s.observers, fn)
}

// Frame advances the session by dt seconds: one physics step, then every queued
// plugin, then the frame observers.
func (s *Session) Frame(ctx context.Context, dt float32) FrameInfo {
	s.frame++
	info := FrameInfo{Frame: s.frame, Dt: dt}
	info.Physics = physics.Step(s.store.Blocks(), dt, s.physics)

	pending := s.pending
	s.pending = nil
	for _, path := range pending {
		if _, err := s.RunPlugin(ctx, path); err == nil {
			info.Plugins++
		}
	}

	info.Blocks = s.store.Len()
	for _, fn := range s.observers {
		fn(s, info)
	}
	return info
}

// Simulate runs n frames at the maximum physics step.
func (s *Session) Simulate(ctx context.Context, n int) FrameInfo {
	var info FrameInfo
	for i := 0; i < n; i++ {
		info = s.Frame(ctx, s.physics.MaxStep)
	}
	return info
}

// --- files ---

// ExportSTL writes visible cubes to path as binary STL. An empty path writes to
// the default exports directory.
func (s *Session) ExportSTL(ctx context.Context, path string) (*export.Output, error) {
	if path == "" {
		var err error
		if path, err = export.DefaultPath("scene", export.STLExt, time.Now()); err != nil {
			return nil, err
		}
	}
	out, err := export.ExportSTLFile(path, s.store.Blocks(), s.cfg)
	if err != nil {
		s.warnf("STL export failed: %v", err)
		return nil, err
	}
	s.Logf("STL Exported Successfully (%d triangles)", out.Triangles)
	s.recordExport(ctx, out)
	return out, nil
}

// SaveScene writes the raw scene to path.
func (s *Session) SaveScene(ctx context.Context, path string) (*export.Output, error) {
	if path == "" {
		var err error
		if path, err = export.DefaultPath("scene", export.SceneExt, time.Now()); err != nil {
			return nil, err
		}
	}
	out, err := export.SaveSceneFile(path, s.sceneDump(), s.cfg)
	if err != nil {
		s.warnf("Scene save failed: %v", err)
		return nil, err
	}
	s.Logf("Scene saved (%d blocks)", out.Blocks)
	s.recordExport(ctx, out)
	return out, nil
}

// LoadScene replaces the scene with the contents of a raw scene file. The
// replacement is one undo step.
func (s *Session) LoadScene(path string) error {
	dump, err := export.LoadSceneFile(path, s.cfg)
	if err != nil {
		s.warnf("Scene load failed: %v", err)
		return err
	}
	s.Restore(dump)
	s.Logf("Scene loaded (%d blocks)", len(dump.Blocks))
	return nil
}

// Restore applies a decoded scene dump as one undo step.
func (s *Session) Restore(dump export.Scene) {
	s.Checkpoint()
	s.store.Replace(dump.Blocks)
	if next := s.store.NextIDRef(); dump.NextID > *next {
		*next = dump.NextID
	}
	if dump.GridSize > 0 {
		s.gridSize = dump.GridSize
	}
	if dump.ActiveColor != (sdk.Color{}) {
		s.activeColor = dump.ActiveColor
	}
}

func (s *Session) sceneDump() export.Scene {
	return export.Scene{
		Header:      export.SceneHeader{SessionID: s.id},
		Blocks:      s.Blocks(),
		NextID:      s.store.NextID(),
		ActiveColor: s.activeColor,
		GridSize:    s.gridSize,
	}
}

func (s *Session) recordExport(ctx context.Context, out *export.Output) {
	s.logger.Info("export written",
		"path", out.Path,
		"format", out.Format,
		"size", humanize.Bytes(uint64(out.Bytes)),
	)
	if s.journal == nil {
		return
	}
	err := s.journal.RecordExport(ctx, db.ExportRecord{
		Path:      out.Path,
		Format:    out.Format,
		Blocks:    out.Blocks,
		Triangles: int(out.Triangles),
		Bytes:     out.Bytes,
	})
	if err != nil {
		s.logger.Warn("journal export record failed", "error", err)
	}
}
