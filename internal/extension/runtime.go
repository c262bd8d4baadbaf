package extension

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/sdk"
)

// Capabilities is what the host exposes to a running plugin. Runtime flattens it
// into an sdk.Host so plugins depend only on the sdk package.
type Capabilities interface {
	Log(msg string)
	Checkpoint()
	WakePhysics()
	NextID() *int
	ActiveColor() *sdk.Color
	GridSize() *float32
}

// HostTable builds the capability table passed across the plugin boundary.
func HostTable(caps Capabilities) sdk.Host {
	return sdk.Host{
		Log:         caps.Log,
		PushUndo:    caps.Checkpoint,
		WakePhysics: caps.WakePhysics,
		NextID:      caps.NextID(),
		ActiveColor: caps.ActiveColor(),
		GridSize:    caps.GridSize(),
	}
}

// Report describes one completed invocation.
type Report struct {
	Path         string        `json:"path"`
	BlocksBefore int           `json:"blocks_before"`
	BlocksAfter  int           `json:"blocks_after"`
	Checkpoints  int           `json:"checkpoints"`
	Duration     time.Duration `json:"duration"`
}

// Added returns the net number of blocks the plugin appended.
func (r Report) Added() int {
	return r.BlocksAfter - r.BlocksBefore
}

// Runtime resolves and invokes plugin entry points.
type Runtime struct {
	loader Loader
	logger *slog.Logger
}

// NewRuntime creates a Runtime. A nil logger discards runtime diagnostics.
func NewRuntime(loader Loader, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runtime{loader: loader, logger: logger}
}

// Run loads the module at path, resolves RunPlugin and invokes it exactly once on
// the calling goroutine.
//
// Load failures leave scene untouched. A panic inside the entry point is
// recovered and returned as PLUGIN_PANICKED; whatever the plugin did to the scene
// before panicking is kept. Run does not checkpoint on the plugin's behalf.
func (r *Runtime) Run(ctx context.Context, path string, scene *[]sdk.Block, caps Capabilities) (rep Report, err error) {
	rep.Path = path
	if scene == nil {
		return rep, errors.NewInvalidRequest("scene is required")
	}
	if err := ctx.Err(); err != nil {
		return rep, errors.NewInternal(err)
	}

	entry, err := r.loader.Load(path)
	if err != nil {
		r.logger.Warn("plugin load failed", "path", path, "error", err)
		return rep, err
	}

	counting := &countingCaps{Capabilities: caps}
	host := HostTable(counting)
	rep.BlocksBefore = len(*scene)

	start := time.Now()
	defer func() {
		rep.Duration = time.Since(start)
		rep.BlocksAfter = len(*scene)
		rep.Checkpoints = counting.checkpoints
		if rec := recover(); rec != nil {
			r.logger.Error("plugin panicked", "path", path, "panic", rec)
			err = errors.NewPluginPanicked(path, rec)
			return
		}
		r.logger.Info("plugin finished",
			"path", path,
			"added", rep.Added(),
			"checkpoints", rep.Checkpoints,
			"duration", rep.Duration,
		)
	}()

	entry(scene, host)
	return rep, nil
}

// countingCaps counts PushUndo calls for the Report.
type countingCaps struct {
	Capabilities
	checkpoints int
}

func (c *countingCaps) Checkpoint() {
	c.checkpoints++
	c.Capabilities.Checkpoint()
}
