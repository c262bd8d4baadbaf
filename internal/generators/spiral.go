// Package generators holds procedural builders that run through the plugin
// boundary. The same functions back the built-in "builtin:" plugins and the
// standalone modules under plugins/.
package generators

import (
	"github.com/chewxy/math32"

	"github.com/hpungsan/blockcad/sdk"
)

// Spiral staircase parameters.
const (
	SpiralSteps      = 30
	SpiralRadius     = 5.0
	SpiralHeightStep = 0.5
	spiralTurn       = 0.4
)

// Spiral appends a spiral staircase around the origin in the host's active color.
// It checkpoints once so the whole staircase undoes in one step. Steps are
// created asleep so enabling physics does not collapse them.
func Spiral(scene *[]sdk.Block, host sdk.Host) {
	host.Log("Running Spiral Generator...")
	host.PushUndo()

	for i := 0; i < SpiralSteps; i++ {
		angle := float32(i) * spiralTurn
		*scene = append(*scene, sdk.Block{
			ID: host.AllocID(),
			Position: sdk.Vector3{
				X: math32.Cos(angle) * SpiralRadius,
				Y: float32(i) * SpiralHeightStep,
				Z: math32.Sin(angle) * SpiralRadius,
			},
			Size:     sdk.Vector3{X: 3, Y: 0.2, Z: 1},
			Rotation: sdk.Vector3{Y: -angle * (180 / math32.Pi)},
			Color:    *host.ActiveColor,
			Shape:    sdk.ShapeCube,
			Material: sdk.MaterialDefault,
			Visible:  true,
			Sleeping: true,
		})
	}

	host.Logf("Spiral complete! Added %d blocks.", SpiralSteps)
}

// Registry maps built-in plugin names to their entry points.
func Registry() map[string]sdk.EntryFunc {
	return map[string]sdk.EntryFunc{
		"builtin:spiral": Spiral,
		"builtin:tower":  Tower,
	}
}

// TowerHeight is the number of blocks Tower stacks.
const TowerHeight = 8

// Tower drops a column of awake unit cubes above the grid origin and wakes
// physics so they fall and stack.
func Tower(scene *[]sdk.Block, host sdk.Host) {
	host.PushUndo()
	step := float32(1)
	if host.GridSize != nil && *host.GridSize > 0 {
		step = *host.GridSize
	}
	for i := 0; i < TowerHeight; i++ {
		*scene = append(*scene, sdk.Block{
			ID:       host.AllocID(),
			Position: sdk.Vector3{Y: 2 + float32(i)*1.5*step},
			Size:     sdk.Vector3{X: step, Y: step, Z: step},
			Color:    *host.ActiveColor,
			Shape:    sdk.ShapeCube,
			Visible:  true,
		})
	}
	host.WakePhysics()
	host.Logf("Tower dropped (%d blocks).", TowerHeight)
}
