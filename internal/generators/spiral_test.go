package generators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/blockcad/sdk"
)

type recorder struct {
	logs        []string
	checkpoints int
	wakes       int
	nextID      int
	color       sdk.Color
	grid        float32
}

func (r *recorder) host() sdk.Host {
	return sdk.Host{
		Log:         func(m string) { r.logs = append(r.logs, m) },
		PushUndo:    func() { r.checkpoints++ },
		WakePhysics: func() { r.wakes++ },
		NextID:      &r.nextID,
		ActiveColor: &r.color,
		GridSize:    &r.grid,
	}
}

func TestSpiral(t *testing.T) {
	r := &recorder{nextID: 2, color: sdk.White, grid: 1}
	scene := []sdk.Block{{ID: 1}}

	Spiral(&scene, r.host())

	require.Len(t, scene, 1+SpiralSteps)
	assert.Equal(t, 1, r.checkpoints)
	assert.Equal(t, 2+SpiralSteps, r.nextID)
	assert.Equal(t, []string{"Running Spiral Generator...", "Spiral complete! Added 30 blocks."}, r.logs)

	first := scene[1]
	assert.Equal(t, 2, first.ID)
	assert.InDelta(t, SpiralRadius, first.Position.X, 1e-5)
	assert.InDelta(t, 0, first.Position.Z, 1e-5)
	assert.True(t, first.Sleeping)
	assert.Equal(t, sdk.White, first.Color)

	last := scene[SpiralSteps]
	assert.InDelta(t, float32(SpiralSteps-1)*SpiralHeightStep, last.Position.Y, 1e-5)
	assert.Equal(t, sdk.Vector3{X: 3, Y: 0.2, Z: 1}, last.Size)
}

func TestTower(t *testing.T) {
	r := &recorder{nextID: 10, color: sdk.Red, grid: 0.5}
	var scene []sdk.Block

	Tower(&scene, r.host())

	require.Len(t, scene, TowerHeight)
	assert.Equal(t, 1, r.wakes)
	assert.Equal(t, 1, r.checkpoints)
	for _, b := range scene {
		assert.False(t, b.Sleeping)
		assert.Equal(t, float32(0.5), b.Size.Y)
	}
}

func TestRegistry(t *testing.T) {
	reg := Registry()
	assert.Contains(t, reg, "builtin:spiral")
	assert.Contains(t, reg, "builtin:tower")
}
