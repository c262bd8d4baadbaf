package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/blockcad/sdk"
)

func unitCube(x, y, z float32) Spec {
	return Spec{
		Position: sdk.Vector3{X: x, Y: y, Z: z},
		Size:     sdk.Vector3{X: 1, Y: 1, Z: 1},
		Color:    sdk.Red,
		Shape:    sdk.ShapeCube,
	}
}

func TestCreate_AssignsIncreasingIDs(t *testing.T) {
	s := New()

	a := s.Create(unitCube(0, 0, 0))
	b := s.Create(unitCube(1, 0, 0))

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 3, s.NextID())
	assert.Equal(t, 2, s.Len())
}

func TestCreate_Defaults(t *testing.T) {
	s := New()
	id := s.Create(unitCube(0, 5, 0))

	b, ok := s.Find(id)
	require.True(t, ok)
	assert.True(t, b.Visible)
	assert.True(t, b.Sleeping)
	assert.Equal(t, sdk.Vector3{}, b.Velocity)
	assert.Equal(t, sdk.Vector3{X: 0, Y: 5, Z: 0}, b.Position)
	assert.Equal(t, sdk.Red, b.Color)
}

func TestCreate_Hidden(t *testing.T) {
	s := New()
	spec := unitCube(0, 0, 0)
	spec.Hidden = true
	id := s.Create(spec)

	b, _ := s.Find(id)
	assert.False(t, b.Visible)
}

func TestDelete(t *testing.T) {
	s := New()
	a := s.Create(unitCube(0, 0, 0))
	b := s.Create(unitCube(1, 0, 0))
	c := s.Create(unitCube(2, 0, 0))

	assert.True(t, s.Delete(b))
	assert.Equal(t, 2, s.Len())

	ids := []int{}
	for _, blk := range s.Blocks() {
		ids = append(ids, blk.ID)
	}
	assert.Equal(t, []int{a, c}, ids)
}

func TestDelete_AbsentIsNoOp(t *testing.T) {
	s := New()
	s.Create(unitCube(0, 0, 0))

	assert.False(t, s.Delete(99))
	assert.Equal(t, 1, s.Len())
}

func TestDelete_DoesNotReuseIDs(t *testing.T) {
	s := New()
	id := s.Create(unitCube(0, 0, 0))
	s.Delete(id)

	next := s.Create(unitCube(0, 0, 0))
	assert.NotEqual(t, id, next)
}

func TestClear_KeepsCounter(t *testing.T) {
	s := New()
	s.Create(unitCube(0, 0, 0))
	s.Create(unitCube(0, 0, 0))
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.Blocks())
	assert.Equal(t, 3, s.Create(unitCube(0, 0, 0)))
}

func TestReplace_CopiesAndRaisesCounter(t *testing.T) {
	s := New()
	src := []Block{{ID: 10}, {ID: 4}}

	s.Replace(src)
	src[0].ID = 999

	assert.Equal(t, 10, s.Blocks()[0].ID)
	assert.Equal(t, 11, s.NextID())
}

func TestReplace_NeverLowersCounter(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.Create(unitCube(0, 0, 0))
	}
	s.Replace([]Block{{ID: 2}})

	assert.Equal(t, 6, s.NextID())
}

func TestRef_AppendsThroughPointer(t *testing.T) {
	s := New()
	ref := s.Ref()
	next := s.NextIDRef()

	*ref = append(*ref, Block{ID: *next})
	*next++

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.NextID())
}

func TestBaseplate(t *testing.T) {
	s := New()
	id := s.Create(Baseplate())

	b, _ := s.Find(id)
	// Top face sits exactly on the floor.
	assert.InDelta(t, 0, b.Max().Y, 1e-6)
	assert.Equal(t, sdk.ShapeCube, b.Shape)
	assert.True(t, b.Sleeping)
}

func TestStairs(t *testing.T) {
	specs := Stairs(sdk.White)

	require.Len(t, specs, StairSteps)
	assert.Equal(t, sdk.Vector3{X: 0, Y: 0, Z: 0}, specs[0].Position)
	assert.Equal(t, sdk.Vector3{X: 5.5, Y: 2.75, Z: 0}, specs[11].Position)
	for _, sp := range specs {
		assert.Equal(t, sdk.Vector3{X: 2, Y: 0.5, Z: 1}, sp.Size)
		assert.Equal(t, sdk.White, sp.Color)
	}
}

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		name string
		in   sdk.Vector3
		step float32
		want sdk.Vector3
	}{
		{"unit grid", sdk.Vector3{X: 1.4, Y: 2.6, Z: -0.4}, 1, sdk.Vector3{X: 1, Y: 3, Z: 0}},
		{"half grid", sdk.Vector3{X: 1.3, Y: 0.2, Z: 0.8}, 0.5, sdk.Vector3{X: 1.5, Y: 0, Z: 1}},
		{"zero step", sdk.Vector3{X: 1.3, Y: 0.2, Z: 0.8}, 0, sdk.Vector3{X: 1.3, Y: 0.2, Z: 0.8}},
		{"negative step", sdk.Vector3{X: 1.3, Y: 0.2, Z: 0.8}, -1, sdk.Vector3{X: 1.3, Y: 0.2, Z: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SnapToGrid(tt.in, tt.step)
			assert.InDelta(t, tt.want.X, got.X, 1e-6)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-6)
			assert.InDelta(t, tt.want.Z, got.Z, 1e-6)
		})
	}
}

func TestViews(t *testing.T) {
	s := New()
	s.Create(Spec{
		Position: sdk.Vector3{X: 1, Y: 2, Z: 3},
		Size:     sdk.Vector3{X: 1, Y: 1, Z: 1},
		Color:    sdk.White,
		Shape:    sdk.ShapeCone,
		Material: sdk.MaterialGlass,
	})

	views := Views(s.Blocks())
	require.Len(t, views, 1)
	v := views[0]
	assert.Equal(t, [3]float32{1, 2, 3}, v.Position)
	assert.Equal(t, [4]uint8{255, 255, 255, 255}, v.Color)
	assert.Equal(t, sdk.ShapeCone.String(), v.Shape)
	assert.Equal(t, sdk.MaterialGlass.String(), v.Material)
	assert.True(t, v.Sleeping)

	assert.NotNil(t, Views(nil))
}
