// Package scene owns the ordered collection of placed blocks.
//
// The store does not checkpoint history on its own. Callers checkpoint before a
// batch of edits so the whole batch is one undo step.
package scene

import (
	"github.com/chewxy/math32"

	"github.com/hpungsan/blockcad/sdk"
)

// Block is the scene entity. It is the same type plugins see.
type Block = sdk.Block

// Spec describes a block to create. Position, Size, Color and Shape are required;
// the caller is responsible for rejecting negative sizes.
type Spec struct {
	Position sdk.Vector3
	Size     sdk.Vector3
	Rotation sdk.Vector3
	Color    sdk.Color
	Shape    sdk.ShapeType
	Material sdk.MaterialType

	// Hidden creates the block with Visible=false.
	Hidden bool
}

// Store is the live, mutable block sequence plus the id counter.
type Store struct {
	blocks []Block
	nextID int
}

// New returns an empty store whose first id is 1.
func New() *Store {
	return &Store{
		blocks: []Block{},
		nextID: 1,
	}
}

// Create allocates the next id, appends a block built from spec and returns the id.
// New blocks start at rest: zero velocity, sleeping.
func (s *Store) Create(spec Spec) int {
	id := s.nextID
	s.nextID++
	s.blocks = append(s.blocks, Block{
		ID:       id,
		Position: spec.Position,
		Size:     spec.Size,
		Rotation: spec.Rotation,
		Color:    spec.Color,
		Shape:    spec.Shape,
		Material: spec.Material,
		Visible:  !spec.Hidden,
		Sleeping: true,
	})
	return id
}

// Delete removes the block with the given id. It reports whether a block was removed;
// deleting an absent id is a no-op.
func (s *Store) Delete(id int) bool {
	for i := range s.blocks {
		if s.blocks[i].ID == id {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			return true
		}
	}
	return false
}

// Blocks returns the live sequence for read-only traversal. Callers must not
// mutate the store while iterating.
func (s *Store) Blocks() []Block {
	return s.blocks
}

// Find returns the block with the given id.
func (s *Store) Find(id int) (Block, bool) {
	for _, b := range s.blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// Len returns the number of blocks.
func (s *Store) Len() int {
	return len(s.blocks)
}

// Clear removes every block. The id counter is not rewound.
func (s *Store) Clear() {
	s.blocks = []Block{}
}

// Replace swaps in a copy of blocks. The id counter is raised past the largest id
// present so later creations cannot collide with restored blocks.
func (s *Store) Replace(blocks []Block) {
	s.blocks = make([]Block, len(blocks))
	copy(s.blocks, blocks)
	for _, b := range s.blocks {
		if b.ID >= s.nextID {
			s.nextID = b.ID + 1
		}
	}
}

// Ref returns a mutable reference to the live sequence. It is handed to plugins
// and is only valid for the duration of one call.
func (s *Store) Ref() *[]Block {
	return &s.blocks
}

// NextID returns the id the next Create will allocate.
func (s *Store) NextID() int {
	return s.nextID
}

// NextIDRef exposes the id counter for the plugin capability table.
func (s *Store) NextIDRef() *int {
	return &s.nextID
}

// Baseplate returns the spec for the session's ground plate.
func Baseplate() Spec {
	return Spec{
		Position: sdk.Vector3{X: 0, Y: -0.1, Z: 0},
		Size:     sdk.Vector3{X: 40, Y: 0.2, Z: 40},
		Color:    sdk.DarkGray,
		Shape:    sdk.ShapeCube,
	}
}

// StairSteps is the number of blocks Stairs generates.
const StairSteps = 12

// Stairs returns the specs for a straight staircase in the given color.
func Stairs(color sdk.Color) []Spec {
	specs := make([]Spec, 0, StairSteps)
	for i := 0; i < StairSteps; i++ {
		specs = append(specs, Spec{
			Position: sdk.Vector3{X: float32(i) * 0.5, Y: float32(i) * 0.25, Z: 0},
			Size:     sdk.Vector3{X: 2, Y: 0.5, Z: 1},
			Color:    color,
			Shape:    sdk.ShapeCube,
		})
	}
	return specs
}

// SnapToGrid rounds each component of v to the nearest multiple of step.
// A non-positive step leaves v unchanged.
func SnapToGrid(v sdk.Vector3, step float32) sdk.Vector3 {
	if step <= 0 {
		return v
	}
	return sdk.Vector3{
		X: math32.Round(v.X/step) * step,
		Y: math32.Round(v.Y/step) * step,
		Z: math32.Round(v.Z/step) * step,
	}
}
