// Package sdk holds the types shared between the blockcad host and its plugins.
//
// Plugins are Go modules built with -buildmode=plugin against this package. They
// export one function named RunPlugin with the EntryFunc signature.
package sdk

// Vector3 is a 3-component single-precision vector.
type Vector3 struct {
	X, Y, Z float32
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v multiplied by s.
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// Common colors.
var (
	Red      = Color{230, 41, 55, 255}
	DarkGray = Color{80, 80, 80, 255}
	White    = Color{255, 255, 255, 255}
)

// ShapeType is the closed set of block shapes.
type ShapeType uint8

const (
	ShapeCube ShapeType = iota
	ShapeCylinder
	ShapeSphere
	ShapeWedge
	ShapeCone
)

var shapeNames = [...]string{"cube", "cylinder", "sphere", "wedge", "cone"}

// String returns the lower-case shape name.
func (s ShapeType) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// ParseShape returns the shape with the given lower-case name.
func ParseShape(name string) (ShapeType, bool) {
	for i, n := range shapeNames {
		if n == name {
			return ShapeType(i), true
		}
	}
	return 0, false
}

// MaterialType is a cosmetic tag with no physical effect.
type MaterialType uint8

const (
	MaterialDefault MaterialType = iota
	MaterialSteel
	MaterialWood
	MaterialGlass
	MaterialGlow
	MaterialConcrete
)

var materialNames = [...]string{"default", "steel", "wood", "glass", "glow", "concrete"}

// String returns the lower-case material name.
func (m MaterialType) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return "unknown"
}

// ParseMaterial returns the material with the given lower-case name.
func ParseMaterial(name string) (MaterialType, bool) {
	for i, n := range materialNames {
		if n == name {
			return MaterialType(i), true
		}
	}
	return 0, false
}

// Block is one placed solid. It is a plain value: copying a Block copies all of it.
type Block struct {
	ID       int          `json:"id"`
	Position Vector3      `json:"position"`
	Size     Vector3      `json:"size"`
	Rotation Vector3      `json:"rotation"`
	Color    Color        `json:"color"`
	Shape    ShapeType    `json:"shape"`
	Material MaterialType `json:"material"`
	Visible  bool         `json:"visible"`

	// Velocity and Sleeping are owned by the physics step.
	Velocity Vector3 `json:"velocity"`
	Sleeping bool    `json:"sleeping"`
}

// Min returns the lower corner of the block's axis-aligned bounds.
func (b Block) Min() Vector3 {
	return b.Position.Sub(b.Size.Scale(0.5))
}

// Max returns the upper corner of the block's axis-aligned bounds.
func (b Block) Max() Vector3 {
	return b.Position.Add(b.Size.Scale(0.5))
}
