package scene

// BlockView is the JSON form of a block used by the MCP and web surfaces.
// Vectors are [x, y, z] and colors [r, g, b, a]; enums are spelled out.
type BlockView struct {
	ID       int        `json:"id"`
	Position [3]float32 `json:"position"`
	Size     [3]float32 `json:"size"`
	Rotation [3]float32 `json:"rotation"`
	Color    [4]uint8   `json:"color"`
	Shape    string     `json:"shape"`
	Material string     `json:"material"`
	Visible  bool       `json:"visible"`
	Sleeping bool       `json:"sleeping"`
	Velocity [3]float32 `json:"velocity"`
}

// ViewOf converts b to its JSON form.
func ViewOf(b Block) BlockView {
	return BlockView{
		ID:       b.ID,
		Position: [3]float32{b.Position.X, b.Position.Y, b.Position.Z},
		Size:     [3]float32{b.Size.X, b.Size.Y, b.Size.Z},
		Rotation: [3]float32{b.Rotation.X, b.Rotation.Y, b.Rotation.Z},
		Color:    [4]uint8{b.Color.R, b.Color.G, b.Color.B, b.Color.A},
		Shape:    b.Shape.String(),
		Material: b.Material.String(),
		Visible:  b.Visible,
		Sleeping: b.Sleeping,
		Velocity: [3]float32{b.Velocity.X, b.Velocity.Y, b.Velocity.Z},
	}
}

// Views converts every block. The result is never nil.
func Views(blocks []Block) []BlockView {
	out := make([]BlockView, len(blocks))
	for i, b := range blocks {
		out[i] = ViewOf(b)
	}
	return out
}
