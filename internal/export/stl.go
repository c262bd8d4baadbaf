// Package export writes the scene out of the editor: binary STL meshes for
// other tools and compressed raw scene files that the editor can load back.
package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hpungsan/blockcad/sdk"
)

const (
	stlHeaderSize = 80
	// stlTriangleSize is normal + 3 vertices (12 float32) plus a uint16 attribute.
	stlTriangleSize = 12*4 + 2
	// TrianglesPerCube is the number of faces written for each exported block.
	TrianglesPerCube = 12
)

const stlHeader = "blockcad binary STL export"

// cubeFaces indexes the corners returned by cubeCorners, two triangles per face.
var cubeFaces = [TrianglesPerCube][3]int{
	{0, 2, 1}, {0, 3, 2},
	{1, 2, 6}, {1, 6, 5},
	{4, 5, 6}, {4, 6, 7},
	{0, 4, 7}, {0, 7, 3},
	{2, 3, 7}, {2, 7, 6},
	{0, 1, 5}, {0, 5, 4},
}

// cubeCorners returns the eight corners of b's axis-aligned box. Rotation is not applied.
func cubeCorners(b sdk.Block) [8]sdk.Vector3 {
	p := b.Position
	dx, dy, dz := b.Size.X/2, b.Size.Y/2, b.Size.Z/2
	return [8]sdk.Vector3{
		{X: p.X - dx, Y: p.Y - dy, Z: p.Z - dz},
		{X: p.X + dx, Y: p.Y - dy, Z: p.Z - dz},
		{X: p.X + dx, Y: p.Y + dy, Z: p.Z - dz},
		{X: p.X - dx, Y: p.Y + dy, Z: p.Z - dz},
		{X: p.X - dx, Y: p.Y - dy, Z: p.Z + dz},
		{X: p.X + dx, Y: p.Y - dy, Z: p.Z + dz},
		{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz},
		{X: p.X - dx, Y: p.Y + dy, Z: p.Z + dz},
	}
}

// Exportable reports whether b contributes triangles to an STL export.
func Exportable(b sdk.Block) bool {
	return b.Visible && b.Shape == sdk.ShapeCube
}

// WriteSTL writes blocks as a little-endian binary STL and returns the number of
// triangles written. The triangle count is written as a placeholder and patched
// at offset 80 once the body is done, so w must support seeking.
func WriteSTL(w io.WriteSeeker, blocks []sdk.Block) (uint32, error) {
	start, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	var head [stlHeaderSize + 4]byte
	copy(head[:stlHeaderSize], stlHeader)
	if _, err := w.Write(head[:]); err != nil {
		return 0, err
	}

	var count uint32
	var buf bytes.Buffer
	buf.Grow(TrianglesPerCube * stlTriangleSize)
	for _, b := range blocks {
		if !Exportable(b) {
			continue
		}
		buf.Reset()
		c := cubeCorners(b)
		for _, f := range cubeFaces {
			writeTriangle(&buf, c[f[0]], c[f[1]], c[f[2]])
			count++
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return 0, err
		}
	}

	end, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := w.Seek(start+stlHeaderSize, io.SeekStart); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return 0, err
	}
	if _, err := w.Seek(end, io.SeekStart); err != nil {
		return 0, err
	}
	return count, nil
}

// writeTriangle appends one facet with a zero normal; readers recompute normals
// from the winding.
func writeTriangle(buf *bytes.Buffer, v ...sdk.Vector3) {
	var rec [stlTriangleSize]byte
	off := 12
	for _, p := range v {
		binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(rec[off+4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(rec[off+8:], math.Float32bits(p.Z))
		off += 12
	}
	buf.Write(rec[:])
}

// STLInfo is what ReadSTLInfo learns from a binary STL stream.
type STLInfo struct {
	Header    string
	Triangles uint32
}

// ReadSTLInfo reads the header and triangle count of a binary STL and checks that
// the body holds exactly that many facets.
func ReadSTLInfo(r io.Reader) (STLInfo, error) {
	var head [stlHeaderSize + 4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return STLInfo{}, fmt.Errorf("read stl header: %w", err)
	}
	info := STLInfo{
		Header:    string(bytes.TrimRight(head[:stlHeaderSize], "\x00")),
		Triangles: binary.LittleEndian.Uint32(head[stlHeaderSize:]),
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return info, err
	}
	if want := int64(info.Triangles) * stlTriangleSize; n != want {
		return info, fmt.Errorf("stl body is %d bytes, want %d for %d triangles", n, want, info.Triangles)
	}
	return info, nil
}
