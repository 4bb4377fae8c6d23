package geometry

import "github.com/Faultbox/rtsync/pkg/math"

// Cube returns an axis-aligned cube centered on the origin with 8 shared
// corners and 12 triangles (36 indices), wound counter-clockwise when seen
// from outside. Normals and tangents are left for derivation.
func Cube(size float32) Mesh {
	h := size / 2
	return Mesh{
		Positions: []math.Vec3{
			{X: -h, Y: -h, Z: -h}, {X: h, Y: -h, Z: -h}, {X: h, Y: h, Z: -h}, {X: -h, Y: h, Z: -h},
			{X: -h, Y: -h, Z: h}, {X: h, Y: -h, Z: h}, {X: h, Y: h, Z: h}, {X: -h, Y: h, Z: h},
		},
		UVs: []math.Vec2{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
			{X: 1, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1},
		},
		Indices: []uint32{
			4, 5, 6, 4, 6, 7, // +Z
			1, 0, 3, 1, 3, 2, // -Z
			5, 1, 2, 5, 2, 6, // +X
			0, 4, 7, 0, 7, 3, // -X
			7, 6, 2, 7, 2, 3, // +Y
			0, 1, 5, 0, 5, 4, // -Y
		},
	}
}

// Quad returns a unit-uv square in the XZ plane facing +Y.
func Quad(size float32) Mesh {
	h := size / 2
	return Mesh{
		Positions: []math.Vec3{{X: -h, Y: 0, Z: h}, {X: h, Y: 0, Z: h}, {X: h, Y: 0, Z: -h}, {X: -h, Y: 0, Z: -h}},
		UVs:       []math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}
