package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/rtsync/pkg/math"
)

func TestSmoothNormalsQuad(t *testing.T) {
	q := Quad(2)
	normals := SmoothNormals(q.Positions, q.Indices)

	for i, n := range normals {
		assert.InDelta(t, 0, n.X, 1e-6, "vertex %d", i)
		assert.InDelta(t, 1, n.Y, 1e-6, "vertex %d", i)
		assert.InDelta(t, 0, n.Z, 1e-6, "vertex %d", i)
	}
}

func TestSmoothNormalsCubePointOutward(t *testing.T) {
	c := Cube(1)
	normals := SmoothNormals(c.Positions, c.Indices)

	for i, n := range normals {
		assert.InDelta(t, 1, n.Length(), 1e-5, "vertex %d not unit length", i)
		assert.Greater(t, n.Dot(c.Positions[i]), float32(0), "vertex %d normal points inward", i)
	}
}

func TestSmoothNormalsDegenerate(t *testing.T) {
	positions := []math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}}
	normals := SmoothNormals(positions, []uint32{0, 1, 2})

	for _, n := range normals {
		assert.Equal(t, math.Vec3{Y: 1}, n)
	}
}

func TestTangentsFollowU(t *testing.T) {
	q := Quad(2)
	normals := SmoothNormals(q.Positions, q.Indices)
	tangents := Tangents(q.Positions, normals, q.UVs, q.Indices)

	for i, tg := range tangents {
		// u grows along +X on the quad
		assert.InDelta(t, 1, tg[0], 1e-5, "vertex %d", i)
		assert.InDelta(t, 0, tg[1], 1e-5, "vertex %d", i)
		assert.InDelta(t, 0, tg[2], 1e-5, "vertex %d", i)
		assert.True(t, tg[3] == 1 || tg[3] == -1, "vertex %d handedness %f", i, tg[3])
	}
}

func TestTangentsWithoutUVsArePerpendicular(t *testing.T) {
	c := Cube(1)
	normals := SmoothNormals(c.Positions, c.Indices)
	tangents := Tangents(c.Positions, normals, make([]math.Vec2, len(c.Positions)), c.Indices)

	for i, tg := range tangents {
		v := math.Vec3{X: tg[0], Y: tg[1], Z: tg[2]}
		assert.InDelta(t, 1, v.Length(), 1e-5, "vertex %d", i)
		assert.InDelta(t, 0, v.Dot(normals[i]), 1e-5, "vertex %d", i)
	}
}

func TestHashMeshDistinguishesPayloads(t *testing.T) {
	a := Cube(1)
	b := Cube(1)
	assert.Equal(t, hashMesh(&a), hashMesh(&b))

	b.Indices[0], b.Indices[1] = b.Indices[1], b.Indices[0]
	assert.NotEqual(t, hashMesh(&a), hashMesh(&b))

	c := Cube(1)
	c.UVs = nil
	assert.NotEqual(t, hashMesh(&a), hashMesh(&c))
}
