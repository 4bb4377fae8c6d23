package geometry

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	gomath "math"

	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// validate checks the structural invariants of a mesh payload.
func validate(m *Mesh) error {
	n := len(m.Positions)
	if n == 0 {
		return fmt.Errorf("%w: no vertices", rtdata.ErrInvalidGeometry)
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d is not a multiple of 3", rtdata.ErrInvalidGeometry, len(m.Indices))
	}
	if len(m.Normals) != 0 && len(m.Normals) != n {
		return fmt.Errorf("%w: %d normals for %d vertices", rtdata.ErrInvalidGeometry, len(m.Normals), n)
	}
	if len(m.Tangents) != 0 && len(m.Tangents) != n {
		return fmt.Errorf("%w: %d tangents for %d vertices", rtdata.ErrInvalidGeometry, len(m.Tangents), n)
	}
	if len(m.UVs) != 0 && len(m.UVs) != n {
		return fmt.Errorf("%w: %d uvs for %d vertices", rtdata.ErrInvalidGeometry, len(m.UVs), n)
	}
	for i, idx := range m.Indices {
		if int(idx) >= n {
			return fmt.Errorf("%w: index %d at %d out of range [0, %d)", rtdata.ErrInvalidGeometry, idx, i, n)
		}
	}
	for i, p := range m.Positions {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("%w: vertex %d is not finite", rtdata.ErrInvalidGeometry, i)
		}
	}
	return nil
}

// build copies the payload into registry-owned buffers, filling in missing
// attributes, and computes the bounds.
func build(m *Mesh) (rtdata.VertexBuffer, []uint32, rtdata.Bounds) {
	n := len(m.Positions)
	vb := rtdata.VertexBuffer{
		Positions: append([]math.Vec3(nil), m.Positions...),
	}
	indices := append([]uint32(nil), m.Indices...)

	if len(m.UVs) == n {
		vb.UVs = append([]math.Vec2(nil), m.UVs...)
	} else {
		vb.UVs = make([]math.Vec2, n)
	}

	if len(m.Normals) == n {
		vb.Normals = append([]math.Vec3(nil), m.Normals...)
	} else {
		vb.Normals = SmoothNormals(vb.Positions, indices)
	}

	if len(m.Tangents) == n {
		vb.Tangents = append([]math.Vec4(nil), m.Tangents...)
	} else {
		vb.Tangents = Tangents(vb.Positions, vb.Normals, vb.UVs, indices)
	}

	return vb, indices, ComputeBounds(vb.Positions)
}

// SmoothNormals computes area-weighted per-vertex normals. Degenerate
// triangles contribute nothing; vertices touched only by degenerate
// triangles get +Y.
func SmoothNormals(positions []math.Vec3, indices []uint32) []math.Vec3 {
	normals := make([]math.Vec3, len(positions))

	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		v0, v1, v2 := positions[i0], positions[i1], positions[i2]

		// Unnormalized cross product weights by triangle area
		faceNormal := v1.Sub(v0).Cross(v2.Sub(v0))
		if faceNormal.Length() < 1e-12 {
			continue
		}

		normals[i0] = normals[i0].Add(faceNormal)
		normals[i1] = normals[i1].Add(faceNormal)
		normals[i2] = normals[i2].Add(faceNormal)
	}

	for i := range normals {
		if normals[i].Length() < 1e-12 {
			normals[i] = math.Vec3{Y: 1}
			continue
		}
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// Tangents computes per-vertex tangents from uv gradients, orthogonalized
// against the normal. W holds the bitangent sign. Vertices without a usable
// uv gradient get an arbitrary tangent perpendicular to the normal.
func Tangents(positions, normals []math.Vec3, uvs []math.Vec2, indices []uint32) []math.Vec4 {
	n := len(positions)
	tan1 := make([]math.Vec3, n)
	tan2 := make([]math.Vec3, n)

	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]

		e1 := positions[i1].Sub(positions[i0])
		e2 := positions[i2].Sub(positions[i0])
		d1 := uvs[i1].Sub(uvs[i0])
		d2 := uvs[i2].Sub(uvs[i0])

		denom := d1.X*d2.Y - d2.X*d1.Y
		if denom > -1e-12 && denom < 1e-12 {
			continue
		}
		r := 1 / denom

		sdir := e1.Scale(d2.Y).Sub(e2.Scale(d1.Y)).Scale(r)
		tdir := e2.Scale(d1.X).Sub(e1.Scale(d2.X)).Scale(r)

		for _, i := range [3]uint32{i0, i1, i2} {
			tan1[i] = tan1[i].Add(sdir)
			tan2[i] = tan2[i].Add(tdir)
		}
	}

	out := make([]math.Vec4, n)
	for i := range out {
		nrm := normals[i]

		// Gram-Schmidt orthogonalize
		t := tan1[i].Sub(nrm.Scale(nrm.Dot(tan1[i])))
		if t.Length() < 1e-6 {
			t = orthogonal(nrm)
		}
		t = t.Normalize()

		w := float32(1)
		if nrm.Cross(t).Dot(tan2[i]) < 0 {
			w = -1
		}
		out[i] = math.Vec4{t.X, t.Y, t.Z, w}
	}
	return out
}

// orthogonal returns a vector perpendicular to n.
func orthogonal(n math.Vec3) math.Vec3 {
	axis := math.Vec3{X: 1}
	if abs32(n.X) > 0.9 {
		axis = math.Vec3{Y: 1}
	}
	return axis.Sub(n.Scale(n.Dot(axis)))
}

// ComputeBounds returns the axis-aligned bounds of positions.
func ComputeBounds(positions []math.Vec3) rtdata.Bounds {
	if len(positions) == 0 {
		return rtdata.Bounds{}
	}
	b := rtdata.Bounds{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		b = b.Extend(p)
	}
	return b
}

// hashMesh fingerprints the caller payload so repeated registrations can
// be recognized without keeping a second copy of the data.
func hashMesh(m *Mesh) uint64 {
	h := fnv.New64a()
	var buf [4]byte

	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	putF32 := func(f float32) {
		putU32(gomath.Float32bits(f))
	}

	putU32(uint32(len(m.Positions)))
	for _, p := range m.Positions {
		putF32(p.X)
		putF32(p.Y)
		putF32(p.Z)
	}
	putU32(uint32(len(m.Normals)))
	for _, p := range m.Normals {
		putF32(p.X)
		putF32(p.Y)
		putF32(p.Z)
	}
	putU32(uint32(len(m.Tangents)))
	for _, t := range m.Tangents {
		for _, f := range t {
			putF32(f)
		}
	}
	putU32(uint32(len(m.UVs)))
	for _, uv := range m.UVs {
		putF32(uv.X)
		putF32(uv.Y)
	}
	putU32(uint32(len(m.Indices)))
	for _, i := range m.Indices {
		putU32(i)
	}
	return h.Sum64()
}

func finite(f float32) bool {
	return !gomath.IsNaN(float64(f)) && !gomath.IsInf(float64(f), 0)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
