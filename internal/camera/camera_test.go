package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/rtsync/pkg/math"
)

func TestComputeIdentity(t *testing.T) {
	pos := math.Vec3{X: 1, Y: 2, Z: 3}
	s := Compute(pos, math.Identity(), math.Identity(), false)

	assert.Equal(t, pos, s.Position)
	assert.Equal(t, math.Identity(), s.ViewProjection)
}

func TestComputeFlipNegatesY(t *testing.T) {
	s := Compute(math.Vec3{}, math.Identity(), math.Identity(), true)

	want := math.Identity()
	want[5] = -1
	assert.Equal(t, want, s.ViewProjection)

	p := math.Vec3{X: 0.25, Y: 0.5, Z: -0.5}
	out := s.ViewProjection.TransformPoint(p)
	assert.Equal(t, float32(-0.5), out.Y)
	assert.Equal(t, p.X, out.X)
}

func TestComputeMatchesMathgl(t *testing.T) {
	eye := math.Vec3{X: 3, Y: 4, Z: 5}
	view := math.LookAt(eye, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)

	s := Compute(eye, view, proj, false)

	ref := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100).
		Mul4(mgl32.LookAtV(mgl32.Vec3{3, 4, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))
	assert.True(t, s.ViewProjection.ApproxEqual(math.Mat4(ref), 1e-4),
		"got %v want %v", s.ViewProjection, ref)
}

func TestDepthZeroToOne(t *testing.T) {
	near, far := float32(0.5), float32(50)
	proj := math.Perspective(mgl32.DegToRad(90), 1, near, far)
	gpu := NewTracker(Convention{DepthZeroToOne: true}).
		Update(math.Vec3{}, math.Identity(), proj).ViewProjection

	tests := []struct {
		name  string
		z     float32
		depth float32
	}{
		{"near plane", -near, 0},
		{"far plane", -far, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := gpu.MulVec4(math.Vec4{0, 0, tt.z, 1})
			assert.InDelta(t, tt.depth, clip[2]/clip[3], 1e-4)
		})
	}
}

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker(Convention{FlipY: true})

	_, ok := tr.Current()
	assert.False(t, ok)

	pos := math.Vec3{Z: 10}
	view := math.Translate(0, 0, -10)
	s := tr.Update(pos, view, math.Identity())

	cur, ok := tr.Current()
	assert.True(t, ok)
	assert.Equal(t, s, cur)
	assert.Equal(t, Compute(pos, view, math.Identity(), true), cur)
	assert.True(t, tr.Convention().FlipY)
}

func TestTrackerUpdateBothConventions(t *testing.T) {
	proj := math.Perspective(mgl32.DegToRad(60), 1.5, 0.1, 100)
	view := math.LookAt(math.Vec3{X: 2, Y: 3, Z: 4}, math.Vec3{}, math.Vec3{Y: 1})
	pos := math.Vec3{X: 2, Y: 3, Z: 4}

	s := NewTracker(Convention{FlipY: true, DepthZeroToOne: true}).Update(pos, view, proj)
	assert.Equal(t, Compute(pos, view, remapDepth(proj), true), s)

	// a point in front of the camera lands in [0, 1] depth with Y negated
	plain := Compute(pos, view, proj, false).ViewProjection.MulVec4(math.Vec4{0, 1, 0, 1})
	clip := s.ViewProjection.MulVec4(math.Vec4{0, 1, 0, 1})
	assert.InDelta(t, -plain[1]/plain[3], clip[1]/clip[3], 1e-5)
	depth := clip[2] / clip[3]
	assert.True(t, depth >= 0 && depth <= 1, "depth %f outside [0, 1]", depth)
}
