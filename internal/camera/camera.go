// Package camera derives the per-frame camera state pushed to the
// ray-tracing backend.
package camera

import (
	"github.com/Faultbox/rtsync/pkg/math"
)

// State is the camera data for one frame.
type State struct {
	Position       math.Vec3
	ViewProjection math.Mat4
}

// Convention describes how the backend's clip space differs from the
// OpenGL-style projection the host supplies.
type Convention struct {
	// FlipY negates clip-space Y, for backends rendering into textures
	// with a top-left origin.
	FlipY bool `yaml:"flip_y"`
	// DepthZeroToOne remaps clip depth from [-1, 1] to [0, 1].
	DepthZeroToOne bool `yaml:"depth_zero_to_one"`
}

// Compute returns projection * worldToCamera, with the projection's Y row
// negated first when flipClipSpace is set.
func Compute(position math.Vec3, worldToCamera, projection math.Mat4, flipClipSpace bool) State {
	if flipClipSpace {
		projection = flipY(projection)
	}
	return State{
		Position:       position,
		ViewProjection: projection.Mul(worldToCamera),
	}
}

// Row r of a column-major matrix lives at indices r, r+4, r+8, r+12.

func flipY(m math.Mat4) math.Mat4 {
	for col := 0; col < 4; col++ {
		m[col*4+1] = -m[col*4+1]
	}
	return m
}

// remapDepth replaces the z row with (z + w) / 2.
func remapDepth(m math.Mat4) math.Mat4 {
	for col := 0; col < 4; col++ {
		m[col*4+2] = 0.5 * (m[col*4+2] + m[col*4+3])
	}
	return m
}

// Tracker keeps the camera state of the current frame.
type Tracker struct {
	conv  Convention
	state State
	valid bool
}

// NewTracker creates a tracker for the given clip-space convention.
func NewTracker(conv Convention) *Tracker {
	return &Tracker{
		conv:  conv,
		state: State{ViewProjection: math.Identity()},
	}
}

// Convention returns the configured clip-space convention.
func (t *Tracker) Convention() Convention {
	return t.conv
}

// Update recomputes the state from the host camera. It is called once per
// frame whether or not the camera moved.
func (t *Tracker) Update(position math.Vec3, worldToCamera, projection math.Mat4) State {
	if t.conv.DepthZeroToOne {
		projection = remapDepth(projection)
	}
	t.state = Compute(position, worldToCamera, projection, t.conv.FlipY)
	t.valid = true
	return t.state
}

// Current returns the last computed state. Before the first Update it is
// the identity at the origin and ok is false.
func (t *Tracker) Current() (State, bool) {
	return t.state, t.valid
}
