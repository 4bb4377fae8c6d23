// Package upload defines the boundary through which synchronized scene
// data is pushed to a ray-tracing backend, plus two reference backends.
//
// Every slice and matrix handed to a Channel is borrowed for the duration
// of the call only. Implementations that keep data must copy it.
package upload

import (
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// Channel receives geometry, instance, light and camera commands.
type Channel interface {
	UploadGeometry(key rtdata.GeometryKey, vertices rtdata.VertexBuffer, indices []uint32) error
	CreateTlasEntry(inst rtdata.InstanceKey, geo rtdata.GeometryKey, local2world, world2local math.Mat4) error
	UpdateTlasEntry(inst rtdata.InstanceKey, local2world, world2local math.Mat4) error
	RemoveTlasEntry(inst rtdata.InstanceKey)
	UpdateLight(key rtdata.LightKey, params rtdata.LightParams) error
	UpdateCamera(position math.Vec3, viewProjection math.Mat4)
	LoadShaderBinary(slot int, data []byte) error
}

// LightRemover is implemented by channels that can drop a light.
type LightRemover interface {
	RemoveLight(key rtdata.LightKey)
}

// FrameSubmitter is implemented by channels that want one call per frame
// after all of that frame's commands, to kick off the TLAS build and trace.
type FrameSubmitter interface {
	SubmitFrame(s Summary)
}

// Summary describes what one frame changed.
type Summary struct {
	Frame uint64

	// Rebuild is set when TLAS entries were created or removed.
	Rebuild bool
	// Refit is set when existing entries only moved.
	Refit bool

	Instances int // live TLAS entries after the frame
	Lights    int
}
