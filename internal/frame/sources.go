package frame

import (
	"github.com/Faultbox/rtsync/internal/geometry"
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// MeshSource supplies mesh data for geometry the host references but never
// registered explicitly.
type MeshSource interface {
	Mesh(key rtdata.GeometryKey) (geometry.Mesh, bool)
}

// MeshFunc adapts a function to MeshSource.
type MeshFunc func(key rtdata.GeometryKey) (geometry.Mesh, bool)

func (f MeshFunc) Mesh(key rtdata.GeometryKey) (geometry.Mesh, bool) {
	return f(key)
}

// CameraSource reports the host camera for the current frame.
type CameraSource interface {
	Camera() (position math.Vec3, worldToCamera, projection math.Mat4, ok bool)
}

// CameraFunc adapts a function to CameraSource.
type CameraFunc func() (math.Vec3, math.Mat4, math.Mat4, bool)

func (f CameraFunc) Camera() (math.Vec3, math.Mat4, math.Mat4, bool) {
	return f()
}
