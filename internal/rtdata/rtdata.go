// Package rtdata holds the data model shared between the synchronizer
// tables and the upload channels: identity keys, light parameters, vertex
// buffers and the error taxonomy.
package rtdata

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/rtsync/pkg/math"
)

// GeometryKey identifies a shared mesh. Many instances may reference it.
type GeometryKey int32

// InstanceKey identifies a placed object instance.
type InstanceKey int32

// LightKey identifies a tracked light.
type LightKey int32

// SyncState is the per-record upload state machine:
// Clean -> Dirty -> Uploading -> Clean.
type SyncState uint8

const (
	Clean SyncState = iota
	Dirty
	Uploading
)

func (s SyncState) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Uploading:
		return "uploading"
	default:
		return fmt.Sprintf("SyncState(%d)", uint8(s))
	}
}

// LightKind matches the host engine's light type enumeration.
type LightKind int32

const (
	Spot LightKind = iota
	Directional
	Point
)

func (k LightKind) String() string {
	switch k {
	case Spot:
		return "spot"
	case Directional:
		return "directional"
	case Point:
		return "point"
	default:
		return fmt.Sprintf("LightKind(%d)", int32(k))
	}
}

// ParseLightKind converts a lowercase kind name to a LightKind.
func ParseLightKind(s string) (LightKind, error) {
	switch s {
	case "spot":
		return Spot, nil
	case "directional", "":
		return Directional, nil
	case "point":
		return Point, nil
	default:
		return 0, fmt.Errorf("unknown light kind %q", s)
	}
}

// LightParams is everything the backend needs to shade with one light.
// It is comparable, so change detection is a plain ==.
type LightParams struct {
	Position        math.Vec3
	Direction       math.Vec3
	Color           [3]float32 // RGB, linear
	Intensity       float32
	BounceIntensity float32
	Range           float32
	SpotAngle       float32 // Full cone angle in degrees
	Kind            LightKind
	Enabled         bool
}

// IsFinite reports whether no field is NaN or infinite.
func (p LightParams) IsFinite() bool {
	fields := [...]float32{
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Direction.X, p.Direction.Y, p.Direction.Z,
		p.Color[0], p.Color[1], p.Color[2],
		p.Intensity, p.BounceIntensity, p.Range, p.SpotAngle,
	}
	for _, f := range fields {
		if gomath.IsNaN(float64(f)) || gomath.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// VertexBuffer is the per-vertex attribute set of a registered geometry.
// All slices have the same length.
type VertexBuffer struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  []math.Vec4 // w is the bitangent sign
	UVs       []math.Vec2
}

// Len returns the vertex count.
func (b VertexBuffer) Len() int {
	return len(b.Positions)
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Center returns the center point of the box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extend grows the box to contain p.
func (b Bounds) Extend(p math.Vec3) Bounds {
	return Bounds{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}
