package light

import (
	gomath "math"

	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// PrimarySource answers the scene query for the designated primary light.
// It returns ok=false when the scene has none.
type PrimarySource interface {
	PrimaryLight() (key rtdata.LightKey, params rtdata.LightParams, ok bool)
}

// PrimaryFunc adapts a function to PrimarySource.
type PrimaryFunc func() (rtdata.LightKey, rtdata.LightParams, bool)

func (f PrimaryFunc) PrimaryLight() (rtdata.LightKey, rtdata.LightParams, bool) {
	return f()
}

// Sun builds directional light parameters from a sun direction given as
// longitude (around Y, degrees) and latitude (elevation, degrees). The
// direction points from the sun into the scene.
func Sun(longitude, latitude float32, color [3]float32, intensity float32) rtdata.LightParams {
	toSun := SunDirection(longitude, latitude)
	return rtdata.LightParams{
		Direction: toSun.Scale(-1),
		Color:     color,
		Intensity: intensity,
		Kind:      rtdata.Directional,
		Enabled:   true,
	}
}

// SunDirection converts longitude/latitude angles in degrees to a unit
// vector pointing towards the sun.
func SunDirection(longitude, latitude float32) math.Vec3 {
	lonRad := float64(longitude) * gomath.Pi / 180.0
	latRad := float64(latitude) * gomath.Pi / 180.0

	// Spherical to Cartesian conversion
	return math.Vec3{
		X: float32(gomath.Cos(latRad) * gomath.Sin(lonRad)),
		Y: float32(gomath.Sin(latRad)),
		Z: float32(gomath.Cos(latRad) * gomath.Cos(lonRad)),
	}
}
