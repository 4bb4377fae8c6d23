package frame

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/rtsync/internal/camera"
)

// Stage names the part of a frame a failure happened in.
type Stage string

const (
	StageGeometry Stage = "geometry"
	StageCreate   Stage = "create"
	StageUpdate   Stage = "update"
	StageLight    Stage = "light"
)

// Failure is one record that could not be synchronized this frame. The
// record stays queued and is retried on the next frame.
type Failure struct {
	Stage Stage
	Key   int32
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %d: %v", f.Stage, f.Key, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarizes one OnFrameBoundary call.
type Report struct {
	Frame uint64

	GeometryUploads int
	Created         int
	Updated         int
	Removed         int
	LightUpdates    int
	LightsRemoved   int

	Camera   camera.State
	Failures []Failure
}

// Err combines every failure of the frame, or returns nil.
func (r Report) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// Rebuild reports whether the TLAS structure changed.
func (r Report) Rebuild() bool {
	return r.Created > 0 || r.Removed > 0
}

// Refit reports whether existing entries only moved.
func (r Report) Refit() bool {
	return !r.Rebuild() && r.Updated > 0
}

func (r *Report) fail(stage Stage, key int32, err error) {
	r.Failures = append(r.Failures, Failure{Stage: stage, Key: key, Err: err})
}

// Fields returns the report as zap fields.
func (r Report) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint64("frame", r.Frame),
		zap.Int("geometry_uploads", r.GeometryUploads),
		zap.Int("created", r.Created),
		zap.Int("updated", r.Updated),
		zap.Int("removed", r.Removed),
		zap.Int("light_updates", r.LightUpdates),
		zap.Int("lights_removed", r.LightsRemoved),
		zap.Int("failures", len(r.Failures)),
	}
}
