package scene

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/rtsync/internal/frame"
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/internal/upload"
	"github.com/Faultbox/rtsync/pkg/math"
)

func loadOrbit(t *testing.T) *Script {
	t.Helper()
	s, err := Load("testdata/orbit.yaml")
	require.NoError(t, err)
	return s
}

func TestLoad(t *testing.T) {
	s := loadOrbit(t)

	assert.Equal(t, "orbit", s.Name)
	assert.Len(t, s.Meshes, 3)
	assert.Len(t, s.Frames, 4)
	assert.Equal(t, 6, s.FrameCount())
	require.NotNil(t, s.Sun)
	assert.Equal(t, int32(100), s.Sun.Key)

	cube, ok := s.Mesh(1)
	require.True(t, ok)
	assert.Len(t, cube.Positions, 8)
	assert.Len(t, cube.Indices, 36)

	tri, ok := s.Mesh(3)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1, 2}, tri.Indices)
	assert.Equal(t, math.Vec3{X: 1}, tri.Positions[1])

	_, ok = s.Mesh(42)
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "meshes: ["},
		{"duplicate mesh", "meshes: [{key: 1, shape: cube}, {key: 1, shape: quad}]"},
		{"unknown shape", "meshes: [{key: 1, shape: torus}]"},
		{"empty mesh", "meshes: [{key: 1}]"},
		{"unknown op", "frames: [{events: [{op: explode}]}]"},
		{"register unknown mesh", "frames: [{events: [{op: register, geometry: 9}]}]"},
		{"light without params", "frames: [{events: [{op: light, light: 1}]}]"},
		{"bad light kind", "frames: [{events: [{op: light, light: 1, params: {kind: area}}]}]"},
		{"negative repeat", "frames: [{repeat: -1}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestTransformMatrix(t *testing.T) {
	assert.Equal(t, math.Identity(), Transform{}.Matrix())

	scale := Vec3{2, 2, 2}
	tr := Transform{Position: Vec3{1, 2, 3}, Rotation: Vec3{0, 90, 0}, Scale: &scale}
	m := tr.Matrix()

	p := m.TransformPoint(math.Vec3{X: 1})
	assert.InDelta(t, 1, p.X, 1e-5)
	assert.InDelta(t, 2, p.Y, 1e-5)
	assert.InDelta(t, 1, p.Z, 1e-5, "+X rotated 90 degrees about Y points to -Z")

	ref := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(90))).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.True(t, m.ApproxEqual(math.Mat4(ref), 1e-5))
}

func TestLightSpecParams(t *testing.T) {
	off := false
	ls := LightSpec{Kind: "spot", Direction: Vec3{0, -2, 0}, SpotAngle: 30, Enabled: &off}
	p, err := ls.Params()
	require.NoError(t, err)
	assert.Equal(t, rtdata.Spot, p.Kind)
	assert.Equal(t, math.Vec3{Y: -1}, p.Direction)
	assert.False(t, p.Enabled)

	p, err = (&LightSpec{}).Params()
	require.NoError(t, err)
	assert.Equal(t, rtdata.Directional, p.Kind)
	assert.True(t, p.Enabled)
}

func TestCameraMatrices(t *testing.T) {
	c := CameraSpec{Eye: Vec3{0, 0, 5}}
	pos, view, proj := c.Matrices()

	assert.Equal(t, math.Vec3{Z: 5}, pos)
	origin := view.TransformPoint(math.Vec3{})
	assert.InDelta(t, -5, origin.Z, 1e-5, "target sits in front of the camera")
	assert.True(t, proj.ApproxEqual(math.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 1000), 1e-5))
}

func TestPlayerAgainstBackend(t *testing.T) {
	s := loadOrbit(t)
	be := upload.NewBackend(nil, 0)
	p := NewPlayer(s, frame.Config{}, be, nil)

	st, err := p.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, p.Done())

	assert.Equal(t, 6, st.Frames)
	assert.Equal(t, 2, st.GeometryUploads, "quad and triangle load lazily, cube was registered")
	assert.Equal(t, 4, st.Created)
	assert.Equal(t, 1, st.Removed)
	assert.Equal(t, 1, st.Updated, "two moves in one frame coalesce")
	assert.Zero(t, st.Failures)

	meshes, instances, lights := be.Counts()
	assert.Equal(t, 3, meshes)
	assert.Equal(t, 3, instances)
	assert.Equal(t, 1, lights, "only the sun remains")

	_, l2w, _, ok := be.Instance(2)
	require.True(t, ok)
	assert.Equal(t, math.Translate(0, 2.5, 0), l2w)

	sun, ok := be.Light(100)
	require.True(t, ok)
	assert.Equal(t, s.Frames[3].Sun.Params(), sun)

	pos, _ := be.Camera()
	assert.Equal(t, math.Vec3{X: 5, Y: 5, Z: 5}, pos)
	assert.Equal(t, uint64(6), be.Frames)
}

func TestPlayerCommandOrder(t *testing.T) {
	s := loadOrbit(t)
	rec := upload.NewRecorder()
	p := NewPlayer(s, frame.Config{}, rec, nil)

	_, err := p.Step()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UploadGeometry(1)",
		"UploadGeometry(2)",
		"CreateTlasEntry(1, 2)",
		"CreateTlasEntry(2, 1)",
		"CreateTlasEntry(3, 1)",
		"UpdateCamera",
		"UpdateLight(7)",
		"UpdateLight(100)",
		"SubmitFrame",
	}, rec.Ops())
}

func TestPlayerReportsRejectedEvents(t *testing.T) {
	s, err := Parse([]byte(`
meshes: [{key: 1, shape: cube}]
frames:
  - events:
      - {op: activate, instance: 1, geometry: 1}
      - {op: activate, instance: 1, geometry: 2}
      - {op: move, instance: 5}
`))
	require.NoError(t, err)

	p := NewPlayer(s, frame.Config{}, upload.NewRecorder(), nil)
	rep, err := p.Step()
	assert.ErrorIs(t, err, rtdata.ErrDuplicateIdentity)
	assert.Equal(t, 1, rep.Created)
	assert.True(t, p.Done())

	rep, err = p.Step()
	assert.NoError(t, err, "idle frames past the end")
	assert.Equal(t, uint64(2), rep.Frame)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := loadOrbit(t)
	p := NewPlayer(s, frame.Config{}, upload.NewRecorder(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := p.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, st.Frames)
}
