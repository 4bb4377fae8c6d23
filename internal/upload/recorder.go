package upload

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// Op names a Channel method.
type Op string

const (
	OpUploadGeometry Op = "UploadGeometry"
	OpCreateTlas     Op = "CreateTlasEntry"
	OpUpdateTlas     Op = "UpdateTlasEntry"
	OpRemoveTlas     Op = "RemoveTlasEntry"
	OpUpdateLight    Op = "UpdateLight"
	OpRemoveLight    Op = "RemoveLight"
	OpUpdateCamera   Op = "UpdateCamera"
	OpLoadShader     Op = "LoadShaderBinary"
	OpSubmitFrame    Op = "SubmitFrame"
)

// Call is one recorded command. Only the fields relevant to Op are set.
type Call struct {
	Op       Op
	Key      int32 // geometry, instance, light key or shader slot
	Geometry rtdata.GeometryKey

	Vertices rtdata.VertexBuffer
	Indices  []uint32

	Local2World math.Mat4
	World2Local math.Mat4

	Light    rtdata.LightParams
	Position math.Vec3
	ViewProj math.Mat4
	Shader   []byte
	Summary  Summary
}

func (c Call) String() string {
	switch c.Op {
	case OpCreateTlas:
		return fmt.Sprintf("%s(%d, %d)", c.Op, c.Key, c.Geometry)
	case OpUpdateCamera, OpSubmitFrame:
		return string(c.Op)
	default:
		return fmt.Sprintf("%s(%d)", c.Op, c.Key)
	}
}

type failKey struct {
	op  Op
	key int32
}

// Recorder is a Channel that records every call in order. It copies all
// borrowed buffers and can be told to reject specific commands.
type Recorder struct {
	Calls []Call

	fail map[failKey]int // remaining rejections, -1 means always
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[failKey]int)}
}

// Reject makes the next n calls of op for key fail. n < 0 rejects forever.
func (r *Recorder) Reject(op Op, key int32, n int) {
	r.fail[failKey{op, key}] = n
}

// Accept clears any pending rejections for op and key.
func (r *Recorder) Accept(op Op, key int32) {
	delete(r.fail, failKey{op, key})
}

// Reset forgets recorded calls but keeps rejection rules.
func (r *Recorder) Reset() {
	r.Calls = nil
}

// Ops returns the recorded calls in their String form.
func (r *Recorder) Ops() []string {
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op Op) int {
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Filter returns the recorded calls of op.
func (r *Recorder) Filter(op Op) []Call {
	var out []Call
	for _, c := range r.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Index returns the position of the first call whose String form equals
// s, or -1.
func (r *Recorder) Index(s string) int {
	for i, c := range r.Calls {
		if c.String() == s {
			return i
		}
	}
	return -1
}

func (r *Recorder) String() string {
	return strings.Join(r.Ops(), " ")
}

func (r *Recorder) check(op Op, key int32) error {
	k := failKey{op, key}
	n, ok := r.fail[k]
	if !ok {
		return nil
	}
	switch {
	case n > 1:
		r.fail[k] = n - 1
	case n == 1:
		delete(r.fail, k)
	}
	return fmt.Errorf("%s %d rejected by recorder", op, key)
}

func (r *Recorder) UploadGeometry(key rtdata.GeometryKey, vertices rtdata.VertexBuffer, indices []uint32) error {
	r.Calls = append(r.Calls, Call{
		Op:  OpUploadGeometry,
		Key: int32(key),
		Vertices: rtdata.VertexBuffer{
			Positions: slices.Clone(vertices.Positions),
			Normals:   slices.Clone(vertices.Normals),
			Tangents:  slices.Clone(vertices.Tangents),
			UVs:       slices.Clone(vertices.UVs),
		},
		Indices: slices.Clone(indices),
	})
	return r.check(OpUploadGeometry, int32(key))
}

func (r *Recorder) CreateTlasEntry(inst rtdata.InstanceKey, geo rtdata.GeometryKey, local2world, world2local math.Mat4) error {
	r.Calls = append(r.Calls, Call{Op: OpCreateTlas, Key: int32(inst), Geometry: geo, Local2World: local2world, World2Local: world2local})
	return r.check(OpCreateTlas, int32(inst))
}

func (r *Recorder) UpdateTlasEntry(inst rtdata.InstanceKey, local2world, world2local math.Mat4) error {
	r.Calls = append(r.Calls, Call{Op: OpUpdateTlas, Key: int32(inst), Local2World: local2world, World2Local: world2local})
	return r.check(OpUpdateTlas, int32(inst))
}

func (r *Recorder) RemoveTlasEntry(inst rtdata.InstanceKey) {
	r.Calls = append(r.Calls, Call{Op: OpRemoveTlas, Key: int32(inst)})
}

func (r *Recorder) UpdateLight(key rtdata.LightKey, params rtdata.LightParams) error {
	r.Calls = append(r.Calls, Call{Op: OpUpdateLight, Key: int32(key), Light: params})
	return r.check(OpUpdateLight, int32(key))
}

func (r *Recorder) RemoveLight(key rtdata.LightKey) {
	r.Calls = append(r.Calls, Call{Op: OpRemoveLight, Key: int32(key)})
}

func (r *Recorder) UpdateCamera(position math.Vec3, viewProjection math.Mat4) {
	r.Calls = append(r.Calls, Call{Op: OpUpdateCamera, Position: position, ViewProj: viewProjection})
}

func (r *Recorder) LoadShaderBinary(slot int, data []byte) error {
	r.Calls = append(r.Calls, Call{Op: OpLoadShader, Key: int32(slot), Shader: slices.Clone(data)})
	return r.check(OpLoadShader, int32(slot))
}

func (r *Recorder) SubmitFrame(s Summary) {
	r.Calls = append(r.Calls, Call{Op: OpSubmitFrame, Summary: s})
}
