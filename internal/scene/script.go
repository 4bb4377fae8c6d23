// Package scene replays scripted host events against a frame
// synchronizer. Scripts are YAML documents describing meshes, a camera,
// an optional sun and a list of frames of lifecycle events.
package scene

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/rtsync/internal/geometry"
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// Event ops.
const (
	OpRegister    = "register"
	OpActivate    = "activate"
	OpDeactivate  = "deactivate"
	OpMove        = "move"
	OpLight       = "light"
	OpRemoveLight = "remove_light"
)

// Vec3 is a YAML [x, y, z] triple.
type Vec3 [3]float32

func (v Vec3) vec() math.Vec3 { return math.Vec3{X: v[0], Y: v[1], Z: v[2]} }

// Script is a parsed scene script.
type Script struct {
	Name   string      `yaml:"name"`
	Camera CameraSpec  `yaml:"camera"`
	Sun    *SunSpec    `yaml:"sun,omitempty"`
	Meshes []MeshSpec  `yaml:"meshes"`
	Frames []FrameSpec `yaml:"frames"`

	meshIdx map[rtdata.GeometryKey]int
}

// CameraSpec places a perspective camera. Fov is vertical, in degrees.
type CameraSpec struct {
	Eye    Vec3    `yaml:"eye"`
	Target Vec3    `yaml:"target"`
	Up     *Vec3   `yaml:"up,omitempty"`
	Fov    float32 `yaml:"fov"`
	Aspect float32 `yaml:"aspect"`
	Near   float32 `yaml:"near"`
	Far    float32 `yaml:"far"`
}

// SunSpec is the primary directional light.
type SunSpec struct {
	Key       int32   `yaml:"key"`
	Longitude float32 `yaml:"longitude"`
	Latitude  float32 `yaml:"latitude"`
	Color     Vec3    `yaml:"color"`
	Intensity float32 `yaml:"intensity"`
}

// MeshSpec is either a procedural shape or inline vertex data.
type MeshSpec struct {
	Key   int32   `yaml:"key"`
	Shape string  `yaml:"shape,omitempty"` // cube or quad
	Size  float32 `yaml:"size,omitempty"`

	Positions []Vec3   `yaml:"positions,omitempty"`
	Indices   []uint32 `yaml:"indices,omitempty"`
}

// FrameSpec is the events delivered before one frame boundary. Repeat
// adds that many idle frames after it.
type FrameSpec struct {
	Events []Event     `yaml:"events,omitempty"`
	Camera *CameraSpec `yaml:"camera,omitempty"`
	Sun    *SunSpec    `yaml:"sun,omitempty"`
	Repeat int         `yaml:"repeat,omitempty"`
}

// Event is one host lifecycle event.
type Event struct {
	Op       string `yaml:"op"`
	Instance int32  `yaml:"instance,omitempty"`
	Geometry int32  `yaml:"geometry,omitempty"`
	Light    int32  `yaml:"light,omitempty"`

	Transform `yaml:",inline"`

	Params *LightSpec `yaml:"params,omitempty"`
}

// Transform is a translate * rotate * scale placement. Rotation is XYZ
// Euler angles in degrees.
type Transform struct {
	Position Vec3  `yaml:"position,omitempty"`
	Rotation Vec3  `yaml:"rotation,omitempty"`
	Scale    *Vec3 `yaml:"scale,omitempty"`
}

// Matrix returns the local-to-world matrix.
func (t Transform) Matrix() math.Mat4 {
	scale := Vec3{1, 1, 1}
	if t.Scale != nil {
		scale = *t.Scale
	}
	rot := mgl32.AnglesToQuat(
		mgl32.DegToRad(t.Rotation[0]),
		mgl32.DegToRad(t.Rotation[1]),
		mgl32.DegToRad(t.Rotation[2]),
		mgl32.XYZ,
	)
	m := mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
	return math.Mat4(m)
}

// LightSpec describes a scripted light.
type LightSpec struct {
	Kind            string  `yaml:"kind"`
	Position        Vec3    `yaml:"position"`
	Direction       Vec3    `yaml:"direction"`
	Color           Vec3    `yaml:"color"`
	Intensity       float32 `yaml:"intensity"`
	BounceIntensity float32 `yaml:"bounce_intensity"`
	Range           float32 `yaml:"range"`
	SpotAngle       float32 `yaml:"spot_angle"`
	Enabled         *bool   `yaml:"enabled,omitempty"`
}

// Params converts to light parameters. Lights are enabled unless stated
// otherwise.
func (l *LightSpec) Params() (rtdata.LightParams, error) {
	kind, err := rtdata.ParseLightKind(l.Kind)
	if err != nil {
		return rtdata.LightParams{}, err
	}
	enabled := true
	if l.Enabled != nil {
		enabled = *l.Enabled
	}
	dir := l.Direction.vec()
	if dir.Length() > 0 {
		dir = dir.Normalize()
	}
	return rtdata.LightParams{
		Position:        l.Position.vec(),
		Direction:       dir,
		Color:           [3]float32(l.Color),
		Intensity:       l.Intensity,
		BounceIntensity: l.BounceIntensity,
		Range:           l.Range,
		SpotAngle:       l.SpotAngle,
		Kind:            kind,
		Enabled:         enabled,
	}, nil
}

// Load reads and validates a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) validate() error {
	s.meshIdx = make(map[rtdata.GeometryKey]int, len(s.Meshes))
	for i, m := range s.Meshes {
		key := rtdata.GeometryKey(m.Key)
		if _, dup := s.meshIdx[key]; dup {
			return fmt.Errorf("mesh %d defined twice", m.Key)
		}
		switch m.Shape {
		case "", "cube", "quad":
		default:
			return fmt.Errorf("mesh %d: unknown shape %q", m.Key, m.Shape)
		}
		if m.Shape == "" && len(m.Positions) == 0 {
			return fmt.Errorf("mesh %d: needs a shape or positions", m.Key)
		}
		s.meshIdx[key] = i
	}

	for fi, f := range s.Frames {
		if f.Repeat < 0 {
			return fmt.Errorf("frame %d: negative repeat", fi)
		}
		for ei, ev := range f.Events {
			switch ev.Op {
			case OpRegister:
				if _, ok := s.meshIdx[rtdata.GeometryKey(ev.Geometry)]; !ok {
					return fmt.Errorf("frame %d event %d: unknown mesh %d", fi, ei, ev.Geometry)
				}
			case OpActivate, OpDeactivate, OpMove, OpRemoveLight:
			case OpLight:
				if ev.Params == nil {
					return fmt.Errorf("frame %d event %d: light without params", fi, ei)
				}
				if _, err := ev.Params.Params(); err != nil {
					return fmt.Errorf("frame %d event %d: %w", fi, ei, err)
				}
			default:
				return fmt.Errorf("frame %d event %d: unknown op %q", fi, ei, ev.Op)
			}
		}
	}
	return nil
}

// FrameCount returns the number of frames the script spans, repeats
// included.
func (s *Script) FrameCount() int {
	n := 0
	for _, f := range s.Frames {
		n += 1 + f.Repeat
	}
	return n
}

// Mesh builds the mesh for key.
func (s *Script) Mesh(key rtdata.GeometryKey) (geometry.Mesh, bool) {
	i, ok := s.meshIdx[key]
	if !ok {
		return geometry.Mesh{}, false
	}
	m := s.Meshes[i]
	size := m.Size
	if size == 0 {
		size = 1
	}
	switch m.Shape {
	case "cube":
		return geometry.Cube(size), true
	case "quad":
		return geometry.Quad(size), true
	}
	pos := make([]math.Vec3, len(m.Positions))
	for j, p := range m.Positions {
		pos[j] = p.vec()
	}
	return geometry.Mesh{Positions: pos, Indices: m.Indices}, true
}

// Matrices returns the camera position, world-to-camera and projection.
func (c CameraSpec) Matrices() (math.Vec3, math.Mat4, math.Mat4) {
	up := Vec3{0, 1, 0}
	if c.Up != nil {
		up = *c.Up
	}
	fov, aspect, near, far := c.Fov, c.Aspect, c.Near, c.Far
	if fov == 0 {
		fov = 60
	}
	if aspect == 0 {
		aspect = 16.0 / 9.0
	}
	if near == 0 {
		near = 0.1
	}
	if far == 0 {
		far = 1000
	}
	view := mgl32.LookAtV(mgl32.Vec3(c.Eye), mgl32.Vec3(c.Target), mgl32.Vec3(up))
	proj := mgl32.Perspective(mgl32.DegToRad(fov), aspect, near, far)
	return c.Eye.vec(), math.Mat4(view), math.Mat4(proj)
}
