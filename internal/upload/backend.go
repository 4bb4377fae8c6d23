package upload

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Faultbox/rtsync/internal/logger"
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

var (
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnknownGeometry = errors.New("unknown geometry")
	ErrUnknownInstance = errors.New("unknown tlas instance")
	ErrBadShaderSlot   = errors.New("bad shader slot")
)

// DefaultShaderSlots is the number of shader slots a Backend accepts:
// the shadow-ray vertex and fragment stages.
const DefaultShaderSlots = 2

type meshEntry struct {
	vertexCount int
	indexCount  int
}

type tlasEntry struct {
	geometry    rtdata.GeometryKey
	local2world math.Mat4
	world2local math.Mat4
}

// Backend is an in-memory Channel that keeps the state a real ray-tracing
// plugin would: shared meshes, TLAS entries, lights, camera and shader
// binaries. It enforces the plugin's rules (no duplicate keys, no TLAS
// entry for an unknown mesh) and reports through a native log bridge.
type Backend struct {
	log   *logger.Bridge
	slots int

	meshes    map[rtdata.GeometryKey]meshEntry
	instances map[rtdata.InstanceKey]tlasEntry
	lights    map[rtdata.LightKey]rtdata.LightParams
	shaders   map[int][]byte

	cameraPos      math.Vec3
	cameraViewProj math.Mat4

	rebuildTlas bool
	updateTlas  bool

	Frames   uint64
	Rebuilds uint64
	Refits   uint64
}

// NewBackend creates an empty backend. A nil bridge discards messages.
func NewBackend(bridge *logger.Bridge, shaderSlots int) *Backend {
	if bridge == nil {
		bridge = logger.NewBridge(1)
	}
	if shaderSlots <= 0 {
		shaderSlots = DefaultShaderSlots
	}
	return &Backend{
		log:            bridge,
		slots:          shaderSlots,
		meshes:         make(map[rtdata.GeometryKey]meshEntry),
		instances:      make(map[rtdata.InstanceKey]tlasEntry),
		lights:         make(map[rtdata.LightKey]rtdata.LightParams),
		shaders:        make(map[int][]byte),
		cameraViewProj: math.Identity(),
	}
}

func (b *Backend) UploadGeometry(key rtdata.GeometryKey, vertices rtdata.VertexBuffer, indices []uint32) error {
	if _, ok := b.meshes[key]; ok {
		return fmt.Errorf("shared mesh %d: %w", key, ErrAlreadyExists)
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("shared mesh %d: index count %d is not a triangle list", key, len(indices))
	}
	b.meshes[key] = meshEntry{vertexCount: vertices.Len(), indexCount: len(indices)}
	b.log.Logf(logger.NativeInfo, "shared mesh %d added (%d vertices, %d indices)", key, vertices.Len(), len(indices))
	return nil
}

func (b *Backend) CreateTlasEntry(inst rtdata.InstanceKey, geo rtdata.GeometryKey, local2world, world2local math.Mat4) error {
	if _, ok := b.instances[inst]; ok {
		return fmt.Errorf("tlas instance %d: %w", inst, ErrAlreadyExists)
	}
	if _, ok := b.meshes[geo]; !ok {
		b.log.Logf(logger.NativeError, "tlas instance %d references missing mesh %d", inst, geo)
		return fmt.Errorf("tlas instance %d: mesh %d: %w", inst, geo, ErrUnknownGeometry)
	}
	b.instances[inst] = tlasEntry{geometry: geo, local2world: local2world, world2local: world2local}
	b.rebuildTlas = true
	b.log.Log(logger.NativeInfo, "Create TLAS Done")
	return nil
}

func (b *Backend) UpdateTlasEntry(inst rtdata.InstanceKey, local2world, world2local math.Mat4) error {
	e, ok := b.instances[inst]
	if !ok {
		return fmt.Errorf("tlas instance %d: %w", inst, ErrUnknownInstance)
	}
	e.local2world = local2world
	e.world2local = world2local
	b.instances[inst] = e
	b.updateTlas = true
	return nil
}

func (b *Backend) RemoveTlasEntry(inst rtdata.InstanceKey) {
	if _, ok := b.instances[inst]; !ok {
		b.log.Logf(logger.NativeWarning, "remove of unknown tlas instance %d", inst)
		return
	}
	delete(b.instances, inst)
	b.rebuildTlas = true
}

func (b *Backend) UpdateLight(key rtdata.LightKey, params rtdata.LightParams) error {
	b.lights[key] = params
	return nil
}

func (b *Backend) RemoveLight(key rtdata.LightKey) {
	delete(b.lights, key)
}

func (b *Backend) UpdateCamera(position math.Vec3, viewProjection math.Mat4) {
	b.cameraPos = position
	b.cameraViewProj = viewProjection
}

func (b *Backend) LoadShaderBinary(slot int, data []byte) error {
	if slot < 0 || slot >= b.slots {
		return fmt.Errorf("shader slot %d of %d: %w", slot, b.slots, ErrBadShaderSlot)
	}
	if len(data) == 0 {
		return fmt.Errorf("shader slot %d: empty binary", slot)
	}
	b.shaders[slot] = slices.Clone(data)
	b.log.Logf(logger.NativeInfo, "shader slot %d loaded (%d bytes)", slot, len(data))
	return nil
}

// SubmitFrame consumes the rebuild/refit flags the way the plugin's render
// event does: a structural change forces a full TLAS rebuild, otherwise
// moved instances only refit.
func (b *Backend) SubmitFrame(s Summary) {
	b.Frames++
	switch {
	case b.rebuildTlas:
		b.Rebuilds++
	case b.updateTlas:
		b.Refits++
	}
	b.rebuildTlas = false
	b.updateTlas = false
}

// HasGeometry reports whether a shared mesh was uploaded.
func (b *Backend) HasGeometry(key rtdata.GeometryKey) bool {
	_, ok := b.meshes[key]
	return ok
}

// Instance returns the stored transforms of a TLAS entry.
func (b *Backend) Instance(inst rtdata.InstanceKey) (geo rtdata.GeometryKey, local2world, world2local math.Mat4, ok bool) {
	e, ok := b.instances[inst]
	return e.geometry, e.local2world, e.world2local, ok
}

// Light returns the stored parameters of a light.
func (b *Backend) Light(key rtdata.LightKey) (rtdata.LightParams, bool) {
	p, ok := b.lights[key]
	return p, ok
}

// Camera returns the last camera position and view-projection.
func (b *Backend) Camera() (math.Vec3, math.Mat4) {
	return b.cameraPos, b.cameraViewProj
}

// Shader returns the binary loaded into slot.
func (b *Backend) Shader(slot int) ([]byte, bool) {
	s, ok := b.shaders[slot]
	return s, ok
}

// Counts returns the number of meshes, TLAS entries and lights held.
func (b *Backend) Counts() (meshes, instances, lights int) {
	return len(b.meshes), len(b.instances), len(b.lights)
}
