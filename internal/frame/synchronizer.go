// Package frame turns the scene events of one frame into the minimal set of
// Upload Channel commands.
//
// Hosts report lifecycle events as they happen; nothing reaches the
// channel until OnFrameBoundary, which runs four passes in a fixed order:
//
//  1. structure: upload missing geometry, create pending TLAS entries,
//     remove deactivated ones
//  2. transforms: refit entries that moved
//  3. camera: always sent
//  4. lights: changed and removed lights
//
// and finally notifies channels implementing upload.FrameSubmitter.
package frame

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/rtsync/internal/camera"
	"github.com/Faultbox/rtsync/internal/geometry"
	"github.com/Faultbox/rtsync/internal/instance"
	"github.com/Faultbox/rtsync/internal/light"
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/internal/upload"
	"github.com/Faultbox/rtsync/pkg/math"
)

// ErrMissingGeometry is reported when an instance references geometry that
// was never registered and no MeshSource can supply it.
var ErrMissingGeometry = errors.New("geometry not available")

// Config wires the synchronizer to the host.
type Config struct {
	// Tolerance is the transform no-op threshold, see instance.NewTable.
	Tolerance  float32
	Convention camera.Convention

	Meshes       MeshSource
	Camera       CameraSource
	PrimaryLight light.PrimarySource
}

type hostCamera struct {
	position      math.Vec3
	worldToCamera math.Mat4
	projection    math.Mat4
}

// Synchronizer owns the scene tables and drives the Upload Channel.
// It is not safe for concurrent use; hosts call it from their main thread.
type Synchronizer struct {
	cfg     Config
	channel upload.Channel
	log     *zap.Logger

	geometry  *geometry.Registry
	instances *instance.Table
	lights    *light.Table
	camera    *camera.Tracker

	manual  hostCamera
	primary struct {
		key rtdata.LightKey
		ok  bool
	}

	frame uint64
}

// New creates a synchronizer pushing to ch. A nil log discards output.
func New(cfg Config, ch upload.Channel, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synchronizer{
		cfg:       cfg,
		channel:   ch,
		log:       log,
		geometry:  geometry.NewRegistry(ch, log.Named("geometry")),
		instances: instance.NewTable(cfg.Tolerance),
		lights:    light.NewTable(),
		camera:    camera.NewTracker(cfg.Convention),
	}
	s.manual = hostCamera{worldToCamera: math.Identity(), projection: math.Identity()}
	return s
}

// Geometry exposes the registry for inspection.
func (s *Synchronizer) Geometry() *geometry.Registry { return s.geometry }

// Instances exposes the instance table for inspection.
func (s *Synchronizer) Instances() *instance.Table { return s.instances }

// Lights exposes the light table for inspection.
func (s *Synchronizer) Lights() *light.Table { return s.lights }

// Frame returns the number of completed frames.
func (s *Synchronizer) Frame() uint64 { return s.frame }

// RegisterGeometry registers and uploads a mesh immediately.
func (s *Synchronizer) RegisterGeometry(key rtdata.GeometryKey, mesh geometry.Mesh) (geometry.Result, error) {
	res, err := s.geometry.Register(key, mesh)
	if err != nil {
		s.log.Warn("Geometry registration failed",
			zap.Int32("geometry", int32(key)),
			zap.Error(err),
		)
	}
	return res, err
}

// OnInstanceActivated starts tracking an instance. Its TLAS entry is
// created at the next frame boundary.
func (s *Synchronizer) OnInstanceActivated(key rtdata.InstanceKey, geo rtdata.GeometryKey, local2world math.Mat4) error {
	_, err := s.instances.Activate(key, geo, local2world)
	if err != nil {
		s.log.Warn("Instance activation",
			zap.Int32("instance", int32(key)),
			zap.Int32("geometry", int32(geo)),
			zap.Error(err),
		)
	}
	return err
}

// OnInstanceDeactivated stops tracking an instance.
func (s *Synchronizer) OnInstanceDeactivated(key rtdata.InstanceKey) {
	s.instances.Deactivate(key)
}

// OnInstanceTransformChanged records a new transform. Several calls within
// one frame coalesce into a single update.
func (s *Synchronizer) OnInstanceTransformChanged(key rtdata.InstanceKey, local2world math.Mat4) error {
	err := s.instances.SetTransform(key, local2world)
	if err != nil {
		s.log.Warn("Instance transform rejected",
			zap.Int32("instance", int32(key)),
			zap.Error(err),
		)
	}
	return err
}

// OnLightChanged creates or updates a light. Params with NaN or infinite
// fields are rejected and the light keeps its last valid state.
func (s *Synchronizer) OnLightChanged(key rtdata.LightKey, params rtdata.LightParams) error {
	if !params.IsFinite() {
		err := fmt.Errorf("light %d: %w", key, rtdata.ErrInvalidLight)
		s.log.Warn("Light rejected", zap.Int32("light", int32(key)), zap.Error(err))
		return err
	}
	s.lights.Upsert(key, params)
	return nil
}

// OnLightRemoved drops a light.
func (s *Synchronizer) OnLightRemoved(key rtdata.LightKey) {
	s.lights.Remove(key)
}

// SetCamera sets the camera used when no CameraSource is configured or the
// source has nothing this frame.
func (s *Synchronizer) SetCamera(position math.Vec3, worldToCamera, projection math.Mat4) {
	s.manual = hostCamera{position: position, worldToCamera: worldToCamera, projection: projection}
}

// OnFrameBoundary pushes every change accumulated since the previous call.
// Records that fail are rolled back and retried next frame; one failure
// never stops the rest of the frame.
func (s *Synchronizer) OnFrameBoundary() Report {
	s.frame++
	rep := Report{Frame: s.frame}

	s.syncStructure(&rep)
	s.syncTransforms(&rep)
	s.syncCamera(&rep)
	s.syncLights(&rep)

	if sub, ok := s.channel.(upload.FrameSubmitter); ok {
		sub.SubmitFrame(upload.Summary{
			Frame:     rep.Frame,
			Rebuild:   rep.Rebuild(),
			Refit:     rep.Refit(),
			Instances: s.instances.CreatedCount(),
			Lights:    s.lights.Len(),
		})
	}

	for _, f := range rep.Failures {
		s.log.Warn("Frame sync failure",
			zap.Uint64("frame", rep.Frame),
			zap.String("stage", string(f.Stage)),
			zap.Int32("key", f.Key),
			zap.Error(f.Err),
		)
	}
	s.log.Debug("Frame synced", rep.Fields()...)
	return rep
}

func (s *Synchronizer) syncStructure(rep *Report) {
	geoErr := make(map[rtdata.GeometryKey]error)

	for _, rec := range s.instances.PendingCreates() {
		err, seen := geoErr[rec.Geometry]
		if !seen {
			err = s.ensureGeometry(rec.Geometry, rep)
			geoErr[rec.Geometry] = err
		}
		if err != nil {
			s.instances.MarkCreateFailed(rec.Key, err)
			rep.fail(StageCreate, int32(rec.Key), err)
			continue
		}

		// A key deactivated and re-activated with other geometry this frame
		// still owns its old entry.
		if s.instances.TakeRemoval(rec.Key) {
			s.channel.RemoveTlasEntry(rec.Key)
			rep.Removed++
		}

		if err := s.channel.CreateTlasEntry(rec.Key, rec.Geometry, rec.Local2World, rec.World2Local); err != nil {
			err = fmt.Errorf("instance %d: %w: %v", rec.Key, rtdata.ErrUploadRejected, err)
			s.instances.MarkCreateFailed(rec.Key, err)
			rep.fail(StageCreate, int32(rec.Key), err)
			continue
		}
		s.instances.MarkCreated(rec.Key)
		rep.Created++
	}

	for _, key := range s.instances.DrainRemovals() {
		s.channel.RemoveTlasEntry(key)
		rep.Removed++
	}
}

// ensureGeometry makes sure key is uploaded, registering it through the
// MeshSource when the host never did.
func (s *Synchronizer) ensureGeometry(key rtdata.GeometryKey, rep *Report) error {
	if s.geometry.IsRegistered(key) {
		return nil
	}

	var mesh geometry.Mesh
	found := false
	if s.cfg.Meshes != nil {
		mesh, found = s.cfg.Meshes.Mesh(key)
	}

	var (
		res geometry.Result
		err error
	)
	switch {
	case found:
		res, err = s.geometry.Register(key, mesh)
	case s.geometry.Status(key) == geometry.Failed:
		// An explicit registration that was rejected keeps its payload.
		res, err = s.geometry.Retry(key)
	default:
		return fmt.Errorf("geometry %d: %w", key, ErrMissingGeometry)
	}
	if err != nil {
		rep.fail(StageGeometry, int32(key), err)
		return err
	}
	if res == geometry.Uploaded {
		rep.GeometryUploads++
	}
	return nil
}

func (s *Synchronizer) syncTransforms(rep *Report) {
	for _, u := range s.instances.DrainDirty() {
		if err := s.channel.UpdateTlasEntry(u.Key, u.Local2World, u.World2Local); err != nil {
			err = fmt.Errorf("instance %d: %w: %v", u.Key, rtdata.ErrUploadRejected, err)
			s.instances.MarkDirty(u.Key, err)
			rep.fail(StageUpdate, int32(u.Key), err)
			continue
		}
		s.instances.MarkSynced(u.Key)
		rep.Updated++
	}
}

func (s *Synchronizer) syncCamera(rep *Report) {
	cam := s.manual
	if s.cfg.Camera != nil {
		if pos, w2c, proj, ok := s.cfg.Camera.Camera(); ok {
			cam = hostCamera{position: pos, worldToCamera: w2c, projection: proj}
		}
	}
	rep.Camera = s.camera.Update(cam.position, cam.worldToCamera, cam.projection)
	s.channel.UpdateCamera(rep.Camera.Position, rep.Camera.ViewProjection)
}

func (s *Synchronizer) syncLights(rep *Report) {
	s.foldPrimaryLight()

	if remover, ok := s.channel.(upload.LightRemover); ok {
		for _, key := range s.lights.DrainRemoved() {
			remover.RemoveLight(key)
			rep.LightsRemoved++
		}
	} else {
		s.lights.DrainRemoved()
	}

	for _, rec := range s.lights.DrainDirty() {
		if err := s.channel.UpdateLight(rec.Key, rec.Params); err != nil {
			err = fmt.Errorf("light %d: %w: %v", rec.Key, rtdata.ErrUploadRejected, err)
			s.lights.MarkDirty(rec.Key, err)
			rep.fail(StageLight, int32(rec.Key), err)
			continue
		}
		s.lights.MarkSynced(rec.Key)
		rep.LightUpdates++
	}
}

// foldPrimaryLight copies the host's primary light into the table. When
// the host stops reporting one, or reports it under a new key, the old
// light is removed.
func (s *Synchronizer) foldPrimaryLight() {
	if s.cfg.PrimaryLight == nil {
		return
	}
	key, params, ok := s.cfg.PrimaryLight.PrimaryLight()
	if s.primary.ok && (!ok || key != s.primary.key) {
		s.lights.Remove(s.primary.key)
	}
	s.primary.key, s.primary.ok = key, ok
	if ok {
		_ = s.OnLightChanged(key, params)
	}
}
