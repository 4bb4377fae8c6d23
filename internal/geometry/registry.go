// Package geometry deduplicates mesh geometry by identity and uploads each
// shared mesh to the ray-tracing backend exactly once.
package geometry

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/internal/upload"
	"github.com/Faultbox/rtsync/pkg/math"
)

// ErrNotFound is returned by Retry for keys never registered.
var ErrNotFound = errors.New("geometry not found")

// Status is the registration state of a geometry.
type Status uint8

const (
	Unregistered Status = iota
	Pending
	Registered
	Failed
)

func (s Status) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Pending:
		return "pending"
	case Registered:
		return "registered"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Result tells a successful Register call apart from an idempotent repeat.
type Result uint8

const (
	// Uploaded means the geometry was validated and sent to the channel.
	Uploaded Result = iota + 1
	// Unchanged means the key was already registered with the same payload.
	Unchanged
)

// Mesh is the caller-supplied payload. Normals, tangents and uvs may be
// empty; missing normals and tangents are derived, missing uvs are zero.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  []math.Vec4
	UVs       []math.Vec2
	Indices   []uint32
}

// Record is the registry's view of one geometry. Its buffers are owned by
// the registry and must be treated as read-only.
type Record struct {
	Key      rtdata.GeometryKey
	Vertices rtdata.VertexBuffer
	Indices  []uint32
	Bounds   rtdata.Bounds
	Status   Status
	Err      error

	hash uint64
}

// Retryable reports whether a failed record may be uploaded again with the
// same payload.
func (r *Record) Retryable() bool {
	return r.Status == Failed && errors.Is(r.Err, rtdata.ErrUploadRejected)
}

// samePayload reports whether mesh is the payload rec was built from. The
// hash only rules payloads out; a match is confirmed on the built buffers.
func (r *Record) samePayload(h uint64, mesh *Mesh) bool {
	if r.hash != h || r.Vertices.Len() == 0 || validate(mesh) != nil {
		return false
	}
	v, idx, _ := build(mesh)
	return slices.Equal(r.Indices, idx) &&
		slices.Equal(r.Vertices.Positions, v.Positions) &&
		slices.Equal(r.Vertices.Normals, v.Normals) &&
		slices.Equal(r.Vertices.Tangents, v.Tangents) &&
		slices.Equal(r.Vertices.UVs, v.UVs)
}

// Registry owns every GeometryRecord.
type Registry struct {
	channel upload.Channel
	log     *zap.Logger
	records map[rtdata.GeometryKey]*Record
}

// NewRegistry creates a registry uploading through ch.
func NewRegistry(ch upload.Channel, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		channel: ch,
		log:     log,
		records: make(map[rtdata.GeometryKey]*Record),
	}
}

// Register validates mesh, derives missing attributes and uploads it.
//
// Registering a Registered key with an identical payload is a no-op
// returning Unchanged. A different payload under a Registered key fails
// with ErrDuplicateIdentity. Malformed data fails with ErrInvalidGeometry
// and a refused upload with ErrUploadRejected; the latter can be retried
// by calling Register again.
func (r *Registry) Register(key rtdata.GeometryKey, mesh Mesh) (Result, error) {
	h := hashMesh(&mesh)

	if rec, ok := r.records[key]; ok {
		switch rec.Status {
		case Registered:
			if rec.samePayload(h, &mesh) {
				return Unchanged, nil
			}
			return 0, fmt.Errorf("geometry %d: key in use by a different payload: %w", key, rtdata.ErrDuplicateIdentity)
		case Pending:
			return 0, fmt.Errorf("geometry %d: upload in progress: %w", key, rtdata.ErrDuplicateIdentity)
		case Failed:
			if rec.samePayload(h, &mesh) {
				if rec.Retryable() {
					return r.upload(rec)
				}
				return 0, rec.Err
			}
		}
	}

	rec := &Record{Key: key, hash: h}
	r.records[key] = rec

	if err := validate(&mesh); err != nil {
		rec.Status = Failed
		rec.Err = fmt.Errorf("geometry %d: %w", key, err)
		return 0, rec.Err
	}

	rec.Vertices, rec.Indices, rec.Bounds = build(&mesh)
	return r.upload(rec)
}

// Retry re-sends a record whose upload was rejected, using the payload
// stored at registration.
func (r *Registry) Retry(key rtdata.GeometryKey) (Result, error) {
	rec, ok := r.records[key]
	if !ok {
		return 0, fmt.Errorf("geometry %d: %w", key, ErrNotFound)
	}
	switch {
	case rec.Status == Registered:
		return Unchanged, nil
	case rec.Retryable():
		return r.upload(rec)
	default:
		return 0, rec.Err
	}
}

func (r *Registry) upload(rec *Record) (Result, error) {
	rec.Status = Pending
	rec.Err = nil

	if err := r.channel.UploadGeometry(rec.Key, rec.Vertices, rec.Indices); err != nil {
		rec.Status = Failed
		rec.Err = fmt.Errorf("geometry %d: %w: %v", rec.Key, rtdata.ErrUploadRejected, err)
		return 0, rec.Err
	}

	rec.Status = Registered
	r.log.Debug("geometry registered",
		zap.Int32("geometry", int32(rec.Key)),
		zap.Int("vertices", rec.Vertices.Len()),
		zap.Int("indices", len(rec.Indices)),
	)
	return Uploaded, nil
}

// IsRegistered reports whether key was uploaded successfully.
func (r *Registry) IsRegistered(key rtdata.GeometryKey) bool {
	rec, ok := r.records[key]
	return ok && rec.Status == Registered
}

// Status returns the registration state of key.
func (r *Registry) Status(key rtdata.GeometryKey) Status {
	if rec, ok := r.records[key]; ok {
		return rec.Status
	}
	return Unregistered
}

// Record returns the record for key.
func (r *Registry) Record(key rtdata.GeometryKey) (*Record, bool) {
	rec, ok := r.records[key]
	return rec, ok
}

// Len returns the number of known geometries, failed ones included.
func (r *Registry) Len() int {
	return len(r.records)
}
