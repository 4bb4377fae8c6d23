// Package instance tracks placed object instances, their transforms and
// whether each one has a TLAS entry on the backend.
package instance

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/pkg/math"
)

// DefaultTolerance is the largest per-element matrix change treated as
// "not moved".
const DefaultTolerance float32 = 1e-5

// ErrUnknownInstance is returned for transform changes to inactive keys.
var ErrUnknownInstance = errors.New("unknown instance")

// TlasStatus tells whether the backend holds an entry for the instance.
type TlasStatus uint8

const (
	NotCreated TlasStatus = iota
	Created
)

func (s TlasStatus) String() string {
	if s == Created {
		return "created"
	}
	return "not-created"
}

// Record is one active instance.
type Record struct {
	Key         rtdata.InstanceKey
	Geometry    rtdata.GeometryKey
	Local2World math.Mat4
	World2Local math.Mat4
	Tlas        TlasStatus
	State       rtdata.SyncState

	// Singular is set while the latest transform is not invertible. The
	// instance is kept out of every TLAS command until it clears.
	Singular bool

	// Err is the last failure creating or updating this instance.
	Err      error
	Failures int
}

// Handle identifies an activated instance.
type Handle struct {
	Key      rtdata.InstanceKey
	Geometry rtdata.GeometryKey
}

// Update is one drained transform change.
type Update struct {
	Key         rtdata.InstanceKey
	Local2World math.Mat4
	World2Local math.Mat4
}

// keyQueue is an insertion-ordered set of keys.
type keyQueue struct {
	order []rtdata.InstanceKey
	set   map[rtdata.InstanceKey]struct{}
}

func newKeyQueue() keyQueue {
	return keyQueue{set: make(map[rtdata.InstanceKey]struct{})}
}

func (q *keyQueue) push(k rtdata.InstanceKey) {
	if _, ok := q.set[k]; ok {
		return
	}
	q.set[k] = struct{}{}
	q.order = append(q.order, k)
}

func (q *keyQueue) remove(k rtdata.InstanceKey) bool {
	if _, ok := q.set[k]; !ok {
		return false
	}
	delete(q.set, k)
	q.order = slices.DeleteFunc(q.order, func(o rtdata.InstanceKey) bool { return o == k })
	return true
}

func (q *keyQueue) has(k rtdata.InstanceKey) bool {
	_, ok := q.set[k]
	return ok
}

func (q *keyQueue) drain() []rtdata.InstanceKey {
	out := q.order
	q.order = nil
	clear(q.set)
	return out
}

// Table owns every InstanceRecord, keyed by identity.
type Table struct {
	tolerance float32
	records   map[rtdata.InstanceKey]*Record

	dirty   keyQueue // Created records with an unsent transform
	creates keyQueue // records waiting for CreateTlasEntry
	removes keyQueue // keys waiting for RemoveTlasEntry

	// removed keeps deactivated Created records until their removal is
	// sent, so a same-frame re-activation can revive them.
	removed map[rtdata.InstanceKey]*Record
}

// NewTable creates an empty table. A tolerance <= 0 uses DefaultTolerance.
func NewTable(tolerance float32) *Table {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Table{
		tolerance: tolerance,
		records:   make(map[rtdata.InstanceKey]*Record),
		dirty:     newKeyQueue(),
		creates:   newKeyQueue(),
		removes:   newKeyQueue(),
		removed:   make(map[rtdata.InstanceKey]*Record),
	}
}

// Tolerance returns the no-op filtering threshold.
func (t *Table) Tolerance() float32 {
	return t.tolerance
}

// Activate starts tracking an instance of geometry geo and queues its TLAS
// creation. A singular transform still creates the record but returns
// ErrSingularTransform and keeps it out of the TLAS until SetTransform
// supplies an invertible matrix.
func (t *Table) Activate(key rtdata.InstanceKey, geo rtdata.GeometryKey, local2world math.Mat4) (Handle, error) {
	h := Handle{Key: key, Geometry: geo}

	if rec, ok := t.records[key]; ok {
		if rec.Geometry != geo {
			return h, fmt.Errorf("instance %d: active with geometry %d, not %d: %w", key, rec.Geometry, geo, rtdata.ErrDuplicateIdentity)
		}
		return h, t.SetTransform(key, local2world)
	}

	// Deactivated earlier this frame with the same geometry: the backend
	// entry still exists, so cancel the removal and treat this as a move.
	if old, ok := t.removed[key]; ok && old.Geometry == geo {
		t.removes.remove(key)
		delete(t.removed, key)
		t.records[key] = old
		if old.State != rtdata.Clean && !old.Singular {
			t.markDirty(old)
		}
		return h, t.SetTransform(key, local2world)
	}

	rec := &Record{Key: key, Geometry: geo, Tlas: NotCreated, State: rtdata.Dirty}
	t.records[key] = rec

	w2l, ok := local2world.Inverse()
	rec.Local2World = local2world
	if !ok {
		rec.Singular = true
		rec.World2Local = math.Identity()
		return h, fmt.Errorf("instance %d: %w", key, rtdata.ErrSingularTransform)
	}
	rec.World2Local = w2l
	t.creates.push(key)
	return h, nil
}

// Deactivate stops tracking an instance. A Created instance schedules a
// TLAS removal; one that never reached the backend simply disappears.
// Unknown keys are ignored.
func (t *Table) Deactivate(key rtdata.InstanceKey) {
	rec, ok := t.records[key]
	if !ok {
		return
	}
	delete(t.records, key)
	t.dirty.remove(key)
	t.creates.remove(key)

	if rec.Tlas == Created {
		t.removes.push(key)
		t.removed[key] = rec
	}
}

// SetTransform records a new local-to-world matrix. Changes within the
// tolerance of the last accepted matrix are dropped.
func (t *Table) SetTransform(key rtdata.InstanceKey, local2world math.Mat4) error {
	rec, ok := t.records[key]
	if !ok {
		return fmt.Errorf("instance %d: %w", key, ErrUnknownInstance)
	}

	w2l, ok := local2world.Inverse()
	if !ok {
		rec.Singular = true
		t.dirty.remove(key)
		t.creates.remove(key)
		return fmt.Errorf("instance %d: %w", key, rtdata.ErrSingularTransform)
	}

	wasSingular := rec.Singular
	rec.Singular = false
	if !wasSingular && rec.Local2World.ApproxEqual(local2world, t.tolerance) {
		return nil
	}

	rec.Local2World = local2world
	rec.World2Local = w2l

	if rec.Tlas == Created {
		t.markDirty(rec)
	} else {
		rec.State = rtdata.Dirty
		t.creates.push(key)
	}
	return nil
}

func (t *Table) markDirty(rec *Record) {
	rec.State = rtdata.Dirty
	t.dirty.push(rec.Key)
}

// DrainDirty returns every changed Created instance once, in the order they
// first changed, and clears the dirty set. Drained records are Uploading
// until MarkSynced or MarkDirty settles them.
func (t *Table) DrainDirty() []Update {
	keys := t.dirty.drain()
	if len(keys) == 0 {
		return nil
	}
	out := make([]Update, 0, len(keys))
	for _, k := range keys {
		rec, ok := t.records[k]
		if !ok {
			continue
		}
		rec.State = rtdata.Uploading
		out = append(out, Update{Key: k, Local2World: rec.Local2World, World2Local: rec.World2Local})
	}
	return out
}

// MarkSynced settles a drained update as accepted by the backend.
func (t *Table) MarkSynced(key rtdata.InstanceKey) {
	if rec, ok := t.records[key]; ok {
		rec.State = rtdata.Clean
		rec.Err = nil
		rec.Failures = 0
	}
}

// MarkDirty rolls a drained update back so the next frame resends it.
func (t *Table) MarkDirty(key rtdata.InstanceKey, cause error) {
	rec, ok := t.records[key]
	if !ok || rec.Tlas != Created || rec.Singular {
		return
	}
	rec.Err = cause
	rec.Failures++
	t.markDirty(rec)
}

// PendingCreates returns the records waiting for a TLAS entry, in
// activation order.
func (t *Table) PendingCreates() []*Record {
	out := make([]*Record, 0, len(t.creates.order))
	for _, k := range t.creates.order {
		if rec, ok := t.records[k]; ok && !rec.Singular {
			out = append(out, rec)
		}
	}
	return out
}

// MarkCreated records that the backend accepted the TLAS entry, built from
// the record's current transform.
func (t *Table) MarkCreated(key rtdata.InstanceKey) {
	rec, ok := t.records[key]
	if !ok {
		return
	}
	rec.Tlas = Created
	rec.State = rtdata.Clean
	rec.Err = nil
	rec.Failures = 0
	t.creates.remove(key)
	t.dirty.remove(key)
}

// MarkCreateFailed keeps the record queued for creation on the next frame.
func (t *Table) MarkCreateFailed(key rtdata.InstanceKey, cause error) {
	if rec, ok := t.records[key]; ok {
		rec.Err = cause
		rec.Failures++
	}
}

// TakeRemoval claims a pending removal for key, if there is one. Callers
// use it to send the removal of a replaced entry before its re-creation.
func (t *Table) TakeRemoval(key rtdata.InstanceKey) bool {
	if !t.removes.remove(key) {
		return false
	}
	delete(t.removed, key)
	return true
}

// DrainRemovals returns and clears every pending removal.
func (t *Table) DrainRemovals() []rtdata.InstanceKey {
	keys := t.removes.drain()
	clear(t.removed)
	return keys
}

// HasPendingRemoval reports whether a removal for key is queued.
func (t *Table) HasPendingRemoval(key rtdata.InstanceKey) bool {
	return t.removes.has(key)
}

// Get returns the active record for key.
func (t *Table) Get(key rtdata.InstanceKey) (*Record, bool) {
	rec, ok := t.records[key]
	return rec, ok
}

// Len returns the number of active instances.
func (t *Table) Len() int {
	return len(t.records)
}

// CreatedCount returns the number of active instances with a TLAS entry.
func (t *Table) CreatedCount() int {
	n := 0
	for _, rec := range t.records {
		if rec.Tlas == Created {
			n++
		}
	}
	return n
}
