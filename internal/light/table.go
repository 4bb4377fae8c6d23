// Package light tracks dynamic lights and which of them changed since the
// last upload.
package light

import (
	"slices"

	"github.com/Faultbox/rtsync/internal/rtdata"
)

// Record is one tracked light.
type Record struct {
	Key    rtdata.LightKey
	Params rtdata.LightParams
	State  rtdata.SyncState

	Err      error
	Failures int
}

// Table owns every LightRecord, keyed by identity.
type Table struct {
	records map[rtdata.LightKey]*Record
	dirty   []rtdata.LightKey
	removed []rtdata.LightKey
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{records: make(map[rtdata.LightKey]*Record)}
}

// Upsert creates or updates a light. It returns true when the light is new
// or any parameter differs from the stored one. Non-finite params are
// dropped and return false.
func (t *Table) Upsert(key rtdata.LightKey, params rtdata.LightParams) bool {
	if !params.IsFinite() {
		return false
	}
	rec, ok := t.records[key]
	if !ok {
		rec = &Record{Key: key, Params: params}
		t.records[key] = rec
		t.removed = slices.DeleteFunc(t.removed, func(k rtdata.LightKey) bool { return k == key })
		t.markDirty(rec)
		return true
	}
	if rec.Params == params {
		return false
	}
	rec.Params = params
	t.markDirty(rec)
	return true
}

// Remove stops tracking a light and queues its removal.
func (t *Table) Remove(key rtdata.LightKey) bool {
	if _, ok := t.records[key]; !ok {
		return false
	}
	delete(t.records, key)
	t.dirty = slices.DeleteFunc(t.dirty, func(k rtdata.LightKey) bool { return k == key })
	t.removed = append(t.removed, key)
	return true
}

func (t *Table) markDirty(rec *Record) {
	if rec.State != rtdata.Dirty {
		t.dirty = append(t.dirty, rec.Key)
	}
	rec.State = rtdata.Dirty
}

// DrainDirty returns a snapshot of every changed light once and clears the
// dirty set. Drained lights are Uploading until MarkSynced or MarkDirty.
func (t *Table) DrainDirty() []Record {
	if len(t.dirty) == 0 {
		return nil
	}
	out := make([]Record, 0, len(t.dirty))
	for _, k := range t.dirty {
		rec := t.records[k]
		rec.State = rtdata.Uploading
		out = append(out, *rec)
	}
	t.dirty = t.dirty[:0]
	return out
}

// DrainRemoved returns and clears the keys removed since the last call.
func (t *Table) DrainRemoved() []rtdata.LightKey {
	out := t.removed
	t.removed = nil
	return out
}

// MarkSynced settles a drained light as accepted by the backend.
func (t *Table) MarkSynced(key rtdata.LightKey) {
	if rec, ok := t.records[key]; ok && rec.State == rtdata.Uploading {
		rec.State = rtdata.Clean
		rec.Err = nil
		rec.Failures = 0
	}
}

// MarkDirty rolls a drained light back so the next frame resends it.
func (t *Table) MarkDirty(key rtdata.LightKey, cause error) {
	rec, ok := t.records[key]
	if !ok {
		return
	}
	rec.Err = cause
	rec.Failures++
	t.markDirty(rec)
}

// Get returns the record for key.
func (t *Table) Get(key rtdata.LightKey) (*Record, bool) {
	rec, ok := t.records[key]
	return rec, ok
}

// Len returns the number of tracked lights.
func (t *Table) Len() int {
	return len(t.records)
}
