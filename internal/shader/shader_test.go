package shader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/rtsync/internal/upload"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func TestSlotOf(t *testing.T) {
	tests := []struct {
		path string
		slot int
		ok   bool
	}{
		{"/x/ray_shadowVert.spv", 0, true},
		{"ray_shadowFrag.bytes", 1, true},
		{"ray_shadowFrag.SPV", 1, true},
		{"ray_shadowFrag.txt", 0, false},
		{"other.spv", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			slot, ok := SlotOf(DefaultSlots, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.slot, slot)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ray_shadowVert.spv", []byte{0x03, 0x02, 0x23, 0x07})
	writeFile(t, dir, "ray_shadowVert.bytes", []byte{0xFF})

	core, logs := observer.New(zapcore.InfoLevel)
	rec := upload.NewRecorder()

	n, err := LoadDir(dir, DefaultSlots, rec, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	calls := rec.Filter(upload.OpLoadShader)
	require.Len(t, calls, 1)
	assert.Equal(t, int32(0), calls[0].Key)
	assert.Equal(t, []byte{0x03, 0x02, 0x23, 0x07}, calls[0].Shader, ".spv wins over .bytes")

	assert.Equal(t, 1, logs.FilterMessage("Shader binary not found, slot skipped").Len())
}

func TestLoadDirFallbackAndErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ray_shadowFrag.bytes", []byte{1, 2, 3})
	writeFile(t, dir, "ray_shadowVert.spv", nil)

	be := upload.NewBackend(nil, 0)
	n, err := LoadDir(dir, DefaultSlots, be, nil)
	assert.ErrorIs(t, err, ErrEmptyBinary)
	assert.Equal(t, 1, n)

	data, ok := be.Shader(1)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestLoadDirRejectedSlot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.spv", []byte{1})
	writeFile(t, dir, "b.spv", []byte{2})
	writeFile(t, dir, "c.spv", []byte{3})

	be := upload.NewBackend(nil, 2)
	n, err := LoadDir(dir, []string{"a", "b", "c"}, be, nil)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, upload.ErrBadShaderSlot)
}

func TestQueueFlush(t *testing.T) {
	q := NewQueue()
	buf := []byte{1}
	require.NoError(t, q.LoadShaderBinary(1, buf))
	buf[0] = 9
	require.NoError(t, q.LoadShaderBinary(0, []byte{4}))
	require.NoError(t, q.LoadShaderBinary(0, []byte{5}))
	assert.Equal(t, 2, q.Len())

	rec := upload.NewRecorder()
	n, err := q.Flush(rec)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"LoadShaderBinary(0)", "LoadShaderBinary(1)"}, rec.Ops())
	assert.Equal(t, []byte{5}, rec.Calls[0].Shader)
	assert.Equal(t, []byte{1}, rec.Calls[1].Shader, "queue keeps its own copy")
	assert.Zero(t, q.Len())
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue()

	w, err := NewWatcher(dir, DefaultSlots, q, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, dir, "ignored.txt", []byte("x"))
	writeFile(t, dir, "ray_shadowFrag.spv", []byte{7, 7})

	rec := upload.NewRecorder()
	assert.Eventually(t, func() bool {
		q.Flush(rec)
		for _, c := range rec.Filter(upload.OpLoadShader) {
			if c.Key == 1 && len(c.Shader) == 2 {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	for _, c := range rec.Calls {
		assert.Equal(t, int32(1), c.Key)
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), DefaultSlots, NewQueue(), nil)
	assert.Error(t, err)
}

func TestWatchRunsUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, dir, DefaultSlots, q, nil) }()

	// the watch may not be registered yet, so keep rewriting until it lands
	assert.Eventually(t, func() bool {
		writeFile(t, dir, "ray_shadowVert.spv", []byte{1, 2, 3})
		return q.Len() == 1
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchMissingDir(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), DefaultSlots, NewQueue(), nil)
	assert.Error(t, err)
}
