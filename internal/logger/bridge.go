package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// NativeLevel is the level code a rendering backend attaches to the
// messages it reports back to the host.
type NativeLevel int

const (
	NativeInfo NativeLevel = iota
	NativeWarning
	NativeError
)

// DefaultBridgeBacklog is the number of messages a detached bridge keeps.
const DefaultBridgeBacklog = 256

type bridgeMsg struct {
	level NativeLevel
	text  string
	value int
	isInt bool
}

// Bridge routes level-coded backend messages into a zap logger. Messages
// reported while no logger is attached are kept (up to the backlog size,
// oldest dropped first) and flushed on Attach.
type Bridge struct {
	mu      sync.Mutex
	log     *zap.Logger
	pending []bridgeMsg
	backlog int
	dropped int
}

// NewBridge creates a detached bridge with the given backlog size.
func NewBridge(backlog int) *Bridge {
	if backlog <= 0 {
		backlog = DefaultBridgeBacklog
	}
	return &Bridge{backlog: backlog}
}

// Attach connects the bridge to a logger and flushes the backlog.
func (b *Bridge) Attach(log *zap.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log = log
	if b.dropped > 0 {
		log.Warn("native log backlog overflowed", zap.Int("dropped", b.dropped))
		b.dropped = 0
	}
	for _, m := range b.pending {
		b.emit(m)
	}
	b.pending = nil
}

// Detach disconnects the logger. Later messages are buffered again.
func (b *Bridge) Detach() {
	b.mu.Lock()
	b.log = nil
	b.mu.Unlock()
}

// Pending returns the number of buffered messages.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Log reports a text message.
func (b *Bridge) Log(level NativeLevel, msg string) {
	b.push(bridgeMsg{level: level, text: msg})
}

// Logf reports a formatted text message.
func (b *Bridge) Logf(level NativeLevel, format string, args ...any) {
	b.push(bridgeMsg{level: level, text: fmt.Sprintf(format, args...)})
}

// LogInt reports a bare integer, the backend's cheap diagnostic channel.
func (b *Bridge) LogInt(level NativeLevel, v int) {
	b.push(bridgeMsg{level: level, value: v, isInt: true})
}

func (b *Bridge) push(m bridgeMsg) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.log != nil {
		b.emit(m)
		return
	}
	if len(b.pending) >= b.backlog {
		b.pending = b.pending[1:]
		b.dropped++
	}
	b.pending = append(b.pending, m)
}

func (b *Bridge) emit(m bridgeMsg) {
	msg := m.text
	var fields []zap.Field
	if m.isInt {
		msg = "native value"
		fields = append(fields, zap.Int("value", m.value))
	}

	switch m.level {
	case NativeWarning:
		b.log.Warn(msg, fields...)
	case NativeError:
		b.log.Error(msg, fields...)
	default:
		b.log.Info(msg, fields...)
	}
}
