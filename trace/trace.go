// Package trace defines the optional structured event sink the storage
// engine emits to. The core is not coupled to any particular encoder; an
// implementer supplies a Sink and the engine calls it at the points
// documented by the Kind constants below - a WAL append, a chain walk, a
// cache hit or miss, a materialize, and a VCL or VDL advance. The engine
// builds and emits every event unconditionally; the default Sink is a no-op
// that discards them.
package trace

import "time"

// Kind identifies the shape of an Event's Fields.
type Kind string

const (
	KindWALAppend   Kind = "wal_append"
	KindChainWalk   Kind = "chain_walk"
	KindCacheHit    Kind = "cache_hit"
	KindCacheMiss   Kind = "cache_miss"
	KindMaterialize Kind = "materialize"
	KindVCLAdvance  Kind = "vcl_advance"
	KindVDLAdvance  Kind = "vdl_advance"
)

// Event is one structured trace point with a kind-specific field set. At is
// whatever the emitter puts there; the storage engine does not set it, so
// events it emits carry the zero time.
type Event struct {
	Kind   Kind
	At     time.Time
	Fields map[string]any
}

// Sink receives trace events as the engine emits them. Implementations must
// not block the caller for long, since Emit is called inline on the hot
// path when tracing is enabled.
type Sink interface {
	Emit(Event)
}

// NoopSink discards every event. It is the default when no sink is
// configured.
type NoopSink struct{}

// Emit implements Sink by doing nothing.
func (NoopSink) Emit(Event) {}

// ChanSink delivers events to a buffered channel, for a consumer (the
// out-of-core JSON trace emitter, or a test) to drain asynchronously.
// Emit drops the event rather than blocking if the channel is full.
type ChanSink struct {
	C chan Event
}

// NewChanSink returns a ChanSink with a channel of the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

// Emit implements Sink, sending non-blockingly.
func (s *ChanSink) Emit(e Event) {
	select {
	case s.C <- e:
	default:
	}
}
