package netmsg

import (
	"sync"
	"sync/atomic"

	"github.com/openmmo/realmd/pkg/metrics"
)

// Flusher is the pool's view of a protocol session with buffered
// output: enough to skip dead connections and to finalize-and-send.
type Flusher interface {
	// ConnectionExpired reports whether the owning connection is gone;
	// expired sessions are dropped instead of flushed.
	ConnectionExpired() bool

	// FlushOutput finalizes the session's pending output message and
	// hands it to the connection. Must be a no-op once the session is
	// closed or has nothing pending.
	FlushOutput()
}

// Scheduler defers a task to the next tick of the host's task loop.
type Scheduler interface {
	Schedule(task func())
}

// OutputMessagePool recycles output buffers and batches sends: many
// small application writes within one logic tick accumulate into a
// session's pending message and go out in a single socket write when
// the scheduled flush runs.
type OutputMessagePool struct {
	scheduler Scheduler
	free      sync.Pool

	mu       sync.Mutex
	autosend map[Flusher]struct{}

	flushQueued atomic.Bool
}

// NewOutputMessagePool builds a pool whose deferred flushes run on the
// given scheduler. The pool is created once at server start and passed
// down to every session.
func NewOutputMessagePool(scheduler Scheduler) *OutputMessagePool {
	p := &OutputMessagePool{
		scheduler: scheduler,
		autosend:  make(map[Flusher]struct{}),
	}
	p.free.New = func() any { return new(OutputMessage) }
	return p
}

// Acquire returns a recycled, reset output buffer, or a fresh one when
// none is free.
func (p *OutputMessagePool) Acquire() *OutputMessage {
	msg := p.free.Get().(*OutputMessage)
	msg.Reset()
	metrics.PoolAcquires.Inc()
	return msg
}

// Release recycles a transmitted buffer. The caller must not touch the
// message afterwards.
func (p *OutputMessagePool) Release(msg *OutputMessage) {
	metrics.PoolRecycles.Inc()
	p.free.Put(msg)
}

// RegisterForAutosend adds a session the first time it accumulates
// pending unsent data. Idempotent.
func (p *OutputMessagePool) RegisterForAutosend(s Flusher) {
	p.mu.Lock()
	p.autosend[s] = struct{}{}
	metrics.AutosendSessions.Set(float64(len(p.autosend)))
	p.mu.Unlock()
}

// Unregister removes a session on disconnect or once fully flushed.
// Safe to call concurrently with an in-progress FlushAll: the
// session's own FlushOutput guard keeps a torn-down session from being
// transmitted.
func (p *OutputMessagePool) Unregister(s Flusher) {
	p.mu.Lock()
	delete(p.autosend, s)
	metrics.AutosendSessions.Set(float64(len(p.autosend)))
	p.mu.Unlock()
}

// FlushAll finalizes and transmits every registered session's pending
// message, then clears the autosend set. Expired sessions are dropped
// without a send attempt.
func (p *OutputMessagePool) FlushAll() {
	p.mu.Lock()
	sessions := make([]Flusher, 0, len(p.autosend))
	for s := range p.autosend {
		sessions = append(sessions, s)
	}
	p.autosend = make(map[Flusher]struct{})
	metrics.AutosendSessions.Set(0)
	p.mu.Unlock()

	for _, s := range sessions {
		if s.ConnectionExpired() {
			continue
		}
		s.FlushOutput()
	}
	if len(sessions) > 0 {
		metrics.FlushBatches.Inc()
	}
}

// ScheduleFlushAll defers FlushAll to the scheduler's next tick. At
// most one flush is queued at a time.
func (p *OutputMessagePool) ScheduleFlushAll() {
	if !p.flushQueued.CompareAndSwap(false, true) {
		return
	}
	p.scheduler.Schedule(func() {
		p.flushQueued.Store(false)
		p.FlushAll()
	})
}
