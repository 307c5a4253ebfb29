// Package metrics defines the Prometheus instruments for the wire
// protocol layer. Everything registers against the default registry
// and is served through the admin API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "realmd"

var (
	// ConnectionsAccepted counts TCP connections accepted across all
	// service ports.
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "net",
		Name:      "connections_accepted_total",
		Help:      "TCP connections accepted.",
	})

	// ActiveSessions tracks protocol sessions currently open.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "net",
		Name:      "active_sessions",
		Help:      "Protocol sessions currently open.",
	})

	// FramesIn counts complete frames delivered to sessions.
	FramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wire",
		Name:      "frames_in_total",
		Help:      "Complete frames received and dispatched.",
	})

	// FramesOut counts finalized frames handed to connections.
	FramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wire",
		Name:      "frames_out_total",
		Help:      "Finalized frames transmitted.",
	})

	// BytesOut counts frame bytes handed to connections.
	BytesOut = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wire",
		Name:      "bytes_out_total",
		Help:      "Frame bytes transmitted.",
	})

	// ChecksumFailures counts frames dropped for checksum or sequence
	// mismatches. Each one also closes its connection.
	ChecksumFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wire",
		Name:      "checksum_failures_total",
		Help:      "Frames rejected by checksum or sequence verification.",
	})

	// ProtocolViolations counts fatal decode errors other than
	// checksum mismatches (decryption failures, oversized frames).
	ProtocolViolations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "wire",
		Name:      "protocol_violations_total",
		Help:      "Fatal protocol-level decode errors.",
	})

	// PoolAcquires counts output buffers handed out by the pool.
	PoolAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "acquires_total",
		Help:      "Output message buffers acquired.",
	})

	// PoolRecycles counts output buffers returned to the pool.
	PoolRecycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "recycles_total",
		Help:      "Output message buffers recycled.",
	})

	// AutosendSessions tracks sessions with buffered-but-unsent data.
	AutosendSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "autosend_sessions",
		Help:      "Sessions registered for the next batched flush.",
	})

	// FlushBatches counts non-empty batched flush runs.
	FlushBatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "flush_batches_total",
		Help:      "Batched flush runs that transmitted at least one session.",
	})
)
