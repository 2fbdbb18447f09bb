package mmiotrap

import "sync/atomic"

// LatencyBuckets defines the access-latency histogram buckets in
// nanoseconds, logarithmically spaced from 1us to 10s — the same spacing
// the teacher's metrics.go uses for its I/O latency histogram, re-keyed
// here to the round trip of one trapped MMIO access instead of one block
// I/O operation.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics accumulates access and interrupt counters across every
// registered device. It implements interfaces.Observer so it can be
// handed directly to fault.New/interrupt.New as the Observer, the way
// the teacher's Metrics type is threaded through its backend.
type Metrics struct {
	Loads          atomic.Uint64
	Stores         atomic.Uint64
	ModelErrors    atomic.Uint64 // Result != 0 in a model response
	TransportFails atomic.Uint64 // hard transport errors

	InterruptsDelivered atomic.Uint64
	InterruptsDropped   atomic.Uint64 // no handler registered for the device

	// Access latency, accumulated the same way as the teacher's
	// TotalLatencyNs/OpCount: the model round trip for every access,
	// regardless of outcome.
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// LatencyBuckets[i] is the cumulative count of accesses with latency
	// <= the package-level LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64
}

// NewMetrics returns a zeroed Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveAccess implements interfaces.Observer.
func (m *Metrics) ObserveAccess(deviceID uint32, direction string, width int, outcome string, latencyNs uint64) {
	switch direction {
	case "load":
		m.Loads.Add(1)
	case "store":
		m.Stores.Add(1)
	}
	switch outcome {
	case "model-error":
		m.ModelErrors.Add(1)
	case "transport-error":
		m.TransportFails.Add(1)
	}
	m.recordLatency(latencyNs)
}

// recordLatency updates the running total and the histogram buckets,
// mirroring the teacher's recordLatency.
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// ObserveInterrupt implements interfaces.Observer.
func (m *Metrics) ObserveInterrupt(deviceID uint32, interruptID uint32, delivered bool) {
	if delivered {
		m.InterruptsDelivered.Add(1)
	} else {
		m.InterruptsDropped.Add(1)
	}
}

// Snapshot is a point-in-time copy of Metrics' counters, safe to log or
// serialize.
type Snapshot struct {
	Loads               uint64
	Stores              uint64
	ModelErrors         uint64
	TransportFails      uint64
	InterruptsDelivered uint64
	InterruptsDropped   uint64

	AvgLatencyNs     uint64
	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot reads every counter.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Loads:               m.Loads.Load(),
		Stores:              m.Stores.Load(),
		ModelErrors:         m.ModelErrors.Load(),
		TransportFails:      m.TransportFails.Load(),
		InterruptsDelivered: m.InterruptsDelivered.Load(),
		InterruptsDropped:   m.InterruptsDropped.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}
