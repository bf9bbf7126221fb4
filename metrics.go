package driveauth

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one counter or histogram.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricSessionCreated
	MetricSessionInvalidated
	MetricDigestConflictRetry
	MetricResolveSuccess
	MetricResolveDenied
	MetricResolveCacheHit
	MetricResolveCacheMiss
	MetricResolveRevoked
	MetricAuthorityFailOpen
	MetricCacheDegraded
	MetricLogout
	MetricRevokeAll
	MetricResolveLatency
	metricIDCount
)

// paddedCounter keeps each counter on its own cache line so hot
// counters on different cores do not false-share.
type paddedCounter struct {
	value uint64
	_     [56]byte
}

const latencyBucketCount = 8

// latencyBucketBounds are the upper bounds in seconds for the resolve
// latency histogram; the last bucket is +Inf.
var latencyBucketBounds = [latencyBucketCount - 1]float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
}

// Metrics is the in-process metrics sink. All methods are safe for
// concurrent use and are no-ops on a nil receiver, so the engine can
// hold a nil *Metrics when collection is disabled.
type Metrics struct {
	counters       [metricIDCount]paddedCounter
	latencyBuckets [latencyBucketCount]paddedCounter
	latencySumNs   atomic.Int64
	latencyCount   atomic.Uint64
	latencyEnabled bool
}

// NewMetrics returns a Metrics sink. withLatency additionally enables
// the resolve latency histogram.
func NewMetrics(withLatency bool) *Metrics {
	return &Metrics{latencyEnabled: withLatency}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// LatencyEnabled reports whether Observe records anything.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latencyEnabled
}

// Observe records one resolve duration into the histogram.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.latencyEnabled {
		return
	}
	atomic.AddUint64(&m.latencyBuckets[bucketIndex(d.Seconds())].value, 1)
	m.latencySumNs.Add(d.Nanoseconds())
	m.latencyCount.Add(1)
}

func bucketIndex(seconds float64) int {
	for i, bound := range latencyBucketBounds {
		if seconds <= bound {
			return i
		}
	}
	return latencyBucketCount - 1
}

// MetricsSnapshot is a point-in-time copy of all metrics, the unit the
// exporters consume.
type MetricsSnapshot struct {
	Counters       [metricIDCount]uint64
	LatencyBuckets [latencyBucketCount]uint64
	LatencySumNs   int64
	LatencyCount   uint64
}

// Snapshot copies the current values. The copy is not atomic across
// counters; exporters tolerate the skew.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	if m == nil {
		return snap
	}
	for i := range snap.Counters {
		snap.Counters[i] = atomic.LoadUint64(&m.counters[i].value)
	}
	for i := range snap.LatencyBuckets {
		snap.LatencyBuckets[i] = atomic.LoadUint64(&m.latencyBuckets[i].value)
	}
	snap.LatencySumNs = m.latencySumNs.Load()
	snap.LatencyCount = m.latencyCount.Load()
	return snap
}

// Counter returns one counter out of the snapshot.
func (s MetricsSnapshot) Counter(id MetricID) uint64 {
	if id < 0 || id >= metricIDCount {
		return 0
	}
	return s.Counters[id]
}
