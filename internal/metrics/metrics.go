// Package metrics wires the store and compactor into Prometheus, grounded on
// dreamsxin-wal's metrics.go (newWALMetrics / promauto.With(reg)). It
// replaces the teacher's internal/metrics/prometheus.go, whose name promised
// Prometheus integration but which never actually imported client_golang and
// hand-rolled its own text exporter instead.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and gauges exported by a single store/DB
// instance. A nil *Metrics is safe to use: every method is a no-op, so
// callers that don't pass a Registerer pay nothing.
type Metrics struct {
	bytesWritten     prometheus.Counter
	appends          prometheus.Counter
	segmentRotations prometheus.Counter
	compactions      *prometheus.CounterVec
	corruptionErrors prometheus.Counter
	walSizeBytes     prometheus.Gauge
	liveKeys         prometheus.Gauge
}

// New registers a fresh set of metrics against reg. If reg is nil, the
// returned *Metrics records nothing.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	return &Metrics{
		bytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "barrel_wal_bytes_written_total",
			Help: "Bytes of encoded WAL frames appended, including the length prefix.",
		}),
		appends: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "barrel_wal_appends_total",
			Help: "Number of records appended to the active WAL.",
		}),
		segmentRotations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "barrel_wal_segment_rotations_total",
			Help: "Number of times the active WAL was rotated into a frozen segment.",
		}),
		compactions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "barrel_compactions_total",
			Help: "Number of compaction (rewrite) attempts, labeled by outcome.",
		}, []string{"outcome"}),
		corruptionErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "barrel_corruption_errors_total",
			Help: "Number of CorruptedFile or Decode errors that aborted a replay of the log.",
		}),
		walSizeBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "barrel_wal_active_size_bytes",
			Help: "Current size in bytes of the active WAL since the last rotation or rewrite.",
		}),
		liveKeys: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "barrel_live_keys",
			Help: "Number of live keys in the in-memory index.",
		}),
	}
}

func (m *Metrics) ObserveAppend(frameLen int) {
	if m == nil {
		return
	}
	m.appends.Inc()
	m.bytesWritten.Add(float64(frameLen))
}

func (m *Metrics) ObserveRotation() {
	if m == nil {
		return
	}
	m.segmentRotations.Inc()
}

func (m *Metrics) ObserveCompaction(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.compactions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCorruption() {
	if m == nil {
		return
	}
	m.corruptionErrors.Inc()
}

func (m *Metrics) SetWALSize(size uint64) {
	if m == nil {
		return
	}
	m.walSizeBytes.Set(float64(size))
}

func (m *Metrics) SetLiveKeys(n int) {
	if m == nil {
		return
	}
	m.liveKeys.Set(float64(n))
}
