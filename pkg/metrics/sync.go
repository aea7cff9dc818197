package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records push outcomes for the collection synchronization engine.
type SyncMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	failure   *prometheus.CounterVec
	outOfSync *prometheus.GaugeVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collection_push_duration_seconds",
		Help:    "Duration of collection replace pushes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_push_success",
		Help: "Successful collection replace pushes.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_push_failure",
		Help: "Failed collection replace pushes after retries.",
	}, []string{"kind"})
	outOfSync := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collection_out_of_sync",
		Help: "Sessions currently flagged out of sync.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, failure, outOfSync)
	return &SyncMetrics{
		duration:  duration,
		success:   success,
		failure:   failure,
		outOfSync: outOfSync,
	}
}

// ObserveDuration records the wall time of one push for the kind.
func (s *SyncMetrics) ObserveDuration(kind string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the kind.
func (s *SyncMetrics) IncSuccess(kind string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for the kind.
func (s *SyncMetrics) IncFailure(kind string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(kind)).Inc()
}

// SetOutOfSync flips the out-of-sync gauge for the kind.
func (s *SyncMetrics) SetOutOfSync(kind string, outOfSync bool) {
	if s == nil || s.outOfSync == nil {
		return
	}
	value := 0.0
	if outOfSync {
		value = 1.0
	}
	s.outOfSync.WithLabelValues(normalizeLabel(kind)).Set(value)
}

func normalizeLabel(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
