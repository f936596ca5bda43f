// Package metrics exposes prometheus collectors for every pipeline stage.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "facewatch"

// Drop reasons for events that never reach the store.
const (
	DropQueueFull   = "queue_full"
	DropWriteFailed = "write_failed"
	DropBreakerOpen = "breaker_open"
	DropClosed      = "closed"
)

type Metrics struct {
	FramesCaptured    prometheus.Counter
	StreamReconnects  prometheus.Counter
	AnalysisCycles    prometheus.Counter
	MotionCycles      prometheus.Counter
	FacesDetected     *prometheus.CounterVec
	EventsEmitted     *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	EvidenceFailures  prometheus.Counter
	EventQueueDepth   prometheus.Gauge
	CatalogSignatures prometheus.Gauge
	IdentifyDuration  prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "frames_captured_total",
			Help: "Frames decoded from the video stream.",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stream", Name: "reconnects_total",
			Help: "Times the stream connection was reopened after a failure.",
		}),
		AnalysisCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "cycles_total",
			Help: "Analysis cycles run on a frame.",
		}),
		MotionCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "motion_cycles_total",
			Help: "Analysis cycles where the motion gate was active.",
		}),
		FacesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "faces_total",
			Help: "Faces found, by match result.",
		}, []string{"result"}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "alert", Name: "events_total",
			Help: "Detection events emitted by the alert throttle, by status.",
		}, []string{"status"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "eventlog", Name: "dropped_total",
			Help: "Detection events that were not persisted, by reason.",
		}, []string{"reason"}),
		EvidenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "alert", Name: "evidence_failures_total",
			Help: "Evidence images that could not be written.",
		}),
		EventQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "eventlog", Name: "queue_depth",
			Help: "Events waiting for the writer.",
		}),
		CatalogSignatures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "catalog", Name: "signatures",
			Help: "Signatures in the loaded identity catalog.",
		}),
		IdentifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "identify_seconds",
			Help:    "Time spent detecting and matching faces in one frame.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesCaptured, m.StreamReconnects, m.AnalysisCycles, m.MotionCycles,
			m.FacesDetected, m.EventsEmitted, m.EventsDropped, m.EvidenceFailures,
			m.EventQueueDepth, m.CatalogSignatures, m.IdentifyDuration,
		)
	}
	return m
}

func (m *Metrics) FrameCaptured() {
	if m != nil {
		m.FramesCaptured.Inc()
	}
}

func (m *Metrics) Reconnected() {
	if m != nil {
		m.StreamReconnects.Inc()
	}
}

func (m *Metrics) Cycle(active bool) {
	if m == nil {
		return
	}
	m.AnalysisCycles.Inc()
	if active {
		m.MotionCycles.Inc()
	}
}

func (m *Metrics) Face(known bool) {
	if m == nil {
		return
	}
	result := "unknown"
	if known {
		result = "known"
	}
	m.FacesDetected.WithLabelValues(result).Inc()
}

func (m *Metrics) Event(status string) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) EvidenceFailed() {
	if m != nil {
		m.EvidenceFailures.Inc()
	}
}

func (m *Metrics) QueueDepth(n int) {
	if m != nil {
		m.EventQueueDepth.Set(float64(n))
	}
}

func (m *Metrics) CatalogSize(n int) {
	if m != nil {
		m.CatalogSignatures.Set(float64(n))
	}
}

func (m *Metrics) ObserveIdentify(d time.Duration) {
	if m != nil {
		m.IdentifyDuration.Observe(d.Seconds())
	}
}
