// Package metrics exposes Prometheus collectors for the esbuild service client.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "esbuild"

// Transform outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Collectors holds the metrics of one service instance.
//
// All methods are safe on a nil *Collectors, which records nothing.
type Collectors struct {
	TransformsTotal   *prometheus.CounterVec
	TransformDuration prometheus.Histogram
	PendingRequests   prometheus.Gauge
	PingsTotal        prometheus.Counter
	FramesTotal       *prometheus.CounterVec
	FrameBytesTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg creates
// working collectors that are not registered anywhere.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		TransformsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transforms_total",
			Help:      "Completed transform requests by outcome.",
		}, []string{"outcome"}),
		TransformDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Time from sending a transform request until its response arrived.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Requests sent to the service that have not been answered yet.",
		}),
		PingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_total",
			Help:      "Keepalive pings answered.",
		}),
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames exchanged with the service by direction.",
		}, []string{"direction"}),
		FrameBytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_total",
			Help:      "Frame bytes exchanged with the service by direction.",
		}, []string{"direction"}),
	}
}

var (
	sharedMu sync.Mutex
	shared   = map[prometheus.Registerer]*Collectors{}
)

// For returns the collectors registered with reg, creating them on first use.
// Service instances come and go while a registry lives for the whole process,
// so every instance using the same reg shares one set of collectors. A nil reg
// returns fresh unregistered collectors.
func For(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		return New(nil)
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if c, ok := shared[reg]; ok {
		return c
	}

	c := New(reg)
	shared[reg] = c

	return c
}

// ObserveTransform records a completed transform.
func (c *Collectors) ObserveTransform(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}

	c.TransformsTotal.WithLabelValues(outcome).Inc()
	c.TransformDuration.Observe(elapsed.Seconds())
}

// RequestSent increments the pending gauge.
func (c *Collectors) RequestSent() {
	if c == nil {
		return
	}

	c.PendingRequests.Inc()
}

// RequestDone decrements the pending gauge.
func (c *Collectors) RequestDone() {
	if c == nil {
		return
	}

	c.PendingRequests.Dec()
}

// PingAnswered counts one keepalive acknowledgment.
func (c *Collectors) PingAnswered() {
	if c == nil {
		return
	}

	c.PingsTotal.Inc()
}

// FrameIn records an inbound frame of the given payload size.
func (c *Collectors) FrameIn(size int) {
	c.frame("in", size)
}

// FrameOut records an outbound frame of the given total size.
func (c *Collectors) FrameOut(size int) {
	c.frame("out", size)
}

func (c *Collectors) frame(direction string, size int) {
	if c == nil {
		return
	}

	c.FramesTotal.WithLabelValues(direction).Inc()
	c.FrameBytesTotal.WithLabelValues(direction).Add(float64(size))
}
