// Package metrics exposes Prometheus counters for piped streams and the file
// size cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stream outcomes recorded by ObserveStream.
const (
	OutcomeFull        = "full"
	OutcomePartial     = "partial"
	OutcomeTransformed = "transformed"
	OutcomeNotFound    = "not_found"
	OutcomeUnsupported = "unsupported"
)

// Recorder groups the collectors of one server instance.
type Recorder struct {
	gatherer prometheus.Gatherer

	streams     *prometheus.CounterVec
	bytes       prometheus.Counter
	sizeLookups *prometheus.CounterVec
	inFlight    prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg; gatherer backs Handler.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: gatherer,
		streams: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipestream_streams_total",
				Help: "Total number of pipe requests by outcome",
			},
			[]string{"outcome"},
		),
		bytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pipestream_stream_bytes_total",
				Help: "Total number of file bytes read for clients",
			},
		),
		sizeLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipestream_size_cache_lookups_total",
				Help: "File size cache lookups by result",
			},
			[]string{"result"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipestream_streams_in_flight",
				Help: "Number of read streams currently open",
			},
		),
	}
}

// ObserveStream counts one pipe call.
func (r *Recorder) ObserveStream(outcome string) {
	if r == nil {
		return
	}
	r.streams.WithLabelValues(outcome).Inc()
}

// AddBytes counts bytes read from files.
func (r *Recorder) AddBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.bytes.Add(float64(n))
}

// ObserveSizeLookup counts a size cache lookup.
func (r *Recorder) ObserveSizeLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.sizeLookups.WithLabelValues(result).Inc()
}

// StreamOpened marks a read stream as open.
func (r *Recorder) StreamOpened() {
	if r != nil {
		r.inFlight.Inc()
	}
}

// StreamClosed marks a read stream as released.
func (r *Recorder) StreamClosed() {
	if r != nil {
		r.inFlight.Dec()
	}
}

// Handler serves the collected metrics in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
