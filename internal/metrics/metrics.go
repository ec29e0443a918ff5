// Package metrics exports navigator and synthesis activity to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readaloud"

var conditions = []readaloud.Condition{readaloud.Ready, readaloud.Starved, readaloud.Ended, readaloud.Failure}

// Metrics implements readaloud.Observer and speech.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	segmentsCreated *prometheus.CounterVec
	segmentsLive    *prometheus.GaugeVec
	commands        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	condition       *prometheus.GaugeVec
	staleEvents     prometheus.Counter

	synthesisRequests *prometheus.CounterVec
	synthesisLatency  *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

// New registers the collectors on a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the collectors on reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: g,

		// Navigator metrics
		segmentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Segments created, by kind",
		}, []string{"kind"}),
		segmentsLive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segments_live",
			Help:      "Segments currently held by the data loader, by kind",
		}, []string{"kind"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands and engine events handled by the navigator",
		}, []string{"command"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_transitions_total",
			Help:      "Transitions into each playback condition",
		}, []string{"condition"}),
		condition: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "condition",
			Help:      "Current playback condition (1 for the active one)",
		}, []string{"condition"}),
		staleEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_dropped_total",
			Help:      "Engine events dropped because their engine was no longer current",
		}),

		// Synthesis metrics
		synthesisRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "speech",
			Name:      "requests_total",
			Help:      "Synthesis requests, by engine and status",
		}, []string{"engine", "status"}),
		synthesisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "speech",
			Name:      "latency_seconds",
			Help:      "Synthesis latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"engine"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "speech",
			Name:      "cache_lookups_total",
			Help:      "Synthesis cache lookups, by engine and result",
		}, []string{"engine", "result"}),
	}
}

// Handler serves the collected metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SegmentCreated(kind readaloud.SegmentKind) {
	m.segmentsCreated.WithLabelValues(kind.String()).Inc()
	m.segmentsLive.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) SegmentReleased(kind readaloud.SegmentKind) {
	m.segmentsLive.WithLabelValues(kind.String()).Dec()
}

func (m *Metrics) CommandHandled(name string) {
	m.commands.WithLabelValues(name).Inc()
}

func (m *Metrics) ConditionChanged(c readaloud.Condition) {
	m.transitions.WithLabelValues(c.String()).Inc()
	for _, other := range conditions {
		v := 0.0
		if other == c {
			v = 1
		}
		m.condition.WithLabelValues(other.String()).Set(v)
	}
}

func (m *Metrics) StaleEventDropped() {
	m.staleEvents.Inc()
}

func (m *Metrics) CacheLookup(engine string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(engine, result).Inc()
}

func (m *Metrics) Synthesized(engine string, took time.Duration, err error) {
	m.synthesisLatency.WithLabelValues(engine).Observe(took.Seconds())
	m.synthesisRequests.WithLabelValues(engine, status(err)).Inc()
}

func status(err error) string {
	if err == nil {
		return "success"
	}
	var serr *speech.SynthesisError
	if errors.As(err, &serr) {
		return strings.ToLower(string(serr.Code))
	}
	return "error"
}

var (
	_ readaloud.Observer = (*Metrics)(nil)
	_ speech.Observer    = (*Metrics)(nil)
)
