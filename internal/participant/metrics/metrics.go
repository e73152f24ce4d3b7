package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the participant module.
// Tracks registrations, uniqueness conflicts, appended events and feed health.
type Metrics struct {
	ParticipantsCreated   *prometheus.CounterVec
	UniquenessConflicts   *prometheus.CounterVec
	PipelineShortCircuits prometheus.Counter
	EventsAppended        *prometheus.CounterVec
	AppendDuration        prometheus.Histogram
	CreateDuration        prometheus.Histogram
	FeedPublishFailures   prometheus.Counter
	FeedCircuitOpen       prometheus.Gauge
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the module metrics with reg. Tests pass a
// fresh prometheus.NewRegistry() so instances never collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ParticipantsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_participants_created_total",
			Help: "Total number of participants created, by participant type",
		}, []string{"type"}),
		UniquenessConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_uniqueness_conflicts_total",
			Help: "Creation attempts rejected by a uniqueness dimension",
		}, []string{"dimension"}),
		PipelineShortCircuits: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_pipeline_short_circuits_total",
			Help: "Creations finalized by the SSN check without running later checks",
		}),
		EventsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_events_appended_total",
			Help: "Events appended to the event store, by kind",
		}, []string{"kind"}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_event_append_duration_seconds",
			Help:    "Duration of event store appends",
			Buckets: durationBuckets,
		}),
		CreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_create_participant_duration_seconds",
			Help:    "Duration of person creation including validation and indexing",
			Buckets: durationBuckets,
		}),
		FeedPublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_feed_publish_failures_total",
			Help: "Events appended but not delivered to the event feed",
		}),
		FeedCircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "registrar_feed_circuit_open",
			Help: "1 while the event feed circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncrementParticipantsCreated(participantType string) {
	m.ParticipantsCreated.WithLabelValues(participantType).Inc()
}

func (m *Metrics) IncrementConflict(dimension string) {
	m.UniquenessConflicts.WithLabelValues(dimension).Inc()
}

func (m *Metrics) IncrementShortCircuit() {
	m.PipelineShortCircuits.Inc()
}

// ObserveAppend records one appended event and how long the append took.
func (m *Metrics) ObserveAppend(kind string, start time.Time) {
	m.EventsAppended.WithLabelValues(kind).Inc()
	m.AppendDuration.Observe(time.Since(start).Seconds())
}

// ObserveCreate records the duration of a CreatePerson call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementFeedPublishFailure() {
	m.FeedPublishFailures.Inc()
}

func (m *Metrics) SetFeedCircuitOpen(open bool) {
	if open {
		m.FeedCircuitOpen.Set(1)
		return
	}
	m.FeedCircuitOpen.Set(0)
}
