package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the polling engine's Prometheus instruments. Constructing
// against an injected Registerer keeps tests free to build as many instances
// as they like.
type Metrics struct {
	PollsCreated      prometheus.Counter
	AnswersAccepted   *prometheus.CounterVec
	AnswersRejected   *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	ConnectedSessions prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "classpoll",
			Name:      "polls_created_total",
			Help:      "Total number of polls created",
		}),
		AnswersAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classpoll",
			Name:      "answers_accepted_total",
			Help:      "Total number of accepted answer submissions",
		}, []string{"poll_id"}),
		AnswersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classpoll",
			Name:      "answers_rejected_total",
			Help:      "Total number of rejected answer submissions",
		}, []string{"reason"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classpoll",
			Name:      "events_published_total",
			Help:      "Total number of broadcast events published",
		}, []string{"type"}),
		ConnectedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "classpoll",
			Name:      "connected_sessions",
			Help:      "Number of currently connected participant sessions",
		}),
	}
}
