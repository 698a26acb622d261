package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector manages the Prometheus metrics for the message pipeline
type Collector struct {
	messagesReceived   *prometheus.CounterVec
	admissionsTotal    prometheus.Counter
	rejectionsTotal    *prometheus.CounterVec
	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	creditsDebited     prometheus.Counter
	creditsGranted     *prometheus.CounterVec
}

// NewCollector registers the pipeline metrics on the default registry
func NewCollector() *Collector {
	return NewCollectorWithRegistry(nil)
}

// NewCollectorWithRegistry registers on a custom registry; nil means the
// default global registry (custom registries keep tests independent)
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	var factory promauto.Factory
	if registry == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	} else {
		factory = promauto.With(registry)
	}

	return &Collector{
		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gembot_messages_received_total",
				Help: "Total number of inbound messages by kind",
			},
			[]string{"kind"},
		),
		admissionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gembot_admissions_total",
				Help: "Total number of admitted requests",
			},
		),
		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gembot_rejections_total",
				Help: "Total number of rejected requests by reason",
			},
			[]string{"reason"},
		),
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gembot_generations_total",
				Help: "Total number of generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gembot_generation_duration_seconds",
				Help:    "Time spent on external generation calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		creditsDebited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gembot_credits_debited_total",
				Help: "Total generation credits debited",
			},
		),
		creditsGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gembot_credits_granted_total",
				Help: "Total generation credits granted by source",
			},
			[]string{"source"},
		),
	}
}

func (c *Collector) RecordMessage(kind string) {
	c.messagesReceived.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordAdmission() {
	c.admissionsTotal.Inc()
}

func (c *Collector) RecordRejection(reason string) {
	c.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordGeneration(outcome string, seconds float64) {
	c.generationsTotal.WithLabelValues(outcome).Inc()
	c.generationDuration.Observe(seconds)
}

func (c *Collector) RecordDebit(amount int64) {
	c.creditsDebited.Add(float64(amount))
}

func (c *Collector) RecordGrant(source string, amount int64) {
	c.creditsGranted.WithLabelValues(source).Add(float64(amount))
}
