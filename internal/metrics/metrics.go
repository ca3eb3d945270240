// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the webhook, the coordinator and the subscription manager
// report to.
type Recorder interface {
	NotificationReceived()
	SignatureRejected()
	IngestOutcome(outcome string)
	SubscriptionResult(mode string, ok bool)
	ExtractorLatency(d time.Duration)
}

// Collector implements Recorder on top of Prometheus metrics.
type Collector struct {
	notifications     prometheus.Counter
	signatureRejects  prometheus.Counter
	ingestOutcomes    *prometheus.CounterVec
	subscriptions     *prometheus.CounterVec
	extractorDuration prometheus.Histogram
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytmonitor_notifications_received_total",
			Help: "Notification POSTs verified and queued for ingestion.",
		}),
		signatureRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytmonitor_signature_rejected_total",
			Help: "Notification POSTs rejected for a bad signature.",
		}),
		ingestOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytmonitor_ingest_outcomes_total",
			Help: "Ingestion results by outcome.",
		}, []string{"outcome"}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytmonitor_hub_requests_total",
			Help: "Hub subscribe/unsubscribe requests by mode and result.",
		}, []string{"mode", "result"}),
		extractorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ytmonitor_extractor_duration_seconds",
			Help:    "Time spent fetching video metadata.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.notifications,
		c.signatureRejects,
		c.ingestOutcomes,
		c.subscriptions,
		c.extractorDuration,
	)
	return c
}

func (c *Collector) NotificationReceived() { c.notifications.Inc() }

func (c *Collector) SignatureRejected() { c.signatureRejects.Inc() }

func (c *Collector) IngestOutcome(outcome string) {
	c.ingestOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) SubscriptionResult(mode string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	c.subscriptions.WithLabelValues(mode, result).Inc()
}

func (c *Collector) ExtractorLatency(d time.Duration) {
	c.extractorDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Components fall back to it when no recorder is set.
type Nop struct{}

func (Nop) NotificationReceived()           {}
func (Nop) SignatureRejected()              {}
func (Nop) IngestOutcome(string)            {}
func (Nop) SubscriptionResult(string, bool) {}
func (Nop) ExtractorLatency(time.Duration)  {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
