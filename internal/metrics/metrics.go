// Package metrics exposes the service's Prometheus collectors.
//
// Counters:
//   - installation_transitions_total{status}: applied status changes by target status
//   - installation_crm_notifications_total{event,outcome}: outbound CRM calls (sent, failed, skipped)
//   - installation_travel_lookups_total{outcome}: travel-time lookups (ok, cached, unavailable)
//   - installation_webhook_upserts_total{action}: inbound CRM upserts (created, updated, deleted)
//
// Histogram:
//   - installation_schedule_duration_seconds: wall time of a schedule operation including outbound calls
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	transitions      *prometheus.CounterVec
	crmNotifications *prometheus.CounterVec
	travelLookups    *prometheus.CounterVec
	webhookUpserts   *prometheus.CounterVec
	scheduleLatency  prometheus.Histogram
}

// NewCollector registers the collectors on reg (prometheus.DefaultRegisterer when nil).
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "installation_transitions_total",
			Help: "Applied installation status transitions by target status",
		}, []string{"status"}),
		crmNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "installation_crm_notifications_total",
			Help: "Outbound CRM notifications by event and outcome",
		}, []string{"event", "outcome"}),
		travelLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "installation_travel_lookups_total",
			Help: "Travel-time lookups by outcome",
		}, []string{"outcome"}),
		webhookUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "installation_webhook_upserts_total",
			Help: "Inbound CRM webhook operations by action",
		}, []string{"action"}),
		scheduleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "installation_schedule_duration_seconds",
			Help:    "Schedule operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.transitions, c.crmNotifications, c.travelLookups, c.webhookUpserts, c.scheduleLatency)
	return c
}

func (c *Collector) RecordTransition(status string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(status).Inc()
}

// RecordNotification outcome: sent, failed or skipped.
func (c *Collector) RecordNotification(event, outcome string) {
	if c == nil {
		return
	}
	c.crmNotifications.WithLabelValues(event, outcome).Inc()
}

func (c *Collector) RecordTravelLookup(outcome string) {
	if c == nil {
		return
	}
	c.travelLookups.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordWebhook(action string) {
	if c == nil {
		return
	}
	c.webhookUpserts.WithLabelValues(action).Inc()
}

func (c *Collector) ObserveSchedule(seconds float64) {
	if c == nil {
		return
	}
	c.scheduleLatency.Observe(seconds)
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
