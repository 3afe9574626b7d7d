// Package metrics exposes the prometheus collectors for submission
// outcomes, log-record throughput, and event fan-out — each wired through
// constructor injection (the orchestrator, log buffer, and hub all depend
// on narrow interfaces, never a global registry).
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns every collector this module registers and implements the
// MetricsSink interfaces expected by internal/orchestrator, internal/logbuffer,
// and internal/events.
type Metrics struct {
	submissionsTotal     *prometheus.CounterVec
	submissionDuration   *prometheus.HistogramVec
	logRecordsTotal      *prometheus.CounterVec
	eventsPublishedTotal *prometheus.CounterVec
	eventsDroppedTotal   prometheus.Counter
}

// New constructs a Metrics instance and registers its collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runforge",
			Name:      "submissions_total",
			Help:      "Total job submissions by outcome.",
		}, []string{"outcome"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "runforge",
			Name:      "submission_duration_seconds",
			Help:      "Wall-clock duration of a job submission pipeline.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		logRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runforge",
			Name:      "log_records_total",
			Help:      "Log rows persisted, by stream and buffering policy.",
		}, []string{"stream", "policy"}),
		eventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runforge",
			Name:      "events_published_total",
			Help:      "Events delivered to a subscriber's send queue (one per subscriber), by topic prefix.",
		}, []string{"topic_prefix"}),
		eventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "runforge",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber or the hub queue was full.",
		}),
	}

	reg.MustRegister(
		m.submissionsTotal,
		m.submissionDuration,
		m.logRecordsTotal,
		m.eventsPublishedTotal,
		m.eventsDroppedTotal,
	)
	return m
}

// SubmissionFinished implements orchestrator.Metrics.
func (m *Metrics) SubmissionFinished(outcome string, duration time.Duration) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	m.submissionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// LogRecordEmitted implements logbuffer.MetricsSink.
func (m *Metrics) LogRecordEmitted(stream, policy string) {
	m.logRecordsTotal.WithLabelValues(stream, policy).Inc()
}

// EventPublished implements events.MetricsSink.
func (m *Metrics) EventPublished(topic string) {
	m.eventsPublishedTotal.WithLabelValues(topicPrefix(topic)).Inc()
}

// EventDropped implements events.MetricsSink.
func (m *Metrics) EventDropped(topic string) {
	m.eventsDroppedTotal.Inc()
}

// topicPrefix collapses a topic like "job-log-<uuid>" down to "job-log" so
// the published-events counter does not grow one label series per job.
func topicPrefix(topic string) string {
	parts := strings.SplitN(topic, "-", 3)
	if len(parts) < 2 {
		return topic
	}
	return parts[0] + "-" + parts[1]
}
