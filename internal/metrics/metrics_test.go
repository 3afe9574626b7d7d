package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSubmissionFinishedIncrementsCounterByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SubmissionFinished("success", 100*time.Millisecond)
	m.SubmissionFinished("failure", 200*time.Millisecond)

	got := counterValue(t, reg, "runforge_submissions_total", map[string]string{"outcome": "success"})
	if got != 1 {
		t.Errorf("submissions_total{outcome=success} = %v, want 1", got)
	}
}

func TestEventTopicPrefixCollapsesVariableSuffix(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventPublished("job-log-1234")
	m.EventPublished("job-log-5678")
	m.EventPublished("job-user-alice")

	got := counterValue(t, reg, "runforge_events_published_total", map[string]string{"topic_prefix": "job-log"})
	if got != 2 {
		t.Errorf("events_published_total{topic_prefix=job-log} = %v, want 2", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
