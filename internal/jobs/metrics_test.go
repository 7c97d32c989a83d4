package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterAgainstProvidedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("notify:threshold").End(nil))
	require.Error(t, metrics.Track("notifications:purge").End(errors.New("boom")))

	families, err := registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["stockpile_jobs_total"])
	require.True(t, names["stockpile_jobs_failures_total"])
	require.True(t, names["stockpile_job_duration_seconds"])
}

func TestTrackerCountsSuccessAndFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("mail:send").End(nil))
	require.Error(t, metrics.Track("mail:send").End(errors.New("relay unavailable")))

	families, err := registry.Gather()
	require.NoError(t, err)

	var successes, failures float64
	for _, f := range families {
		if f.GetName() != "stockpile_jobs_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == "success" {
					successes = m.GetCounter().GetValue()
				}
				if label.GetName() == "status" && label.GetValue() == "failure" {
					failures = m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, 1.0, successes)
	require.Equal(t, 1.0, failures)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.NoError(t, metrics.Track("mail:send").End(nil))
}
