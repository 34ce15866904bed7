package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/metrics"
)

// gathered 返回指标族名 → 各样本值之和
func gathered(t *testing.T, m *metrics.Metrics) map[string]float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				out[mf.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[mf.GetName()] += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				out[mf.GetName()] += float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetrics_ObserveRun(t *testing.T) {
	m := metrics.New()
	finished := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	m.ObserveRun(domain.Run{Status: domain.RunStatusSucceeded, Rows: 1440, Calibrated: 1300, FinishedAt: finished},
		[]domain.CheckReport{
			{Check: "range", Channel: domain.ChannelCO2, Flagged: 3},
			{Check: "gradient", Channel: domain.ChannelCO2, Flagged: 2},
		}, 2*time.Second)
	m.ObserveRun(domain.Run{Status: domain.RunStatusFailed, Rows: 10}, nil, time.Second)

	got := gathered(t, m)
	assert.Equal(t, 2.0, got["prism_co2_runs_total"])
	assert.Equal(t, 2.0, got["prism_co2_run_duration_seconds"])
	assert.Equal(t, 1450.0, got["prism_co2_rows_processed_total"])
	assert.Equal(t, 1300.0, got["prism_co2_rows_calibrated_total"])
	assert.Equal(t, 5.0, got["prism_co2_rows_flagged_total"])
	assert.Equal(t, float64(finished.Unix()), got["prism_co2_last_run_success_timestamp_seconds"])
}

func TestMetrics_WrapHandler(t *testing.T) {
	m := metrics.New()
	h := m.WrapHandler("/api/runs/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/runs/x", nil))

	got := gathered(t, m)
	assert.Equal(t, 1.0, got["prism_co2_http_requests_total"])
	assert.Equal(t, 1.0, got["prism_co2_http_request_duration_seconds"])

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `prism_co2_http_requests_total{route="/api/runs/{id}",status="404"} 1`))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(domain.Run{}, nil, 0)
		rec := httptest.NewRecorder()
		m.WrapHandler("/x", http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
