// Package metrics 流水线运行与查询 API 的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
)

const namespace = "prism_co2"

// Metrics 指标集合, 注册在独立的 Registry 上
// 所有方法对 nil 接收者安全
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	rowsProcessed  prometheus.Counter
	rowsCalibrated prometheus.Counter
	rowsFlagged    *prometheus.CounterVec
	lastRunSuccess prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

var _ ports.RunObserver = (*Metrics)(nil)

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		rowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Records entering the pipeline.",
		}),
		rowsCalibrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_calibrated_total",
			Help:      "Records with a valid calibrated xCO2.",
		}),
		rowsFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_flagged_total",
			Help:      "Flags cleared by quality checks, by check and channel.",
		}, []string{"check", "channel"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runsTotal,
		m.runDuration,
		m.rowsProcessed,
		m.rowsCalibrated,
		m.rowsFlagged,
		m.lastRunSuccess,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry 返回底层 Registry (测试用 Gather)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun 记录一次运行的结果
func (m *Metrics) ObserveRun(run domain.Run, reports []domain.CheckReport, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(run.Status)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.rowsProcessed.Add(float64(run.Rows))
	m.rowsCalibrated.Add(float64(run.Calibrated))
	for _, rep := range reports {
		m.rowsFlagged.WithLabelValues(rep.Check, rep.Channel.String()).Add(float64(rep.Flagged))
	}
	if run.Status == domain.RunStatusSucceeded {
		m.lastRunSuccess.Set(float64(run.FinishedAt.Unix()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler 记录路由级别的请求数和耗时
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler 导出 /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
