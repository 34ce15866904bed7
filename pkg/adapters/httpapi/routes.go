// Package httpapi 运行记录的只读查询 API
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/ports"
	"github.com/renjie/prism-co2/pkg/metrics"
)

// NewRouter 构建路由
// m 为 nil 时 /metrics 退回默认 Registry
func NewRouter(repo ports.RunRepository, m *metrics.Metrics, logger logrus.FieldLogger) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &RunHandler{repo: repo, logger: logger}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", HealthCheck)
	mux.Method(http.MethodGet, "/metrics", m.Handler())
	mux.Route("/api/runs", func(r chi.Router) {
		r.Method(http.MethodGet, "/", m.WrapHandler("/api/runs", http.HandlerFunc(h.ListRuns)))
		r.Method(http.MethodGet, "/{id}", m.WrapHandler("/api/runs/{id}", http.HandlerFunc(h.GetRun)))
		r.Method(http.MethodGet, "/{id}/reports", m.WrapHandler("/api/runs/{id}/reports", http.HandlerFunc(h.ListReports)))
		r.Method(http.MethodGet, "/{id}/records", m.WrapHandler("/api/runs/{id}/records", http.HandlerFunc(h.ListRecords)))
	})
	return mux
}
