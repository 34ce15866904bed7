package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
)

// RunHandler 运行记录查询
type RunHandler struct {
	repo   ports.RunRepository
	logger logrus.FieldLogger
}

// HealthCheck 存活探针
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "OK")
}

// ListRuns GET /api/runs?limit=n
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// GetRun GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// ListReports GET /api/runs/{id}/reports
func (h *RunHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	reports, err := h.repo.ListReports(r.Context(), run.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reports)
}

// ListRecords GET /api/runs/{id}/records?offset=n&limit=m
func (h *RunHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := h.repo.ListRecords(r.Context(), run.ID, offset, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

func (h *RunHandler) lookupRun(w http.ResponseWriter, r *http.Request) (*domain.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.repo.GetRun(r.Context(), id)
	if errors.Is(err, domain.ErrRunNotFound) {
		h.writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return run, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func (h *RunHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("encode response")
	}
}

func (h *RunHandler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
