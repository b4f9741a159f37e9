package handlers

import (
	"net/http"

	"voyanceBack/internal/services"
)

type AnalyticsHandler struct {
	Service *services.AnalyticsService
}

func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Range returns the daily totals between ?start and ?end (YYYY-MM-DD).
func (h *AnalyticsHandler) Range(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.Service.Range(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *AnalyticsHandler) TrackVisit(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.TrackVisit(r.Context(), ClientIP(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
