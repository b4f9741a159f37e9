package handlers

import (
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/services"
)

type ReviewHandler struct {
	Service *services.ReviewService
}

// Create publishes a review written by an admin on a client's behalf.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	review, err := h.Service.CreateByAdmin(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	review, err := h.Service.Submit(r.Context(), p.ClientID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	review, err := h.Service.Approve(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.Reject(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Service.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Service.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Service.ListPublished(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
