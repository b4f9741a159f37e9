package handlers

import (
	"errors"
	"io"
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/services"
)

const maxWebhookBytes = 64 << 10

type PaymentHandler struct {
	Service *services.PaymentService
}

func (h *PaymentHandler) Offers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Offers())
}

func (h *PaymentHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.PurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Service.Purchase(r.Context(), p.ClientID, req.PackType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payment, err := h.Service.Confirm(r.Context(), p.ClientID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (h *PaymentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Service.ListByClient(r.Context(), p.ClientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	payment, err := h.Service.Refund(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// Webhook receives provider events. The raw body is needed for the signature check.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "payload too large", Code: "BAD_REQUEST"})
			return
		}
		writeError(w, r, models.NewValidationError("", "unreadable body"))
		return
	}
	if err := h.Service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
