package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"voyanceBack/internal/models"
	"voyanceBack/internal/payments"
	"voyanceBack/internal/storage"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("", "invalid request body")
	}
	return nil
}

var conflictErrors = []error{
	models.ErrConversationClosed,
	models.ErrActiveConversation,
	models.ErrDuplicateUsername,
	models.ErrDuplicateEmail,
	models.ErrPackAlreadyConsumed,
	models.ErrPaymentState,
	models.ErrVoyantUnavailable,
	models.ErrInUse,
}

// errorStatus maps a service error to its HTTP status, code and public message.
func errorStatus(err error) (int, string, string) {
	if models.IsValidation(err) {
		return http.StatusBadRequest, "BAD_REQUEST", err.Error()
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict, "CONFLICT", target.Error()
		}
	}
	switch {
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", err.Error()
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrAccountDisabled):
		return http.StatusForbidden, "FORBIDDEN", err.Error()
	case errors.Is(err, models.ErrNoRecord):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, models.ErrInsufficientMinutes):
		return http.StatusPaymentRequired, "PAYMENT_REQUIRED", err.Error()
	case errors.Is(err, models.ErrTooManyRegistrations):
		return http.StatusTooManyRequests, "TOO_MANY_REQUESTS", err.Error()
	case errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest, "BAD_REQUEST", payments.ErrInvalidSignature.Error()
	case errors.Is(err, models.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", models.ErrStorageUnavailable.Error()
	case errors.Is(err, payments.ErrNotConfigured), errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", err.Error()
	case payments.IsProviderError(err):
		return http.StatusBadGateway, "BAD_GATEWAY", "payment provider error"
	}
	return http.StatusInternalServerError, "INTERNAL", "internal server error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// WriteError reports err in the API error shape. It is used by middleware
// living outside this package.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err)
}
