package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoRecord           = errors.New("models: no matching record found")
	ErrInvalidCredentials = errors.New("models: invalid credentials")
	ErrDuplicateUsername  = errors.New("models: duplicate username")
	ErrDuplicateEmail     = errors.New("models: duplicate email")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrUserNotFound         = fmt.Errorf("user not found: %w", ErrNoRecord)
	ErrAgentNotFound        = fmt.Errorf("agent not found: %w", ErrNoRecord)
	ErrVoyantNotFound       = fmt.Errorf("voyant not found: %w", ErrNoRecord)
	ErrClientNotFound       = fmt.Errorf("client not found: %w", ErrNoRecord)
	ErrReviewNotFound       = fmt.Errorf("review not found: %w", ErrNoRecord)
	ErrConversationNotFound = fmt.Errorf("conversation not found: %w", ErrNoRecord)
	ErrPaymentNotFound      = fmt.Errorf("payment not found: %w", ErrNoRecord)
	ErrMinutePackNotFound   = fmt.Errorf("minute pack not found: %w", ErrNoRecord)
)

var (
	ErrConversationClosed   = errors.New("conversation is no longer active")
	ErrActiveConversation   = errors.New("client already has an active conversation")
	ErrVoyantUnavailable    = errors.New("voyant is not available")
	ErrInsufficientMinutes  = errors.New("insufficient minutes")
	ErrPackAlreadyConsumed  = errors.New("minute pack already consumed")
	ErrPaymentState         = errors.New("payment is not in a valid state for this operation")
	ErrTooManyRegistrations = errors.New("too many registrations from this address")
	ErrAccountDisabled      = errors.New("account disabled")
	ErrInUse                = errors.New("record has conversations or payments; deactivate it instead")
)

// ValidationError reports a rejected input field before any data access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
