package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ChargeSucceeded = "succeeded"
	ChargeCanceled  = "canceled"
	ChargeFailed    = "failed"

	EventChargeSucceeded = "payment_intent.succeeded"
	EventChargeFailed    = "payment_intent.payment_failed"
	EventChargeCanceled  = "payment_intent.canceled"
)

var (
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrNotConfigured    = errors.New("payments: provider not configured")
)

// ChargeRequest describes a charge to open with the provider.
type ChargeRequest struct {
	AmountCents    int64
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Charge is the provider's view of a payment.
type Charge struct {
	ID           string
	Status       string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

func (c Charge) Succeeded() bool {
	return c.Status == ChargeSucceeded
}

// Event is a verified webhook notification about a charge.
type Event struct {
	ID     string
	Type   string
	Charge Charge
}

type Refund struct {
	ID     string
	Status string
}

// Provider is the outbound payment gateway.
type Provider interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error)
	RetrieveCharge(ctx context.Context, id string) (Charge, error)
	Refund(ctx context.Context, chargeID string, amountCents *int64) (Refund, error)
	VerifyWebhook(payload []byte, signature string) (Event, error)
}

// ProviderError is a failure reported by the payment gateway.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if e.Code != "" {
		return fmt.Sprintf("payment provider error (%d %s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("payment provider error (%d): %s", e.StatusCode, msg)
}

// IsProviderError reports whether err came from the gateway.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
