package models

import "time"

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payment tracks one minute-pack purchase through the payment provider.
type Payment struct {
	ID           int       `json:"id"`
	ClientID     int       `json:"client_id"`
	PackType     string    `json:"pack_type"`
	Minutes      int       `json:"minutes"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	ProviderID   string    `json:"provider_id,omitempty"`
	MinutePackID *int      `json:"minute_pack_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PurchaseRequest struct {
	PackType string `json:"pack_type"`
}

// PurchaseResult is what the client needs to finish paying with the provider.
type PurchaseResult struct {
	PaymentID    int    `json:"payment_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Minutes      int    `json:"minutes"`
}
