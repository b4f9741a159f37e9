package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string

	// Backends overrides the API endpoints, used by tests.
	Backends *stripe.Backends
	Logger   *slog.Logger
}

// StripeProvider implements Provider with Stripe PaymentIntents.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("stripe: secret key and webhook secret are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, cfg.Backends)

	logger.Info("Stripe initialized", "live", strings.HasPrefix(cfg.SecretKey, "sk_live_"))
	return &StripeProvider{api: api, webhookSecret: cfg.WebhookSecret, logger: logger}, nil
}

func (p *StripeProvider) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	logger := p.logger.With("op", "CreateCharge")
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		logger.Error("create payment intent failed", "err", err)
		return Charge{}, convertError(err)
	}
	logger.Debug("payment intent created", "id", pi.ID, "status", pi.Status)
	return chargeFromIntent(pi), nil
}

func (p *StripeProvider) RetrieveCharge(ctx context.Context, id string) (Charge, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		p.logger.Error("retrieve payment intent failed", "op", "RetrieveCharge", "id", id, "err", err)
		return Charge{}, convertError(err)
	}
	return chargeFromIntent(pi), nil
}

func (p *StripeProvider) Refund(ctx context.Context, chargeID string, amountCents *int64) (Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(chargeID)}
	if amountCents != nil {
		params.Amount = stripe.Int64(*amountCents)
	}
	params.Context = ctx
	r, err := p.api.Refunds.New(params)
	if err != nil {
		p.logger.Error("refund failed", "op", "Refund", "id", chargeID, "err", err)
		return Refund{}, convertError(err)
	}
	return Refund{ID: r.ID, Status: string(r.Status)}, nil
}

// VerifyWebhook checks the Stripe-Signature header before decoding the event.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		p.logger.Warn("webhook rejected", "op", "VerifyWebhook", "err", err)
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if strings.HasPrefix(out.Type, "payment_intent.") && evt.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Charge = chargeFromIntent(&pi)
	}
	return out, nil
}

func chargeFromIntent(pi *stripe.PaymentIntent) Charge {
	if pi == nil {
		return Charge{}
	}
	status := string(pi.Status)
	return Charge{
		ID:           pi.ID,
		Status:       status,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

func convertError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &ProviderError{StatusCode: se.HTTPStatusCode, Code: string(se.Code), Message: se.Msg}
	}
	return &ProviderError{StatusCode: 0, Message: err.Error()}
}
