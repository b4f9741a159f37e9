package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/models"
	"voyanceBack/internal/payments"
	"voyanceBack/internal/repositories"
)

type PaymentService struct {
	DB          *sql.DB
	PaymentRepo *repositories.PaymentRepository
	ClientRepo  *repositories.ClientRepository
	Packs       *MinutePackService
	Provider    payments.Provider
	Catalogue   *billing.Catalogue
	Logger      *slog.Logger
}

func (s *PaymentService) log() *slog.Logger {
	return loggerOrDefault(s.Logger).With("component", "payments")
}

// Offers lists the purchasable minute packs.
func (s *PaymentService) Offers() []billing.Pack {
	if s.Catalogue == nil {
		return []billing.Pack{}
	}
	return s.Catalogue.Packs()
}

// Purchase opens a provider charge for a minute pack. Minutes are granted only
// once the provider confirms the payment.
func (s *PaymentService) Purchase(ctx context.Context, clientID int, packType string) (models.PurchaseResult, error) {
	if s.Provider == nil || s.Catalogue == nil {
		return models.PurchaseResult{}, payments.ErrNotConfigured
	}
	pack, ok := s.Catalogue.Lookup(packType)
	if !ok {
		return models.PurchaseResult{}, models.NewValidationError("pack_type", "is not a known pack")
	}
	if _, err := s.ClientRepo.GetByID(ctx, clientID); err != nil {
		return models.PurchaseResult{}, err
	}

	payment, err := s.PaymentRepo.Create(ctx, models.Payment{
		ClientID:    clientID,
		PackType:    pack.Type,
		Minutes:     pack.Minutes,
		AmountCents: pack.PriceCents,
		Currency:    s.Catalogue.Currency,
		Status:      models.PaymentPending,
	})
	if err != nil {
		return models.PurchaseResult{}, err
	}

	log := s.log().With("op", "purchase", "payment_id", payment.ID, "client_id", clientID)
	charge, err := s.Provider.CreateCharge(ctx, payments.ChargeRequest{
		AmountCents: pack.PriceCents,
		Currency:    s.Catalogue.Currency,
		Description: fmt.Sprintf("%d minutes consultation pack", pack.Minutes),
		Metadata: map[string]string{
			"clientId":  strconv.Itoa(clientID),
			"packType":  pack.Type,
			"paymentId": strconv.Itoa(payment.ID),
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		log.Error("charge creation failed", "error", err)
		if uerr := s.PaymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentFailed); uerr != nil {
			log.Error("payment not marked failed", "error", uerr)
		}
		return models.PurchaseResult{}, err
	}
	if err := s.PaymentRepo.SetProviderID(ctx, payment.ID, charge.ID); err != nil {
		return models.PurchaseResult{}, err
	}
	log.Info("charge created", "charge_id", charge.ID, "amount_cents", pack.PriceCents)

	return models.PurchaseResult{
		PaymentID:    payment.ID,
		ClientSecret: charge.ClientSecret,
		AmountCents:  pack.PriceCents,
		Currency:     s.Catalogue.Currency,
		Minutes:      pack.Minutes,
	}, nil
}

// Confirm fulfils a purchase after checking its charge with the provider.
func (s *PaymentService) Confirm(ctx context.Context, clientID, paymentID int) (models.Payment, error) {
	if s.Provider == nil {
		return models.Payment{}, payments.ErrNotConfigured
	}
	payment, err := s.PaymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return models.Payment{}, err
	}
	if payment.ClientID != clientID {
		return models.Payment{}, models.ErrForbidden
	}
	if payment.Status == models.PaymentSucceeded {
		return payment, nil
	}
	if payment.ProviderID == "" {
		return models.Payment{}, models.ErrPaymentState
	}
	charge, err := s.Provider.RetrieveCharge(ctx, payment.ProviderID)
	if err != nil {
		return models.Payment{}, err
	}
	if !charge.Succeeded() {
		if charge.Status == payments.ChargeCanceled {
			s.markFailed(ctx, charge.ID)
		}
		return models.Payment{}, models.ErrPaymentState
	}
	return s.Fulfill(ctx, charge)
}

// HandleWebhook verifies and applies a provider notification.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.Provider == nil {
		return payments.ErrNotConfigured
	}
	evt, err := s.Provider.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}
	log := s.log().With("op", "webhook", "event_id", evt.ID, "type", evt.Type, "charge_id", evt.Charge.ID)

	switch evt.Type {
	case payments.EventChargeSucceeded:
		_, err := s.Fulfill(ctx, evt.Charge)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, models.ErrPaymentNotFound), errors.Is(err, models.ErrPaymentState):
			log.Warn("webhook ignored", "error", err)
			return nil
		default:
			return err
		}
	case payments.EventChargeFailed, payments.EventChargeCanceled:
		s.markFailed(ctx, evt.Charge.ID)
		return nil
	default:
		log.Debug("webhook event acknowledged")
		return nil
	}
}

// Fulfill grants the pack of a succeeded charge. It is keyed by the charge id and
// grants at most once.
func (s *PaymentService) Fulfill(ctx context.Context, charge payments.Charge) (models.Payment, error) {
	log := s.log().With("op", "fulfill", "charge_id", charge.ID)
	var payment models.Payment
	granted := false
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		paymentsTx := &repositories.PaymentRepository{DB: tx}
		p, err := paymentsTx.LockByProviderID(ctx, charge.ID)
		if err != nil {
			return err
		}
		switch p.Status {
		case models.PaymentSucceeded:
			payment = p
			return nil
		case models.PaymentPending, models.PaymentFailed:
		default:
			return models.ErrPaymentState
		}
		if !chargeMatches(charge, p) {
			log.Error("charge does not match payment", "payment_id", p.ID, "metadata", charge.Metadata)
			return models.ErrPaymentState
		}

		pack, err := s.Packs.GrantTx(ctx, tx, p.ClientID, p.Minutes, "purchase:"+p.PackType)
		if err != nil {
			return err
		}
		if err := (&repositories.ClientRepository{DB: tx}).AddSpent(ctx, p.ClientID, billing.FromCents(p.AmountCents)); err != nil {
			return err
		}
		if err := paymentsTx.MarkSucceeded(ctx, p.ID, pack.ID); err != nil {
			return err
		}
		p.Status = models.PaymentSucceeded
		p.MinutePackID = &pack.ID
		payment = p
		granted = true
		return nil
	})
	if err != nil {
		return models.Payment{}, err
	}
	if granted {
		log.Info("payment fulfilled", "payment_id", payment.ID, "client_id", payment.ClientID, "minutes", payment.Minutes)
	}
	return payment, nil
}

func chargeMatches(charge payments.Charge, p models.Payment) bool {
	if charge.Metadata["clientId"] != strconv.Itoa(p.ClientID) || charge.Metadata["packType"] != p.PackType {
		return false
	}
	if charge.AmountCents != 0 && charge.AmountCents != p.AmountCents {
		return false
	}
	return true
}

func (s *PaymentService) markFailed(ctx context.Context, chargeID string) {
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		paymentsTx := &repositories.PaymentRepository{DB: tx}
		p, err := paymentsTx.LockByProviderID(ctx, chargeID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			return nil
		}
		return paymentsTx.UpdateStatus(ctx, p.ID, models.PaymentFailed)
	})
	if err != nil && !errors.Is(err, models.ErrPaymentNotFound) {
		s.log().Error("payment not marked failed", "charge_id", chargeID, "error", err)
	}
}

// Refund returns a purchase whose minutes are still untouched.
func (s *PaymentService) Refund(ctx context.Context, paymentID int) (models.Payment, error) {
	if s.Provider == nil {
		return models.Payment{}, payments.ErrNotConfigured
	}
	var payment models.Payment
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		paymentsTx := &repositories.PaymentRepository{DB: tx}
		p, err := paymentsTx.LockByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentSucceeded || p.MinutePackID == nil || p.ProviderID == "" {
			return models.ErrPaymentState
		}
		if _, err := s.Packs.RevokeTx(ctx, tx, *p.MinutePackID); err != nil {
			return err
		}
		if err := (&repositories.ClientRepository{DB: tx}).AddSpent(ctx, p.ClientID, -billing.FromCents(p.AmountCents)); err != nil {
			return err
		}
		if err := paymentsTx.UpdateStatus(ctx, p.ID, models.PaymentRefunded); err != nil {
			return err
		}
		if _, err := s.Provider.Refund(ctx, p.ProviderID, nil); err != nil {
			return err
		}
		p.Status = models.PaymentRefunded
		payment = p
		return nil
	})
	if err != nil {
		return models.Payment{}, err
	}
	s.log().Info("payment refunded", "payment_id", payment.ID, "client_id", payment.ClientID)
	return payment, nil
}

func (s *PaymentService) ListByClient(ctx context.Context, clientID int) ([]models.Payment, error) {
	return s.PaymentRepo.ListByClient(ctx, clientID)
}

func (s *PaymentService) List(ctx context.Context) ([]models.Payment, error) {
	return s.PaymentRepo.List(ctx)
}
