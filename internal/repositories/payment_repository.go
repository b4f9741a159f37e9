package repositories

import (
	"context"
	"database/sql"
	"time"

	"voyanceBack/internal/models"
)

type PaymentRepository struct {
	DB DBTX
}

const paymentColumns = `id, client_id, pack_type, minutes, amount_cents, currency, status, provider_id, minute_pack_id, created_at, updated_at`

func scanPayment(row rowScanner) (models.Payment, error) {
	var (
		p          models.Payment
		providerID sql.NullString
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.PackType, &p.Minutes, &p.AmountCents, &p.Currency, &p.Status,
		&providerID, &p.MinutePackID, &p.CreatedAt, &p.UpdatedAt)
	p.ProviderID = providerID.String
	return p, err
}

func (r *PaymentRepository) queryPayments(ctx context.Context, query string, args ...any) ([]models.Payment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		payments = append(payments, p)
	}
	return payments, storageErr(rows.Err())
}

func (r *PaymentRepository) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO payments (client_id, pack_type, minutes, amount_cents, currency, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ClientID, p.PackType, p.Minutes, p.AmountCents, p.Currency, p.Status, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Payment{}, models.ErrClientNotFound
		}
		return models.Payment{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Payment{}, storageErr(err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int) (models.Payment, error) {
	p, err := scanPayment(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		return models.Payment{}, notFound(err, models.ErrPaymentNotFound)
	}
	return p, nil
}

func (r *PaymentRepository) LockByID(ctx context.Context, id int) (models.Payment, error) {
	p, err := scanPayment(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return models.Payment{}, notFound(err, models.ErrPaymentNotFound)
	}
	return p, nil
}

// LockByProviderID reads the payment of a provider charge with FOR UPDATE.
func (r *PaymentRepository) LockByProviderID(ctx context.Context, providerID string) (models.Payment, error) {
	p, err := scanPayment(r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_id = ? FOR UPDATE`, providerID))
	if err != nil {
		return models.Payment{}, notFound(err, models.ErrPaymentNotFound)
	}
	return p, nil
}

func (r *PaymentRepository) SetProviderID(ctx context.Context, id int, providerID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE payments SET provider_id = ?, updated_at = ? WHERE id = ?`, providerID, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrPaymentNotFound)
}

func (r *PaymentRepository) MarkSucceeded(ctx context.Context, id, packID int) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE payments SET status = ?, minute_pack_id = ?, updated_at = ? WHERE id = ?`,
		models.PaymentSucceeded, packID, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrPaymentNotFound)
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrPaymentNotFound)
}

func (r *PaymentRepository) ListByClient(ctx context.Context, clientID int) ([]models.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments WHERE client_id = ? ORDER BY created_at DESC, id DESC`, clientID)
}

func (r *PaymentRepository) List(ctx context.Context) ([]models.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC, id DESC`)
}
