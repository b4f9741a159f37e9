package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type MinutePackRepository struct {
	DB DBTX
}

const minutePackColumns = `id, client_id, minutes, minutes_remaining, reason, expires_at, is_used, created_at, updated_at`

func scanMinutePack(row rowScanner) (models.MinutePack, error) {
	var p models.MinutePack
	err := row.Scan(&p.ID, &p.ClientID, &p.Minutes, &p.MinutesRemaining, &p.Reason, &p.ExpiresAt,
		&p.IsUsed, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *MinutePackRepository) queryPacks(ctx context.Context, query string, args ...any) ([]models.MinutePack, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	packs := []models.MinutePack{}
	for rows.Next() {
		p, err := scanMinutePack(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		packs = append(packs, p)
	}
	return packs, storageErr(rows.Err())
}

func (r *MinutePackRepository) Create(ctx context.Context, p models.MinutePack) (models.MinutePack, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO minute_packs (client_id, minutes, minutes_remaining, reason, expires_at, is_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ClientID, p.Minutes, p.MinutesRemaining, p.Reason, p.ExpiresAt, p.IsUsed, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.MinutePack{}, models.ErrClientNotFound
		}
		return models.MinutePack{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.MinutePack{}, storageErr(err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *MinutePackRepository) GetByID(ctx context.Context, id int) (models.MinutePack, error) {
	p, err := scanMinutePack(r.DB.QueryRowContext(ctx, `SELECT `+minutePackColumns+` FROM minute_packs WHERE id = ?`, id))
	if err != nil {
		return models.MinutePack{}, notFound(err, models.ErrMinutePackNotFound)
	}
	return p, nil
}

func (r *MinutePackRepository) LockByID(ctx context.Context, id int) (models.MinutePack, error) {
	p, err := scanMinutePack(r.DB.QueryRowContext(ctx, `SELECT `+minutePackColumns+` FROM minute_packs WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return models.MinutePack{}, notFound(err, models.ErrMinutePackNotFound)
	}
	return p, nil
}

// ListAvailable returns the unused, unexpired packs of a client, newest first.
func (r *MinutePackRepository) ListAvailable(ctx context.Context, clientID int, now time.Time) ([]models.MinutePack, error) {
	return r.queryPacks(ctx, `
		SELECT `+minutePackColumns+` FROM minute_packs
		WHERE client_id = ? AND is_used = FALSE AND minutes_remaining > 0 AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC, id DESC`, clientID, now)
}

// LockAvailable returns the drawable packs of a client, soonest expiry first, locked FOR UPDATE.
func (r *MinutePackRepository) LockAvailable(ctx context.Context, clientID int, now time.Time) ([]models.MinutePack, error) {
	return r.queryPacks(ctx, `
		SELECT `+minutePackColumns+` FROM minute_packs
		WHERE client_id = ? AND is_used = FALSE AND minutes_remaining > 0 AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY expires_at IS NULL, expires_at, id
		FOR UPDATE`, clientID, now)
}

func (r *MinutePackRepository) ListByClient(ctx context.Context, clientID int) ([]models.MinutePack, error) {
	return r.queryPacks(ctx, `SELECT `+minutePackColumns+` FROM minute_packs WHERE client_id = ? ORDER BY created_at DESC, id DESC`, clientID)
}

// SumAvailable is the number of minutes a client can still consume.
func (r *MinutePackRepository) SumAvailable(ctx context.Context, clientID int, now time.Time) (int, error) {
	var total int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(minutes_remaining), 0) FROM minute_packs
		WHERE client_id = ? AND is_used = FALSE AND (expires_at IS NULL OR expires_at > ?)`,
		clientID, now).Scan(&total)
	return total, storageErr(err)
}

// SetRemaining stores the remaining minutes, flagging the pack used when it reaches zero.
func (r *MinutePackRepository) SetRemaining(ctx context.Context, id, remaining int) error {
	if remaining < 0 {
		remaining = 0
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE minute_packs SET minutes_remaining = ?, is_used = ?, updated_at = ? WHERE id = ?`,
		remaining, remaining == 0, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrMinutePackNotFound)
}

// LockExpired returns the packs that expired before now but still carry minutes.
func (r *MinutePackRepository) LockExpired(ctx context.Context, now time.Time, limit int) ([]models.MinutePack, error) {
	return r.queryPacks(ctx, `
		SELECT `+minutePackColumns+` FROM minute_packs
		WHERE is_used = FALSE AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at, id
		LIMIT ?
		FOR UPDATE`, now, limit)
}
