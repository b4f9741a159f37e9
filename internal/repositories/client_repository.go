package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type ClientRepository struct {
	DB DBTX
}

const clientColumns = `id, user_id, username, password_hash, total_minutes_available, total_minutes_used,
	total_spent, is_active, last_activity_at, created_at, updated_at`

func scanClient(row rowScanner) (models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.UserID, &c.Username, &c.PasswordHash, &c.TotalMinutesAvailable,
		&c.TotalMinutesUsed, &c.TotalSpent, &c.IsActive, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *ClientRepository) Create(ctx context.Context, c models.Client) (models.Client, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO clients (user_id, username, password_hash, is_active, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Username, c.PasswordHash, c.IsActive, now, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return models.Client{}, models.ErrDuplicateUsername
		}
		return models.Client{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Client{}, storageErr(err)
	}
	c.ID = id
	c.LastActivityAt = &now
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id int) (models.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err != nil {
		return models.Client{}, notFound(err, models.ErrClientNotFound)
	}
	return c, nil
}

func (r *ClientRepository) GetByUsername(ctx context.Context, username string) (models.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE username = ?`, username))
	if err != nil {
		return models.Client{}, notFound(err, models.ErrClientNotFound)
	}
	return c, nil
}

func (r *ClientRepository) GetByUserID(ctx context.Context, userID int) (models.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE user_id = ?`, userID))
	if err != nil {
		return models.Client{}, notFound(err, models.ErrClientNotFound)
	}
	return c, nil
}

// LockByID reads the client row with FOR UPDATE; only meaningful inside a transaction.
func (r *ClientRepository) LockByID(ctx context.Context, id int) (models.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return models.Client{}, notFound(err, models.ErrClientNotFound)
	}
	return c, nil
}

func (r *ClientRepository) List(ctx context.Context) ([]models.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		clients = append(clients, c)
	}
	return clients, storageErr(rows.Err())
}

func (r *ClientRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return deleteErr(err)
	}
	return expectAffected(res, models.ErrClientNotFound)
}

// AdjustMinutes moves the available and used counters by the given deltas.
// The available counter never drops below zero.
func (r *ClientRepository) AdjustMinutes(ctx context.Context, id, availableDelta, usedDelta int) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE clients
		SET total_minutes_available = GREATEST(total_minutes_available + ?, 0),
		    total_minutes_used = total_minutes_used + ?, updated_at = ?
		WHERE id = ?`,
		availableDelta, usedDelta, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrClientNotFound)
}

func (r *ClientRepository) AddSpent(ctx context.Context, id int, amount float64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE clients SET total_spent = GREATEST(total_spent + ?, 0), updated_at = ? WHERE id = ?`,
		amount, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrClientNotFound)
}

func (r *ClientRepository) Touch(ctx context.Context, id int, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE clients SET last_activity_at = ? WHERE id = ?`, at, id)
	return storageErr(err)
}

func (r *ClientRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE is_active = TRUE`).Scan(&n)
	return n, storageErr(err)
}
