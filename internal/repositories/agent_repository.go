package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type AgentRepository struct {
	DB DBTX
}

const agentColumns = `id, user_id, username, password_hash, is_active, total_earnings, total_minutes_served,
	total_clients, is_online, last_activity_at, fcm_token, created_at, updated_at`

func scanAgent(row rowScanner) (models.Agent, error) {
	var a models.Agent
	err := row.Scan(&a.ID, &a.UserID, &a.Username, &a.PasswordHash, &a.IsActive, &a.TotalEarnings,
		&a.TotalMinutesServed, &a.TotalClients, &a.IsOnline, &a.LastActivityAt, &a.FCMToken,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *AgentRepository) queryAgents(ctx context.Context, query string, args ...any) ([]models.Agent, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		agents = append(agents, a)
	}
	return agents, storageErr(rows.Err())
}

func (r *AgentRepository) Create(ctx context.Context, a models.Agent) (models.Agent, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO agents (user_id, username, password_hash, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Username, a.PasswordHash, a.IsActive, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return models.Agent{}, models.ErrDuplicateUsername
		}
		return models.Agent{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Agent{}, storageErr(err)
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return a, nil
}

func (r *AgentRepository) GetByID(ctx context.Context, id int) (models.Agent, error) {
	a, err := scanAgent(r.DB.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
	if err != nil {
		return models.Agent{}, notFound(err, models.ErrAgentNotFound)
	}
	return a, nil
}

func (r *AgentRepository) GetByUsername(ctx context.Context, username string) (models.Agent, error) {
	a, err := scanAgent(r.DB.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE username = ?`, username))
	if err != nil {
		return models.Agent{}, notFound(err, models.ErrAgentNotFound)
	}
	return a, nil
}

func (r *AgentRepository) GetByUserID(ctx context.Context, userID int) (models.Agent, error) {
	a, err := scanAgent(r.DB.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE user_id = ?`, userID))
	if err != nil {
		return models.Agent{}, notFound(err, models.ErrAgentNotFound)
	}
	return a, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]models.Agent, error) {
	return r.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC, id DESC`)
}

func (r *AgentRepository) ListActive(ctx context.Context) ([]models.Agent, error) {
	return r.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents WHERE is_active = TRUE ORDER BY id`)
}

// Update applies the non-nil fields of req; passwordHash replaces the stored hash when not empty.
func (r *AgentRepository) Update(ctx context.Context, id int, req models.UpdateAgentRequest, passwordHash string) error {
	set := "updated_at = ?"
	args := []any{time.Now()}
	if req.Username != nil {
		set += ", username = ?"
		args = append(args, *req.Username)
	}
	if passwordHash != "" {
		set += ", password_hash = ?"
		args = append(args, passwordHash)
	}
	if req.IsActive != nil {
		set += ", is_active = ?"
		args = append(args, *req.IsActive)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE agents SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return models.ErrDuplicateUsername
		}
		return storageErr(err)
	}
	return expectAffected(res, models.ErrAgentNotFound)
}

func (r *AgentRepository) Delete(ctx context.Context, id int) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return deleteErr(err)
	}
	return expectAffected(res, models.ErrAgentNotFound)
}

// Credit adds a settled conversation to the agent's running totals.
func (r *AgentRepository) Credit(ctx context.Context, id int, earnings float64, minutes int, newClient bool) error {
	clients := 0
	if newClient {
		clients = 1
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE agents
		SET total_earnings = total_earnings + ?, total_minutes_served = total_minutes_served + ?,
		    total_clients = total_clients + ?, updated_at = ?
		WHERE id = ?`,
		earnings, minutes, clients, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrAgentNotFound)
}

// SetPresence records the agent's online flag and, when online, its last activity.
func (r *AgentRepository) SetPresence(ctx context.Context, id int, online bool, at time.Time) error {
	var err error
	if online {
		_, err = r.DB.ExecContext(ctx, `UPDATE agents SET is_online = TRUE, last_activity_at = ? WHERE id = ?`, at, id)
	} else {
		_, err = r.DB.ExecContext(ctx, `UPDATE agents SET is_online = FALSE WHERE id = ?`, id)
	}
	return storageErr(err)
}

// ActiveSince returns ids of agents flagged online whose last activity is after since.
func (r *AgentRepository) ActiveSince(ctx context.Context, ids []int, since time.Time) (map[int]bool, error) {
	out := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT id FROM agents WHERE is_online = TRUE AND last_activity_at > ? AND id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, 0, len(ids)+1)
	args = append(args, since)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr(err)
		}
		out[id] = true
	}
	return out, storageErr(rows.Err())
}

func (r *AgentRepository) SetFCMToken(ctx context.Context, id int, token string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE agents SET fcm_token = ? WHERE id = ?`, token, id)
	return storageErr(err)
}

func (r *AgentRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n)
	return n, storageErr(err)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
