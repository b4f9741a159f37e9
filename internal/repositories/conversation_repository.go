package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type ConversationRepository struct {
	DB DBTX
}

const conversationColumns = `id, client_id, voyant_id, agent_id, status, minutes_used, total_cost, started_at, ended_at, created_at, updated_at`

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.ClientID, &c.VoyantID, &c.AgentID, &c.Status, &c.MinutesUsed, &c.TotalCost,
		&c.StartedAt, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *ConversationRepository) queryConversations(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		conversations = append(conversations, c)
	}
	return conversations, storageErr(rows.Err())
}

func (r *ConversationRepository) Create(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO conversations (client_id, voyant_id, agent_id, status, minutes_used, total_cost, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ClientID, c.VoyantID, c.AgentID, c.Status, c.MinutesUsed, c.TotalCost, c.StartedAt, c.StartedAt, c.StartedAt)
	if err != nil {
		return models.Conversation{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Conversation{}, storageErr(err)
	}
	c.ID = id
	c.CreatedAt = c.StartedAt
	c.UpdatedAt = c.StartedAt
	return c, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id int) (models.Conversation, error) {
	c, err := scanConversation(r.DB.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err != nil {
		return models.Conversation{}, notFound(err, models.ErrConversationNotFound)
	}
	return c, nil
}

// LockByID reads the conversation with FOR UPDATE; only meaningful inside a transaction.
func (r *ConversationRepository) LockByID(ctx context.Context, id int) (models.Conversation, error) {
	c, err := scanConversation(r.DB.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return models.Conversation{}, notFound(err, models.ErrConversationNotFound)
	}
	return c, nil
}

func (r *ConversationRepository) ListByClient(ctx context.Context, clientID int) ([]models.Conversation, error) {
	return r.queryConversations(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE client_id = ? ORDER BY started_at DESC, id DESC`, clientID)
}

func (r *ConversationRepository) ListByAgent(ctx context.Context, agentID int) ([]models.Conversation, error) {
	return r.queryConversations(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE agent_id = ? ORDER BY started_at DESC, id DESC`, agentID)
}

// GetActiveByClient returns the client's active conversation or ErrConversationNotFound.
func (r *ConversationRepository) GetActiveByClient(ctx context.Context, clientID int) (models.Conversation, error) {
	c, err := scanConversation(r.DB.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE client_id = ? AND status = ?
		ORDER BY started_at DESC, id DESC LIMIT 1`, clientID, models.ConversationActive))
	if err != nil {
		return models.Conversation{}, notFound(err, models.ErrConversationNotFound)
	}
	return c, nil
}

func (r *ConversationRepository) UpdateUsage(ctx context.Context, id, minutesUsed int, totalCost float64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE conversations SET minutes_used = ?, total_cost = ?, updated_at = ? WHERE id = ?`,
		minutesUsed, totalCost, time.Now(), id)
	if err != nil {
		return storageErr(err)
	}
	return expectAffected(res, models.ErrConversationNotFound)
}

// HasSettledBetween reports whether a conversation other than excludeID between the pair already settled.
func (r *ConversationRepository) HasSettledBetween(ctx context.Context, clientID, agentID, excludeID int) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE client_id = ? AND agent_id = ? AND id <> ? AND status <> ?`,
		clientID, agentID, excludeID, models.ConversationActive).Scan(&n)
	if err != nil {
		return false, storageErr(err)
	}
	return n > 0, nil
}
