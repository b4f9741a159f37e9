package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type AgentStatsRepository struct {
	DB DBTX
}

// GetRange returns an agent's daily rows between start and end inclusive, oldest first.
func (r *AgentStatsRepository) GetRange(ctx context.Context, agentID int, start, end string) ([]models.AgentStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, agent_id, date, minutes_served, clients_served, earnings, conversation_count, created_at, updated_at
		FROM agent_stats
		WHERE agent_id = ? AND date BETWEEN ? AND ?
		ORDER BY date`, agentID, start, end)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	out := []models.AgentStats{}
	for rows.Next() {
		var s models.AgentStats
		if err := rows.Scan(&s.ID, &s.AgentID, &s.Date, &s.MinutesServed, &s.ClientsServed, &s.Earnings,
			&s.ConversationCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, s)
	}
	return out, storageErr(rows.Err())
}

// ComputeDaily aggregates the conversations settled in [from, to) per agent.
func (r *AgentStatsRepository) ComputeDaily(ctx context.Context, from, to time.Time) ([]models.AgentStats, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT agent_id, COALESCE(SUM(minutes_used), 0), COUNT(DISTINCT client_id), COALESCE(SUM(total_cost), 0), COUNT(*)
		FROM conversations
		WHERE status <> ? AND ended_at >= ? AND ended_at < ?
		GROUP BY agent_id
		ORDER BY agent_id`, models.ConversationActive, from, to)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	out := []models.AgentStats{}
	for rows.Next() {
		var s models.AgentStats
		if err := rows.Scan(&s.AgentID, &s.MinutesServed, &s.ClientsServed, &s.Earnings, &s.ConversationCount); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, s)
	}
	return out, storageErr(rows.Err())
}

func (r *AgentStatsRepository) Upsert(ctx context.Context, day string, s models.AgentStats) error {
	now := time.Now()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO agent_stats (agent_id, date, minutes_served, clients_served, earnings, conversation_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			minutes_served = VALUES(minutes_served),
			clients_served = VALUES(clients_served),
			earnings = VALUES(earnings),
			conversation_count = VALUES(conversation_count),
			updated_at = VALUES(updated_at)`,
		s.AgentID, day, s.MinutesServed, s.ClientsServed, s.Earnings, s.ConversationCount, now, now)
	return storageErr(err)
}
