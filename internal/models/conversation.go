package models

import "time"

const (
	ConversationActive    = "active"
	ConversationCompleted = "completed"
	ConversationCancelled = "cancelled"
)

type Conversation struct {
	ID          int        `json:"id"`
	ClientID    int        `json:"client_id"`
	VoyantID    int        `json:"voyant_id"`
	AgentID     int        `json:"agent_id"`
	Status      string     `json:"status"`
	MinutesUsed int        `json:"minutes_used"`
	TotalCost   float64    `json:"total_cost"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type StartConversationRequest struct {
	VoyantID int `json:"voyant_id"`
}
