package models

import "time"

type Agent struct {
	ID                 int        `json:"id"`
	UserID             int        `json:"user_id"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"-"`
	IsActive           bool       `json:"is_active"`
	TotalEarnings      float64    `json:"total_earnings"`
	TotalMinutesServed int        `json:"total_minutes_served"`
	TotalClients       int        `json:"total_clients"`
	IsOnline           bool       `json:"is_online"`
	LastActivityAt     *time.Time `json:"last_activity_at,omitempty"`
	FCMToken           string     `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type CreateAgentRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// UpdateAgentRequest carries the optional fields of an agent update.
type UpdateAgentRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
}

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// AgentStats is one agent's activity for one calendar day.
type AgentStats struct {
	ID                int       `json:"id"`
	AgentID           int       `json:"agent_id"`
	Date              time.Time `json:"date"`
	MinutesServed     int       `json:"minutes_served"`
	ClientsServed     int       `json:"clients_served"`
	Earnings          float64   `json:"earnings"`
	ConversationCount int       `json:"conversation_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
