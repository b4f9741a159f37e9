package models

import "time"

type Client struct {
	ID                    int        `json:"id"`
	UserID                int        `json:"user_id"`
	Username              string     `json:"username"`
	PasswordHash          string     `json:"-"`
	TotalMinutesAvailable int        `json:"total_minutes_available"`
	TotalMinutesUsed      int        `json:"total_minutes_used"`
	TotalSpent            float64    `json:"total_spent"`
	IsActive              bool       `json:"is_active"`
	LastActivityAt        *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type RegisterClientRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// ClientProfile is the client's own view of its account.
type ClientProfile struct {
	Client           Client `json:"client"`
	AvailableMinutes int    `json:"available_minutes"`
}
