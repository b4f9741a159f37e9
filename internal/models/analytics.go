package models

import "time"

// Analytics holds the platform totals of one calendar day.
type Analytics struct {
	ID                 int       `json:"id"`
	Date               time.Time `json:"date"`
	PageViews          int       `json:"page_views"`
	UniqueVisitors     int       `json:"unique_visitors"`
	NewClients         int       `json:"new_clients"`
	TotalConversations int       `json:"total_conversations"`
	TotalMinutesServed int       `json:"total_minutes_served"`
	TotalRevenue       float64   `json:"total_revenue"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type DashboardStats struct {
	ActiveClients  int        `json:"active_clients"`
	TotalAgents    int        `json:"total_agents"`
	OnlineAgents   int        `json:"online_agents"`
	PendingReviews int        `json:"pending_reviews"`
	Today          *Analytics `json:"today,omitempty"`
}
