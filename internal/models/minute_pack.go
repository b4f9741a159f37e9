package models

import "time"

// MinutePack is a prepaid allotment of consultation minutes.
type MinutePack struct {
	ID               int        `json:"id"`
	ClientID         int        `json:"client_id"`
	Minutes          int        `json:"minutes"`
	MinutesRemaining int        `json:"minutes_remaining"`
	Reason           string     `json:"reason,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	IsUsed           bool       `json:"is_used"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Untouched reports whether no minute of the pack has been consumed.
func (p MinutePack) Untouched() bool {
	return !p.IsUsed && p.MinutesRemaining == p.Minutes
}

type GrantMinutesRequest struct {
	ClientID int    `json:"client_id"`
	Minutes  int    `json:"minutes"`
	Reason   string `json:"reason"`
}

// MinutesSummary lists the usable packs of a client and their total.
type MinutesSummary struct {
	Packs            []MinutePack `json:"packs"`
	AvailableMinutes int          `json:"available_minutes"`
}
