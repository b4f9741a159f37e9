package models

import "time"

type Voyant struct {
	ID             int       `json:"id"`
	AgentID        int       `json:"agent_id"`
	Name           string    `json:"name"`
	Specialty      string    `json:"specialty,omitempty"`
	Description    string    `json:"description,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	PricePerMinute float64   `json:"price_per_minute"`
	Rating         float64   `json:"rating"`
	TotalReviews   int       `json:"total_reviews"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateVoyantRequest struct {
	AgentID        int     `json:"agent_id"`
	Name           string  `json:"name"`
	Specialty      string  `json:"specialty"`
	Description    string  `json:"description"`
	ImageURL       string  `json:"image_url"`
	PricePerMinute float64 `json:"price_per_minute"`
}

// UpdateVoyantRequest carries the optional fields of a voyant update.
type UpdateVoyantRequest struct {
	AgentID        *int     `json:"agent_id"`
	Name           *string  `json:"name"`
	Specialty      *string  `json:"specialty"`
	Description    *string  `json:"description"`
	ImageURL       *string  `json:"image_url"`
	PricePerMinute *float64 `json:"price_per_minute"`
	IsActive       *bool    `json:"is_active"`
}

// VoyantDetail is a voyant together with its published reviews.
type VoyantDetail struct {
	Voyant  Voyant   `json:"voyant"`
	Reviews []Review `json:"reviews"`
}
