package models

import "time"

type Review struct {
	ID             int       `json:"id"`
	VoyantID       *int      `json:"voyant_id,omitempty"`
	ClientID       *int      `json:"client_id,omitempty"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	IsApproved     bool      `json:"is_approved"`
	IsPublished    bool      `json:"is_published"`
	CreatedByAdmin bool      `json:"created_by_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ReviewRequest struct {
	VoyantID *int   `json:"voyant_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}
