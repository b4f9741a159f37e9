package models

import "time"

const (
	SenderClient = "client"
	SenderAgent  = "agent"
)

type Message struct {
	ID             int       `json:"id"`
	ConversationID int       `json:"conversation_id"`
	SenderID       int       `json:"sender_id"`
	SenderType     string    `json:"sender_type"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}
