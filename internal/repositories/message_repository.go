package repositories

import (
	"context"
	"time"

	"voyanceBack/internal/models"
)

type MessageRepository struct {
	DB DBTX
}

func (r *MessageRepository) CreateMessage(ctx context.Context, m models.Message) (models.Message, error) {
	now := time.Now()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, sender_type, content, is_read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ConversationID, m.SenderID, m.SenderType, m.Content, false, now, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Message{}, models.ErrConversationNotFound
		}
		return models.Message{}, storageErr(err)
	}
	id, err := lastInsertID(res)
	if err != nil {
		return models.Message{}, storageErr(err)
	}
	m.ID = id
	m.IsRead = false
	m.CreatedAt = now
	m.UpdatedAt = now
	return m, nil
}

// GetMessagesForConversation returns the messages of a conversation in the order they were sent.
func (r *MessageRepository) GetMessagesForConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, sender_type, content, is_read, created_at, updated_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderType, &m.Content,
			&m.IsRead, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, storageErr(err)
		}
		messages = append(messages, m)
	}
	return messages, storageErr(rows.Err())
}

// MarkRead flags as read every message of the conversation not sent by readerType.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID int, readerType string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE messages SET is_read = TRUE, updated_at = ?
		WHERE conversation_id = ? AND sender_type <> ? AND is_read = FALSE`,
		time.Now(), conversationID, readerType)
	if err != nil {
		return 0, storageErr(err)
	}
	n, err := res.RowsAffected()
	return n, storageErr(err)
}
