package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"voyanceBack/internal/models"
	"voyanceBack/internal/notify"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/ws"
)

const maxMessageLength = 4000

type MessageService struct {
	MessageRepo      *repositories.MessageRepository
	ConversationRepo *repositories.ConversationRepository
	AgentRepo        *repositories.AgentRepository
	Events           EventPublisher
	Notifier         notify.Notifier
	Logger           *slog.Logger
}

func senderOf(p models.Principal) (string, int, error) {
	switch {
	case p.Role == models.RoleClient && p.ClientID != 0:
		return models.SenderClient, p.ClientID, nil
	case p.Role == models.RoleAgent && p.AgentID != 0:
		return models.SenderAgent, p.AgentID, nil
	}
	return "", 0, models.ErrForbidden
}

// Send appends a message to an active conversation on behalf of one of its participants.
func (s *MessageService) Send(ctx context.Context, p models.Principal, conversationID int, content string) (models.Message, error) {
	senderType, senderID, err := senderOf(p)
	if err != nil {
		return models.Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, models.NewValidationError("content", "is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return models.Message{}, models.NewValidationError("content", "is too long")
	}

	conv, err := s.ConversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if err := authorizeConversation(p, conv); err != nil {
		return models.Message{}, err
	}
	if conv.Status != models.ConversationActive {
		return models.Message{}, models.ErrConversationClosed
	}

	msg, err := s.MessageRepo.CreateMessage(ctx, models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		SenderType:     senderType,
		Content:        content,
	})
	if err != nil {
		return models.Message{}, err
	}

	publisherOrNop(s.Events).Publish(ws.Event{Type: ws.EventMessageCreated, Payload: msg},
		ws.ClientKey(conv.ClientID), ws.AgentKey(conv.AgentID))
	if senderType == models.SenderClient {
		s.pushToAgent(ctx, conv, msg)
	}
	return msg, nil
}

func (s *MessageService) pushToAgent(ctx context.Context, conv models.Conversation, msg models.Message) {
	if s.Notifier == nil || s.AgentRepo == nil {
		return
	}
	agent, err := s.AgentRepo.GetByID(ctx, conv.AgentID)
	if err != nil || agent.FCMToken == "" {
		return
	}
	body := msg.Content
	if utf8.RuneCountInString(body) > 120 {
		body = string([]rune(body)[:120]) + "..."
	}
	err = s.Notifier.Notify(ctx, agent.FCMToken, notify.Notification{
		Title: "New message",
		Body:  body,
		Data: map[string]string{
			"type":            ws.EventMessageCreated,
			"conversation_id": strconv.Itoa(conv.ID),
		},
	})
	if err != nil {
		loggerOrDefault(s.Logger).Warn("push notification failed", "agent_id", agent.ID, "error", err)
	}
}

// List returns the messages of a conversation, oldest first.
func (s *MessageService) List(ctx context.Context, p models.Principal, conversationID int) ([]models.Message, error) {
	conv, err := s.ConversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := authorizeConversation(p, conv); err != nil {
		return nil, err
	}
	return s.MessageRepo.GetMessagesForConversation(ctx, conv.ID)
}

// MarkRead flags the messages the other participant sent as read.
func (s *MessageService) MarkRead(ctx context.Context, p models.Principal, conversationID int) (int64, error) {
	readerType, _, err := senderOf(p)
	if err != nil {
		return 0, err
	}
	conv, err := s.ConversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := authorizeConversation(p, conv); err != nil {
		return 0, err
	}
	return s.MessageRepo.MarkRead(ctx, conv.ID, readerType)
}
