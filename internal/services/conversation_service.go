package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/fsm"
	"voyanceBack/internal/models"
	"voyanceBack/internal/notify"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/ws"
)

type ConversationService struct {
	DB               *sql.DB
	ConversationRepo *repositories.ConversationRepository
	VoyantRepo       *repositories.VoyantRepository
	AgentRepo        *repositories.AgentRepository
	Packs            *MinutePackService
	Events           EventPublisher
	Notifier         notify.Notifier
	Logger           *slog.Logger
	Now              func() time.Time
}

// authorizeConversation checks that p is a participant of c or an admin.
func authorizeConversation(p models.Principal, c models.Conversation) error {
	switch p.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleClient:
		if p.ClientID != 0 && p.ClientID == c.ClientID {
			return nil
		}
	case models.RoleAgent:
		if p.AgentID != 0 && p.AgentID == c.AgentID {
			return nil
		}
	}
	return models.ErrForbidden
}

// Start opens a conversation between the calling client and a voyant.
func (s *ConversationService) Start(ctx context.Context, p models.Principal, voyantID int) (models.Conversation, error) {
	if p.Role != models.RoleClient || p.ClientID == 0 {
		return models.Conversation{}, models.ErrForbidden
	}
	if voyantID <= 0 {
		return models.Conversation{}, models.NewValidationError("voyant_id", "is required")
	}

	voyant, err := s.VoyantRepo.GetByID(ctx, voyantID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !voyant.IsActive {
		return models.Conversation{}, models.ErrVoyantUnavailable
	}
	agent, err := s.AgentRepo.GetByID(ctx, voyant.AgentID)
	if errors.Is(err, models.ErrAgentNotFound) {
		return models.Conversation{}, models.ErrVoyantUnavailable
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if !agent.IsActive {
		return models.Conversation{}, models.ErrVoyantUnavailable
	}

	now := nowOr(s.Now)
	var conv models.Conversation
	err = repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := (&repositories.ClientRepository{DB: tx}).LockByID(ctx, p.ClientID); err != nil {
			return err
		}
		convs := &repositories.ConversationRepository{DB: tx}
		_, err := convs.GetActiveByClient(ctx, p.ClientID)
		switch {
		case err == nil:
			return models.ErrActiveConversation
		case !errors.Is(err, models.ErrConversationNotFound):
			return err
		}
		available, err := (&repositories.MinutePackRepository{DB: tx}).SumAvailable(ctx, p.ClientID, now)
		if err != nil {
			return err
		}
		if available <= 0 {
			return models.ErrInsufficientMinutes
		}
		conv, err = convs.Create(ctx, models.Conversation{
			ClientID:  p.ClientID,
			VoyantID:  voyant.ID,
			AgentID:   agent.ID,
			Status:    models.ConversationActive,
			StartedAt: now,
		})
		return err
	})
	if err != nil {
		return models.Conversation{}, err
	}

	publisherOrNop(s.Events).Publish(ws.Event{Type: ws.EventConversationStarted, Payload: conv},
		ws.ClientKey(conv.ClientID), ws.AgentKey(conv.AgentID))
	s.pushToAgent(ctx, agent, notify.Notification{
		Title: "New consultation",
		Body:  fmt.Sprintf("A client started a conversation with %s", voyant.Name),
		Data: map[string]string{
			"type":            ws.EventConversationStarted,
			"conversation_id": strconv.Itoa(conv.ID),
		},
	})
	loggerOrDefault(s.Logger).Info("conversation started", "conversation_id", conv.ID, "client_id", conv.ClientID, "agent_id", conv.AgentID)
	return conv, nil
}

// Tick bills the minutes started since the last call. When the client's packs run
// out the conversation is settled as completed.
func (s *ConversationService) Tick(ctx context.Context, p models.Principal, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		c, err := s.lockActive(ctx, tx, p, conversationID)
		if err != nil {
			return err
		}
		now := nowOr(s.Now)
		c, exhausted, err := s.accrueTx(ctx, tx, c, now)
		if err != nil {
			return err
		}
		if exhausted {
			c, err = s.settleTx(ctx, tx, c, models.ConversationCompleted, now)
			if err != nil {
				return err
			}
		}
		conv = c
		return nil
	})
	if err != nil {
		return models.Conversation{}, err
	}
	s.publishUpdate(conv)
	if conv.Status != models.ConversationActive {
		loggerOrDefault(s.Logger).Info("conversation closed, minutes exhausted", "conversation_id", conv.ID, "minutes_used", conv.MinutesUsed)
	}
	return conv, nil
}

func (s *ConversationService) End(ctx context.Context, p models.Principal, conversationID int) (models.Conversation, error) {
	return s.finish(ctx, p, conversationID, models.ConversationCompleted)
}

func (s *ConversationService) Cancel(ctx context.Context, p models.Principal, conversationID int) (models.Conversation, error) {
	return s.finish(ctx, p, conversationID, models.ConversationCancelled)
}

func (s *ConversationService) finish(ctx context.Context, p models.Principal, conversationID int, to string) (models.Conversation, error) {
	var conv models.Conversation
	err := repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		c, err := s.lockActive(ctx, tx, p, conversationID)
		if err != nil {
			return err
		}
		now := nowOr(s.Now)
		c, _, err = s.accrueTx(ctx, tx, c, now)
		if err != nil {
			return err
		}
		conv, err = s.settleTx(ctx, tx, c, to, now)
		return err
	})
	if err != nil {
		return models.Conversation{}, err
	}
	s.publishUpdate(conv)
	loggerOrDefault(s.Logger).Info("conversation settled", "conversation_id", conv.ID, "status", conv.Status,
		"minutes_used", conv.MinutesUsed, "total_cost", conv.TotalCost)
	return conv, nil
}

func (s *ConversationService) lockActive(ctx context.Context, tx *sql.Tx, p models.Principal, id int) (models.Conversation, error) {
	c, err := (&repositories.ConversationRepository{DB: tx}).LockByID(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := authorizeConversation(p, c); err != nil {
		return models.Conversation{}, err
	}
	if c.Status != models.ConversationActive {
		return models.Conversation{}, models.ErrConversationClosed
	}
	return c, nil
}

// accrueTx draws the minutes started since the last accrual and reports whether
// the packs could not cover them.
func (s *ConversationService) accrueTx(ctx context.Context, tx *sql.Tx, c models.Conversation, now time.Time) (models.Conversation, bool, error) {
	delta := billing.BillableMinutes(c.StartedAt, now) - c.MinutesUsed
	if delta <= 0 {
		return c, false, nil
	}
	voyant, err := (&repositories.VoyantRepository{DB: tx}).GetByID(ctx, c.VoyantID)
	if err != nil {
		return models.Conversation{}, false, err
	}
	taken, err := s.Packs.DrawTx(ctx, tx, c.ClientID, delta)
	if err != nil {
		return models.Conversation{}, false, err
	}
	if taken > 0 {
		c.MinutesUsed += taken
		c.TotalCost = billing.Cost(c.MinutesUsed, voyant.PricePerMinute)
		if err := (&repositories.ConversationRepository{DB: tx}).UpdateUsage(ctx, c.ID, c.MinutesUsed, c.TotalCost); err != nil {
			return models.Conversation{}, false, err
		}
		c.UpdatedAt = now
	}
	return c, taken < delta, nil
}

// settleTx closes the conversation and credits the agent and client counters.
func (s *ConversationService) settleTx(ctx context.Context, tx *sql.Tx, c models.Conversation, to string, now time.Time) (models.Conversation, error) {
	if err := fsm.Apply(ctx, tx, c.ID, c.Status, to, now); err != nil {
		if errors.Is(err, fsm.ErrStaleStatus) || errors.Is(err, fsm.ErrInvalidTransition) {
			return models.Conversation{}, models.ErrConversationClosed
		}
		return models.Conversation{}, repositories.StorageError(err)
	}
	settled, err := (&repositories.ConversationRepository{DB: tx}).HasSettledBetween(ctx, c.ClientID, c.AgentID, c.ID)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := (&repositories.AgentRepository{DB: tx}).Credit(ctx, c.AgentID, c.TotalCost, c.MinutesUsed, !settled); err != nil {
		return models.Conversation{}, err
	}
	if err := (&repositories.ClientRepository{DB: tx}).AdjustMinutes(ctx, c.ClientID, 0, c.MinutesUsed); err != nil {
		return models.Conversation{}, err
	}
	c.Status = to
	c.EndedAt = &now
	c.UpdatedAt = now
	return c, nil
}

func (s *ConversationService) Get(ctx context.Context, p models.Principal, id int) (models.Conversation, error) {
	c, err := s.ConversationRepo.GetByID(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := authorizeConversation(p, c); err != nil {
		return models.Conversation{}, err
	}
	return c, nil
}

func (s *ConversationService) ListForClient(ctx context.Context, clientID int) ([]models.Conversation, error) {
	return s.ConversationRepo.ListByClient(ctx, clientID)
}

func (s *ConversationService) ListForAgent(ctx context.Context, agentID int) ([]models.Conversation, error) {
	return s.ConversationRepo.ListByAgent(ctx, agentID)
}

// Active returns the client's active conversation, or nil when there is none.
func (s *ConversationService) Active(ctx context.Context, clientID int) (*models.Conversation, error) {
	c, err := s.ConversationRepo.GetActiveByClient(ctx, clientID)
	if errors.Is(err, models.ErrConversationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ConversationService) publishUpdate(c models.Conversation) {
	publisherOrNop(s.Events).Publish(ws.Event{Type: ws.EventConversationUpdated, Payload: c},
		ws.ClientKey(c.ClientID), ws.AgentKey(c.AgentID))
}

func (s *ConversationService) pushToAgent(ctx context.Context, agent models.Agent, n notify.Notification) {
	if s.Notifier == nil || agent.FCMToken == "" {
		return
	}
	if err := s.Notifier.Notify(ctx, agent.FCMToken, n); err != nil {
		loggerOrDefault(s.Logger).Warn("push notification failed", "agent_id", agent.ID, "error", err)
	}
}
