package services

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"voyanceBack/internal/models"
	"voyanceBack/internal/presence"
	"voyanceBack/internal/repositories"
	"voyanceBack/internal/timeutil"
)

// maxStatsRange bounds the date range of a stats query.
const maxStatsRange = 366 * 24 * time.Hour

type AgentService struct {
	DB         *sql.DB
	AgentRepo  *repositories.AgentRepository
	VoyantRepo *repositories.VoyantRepository
	StatsRepo  *repositories.AgentStatsRepository
	Presence   presence.Store
	Logger     *slog.Logger
	Now        func() time.Time
}

// Create provisions an agent and its backing user account.
func (s *AgentService) Create(ctx context.Context, req models.CreateAgentRequest) (models.Agent, error) {
	username := normalizeUsername(req.Username)
	if err := validateCredentials(username, req.Password); err != nil {
		return models.Agent{}, err
	}
	email := strings.TrimSpace(req.Email)
	if err := validateEmail(email); err != nil {
		return models.Agent{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = username
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return models.Agent{}, err
	}

	var agent models.Agent
	err = repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		user, err := (&repositories.UserRepository{DB: tx}).CreateUser(ctx, models.User{
			Name:         name,
			Email:        email,
			Role:         models.RoleAgent,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		agent, err = (&repositories.AgentRepository{DB: tx}).Create(ctx, models.Agent{
			UserID:       user.ID,
			Username:     username,
			PasswordHash: hash,
			IsActive:     true,
		})
		return err
	})
	if err != nil {
		return models.Agent{}, err
	}
	loggerOrDefault(s.Logger).Info("agent created", "agent_id", agent.ID)
	return agent, nil
}

// List returns every agent with its online flag taken from presence.
func (s *AgentService) List(ctx context.Context) ([]models.Agent, error) {
	agents, err := s.AgentRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.withPresence(ctx, agents)
}

func (s *AgentService) Get(ctx context.Context, id int) (models.Agent, error) {
	agent, err := s.AgentRepo.GetByID(ctx, id)
	if err != nil {
		return models.Agent{}, err
	}
	agents, err := s.withPresence(ctx, []models.Agent{agent})
	if err != nil {
		return models.Agent{}, err
	}
	return agents[0], nil
}

// OnlineAgents returns the active agents currently online.
func (s *AgentService) OnlineAgents(ctx context.Context) ([]models.Agent, error) {
	agents, err := s.AgentRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	agents, err = s.withPresence(ctx, agents)
	if err != nil {
		return nil, err
	}
	online := []models.Agent{}
	for _, a := range agents {
		if a.IsOnline {
			online = append(online, a)
		}
	}
	return online, nil
}

func (s *AgentService) withPresence(ctx context.Context, agents []models.Agent) ([]models.Agent, error) {
	if s.Presence == nil || len(agents) == 0 {
		return agents, nil
	}
	ids := make([]int, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	online, err := s.Presence.Online(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range agents {
		agents[i].IsOnline = online[agents[i].ID]
	}
	return agents, nil
}

func (s *AgentService) Update(ctx context.Context, id int, req models.UpdateAgentRequest) (models.Agent, error) {
	if req.Username != nil {
		username := normalizeUsername(*req.Username)
		if n := len(username); n < minUsernameLength || n > maxUsernameLength {
			return models.Agent{}, models.NewValidationError("username", "must be between 3 and 64 characters")
		}
		req.Username = &username
	}
	var hash string
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return models.Agent{}, models.NewValidationError("password", "must be at least 8 characters")
		}
		var err error
		if hash, err = hashPassword(*req.Password); err != nil {
			return models.Agent{}, err
		}
	}
	if err := s.AgentRepo.Update(ctx, id, req, hash); err != nil {
		return models.Agent{}, err
	}
	if req.IsActive != nil && !*req.IsActive && s.Presence != nil {
		if err := s.Presence.Offline(ctx, id); err != nil {
			loggerOrDefault(s.Logger).Warn("presence not cleared", "agent_id", id, "error", err)
		}
	}
	return s.Get(ctx, id)
}

// Delete removes the agent's user account together with its voyants. An agent
// with conversation history is refused with ErrInUse.
func (s *AgentService) Delete(ctx context.Context, id int) error {
	agent, err := s.AgentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := (&repositories.AgentRepository{DB: tx}).Delete(ctx, agent.ID); err != nil {
			return err
		}
		return (&repositories.UserRepository{DB: tx}).DeleteUser(ctx, agent.UserID)
	})
}

// Heartbeat marks the agent online until the presence TTL runs out.
func (s *AgentService) Heartbeat(ctx context.Context, agentID int) error {
	if err := s.AgentRepo.SetPresence(ctx, agentID, true, nowOr(s.Now)); err != nil {
		return err
	}
	if s.Presence == nil {
		return nil
	}
	return s.Presence.Heartbeat(ctx, agentID)
}

func (s *AgentService) Offline(ctx context.Context, agentID int) error {
	if err := s.AgentRepo.SetPresence(ctx, agentID, false, nowOr(s.Now)); err != nil {
		return err
	}
	if s.Presence == nil {
		return nil
	}
	return s.Presence.Offline(ctx, agentID)
}

func (s *AgentService) MyVoyants(ctx context.Context, agentID int) ([]models.Voyant, error) {
	return s.VoyantRepo.ListByAgent(ctx, agentID)
}

func (s *AgentService) RegisterDevice(ctx context.Context, agentID int, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.NewValidationError("token", "is required")
	}
	return s.AgentRepo.SetFCMToken(ctx, agentID, token)
}

// Stats returns an agent's daily stats between two calendar days inclusive.
func (s *AgentService) Stats(ctx context.Context, agentID int, start, end string) ([]models.AgentStats, error) {
	if err := validateDayRange(start, end); err != nil {
		return nil, err
	}
	return s.StatsRepo.GetRange(ctx, agentID, start, end)
}

func validateDayRange(start, end string) error {
	from, err := timeutil.ParseDay(start)
	if err != nil {
		return models.NewValidationError("start_date", "must be YYYY-MM-DD")
	}
	to, err := timeutil.ParseDay(end)
	if err != nil {
		return models.NewValidationError("end_date", "must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return models.NewValidationError("end_date", "must not be before start_date")
	}
	if to.Sub(from) > maxStatsRange {
		return models.NewValidationError("end_date", "range is too long")
	}
	return nil
}
