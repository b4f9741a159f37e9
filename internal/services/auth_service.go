package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"voyanceBack/internal/models"
	"voyanceBack/internal/repositories"
	"voyanceBack/utils"
)

const (
	defaultAccessTTL  = 120 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 8
)

type AuthService struct {
	DB           *sql.DB
	UserRepo     *repositories.UserRepository
	AgentRepo    *repositories.AgentRepository
	ClientRepo   *repositories.ClientRepository
	TokenManager *utils.Manager
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Guard        RegistrationGuard
	Logger       *slog.Logger
	Now          func() time.Time
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) error {
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return models.ErrInvalidCredentials
	}
	return nil
}

func validateCredentials(username, password string) error {
	if n := len(username); n < minUsernameLength || n > maxUsernameLength {
		return models.NewValidationError("username", "must be between 3 and 64 characters")
	}
	if len(password) < minPasswordLength {
		return models.NewValidationError("password", "must be at least 8 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.NewValidationError("email", "is invalid")
	}
	return nil
}

// LoginAdmin signs in an admin account by email.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (models.LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.LoginResult{}, models.NewValidationError("email", "email and password are required")
	}
	user, err := s.UserRepo.GetUserByEmail(ctx, email, models.RoleAdmin)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.LoginResult{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResult{}, err
	}
	if err := checkPassword(user.PasswordHash, password); err != nil {
		return models.LoginResult{}, err
	}
	return s.issue(ctx, models.Principal{UserID: user.ID, Role: models.RoleAdmin}, user)
}

func (s *AuthService) LoginAgent(ctx context.Context, username, password string) (models.LoginResult, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return models.LoginResult{}, models.NewValidationError("username", "username and password are required")
	}
	agent, err := s.AgentRepo.GetByUsername(ctx, username)
	if errors.Is(err, models.ErrAgentNotFound) {
		return models.LoginResult{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResult{}, err
	}
	if err := checkPassword(agent.PasswordHash, password); err != nil {
		return models.LoginResult{}, err
	}
	if !agent.IsActive {
		return models.LoginResult{}, models.ErrAccountDisabled
	}
	user, err := s.UserRepo.GetUserByID(ctx, agent.UserID)
	if err != nil {
		return models.LoginResult{}, err
	}
	return s.issue(ctx, models.Principal{UserID: user.ID, Role: models.RoleAgent, AgentID: agent.ID}, user)
}

func (s *AuthService) LoginClient(ctx context.Context, username, password string) (models.LoginResult, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return models.LoginResult{}, models.NewValidationError("username", "username and password are required")
	}
	client, err := s.ClientRepo.GetByUsername(ctx, username)
	if errors.Is(err, models.ErrClientNotFound) {
		return models.LoginResult{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResult{}, err
	}
	if err := checkPassword(client.PasswordHash, password); err != nil {
		return models.LoginResult{}, err
	}
	if !client.IsActive {
		return models.LoginResult{}, models.ErrAccountDisabled
	}
	user, err := s.UserRepo.GetUserByID(ctx, client.UserID)
	if err != nil {
		return models.LoginResult{}, err
	}
	if err := s.ClientRepo.Touch(ctx, client.ID, nowOr(s.Now)); err != nil {
		loggerOrDefault(s.Logger).Warn("client activity not recorded", "client_id", client.ID, "error", err)
	}
	return s.issue(ctx, models.Principal{UserID: user.ID, Role: models.RoleClient, ClientID: client.ID}, user)
}

// RegisterClient creates a client account and signs it in.
func (s *AuthService) RegisterClient(ctx context.Context, req models.RegisterClientRequest, ip string) (models.LoginResult, error) {
	username := normalizeUsername(req.Username)
	email := strings.TrimSpace(req.Email)
	if err := validateCredentials(username, req.Password); err != nil {
		return models.LoginResult{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.LoginResult{}, err
	}
	if s.Guard != nil {
		allowed, err := s.Guard.Allow(ctx, ip)
		if err != nil {
			loggerOrDefault(s.Logger).Warn("registration guard unavailable", "error", err)
		} else if !allowed {
			return models.LoginResult{}, models.ErrTooManyRegistrations
		}
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return models.LoginResult{}, err
	}
	var (
		user   models.User
		client models.Client
	)
	err = repositories.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		user, err = (&repositories.UserRepository{DB: tx}).CreateUser(ctx, models.User{
			Name:         username,
			Email:        email,
			Role:         models.RoleClient,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		client, err = (&repositories.ClientRepository{DB: tx}).Create(ctx, models.Client{
			UserID:       user.ID,
			Username:     username,
			PasswordHash: hash,
			IsActive:     true,
		})
		return err
	})
	if err != nil {
		return models.LoginResult{}, err
	}
	loggerOrDefault(s.Logger).Info("client registered", "client_id", client.ID)
	return s.issue(ctx, models.Principal{UserID: user.ID, Role: models.RoleClient, ClientID: client.ID}, user)
}

// Refresh rotates the refresh token and issues a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.LoginResult, error) {
	if refreshToken == "" {
		return models.LoginResult{}, models.ErrUnauthorized
	}
	session, err := s.UserRepo.GetSessionByToken(ctx, refreshToken)
	if err != nil {
		return models.LoginResult{}, err
	}
	if !session.ExpiresAt.After(nowOr(s.Now)) {
		return models.LoginResult{}, models.ErrUnauthorized
	}
	user, err := s.UserRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return models.LoginResult{}, err
	}
	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return models.LoginResult{}, err
	}
	return s.issue(ctx, principal, user)
}

func (s *AuthService) principalFor(ctx context.Context, user models.User) (models.Principal, error) {
	p := models.Principal{UserID: user.ID, Role: user.Role}
	switch user.Role {
	case models.RoleAgent:
		agent, err := s.AgentRepo.GetByUserID(ctx, user.ID)
		if err != nil {
			return models.Principal{}, err
		}
		if !agent.IsActive {
			return models.Principal{}, models.ErrAccountDisabled
		}
		p.AgentID = agent.ID
	case models.RoleClient:
		client, err := s.ClientRepo.GetByUserID(ctx, user.ID)
		if err != nil {
			return models.Principal{}, err
		}
		if !client.IsActive {
			return models.Principal{}, models.ErrAccountDisabled
		}
		p.ClientID = client.ID
	}
	return p, nil
}

func (s *AuthService) Logout(ctx context.Context, userID int) error {
	return s.UserRepo.ClearSession(ctx, userID)
}

// Authenticate resolves an access token to the principal it was issued for.
func (s *AuthService) Authenticate(accessToken string) (models.Principal, error) {
	if accessToken == "" {
		return models.Principal{}, models.ErrUnauthorized
	}
	claims, err := s.TokenManager.Parse(accessToken)
	if err != nil {
		return models.Principal{}, models.ErrUnauthorized
	}
	return models.Principal{UserID: claims.UserID, Role: claims.Role, AgentID: claims.AgentID, ClientID: claims.ClientID}, nil
}

// Verify checks that the account behind p still holds the role the token was
// issued for. A disabled agent or client, or a changed role, loses access on the
// next request instead of when the access token expires.
func (s *AuthService) Verify(ctx context.Context, p models.Principal) error {
	user, err := s.UserRepo.GetUserByID(ctx, p.UserID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if user.Role != p.Role {
		return models.ErrUnauthorized
	}
	current, err := s.principalFor(ctx, user)
	switch {
	case errors.Is(err, models.ErrNoRecord):
		return models.ErrUnauthorized
	case err != nil:
		return err
	}
	if current.AgentID != p.AgentID || current.ClientID != p.ClientID {
		return models.ErrUnauthorized
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, p models.Principal) (models.LoginResult, error) {
	user, err := s.UserRepo.GetUserByID(ctx, p.UserID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.LoginResult{}, models.ErrUnauthorized
	}
	if err != nil {
		return models.LoginResult{}, err
	}
	return models.LoginResult{Principal: p, User: user}, nil
}

// CreateAdmin provisions an admin account. It backs the operator CLI.
func (s *AuthService) CreateAdmin(ctx context.Context, name, email, password string) (models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.User{}, models.NewValidationError("email", "is required")
	}
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	if len(password) < minPasswordLength {
		return models.User{}, models.NewValidationError("password", "must be at least 8 characters")
	}
	if _, err := s.UserRepo.GetUserByEmail(ctx, email, models.RoleAdmin); err == nil {
		return models.User{}, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.UserRepo.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         models.RoleAdmin,
		PasswordHash: hash,
	})
}

func (s *AuthService) issue(ctx context.Context, p models.Principal, user models.User) (models.LoginResult, error) {
	accessTTL, refreshTTL := s.AccessTTL, s.RefreshTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	accessToken, expires, err := s.TokenManager.NewJWT(p.Claims(), accessTTL)
	if err != nil {
		return models.LoginResult{}, err
	}
	now := nowOr(s.Now)
	session := models.Session{
		UserID:       user.ID,
		Role:         p.Role,
		RefreshToken: s.TokenManager.NewRefreshToken(),
		ExpiresAt:    now.Add(refreshTTL),
	}
	if err := s.UserRepo.SetSession(ctx, user.ID, session); err != nil {
		return models.LoginResult{}, err
	}
	if err := s.UserRepo.TouchSignIn(ctx, user.ID, now); err != nil {
		loggerOrDefault(s.Logger).Warn("sign-in time not recorded", "user_id", user.ID, "error", err)
	}
	user.LastSignedIn = &now
	return models.LoginResult{
		Principal: p,
		User:      user,
		Tokens: models.Tokens{
			AccessToken:      accessToken,
			RefreshToken:     session.RefreshToken,
			ExpiresAt:        expires,
			RefreshExpiresAt: session.ExpiresAt,
		},
	}, nil
}
