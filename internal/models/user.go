package models

import (
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleAgent  = "agent"
	RoleClient = "client"
)

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleAgent, RoleClient:
		return true
	}
	return false
}

type User struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	LoginMethod  string     `json:"login_method,omitempty"`
	Role         string     `json:"role"`
	PasswordHash string     `json:"-"`
	LastSignedIn *time.Time `json:"last_signed_in,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Claims is the payload of a session token.
type Claims struct {
	UserID   int    `json:"user_id"`
	Role     string `json:"role"`
	AgentID  int    `json:"agent_id,omitempty"`
	ClientID int    `json:"client_id,omitempty"`
	jwt.StandardClaims
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID   int    `json:"user_id"`
	Role     string `json:"role"`
	AgentID  int    `json:"agent_id,omitempty"`
	ClientID int    `json:"client_id,omitempty"`
}

func (p Principal) Claims() Claims {
	return Claims{UserID: p.UserID, Role: p.Role, AgentID: p.AgentID, ClientID: p.ClientID}
}

type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Session struct {
	UserID       int       `json:"user_id"`
	Role         string    `json:"role"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SignInRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned by every login operation.
type LoginResult struct {
	Principal Principal `json:"principal"`
	Tokens    Tokens    `json:"tokens"`
	User      User      `json:"user"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}
