package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"voyanceBack/internal/models"
)

type Manager struct {
	signingKey string
	now        func() time.Time
}

func NewManager(signingKey string) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("empty signing key")
	}

	return &Manager{signingKey: signingKey, now: time.Now}, nil
}

// NewJWT signs claims for ttl and returns the token and its expiry.
func (m *Manager) NewJWT(claims models.Claims, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(ttl)
	claims.StandardClaims = jwt.StandardClaims{
		ExpiresAt: expires.Unix(),
		IssuedAt:  now.Unix(),
		Subject:   fmt.Sprint(claims.UserID),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(m.signingKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse validates an access token and returns its claims.
func (m *Manager) Parse(accessToken string) (models.Claims, error) {
	claims := models.Claims{}
	token, err := jwt.ParseWithClaims(accessToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.signingKey), nil
	})
	if err != nil {
		return models.Claims{}, err
	}
	if !token.Valid || claims.UserID == 0 || !models.ValidRole(claims.Role) {
		return models.Claims{}, errors.New("invalid token claims")
	}
	return claims, nil
}

func (m *Manager) NewRefreshToken() string {
	return uuid.NewString()
}
