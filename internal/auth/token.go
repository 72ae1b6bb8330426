package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carebridge/support-service/internal/config"
	"github.com/carebridge/support-service/internal/domain"
)

// SessionClaims is the token shape the external auth module issues. This
// service only verifies and decodes; it never mints tokens.
type SessionClaims struct {
	ActorName string `json:"actor_name"`
	Role      string `json:"role"`
	CoupleID  string `json:"couple_id"`
	Gender    string `json:"gender,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager verifies externally issued session tokens.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds the manager from config.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{secret: []byte(cfg.JWTSecret)}
}

// ParseSession validates the token and maps it onto the explicit session
// context every core operation receives.
func (m *TokenManager) ParseSession(tokenString string) (*domain.Session, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	role := domain.ParticipantRole(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}

	return &domain.Session{
		ActorID:   claims.Subject,
		ActorName: claims.ActorName,
		Role:      role,
		CoupleID:  claims.CoupleID,
		Gender:    claims.Gender,
	}, nil
}
