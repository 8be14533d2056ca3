package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers every verification failure: missing, malformed,
	// expired, wrong signature or method.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSecret is returned by Issue when no signing secret is configured.
	ErrNoSecret = errors.New("jwt secret is not configured")
)

// Tokens issues and verifies HS256 bearer credentials bound to a user id.
type Tokens struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokens creates a Tokens. An empty secret yields an instance that
// rejects every token and refuses to issue.
func NewTokens(secret string, lifetime time.Duration) *Tokens {
	return &Tokens{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Configured reports whether a signing secret is present.
func (t *Tokens) Configured() bool {
	return len(t.secret) > 0
}

// Issue returns a signed token for userID.
func (t *Tokens) Issue(userID string) (string, error) {
	if !t.Configured() {
		return "", ErrNoSecret
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id the token was issued for.
func (t *Tokens) Verify(token string) (string, error) {
	if !t.Configured() || token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
