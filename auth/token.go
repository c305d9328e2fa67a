// Package auth issues and verifies session tokens, decides who may edit
// posts, and runs the Google sign-in flow.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taohansen/blog-backend/errs"
)

const (
	DefaultTokenTTL = 60 * time.Minute
	tokenIssuer     = "blog-backend"
)

// Claims is the session token payload. Subject carries the email too, so
// tokens stay readable by tools that only know the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// TokenManager signs HS256 session tokens.
type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func WithTokenTTL(ttl time.Duration) func(*TokenManager) {
	return func(m *TokenManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithTokenClock(now func() time.Time) func(*TokenManager) {
	return func(m *TokenManager) {
		m.now = now
	}
}

func NewTokenManager(secret string, opts ...func(*TokenManager)) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errs.NewMissingRequiredFieldError("JWT_SECRET")
	}
	m := &TokenManager{
		secretKey: []byte(secret),
		ttl:       DefaultTokenTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue returns a signed token for email and its expiry.
func (m *TokenManager) Issue(email, name string) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Name:  name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, errs.NewInternalErrorWithCause("failed to sign session token", err)
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errs.NewMissingTokenError()
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.NewInvalidTokenError()
		}
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.NewExpiredTokenError()
		}
		return nil, errs.NewInvalidTokenError()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, errs.NewInvalidTokenError()
	}
	return claims, nil
}
