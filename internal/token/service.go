// Package token issues and validates the stateless bearer tokens used by the
// authentication flows. Tokens are self-contained; there is no revocation
// list, the only invalidation lever is natural expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atlas-eam/atlas-eam/internal/shared"
)

// Claims carried by every issued token. Roles are expanded to permissions at
// validation time so grants can change without reissuing tokens.
type Claims struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies HMAC-SHA256 tokens.
type Service struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewService constructs a Service. The secret must come from external
// configuration; a short key is rejected outright.
func NewService(secret string, lifetime time.Duration) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("token: signing secret must be at least 32 bytes")
	}
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), lifetime: lifetime, now: time.Now}, nil
}

// Issue produces a signed token for the subject carrying its role and
// permission codes.
func (s *Service) Issue(subject string, roleCodes, permissionCodes []string) (string, error) {
	now := s.now()
	claims := Claims{
		Roles:       roleCodes,
		Permissions: permissionCodes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the parsed claims.
func (s *Service) Validate(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, shared.ErrTokenExpired
		}
		return nil, shared.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}
