// Package auth provides login verification and token handling for the API
// surface.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"scriptor/internal/core/appctx"
)

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:   secret,
		Issuer:   "scriptor",
		TokenTTL: 15 * time.Minute,
	}
}

// Claims are the token claims. The database claim pins a token to the
// deployment it was issued against.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"uid"`
	Login    string `json:"login"`
	Admin    bool   `json:"adm,omitempty"`
	Database string `json:"db"`
}

// JWTService signs and validates tokens.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// Generate issues a token for id, bound to database.
func (s *JWTService) Generate(id appctx.Identity, database string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.TokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   fmt.Sprintf("%d", id.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:   id.UserID,
		Login:    id.Login,
		Admin:    id.Admin,
		Database: database,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and returns the identity it carries together
// with the database it was issued for.
func (s *JWTService) Validate(tokenString string) (appctx.Identity, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return appctx.Identity{}, "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return appctx.Identity{}, "", fmt.Errorf("invalid token claims")
	}

	return appctx.Identity{
		UserID: claims.UserID,
		Login:  claims.Login,
		Admin:  claims.Admin,
	}, claims.Database, nil
}
