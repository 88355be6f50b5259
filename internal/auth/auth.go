// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

// Package auth validates the credentials carried by the AUTHENTICATE control
// message. Issuing credentials is out of scope; the hub only checks them.
//
// Two authenticators are provided:
//   - StaticAuthenticator accepts any non-empty token and trusts the
//     requested role. It is the default when no JWT secret is configured.
//   - JWTAuthenticator verifies an HS256 token whose subject must equal the
//     presented userId; a role claim in the token overrides the requested role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/dosehub/internal/config"
	"github.com/tomtom215/dosehub/internal/websocket"
)

// ErrSubjectMismatch is returned when a token was issued for another user.
var ErrSubjectMismatch = errors.New("token subject does not match userId")

// Claims represents JWT claims
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// New returns the authenticator selected by cfg.
func New(cfg config.AuthConfig) websocket.Authenticator {
	if cfg.JWTSecret == "" {
		return StaticAuthenticator{}
	}
	return &JWTAuthenticator{secret: []byte(cfg.JWTSecret)}
}

// StaticAuthenticator accepts any non-empty credentials.
type StaticAuthenticator struct{}

// Authenticate implements websocket.Authenticator.
func (StaticAuthenticator) Authenticate(_ context.Context, token, userID, role string) (websocket.Authenticated, error) {
	if token == "" || userID == "" {
		return websocket.Authenticated{}, websocket.ErrInvalidCredentials
	}
	return websocket.Authenticated{UserID: userID, Role: role}, nil
}

// JWTAuthenticator verifies HS256 tokens.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates a JWT authenticator. The secret must not be empty.
func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTAuthenticator{secret: []byte(secret)}, nil
}

// Authenticate implements websocket.Authenticator.
func (a *JWTAuthenticator) Authenticate(_ context.Context, token, userID, role string) (websocket.Authenticated, error) {
	if token == "" || userID == "" {
		return websocket.Authenticated{}, websocket.ErrInvalidCredentials
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		return websocket.Authenticated{}, fmt.Errorf("%w: %w", websocket.ErrInvalidCredentials, err)
	}
	if claims.Subject != userID {
		return websocket.Authenticated{}, fmt.Errorf("%w: %w", websocket.ErrInvalidCredentials, ErrSubjectMismatch)
	}
	if claims.Role != "" {
		role = claims.Role
	}
	return websocket.Authenticated{UserID: userID, Role: role}, nil
}

// GenerateToken signs a token for userID valid for ttl.
func (a *JWTAuthenticator) GenerateToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and checks its signature and time claims.
// Tokens signed with anything other than HMAC are rejected.
func (a *JWTAuthenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
