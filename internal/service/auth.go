package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/vibecoding/internal/apperror"
	"github.com/sakif/vibecoding/internal/auth"
)

// TokenResult is a freshly issued API token.
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService exchanges the owner password for API tokens.
type AuthService struct {
	passwordHash string
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	logger       *slog.Logger
}

// NewAuthService creates an AuthService that accepts the password matching
// passwordHash. With an empty hash every login is refused.
func NewAuthService(
	passwordHash string,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		passwordHash: passwordHash,
		tokens:       tokens,
		passwords:    passwords,
		logger:       logger,
	}
}

// Login verifies password and issues a token for the owner.
func (s *AuthService) Login(ctx context.Context, password string) (*TokenResult, error) {
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if s.passwordHash == "" {
		return nil, apperror.Unauthorized("password login is not configured")
	}

	if err := s.passwords.Verify(s.passwordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.WarnContext(ctx, "login rejected")
			return nil, apperror.Unauthorized("invalid password")
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(auth.OwnerSubject)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}

	s.logger.InfoContext(ctx, "token issued", slog.Time("expires_at", expiresAt))
	return &TokenResult{Token: token, ExpiresAt: expiresAt}, nil
}
