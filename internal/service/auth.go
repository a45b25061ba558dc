package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libradesk/libradesk-server/internal/auth"
	"github.com/libradesk/libradesk-server/internal/domain"
	domainerrors "github.com/libradesk/libradesk-server/internal/errors"
	"github.com/libradesk/libradesk-server/internal/id"
	"github.com/libradesk/libradesk-server/internal/store"
)

// AuthService handles staff authentication: first-run setup, login,
// token refresh with rotation, and logout.
type AuthService struct {
	store  *store.Store
	tokens *auth.TokenService
	logger *slog.Logger

	now func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(st *store.Store, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  st,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// SetupRequest contains the initial root user creation data.
type SetupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
}

// LoginRequest contains staff credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`

	// Extracted from the request by the handler.
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// RefreshRequest contains the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`

	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// AuthResponse contains authentication tokens and the user record.
type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// IsSetupRequired reports whether the server still needs its first
// staff account.
func (s *AuthService) IsSetupRequired(ctx context.Context) (bool, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count == 0, nil
}

// Setup creates the first staff user (root). Usable exactly once,
// before any users exist.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	setupRequired, err := s.IsSetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !setupRequired {
		return nil, domainerrors.Conflict("server is already set up")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		IsRoot:       true,
		LastLoginAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	resp, err := s.createSession(ctx, user, "", "")
	if err != nil {
		return nil, err
	}

	s.logger.Info("server setup complete", "user_id", userID, "email", user.Email)
	return resp, nil
}

// Login authenticates a staff user and opens a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			// Don't leak whether the email exists.
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	now := s.now()
	user.LastLoginAt = now
	if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// Log but don't fail login.
		s.logger.Warn("failed to update last login time", "user_id", user.ID, "error", err)
	}

	resp, err := s.createSession(ctx, user, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return resp, nil
}

// Refresh exchanges a refresh token for new tokens. The old refresh
// token is invalidated (rotation): a replayed token fails.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.store.GetSessionByTokenHash(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	now := s.now()
	if session.IsExpired(now) {
		if err := s.store.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session", "session_id", session.ID, "error", err)
		}
		return nil, domainerrors.TokenExpired("refresh token expired")
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	newRefresh, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	expiresAt := now.Add(s.tokens.RefreshTokenDuration())
	if err := s.store.TouchSession(ctx, session.ID, auth.HashRefreshToken(newRefresh), expiresAt, now); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	user.PasswordHash = ""
	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    now.Add(s.tokens.AccessTokenDuration()),
	}, nil
}

// Logout revokes the session behind a refresh token. Unknown tokens
// are a no-op; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.store.GetSessionByTokenHash(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	return s.store.DeleteSession(ctx, session.ID)
}

// VerifyAccessToken validates a bearer token and loads its user.
// Used by the authentication middleware.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}

// PurgeExpiredSessions removes sessions past their expiry. Called
// periodically by the server's background sweeper.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}

// createSession issues tokens and records the session.
func (s *AuthService) createSession(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*AuthResponse, error) {
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	sessionID, err := id.Generate("session")
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := s.now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		ExpiresAt:        now.Add(s.tokens.RefreshTokenDuration()),
		CreatedAt:        now,
		LastUsedAt:       now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	respUser := *user
	respUser.PasswordHash = ""
	return &AuthResponse{
		User:         &respUser,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.tokens.AccessTokenDuration()),
	}, nil
}
