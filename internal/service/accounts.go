package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/challenge75/internal/domain"
)

// MinPasswordLength is the shortest password accepted at registration
const MinPasswordLength = 6

// AuthResult is returned by registration and login
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates a participant account and signs a token for it
func (s *TrackerService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" || password == "" {
		return nil, domain.NewValidationError("name, email, and password are required")
	}
	if len(password) < MinPasswordLength {
		return nil, domain.NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	_, err := s.store.UserByEmail(ctx, email)
	if err == nil {
		return nil, domain.NewValidationError(domain.ErrEmailTaken.Error())
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// a concurrent registration won the unique index
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.NewValidationError(domain.ErrEmailTaken.Error())
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	token, err := s.creds.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and signs a fresh token
func (s *TrackerService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, domain.NewValidationError("email and password are required")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			s.logger.Warn("login limiter unavailable", "error", err)
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, s.loginFailed(ctx, email)
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if !s.creds.Verify(password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, email)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.logger.Warn("failed to reset login limiter", "error", err)
		}
	}

	token, err := s.creds.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// loginFailed logs the attempts left before the email is throttled
func (s *TrackerService) loginFailed(ctx context.Context, email string) error {
	if s.limiter == nil {
		return domain.ErrInvalidCredentials
	}
	left, err := s.limiter.Remaining(ctx, email)
	if err != nil {
		s.logger.Warn("login limiter unavailable", "error", err)
		return domain.ErrInvalidCredentials
	}
	s.logger.Info("login failed", "attempts_left", left)
	return domain.ErrInvalidCredentials
}

// Authenticate turns a bearer token into a session. The token must verify
// and reference a user that still exists; the role comes from the stored
// user, not the token.
func (s *TrackerService) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	claims, ok := s.creds.Authenticate(token)
	if !ok {
		return domain.Session{}, domain.ErrUnauthorized
	}
	user, err := s.creds.Resolve(ctx, s.store, claims)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// EnsureAdmin creates the bootstrap administrator if the email is unused
func (s *TrackerService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.store.UserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("checking admin: %w", err)
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, admin); err != nil && !errors.Is(err, domain.ErrEmailTaken) {
		return fmt.Errorf("creating admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", "email", email)
	return nil
}
