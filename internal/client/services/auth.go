package services

import (
	"context"
	"fmt"

	"github.com/dkarpov/papersync/internal/client/remote"
	"github.com/dkarpov/papersync/internal/logging"
)

// AuthService manages the session with the sync server. The returned user id
// is the owner every synced entity is scoped to.
type AuthService interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout()
}

type authService struct {
	client *remote.Client
	logger logging.Logger
}

// NewAuthService constructs an AuthService over the HTTP client.
func NewAuthService(client *remote.Client, logger logging.Logger) AuthService {
	return &authService{client: client, logger: logger}
}

func (s *authService) Register(ctx context.Context, email, password string) (string, error) {
	userID, err := s.client.Register(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("registration error: %w", err)
	}
	s.logger.Info(ctx, "registered", "userId", userID)
	return userID, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	userID, err := s.client.Login(ctx, email, password)
	if err != nil {
		return "", fmt.Errorf("login error: %w", err)
	}
	s.logger.Info(ctx, "signed in", "userId", userID)
	return userID, nil
}

func (s *authService) Logout() {
	s.client.Logout()
}
