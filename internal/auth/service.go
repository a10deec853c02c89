package auth

import (
	"context"
	"errors"
	"time"

	"github.com/noodle-soup/noodle/internal/shared"
)

// Verifier checks a password against a stored hash off the request path.
type Verifier interface {
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	verifier Verifier
}

// NewService constructs a new Service.
func NewService(repo Repository, verifier Verifier) *Service {
	return &Service{repo: repo, verifier: verifier}
}

// Authenticate validates email/password credentials. An unknown email and a
// wrong password both yield shared.ErrInvalidCredentials. A failed lookup is
// a *shared.StoreError and a failed verification dispatch a
// *shared.TaskDispatchError.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.repo.FindByEmail(ctx, shared.NormalizeEmail(email))
	if errors.Is(err, shared.ErrNotFound) {
		if _, err := s.verifier.Verify(ctx, password, ""); err != nil {
			return nil, err
		}
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.verifier.Verify(ctx, password, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PurgeExpiredSessions deletes session records past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, now)
}
