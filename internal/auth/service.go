package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/accounts"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository is the account collaborator surface the lifecycle controller
// needs.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*accounts.Principal, error)
	Create(ctx context.Context, name, email, passwordHash string) (*accounts.Principal, error)
}

// LoginRecorder hands last-login timestamps to the background queue.
type LoginRecorder interface {
	EnqueueRecordLogin(ctx context.Context, userID int64, at time.Time) error
}

// Service wraps authentication business rules.
type Service struct {
	logger   *slog.Logger
	repo     Repository
	recorder LoginRecorder
}

// NewService constructs a new Service. recorder may be nil, in which case
// last-login recording is skipped.
func NewService(logger *slog.Logger, repo Repository, recorder LoginRecorder) *Service {
	return &Service{logger: logger, repo: repo, recorder: recorder}
}

// Authenticate validates email/password credentials. A blocked account
// fails before the verifier comparison runs and maps to ErrAccountBlocked;
// an unknown email and a wrong password both map to ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*accounts.Principal, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status == accounts.StatusBlocked {
		return nil, shared.ErrAccountBlocked
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a new account. A duplicate email surfaces as
// shared.ErrEmailTaken. Registration never auto-logs-in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*accounts.Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Create(ctx, name, email, string(hash))
	if err != nil {
		return nil, err
	}
	p.PasswordHash = ""
	return p, nil
}

// RecordLogin enqueues the authentication timestamp update. The login has
// already succeeded by the time this runs; enqueue failures are logged and
// swallowed, never propagated.
func (s *Service) RecordLogin(ctx context.Context, userID int64) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.EnqueueRecordLogin(ctx, userID, time.Now().UTC()); err != nil {
		s.logger.Warn("enqueue record login", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
