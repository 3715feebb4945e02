package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRecordLogin is the task type for last-login timestamp updates.
	TaskTypeRecordLogin = "auth:record_login"
	// TaskTypeSessionSweep is the task type for expired-session cleanup.
	TaskTypeSessionSweep = "sessions:purge_expired"
)

// RecordLoginPayload carries a deferred last-login update.
type RecordLoginPayload struct {
	UserID int64     `json:"user_id"`
	At     time.Time `json:"at"`
}

// NewRecordLoginTask constructs an Asynq task.
func NewRecordLoginTask(payload RecordLoginPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecordLogin, data), nil
}

// LoginRepository records authentication timestamps.
type LoginRepository interface {
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}

// NewRecordLoginHandler processes TaskTypeRecordLogin tasks. A failed update
// retries; a principal deleted between login and processing is not an error
// worth retrying, so the repository's zero-row update passes through clean.
func NewRecordLoginHandler(repo LoginRepository, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RecordLoginPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := repo.RecordLogin(ctx, payload.UserID, payload.At); err != nil {
			logger.Warn("record login", slog.Int64("user_id", payload.UserID), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// Sweeper deletes expired session records from a durable backend.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewSessionSweepTask constructs the periodic cleanup task.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionSweep, nil)
}

// NewSessionSweepHandler processes TaskTypeSessionSweep tasks.
func NewSessionSweepHandler(sweeper Sweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		purged, err := sweeper.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		if purged > 0 {
			logger.Info("purged expired sessions", slog.Int64("count", purged))
		}
		return nil
	}
}
