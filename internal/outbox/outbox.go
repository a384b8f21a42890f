//go:generate mockgen -source ./outbox.go -destination=./mocks/outbox.go -package=mock_outbox
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

type TaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit, maxAttempts int, staleBefore time.Time) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, db db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	CountByStatus(ctx context.Context, db db.DB) ([]repository.StatusCount, error)
}

// ActivityOutbox stores activity events as outbox tasks so that a publisher
// can relay them to the broker.
type ActivityOutbox struct {
	db     db.DB
	repo   TaskRepository
	topic  string
	logger *zap.Logger
}

var _ storage.ActivitySink = (*ActivityOutbox)(nil)

func NewActivityOutbox(database db.DB, repo TaskRepository, topic string, logger *zap.Logger) *ActivityOutbox {
	return &ActivityOutbox{
		db:     database,
		repo:   repo,
		topic:  topic,
		logger: logger,
	}
}

func toPayload(e storage.ActivityEvent) repository.ActivityPayload {
	return repository.ActivityPayload{
		EventID:       e.ID,
		Type:          string(e.Type),
		Description:   e.Description,
		PerformerID:   e.PerformerID,
		PerformerName: e.PerformerName,
		EntityID:      e.EntityID,
		OccurredAt:    e.CreatedAt,
	}
}

func (o *ActivityOutbox) Publish(ctx context.Context, event storage.ActivityEvent) error {
	payload, err := json.Marshal(toPayload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal activity event %s: %w", event.ID, err)
	}

	tx, err := o.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	task := &repository.OutboxTask{
		Payload: payload,
		Topic:   o.topic,
	}
	if err := o.repo.CreateTx(ctx, tx, task); err != nil {
		return fmt.Errorf("failed to add outbox task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	o.logger.Debug("activity event queued",
		zap.String("event_id", event.ID),
		zap.String("task_id", task.ID.String()))
	return nil
}
