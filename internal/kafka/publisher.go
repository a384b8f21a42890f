package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/outbox"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/repository"
)

var errShuttingDown = errors.New("publisher shutdown during batch processing")

const (
	defaultLease   = time.Minute
	releaseTimeout = 5 * time.Second
)

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	// Lease bounds how long a claimed task may stay PROCESSING before a
	// later poll reclaims it.
	Lease time.Duration
}

// Publisher relays outbox tasks to the producer. Failed sends are retried on
// later polls until MaxAttempts is reached.
type Publisher struct {
	db       db.DB
	repo     outbox.TaskRepository
	producer Producer
	config   PublisherConfig
	logger   *zap.Logger
	now      func() time.Time

	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewPublisher(database db.DB, repo outbox.TaskRepository, producer Producer, config PublisherConfig, logger *zap.Logger) *Publisher {
	if config.Lease <= 0 {
		config.Lease = defaultLease
	}
	return &Publisher{
		db:             database,
		repo:           repo,
		producer:       producer,
		config:         config,
		logger:         logger.With(zap.String("component", "outbox_publisher")),
		now:            time.Now,
		shutdownSignal: make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or Shutdown is called. The producer is
// closed on exit.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("starting outbox publisher",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("batch_size", p.config.BatchSize))
	defer p.closeProducer()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil && !errors.Is(err, errShuttingDown) && ctx.Err() == nil {
				p.logger.Error("failed to process outbox batch", zap.Error(err))
			}
			p.reportBacklog(ctx)
		case <-p.shutdownSignal:
			p.logger.Info("outbox publisher received shutdown signal, stopping")
			return nil
		case <-ctx.Done():
			p.logger.Info("outbox publisher context cancelled, stopping")
			return nil
		}
	}
}

func (p *Publisher) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.shutdownSignal)
	})
}

func (p *Publisher) closeProducer() {
	if err := p.producer.Close(); err != nil {
		p.logger.Error("failed to close kafka producer", zap.Error(err))
	}
}

func (p *Publisher) processBatch(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for fetching tasks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	staleBefore := p.now().Add(-p.config.Lease)
	tasks, err := p.repo.GetProcessableTasksTx(ctx, tx, p.config.BatchSize, p.config.MaxAttempts, staleBefore)
	if err != nil {
		return fmt.Errorf("failed to get processable tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tx.Commit(ctx)
	}

	p.logger.Debug("fetched outbox tasks", zap.Int("count", len(tasks)))

	for _, task := range tasks {
		err := p.repo.UpdateTaskStatusTx(ctx, tx, task.ID, repository.TaskStatusProcessing, task.Attempts, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to mark task %s as PROCESSING: %w", task.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction after marking tasks as PROCESSING: %w", err)
	}

	for i, task := range tasks {
		select {
		case <-p.shutdownSignal:
			p.logger.Warn("shutdown during batch, releasing unsent tasks", zap.Int("count", len(tasks)-i))
			p.releaseTasks(ctx, tasks[i:])
			return errShuttingDown
		case <-ctx.Done():
			p.releaseTasks(ctx, tasks[i:])
			return ctx.Err()
		default:
		}

		if err := p.processSingleTask(ctx, task); err != nil {
			p.logger.Error("failed to process outbox task", zap.String("task_id", task.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (p *Publisher) processSingleTask(ctx context.Context, task *repository.OutboxTask) error {
	l := p.logger.With(zap.String("task_id", task.ID.String()), zap.Int("attempt", task.Attempts+1))

	err := p.producer.SendMessage(ctx, task.Topic, []byte(task.ID.String()), task.Payload)
	// The outcome must be recorded even if ctx was cancelled during the send.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		attempts := task.Attempts + 1
		errMsg := err.Error()
		metrics.OutboxTasksTotal.WithLabelValues("failed").Inc()
		if attempts >= p.config.MaxAttempts {
			l.Error("outbox task reached max attempts, giving up", zap.Error(err))
		} else {
			l.Warn("failed to send outbox task, will retry", zap.Error(err))
		}

		if updateErr := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusFailed, attempts, &errMsg, nil); updateErr != nil {
			return fmt.Errorf("failed to update task status after send failure: %w (send error: %v)", updateErr, err)
		}
		return err
	}

	now := p.now().UTC()
	if err := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, repository.TaskStatusDone, task.Attempts+1, nil, &now); err != nil {
		return fmt.Errorf("failed to update task status after successful send: %w", err)
	}
	metrics.OutboxTasksTotal.WithLabelValues("done").Inc()
	l.Debug("outbox task delivered")
	return nil
}

// releaseTasks hands claimed but unsent tasks back to the queue with their
// attempt count unchanged. Tasks that cannot be released are reclaimed once
// their lease expires.
func (p *Publisher) releaseTasks(ctx context.Context, tasks []*repository.OutboxTask) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	for _, task := range tasks {
		status := repository.TaskStatusCreated
		if task.Attempts > 0 {
			status = repository.TaskStatusFailed
		}
		if err := p.repo.UpdateTaskStatus(ctx, p.db, task.ID, status, task.Attempts, task.LastError, nil); err != nil {
			p.logger.Error("failed to release outbox task", zap.String("task_id", task.ID.String()), zap.Error(err))
		}
	}
}

func (p *Publisher) reportBacklog(ctx context.Context) {
	counts, err := p.repo.CountByStatus(ctx, p.db)
	if err != nil {
		p.logger.Warn("failed to count outbox backlog", zap.Error(err))
		return
	}
	metrics.OutboxBacklog.Reset()
	for _, c := range counts {
		metrics.OutboxBacklog.WithLabelValues(string(c.Status)).Set(float64(c.Count))
	}
}
