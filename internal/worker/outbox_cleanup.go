package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/salon-api/internal/repository"
	"github.com/jwalitptl/salon-api/pkg/logger"
)

// OutboxCleanup deletes delivered outbox rows once they are older than the retention.
type OutboxCleanup struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewOutboxCleanup(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger) *OutboxCleanup {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OutboxCleanup{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

func (w *OutboxCleanup) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Outbox cleanup failed")
			}
		}
	}
}

func (w *OutboxCleanup) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	if rows > 0 {
		w.logger.Info("Cleaned up outbox events", "deleted", rows, "cutoff", cutoff.Format(time.RFC3339))
	}
	return rows, nil
}
