package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository/memory"
	"github.com/jwalitptl/salon-api/pkg/logger"
)

func TestOutboxCleanup(t *testing.T) {
	store := memory.New()
	repo := store.OutboxRepository()
	ctx := context.Background()

	done := &model.OutboxEvent{EventType: model.OutboxAppointmentEventRecorded}
	pending := &model.OutboxEvent{EventType: model.OutboxAppointmentEventRecorded}
	require.NoError(t, repo.Create(ctx, done))
	require.NoError(t, repo.Create(ctx, pending))
	require.NoError(t, repo.MarkProcessed(ctx, done.ID))

	w := NewOutboxCleanup(repo, 24*time.Hour, time.Minute, logger.NewNop())

	deleted, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted, "recent rows are kept")

	w.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	deleted, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining := store.OutboxEvents()
	require.Len(t, remaining, 1)
	assert.Equal(t, pending.ID, remaining[0].ID)
}

func TestOutboxCleanupError(t *testing.T) {
	store := memory.New()
	store.Fail("outbox.DeleteProcessedBefore", errors.New("db down"))

	_, err := NewOutboxCleanup(store.OutboxRepository(), time.Hour, 0, logger.NewNop()).Cleanup(context.Background())
	assert.Error(t, err)
}
