package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/internal/model"
	"github.com/jwalitptl/salon-api/internal/repository/memory"
	"github.com/jwalitptl/salon-api/internal/service/audit"
	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
	"github.com/jwalitptl/salon-api/pkg/metrics"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	return m.Called(ctx, topic, msg).Error(0)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}

func newProcessor(store *memory.Store, broker messaging.Broker, attempts int) *OutboxProcessor {
	return NewOutboxProcessor(store.OutboxRepository(), broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Hour,
		TopicPrefix:   "salon.",
	}, logger.NewNop(), metrics.NewNop())
}

func recordEvent(t *testing.T, store *memory.Store) (*audit.Service, uuid.UUID) {
	t.Helper()
	svc := audit.NewService(store.AppointmentEventRepository(), store.OutboxRepository(), logger.NewNop(), metrics.NewNop())
	appointmentID := uuid.New()
	svc.Record(context.Background(), audit.Entry{
		TenantID:      uuid.New(),
		AppointmentID: appointmentID,
		Type:          model.EventCreated,
		Actor:         model.Actor{Type: model.ActorStaff},
	})
	return svc, appointmentID
}

func TestProcessBatchPublishes(t *testing.T) {
	store := memory.New()
	_, appointmentID := recordEvent(t, store)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, "salon."+model.OutboxAppointmentEventRecorded, mock.MatchedBy(func(msg messaging.Message) bool {
		return msg.Type == model.OutboxAppointmentEventRecorded && msg.Key == appointmentID.String()
	})).Return(nil).Once()

	n, err := newProcessor(store, broker, 3).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	broker.AssertExpectations(t)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)

	n, err = newProcessor(store, broker, 3).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchSchedulesRetry(t *testing.T) {
	store := memory.New()
	recordEvent(t, store)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	p := newProcessor(store, broker, 3)
	before := time.Now()
	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusRetry, events[0].Status)
	assert.Equal(t, 1, events[0].RetryCount)
	require.NotNil(t, events[0].RetryAt)
	assert.True(t, events[0].RetryAt.After(before.Add(59*time.Minute)))
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, "broker down", *events[0].ErrorMessage)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "retry is not due yet")
	assert.Empty(t, store.DeadLetters())
}

func TestProcessBatchDeadLetters(t *testing.T) {
	store := memory.New()
	recordEvent(t, store)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, err := newProcessor(store, broker, 1).ProcessBatch(context.Background())
	require.NoError(t, err)

	dead := store.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, model.OutboxStatusFailed, dead[0].Status)
	assert.Equal(t, 0, store.Calls("outbox.MarkRetry"))
}

func TestProcessBatchReplaysAuditEvents(t *testing.T) {
	store := memory.New()
	store.Fail("events.Create", errors.New("audit down"))
	svc, appointmentID := recordEvent(t, store)
	require.Empty(t, store.Events())
	store.Fail("events.Create", nil)

	broker := &mockBroker{}
	p := newProcessor(store, broker, 3).Handle(model.OutboxAppointmentEventRetry, svc.HandleRetry)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	broker.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, appointmentID, events[0].AppointmentID)
	assert.Equal(t, model.EventCreated, events[0].EventType)
	assert.Equal(t, model.OutboxStatusProcessed, store.OutboxEvents()[0].Status)
}

func TestProcessBatchStorageError(t *testing.T) {
	store := memory.New()
	store.Fail("outbox.GetPendingEventsWithLock", errors.New("db down"))

	_, err := newProcessor(store, messaging.Discard{}, 3).ProcessBatch(context.Background())
	assert.Error(t, err)
}

func TestNewOutboxProcessorValidatesConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewOutboxProcessor(memory.New().OutboxRepository(), messaging.Discard{}, OutboxProcessorConfig{}, logger.NewNop(), metrics.NewNop())
	})
}
