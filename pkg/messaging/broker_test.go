package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/jwalitptl/salon-api/pkg/circuitbreaker"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, topic string, msg Message) error {
	return m.Called(ctx, topic, msg).Error(0)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}

func TestWithBreakerOpensAfterFailures(t *testing.T) {
	inner := &mockBroker{}
	inner.On("Publish", mock.Anything, "topic", mock.Anything).Return(errors.New("down")).Twice()

	b := WithBreaker(inner, circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "test",
		MaxFailures: 2,
		Timeout:     time.Hour,
	}))

	ctx := context.Background()
	assert.Error(t, b.Publish(ctx, "topic", Message{ID: "1"}))
	assert.Error(t, b.Publish(ctx, "topic", Message{ID: "2"}))
	assert.ErrorIs(t, b.Publish(ctx, "topic", Message{ID: "3"}), circuitbreaker.ErrOpen)

	inner.AssertNumberOfCalls(t, "Publish", 2)
}

func TestWithBreakerDelegatesClose(t *testing.T) {
	inner := &mockBroker{}
	inner.On("Close").Return(nil).Once()

	b := WithBreaker(inner, circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "test"}))
	assert.NoError(t, b.Close())
	inner.AssertExpectations(t)
}

func TestDiscard(t *testing.T) {
	var b Broker = Discard{}
	assert.NoError(t, b.Publish(context.Background(), "topic", Message{}))
	assert.NoError(t, b.Close())
}
