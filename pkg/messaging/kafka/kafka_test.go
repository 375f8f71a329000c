package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/salon-api/pkg/logger"
	"github.com/jwalitptl/salon-api/pkg/messaging"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	w := &recordingWriter{}
	b := &KafkaBroker{writer: w, logger: logger.NewNop()}
	at := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)

	err := b.Publish(context.Background(), "salon.appointment.event.recorded", messaging.Message{
		ID:         "evt-1",
		Type:       "appointment.event.recorded",
		Key:        "appt-1",
		Payload:    json.RawMessage(`{"event_type":"created"}`),
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "salon.appointment.event.recorded", msg.Topic)
	assert.Equal(t, []byte("appt-1"), msg.Key)
	assert.JSONEq(t, `{"event_type":"created"}`, string(msg.Value))
	assert.Equal(t, at, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_id", Value: []byte("evt-1")})
}

func TestPublishKeyDefaultsToID(t *testing.T) {
	w := &recordingWriter{}
	b := &KafkaBroker{writer: w, logger: logger.NewNop()}

	require.NoError(t, b.Publish(context.Background(), "t", messaging.Message{ID: "evt-2"}))
	assert.Equal(t, []byte("evt-2"), w.msgs[0].Key)
}

func TestPublishError(t *testing.T) {
	cause := errors.New("leader not available")
	b := &KafkaBroker{writer: &recordingWriter{err: cause}, logger: logger.NewNop()}

	err := b.Publish(context.Background(), "t", messaging.Message{ID: "x"})
	assert.ErrorIs(t, err, cause)
}

func TestNewKafkaBrokerRequiresBrokers(t *testing.T) {
	_, err := NewKafkaBroker(Config{}, logger.NewNop())
	assert.Error(t, err)
}
