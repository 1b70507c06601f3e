package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"OrdreBook/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	calls atomic.Int32
	err   error
}

func (h *countingHandler) Topic() string { return "signals" }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls.Add(1)
	return h.err
}

func newTestConsumer(t *testing.T, h MessageHandler) *Consumer {
	t.Helper()
	c, err := NewConsumer(logger.NewNop(),
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.RegisterHandler(h)
	return c
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
	d := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, d, min/2)
	assert.LessOrEqual(t, d, min)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestConsumerRetriesTransientFailures(t *testing.T) {
	h := &countingHandler{err: errors.New("broker busy")}
	c := newTestConsumer(t, h)

	c.handle(kafka.Message{Topic: "signals", Value: []byte(`{}`)})
	assert.Equal(t, int32(3), h.calls.Load())
}

func TestConsumerSkipsRetriesForPermanentFailures(t *testing.T) {
	h := &countingHandler{err: Permanent(errors.New("bad payload"))}
	c := newTestConsumer(t, h)

	c.handle(kafka.Message{Topic: "signals", Value: []byte(`{`)})
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestPermanentWrapping(t *testing.T) {
	cause := errors.New("bad payload")
	err := Permanent(cause)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(cause))
}
