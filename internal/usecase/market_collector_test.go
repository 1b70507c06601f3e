package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"OrdreBook/internal/stream"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name    string
	result  error
	endSelf bool

	once   sync.Once
	closed chan struct{}
}

func newFakeRunner(name string) *fakeRunner {
	return &fakeRunner{name: name, closed: make(chan struct{})}
}

func (r *fakeRunner) Name() string { return r.name }

func (r *fakeRunner) State() stream.State {
	select {
	case <-r.closed:
		return stream.StateClosed
	default:
		return stream.StateConnected
	}
}

func (r *fakeRunner) Listen(ctx context.Context) error {
	if r.endSelf {
		return r.result
	}
	select {
	case <-r.closed:
	case <-ctx.Done():
	}
	return nil
}

func (r *fakeRunner) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestCollectorReportsFailedStream(t *testing.T) {
	book := newFakeRunner("order_book")
	trades := newFakeRunner("trade")
	trades.endSelf = true
	trades.result = stream.ErrRetriesExhausted

	c := NewMarketCollector(logger.NewNop(), metrics.Nop{}, book, trades)
	c.Start(context.Background())

	select {
	case err := <-c.Errors():
		assert.ErrorIs(t, err, stream.ErrRetriesExhausted)
		assert.Contains(t, err.Error(), "trade")
	case <-time.After(time.Second):
		t.Fatal("no fatal error reported")
	}

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, "CLOSED", c.States()["order_book"])
}

func TestCollectorShutdownIsQuiet(t *testing.T) {
	book := newFakeRunner("order_book")
	c := NewMarketCollector(logger.NewNop(), metrics.Nop{}, book)
	c.Start(context.Background())
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Shutdown(context.Background()))
	select {
	case err := <-c.Errors():
		t.Fatalf("unexpected error %v", err)
	default:
	}
	assert.False(t, c.IsConnected())
}

func TestCollectorTreatsServerCloseAsEnded(t *testing.T) {
	r := newFakeRunner("trade")
	r.endSelf = true
	c := NewMarketCollector(logger.NewNop(), metrics.Nop{}, r)
	c.Start(context.Background())

	select {
	case err := <-c.Errors():
		assert.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
}
