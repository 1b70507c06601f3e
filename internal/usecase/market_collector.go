package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/internal/stream"
	"OrdreBook/pkg/logger"
)

// ErrStreamEnded is reported when a stream stops on its own.
var ErrStreamEnded = errors.New("market stream ended")

// StreamRunner is a long-lived market data stream.
type StreamRunner interface {
	Name() string
	State() stream.State
	Listen(ctx context.Context) error
	Close() error
}

// MarketCollector runs the market data streams and reports the first one that
// stops outside of a shutdown.
type MarketCollector struct {
	streams []StreamRunner
	log     *logger.Logger
	metrics domrepo.Metrics

	errs     chan error
	wg       sync.WaitGroup
	stopping atomic.Bool
}

func NewMarketCollector(log *logger.Logger, metrics domrepo.Metrics, streams ...StreamRunner) *MarketCollector {
	return &MarketCollector{
		streams: streams,
		log:     log.With(logger.String("component", "market_collector")),
		metrics: metrics,
		errs:    make(chan error, len(streams)),
	}
}

func (c *MarketCollector) Start(ctx context.Context) {
	for _, s := range c.streams {
		s := s
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			err := s.Listen(ctx)
			if c.stopping.Load() || ctx.Err() != nil {
				return
			}
			if err == nil {
				err = ErrStreamEnded
			}
			err = fmt.Errorf("stream %s: %w", s.Name(), err)
			c.metrics.RecordError("stream_fatal")
			c.log.Error("market stream stopped", logger.String("stream", s.Name()), logger.Error(err))
			c.errs <- err
		}()
	}
	c.log.Info("market collector started", logger.Int("streams", len(c.streams)))
}

// Errors delivers fatal stream errors. It is never closed.
func (c *MarketCollector) Errors() <-chan error { return c.errs }

// IsConnected reports whether every stream is connected.
func (c *MarketCollector) IsConnected() bool {
	for _, s := range c.streams {
		if s.State() != stream.StateConnected {
			return false
		}
	}
	return len(c.streams) > 0
}

// States returns each stream's connection state by name.
func (c *MarketCollector) States() map[string]string {
	out := make(map[string]string, len(c.streams))
	for _, s := range c.streams {
		out[s.Name()] = s.State().String()
	}
	return out
}

// Shutdown closes every stream and waits for their listeners to return.
func (c *MarketCollector) Shutdown(ctx context.Context) error {
	c.stopping.Store(true)
	var errs []error
	for _, s := range c.streams {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for streams: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}
