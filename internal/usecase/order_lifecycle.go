package usecase

import (
	"context"
	"fmt"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
)

// SupervisionState is where an order is in its fill wait.
type SupervisionState string

const (
	StatePlaced          SupervisionState = "PLACED"
	StateCancelRequested SupervisionState = "CANCEL_REQUESTED"
	StateResolved        SupervisionState = "RESOLVED"
)

const (
	DefaultPollInterval = time.Second
	DefaultFillTimeout  = 30 * time.Second
	cancelTimeout       = 10 * time.Second
)

// OrderLifecycle waits for placed orders to leave the exchange's open-order
// list and cancels the ones that outstay the fill timeout.
type OrderLifecycle struct {
	exchange     domrepo.Exchange
	pollInterval time.Duration
	timeout      time.Duration
	log          *logger.Logger
	metrics      domrepo.Metrics
}

func NewOrderLifecycle(exchange domrepo.Exchange, pollInterval, timeout time.Duration, log *logger.Logger, metrics domrepo.Metrics) *OrderLifecycle {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultFillTimeout
	}
	return &OrderLifecycle{
		exchange:     exchange,
		pollInterval: pollInterval,
		timeout:      timeout,
		log:          log,
		metrics:      metrics,
	}
}

// WaitForFill polls open orders until orderID is no longer listed (true) or
// the fill timeout passes (false). Failed polls are logged and retried on the
// next tick.
func (m *OrderLifecycle) WaitForFill(ctx context.Context, symbol, orderID string) (bool, error) {
	deadline := time.NewTimer(m.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		open, err := m.isOpen(ctx, symbol, orderID)
		switch {
		case err != nil:
			m.metrics.RecordError("open_orders")
			m.log.Warn("open orders query failed", logger.String("order_id", orderID), logger.Error(err))
		case !open:
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// Supervise drives one order to a terminal status. A timed-out order gets
// exactly one cancel request: CANCELED when the exchange accepts it,
// TIMED_OUT when it does not and the order is still listed.
func (m *OrderLifecycle) Supervise(ctx context.Context, order models.Order) (models.Order, error) {
	log := m.log.With(logger.String("order_id", order.OrderID), logger.String("symbol", order.Symbol))
	state := StatePlaced
	order.Status = models.OrderOpen
	start := time.Now()

	filled, waitErr := m.WaitForFill(ctx, order.Symbol, order.OrderID)
	m.metrics.RecordLatency("fill_wait", time.Since(start).Seconds())
	if filled {
		state = StateResolved
		return m.resolve(log, order, models.OrderFilled, state), nil
	}

	// the cancel must go out even if the wait itself was interrupted
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	state = StateCancelRequested
	log.Warn("order not filled in time, cancelling", logger.Duration("timeout_ms", m.timeout), logger.String("state", string(state)))
	cancelErr := m.exchange.CancelOrder(cctx, order.Symbol, order.OrderID)
	if cancelErr == nil {
		state = StateResolved
		return m.resolve(log, order, models.OrderCanceled, state), waitErr
	}

	m.metrics.RecordError("cancel_order")
	log.Error("cancel request failed", logger.Error(cancelErr))

	// a failed cancel usually means the order filled in the meantime
	if open, err := m.isOpen(cctx, order.Symbol, order.OrderID); err == nil && !open {
		state = StateResolved
		return m.resolve(log, order, models.OrderFilled, state), waitErr
	}

	state = StateResolved
	order = m.resolve(log, order, models.OrderTimedOut, state)
	return order, fmt.Errorf("cancel order %s: %w", order.OrderID, cancelErr)
}

func (m *OrderLifecycle) isOpen(ctx context.Context, symbol, orderID string) (bool, error) {
	orders, err := m.exchange.OpenOrders(ctx, symbol)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *OrderLifecycle) resolve(log *logger.Logger, order models.Order, status models.OrderStatus, state SupervisionState) models.Order {
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	m.metrics.RecordOrder(string(status))
	log.Info("order resolved", logger.String("status", string(status)), logger.String("state", string(state)))
	return order
}
