package repository

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// Exchange is the REST surface the execution engine trades against.
type Exchange interface {
	PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.PlaceOrderResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error)
	AccountBalance(ctx context.Context) ([]models.AssetBalance, error)
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Journal persists decisions and execution outcomes.
type Journal interface {
	RecordDecision(ctx context.Context, d models.Decision) error
	RecordExecution(ctx context.Context, r models.ExecutionRecord) error
}

// ExecutionHistory reads journaled executions back, newest first.
type ExecutionHistory interface {
	RecentExecutions(ctx context.Context, symbol string, limit int) ([]models.ExecutionRecord, error)
}

// BaselineStore keeps the drawdown reference across restarts.
type BaselineStore interface {
	LoadBaseline(ctx context.Context, quoteAsset string) (float64, bool, error)
	SaveBaseline(ctx context.Context, quoteAsset string, balance float64) error
}

// DecisionCache holds the most recent decision per symbol.
type DecisionCache interface {
	SetLatest(ctx context.Context, d models.Decision) error
	GetLatest(ctx context.Context, symbol string) (models.Decision, bool, error)
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(symbol string, price float64)
	RecordStreamState(stream, state string)
	RecordReconnect(stream string)
	RecordFrame(stream, kind string)
	RecordDecision(symbol, action string)
	RecordAnalyzerFailure(source string)
	RecordDropped(queue string)
	RecordQueueDepth(queue string, depth int)
	RecordExecution(outcome string)
	RecordOrder(status string)
	RecordDrawdown(ratio float64)
}
