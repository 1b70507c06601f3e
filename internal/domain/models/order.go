package models

import "time"

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the engine's view of a placed order.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "OPEN"
	OrderFilled   OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
	OrderTimedOut OrderStatus = "TIMED_OUT"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCanceled || s == OrderTimedOut
}

type PlaceOrderRequest struct {
	Symbol   string
	Side     OrderSide
	Type     OrderType
	Quantity float64
	Price    float64 // limit price; reference only for market orders
}

// PlaceOrderResponse carries the exchange acknowledgement. An empty OrderID
// means the exchange did not accept the order.
type PlaceOrderResponse struct {
	OrderID       string
	ClientOrderID string
	Status        string
}

type OpenOrder struct {
	Symbol   string
	OrderID  string
	Side     OrderSide
	Price    float64
	Quantity float64
}

type AssetBalance struct {
	Asset     string
	Balance   float64
	Available float64
}

// Order tracks one placed order through supervision.
type Order struct {
	Symbol    string      `json:"symbol"`
	OrderID   string      `json:"order_id"`
	Side      OrderSide   `json:"side"`
	Quantity  float64     `json:"quantity"`
	Status    OrderStatus `json:"status"`
	PlacedAt  time.Time   `json:"placed_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ExecutionOutcome labels how a signal left the engine.
type ExecutionOutcome string

const (
	OutcomeExecuted      ExecutionOutcome = "executed"
	OutcomeDrawdown      ExecutionOutcome = "drawdown_breached"
	OutcomeZeroSize      ExecutionOutcome = "zero_size"
	OutcomeNoOrderID     ExecutionOutcome = "no_order_id"
	OutcomeBalanceFailed ExecutionOutcome = "balance_unavailable"
	OutcomePlaceFailed   ExecutionOutcome = "place_failed"
	OutcomeInvalidSignal ExecutionOutcome = "invalid_signal"
	OutcomeDiscarded     ExecutionOutcome = "discarded_on_stop"
)

// ExecutionRecord is the journal entry written for every processed signal.
type ExecutionRecord struct {
	SignalID   string           `json:"signal_id"`
	DecisionID string           `json:"decision_id,omitempty"`
	Symbol     string           `json:"symbol"`
	Action     Action           `json:"action"`
	Price      float64          `json:"price"`
	StopLoss   float64          `json:"stop_loss"`
	Balance    float64          `json:"balance"`
	Size       float64          `json:"size"`
	OrderID    string           `json:"order_id,omitempty"`
	Status     OrderStatus      `json:"status,omitempty"`
	Outcome    ExecutionOutcome `json:"outcome"`
	Reason     string           `json:"reason,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Notification is an outbound message for operators.
type Notification struct {
	Kind      string    `json:"kind"` // decision, execution
	Symbol    string    `json:"symbol"`
	Text      string    `json:"text"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
