package models

import (
	"fmt"
	"strings"
	"time"
)

// Action is a trading recommendation.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction accepts BUY, SELL or HOLD in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionBuy, ActionSell, ActionHold:
		return a, nil
	default:
		return ActionHold, fmt.Errorf("unknown action %q", s)
	}
}

// Actionable reports whether the action leads to an order.
func (a Action) Actionable() bool {
	return a == ActionBuy || a == ActionSell
}

// Side maps an actionable action onto an order side.
func (a Action) Side() (OrderSide, bool) {
	switch a {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	default:
		return "", false
	}
}

// Recommendation is one analyzer's opinion on a snapshot.
type Recommendation struct {
	Source string             `json:"source"`
	Action Action             `json:"action"`
	Score  float64            `json:"score"`
	Meta   map[string]float64 `json:"meta,omitempty"`
	Err    string             `json:"error,omitempty"`
}

// Hold builds the neutral recommendation used when an analyzer fails.
func Hold(source string, err error) Recommendation {
	r := Recommendation{Source: source, Action: ActionHold}
	if err != nil {
		r.Err = err.Error()
	}
	return r
}

// Decision is the quorum outcome for one snapshot. Immutable once created.
type Decision struct {
	ID              string           `json:"id"`
	Symbol          string           `json:"symbol"`
	Recommendations []Recommendation `json:"recommendations"`
	FinalAction     Action           `json:"final_action"`
	BuyVotes        int              `json:"buy_votes"`
	SellVotes       int              `json:"sell_votes"`
	ReferencePrice  float64          `json:"reference_price"`
	EventTime       time.Time        `json:"event_time"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TradeSignal is a unit of work for the execution engine.
type TradeSignal struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stop_loss"`
	Source     string    `json:"source"`
	DecisionID string    `json:"decision_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the fields the engine relies on.
func (s TradeSignal) Validate() error {
	if !s.Action.Actionable() {
		return fmt.Errorf("signal action must be BUY or SELL, got %q", s.Action)
	}
	if s.Symbol == "" {
		return fmt.Errorf("signal symbol is required")
	}
	if s.Price <= 0 {
		return fmt.Errorf("signal price must be positive")
	}
	if s.StopLoss < 0 {
		return fmt.Errorf("signal stop loss cannot be negative")
	}
	return nil
}
