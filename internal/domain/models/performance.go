package models

import "time"

// PerformanceReport summarizes filled trades, each marked to market at the
// price of the next filled trade of the same symbol.
type PerformanceReport struct {
	Symbol      string    `json:"symbol"`
	Trades      int       `json:"trades"`
	Returns     int       `json:"returns"`
	WinRate     float64   `json:"win_rate"`
	SharpeRatio float64   `json:"sharpe_ratio"`
	MaxDrawdown float64   `json:"max_drawdown"` // positive fraction of the running peak
	TotalPnL    float64   `json:"total_pnl"`
	From        time.Time `json:"from,omitempty"`
	To          time.Time `json:"to,omitempty"`
}
