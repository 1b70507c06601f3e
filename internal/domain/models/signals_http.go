package models

// Requests for the execution HTTP endpoints.

type SubmitSignalRequest struct {
	Action   string  `json:"action" validate:"required,oneof=BUY SELL buy sell"`
	Symbol   string  `json:"symbol" default:"LTCUSDT" validate:"required"`
	Price    float64 `json:"price" validate:"gt=0"`
	StopLoss float64 `json:"stop_loss" validate:"gte=0"`
	Source   string  `json:"source" default:"api"`
}

type LatestDecisionRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"LTCUSDT" validate:"required"`
}

type PerformanceRequest struct {
	Symbol string `query:"symbol" json:"symbol" default:"LTCUSDT" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=0,lte=5000"`
}

// Responses.

type SubmitSignalResponse struct {
	ID     string `json:"id"`
	Queued int    `json:"queued"`
}

type RiskStateResponse struct {
	Baseline      float64 `json:"baseline"`
	BaselineSet   bool    `json:"baseline_set"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	EngineRunning bool    `json:"engine_running"`
	EngineBusy    bool    `json:"engine_busy"`
	Pending       int     `json:"pending"`
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Streams map[string]string `json:"streams"`
}
