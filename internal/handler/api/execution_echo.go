package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/internal/service/ratelimit"
	"OrdreBook/internal/usecase"
	xhttp "OrdreBook/pkg/http"
	xlogger "OrdreBook/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	submitBurst = 5
	submitRate  = 1
)

type SignalEngine interface {
	Submit(models.TradeSignal) error
	Running() bool
	Busy() bool
	Pending() int
}

type DecisionReader interface {
	Latest(ctx context.Context, symbol string) (models.Decision, bool)
}

type RiskReader interface {
	Baseline() (float64, bool)
	MaxDrawdown() float64
}

type StreamHealth interface {
	IsConnected() bool
	States() map[string]string
}

type PerformanceReader interface {
	Report(ctx context.Context, symbol string, limit int) (models.PerformanceReport, error)
}

// ExecutionEchoHandler exposes health, manual signal submission, the latest
// decision per symbol, the risk state and trading performance.
type ExecutionEchoHandler struct {
	logger      *xlogger.Logger
	engine      SignalEngine
	decisions   DecisionReader
	risk        RiskReader
	streams     StreamHealth
	performance PerformanceReader
	rl          *ratelimit.Limiter
}

func NewExecutionEchoHandler(
	logger *xlogger.Logger,
	engine SignalEngine,
	decisions DecisionReader,
	risk RiskReader,
	streams StreamHealth,
	performance PerformanceReader,
) *ExecutionEchoHandler {
	return &ExecutionEchoHandler{
		logger:      logger.With(xlogger.String("component", "http_api")),
		engine:      engine,
		decisions:   decisions,
		risk:        risk,
		streams:     streams,
		performance: performance,
		rl:          ratelimit.New(),
	}
}

func (h *ExecutionEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.POST("/signals", h.SubmitSignal)
	g.GET("/decisions/latest", h.LatestDecision)
	g.GET("/risk", h.RiskState)
	g.GET("/performance", h.Performance)
}

func (h *ExecutionEchoHandler) Health(c echo.Context) error {
	res := models.HealthResponse{Status: "ok", Streams: h.streams.States()}
	if !h.streams.IsConnected() || !h.engine.Running() {
		res.Status = "degraded"
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ExecutionEchoHandler) SubmitSignal(c echo.Context) error {
	if !h.rl.Allow("submit:"+c.RealIP(), submitBurst, submitRate) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.SubmitSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}

	sig := models.TradeSignal{
		ID:        uuid.NewString(),
		Action:    action,
		Symbol:    strings.ToUpper(req.Symbol),
		Price:     req.Price,
		StopLoss:  req.StopLoss,
		Source:    req.Source,
		CreatedAt: time.Now().UTC(),
	}
	if err := sig.Validate(); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%v", err))
	}

	if err := h.engine.Submit(sig); err != nil {
		if errors.Is(err, usecase.ErrEngineStopped) {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("execution engine is stopped").WithError(err))
		}
		h.logger.Error("submit signal failed", xlogger.String("signal_id", sig.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, models.SubmitSignalResponse{ID: sig.ID, Queued: h.engine.Pending()})
}

func (h *ExecutionEchoHandler) LatestDecision(c echo.Context) error {
	req := &models.LatestDecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, ok := h.decisions.Latest(c.Request().Context(), strings.ToUpper(req.Symbol))
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no decision for %s yet", strings.ToUpper(req.Symbol)))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, d)
}

func (h *ExecutionEchoHandler) RiskState(c echo.Context) error {
	baseline, set := h.risk.Baseline()
	return xhttp.SuccessResponse(c, models.RiskStateResponse{
		Baseline:      baseline,
		BaselineSet:   set,
		MaxDrawdown:   h.risk.MaxDrawdown(),
		EngineRunning: h.engine.Running(),
		EngineBusy:    h.engine.Busy(),
		Pending:       h.engine.Pending(),
	})
}

func (h *ExecutionEchoHandler) Performance(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep, err := h.performance.Report(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("execution history unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, rep)
}
