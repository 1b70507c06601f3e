package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultPeriodsPerYear = 252
	defaultReportWindow   = 500
)

// PerformanceReporter scores journaled executions: win rate, annualized
// Sharpe ratio and maximum drawdown of the compounded per-trade returns.
type PerformanceReporter struct {
	history        domrepo.ExecutionHistory
	periodsPerYear float64
	log            *logger.Logger
}

func NewPerformanceReporter(history domrepo.ExecutionHistory, periodsPerYear float64, log *logger.Logger) *PerformanceReporter {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &PerformanceReporter{
		history:        history,
		periodsPerYear: periodsPerYear,
		log:            log.With(logger.String("component", "performance")),
	}
}

// Report scores the latest limit executions of symbol.
func (p *PerformanceReporter) Report(ctx context.Context, symbol string, limit int) (models.PerformanceReport, error) {
	if limit <= 0 {
		limit = defaultReportWindow
	}
	symbol = strings.ToUpper(symbol)
	recs, err := p.history.RecentExecutions(ctx, symbol, limit)
	if err != nil {
		p.log.Warn("execution history unavailable", logger.String("symbol", symbol), logger.Error(err))
		return models.PerformanceReport{}, fmt.Errorf("execution history: %w", err)
	}
	r := ComputePerformance(recs, p.periodsPerYear)
	r.Symbol = symbol
	return r, nil
}

// ComputePerformance keeps the filled trades in time order and holds each
// one until the next, so trade i earns PnL(price_i, price_i+1) on its size,
// as a fraction of the balance it was sized from. Fewer than two returns
// leave the ratios at zero.
func ComputePerformance(recs []models.ExecutionRecord, periodsPerYear float64) models.PerformanceReport {
	filled := make([]models.ExecutionRecord, 0, len(recs))
	for _, r := range recs {
		if r.Outcome == models.OutcomeExecuted && r.Status == models.OrderFilled && r.Balance > 0 && r.Size > 0 {
			filled = append(filled, r)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool { return filled[i].StartedAt.Before(filled[j].StartedAt) })

	rep := models.PerformanceReport{Trades: len(filled)}
	if len(filled) == 0 {
		return rep
	}
	rep.From, rep.To = filled[0].StartedAt, filled[len(filled)-1].StartedAt
	if len(filled) < 2 {
		return rep
	}

	returns := make([]float64, 0, len(filled)-1)
	for i := 0; i+1 < len(filled); i++ {
		cur, next := filled[i], filled[i+1]
		pnl := PnL(cur.Price, next.Price, cur.Size, cur.Action == models.ActionBuy)
		rep.TotalPnL += pnl
		returns = append(returns, pnl/cur.Balance)
	}
	rep.Returns = len(returns)

	wins, nonFlat := 0, 0
	for _, r := range returns {
		if r != 0 {
			nonFlat++
		}
		if r > 0 {
			wins++
		}
	}
	if nonFlat > 0 {
		rep.WinRate = float64(wins) / float64(nonFlat)
	}

	if len(returns) >= 2 {
		if sd := stat.StdDev(returns, nil); sd > 0 {
			rep.SharpeRatio = stat.Mean(returns, nil) / sd * math.Sqrt(periodsPerYear)
		}
	}
	rep.MaxDrawdown = maxDrawdown(returns)
	return rep
}

func maxDrawdown(returns []float64) float64 {
	growth := make([]float64, len(returns))
	for i, r := range returns {
		growth[i] = 1 + r
	}
	equity := floats.CumProd(make([]float64, len(growth)), growth)

	peak, worst := 1.0, 0.0
	for _, v := range equity {
		peak = math.Max(peak, v)
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}
