package usecase

import (
	"math"

	"github.com/shopspring/decimal"
)

// PositionSizer risks a fixed fraction of the balance on the distance
// between entry and stop.
type PositionSizer struct {
	riskPerTrade float64
	stepSize     decimal.Decimal // zero = no rounding
}

func NewPositionSizer(riskPerTrade, stepSize float64) *PositionSizer {
	return &PositionSizer{
		riskPerTrade: riskPerTrade,
		stepSize:     decimal.NewFromFloat(stepSize),
	}
}

// Size returns balance*risk/|entry-stop|, rounded down to the step size.
// It returns 0 when the stop is unset, equals the entry, or the inputs are
// not usable.
func (s *PositionSizer) Size(balance, entry, stop float64) float64 {
	if balance <= 0 || entry <= 0 || stop <= 0 {
		return 0
	}
	distance := math.Abs(entry - stop)
	if distance == 0 {
		return 0
	}

	size := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(s.riskPerTrade)).
		Div(decimal.NewFromFloat(distance))

	if s.stepSize.IsPositive() {
		size = size.Div(s.stepSize).Floor().Mul(s.stepSize)
	}
	return size.InexactFloat64()
}
