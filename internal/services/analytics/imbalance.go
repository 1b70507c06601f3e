package analytics

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// Imbalance compares resting bid and ask quantity.
type Imbalance struct {
	threshold float64
	levels    int // 0 = every level in the snapshot
}

func NewImbalance(threshold float64, levels int) *Imbalance {
	return &Imbalance{threshold: threshold, levels: levels}
}

func (a *Imbalance) Name() string { return NameImbalance }

func (a *Imbalance) Analyze(ctx context.Context, s models.MarketSnapshot, _ []models.TradePrint) (models.Recommendation, error) {
	bidQty := sumQty(s.Bids, a.levels)
	askQty := sumQty(s.Asks, a.levels)
	if bidQty == 0 || askQty == 0 {
		return models.Recommendation{}, ErrEmptyBook
	}

	ratio := bidQty / askQty
	action := models.ActionHold
	switch {
	case ratio > a.threshold:
		action = models.ActionBuy
	case ratio < 1/a.threshold:
		action = models.ActionSell
	}

	return models.Recommendation{
		Source: NameImbalance,
		Action: action,
		Score:  ratio,
		Meta:   map[string]float64{"bid_qty": bidQty, "ask_qty": askQty},
	}, nil
}

func sumQty(levels []models.PriceLevel, n int) float64 {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	var total float64
	for _, lv := range levels[:n] {
		total += lv.Quantity
	}
	return total
}
