package analytics

import (
	"context"

	"OrdreBook/internal/domain/models"
)

// Iceberg flags a single price level holding at least volumeThreshold.
// A wall on the ask side reads as hidden supply, on the bid side as hidden
// demand. Walls on both sides cancel out.
type Iceberg struct {
	volumeThreshold float64
}

func NewIceberg(volumeThreshold float64) *Iceberg {
	return &Iceberg{volumeThreshold: volumeThreshold}
}

func (a *Iceberg) Name() string { return NameIceberg }

func (a *Iceberg) Analyze(ctx context.Context, s models.MarketSnapshot, _ []models.TradePrint) (models.Recommendation, error) {
	if len(s.Bids) == 0 && len(s.Asks) == 0 {
		return models.Recommendation{}, ErrEmptyBook
	}

	bidWall := largest(s.Bids)
	askWall := largest(s.Asks)
	bidHit := bidWall.Quantity >= a.volumeThreshold
	askHit := askWall.Quantity >= a.volumeThreshold

	action := models.ActionHold
	switch {
	case askHit && !bidHit:
		action = models.ActionSell
	case bidHit && !askHit:
		action = models.ActionBuy
	}

	return models.Recommendation{
		Source: NameIceberg,
		Action: action,
		Score:  max(bidWall.Quantity, askWall.Quantity),
		Meta: map[string]float64{
			"bid_wall_price": bidWall.Price,
			"bid_wall_qty":   bidWall.Quantity,
			"ask_wall_price": askWall.Price,
			"ask_wall_qty":   askWall.Quantity,
		},
	}, nil
}

func largest(levels []models.PriceLevel) models.PriceLevel {
	var best models.PriceLevel
	for _, lv := range levels {
		if lv.Quantity > best.Quantity {
			best = lv
		}
	}
	return best
}
