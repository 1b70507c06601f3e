package models

import "time"

// PriceLevel is one rung of the order book.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthUpdate is a decoded order-book event.
type DepthUpdate struct {
	Symbol           string
	EventTime        time.Time
	TransactionTime  time.Time
	FirstUpdateID    int64
	LastUpdateID     int64
	PrevLastUpdateID int64 // futures streams only, zero otherwise
	Bids             []PriceLevel
	Asks             []PriceLevel
}

// Follows reports whether the update continues a sequence ending at prevLast.
func (u DepthUpdate) Follows(prevLast int64) bool {
	if prevLast == 0 {
		return true
	}
	if u.PrevLastUpdateID != 0 {
		return u.PrevLastUpdateID == prevLast
	}
	return u.FirstUpdateID <= prevLast+1
}

// TradePrint is a single executed trade.
type TradePrint struct {
	Symbol     string
	TradeID    int64
	Price      float64
	Quantity   float64
	BuyerMaker bool
	EventTime  time.Time
	TradeTime  time.Time
}

// Notional returns price * quantity.
func (t TradePrint) Notional() float64 {
	return t.Price * t.Quantity
}

// MarketSnapshot is an immutable view handed to analyzers. Slices are owned by
// the snapshot and must not be modified by readers.
type MarketSnapshot struct {
	Symbol        string
	EventTime     time.Time
	FirstUpdateID int64
	LastUpdateID  int64
	Gap           bool
	Bids          []PriceLevel
	Asks          []PriceLevel
	Trades        []TradePrint // oldest first
}

func (s MarketSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

func (s MarketSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// ReferencePrice is the last trade price, falling back to the book mid.
func (s MarketSnapshot) ReferencePrice() float64 {
	if n := len(s.Trades); n > 0 {
		return s.Trades[n-1].Price
	}
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	switch {
	case okBid && okAsk:
		return (bid.Price + ask.Price) / 2
	case okBid:
		return bid.Price
	case okAsk:
		return ask.Price
	}
	return 0
}
