package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"OrdreBook/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	EventDepthUpdate = "depthUpdate"
	EventTrade       = "trade"
)

var errEmptyFrame = errors.New("binance: empty frame")

// SubscribeRequest is the control frame sent after every connect.
type SubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

func NewSubscribe(streams []string, id int) SubscribeRequest {
	return SubscribeRequest{Method: "SUBSCRIBE", Params: streams, ID: id}
}

// frame is the first-pass view used to route a payload. Keys that differ
// only by case are all declared so encoding/json never folds one onto another.
type frame struct {
	Event     string          `json:"e"`
	EventTime int64           `json:"E"`
	ID        *int64          `json:"id"`
	Result    json.RawMessage `json:"result"`
	Error     *apiError       `json:"error"`
	Stream    string          `json:"stream"`
	Data      json.RawMessage `json:"data"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type depthPayload struct {
	Event            string      `json:"e"`
	EventTime        int64       `json:"E"`
	TransactionTime  int64       `json:"T"`
	Symbol           string      `json:"s"`
	FirstUpdateID    int64       `json:"U"`
	LastUpdateID     int64       `json:"u"`
	PrevLastUpdateID int64       `json:"pu"`
	Bids             [][2]string `json:"b"`
	Asks             [][2]string `json:"a"`
}

type tradePayload struct {
	Event         string `json:"e"`
	EventTime     int64  `json:"E"`
	TradeTime     int64  `json:"T"`
	Symbol        string `json:"s"`
	TradeID       int64  `json:"t"`
	Price         string `json:"p"`
	Quantity      string `json:"q"`
	BuyerOrderID  int64  `json:"b"`
	SellerOrderID int64  `json:"a"`
	BuyerMaker    bool   `json:"m"`
	Ignore        bool   `json:"M"`
}

// routed is a decoded frame ready for dispatch.
type routed struct {
	event string
	ack   *int64
	body  []byte
}

func route(payload []byte) (routed, error) {
	if len(payload) == 0 {
		return routed{}, errEmptyFrame
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return routed{}, fmt.Errorf("binance: decode frame: %w", err)
	}
	if f.Error != nil {
		return routed{}, fmt.Errorf("binance: request %v rejected: %d %s", derefID(f.ID), f.Error.Code, f.Error.Msg)
	}
	if len(f.Data) > 0 && f.Stream != "" {
		return route(f.Data)
	}
	if f.Event == "" && f.ID != nil {
		return routed{ack: f.ID}, nil
	}
	return routed{event: f.Event, body: payload}, nil
}

func derefID(id *int64) any {
	if id == nil {
		return "?"
	}
	return *id
}

func decodeDepth(body []byte) (models.DepthUpdate, error) {
	var p depthPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.DepthUpdate{}, fmt.Errorf("binance: decode depth: %w", err)
	}
	bids, err := parseLevels(p.Bids)
	if err != nil {
		return models.DepthUpdate{}, fmt.Errorf("binance: depth bids: %w", err)
	}
	asks, err := parseLevels(p.Asks)
	if err != nil {
		return models.DepthUpdate{}, fmt.Errorf("binance: depth asks: %w", err)
	}
	return models.DepthUpdate{
		Symbol:           p.Symbol,
		EventTime:        fromMillis(p.EventTime),
		TransactionTime:  fromMillis(p.TransactionTime),
		FirstUpdateID:    p.FirstUpdateID,
		LastUpdateID:     p.LastUpdateID,
		PrevLastUpdateID: p.PrevLastUpdateID,
		Bids:             bids,
		Asks:             asks,
	}, nil
}

func decodeTrade(body []byte) (models.TradePrint, error) {
	var p tradePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return models.TradePrint{}, fmt.Errorf("binance: decode trade: %w", err)
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return models.TradePrint{}, fmt.Errorf("binance: trade price %q: %w", p.Price, err)
	}
	qty, err := decimal.NewFromString(p.Quantity)
	if err != nil {
		return models.TradePrint{}, fmt.Errorf("binance: trade qty %q: %w", p.Quantity, err)
	}
	return models.TradePrint{
		Symbol:     p.Symbol,
		TradeID:    p.TradeID,
		Price:      price.InexactFloat64(),
		Quantity:   qty.InexactFloat64(),
		BuyerMaker: p.BuyerMaker,
		EventTime:  fromMillis(p.EventTime),
		TradeTime:  fromMillis(p.TradeTime),
	}, nil
}

func parseLevels(raw [][2]string) ([]models.PriceLevel, error) {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, lv := range raw {
		price, err := decimal.NewFromString(lv[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", lv[0], err)
		}
		qty, err := decimal.NewFromString(lv[1])
		if err != nil {
			return nil, fmt.Errorf("qty %q: %w", lv[1], err)
		}
		levels = append(levels, models.PriceLevel{
			Price:    price.InexactFloat64(),
			Quantity: qty.InexactFloat64(),
		})
	}
	return levels, nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
