package binance

import (
	"context"

	"OrdreBook/internal/domain/models"
	"OrdreBook/internal/domain/repository"
	"OrdreBook/internal/stream"
	"OrdreBook/pkg/logger"
)

// DepthSink receives decoded order-book events.
type DepthSink interface {
	OnDepth(u models.DepthUpdate)
}

// TradeSink receives decoded trade prints.
type TradeSink interface {
	OnTrade(t models.TradePrint)
}

// subscriber is the part both stream handlers share: it subscribes on every
// connect and logs acknowledgements.
type subscriber struct {
	name    string
	streams []string
	id      int
	log     *logger.Logger
	metrics repository.Metrics
}

func (s subscriber) OnConnect(ctx context.Context, sender stream.Sender) error {
	s.log.Info("subscribing", logger.Strings("streams", s.streams), logger.Int("id", s.id))
	return sender.Send(NewSubscribe(s.streams, s.id))
}

func (s subscriber) OnDisconnect(err error) {
	if err != nil {
		s.log.Warn("stream disconnected", logger.Error(err))
		return
	}
	s.log.Info("stream shut down")
}

func (s subscriber) ack(id int64) {
	s.metrics.RecordFrame(s.name, "ack")
	if int(id) != s.id {
		s.log.Warn("unexpected subscription ack", logger.Int64("id", id), logger.Int("want", s.id))
		return
	}
	s.log.Info("subscription confirmed", logger.Int64("id", id))
}

// DepthHandler decodes depthUpdate frames for the order-book stream.
type DepthHandler struct {
	subscriber
	sink DepthSink
}

func NewDepthHandler(streams []string, id int, sink DepthSink, log *logger.Logger, metrics repository.Metrics) *DepthHandler {
	return &DepthHandler{
		subscriber: subscriber{
			name:    "order_book",
			streams: streams,
			id:      id,
			log:     log.With(logger.String("stream", "order_book")),
			metrics: metrics,
		},
		sink: sink,
	}
}

func (h *DepthHandler) OnMessage(ctx context.Context, payload []byte) error {
	r, err := route(payload)
	if err != nil {
		return err
	}
	if r.ack != nil {
		h.ack(*r.ack)
		return nil
	}
	if r.event != EventDepthUpdate {
		h.metrics.RecordFrame(h.name, "ignored")
		h.log.Debug("ignoring frame", logger.String("event", r.event))
		return nil
	}

	u, err := decodeDepth(r.body)
	if err != nil {
		return err
	}
	h.metrics.RecordFrame(h.name, EventDepthUpdate)
	h.sink.OnDepth(u)
	return nil
}

// TradeHandler decodes trade frames for the trade stream.
type TradeHandler struct {
	subscriber
	sink TradeSink
}

func NewTradeHandler(streams []string, id int, sink TradeSink, log *logger.Logger, metrics repository.Metrics) *TradeHandler {
	return &TradeHandler{
		subscriber: subscriber{
			name:    "trade",
			streams: streams,
			id:      id,
			log:     log.With(logger.String("stream", "trade")),
			metrics: metrics,
		},
		sink: sink,
	}
}

func (h *TradeHandler) OnMessage(ctx context.Context, payload []byte) error {
	r, err := route(payload)
	if err != nil {
		return err
	}
	if r.ack != nil {
		h.ack(*r.ack)
		return nil
	}
	if r.event != EventTrade {
		h.metrics.RecordFrame(h.name, "ignored")
		h.log.Debug("ignoring frame", logger.String("event", r.event))
		return nil
	}

	t, err := decodeTrade(r.body)
	if err != nil {
		return err
	}
	h.metrics.RecordFrame(h.name, EventTrade)
	h.metrics.RecordLastPrice(t.Symbol, t.Price)
	h.sink.OnTrade(t)
	return nil
}
