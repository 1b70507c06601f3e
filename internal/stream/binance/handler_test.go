package binance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkRecorder struct {
	depth  []models.DepthUpdate
	trades []models.TradePrint
}

func (s *sinkRecorder) OnDepth(u models.DepthUpdate) { s.depth = append(s.depth, u) }
func (s *sinkRecorder) OnTrade(t models.TradePrint)  { s.trades = append(s.trades, t) }

type senderRecorder struct {
	sent []any
}

func (s *senderRecorder) Send(v any) error {
	s.sent = append(s.sent, v)
	return nil
}

func TestSubscribeFrame(t *testing.T) {
	b, err := json.Marshal(NewSubscribe([]string{"ltcusdt@depth5@100ms", "ltcusdt@depth20@100ms"}, 101))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"SUBSCRIBE","params":["ltcusdt@depth5@100ms","ltcusdt@depth20@100ms"],"id":101}`, string(b))
}

func TestDepthHandlerSubscribesOnConnect(t *testing.T) {
	h := NewDepthHandler([]string{"ltcusdt@depth5@100ms"}, 101, &sinkRecorder{}, logger.NewNop(), metrics.Nop{})
	s := &senderRecorder{}
	require.NoError(t, h.OnConnect(context.Background(), s))
	require.Len(t, s.sent, 1)
	assert.Equal(t, NewSubscribe([]string{"ltcusdt@depth5@100ms"}, 101), s.sent[0])
}

func TestDepthHandlerDecodesUpdate(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewDepthHandler(nil, 101, sink, logger.NewNop(), metrics.Nop{})

	payload := []byte(`{"e":"depthUpdate","E":1700000000123,"T":1700000000120,"s":"LTCUSDT","U":10,"u":12,"pu":9,"b":[["70.10","1.5"],["70.00","2"]],"a":[["70.20","3"]]}`)
	require.NoError(t, h.OnMessage(context.Background(), payload))

	require.Len(t, sink.depth, 1)
	u := sink.depth[0]
	assert.Equal(t, "LTCUSDT", u.Symbol)
	assert.Equal(t, int64(10), u.FirstUpdateID)
	assert.Equal(t, int64(12), u.LastUpdateID)
	assert.Equal(t, int64(9), u.PrevLastUpdateID)
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), u.EventTime)
	assert.Equal(t, []models.PriceLevel{{Price: 70.10, Quantity: 1.5}, {Price: 70, Quantity: 2}}, u.Bids)
	assert.Equal(t, []models.PriceLevel{{Price: 70.20, Quantity: 3}}, u.Asks)
}

func TestDepthHandlerAckAndIgnored(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewDepthHandler(nil, 101, sink, logger.NewNop(), metrics.Nop{})

	assert.NoError(t, h.OnMessage(context.Background(), []byte(`{"result":null,"id":101}`)))
	assert.NoError(t, h.OnMessage(context.Background(), []byte(`{"e":"kline","E":1}`)))
	assert.Empty(t, sink.depth)
}

func TestDepthHandlerRejectsGarbage(t *testing.T) {
	h := NewDepthHandler(nil, 101, &sinkRecorder{}, logger.NewNop(), metrics.Nop{})
	assert.Error(t, h.OnMessage(context.Background(), []byte(`{not json`)))
	assert.Error(t, h.OnMessage(context.Background(), []byte(`{"e":"depthUpdate","b":[["x","1"]]}`)))
	assert.Error(t, h.OnMessage(context.Background(), []byte(`{"error":{"code":2,"msg":"Invalid request"},"id":101}`)))
}

func TestTradeHandlerDecodesTrade(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewTradeHandler(nil, 201, sink, logger.NewNop(), metrics.Nop{})

	payload := []byte(`{"e":"trade","E":1700000000500,"T":1700000000499,"s":"LTCUSDT","t":42,"p":"70.15","q":"0.8","b":88,"a":77,"m":true,"M":false}`)
	require.NoError(t, h.OnMessage(context.Background(), payload))

	require.Len(t, sink.trades, 1)
	tr := sink.trades[0]
	assert.Equal(t, int64(42), tr.TradeID)
	assert.Equal(t, 70.15, tr.Price)
	assert.Equal(t, 0.8, tr.Quantity)
	assert.True(t, tr.BuyerMaker)
	assert.Equal(t, time.UnixMilli(1700000000499).UTC(), tr.TradeTime)
}

func TestTradeHandlerUnwrapsCombinedStream(t *testing.T) {
	sink := &sinkRecorder{}
	h := NewTradeHandler(nil, 201, sink, logger.NewNop(), metrics.Nop{})

	payload := []byte(`{"stream":"ltcusdt@trade","data":{"e":"trade","E":1,"T":1,"s":"LTCUSDT","t":1,"p":"1","q":"2","m":false}}`)
	require.NoError(t, h.OnMessage(context.Background(), payload))
	require.Len(t, sink.trades, 1)
	assert.Equal(t, 2.0, sink.trades[0].Notional())
}
