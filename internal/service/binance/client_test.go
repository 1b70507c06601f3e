package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "key", "secret", 5000, time.Second, logger.NewNop())
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func verifySignature(t *testing.T, r *http.Request) url.Values {
	t.Helper()
	raw := r.URL.RawQuery
	idx := strings.LastIndex(raw, "&signature=")
	require.Positive(t, idx)
	assert.Equal(t, sign([]byte("secret"), raw[:idx]), raw[idx+len("&signature="):])
	assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", q.Get("timestamp"))
	assert.Equal(t, "5000", q.Get("recvWindow"))
	return q
}

func TestPlaceOrderSignsAndParses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fapi/v1/order", r.URL.Path)
		q := verifySignature(t, r)
		assert.Equal(t, "LTCUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.125", q.Get("quantity"))
		assert.Empty(t, q.Get("price"))
		_, _ = w.Write([]byte(`{"orderId":8389765,"clientOrderId":"abc","status":"NEW"}`))
	})

	resp, err := c.PlaceOrder(context.Background(), models.PlaceOrderRequest{
		Symbol:   "LTCUSDT",
		Side:     models.SideBuy,
		Type:     models.OrderTypeMarket,
		Quantity: 0.125,
	})
	require.NoError(t, err)
	assert.Equal(t, "8389765", resp.OrderID)
	assert.Equal(t, "NEW", resp.Status)
}

func TestOpenOrdersParsesDecimals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/openOrders", r.URL.Path)
		verifySignature(t, r)
		_, _ = w.Write([]byte(`[{"symbol":"LTCUSDT","orderId":42,"side":"SELL","price":"71.25","origQty":"1.500"}]`))
	})

	orders, err := c.OpenOrders(context.Background(), "LTCUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "42", orders[0].OrderID)
	assert.Equal(t, models.SideSell, orders[0].Side)
	assert.Equal(t, 71.25, orders[0].Price)
	assert.Equal(t, 1.5, orders[0].Quantity)
}

func TestAccountBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v2/balance", r.URL.Path)
		verifySignature(t, r)
		_, _ = w.Write([]byte(`[{"asset":"USDT","balance":"1000.50","availableBalance":"900"}]`))
	})

	bals, err := c.AccountBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, bals, 1)
	assert.Equal(t, "USDT", bals[0].Asset)
	assert.Equal(t, 1000.5, bals[0].Balance)
	assert.Equal(t, 900.0, bals[0].Available)
}

func TestCancelOrderMapsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		q := verifySignature(t, r)
		assert.Equal(t, "7", q.Get("orderId"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
	})

	err := c.CancelOrder(context.Background(), "LTCUSDT", "7")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -2011, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
