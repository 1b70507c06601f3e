package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	pkghttp "OrdreBook/pkg/http"
	"OrdreBook/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// APIError is an error body returned by the exchange.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

// Client talks to the USD-M futures REST API with signed requests.
type Client struct {
	http       *pkghttp.Client
	secret     []byte
	recvWindow int
	log        *logger.Logger
	now        func() time.Time
}

var _ domrepo.Exchange = (*Client)(nil)

func NewClient(baseURL, apiKey, apiSecret string, recvWindow int, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		http: pkghttp.NewClient(
			pkghttp.WithBaseURL(baseURL),
			pkghttp.WithTimeout(timeout),
			pkghttp.WithHeader("X-MBX-APIKEY", apiKey),
		),
		secret:     []byte(apiSecret),
		recvWindow: recvWindow,
		log:        log.With(logger.String("component", "binance_rest")),
		now:        time.Now,
	}
}

type orderResponse struct {
	OrderID       json.Number `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Status        string      `json:"status"`
}

func (c *Client) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.PlaceOrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", decimal.NewFromFloat(req.Quantity).String())
	params.Set("newClientOrderId", "ob-"+uuid.NewString()[:18])
	if req.Type == models.OrderTypeLimit {
		params.Set("price", decimal.NewFromFloat(req.Price).String())
		params.Set("timeInForce", "GTC")
	}

	var resp orderResponse
	if err := c.signed(ctx, pkghttp.MethodPost, "/fapi/v1/order", params, &resp); err != nil {
		return models.PlaceOrderResponse{}, fmt.Errorf("place order: %w", err)
	}
	c.log.Info("order placed",
		logger.String("symbol", req.Symbol),
		logger.String("side", string(req.Side)),
		logger.String("order_id", resp.OrderID.String()),
		logger.String("status", resp.Status),
	)
	return models.PlaceOrderResponse{
		OrderID:       resp.OrderID.String(),
		ClientOrderID: resp.ClientOrderID,
		Status:        resp.Status,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	if err := c.signed(ctx, pkghttp.MethodDelete, "/fapi/v1/order", params, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

type openOrderResponse struct {
	Symbol  string      `json:"symbol"`
	OrderID json.Number `json:"orderId"`
	Side    string      `json:"side"`
	Price   string      `json:"price"`
	OrigQty string      `json:"origQty"`
}

func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]models.OpenOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var raw []openOrderResponse
	if err := c.signed(ctx, pkghttp.MethodGet, "/fapi/v1/openOrders", params, &raw); err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	out := make([]models.OpenOrder, 0, len(raw))
	for _, o := range raw {
		price, err := parseFloat(o.Price)
		if err != nil {
			return nil, fmt.Errorf("open order %s price: %w", o.OrderID, err)
		}
		qty, err := parseFloat(o.OrigQty)
		if err != nil {
			return nil, fmt.Errorf("open order %s qty: %w", o.OrderID, err)
		}
		out = append(out, models.OpenOrder{
			Symbol:   o.Symbol,
			OrderID:  o.OrderID.String(),
			Side:     models.OrderSide(o.Side),
			Price:    price,
			Quantity: qty,
		})
	}
	return out, nil
}

type balanceResponse struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

func (c *Client) AccountBalance(ctx context.Context) ([]models.AssetBalance, error) {
	var raw []balanceResponse
	if err := c.signed(ctx, pkghttp.MethodGet, "/fapi/v2/balance", url.Values{}, &raw); err != nil {
		return nil, fmt.Errorf("account balance: %w", err)
	}
	out := make([]models.AssetBalance, 0, len(raw))
	for _, b := range raw {
		bal, err := parseFloat(b.Balance)
		if err != nil {
			return nil, fmt.Errorf("balance %s: %w", b.Asset, err)
		}
		avail, err := parseFloat(b.AvailableBalance)
		if err != nil {
			return nil, fmt.Errorf("available balance %s: %w", b.Asset, err)
		}
		out = append(out, models.AssetBalance{Asset: b.Asset, Balance: bal, Available: avail})
	}
	return out, nil
}

// signed adds timestamp, recvWindow and the HMAC-SHA256 signature of the
// encoded parameters, then sends them as the query string.
func (c *Client) signed(ctx context.Context, method, path string, params url.Values, dest interface{}) error {
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	if c.recvWindow > 0 {
		params.Set("recvWindow", strconv.Itoa(c.recvWindow))
	}
	query := params.Encode()

	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:   method,
		Path:     path,
		RawQuery: query + "&signature=" + sign(c.secret, query),
	}, dest)

	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		apiErr := &APIError{Status: se.Status}
		if jerr := json.Unmarshal(se.Body, apiErr); jerr != nil || apiErr.Msg == "" {
			apiErr.Msg = string(se.Body)
		}
		return apiErr
	}
	return err
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
