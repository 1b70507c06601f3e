package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
environment: test
stream:
  order_book:
    url: wss://example.test/ws
    streams: ["ltcusdt@depth5@100ms"]
  trade:
    url: wss://example.test/ws
    streams: ["ltcusdt@trade"]
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, 101, c.Stream.OrderBook.SubscribeID)
	assert.Equal(t, 201, c.Stream.Trade.SubscribeID)
	assert.Equal(t, time.Second, c.Stream.OrderBook.BaseDelay)
	assert.Zero(t, c.Stream.OrderBook.MaxDelay)
	assert.Equal(t, 2, c.Signal.Quorum)
	assert.Equal(t, 0.2, c.Execution.MaxDrawdown)
	assert.Equal(t, 0.01, c.Execution.RiskPerTrade)
	assert.Equal(t, 30*time.Second, c.Execution.FillTimeout)
	assert.Equal(t, time.Second, c.Execution.PollInterval)
	assert.Equal(t, "USDT", c.Execution.QuoteAsset)
	assert.Equal(t, "paper", c.Exchange.Mode)
	assert.Equal(t, "block", c.Signal.Outbound.Overflow)
	assert.Equal(t, "block", c.Signal.Market.Overflow)
}

func TestShippedConfigIsValid(t *testing.T) {
	c, err := Load("../../config/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 1, depthStreams(c.Stream.OrderBook.Streams))
	assert.Equal(t, 1024, c.Signal.Market.Capacity)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing environment": `
stream:
  order_book: {url: x, streams: [a]}
  trade: {url: x, streams: [b]}
`,
		"missing trade stream": `
environment: test
stream:
  order_book: {url: x, streams: [a]}
`,
		"bad overflow": minimal + `
signal:
  outbound: {capacity: 4, overflow: spill}
`,
		"live without keys": minimal + `
exchange:
  mode: live
`,
		"two depth streams": `
environment: test
stream:
  order_book: {url: x, streams: [ltcusdt@depth5@100ms, ltcusdt@depth20@100ms]}
  trade: {url: x, streams: [ltcusdt@trade]}
`,
		"drawdown out of range": minimal + `
execution:
  max_drawdown: 1.5
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	env := map[string]string{
		"BINANCE_API_KEY":    "k",
		"BINANCE_API_SECRET": "s",
		"EXCHANGE_MODE":      "live",
		"SYMBOL":             "btcusdt",
		"KAFKA_BROKERS":      "a:9092,b:9092",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "live", c.Exchange.Mode)
	assert.Equal(t, "BTCUSDT", c.Execution.Symbol)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.NoError(t, c.Validate())
}
