package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StreamConfig describes one persistent websocket subscription.
type StreamConfig struct {
	URL          string        `yaml:"url"`
	Streams      []string      `yaml:"streams"`
	SubscribeID  int           `yaml:"subscribe_id"`
	MaxRetries   int           `yaml:"max_retries"` // <= 0 retries forever
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"` // 0 leaves the backoff uncapped
	PingInterval time.Duration `yaml:"ping_interval"`
}

// MailboxConfig bounds a queue between two goroutines.
type MailboxConfig struct {
	Capacity int    `yaml:"capacity"` // 0 = unbounded
	Overflow string `yaml:"overflow"` // block, drop_oldest, drop_newest
}

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level          string        `yaml:"level"`
		Format         string        `yaml:"format"`
		Output         string        `yaml:"output"`
		CollectErrors  bool          `yaml:"collect_errors"`
		FlushInterval  time.Duration `yaml:"flush_interval"`
		CountThreshold int           `yaml:"count_threshold"`
		Topic          string        `yaml:"topic"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Stream struct {
		OrderBook StreamConfig `yaml:"order_book"`
		Trade     StreamConfig `yaml:"trade"`
	} `yaml:"stream"`
	Signal struct {
		Quorum          int           `yaml:"quorum"`
		Analyzers       []string      `yaml:"analyzers"`
		AnalyzerTimeout time.Duration `yaml:"analyzer_timeout"`
		RecentTrades    int           `yaml:"recent_trades"`
		MaxRPS          int           `yaml:"max_rps"`
		Market          MailboxConfig `yaml:"market"` // stream events into the assembler
		Inbound         MailboxConfig `yaml:"inbound"`
		Outbound        MailboxConfig `yaml:"outbound"`
	} `yaml:"signal"`
	Execution struct {
		Symbol         string        `yaml:"symbol"`
		QuoteAsset     string        `yaml:"quote_asset"`
		RiskPerTrade   float64       `yaml:"risk_per_trade"`
		MaxDrawdown    float64       `yaml:"max_drawdown"`
		InitialBalance float64       `yaml:"initial_balance"` // 0 = take the first observed balance
		StopLossPct    float64       `yaml:"stop_loss_pct"`
		StepSize       float64       `yaml:"step_size"`
		FillTimeout    time.Duration `yaml:"fill_timeout"`
		PollInterval   time.Duration `yaml:"poll_interval"`
	} `yaml:"execution"`
	Exchange struct {
		Mode         string        `yaml:"mode"` // live or paper
		BaseURL      string        `yaml:"base_url"`
		APIKey       string        `yaml:"api_key"`
		APISecret    string        `yaml:"api_secret"`
		RecvWindow   int           `yaml:"recv_window"`
		Timeout      time.Duration `yaml:"timeout"`
		PaperBalance float64       `yaml:"paper_balance"`
	} `yaml:"exchange"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		DecisionsTopic string   `yaml:"decisions_topic"`
		SignalsTopic   string   `yaml:"signals_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		Addr      string        `yaml:"addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		KeyPrefix string        `yaml:"key_prefix"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("BINANCE_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := getenv("BINANCE_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := getenv("EXCHANGE_MODE"); v != "" {
		c.Exchange.Mode = v
	}
	if v := getenv("SYMBOL"); v != "" {
		c.Execution.Symbol = strings.ToUpper(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	streamDefaults(&c.Stream.OrderBook, 101)
	streamDefaults(&c.Stream.Trade, 201)

	if c.Signal.Quorum <= 0 {
		c.Signal.Quorum = 2
	}
	if c.Signal.AnalyzerTimeout <= 0 {
		c.Signal.AnalyzerTimeout = 500 * time.Millisecond
	}
	if c.Signal.RecentTrades <= 0 {
		c.Signal.RecentTrades = 200
	}
	if c.Signal.Market.Overflow == "" {
		c.Signal.Market.Overflow = "block"
	}
	if c.Signal.Inbound.Overflow == "" {
		c.Signal.Inbound.Overflow = "drop_oldest"
	}
	if c.Signal.Outbound.Overflow == "" {
		c.Signal.Outbound.Overflow = "block"
	}

	if c.Execution.Symbol == "" {
		c.Execution.Symbol = "LTCUSDT"
	}
	if c.Execution.QuoteAsset == "" {
		c.Execution.QuoteAsset = "USDT"
	}
	if c.Execution.RiskPerTrade == 0 {
		c.Execution.RiskPerTrade = 0.01
	}
	if c.Execution.MaxDrawdown == 0 {
		c.Execution.MaxDrawdown = 0.2
	}
	if c.Execution.StopLossPct == 0 {
		c.Execution.StopLossPct = 0.01
	}
	if c.Execution.FillTimeout <= 0 {
		c.Execution.FillTimeout = 30 * time.Second
	}
	if c.Execution.PollInterval <= 0 {
		c.Execution.PollInterval = time.Second
	}

	if c.Exchange.Mode == "" {
		c.Exchange.Mode = "paper"
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://fapi.binance.com"
	}
	if c.Exchange.RecvWindow == 0 {
		c.Exchange.RecvWindow = 5000
	}
	if c.Exchange.Timeout <= 0 {
		c.Exchange.Timeout = 10 * time.Second
	}
	if c.Exchange.PaperBalance == 0 {
		c.Exchange.PaperBalance = 1000
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "ordrebook"
	}
}

func streamDefaults(s *StreamConfig, id int) {
	if s.SubscribeID == 0 {
		s.SubscribeID = id
	}
	if s.MaxRetries == 0 {
		s.MaxRetries = 5
	}
	if s.BaseDelay <= 0 {
		s.BaseDelay = time.Second
	}
	if s.PingInterval <= 0 {
		s.PingInterval = 3 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Stream.OrderBook.URL == "" || len(c.Stream.OrderBook.Streams) == 0 {
		return fmt.Errorf("stream.order_book url and streams are required")
	}
	if c.Stream.Trade.URL == "" || len(c.Stream.Trade.Streams) == 0 {
		return fmt.Errorf("stream.trade url and streams are required")
	}
	// every depth stream of a tick carries the same update ids, so a second
	// one would only ever be dropped as stale
	if n := depthStreams(c.Stream.OrderBook.Streams); n > 1 {
		return fmt.Errorf("stream.order_book must subscribe to one depth stream, got %d", n)
	}
	for _, mb := range []MailboxConfig{c.Signal.Market, c.Signal.Inbound, c.Signal.Outbound} {
		switch mb.Overflow {
		case "block", "drop_oldest", "drop_newest":
		default:
			return fmt.Errorf("signal overflow must be block, drop_oldest or drop_newest, got '%s'", mb.Overflow)
		}
		if mb.Capacity < 0 {
			return fmt.Errorf("signal mailbox capacity cannot be negative")
		}
	}
	if c.Execution.RiskPerTrade <= 0 || c.Execution.RiskPerTrade >= 1 {
		return fmt.Errorf("execution.risk_per_trade must be in (0, 1), got %v", c.Execution.RiskPerTrade)
	}
	if c.Execution.MaxDrawdown <= 0 || c.Execution.MaxDrawdown >= 1 {
		return fmt.Errorf("execution.max_drawdown must be in (0, 1), got %v", c.Execution.MaxDrawdown)
	}
	if c.Execution.StopLossPct <= 0 || c.Execution.StopLossPct >= 1 {
		return fmt.Errorf("execution.stop_loss_pct must be in (0, 1), got %v", c.Execution.StopLossPct)
	}
	switch c.Exchange.Mode {
	case "paper":
	case "live":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required in live mode")
		}
	default:
		return fmt.Errorf("exchange.mode must be 'live' or 'paper', got '%s'", c.Exchange.Mode)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}

func depthStreams(streams []string) int {
	n := 0
	for _, s := range streams {
		if strings.Contains(strings.ToLower(s), "@depth") {
			n++
		}
	}
	return n
}
