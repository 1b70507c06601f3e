package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"OrdreBook/internal/domain/models"
	"OrdreBook/internal/domain/repository"
	domsvc "OrdreBook/internal/domain/service"
	"OrdreBook/internal/handler/api"
	mid "OrdreBook/internal/middleware"
	internalrepo "OrdreBook/internal/repository"
	"OrdreBook/internal/service/binance"
	"OrdreBook/internal/service/paper"
	"OrdreBook/internal/services/analytics"
	"OrdreBook/internal/stream"
	bstream "OrdreBook/internal/stream/binance"
	"OrdreBook/internal/usecase"
	"OrdreBook/pkg/cache"
	pkgch "OrdreBook/pkg/clickhouse"
	"OrdreBook/pkg/config"
	xhttp "OrdreBook/pkg/http"
	pkgkafka "OrdreBook/pkg/kafka"
	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"
	"OrdreBook/pkg/queue"
	"OrdreBook/pkg/server"

	"github.com/segmentio/kafka-go"
)

const initTimeout = 10 * time.Second

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the app logger. With Kafka on and error collection
// enabled, repeated error logs are aggregated and published to Log.Topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.CollectErrors && producer != nil && cfg.Log.Topic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.FlushInterval,
			CountThreshold: cfg.Log.CountThreshold,
			Topic:          cfg.Log.Topic,
			Service:        "ordrebook-" + cfg.Environment,
			Publisher:      internalrepo.NewKafkaNotifier(producer, cfg.Log.Topic),
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.JournalSchema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideJournal journals to ClickHouse when it is configured and keeps recent
// executions in memory otherwise.
func ProvideJournal(ch *pkgch.Client, l *logger.Logger) repository.Journal {
	if ch == nil {
		return internalrepo.NewMemoryJournal(0)
	}
	return internalrepo.NewClickHouseJournal(ch, l)
}

// ProvideExecutionHistory reads executions back from the journal.
func ProvideExecutionHistory(j repository.Journal) repository.ExecutionHistory {
	if h, ok := j.(repository.ExecutionHistory); ok {
		return h
	}
	return internalrepo.NewMemoryJournal(0)
}

func ProvidePerformanceReporter(h repository.ExecutionHistory, l *logger.Logger) *usecase.PerformanceReporter {
	return usecase.NewPerformanceReporter(h, usecase.DefaultPeriodsPerYear, l)
}

// ProvideNotifier publishes to Kafka when it is configured and logs otherwise.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer, l *logger.Logger) repository.Notifier {
	if producer == nil || cfg.Kafka.DecisionsTopic == "" {
		return internalrepo.NewLogNotifier(l)
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideCache connects to Redis, or falls back to an in-process cache.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	c, err := cache.NewRedisCache(ctx,
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideStateStore(c cache.Service, cfg *config.Config) *internalrepo.StateStore {
	return internalrepo.NewStateStore(c, cfg.Redis.TTL)
}

// ProvideExchange selects the live futures client or the paper exchange.
func ProvideExchange(cfg *config.Config, l *logger.Logger) repository.Exchange {
	if cfg.Exchange.Mode == "live" {
		return binance.NewClient(
			cfg.Exchange.BaseURL,
			cfg.Exchange.APIKey,
			cfg.Exchange.APISecret,
			cfg.Exchange.RecvWindow,
			cfg.Exchange.Timeout,
			l,
		)
	}
	return paper.New(cfg.Execution.QuoteAsset, cfg.Exchange.PaperBalance, l)
}

func ProvideRiskGate(cfg *config.Config, l *logger.Logger, m repository.Metrics) *usecase.RiskGate {
	g := usecase.NewRiskGate(cfg.Execution.MaxDrawdown, l.With(logger.String("component", "risk_gate")), m)
	if cfg.Execution.InitialBalance > 0 {
		g.UpdateInitialBalance(cfg.Execution.InitialBalance)
	}
	return g
}

func ProvidePositionSizer(cfg *config.Config) *usecase.PositionSizer {
	return usecase.NewPositionSizer(cfg.Execution.RiskPerTrade, cfg.Execution.StepSize)
}

func ProvideOrderLifecycle(cfg *config.Config, ex repository.Exchange, l *logger.Logger, m repository.Metrics) *usecase.OrderLifecycle {
	return usecase.NewOrderLifecycle(ex, cfg.Execution.PollInterval, cfg.Execution.FillTimeout, l, m)
}

func ProvideExecutionEngine(
	cfg *config.Config,
	ex repository.Exchange,
	risk *usecase.RiskGate,
	sizer *usecase.PositionSizer,
	lifecycle *usecase.OrderLifecycle,
	journal repository.Journal,
	notifier repository.Notifier,
	state *internalrepo.StateStore,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.ExecutionEngine {
	return usecase.NewExecutionEngine(ex, risk, sizer, lifecycle, l, m,
		usecase.WithJournal(journal),
		usecase.WithNotifier(notifier),
		usecase.WithBaselineStore(state),
		usecase.WithQuoteAsset(cfg.Execution.QuoteAsset),
	)
}

func ProvideAnalyzers(cfg *config.Config) ([]domsvc.Analyzer, error) {
	a, err := analytics.Build(cfg.Signal.Analyzers)
	if err != nil {
		return nil, fmt.Errorf("analyzers: %w", err)
	}
	return a, nil
}

func ProvideSignalAggregator(cfg *config.Config, analyzers []domsvc.Analyzer, l *logger.Logger, m repository.Metrics) *usecase.SignalAggregator {
	return usecase.NewSignalAggregator(analyzers, l.With(logger.String("component", "signal_aggregator")), m,
		usecase.WithQuorum(cfg.Signal.Quorum),
		usecase.WithAnalyzerTimeout(cfg.Signal.AnalyzerTimeout),
	)
}

func ProvideSignalPipeline(cfg *config.Config, agg *usecase.SignalAggregator, l *logger.Logger, m repository.Metrics) (*usecase.SignalPipeline, error) {
	inPolicy, err := queue.ParseOverflowPolicy(cfg.Signal.Inbound.Overflow)
	if err != nil {
		return nil, fmt.Errorf("inbound mailbox: %w", err)
	}
	outPolicy, err := queue.ParseOverflowPolicy(cfg.Signal.Outbound.Overflow)
	if err != nil {
		return nil, fmt.Errorf("outbound mailbox: %w", err)
	}
	return usecase.NewSignalPipeline(agg,
		queue.NewMailbox[models.MarketSnapshot](cfg.Signal.Inbound.Capacity, inPolicy),
		queue.NewMailbox[models.Decision](cfg.Signal.Outbound.Capacity, outPolicy),
		l, m,
	), nil
}

func ProvideDecisionRouter(
	cfg *config.Config,
	pipeline *usecase.SignalPipeline,
	engine *usecase.ExecutionEngine,
	state *internalrepo.StateStore,
	journal repository.Journal,
	notifier repository.Notifier,
	l *logger.Logger,
	m repository.Metrics,
) *usecase.DecisionRouter {
	return usecase.NewDecisionRouter(pipeline.Decisions(), engine, cfg.Execution.StopLossPct, l, m,
		usecase.WithDecisionCache(state),
		usecase.WithDecisionJournal(journal),
		usecase.WithDecisionNotifier(notifier),
	)
}

// ProvideMarketAssembler puts the realtime gate between the book and the pipeline.
func ProvideMarketAssembler(cfg *config.Config, pipeline *usecase.SignalPipeline, l *logger.Logger, m repository.Metrics) (*usecase.MarketAssembler, error) {
	policy, err := queue.ParseOverflowPolicy(cfg.Signal.Market.Overflow)
	if err != nil {
		return nil, fmt.Errorf("market mailbox: %w", err)
	}
	gate := mid.NewRealtimeGate(pipeline, m, mid.WithMaxRPS(cfg.Signal.MaxRPS))
	return usecase.NewMarketAssembler(cfg.Execution.Symbol, cfg.Signal.RecentTrades, gate, l, m,
		usecase.WithEventBuffer(cfg.Signal.Market.Capacity, policy),
	), nil
}

// ProvideMarketCollector builds the order-book and trade stream clients.
func ProvideMarketCollector(cfg *config.Config, assembler *usecase.MarketAssembler, l *logger.Logger, m repository.Metrics) *usecase.MarketCollector {
	ob := cfg.Stream.OrderBook
	tr := cfg.Stream.Trade

	depth := stream.New("order_book",
		stream.GorillaDialer{URL: ob.URL},
		bstream.NewDepthHandler(lower(ob.Streams), ob.SubscribeID, assembler, l, m),
		l, m,
		stream.WithMaxRetries(ob.MaxRetries),
		stream.WithBackoff(stream.Backoff{Base: ob.BaseDelay, Max: ob.MaxDelay}),
		stream.WithPingInterval(ob.PingInterval),
	)
	trades := stream.New("trade",
		stream.GorillaDialer{URL: tr.URL},
		bstream.NewTradeHandler(lower(tr.Streams), tr.SubscribeID, assembler, l, m),
		l, m,
		stream.WithMaxRetries(tr.MaxRetries),
		stream.WithBackoff(stream.Backoff{Base: tr.BaseDelay, Max: tr.MaxDelay}),
		stream.WithPingInterval(tr.PingInterval),
	)
	return usecase.NewMarketCollector(l, m, depth, trades)
}

// ProvideKafkaConsumer creates the external signals consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.SignalsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaSignalsHandler(cfg *config.Config, engine *usecase.ExecutionEngine, m repository.Metrics) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, engine, m)
}

func ProvideExecutionHandler(
	l *logger.Logger,
	engine *usecase.ExecutionEngine,
	router *usecase.DecisionRouter,
	risk *usecase.RiskGate,
	collector *usecase.MarketCollector,
	performance *usecase.PerformanceReporter,
) *api.ExecutionEchoHandler {
	return api.NewExecutionEchoHandler(l, engine, router, risk, collector, performance)
}

// ProvideHTTPServer creates the Echo server, or nil when it is disabled.
func ProvideHTTPServer(cfg *config.Config, h *api.ExecutionEchoHandler, l *logger.Logger) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.MarketCollector,
	assembler *usecase.MarketAssembler,
	pipeline *usecase.SignalPipeline,
	router *usecase.DecisionRouter,
	engine *usecase.ExecutionEngine,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	httpServer *xhttp.Server,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
) *server.App {
	opts := []server.AppOption{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.HookFuncs{
			Err: func(_ context.Context, topic string, _ kafka.Message, err error) {
				l.Warn("kafka signal rejected", logger.String("topic", topic), logger.Error(err))
			},
		})
		opts = append(opts, server.WithKafkaConsumer(consumer, kh))
	}
	if httpServer != nil {
		opts = append(opts, server.WithHTTPServer(httpServer))
	}

	// flush the error collector before the producer goes away
	opts = append(opts, server.WithClosers(server.Closer{Name: "log_collector", Close: func() error {
		l.RemoveCollector()
		return nil
	}}))
	if producer != nil {
		opts = append(opts, server.WithClosers(server.Closer{Name: "kafka_producer", Close: producer.Close}))
	}
	if ch != nil {
		opts = append(opts, server.WithClosers(server.Closer{Name: "clickhouse", Close: ch.Close}))
	}
	opts = append(opts, server.WithClosers(server.Closer{Name: "cache", Close: c.Close}))

	return server.New(l, collector, assembler, pipeline, router, engine, opts...)
}

func lower(streams []string) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		out[i] = strings.ToLower(s)
	}
	return out
}
