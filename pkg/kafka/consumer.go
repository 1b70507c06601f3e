package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"OrdreBook/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics and fans messages out to a worker pool.
// Messages of one partition are handled one at a time; failures are retried
// with jittered backoff and then sent to the DLQ, if configured. Errors
// wrapped with Permanent skip the retries.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	hook     ConsumerHook
	dlq      *kafka.Writer

	msgChan  chan kafka.Message
	stopChan chan struct{}
	readWG   sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once

	partMu    sync.Mutex
	partLocks map[string]*sync.Mutex
}

func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "ordrebook",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:       cfg,
		log:       log.With(logger.String("component", "kafka_consumer")),
		readers:   make(map[string]*kafka.Reader),
		handlers:  make(map[string]MessageHandler),
		hook:      NoopHook{},
		msgChan:   make(chan kafka.Message, cfg.BufferSize),
		stopChan:  make(chan struct{}),
		partLocks: make(map[string]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.LeastBytes{}}
	}
	consumerMetricsOnce.Do(initConsumerMetrics)
	return c, nil
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.worker()
	}
	for topic, reader := range c.readers {
		c.readWG.Add(1)
		go c.read(topic, reader)
	}
	c.log.Info("kafka consumer started", logger.Int("workers", c.cfg.WorkerCount), logger.Int("topics", len(c.readers)))
	return nil
}

// Stop stops the readers, lets the workers finish what is buffered and
// closes the connections.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.stopChan)
		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("reader close failed", logger.String("topic", topic), logger.Error(err))
			}
		}
		c.readWG.Wait()
		close(c.msgChan)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer workers: %w", ctx.Err())
		}

		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("dlq writer close failed", logger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return stopErr
}

func (c *Consumer) read(topic string, reader *kafka.Reader) {
	defer c.readWG.Done()
	for {
		msg, err := reader.FetchMessage(context.Background())
		if err != nil {
			select {
			case <-c.stopChan:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				return
			}
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, 1))
			continue
		}

		select {
		case c.msgChan <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgChan)))
		case <-c.stopChan:
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workWG.Done()
	for msg := range c.msgChan {
		c.handle(msg)
	}
}

func (c *Consumer) handle(msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()
	pl := c.partitionLock(msg.Topic, msg.Partition)
	pl.Lock()
	defer pl.Unlock()

	var err error
	attempts := 0
	for {
		attempts++
		err = c.attempt(handler, msg)
		if err == nil || attempts > c.cfg.RetryMax || IsPermanent(err) {
			break
		}
		c.hook.OnError(context.Background(), msg.Topic, msg, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.stopChan:
			return
		}
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.hook.OnError(context.Background(), msg.Topic, msg, err)
		c.log.Error("kafka message failed",
			logger.String("topic", msg.Topic),
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Int("attempts", attempts),
			logger.Error(err),
		)
		c.toDLQ(msg)
	}
	consumerHandled.WithLabelValues(msg.Topic, result).Inc()
	consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())

	// commit after success or after the DLQ took it, so poison messages do not loop
	if err == nil || c.dlq != nil {
		c.commit(msg)
	}
}

func (c *Consumer) attempt(handler MessageHandler, msg kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	ctx, data, err := c.hook.BeforeHandle(context.Background(), msg.Topic, msg, msg.Value)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, data)
	c.hook.AfterHandle(ctx, msg.Topic, msg, err)
	return err
}

func (c *Consumer) toDLQ(msg kafka.Message) {
	if c.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.Topic)}},
	})
	if err != nil {
		c.log.Error("dlq write failed", logger.String("dlq", c.cfg.DLQTopic), logger.Error(err))
	}
}

func (c *Consumer) commit(msg kafka.Message) {
	reader := c.readers[msg.Topic]
	if reader == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, msg)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Warn("offset commit failed", logger.String("topic", msg.Topic), logger.Int64("offset", msg.Offset), logger.Error(err))
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", topic, partition)
	c.partMu.Lock()
	defer c.partMu.Unlock()
	l, ok := c.partLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[key] = l
	}
	return l
}

// backoffWithJitter doubles from min per attempt, caps at max and removes up
// to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
)

func initConsumerMetrics() {
	consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ordrebook_kafka_consumer_queue_depth",
		Help: "Messages waiting for a consumer worker",
	}, []string{"topic"})
	consumerHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordrebook_kafka_consumer_handled_total",
		Help: "Messages handled by result",
	}, []string{"topic", "result"})
	consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ordrebook_kafka_consumer_handle_seconds",
		Help: "Handling time per message, retries included",
	}, []string{"topic"})
}
