package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"OrdreBook/internal/domain/repository"
	"OrdreBook/pkg/logger"
)

var (
	ErrRetriesExhausted = errors.New("stream: reconnect retries exhausted")
	ErrNotConnected     = errors.New("stream: not connected")
	ErrClosedByServer   = errors.New("stream: closed by server")
	ErrClientClosed     = errors.New("stream: client closed")
)

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the reconnect ceiling. n <= 0 retries forever.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

func WithBackoff(b Backoff) Option {
	return func(c *Client) {
		c.backoff = b
	}
}

// WithPingInterval enables keepalive pings. d <= 0 disables them.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = d
	}
}

// Client keeps one websocket stream alive and feeds its frames to a Handler.
// A Client is single use: once closed it cannot be reconnected.
type Client struct {
	name    string
	dialer  Dialer
	handler Handler
	log     *logger.Logger
	metrics repository.Metrics

	maxRetries   int
	backoff      Backoff
	pingInterval time.Duration

	connectMu sync.Mutex // one outstanding connect at a time
	writeMu   sync.Mutex
	mu        sync.RWMutex // guards conn, state
	conn      Conn
	state     State

	running   atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
}

func New(name string, dialer Dialer, handler Handler, log *logger.Logger, metrics repository.Metrics, opts ...Option) *Client {
	c := &Client{
		name:       name,
		dialer:     dialer,
		handler:    handler,
		log:        log.With(logger.String("stream", name)),
		metrics:    metrics,
		maxRetries: 5,
		backoff:    Backoff{Base: time.Second},
		state:      StateDisconnected,
		closing:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.running.Store(true)
	return c
}

func (c *Client) Name() string { return c.name }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect dials and runs the handler's OnConnect. It is a no-op when
// already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if !c.running.Load() {
		return ErrClientClosed
	}
	if c.State() == StateConnected {
		return nil
	}

	c.setState(StateConnecting)
	start := time.Now()
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		c.metrics.RecordError("stream_dial")
		return fmt.Errorf("stream %s connect: %w", c.name, err)
	}

	c.mu.Lock()
	if !c.running.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.metrics.RecordStreamState(c.name, StateConnected.String())
	c.metrics.RecordLatency("stream_connect", time.Since(start).Seconds())
	c.log.Info("stream connected")

	if err := c.handler.OnConnect(ctx, c); err != nil {
		c.dropConn(err)
		c.setState(StateDisconnected)
		return fmt.Errorf("stream %s on connect: %w", c.name, err)
	}
	return nil
}

// Listen connects if needed and forwards frames to the handler until the
// client is closed, ctx is done, or the server closes the stream normally.
// Lost connections are retried with exponential backoff; once the retry
// ceiling is exceeded Listen returns an error wrapping ErrRetriesExhausted.
// The client is closed when Listen returns.
func (c *Client) Listen(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	defer c.Close()

	retries := 0
	for c.running.Load() {
		if c.State() != StateConnected {
			if err := c.Connect(ctx); err != nil {
				if !c.running.Load() {
					break
				}
				c.log.Warn("stream connect failed", logger.Error(err), logger.Int("retry", retries))
				if err := c.waitRetry(&retries, err); err != nil {
					return err
				}
				continue
			}
			retries = 0
		}

		err := c.session(ctx)
		if !c.running.Load() {
			break
		}
		if errors.Is(err, ErrClosedByServer) {
			c.log.Info("stream closed by server")
			return nil
		}

		c.log.Warn("stream connection lost", logger.Error(err))
		c.metrics.RecordError("stream_disconnect")
		c.dropConn(err)
		if err := c.waitRetry(&retries, err); err != nil {
			return err
		}
	}
	return nil
}

// Send marshals v and writes it on the live connection. Without a live
// connection nothing is written or queued and ErrNotConnected is returned.
func (c *Client) Send(v any) error {
	c.mu.RLock()
	conn, state := c.conn, c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		c.log.Warn("stream send skipped, not connected", logger.String("state", state.String()))
		return ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("stream %s encode: %w", c.name, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(payload); err != nil {
		return fmt.Errorf("stream %s send: %w", c.name, err)
	}
	return nil
}

// Close stops the client, tears down any live connection and runs the
// handler's OnDisconnect. Repeated calls are no-ops.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.running.Store(false)
		close(c.closing)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.state = StateClosed
		c.mu.Unlock()

		c.metrics.RecordStreamState(c.name, StateClosed.String())
		if conn != nil {
			err = conn.Close()
		}
		c.handler.OnDisconnect(nil)
		c.log.Info("stream client closed")
	})
	return err
}

func (c *Client) session(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	done := make(chan struct{})
	defer close(done)
	if c.pingInterval > 0 {
		go c.keepalive(conn, done)
	}

	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.handler.OnMessage(ctx, payload); err != nil {
			c.metrics.RecordError("stream_decode")
			c.log.Warn("stream frame dropped", logger.Error(err), logger.Int("bytes", len(payload)))
		}
	}
}

func (c *Client) keepalive(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				c.log.Debug("stream ping failed", logger.Error(err))
			}
		}
	}
}

// waitRetry enforces the retry ceiling and sleeps the backoff delay. The
// sleep ends early when the client is closed.
func (c *Client) waitRetry(retries *int, cause error) error {
	if c.maxRetries > 0 && *retries >= c.maxRetries {
		c.log.Error("stream retries exhausted", logger.Int("max_retries", c.maxRetries), logger.Error(cause))
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, c.name, *retries, cause)
	}

	*retries++
	delay := c.backoff.Delay(*retries)
	c.setState(StateReconnecting)
	c.metrics.RecordReconnect(c.name)
	c.log.Info("stream reconnecting", logger.Int("retry", *retries), logger.Duration("delay_ms", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.closing:
	}
	return nil
}

func (c *Client) dropConn(cause error) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.state != StateClosed {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	c.handler.OnDisconnect(cause)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.metrics.RecordStreamState(c.name, s.String())
}
