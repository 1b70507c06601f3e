package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"OrdreBook/pkg/logger"
	"OrdreBook/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAbnormal = errors.New("websocket: close 1006 (abnormal closure): unexpected EOF")

type readResult struct {
	payload []byte
	err     error
}

type fakeConn struct {
	results   chan readResult
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written []string
}

func newFakeConn(results ...readResult) *fakeConn {
	c := &fakeConn{
		results: make(chan readResult, len(results)),
		closed:  make(chan struct{}),
	}
	for _, r := range results {
		c.results <- r
	}
	return c
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case r := <-c.results:
		return r.payload, r.err
	case <-c.closed:
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(p))
	return nil
}

func (c *fakeConn) Ping() error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type recordingHandler struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	messages    []string
	connected   chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{connected: make(chan struct{}, 16)}
}

func (h *recordingHandler) OnConnect(ctx context.Context, s Sender) error {
	h.mu.Lock()
	h.connects++
	h.mu.Unlock()
	h.connected <- struct{}{}
	return s.Send(map[string]any{"method": "SUBSCRIBE", "params": []string{"x@trade"}, "id": 1})
}

func (h *recordingHandler) OnMessage(ctx context.Context, payload []byte) error {
	if string(payload) == "bad" {
		return errors.New("decode failed")
	}
	h.mu.Lock()
	h.messages = append(h.messages, string(payload))
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) OnDisconnect(err error) {
	h.mu.Lock()
	h.disconnects++
	h.mu.Unlock()
}

func (h *recordingHandler) snapshot() (int, int, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, h.disconnects, append([]string(nil), h.messages...)
}

func newTestClient(d Dialer, h Handler, opts ...Option) *Client {
	opts = append([]Option{WithBackoff(Backoff{Base: time.Millisecond}), WithPingInterval(0)}, opts...)
	return New("test", d, h, logger.NewNop(), metrics.Nop{}, opts...)
}

func TestListenForwardsFramesUntilServerClose(t *testing.T) {
	conn := newFakeConn(
		readResult{payload: []byte("a")},
		readResult{payload: []byte("bad")},
		readResult{payload: []byte("b")},
		readResult{err: ErrClosedByServer},
	)
	d := &fakeDialer{conns: []*fakeConn{conn}}
	h := newRecordingHandler()
	c := newTestClient(d, h)

	err := c.Listen(context.Background())
	require.NoError(t, err)

	connects, _, messages := h.snapshot()
	assert.Equal(t, 1, connects)
	assert.Equal(t, []string{"a", "b"}, messages)
	assert.Equal(t, 1, d.Dials())
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, []string{`{"id":1,"method":"SUBSCRIBE","params":["x@trade"]}`}, conn.Written())
}

func TestListenGivesUpAfterMaxRetries(t *testing.T) {
	conn := newFakeConn(readResult{err: errAbnormal})
	d := &fakeDialer{conns: []*fakeConn{conn}}
	h := newRecordingHandler()
	c := newTestClient(d, h, WithMaxRetries(3))

	err := c.Listen(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)

	// one initial dial plus exactly three reconnect attempts
	assert.Equal(t, 4, d.Dials())
	assert.Equal(t, StateClosed, c.State())
}

func TestListenReconnectsAfterLoss(t *testing.T) {
	first := newFakeConn(readResult{err: errAbnormal})
	second := newFakeConn(readResult{payload: []byte("x")}, readResult{err: ErrClosedByServer})
	d := &fakeDialer{conns: []*fakeConn{first, second}}
	h := newRecordingHandler()
	c := newTestClient(d, h, WithMaxRetries(1))

	require.NoError(t, c.Listen(context.Background()))

	connects, disconnects, messages := h.snapshot()
	assert.Equal(t, 2, connects)
	assert.Equal(t, []string{"x"}, messages)
	// one for the lost session, one from Close
	assert.Equal(t, 2, disconnects)
	assert.Equal(t, 2, d.Dials())
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newRecordingHandler()
	c := newTestClient(&fakeDialer{}, h)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, disconnects, _ := h.snapshot()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
}

func TestSendWithoutConnection(t *testing.T) {
	c := newTestClient(&fakeDialer{}, newRecordingHandler())
	assert.ErrorIs(t, c.Send(map[string]string{"k": "v"}), ErrNotConnected)
}

func TestCloseUnblocksListen(t *testing.T) {
	conn := newFakeConn()
	h := newRecordingHandler()
	c := newTestClient(&fakeDialer{conns: []*fakeConn{conn}}, h)

	done := make(chan error, 1)
	go func() { done <- c.Listen(context.Background()) }()

	select {
	case <-h.connected:
	case <-time.After(time.Second):
		t.Fatal("client never connected")
	}
	assert.Equal(t, StateConnected, c.State())

	require.NoError(t, c.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after Close")
	}
}

func TestContextCancelInterruptsBackoff(t *testing.T) {
	d := &fakeDialer{}
	c := New("test", d, newRecordingHandler(), logger.NewNop(), metrics.Nop{},
		WithMaxRetries(0), WithBackoff(Backoff{Base: time.Hour}), WithPingInterval(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Listen(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	assert.Equal(t, 1, d.Dials())
}
