package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one physical websocket connection.
type Conn interface {
	// ReadMessage blocks for the next data frame. A normal close from the
	// peer is reported as ErrClosedByServer.
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Ping() error
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

const controlTimeout = 5 * time.Second

// GorillaDialer dials URL with gorilla/websocket.
type GorillaDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
}

func (d GorillaDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	ws, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", d.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return &gorillaConn{ws: ws}, nil
}

type gorillaConn struct {
	ws *websocket.Conn
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, ErrClosedByServer
		}
		return nil, err
	}
	return payload, nil
}

func (c *gorillaConn) WriteMessage(payload []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *gorillaConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlTimeout))
}

func (c *gorillaConn) Close() error {
	// best effort, the peer may already be gone
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlTimeout))
	return c.ws.Close()
}
