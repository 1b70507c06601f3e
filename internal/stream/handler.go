package stream

import "context"

// Sender writes JSON control messages on the live connection.
type Sender interface {
	Send(v any) error
}

// Handler is the per-stream behavior plugged into Client.
type Handler interface {
	// OnConnect runs after every successful dial, typically to subscribe.
	// An error drops the connection and counts as a failed attempt.
	OnConnect(ctx context.Context, s Sender) error
	// OnMessage decodes one frame. Errors are logged and the frame dropped.
	OnMessage(ctx context.Context, payload []byte) error
	// OnDisconnect runs when a connection is lost and once on Close (err nil).
	OnDisconnect(err error)
}
