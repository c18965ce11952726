package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"

	"vegas-server/internal/protocol"
)

// Transport is an ordered, bidirectional message stream to the relay.
type Transport interface {
	Send(ctx context.Context, msg protocol.ClientMessage) error
	Receive(ctx context.Context) (protocol.Envelope, error)
}

// Conn is a Transport over one websocket. Send and Receive may be called from
// different goroutines.
type Conn struct {
	socket *websocket.Conn
	mu     sync.Mutex
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	socket, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, ErrNotConnected.Wrap(err)
	}
	return &Conn{socket: socket}, nil
}

func (c *Conn) Send(ctx context.Context, msg protocol.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msg.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.socket.Write(ctx, websocket.MessageText, data); err != nil {
		return ErrNotConnected.Wrap(err)
	}
	return nil
}

// Receive returns the next text message. Binary frames are skipped.
func (c *Conn) Receive(ctx context.Context) (protocol.Envelope, error) {
	for {
		msgType, data, err := c.socket.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return protocol.Envelope{}, err
			}
			return protocol.Envelope{}, ErrNotConnected.Wrap(err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return protocol.Envelope{}, fmt.Errorf("invalid message from server: %w", err)
		}
		return env, nil
	}
}

func (c *Conn) Close() error {
	return c.socket.Close(websocket.StatusNormalClosure, "")
}
