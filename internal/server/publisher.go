package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"vegas-server/internal/protocol"
)

// Publisher is the room-wide channel every broadcast is mirrored to, so that
// spectators and other relay nodes can follow a room without holding a seat.
type Publisher interface {
	Publish(roomID string, msg protocol.ServerMessage) error
	Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(string, protocol.ServerMessage) error { return nil }
func (NoopPublisher) Close()                                       {}

// RoomSubject is the NATS subject carrying a room's broadcasts.
func RoomSubject(roomID string) string {
	return "vegas.room." + roomID
}

type NatsPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewNatsPublisher(url string, logger *slog.Logger) (*NatsPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("vegas-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NatsPublisher{conn: conn, logger: logger}, nil
}

func (p *NatsPublisher) Publish(roomID string, msg protocol.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	return p.conn.Publish(RoomSubject(roomID), data)
}

func (p *NatsPublisher) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
