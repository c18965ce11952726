package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"vegas-server/internal/protocol"
)

// ConnectionManager owns the open websockets and is the Sender rooms
// broadcast through.
type ConnectionManager struct {
	connections  map[string]*websocket.Conn // connectionID → socket
	writeTimeout time.Duration
	mu           sync.RWMutex
}

func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &ConnectionManager{
		connections:  make(map[string]*websocket.Conn),
		writeTimeout: writeTimeout,
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
}

// GetConnection returns websocket for connectionID
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.connections[connectionID]
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Send writes msg to one connection, bounded by the write timeout.
func (cm *ConnectionManager) Send(connectionID string, msg protocol.ServerMessage) error {
	conn := cm.GetConnection(connectionID)
	if conn == nil {
		return ErrConnectionLost.WithMessage("Connection %s is closed", connectionID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Close ends one connection with a normal closure.
func (cm *ConnectionManager) Close(connectionID, reason string) {
	if conn := cm.GetConnection(connectionID); conn != nil {
		conn.Close(websocket.StatusNormalClosure, reason)
	}
}

// CloseAll ends every connection, used on shutdown.
func (cm *ConnectionManager) CloseAll(reason string) {
	cm.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, reason)
	}
}
