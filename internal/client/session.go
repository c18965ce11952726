package client

import (
	"context"
	"sync"
	"time"

	"vegas-server/internal/protocol"
)

// PersistedSession is what a player needs to find their seat again after a
// reload or a lost connection.
type PersistedSession struct {
	RoomID        string             `json:"roomId"`
	PlayerID      string             `json:"playerId"`
	PlayerName    string             `json:"playerName"`
	SelectedToken string             `json:"selectedToken,omitempty"`
	IsHost        bool               `json:"isHost"`
	SessionToken  string             `json:"sessionToken,omitempty"`
	Snapshot      *protocol.RoomInfo `json:"snapshot,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// SessionStore keeps one session per key. Load returns nil, nil when nothing
// is stored or the entry has expired.
type SessionStore interface {
	Load(ctx context.Context, key string) (*PersistedSession, error)
	Save(ctx context.Context, key string, session PersistedSession) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	session   PersistedSession
	expiresAt time.Time
}

// MemoryStore is a process-local SessionStore whose entries expire after ttl.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Load(_ context.Context, key string) (*PersistedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.ttl > 0 && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, session PersistedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{session: session, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
