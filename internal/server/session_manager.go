package server

import (
	"sync"
)

type SessionInfo struct {
	PlayerID     string
	RoomID       string
	Name         string
	ConnectionID string // empty while disconnected
}

type SessionManager struct {
	sessions map[string]SessionInfo // playerID -> SessionInfo
	byConn   map[string]string      // connectionID -> playerID
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
		byConn:   make(map[string]string),
	}
}

// Register upserts the session for info.PlayerID. Registering again with a
// new connection moves the player onto it and forgets the old one. When the
// connection belonged to another player, that player's session is returned
// after it was cleared.
func (sm *SessionManager) Register(info SessionInfo) (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[info.PlayerID]; ok {
		if old.ConnectionID != "" && old.ConnectionID != info.ConnectionID {
			delete(sm.byConn, old.ConnectionID)
		}
		if info.Name == "" {
			info.Name = old.Name
		}
		if info.RoomID == "" {
			info.RoomID = old.RoomID
		}
	}
	// A connection belongs to one player at a time
	var displaced SessionInfo
	var moved bool
	if prev, ok := sm.byConn[info.ConnectionID]; ok && info.ConnectionID != "" && prev != info.PlayerID {
		if s, ok := sm.sessions[prev]; ok {
			s.ConnectionID = ""
			sm.sessions[prev] = s
			displaced, moved = s, true
		}
	}

	sm.sessions[info.PlayerID] = info
	if info.ConnectionID != "" {
		sm.byConn[info.ConnectionID] = info.PlayerID
	}
	return displaced, moved
}

// Unregister clears connectionID from the player that owns it and returns
// that player's session.
func (sm *SessionManager) Unregister(connectionID string) (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	playerID, ok := sm.byConn[connectionID]
	if !ok {
		return SessionInfo{}, false
	}
	delete(sm.byConn, connectionID)

	session, ok := sm.sessions[playerID]
	if !ok {
		return SessionInfo{}, false
	}
	session.ConnectionID = ""
	sm.sessions[playerID] = session

	// The caller needs to know which connection went away
	session.ConnectionID = connectionID
	return session, true
}

func (sm *SessionManager) Get(playerID string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[playerID]
	if !exists {
		return SessionInfo{}, ErrNotInRoom
	}
	return session, nil
}

func (sm *SessionManager) ByConnection(connectionID string) (SessionInfo, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	playerID, ok := sm.byConn[connectionID]
	if !ok {
		return SessionInfo{}, false
	}
	session, ok := sm.sessions[playerID]
	return session, ok
}

// Remove forgets a player who left on purpose.
func (sm *SessionManager) Remove(playerID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, ok := sm.sessions[playerID]; ok {
		if session.ConnectionID != "" {
			delete(sm.byConn, session.ConnectionID)
		}
		delete(sm.sessions, playerID)
	}
}

// RemoveRoom forgets every session of a deleted room.
func (sm *SessionManager) RemoveRoom(roomID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for playerID, session := range sm.sessions {
		if session.RoomID != roomID {
			continue
		}
		if session.ConnectionID != "" {
			delete(sm.byConn, session.ConnectionID)
		}
		delete(sm.sessions, playerID)
	}
}

func (sm *SessionManager) All() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]SessionInfo, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
