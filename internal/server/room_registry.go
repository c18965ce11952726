package server

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vegas-server/internal/apperr"
	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

// RoomStore persists room records across restarts.
type RoomStore interface {
	SaveRoom(ctx context.Context, rec RoomRecord) error
	LoadRoom(ctx context.Context, roomID string) (RoomRecord, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

// RoomRegistry maps room codes to rooms and players to their sessions.
type RoomRegistry struct {
	rooms     map[string]*Room
	usedCodes map[string]bool
	sessions  *SessionManager
	store     RoomStore
	deps      roomDeps
	logger    *slog.Logger
	mu        sync.RWMutex
}

type RegistryOption func(*RoomRegistry)

// WithStore lets the registry load rooms it lost and delete rooms it drops.
func WithStore(store RoomStore) RegistryOption {
	return func(rr *RoomRegistry) { rr.store = store }
}

func WithPublisher(p Publisher) RegistryOption {
	return func(rr *RoomRegistry) { rr.deps.publisher = p }
}

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(rr *RoomRegistry) {
		rr.logger = logger
		rr.deps.logger = logger
	}
}

// WithGameOptions is applied to every game the registry's rooms start.
func WithGameOptions(opts ...vegas.Option) RegistryOption {
	return func(rr *RoomRegistry) { rr.deps.gameOpts = opts }
}

func NewRoomRegistry(sender Sender, opts ...RegistryOption) *RoomRegistry {
	rr := &RoomRegistry{
		rooms:     make(map[string]*Room),
		usedCodes: make(map[string]bool),
		sessions:  NewSessionManager(),
		deps:      roomDeps{sender: sender, publisher: NoopPublisher{}, logger: slog.Default()},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rr)
	}
	return rr
}

func (rr *RoomRegistry) Sessions() *SessionManager {
	return rr.sessions
}

// CreateRoom opens a room with the host seated and returns the host's id.
func (rr *RoomRegistry) CreateRoom(hostName, connectionID string) (*Room, string, error) {
	hostName, err := validateName(hostName)
	if err != nil {
		return nil, "", err
	}

	playerID := uuid.New().String()

	rr.mu.Lock()
	roomID := GenerateRoomCode(rr.usedCodes)
	rr.usedCodes[roomID] = true
	room := newRoom(roomID, rr.deps)
	rr.rooms[roomID] = room
	rr.mu.Unlock()

	if err := room.AddPlayer(playerID, hostName, connectionID); err != nil {
		return nil, "", err
	}
	rr.RegisterConnection(playerID, connectionID, roomID, hostName)

	rr.logger.Info("Room created", "room", roomID, "host", playerID)
	return room, playerID, nil
}

func (rr *RoomRegistry) FindRoom(roomID string) (*Room, error) {
	roomID = NormalizeRoomCode(roomID)

	rr.mu.RLock()
	defer rr.mu.RUnlock()

	room, exists := rr.rooms[roomID]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RegisterConnection is an idempotent upsert of the player's session. A
// connection that belonged to another player is detached from that seat.
func (rr *RoomRegistry) RegisterConnection(playerID, connectionID, roomID, name string) {
	displaced, ok := rr.sessions.Register(SessionInfo{
		PlayerID:     playerID,
		RoomID:       NormalizeRoomCode(roomID),
		Name:         name,
		ConnectionID: connectionID,
	})
	if !ok {
		return
	}
	if room, err := rr.FindRoom(displaced.RoomID); err == nil {
		room.DetachConnection(displaced.PlayerID, connectionID)
	}
}

// Attach reconnects a known, currently disconnected seat on connectionID,
// the same way a rejoin does.
func (rr *RoomRegistry) Attach(playerID, connectionID string) (*Room, bool) {
	session, err := rr.sessions.Get(playerID)
	if err != nil || session.ConnectionID != "" {
		return nil, false
	}
	room, err := rr.FindRoom(session.RoomID)
	if err != nil || !room.HasSeat(playerID) {
		return nil, false
	}
	if err := room.AddPlayer(playerID, "", connectionID); err != nil {
		return nil, false
	}
	rr.RegisterConnection(playerID, connectionID, room.ID, session.Name)
	return room, true
}

// UnregisterConnection clears the connection from the player who owns it.
func (rr *RoomRegistry) UnregisterConnection(connectionID string) (SessionInfo, bool) {
	return rr.sessions.Unregister(connectionID)
}

// JoinRoom seats name in roomID. When playerID is already seated the join is
// a reconnect on a new connection.
func (rr *RoomRegistry) JoinRoom(roomID, name, playerID, connectionID string) (*Room, string, error) {
	roomID = NormalizeRoomCode(roomID)
	if err := ValidateRoomCode(roomID); err != nil {
		return nil, "", err
	}
	room, err := rr.FindRoom(roomID)
	if err != nil {
		return nil, "", err
	}

	reconnect := playerID != "" && room.HasSeat(playerID)
	if !reconnect {
		if name, err = validateName(name); err != nil {
			return nil, "", err
		}
	}
	if playerID == "" {
		playerID = uuid.New().String()
	}

	if err := room.AddPlayer(playerID, name, connectionID); err != nil {
		return nil, "", err
	}
	rr.RegisterConnection(playerID, connectionID, roomID, name)
	return room, playerID, nil
}

// LeaveRoom removes the player's seat, deleting the room once it is empty.
func (rr *RoomRegistry) LeaveRoom(playerID string) (*Room, bool, error) {
	session, err := rr.sessions.Get(playerID)
	if err != nil {
		return nil, false, err
	}
	room, err := rr.FindRoom(session.RoomID)
	if err != nil {
		rr.sessions.Remove(playerID)
		return nil, false, err
	}

	empty, err := room.RemovePlayer(playerID)
	if err != nil {
		return nil, false, err
	}
	rr.sessions.Remove(playerID)
	if empty {
		rr.deleteRoom(room.ID)
	}
	return room, empty, nil
}

// Rejoin reattaches playerID to its seat on connectionID. A room missing from
// memory is loaded from the store, or rebuilt from the client's snapshot
// when the store has nothing.
func (rr *RoomRegistry) Rejoin(ctx context.Context, roomID, playerID, connectionID string, stored *protocol.RoomInfo) (*Room, error) {
	room, err := rr.FindRoom(roomID)
	if errors.Is(err, ErrRoomNotFound) {
		room, err = rr.recover(ctx, roomID, playerID, stored)
	}
	if err != nil {
		return nil, err
	}
	if !room.HasSeat(playerID) {
		return nil, ErrPlayerNotFound
	}

	if err := room.AddPlayer(playerID, "", connectionID); err != nil {
		return nil, err
	}
	rr.RegisterConnection(playerID, connectionID, room.ID, "")
	return room, nil
}

func (rr *RoomRegistry) recover(ctx context.Context, roomID, playerID string, stored *protocol.RoomInfo) (*Room, error) {
	if rr.store != nil {
		rec, err := rr.store.LoadRoom(ctx, NormalizeRoomCode(roomID))
		switch {
		case err == nil:
			rr.logger.Info("Room loaded from store", "room", rec.ID)
			return rr.Restore(rec)
		case !errors.Is(err, ErrRoomNotFound):
			rr.logger.Warn("Failed to load room from store", "room", roomID, "error", err)
		}
	}

	if stored == nil {
		return nil, ErrRoomNotFound
	}
	if NormalizeRoomCode(stored.RoomID) != NormalizeRoomCode(roomID) {
		return nil, ErrInvalidSnapshot.WithMessage("Stored state belongs to room %s", stored.RoomID)
	}
	if _, ok := stored.Seat(playerID); !ok {
		return nil, ErrPlayerNotFound
	}
	rr.logger.Info("Room rebuilt from client snapshot", "room", roomID, "player", playerID)
	return rr.Restore(recordFromSnapshot(*stored))
}

// Restore adds a persisted room back to the registry with every seat
// disconnected. An existing room with the same code wins.
func (rr *RoomRegistry) Restore(rec RoomRecord) (*Room, error) {
	room, err := roomFromRecord(rec, rr.deps)
	if err != nil {
		return nil, err
	}

	rr.mu.Lock()
	if existing, ok := rr.rooms[room.ID]; ok {
		rr.mu.Unlock()
		return existing, nil
	}
	rr.rooms[room.ID] = room
	rr.usedCodes[room.ID] = true
	rr.mu.Unlock()

	for _, s := range rec.Seats {
		rr.RegisterConnection(s.ID, "", room.ID, s.Name)
	}
	return room, nil
}

type DisconnectResult struct {
	Session   SessionInfo
	Room      *Room
	Departure Departure
	Deleted   bool
}

// Disconnect handles a closed transport: lobby seats are removed, seats in a
// started game only lose their connection.
func (rr *RoomRegistry) Disconnect(connectionID string) DisconnectResult {
	session, ok := rr.UnregisterConnection(connectionID)
	if !ok {
		return DisconnectResult{}
	}
	result := DisconnectResult{Session: session}

	room, err := rr.FindRoom(session.RoomID)
	if err != nil {
		return result
	}
	result.Room = room
	result.Departure = room.Depart(session.PlayerID, connectionID)

	if result.Departure == DepartRemoved {
		rr.sessions.Remove(session.PlayerID)
		if room.PlayerCount() == 0 {
			rr.deleteRoom(room.ID)
			result.Deleted = true
		}
	}
	return result
}

type SweptRoom struct {
	Room    *Room
	Removed []string
	Deleted bool
}

// Sweep drops disconnected lobby seats, then deletes rooms left empty and
// finished rooms nobody is connected to.
func (rr *RoomRegistry) Sweep() []SweptRoom {
	var swept []SweptRoom
	for _, room := range rr.Rooms() {
		removed, empty := room.SweepDisconnected()
		for _, id := range removed {
			rr.sessions.Remove(id)
		}
		deleted := empty || room.Abandoned()
		if deleted {
			rr.deleteRoom(room.ID)
		}
		if len(removed) > 0 || deleted {
			swept = append(swept, SweptRoom{Room: room, Removed: removed, Deleted: deleted})
		}
	}
	return swept
}

func (rr *RoomRegistry) deleteRoom(roomID string) {
	rr.mu.Lock()
	delete(rr.rooms, roomID)
	delete(rr.usedCodes, roomID)
	rr.mu.Unlock()

	rr.sessions.RemoveRoom(roomID)
	rr.logger.Info("Room deleted", "room", roomID)

	if rr.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rr.store.DeleteRoom(ctx, roomID); err != nil && !errors.Is(err, ErrRoomNotFound) {
			rr.logger.Warn("Failed to delete stored room", "room", roomID, "error", err)
		}
	}
}

// Rooms returns the live rooms ordered by code.
func (rr *RoomRegistry) Rooms() []*Room {
	rr.mu.RLock()
	rooms := make([]*Room, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		rooms = append(rooms, room)
	}
	rr.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int { return strings.Compare(a.ID, b.ID) })
	return rooms
}

func (rr *RoomRegistry) ListRooms() []protocol.RoomSummary {
	rooms := rr.Rooms()
	summaries := make([]protocol.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, room.Summary())
	}
	return summaries
}

type Stats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
}

func (rr *RoomRegistry) Stats() Stats {
	rooms := rr.Rooms()
	stats := Stats{Rooms: len(rooms)}
	for _, room := range rooms {
		stats.Players += room.PlayerCount()
	}
	return stats
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrUsernameInvalid
	}
	if len(name) > 20 {
		return "", ErrUsernameInvalid.WithMessage("Username too long (max 20 characters)")
	}
	return name, nil
}

// isNotFound reports errors callers may treat as "nothing to do".
func isNotFound(err error) bool {
	return apperr.KindOf(err) == apperr.KindNotFound
}
