package server

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

const (
	MaxPlayers = 4
	MinPlayers = 2
)

// Sender delivers a message to a single transport connection.
type Sender interface {
	Send(connectionID string, msg protocol.ServerMessage) error
}

// delivery is one queued write. An empty connectionID is the room-wide
// channel.
type delivery struct {
	connectionID string
	playerID     string
	msg          protocol.ServerMessage
}

type Seat struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
	Ready bool   `json:"ready"`
	// ConnectionID is empty while the player is disconnected.
	ConnectionID string    `json:"-"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Room is one lobby-to-game session. Every exported method holds the room
// mutex for its whole duration, so mutations never interleave. Broadcasts are
// queued under the mutex and written to sockets after it is released.
type Room struct {
	ID string

	mu        sync.Mutex
	outbox    []delivery
	sendMu    sync.Mutex
	hostID    string
	seats     []*Seat
	status    protocol.RoomStatus
	game      *vegas.GameState
	createdAt time.Time
	updatedAt time.Time

	sender    Sender
	publisher Publisher
	logger    *slog.Logger
	gameOpts  []vegas.Option
}

// roomDeps are the collaborators shared by every room of a registry.
type roomDeps struct {
	sender    Sender
	publisher Publisher
	logger    *slog.Logger
	gameOpts  []vegas.Option
}

func newRoom(id string, deps roomDeps) *Room {
	now := time.Now()
	if deps.publisher == nil {
		deps.publisher = NoopPublisher{}
	}
	if deps.logger == nil {
		deps.logger = slog.Default()
	}
	return &Room{
		ID:        id,
		seats:     make([]*Seat, 0, MaxPlayers),
		status:    protocol.StatusLobby,
		createdAt: now,
		updatedAt: now,
		sender:    deps.sender,
		publisher: deps.publisher,
		logger:    deps.logger.With("room", id),
		gameOpts:  deps.gameOpts,
	}
}

func (r *Room) seat(playerID string) (int, *Seat) {
	for i, s := range r.seats {
		if s.ID == playerID {
			return i, s
		}
	}
	return -1, nil
}

func (r *Room) touch() {
	r.updatedAt = time.Now()
}

// AddPlayer seats a new player at the end of the join order. A player who is
// already seated is reconnecting: only the connection changes.
func (r *Room) AddPlayer(playerID, name, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, s := r.seat(playerID); s != nil {
		s.ConnectionID = connectionID
		r.touch()
		return nil
	}
	if r.status != protocol.StatusLobby {
		return ErrGameAlreadyStarted.WithMessage("Cannot join a game in progress")
	}
	if len(r.seats) >= MaxPlayers {
		return ErrRoomFull
	}

	r.seats = append(r.seats, &Seat{
		ID:           playerID,
		Name:         name,
		ConnectionID: connectionID,
		JoinedAt:     time.Now(),
	})
	if r.hostID == "" {
		r.hostID = playerID
	}
	r.touch()
	return nil
}

// RemovePlayer deletes the seat and reports whether the room is now empty.
// A departing host hands over to the earliest remaining seat. Leaving a game
// in progress eliminates the player.
func (r *Room) RemovePlayer(playerID string) (bool, error) {
	defer r.flush()
	r.mu.Lock()
	defer r.mu.Unlock()

	i, _ := r.seat(playerID)
	if i < 0 {
		return false, ErrPlayerNotFound
	}
	r.removeSeatLocked(i)

	if r.status == protocol.StatusPlaying && r.game != nil {
		if p := r.game.Player(playerID); p != nil && !p.Bankrupt {
			ev, err := r.game.Eliminate(playerID)
			if err != nil {
				r.logger.Warn("Failed to eliminate departing player", "player", playerID, "error", err)
			} else {
				r.broadcastLocked(eventMessage(ev), "")
				if ev.GameOver {
					r.finishLocked()
				}
			}
		}
	}

	r.touch()
	return len(r.seats) == 0, nil
}

func (r *Room) removeSeatLocked(i int) {
	removed := r.seats[i]
	r.seats = slices.Delete(r.seats, i, i+1)
	if removed.ID != r.hostID {
		return
	}
	if len(r.seats) > 0 {
		r.hostID = r.seats[0].ID
		r.logger.Info("Host reassigned", "from", removed.ID, "to", r.hostID)
	} else {
		r.hostID = ""
	}
}

// SelectToken claims a game piece for the player. An empty name clears the
// selection; picking the piece already held is a no-op.
func (r *Room) SelectToken(playerID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, s := r.seat(playerID)
	if s == nil {
		return ErrPlayerNotFound
	}
	if r.status != protocol.StatusLobby {
		return ErrGameAlreadyStarted.WithMessage("Cannot change token after the game starts")
	}
	if token == "" {
		s.Token = ""
		r.touch()
		return nil
	}
	if !vegas.ValidToken(token) {
		return vegas.ErrInvalidToken.WithMessage("Unknown token '%s'", token)
	}
	if s.Token == token {
		return nil
	}
	for _, other := range r.seats {
		if other.Token == token {
			return ErrTokenTaken.WithMessage("%s already took the %s", other.Name, token)
		}
	}

	s.Token = token
	r.touch()
	return nil
}

// SetReady flips the ready flag. Readiness without a token is accepted; it
// just never counts towards starting.
func (r *Room) SetReady(playerID string, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, s := r.seat(playerID)
	if s == nil {
		return ErrPlayerNotFound
	}
	s.Ready = ready
	r.touch()
	return nil
}

func (r *Room) CanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canStartLocked()
}

func (r *Room) qualifyingSeats() []*Seat {
	qualifying := make([]*Seat, 0, len(r.seats))
	for _, s := range r.seats {
		if s.Ready && s.Token != "" {
			qualifying = append(qualifying, s)
		}
	}
	return qualifying
}

func (r *Room) canStartLocked() bool {
	n := len(r.qualifyingSeats())
	return n >= MinPlayers && n <= MaxPlayers
}

// StartGame freezes the ready seats, in join order, into the turn order of a
// new game and broadcasts the opening state.
func (r *Room) StartGame(requesterID string) error {
	defer r.flush()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != protocol.StatusLobby {
		return ErrGameAlreadyStarted
	}
	if _, s := r.seat(requesterID); s == nil {
		return ErrPlayerNotFound
	}
	if requesterID != r.hostID {
		return ErrNotHost
	}
	if !r.canStartLocked() {
		return ErrCannotStart
	}

	seats := r.qualifyingSeats()
	participants := make([]vegas.Participant, 0, len(seats))
	for _, s := range seats {
		participants = append(participants, vegas.Participant{ID: s.ID, Name: s.Name, Token: s.Token})
	}

	r.game = vegas.NewGame(participants, r.gameOpts...)
	r.status = protocol.StatusPlaying
	r.touch()

	r.logger.Info("Game started", "players", len(participants))
	r.broadcastLocked(protocol.ServerMessage{
		Type:    protocol.TypeGameStarted,
		Payload: r.gameStateLocked(),
	}, "")
	return nil
}

// ApplyAction runs a turn-gated action and broadcasts its event. Rejected
// actions leave the game untouched.
func (r *Room) ApplyAction(playerID string, action vegas.Action) (vegas.Event, error) {
	defer r.flush()
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.status {
	case protocol.StatusLobby:
		return nil, ErrGameNotStarted
	case protocol.StatusFinished:
		return nil, vegas.ErrGameOver
	}

	ev, err := r.game.Apply(playerID, action)
	if err != nil {
		return nil, err
	}
	r.touch()

	r.broadcastLocked(eventMessage(ev), "")
	if r.game.Finished {
		r.finishLocked()
	}
	return ev, nil
}

func (r *Room) finishLocked() {
	r.status = protocol.StatusFinished
	r.logger.Info("Game finished", "winner", r.game.WinnerID)
	r.broadcastLocked(protocol.ServerMessage{
		Type:    protocol.TypeGameOver,
		Payload: protocol.GameOver{RoomID: r.ID, WinnerID: r.game.WinnerID},
	}, "")
}

func eventMessage(ev vegas.Event) protocol.ServerMessage {
	return protocol.ServerMessage{Type: protocol.MessageType(ev.EventType()), Payload: ev}
}

// Broadcast sends msg to every connected seat except excludePlayerID, and to
// the room-wide channel. Delivery failures are logged, never returned.
func (r *Room) Broadcast(msg protocol.ServerMessage, excludePlayerID string) {
	defer r.flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(msg, excludePlayerID)
}

// broadcastLocked queues msg for every connected seat and the room channel.
// The caller flushes once the mutex is released.
func (r *Room) broadcastLocked(msg protocol.ServerMessage, excludePlayerID string) {
	for _, s := range r.seats {
		if s.ConnectionID == "" || s.ID == excludePlayerID || r.sender == nil {
			continue
		}
		r.outbox = append(r.outbox, delivery{connectionID: s.ConnectionID, playerID: s.ID, msg: msg})
	}
	r.outbox = append(r.outbox, delivery{msg: msg})
}

// flush writes the queued deliveries without holding the room mutex. sendMu
// keeps concurrent flushes in queue order.
func (r *Room) flush() {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	r.mu.Lock()
	out := r.outbox
	r.outbox = nil
	r.mu.Unlock()

	for _, d := range out {
		if d.connectionID == "" {
			if err := r.publisher.Publish(r.ID, d.msg); err != nil {
				r.logger.Warn("Failed to publish to room channel", "type", d.msg.Type, "error", err)
			}
			continue
		}
		if err := r.sender.Send(d.connectionID, d.msg); err != nil {
			r.logger.Warn("Failed to deliver broadcast", "type", d.msg.Type, "player", d.playerID, "error", err)
		}
	}
}

// Snapshot returns the serializable projection of the room.
func (r *Room) Snapshot() protocol.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() protocol.RoomInfo {
	players := make([]protocol.SeatInfo, 0, len(r.seats))
	for _, s := range r.seats {
		players = append(players, protocol.SeatInfo{
			ID:        s.ID,
			Name:      s.Name,
			Token:     s.Token,
			Ready:     s.Ready,
			IsHost:    s.ID == r.hostID,
			Connected: s.ConnectionID != "",
		})
	}
	return protocol.RoomInfo{
		RoomID:     r.ID,
		HostID:     r.hostID,
		Status:     r.status,
		Players:    players,
		CanStart:   r.status == protocol.StatusLobby && r.canStartLocked(),
		MaxPlayers: MaxPlayers,
		GameState:  r.game.Clone(),
	}
}

// GameState returns a copy of the game snapshot, or false while in the lobby.
func (r *Room) GameState() (protocol.GameStatePayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game == nil {
		return protocol.GameStatePayload{}, false
	}
	return r.gameStateLocked(), true
}

func (r *Room) gameStateLocked() protocol.GameStatePayload {
	return protocol.NewGameStatePayload(r.ID, r.status, r.game.Clone())
}

func (r *Room) TurnInfo() (protocol.TurnInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game == nil {
		return protocol.TurnInfo{}, ErrGameNotStarted
	}
	return protocol.TurnInfo{
		CurrentPlayerID:    r.game.CurrentPlayerID,
		CurrentPlayerIndex: r.game.CurrentPlayerIndex,
	}, nil
}

// DetachConnection clears the seat's connection if it is still connectionID.
// A newer connection from the same player is left alone.
func (r *Room) DetachConnection(playerID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachLocked(playerID, connectionID)
}

func (r *Room) detachLocked(playerID, connectionID string) bool {
	_, s := r.seat(playerID)
	if s == nil || s.ConnectionID != connectionID {
		return false
	}
	s.ConnectionID = ""
	r.touch()
	return true
}

type Departure int

const (
	DepartNone Departure = iota
	DepartDetached
	DepartRemoved
)

// Depart handles a closed transport. In the lobby the seat is removed; once
// a game has started the seat stays, connection-less, so the player can rejoin.
func (r *Room) Depart(playerID, connectionID string) Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, s := r.seat(playerID)
	if s == nil || s.ConnectionID != connectionID {
		return DepartNone
	}
	if r.status == protocol.StatusLobby {
		r.removeSeatLocked(i)
		r.touch()
		return DepartRemoved
	}
	r.detachLocked(playerID, connectionID)
	return DepartDetached
}

// Connectivity maps every seat to whether it has a live connection.
func (r *Room) Connectivity() protocol.Connectivity {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make(map[string]bool, len(r.seats))
	for _, s := range r.seats {
		players[s.ID] = s.ConnectionID != ""
	}
	return protocol.Connectivity{RoomID: r.ID, Players: players}
}

// SweepDisconnected drops lobby seats that lost their connection and reports
// the removed ids and whether the room is now empty.
func (r *Room) SweepDisconnected() ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != protocol.StatusLobby {
		return nil, len(r.seats) == 0
	}

	var removed []string
	for i := 0; i < len(r.seats); {
		if r.seats[i].ConnectionID == "" {
			removed = append(removed, r.seats[i].ID)
			r.removeSeatLocked(i)
			continue
		}
		i++
	}
	if len(removed) > 0 {
		r.touch()
	}
	return removed, len(r.seats) == 0
}

// Abandoned reports a finished room nobody is connected to.
func (r *Room) Abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != protocol.StatusFinished {
		return false
	}
	for _, s := range r.seats {
		if s.ConnectionID != "" {
			return false
		}
	}
	return true
}

func (r *Room) Status() protocol.RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

func (r *Room) HasSeat(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s := r.seat(playerID)
	return s != nil
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats)
}

func (r *Room) Summary() protocol.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return protocol.RoomSummary{
		RoomID:      r.ID,
		PlayerCount: len(r.seats),
		MaxPlayers:  MaxPlayers,
		Status:      r.status,
	}
}
