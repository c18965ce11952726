package protocol

import "vegas-server/internal/vegas"

type RoomStatus string

const (
	StatusLobby    RoomStatus = "lobby"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// ROOM SNAPSHOT
// ============================================================================
// tygo:generate
type RoomInfo struct {
	RoomID     string           `json:"roomId"`
	HostID     string           `json:"hostId"`
	Status     RoomStatus       `json:"status"`
	Players    []SeatInfo       `json:"players"`
	CanStart   bool             `json:"canStart"`
	MaxPlayers int              `json:"maxPlayers"`
	GameState  *vegas.GameState `json:"gameState,omitempty"`
}

// tygo:generate
type SeatInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"token,omitempty"`
	Ready     bool   `json:"ready"`
	IsHost    bool   `json:"isHost"`
	Connected bool   `json:"connected"`
}

// Seat returns the seat with the given id.
func (r *RoomInfo) Seat(playerID string) (SeatInfo, bool) {
	for _, s := range r.Players {
		if s.ID == playerID {
			return s, true
		}
	}
	return SeatInfo{}, false
}

// tygo:generate
type RoomSummary struct {
	RoomID      string     `json:"roomId"`
	PlayerCount int        `json:"playerCount"`
	MaxPlayers  int        `json:"maxPlayers"`
	Status      RoomStatus `json:"status"`
}

// ============================================================================
// CREATE ROOM (create_room)
// ============================================================================
// tygo:generate
type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
}

// tygo:generate
type RoomCreated struct {
	RoomID       string   `json:"roomId"`
	PlayerID     string   `json:"playerId"`
	SessionToken string   `json:"sessionToken"`
	RoomInfo     RoomInfo `json:"roomInfo"`
}

// ============================================================================
// JOIN ROOM (join_room)
// ============================================================================
// tygo:generate
type JoinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	// PlayerID is set when a known player joins again from a new connection.
	PlayerID string `json:"playerId,omitempty"`
}

// tygo:generate
type JoinedRoom struct {
	RoomID       string   `json:"roomId"`
	PlayerID     string   `json:"playerId"`
	SessionToken string   `json:"sessionToken"`
	RoomInfo     RoomInfo `json:"roomInfo"`
}

// tygo:generate
type SeatChanged struct {
	PlayerID string   `json:"playerId"`
	RoomInfo RoomInfo `json:"roomInfo"`
}

// ============================================================================
// SELECT TOKEN (select_token)
// ============================================================================
// tygo:generate
type SelectTokenRequest struct {
	// TokenName is empty (or null) to clear the selection.
	TokenName string `json:"tokenName"`
}

// tygo:generate
type TokenSelected struct {
	PlayerID  string   `json:"playerId"`
	TokenName string   `json:"tokenName"`
	RoomInfo  RoomInfo `json:"roomInfo"`
}

// ============================================================================
// SET READY (set_ready)
// ============================================================================
// tygo:generate
type SetReadyRequest struct {
	Ready bool `json:"ready"`
}

// tygo:generate
type PlayerReadyChanged struct {
	PlayerID string   `json:"playerId"`
	Ready    bool     `json:"ready"`
	RoomInfo RoomInfo `json:"roomInfo"`
}

// ============================================================================
// GAME STATE (game_started, game_state_update broadcast)
// ============================================================================
// tygo:generate
type GameStatePayload struct {
	RoomID             string           `json:"roomId"`
	Status             RoomStatus       `json:"status"`
	GameState          *vegas.GameState `json:"gameState"`
	Players            []*vegas.Player  `json:"players"`
	CurrentPlayerIndex int              `json:"currentPlayerIndex"`
	CurrentPlayerID    string           `json:"currentPlayerId"`
}

// NewGameStatePayload wraps a game snapshot. The players and current player
// are repeated at the top level for clients that only render the turn bar.
func NewGameStatePayload(roomID string, status RoomStatus, state *vegas.GameState) GameStatePayload {
	payload := GameStatePayload{RoomID: roomID, Status: status, GameState: state}
	if state != nil {
		payload.Players = state.Players
		payload.CurrentPlayerIndex = state.CurrentPlayerIndex
		payload.CurrentPlayerID = state.CurrentPlayerID
	}
	return payload
}

// tygo:generate
type GameOver struct {
	RoomID   string `json:"roomId"`
	WinnerID string `json:"winnerId,omitempty"`
}

// ============================================================================
// TURN INFO (request_next_turn)
// ============================================================================
// tygo:generate
type TurnInfo struct {
	CurrentPlayerID    string `json:"currentPlayerId"`
	CurrentPlayerIndex int    `json:"currentPlayerIndex"`
}

// ============================================================================
// LEAVE ROOM (leave_room)
// ============================================================================
// tygo:generate
type LeftRoom struct {
	RoomID string `json:"roomId"`
}

// ============================================================================
// REJOIN GAME (rejoin_game)
// ============================================================================
// tygo:generate
type RejoinRequest struct {
	RoomID       string    `json:"roomId"`
	PlayerID     string    `json:"playerId"`
	SessionToken string    `json:"sessionToken,omitempty"`
	StoredState  *RoomInfo `json:"storedState,omitempty"`
}

// ============================================================================
// CONNECTIVITY (player_connectivity, player_disconnected broadcast)
// ============================================================================
// tygo:generate
type Connectivity struct {
	RoomID  string          `json:"roomId"`
	Players map[string]bool `json:"players"`
}

// tygo:generate
type PlayerDisconnected struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}
