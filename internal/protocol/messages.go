package protocol

import (
	"encoding/json"
	"fmt"
)

type MessageType string

// Client to server.
const (
	TypePing             MessageType = "ping"
	TypeCreateRoom       MessageType = "create_room"
	TypeJoinRoom         MessageType = "join_room"
	TypeSelectToken      MessageType = "select_token"
	TypeSetReady         MessageType = "set_ready"
	TypeStartGame        MessageType = "start_game"
	TypeGameAction       MessageType = "game_action"
	TypeLeaveRoom        MessageType = "leave_room"
	TypeRejoinGame       MessageType = "rejoin_game"
	TypeRequestNextTurn  MessageType = "request_next_turn"
	TypeRequestGameState MessageType = "request_game_state"
	TypeTransitionReady  MessageType = "transition_ready"
)

// Server to client.
const (
	TypePong               MessageType = "pong"
	TypeRoomCreated        MessageType = "room_created"
	TypeJoinedRoom         MessageType = "joined_room"
	TypePlayerJoined       MessageType = "player_joined"
	TypePlayerLeft         MessageType = "player_left"
	TypeLeftRoom           MessageType = "left_room"
	TypeTokenSelected      MessageType = "token_selected"
	TypePlayerReadyChanged MessageType = "player_ready_changed"
	TypeGameStarted        MessageType = "game_started"
	TypeGameStateUpdate    MessageType = "game_state_update"
	TypeRoomState          MessageType = "room_state"
	TypeTurnInfo           MessageType = "turn_info"
	TypeGameOver           MessageType = "game_over"
	TypePlayerConnectivity MessageType = "player_connectivity"
	TypePlayerDisconnected MessageType = "player_disconnected"
	TypeError              MessageType = "error"

	// Game events share their names with vegas.EventType.
	TypeDiceRolled        MessageType = "dice_rolled"
	TypePropertyPurchased MessageType = "property_purchased"
	TypeRentPaid          MessageType = "rent_paid"
	TypeTaxPaid           MessageType = "tax_paid"
	TypeCardDrawn         MessageType = "card_drawn"
	TypeJailReleased      MessageType = "jail_released"
	TypeTurnEnded         MessageType = "turn_ended"
	TypePlayerBankrupt    MessageType = "player_bankrupt"
)

var inbound = map[MessageType]bool{
	TypePing:             true,
	TypeCreateRoom:       true,
	TypeJoinRoom:         true,
	TypeSelectToken:      true,
	TypeSetReady:         true,
	TypeStartGame:        true,
	TypeGameAction:       true,
	TypeLeaveRoom:        true,
	TypeRejoinGame:       true,
	TypeRequestNextTurn:  true,
	TypeRequestGameState: true,
	TypeTransitionReady:  true,
}

// Inbound reports whether t is a message a client may send.
func (t MessageType) Inbound() bool {
	return inbound[t]
}

// Envelope is the decoded form of any message on the wire. Payload is left
// raw until the receiver knows which type to decode it into.
type Envelope struct {
	Type     MessageType     `json:"type"`
	PlayerID string          `json:"playerId,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return nil
}

type ServerMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type ClientMessage struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"playerId,omitempty"`
	RoomID   string      `json:"roomId,omitempty"`
	Payload  any         `json:"payload,omitempty"`
}
