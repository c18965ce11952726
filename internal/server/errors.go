package server

import "vegas-server/internal/apperr"

var (
	ErrRoomNotFound       = apperr.New(apperr.KindNotFound, "ROOM_NOT_FOUND", "Room not found")
	ErrPlayerNotFound     = apperr.New(apperr.KindNotFound, "PLAYER_NOT_FOUND", "Player is not seated in this room")
	ErrNotInRoom          = apperr.New(apperr.KindNotFound, "NOT_IN_ROOM", "No active room session")
	ErrRoomFull           = apperr.New(apperr.KindConflict, "ROOM_FULL", "Room is full (4/4 players)")
	ErrTokenTaken         = apperr.New(apperr.KindConflict, "TOKEN_TAKEN", "Token already taken")
	ErrNotHost            = apperr.New(apperr.KindForbidden, "NOT_HOST", "Only the host can start the game")
	ErrSessionInvalid     = apperr.New(apperr.KindForbidden, "SESSION_INVALID", "Session token does not match this seat")
	ErrRateLimited        = apperr.New(apperr.KindForbidden, "RATE_LIMITED", "Too many messages, slow down")
	ErrCannotStart        = apperr.New(apperr.KindInvalidState, "CANNOT_START", "Need 2-4 players who are ready and have a token")
	ErrGameAlreadyStarted = apperr.New(apperr.KindInvalidState, "GAME_ALREADY_STARTED", "Game already started")
	ErrGameNotStarted     = apperr.New(apperr.KindInvalidState, "GAME_NOT_STARTED", "Game hasn't started yet")
	ErrUsernameInvalid    = apperr.New(apperr.KindInvalidInput, "USERNAME_INVALID", "Username cannot be empty")
	ErrInvalidRoomCode    = apperr.New(apperr.KindInvalidInput, "INVALID_ROOM_CODE", "Room code must be exactly 4 characters")
	ErrInvalidPayload     = apperr.New(apperr.KindInvalidInput, "INVALID_PAYLOAD", "Invalid payload")
	ErrInvalidSnapshot    = apperr.New(apperr.KindInvalidInput, "INVALID_SNAPSHOT", "Stored room state cannot be restored")
	ErrUnknownMessageType = apperr.New(apperr.KindInvalidInput, "UNKNOWN_MESSAGE_TYPE", "Unknown message type")
	ErrConnectionLost     = apperr.New(apperr.KindTransportLost, "CONNECTION_LOST", "Connection is closed")
	ErrInternal           = apperr.New(apperr.KindInternal, "INTERNAL_ERROR", "Internal server error")
)
