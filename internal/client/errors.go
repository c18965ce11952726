package client

import (
	"strings"

	"vegas-server/internal/apperr"
)

var (
	ErrNoGame               = apperr.New(apperr.KindInvalidState, "GAME_NOT_STARTED", "No game in progress")
	ErrTurnIncomplete       = apperr.New(apperr.KindInvalidState, "TURN_INCOMPLETE", "Finish your turn before ending it")
	ErrMoveInProgress       = apperr.New(apperr.KindInvalidState, "MOVE_IN_PROGRESS", "Wait for your token to finish moving")
	ErrActionPending        = apperr.New(apperr.KindConflict, "ACTION_PENDING", "Waiting for the server to answer your last action")
	ErrCannotDecline        = apperr.New(apperr.KindInvalidState, "CANNOT_DECLINE", "Nothing to decline on this space")
	ErrSessionUnrecoverable = apperr.New(apperr.KindNotFound, "SESSION_UNRECOVERABLE", "No session to recover, return to the lobby")
	ErrNotConnected         = apperr.New(apperr.KindTransportLost, "CONNECTION_LOST", "Not connected to the server")
)

// ServerError turns an error reply from the server back into an error that
// matches the taxonomy by code. The wire message already starts with the code.
func ServerError(code, message string) *apperr.Error {
	if code == "" {
		code = "SERVER_ERROR"
	}
	message = strings.TrimPrefix(message, code+": ")
	return apperr.New(kindForCode(code), code, message)
}

func kindForCode(code string) apperr.Kind {
	switch code {
	case "ROOM_NOT_FOUND", "PLAYER_NOT_FOUND", "NOT_IN_ROOM", "PLAYER_NOT_IN_GAME":
		return apperr.KindNotFound
	case "ROOM_FULL", "TOKEN_TAKEN", "ALREADY_OWNED":
		return apperr.KindConflict
	case "NOT_HOST", "NOT_YOUR_TURN", "SESSION_INVALID", "RATE_LIMITED", "NOT_ON_SPACE":
		return apperr.KindForbidden
	case "INSUFFICIENT_FUNDS":
		return apperr.KindInsufficientFunds
	case "INTERNAL_ERROR":
		return apperr.KindInternal
	case "CONNECTION_LOST":
		return apperr.KindTransportLost
	case "USERNAME_INVALID", "INVALID_ROOM_CODE", "INVALID_PAYLOAD", "INVALID_SNAPSHOT",
		"UNKNOWN_MESSAGE_TYPE", "UNKNOWN_ACTION", "INVALID_TOKEN", "NOT_PURCHASABLE":
		return apperr.KindInvalidInput
	}
	return apperr.KindInvalidState
}
