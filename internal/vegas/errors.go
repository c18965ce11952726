package vegas

import "vegas-server/internal/apperr"

var (
	ErrNotYourTurn       = apperr.New(apperr.KindForbidden, "NOT_YOUR_TURN", "It is not your turn")
	ErrNotInGame         = apperr.New(apperr.KindNotFound, "PLAYER_NOT_IN_GAME", "Player is not part of this game")
	ErrPlayerBankrupt    = apperr.New(apperr.KindInvalidState, "PLAYER_BANKRUPT", "Player is bankrupt")
	ErrGameOver          = apperr.New(apperr.KindInvalidState, "GAME_FINISHED", "Game has ended")
	ErrUnknownAction     = apperr.New(apperr.KindInvalidInput, "UNKNOWN_ACTION", "Unknown game action")
	ErrAlreadyRolled     = apperr.New(apperr.KindInvalidState, "ALREADY_ROLLED", "Dice already rolled this turn")
	ErrNotRolled         = apperr.New(apperr.KindInvalidState, "NOT_ROLLED", "Roll the dice first")
	ErrNotPurchasable    = apperr.New(apperr.KindInvalidInput, "NOT_PURCHASABLE", "Space cannot be purchased")
	ErrAlreadyOwned      = apperr.New(apperr.KindConflict, "ALREADY_OWNED", "Property already owned")
	ErrNotOnSpace        = apperr.New(apperr.KindForbidden, "NOT_ON_SPACE", "Player is not on that space")
	ErrInsufficientFunds = apperr.New(apperr.KindInsufficientFunds, "INSUFFICIENT_FUNDS", "Not enough money")
	ErrNoRentDue         = apperr.New(apperr.KindInvalidState, "NO_RENT_DUE", "No rent due on this space")
	ErrNotTaxSpace       = apperr.New(apperr.KindInvalidState, "NOT_TAX_SPACE", "No tax due on this space")
	ErrAlreadySettled    = apperr.New(apperr.KindInvalidState, "ALREADY_SETTLED", "This landing is already settled")
	ErrNotCardSpace      = apperr.New(apperr.KindInvalidState, "NOT_CARD_SPACE", "No card to draw on this space")
	ErrAlreadyDrawn      = apperr.New(apperr.KindInvalidState, "ALREADY_DRAWN", "Card already drawn this turn")
	ErrNotInJail         = apperr.New(apperr.KindInvalidState, "NOT_IN_JAIL", "Player is not in jail")
	ErrNoJailCard        = apperr.New(apperr.KindInvalidState, "NO_JAIL_CARD", "Player holds no get out of jail free card")
	ErrInvalidToken      = apperr.New(apperr.KindInvalidInput, "INVALID_TOKEN", "Unknown token")
)
