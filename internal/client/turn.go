package client

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

type Phase string

const (
	PhaseWaiting          Phase = "waiting"
	PhaseAwaitingRoll     Phase = "awaiting-roll"
	PhaseAwaitingMove     Phase = "awaiting-move-resolution"
	PhaseAwaitingProperty Phase = "awaiting-property-resolution"
	PhaseAwaitingEnd      Phase = "awaiting-end"
	PhaseJailed           Phase = "jailed"
	PhaseGameOver         Phase = "game-over"
)

// Flags record what the local player has done this turn. Obligations that do
// not apply to the landing space are set as soon as the roll is known.
type Flags struct {
	HasRolledDice      bool `json:"hasRolledDice"`
	HasMovedToken      bool `json:"hasMovedToken"`
	HasHandledProperty bool `json:"hasHandledProperty"`
	HasDrawnCard       bool `json:"hasDrawnCard"`
}

// Complete reports whether the turn may be ended.
func (f Flags) Complete() bool {
	return f.HasRolledDice && f.HasMovedToken && f.HasHandledProperty && f.HasDrawnCard
}

func (f Flags) missing() []string {
	var m []string
	if !f.HasRolledDice {
		m = append(m, "roll the dice")
	}
	if !f.HasMovedToken {
		m = append(m, "finish moving")
	}
	if !f.HasDrawnCard {
		m = append(m, "draw a card")
	}
	if !f.HasHandledProperty {
		m = append(m, "settle the space")
	}
	return m
}

// TurnController is the local turn state machine of one seat. It gates the
// local player's actions before they are sent and mirrors the server's game
// state from broadcasts. The server's fields always win; the turn flags are
// advisory. Safe for concurrent use by a network reader and a render loop.
type TurnController struct {
	mu       sync.Mutex
	playerID string
	game     *vegas.GameState
	isMyTurn bool
	flags    Flags
	pending  vegas.ActionType
	lastErr  error
	// version is the newest game version seen, from a snapshot or an event.
	version int
}

func NewTurnController(localPlayerID string) *TurnController {
	return &TurnController{playerID: localPlayerID}
}

func (tc *TurnController) PlayerID() string {
	return tc.playerID
}

// Apply merges one server message into the mirror. Messages that carry no
// game information are ignored.
func (tc *TurnController) Apply(env protocol.Envelope) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	switch env.Type {
	case protocol.TypeGameStarted, protocol.TypeGameStateUpdate:
		var payload protocol.GameStatePayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		tc.applySnapshot(payload.GameState)
	case protocol.TypeRoomState:
		var info protocol.RoomInfo
		if err := env.Decode(&info); err != nil {
			return err
		}
		if info.GameState != nil {
			tc.applySnapshot(info.GameState)
		}
	case protocol.TypeDiceRolled:
		var ev vegas.DiceRolled
		return tc.applyEvent(env, &ev, func() { tc.applyDiceRolled(&ev) })
	case protocol.TypePropertyPurchased:
		var ev vegas.PropertyPurchased
		return tc.applyEvent(env, &ev, func() { tc.applyPropertyPurchased(&ev) })
	case protocol.TypeRentPaid:
		var ev vegas.RentPaid
		return tc.applyEvent(env, &ev, func() { tc.applyRentPaid(&ev) })
	case protocol.TypeTaxPaid:
		var ev vegas.TaxPaid
		return tc.applyEvent(env, &ev, func() { tc.applyTaxPaid(&ev) })
	case protocol.TypeCardDrawn:
		var ev vegas.CardDrawn
		return tc.applyEvent(env, &ev, func() { tc.applyCardDrawn(&ev) })
	case protocol.TypeJailReleased:
		var ev vegas.JailReleased
		return tc.applyEvent(env, &ev, func() { tc.applyJailReleased(&ev) })
	case protocol.TypeTurnEnded:
		var ev vegas.TurnEnded
		return tc.applyEvent(env, &ev, func() { tc.applyTurnEnded(&ev) })
	case protocol.TypePlayerBankrupt:
		var ev vegas.PlayerBankrupt
		return tc.applyEvent(env, &ev, func() { tc.applyPlayerBankrupt(&ev) })
	case protocol.TypeGameOver:
		var over protocol.GameOver
		if err := env.Decode(&over); err != nil {
			return err
		}
		if tc.game != nil {
			tc.game.Finished = true
			tc.game.WinnerID = over.WinnerID
		}
		tc.pending = ""
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		tc.pending = ""
		tc.lastErr = ServerError(msg.Code, msg.Message)
	}
	return nil
}

// applyEvent decodes an event, applies it to the mirror when a game is known
// and recomputes whose turn it is from the event's current player.
func (tc *TurnController) applyEvent(env protocol.Envelope, ev vegas.Event, apply func()) error {
	if err := env.Decode(ev); err != nil {
		return err
	}
	var base vegas.EventBase
	if err := env.Decode(&base); err != nil {
		return err
	}
	if tc.game == nil {
		return nil
	}
	if base.PlayerID == tc.playerID {
		tc.pending = ""
	}
	tc.version = max(tc.version, base.Version)
	tc.game.Version = tc.version
	apply()
	tc.setCurrent(base.CurrentPlayerID, base.CurrentPlayerIndex)
	return nil
}

// applySnapshot replaces the mirror. Snapshots older than the newest event
// already applied are dropped. Local flags survive only while the turn and
// the server's turn record agree with them. An action in flight stays in
// flight until its own event or an error reply arrives.
func (tc *TurnController) applySnapshot(state *vegas.GameState) {
	if state == nil || (tc.game != nil && state.Version < tc.version) {
		return
	}
	wasMyTurn := tc.isMyTurn
	tc.game = state
	tc.version = state.Version
	if tc.game.Owners == nil {
		tc.game.Owners = make(map[int]string)
	}
	tc.isMyTurn = state.CurrentPlayerID == tc.playerID && !state.Finished

	if tc.isMyTurn != wasMyTurn {
		tc.pending = ""
	}
	if !tc.isMyTurn || !wasMyTurn {
		tc.flags = Flags{}
	}
	if !tc.isMyTurn {
		return
	}

	turn := state.Turn
	switch {
	case !turn.Rolled:
		tc.flags = Flags{}
	case !tc.flags.HasRolledDice:
		// Rolled before this mirror existed, so there is nothing to animate.
		tc.flags = tc.landingFlags(true)
	}
	if turn.Drawn {
		tc.flags.HasDrawnCard = true
	}
	if turn.Settled {
		tc.flags.HasHandledProperty = true
	}
}

func (tc *TurnController) setCurrent(playerID string, index int) {
	tc.game.CurrentPlayerID = playerID
	tc.game.CurrentPlayerIndex = index
	myTurn := playerID == tc.playerID && !tc.game.Finished
	if myTurn != tc.isMyTurn {
		tc.flags = Flags{}
		tc.pending = ""
	}
	tc.isMyTurn = myTurn
}

// landingFlags derives the obligations of the local player's current space.
func (tc *TurnController) landingFlags(moved bool) Flags {
	f := Flags{HasRolledDice: true, HasMovedToken: moved, HasHandledProperty: true, HasDrawnCard: true}
	me := tc.game.Player(tc.playerID)
	if me == nil || me.InJail {
		return f
	}
	space := vegas.SpaceAt(me.Position)
	switch {
	case space.IsCardSpace():
		f.HasDrawnCard = false
	case space.Type == vegas.SpaceTax:
		f.HasHandledProperty = false
	case space.Purchasable():
		owner, owned := tc.game.Owners[space.Position]
		f.HasHandledProperty = owned && owner == tc.playerID
	}
	return f
}

func (tc *TurnController) updatePlayer(id string, fn func(p *vegas.Player)) {
	if p := tc.game.Player(id); p != nil {
		fn(p)
	}
}

func (tc *TurnController) applyDiceRolled(ev *vegas.DiceRolled) {
	roll := ev.Roll
	tc.game.Turn.Rolled = true
	tc.game.Turn.LastRoll = &roll
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) {
		p.Position = ev.NewPosition
		p.Money = ev.Money
		p.InJail = ev.InJail
		p.JailTurns = ev.JailTurns
	})
	if ev.PlayerID == tc.playerID {
		tc.flags = tc.landingFlags(ev.NewPosition == ev.OldPosition)
	}
}

func (tc *TurnController) applyPropertyPurchased(ev *vegas.PropertyPurchased) {
	tc.game.Owners[ev.PropertyID] = ev.PlayerID
	tc.game.Turn.Settled = true
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) {
		p.Money = ev.Money
		if !slices.Contains(p.Properties, ev.PropertyID) {
			p.Properties = append(p.Properties, ev.PropertyID)
		}
	})
	if ev.PlayerID == tc.playerID {
		tc.flags.HasHandledProperty = true
	}
}

func (tc *TurnController) applyRentPaid(ev *vegas.RentPaid) {
	tc.game.Turn.Settled = true
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) { p.Money = ev.Money })
	tc.updatePlayer(ev.OwnerID, func(p *vegas.Player) { p.Money = ev.OwnerMoney })
	if ev.PlayerID == tc.playerID {
		tc.flags.HasHandledProperty = true
	}
}

func (tc *TurnController) applyTaxPaid(ev *vegas.TaxPaid) {
	tc.game.Turn.Settled = true
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) { p.Money = ev.Money })
	if ev.PlayerID == tc.playerID {
		tc.flags.HasHandledProperty = true
	}
}

func (tc *TurnController) applyCardDrawn(ev *vegas.CardDrawn) {
	tc.game.Turn.Drawn = true
	moved := ev.NewPosition != ev.OldPosition
	if moved {
		tc.game.Turn.Settled = false
	}
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) {
		p.Position = ev.NewPosition
		p.Money = ev.Money
		p.InJail = ev.InJail
		p.HasGetOutOfJailFree = ev.HasGetOutOfJailFree
	})
	if ev.PlayerID != tc.playerID {
		return
	}
	if moved {
		// The card moved the token: a fresh landing, but no second draw.
		tc.flags = tc.landingFlags(false)
	}
	tc.flags.HasDrawnCard = true
}

func (tc *TurnController) applyJailReleased(ev *vegas.JailReleased) {
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) {
		p.InJail = false
		p.JailTurns = 0
		p.Money = ev.Money
		p.HasGetOutOfJailFree = ev.HasGetOutOfJailFree
	})
}

func (tc *TurnController) applyTurnEnded(*vegas.TurnEnded) {
	tc.game.Turn = vegas.Turn{}
	tc.flags = Flags{}
	tc.pending = ""
}

func (tc *TurnController) applyPlayerBankrupt(ev *vegas.PlayerBankrupt) {
	for _, pos := range ev.ReleasedProperties {
		delete(tc.game.Owners, pos)
	}
	tc.updatePlayer(ev.PlayerID, func(p *vegas.Player) {
		p.Bankrupt = true
		p.Properties = nil
	})
	if ev.GameOver {
		tc.game.Finished = true
		tc.game.WinnerID = ev.WinnerID
	}
	tc.game.Turn = vegas.Turn{}
	tc.flags = Flags{}
}

func (tc *TurnController) IsMyTurn() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.isMyTurn
}

func (tc *TurnController) Flags() Flags {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.flags
}

// LastError returns the most recent error reply, if any.
func (tc *TurnController) LastError() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.lastErr
}

// Game returns a copy of the mirrored game, or nil before the game starts.
func (tc *TurnController) Game() *vegas.GameState {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.game.Clone()
}

func (tc *TurnController) Phase() Phase {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.phaseLocked()
}

func (tc *TurnController) phaseLocked() Phase {
	switch {
	case tc.game == nil:
		return PhaseWaiting
	case tc.game.Finished:
		return PhaseGameOver
	case !tc.isMyTurn:
		return PhaseWaiting
	}
	if me := tc.game.Player(tc.playerID); me != nil && me.InJail && !tc.flags.HasRolledDice {
		return PhaseJailed
	}
	switch {
	case !tc.flags.HasRolledDice:
		return PhaseAwaitingRoll
	case !tc.flags.HasMovedToken:
		return PhaseAwaitingMove
	case !tc.flags.HasDrawnCard || !tc.flags.HasHandledProperty:
		return PhaseAwaitingProperty
	}
	return PhaseAwaitingEnd
}

// CheckAction is the local gate run before an action is sent. It never
// changes state.
func (tc *TurnController) CheckAction(action vegas.ActionType) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.checkLocked(action)
}

func (tc *TurnController) checkLocked(action vegas.ActionType) error {
	if tc.game == nil {
		return ErrNoGame
	}
	if tc.game.Finished {
		return vegas.ErrGameOver
	}
	if !tc.isMyTurn {
		return vegas.ErrNotYourTurn
	}
	me := tc.game.Player(tc.playerID)
	if me == nil {
		return vegas.ErrNotInGame
	}
	if me.Bankrupt {
		return vegas.ErrPlayerBankrupt
	}
	f := tc.flags

	switch action {
	case vegas.ActionRollDice:
		if f.HasRolledDice {
			return vegas.ErrAlreadyRolled
		}
	case vegas.ActionBuyProperty, vegas.ActionPayRent, vegas.ActionPayTax:
		if err := tc.checkLanded(); err != nil {
			return err
		}
		if f.HasHandledProperty {
			return vegas.ErrAlreadySettled
		}
		return tc.checkSettlement(action, me)
	case vegas.ActionDrawCard:
		if err := tc.checkLanded(); err != nil {
			return err
		}
		if !vegas.SpaceAt(me.Position).IsCardSpace() {
			return vegas.ErrNotCardSpace
		}
		if f.HasDrawnCard {
			return vegas.ErrAlreadyDrawn
		}
	case vegas.ActionPayJailFine, vegas.ActionUseJailCard:
		if !me.InJail {
			return vegas.ErrNotInJail
		}
		if f.HasRolledDice {
			return vegas.ErrAlreadyRolled
		}
		if action == vegas.ActionUseJailCard && !me.HasGetOutOfJailFree {
			return vegas.ErrNoJailCard
		}
		if action == vegas.ActionPayJailFine && me.Money < vegas.JailFine {
			return vegas.ErrInsufficientFunds
		}
	case vegas.ActionEndTurn:
		if !f.Complete() {
			return ErrTurnIncomplete.WithMessage("Before ending your turn: %s", strings.Join(f.missing(), ", "))
		}
	case vegas.ActionDeclareBankruptcy:
	default:
		return vegas.ErrUnknownAction.WithMessage("Unknown game action %q", action)
	}
	return nil
}

func (tc *TurnController) checkLanded() error {
	if !tc.flags.HasRolledDice {
		return vegas.ErrNotRolled
	}
	if !tc.flags.HasMovedToken {
		return ErrMoveInProgress
	}
	return nil
}

func (tc *TurnController) checkSettlement(action vegas.ActionType, me *vegas.Player) error {
	space := vegas.SpaceAt(me.Position)
	owner, owned := tc.game.Owners[space.Position]

	switch action {
	case vegas.ActionBuyProperty:
		if !space.Purchasable() {
			return vegas.ErrNotPurchasable.WithMessage("%s cannot be purchased", space.Name)
		}
		if owned {
			return vegas.ErrAlreadyOwned
		}
		if me.Money < space.Price {
			return vegas.ErrInsufficientFunds.WithMessage("%s costs $%d, you have $%d", space.Name, space.Price, me.Money)
		}
	case vegas.ActionPayRent:
		if !owned || owner == tc.playerID {
			return vegas.ErrNoRentDue
		}
		if rent := tc.game.RentFor(space.Position); me.Money < rent {
			return vegas.ErrInsufficientFunds.WithMessage("Rent is $%d, you have $%d", rent, me.Money)
		}
	case vegas.ActionPayTax:
		if space.Type != vegas.SpaceTax {
			return vegas.ErrNotTaxSpace
		}
		if me.Money < space.Amount {
			return vegas.ErrInsufficientFunds
		}
	}
	return nil
}

// Begin gates action and marks it in flight. Until the server answers, with
// an event from this player or an error, further actions are refused.
func (tc *TurnController) Begin(action vegas.ActionType) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.pending != "" {
		return ErrActionPending.WithMessage("Waiting for %s to be confirmed", tc.pending)
	}
	if err := tc.checkLocked(action); err != nil {
		return err
	}
	tc.pending = action
	tc.lastErr = nil
	return nil
}

// Pending returns the action awaiting a server answer, if any.
func (tc *TurnController) Pending() vegas.ActionType {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.pending
}

// CompleteMove marks the local token animation finished.
func (tc *TurnController) CompleteMove() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.isMyTurn && tc.flags.HasRolledDice {
		tc.flags.HasMovedToken = true
	}
}

// DeclineProperty passes on buying the unowned space the player stands on.
// Rent and tax cannot be declined.
func (tc *TurnController) DeclineProperty() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.game == nil {
		return ErrNoGame
	}
	if !tc.isMyTurn {
		return vegas.ErrNotYourTurn
	}
	if err := tc.checkLanded(); err != nil {
		return err
	}
	me := tc.game.Player(tc.playerID)
	if me == nil || tc.flags.HasHandledProperty {
		return ErrCannotDecline
	}
	space := vegas.SpaceAt(me.Position)
	if _, owned := tc.game.Owners[space.Position]; owned || !space.Purchasable() {
		return ErrCannotDecline.WithMessage("%s cannot be declined", space.Name)
	}
	tc.flags.HasHandledProperty = true
	return nil
}

func (tc *TurnController) String() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return fmt.Sprintf("%s phase=%s myTurn=%t %+v", tc.playerID, tc.phaseLocked(), tc.isMyTurn, tc.flags)
}
