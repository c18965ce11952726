package client

import "vegas-server/internal/vegas"

// Autopilot plays the local seat without a human. It buys whatever it can
// afford while keeping Reserve in hand.
type Autopilot struct {
	Reserve int
}

func NewAutopilot() *Autopilot {
	return &Autopilot{Reserve: 100}
}

// Next returns the action to send for the local player, or false when there
// is nothing to send: not our turn, an action is in flight, or the game is
// over. Local-only steps (finishing the move, declining a purchase) are
// resolved on the way.
func (a *Autopilot) Next(tc *TurnController) (vegas.Action, bool) {
	for range 4 {
		if tc.Pending() != "" {
			return vegas.Action{}, false
		}
		switch tc.Phase() {
		case PhaseWaiting, PhaseGameOver:
			return vegas.Action{}, false
		case PhaseJailed:
			return vegas.Action{Type: a.leaveJail(tc)}, true
		case PhaseAwaitingRoll:
			return vegas.Action{Type: vegas.ActionRollDice}, true
		case PhaseAwaitingMove:
			tc.CompleteMove()
		case PhaseAwaitingProperty:
			action, ok := a.resolveSpace(tc)
			if ok {
				return vegas.Action{Type: action}, true
			}
		case PhaseAwaitingEnd:
			return vegas.Action{Type: vegas.ActionEndTurn}, true
		}
	}
	return vegas.Action{}, false
}

func (a *Autopilot) leaveJail(tc *TurnController) vegas.ActionType {
	if tc.CheckAction(vegas.ActionUseJailCard) == nil {
		return vegas.ActionUseJailCard
	}
	if game := tc.Game(); game != nil {
		if me := game.Player(tc.PlayerID()); me != nil && me.Money-vegas.JailFine >= a.Reserve &&
			tc.CheckAction(vegas.ActionPayJailFine) == nil {
			return vegas.ActionPayJailFine
		}
	}
	return vegas.ActionRollDice
}

// resolveSpace settles the landing space. It reports false after a local
// decline so the caller re-evaluates the phase.
func (a *Autopilot) resolveSpace(tc *TurnController) (vegas.ActionType, bool) {
	flags := tc.Flags()
	if !flags.HasDrawnCard {
		return vegas.ActionDrawCard, true
	}

	game := tc.Game()
	me := game.Player(tc.PlayerID())
	space := vegas.SpaceAt(me.Position)
	owner, owned := game.Owners[space.Position]

	switch {
	case space.Type == vegas.SpaceTax:
		if me.Money < space.Amount {
			return vegas.ActionDeclareBankruptcy, true
		}
		return vegas.ActionPayTax, true
	case owned && owner != me.ID:
		if me.Money < game.RentFor(space.Position) {
			return vegas.ActionDeclareBankruptcy, true
		}
		return vegas.ActionPayRent, true
	case space.Purchasable() && !owned && me.Money-space.Price >= a.Reserve:
		return vegas.ActionBuyProperty, true
	}

	if err := tc.DeclineProperty(); err != nil {
		// Nothing this autopilot understands is due; let the server decide.
		return vegas.ActionEndTurn, true
	}
	return "", false
}
