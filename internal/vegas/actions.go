package vegas

type ActionType string

const (
	ActionRollDice          ActionType = "roll_dice"
	ActionBuyProperty       ActionType = "buy_property"
	ActionPayRent           ActionType = "pay_rent"
	ActionPayTax            ActionType = "pay_tax"
	ActionDrawCard          ActionType = "draw_card"
	ActionPayJailFine       ActionType = "pay_jail_fine"
	ActionUseJailCard       ActionType = "use_jail_card"
	ActionEndTurn           ActionType = "end_turn"
	ActionDeclareBankruptcy ActionType = "declare_bankruptcy"
)

type Action struct {
	Type ActionType `json:"action"`
	// PropertyID targets a board position; it defaults to the player's
	// current position.
	PropertyID *int `json:"propertyId,omitempty"`
}

// Apply validates and performs action for playerID. Validation completes
// before any field is mutated, so a rejected action leaves the state as it was.
func (g *GameState) Apply(playerID string, action Action) (Event, error) {
	if g.Finished {
		return nil, ErrGameOver
	}
	idx := g.PlayerIndex(playerID)
	if idx < 0 || idx != g.CurrentPlayerIndex {
		return nil, ErrNotYourTurn
	}
	p := g.Players[idx]

	var (
		ev  Event
		err error
	)
	switch action.Type {
	case ActionRollDice:
		ev, err = g.roll(p)
	case ActionBuyProperty:
		ev, err = g.buy(p, g.target(p, action))
	case ActionPayRent:
		ev, err = g.payRent(p, g.target(p, action))
	case ActionPayTax:
		ev, err = g.payTax(p)
	case ActionDrawCard:
		ev, err = g.drawCard(p)
	case ActionPayJailFine:
		ev, err = g.payJailFine(p)
	case ActionUseJailCard:
		ev, err = g.useJailCard(p)
	case ActionEndTurn:
		ev, err = g.endTurn(p)
	case ActionDeclareBankruptcy:
		bankrupt, err := g.Eliminate(p.ID)
		if err != nil {
			return nil, err
		}
		return bankrupt, nil
	default:
		return nil, ErrUnknownAction.WithMessage("Unknown game action '%s'", action.Type)
	}
	if err != nil {
		return nil, err
	}

	ev.base().PlayerID = p.ID
	g.stamp(ev)
	return ev, nil
}

func (g *GameState) target(p *Player, action Action) int {
	if action.PropertyID != nil {
		return *action.PropertyID
	}
	return p.Position
}

func (g *GameState) roll(p *Player) (Event, error) {
	if g.Turn.Rolled {
		return nil, ErrAlreadyRolled
	}

	roll := newDiceRoll(g.dice.Roll())
	g.Turn.Rolled = true
	g.Turn.LastRoll = &roll

	ev := &DiceRolled{Roll: roll, OldPosition: p.Position}

	if p.InJail {
		switch {
		case roll.Doubles:
			g.releaseFromJail(p)
			ev.ReleasedFromJail = true
		case p.JailTurns+1 >= MaxJailTurns:
			// Third failed attempt: the fine is forced and the player moves.
			p.Money -= JailFine
			g.releaseFromJail(p)
			ev.ReleasedFromJail = true
			ev.FinePaid = JailFine
		default:
			p.JailTurns++
			ev.NewPosition = p.Position
			ev.InJail = true
			ev.JailTurns = p.JailTurns
			ev.Money = p.Money
			ev.Space = SpaceAt(p.Position)
			return ev, nil
		}
	}

	old := p.Position
	p.Position = (old + roll.Total) % BoardSize
	// Wrap-around test: a roll ending exactly on GO also counts as passing.
	if p.Position < old {
		ev.PassedGo = true
		ev.GoBonus = GoBonus
		p.Money += GoBonus
	}
	if SpaceAt(p.Position).Type == SpaceGoToJail {
		g.sendToJail(p)
		ev.SentToJail = true
	}

	ev.NewPosition = p.Position
	ev.Money = p.Money
	ev.InJail = p.InJail
	ev.JailTurns = p.JailTurns
	ev.Space = SpaceAt(p.Position)
	return ev, nil
}

func (g *GameState) buy(p *Player, position int) (Event, error) {
	if position < 0 || position >= BoardSize {
		return nil, ErrNotPurchasable
	}
	space := SpaceAt(position)
	if !space.Purchasable() {
		return nil, ErrNotPurchasable.WithMessage("%s cannot be purchased", space.Name)
	}
	if owner, ok := g.Owners[position]; ok {
		return nil, ErrAlreadyOwned.WithMessage("%s is already owned by %s", space.Name, g.nameOf(owner))
	}
	if position != p.Position {
		return nil, ErrNotOnSpace
	}
	if !g.Turn.Rolled {
		return nil, ErrNotRolled
	}
	if g.Turn.Settled {
		return nil, ErrAlreadySettled
	}
	if p.Money < space.Price {
		return nil, ErrInsufficientFunds.WithMessage("%s costs $%d, you have $%d", space.Name, space.Price, p.Money)
	}

	p.Money -= space.Price
	p.Properties = append(p.Properties, position)
	g.Owners[position] = p.ID
	g.Turn.Settled = true

	return &PropertyPurchased{
		PropertyID: position,
		Name:       space.Name,
		Price:      space.Price,
		Money:      p.Money,
	}, nil
}

func (g *GameState) payRent(p *Player, position int) (Event, error) {
	if position < 0 || position >= BoardSize {
		return nil, ErrNoRentDue
	}
	ownerID, ok := g.Owners[position]
	if !ok || ownerID == p.ID {
		return nil, ErrNoRentDue
	}
	if position != p.Position {
		return nil, ErrNotOnSpace
	}
	if !g.Turn.Rolled {
		return nil, ErrNotRolled
	}
	if g.Turn.Settled {
		return nil, ErrAlreadySettled
	}
	owner := g.Player(ownerID)
	if owner == nil {
		return nil, ErrNoRentDue
	}
	rent := g.RentFor(position)
	if p.Money < rent {
		return nil, ErrInsufficientFunds.WithMessage("Rent is $%d, you have $%d", rent, p.Money)
	}

	p.Money -= rent
	owner.Money += rent
	g.Turn.Settled = true

	return &RentPaid{
		OwnerID:    ownerID,
		PropertyID: position,
		Amount:     rent,
		Money:      p.Money,
		OwnerMoney: owner.Money,
	}, nil
}

// RentFor computes the rent due on an owned space. Properties charge double
// when the owner holds the whole colour group; stations and utilities scale
// with how many of their kind the owner holds.
func (g *GameState) RentFor(position int) int {
	space := SpaceAt(position)
	ownerID, ok := g.Owners[position]
	if !ok {
		return 0
	}

	group := groupPositions(space)
	owned := 0
	for _, pos := range group {
		if g.Owners[pos] == ownerID {
			owned++
		}
	}

	switch space.Type {
	case SpaceProperty:
		if owned == len(group) {
			return space.Rent * 2
		}
		return space.Rent
	case SpaceStation:
		return 25 << (owned - 1)
	case SpaceUtility:
		total := 7
		if g.Turn.LastRoll != nil {
			total = g.Turn.LastRoll.Total
		}
		if owned == len(group) {
			return total * 10
		}
		return total * 4
	}
	return 0
}

func (g *GameState) payTax(p *Player) (Event, error) {
	space := SpaceAt(p.Position)
	if space.Type != SpaceTax {
		return nil, ErrNotTaxSpace
	}
	if !g.Turn.Rolled {
		return nil, ErrNotRolled
	}
	if g.Turn.Settled {
		return nil, ErrAlreadySettled
	}
	if p.Money < space.Amount {
		return nil, ErrInsufficientFunds.WithMessage("%s is $%d, you have $%d", space.Name, space.Amount, p.Money)
	}

	p.Money -= space.Amount
	g.Turn.Settled = true

	return &TaxPaid{PropertyID: p.Position, Amount: space.Amount, Money: p.Money}, nil
}

func (g *GameState) drawCard(p *Player) (Event, error) {
	if g.Turn.Drawn {
		return nil, ErrAlreadyDrawn
	}
	space := SpaceAt(p.Position)
	if !space.IsCardSpace() {
		return nil, ErrNotCardSpace
	}
	if !g.Turn.Rolled {
		return nil, ErrNotRolled
	}

	var card Card
	if space.Type == SpaceJackpot {
		card = g.JackpotDeck.draw(jackpotCards)
	} else {
		card = g.CasinoChestDeck.draw(casinoChestCards)
	}
	g.Turn.Drawn = true

	ev := &CardDrawn{Deck: space.Type, Card: card, OldPosition: p.Position}

	switch card.Kind {
	case CardCollect:
		p.Money += card.Amount
	case CardAdvanceTo:
		old := p.Position
		p.Position = card.Target
		if p.Position < old {
			ev.PassedGo = true
			p.Money += GoBonus
		}
	case CardMoveBack:
		p.Position = (p.Position - card.Steps + BoardSize) % BoardSize
	case CardGoToJail:
		g.sendToJail(p)
	case CardJailFree:
		p.HasGetOutOfJailFree = true
	}

	if p.Position != ev.OldPosition {
		if SpaceAt(p.Position).Type == SpaceGoToJail {
			g.sendToJail(p)
		}
		// A new landing has its own obligations.
		g.Turn.Settled = false
	}

	ev.NewPosition = p.Position
	ev.Money = p.Money
	ev.InJail = p.InJail
	ev.HasGetOutOfJailFree = p.HasGetOutOfJailFree
	return ev, nil
}

func (g *GameState) payJailFine(p *Player) (Event, error) {
	if !p.InJail {
		return nil, ErrNotInJail
	}
	if g.Turn.Rolled {
		return nil, ErrAlreadyRolled
	}
	if p.Money < JailFine {
		return nil, ErrInsufficientFunds
	}

	p.Money -= JailFine
	g.releaseFromJail(p)

	return &JailReleased{Method: "fine", Money: p.Money, HasGetOutOfJailFree: p.HasGetOutOfJailFree}, nil
}

func (g *GameState) useJailCard(p *Player) (Event, error) {
	if !p.InJail {
		return nil, ErrNotInJail
	}
	if g.Turn.Rolled {
		return nil, ErrAlreadyRolled
	}
	if !p.HasGetOutOfJailFree {
		return nil, ErrNoJailCard
	}

	p.HasGetOutOfJailFree = false
	g.releaseFromJail(p)

	return &JailReleased{Method: "card", Money: p.Money}, nil
}

// endTurn trusts the caller to have finished the turn; completeness is gated
// by the client.
func (g *GameState) endTurn(p *Player) (Event, error) {
	g.advanceTurn()
	return &TurnEnded{PreviousPlayerID: p.ID}, nil
}

func (g *GameState) nameOf(playerID string) string {
	if p := g.Player(playerID); p != nil {
		return p.Name
	}
	return "another player"
}
