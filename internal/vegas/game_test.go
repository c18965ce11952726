package vegas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegas-server/internal/vegas"
)

func newGame(t *testing.T, names []string, dice vegas.Dice) *vegas.GameState {
	t.Helper()
	participants := make([]vegas.Participant, 0, len(names))
	for i, name := range names {
		participants = append(participants, vegas.Participant{
			ID:    "p" + string(rune('0'+i)),
			Name:  name,
			Token: vegas.Tokens()[i],
		})
	}
	return vegas.NewGame(participants, vegas.WithDice(dice), vegas.WithUnshuffledCards())
}

func act(t *testing.T, g *vegas.GameState, playerID string, action vegas.ActionType) vegas.Event {
	t.Helper()
	ev, err := g.Apply(playerID, vegas.Action{Type: action})
	require.NoError(t, err, "%s by %s", action, playerID)
	return ev
}

func TestNewGame(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())

	assert.Len(g.Players, 2)
	assert.Equal(0, g.CurrentPlayerIndex)
	assert.Equal("p0", g.CurrentPlayerID)
	assert.Len(g.Board, vegas.BoardSize)
	for _, p := range g.Players {
		assert.Equal(vegas.StartingMoney, p.Money)
		assert.Equal(0, p.Position)
		assert.Empty(p.Properties)
	}
}

func TestBoardLayout(t *testing.T) {
	board := vegas.Board()
	if len(board) != 42 {
		t.Fatalf("board has %d spaces, 42 expected", len(board))
	}
	for i, space := range board {
		if space.Position != i {
			t.Errorf("space %q has position %d, %d expected", space.Name, space.Position, i)
		}
		if space.Name == "" {
			t.Errorf("space %d has no name", i)
		}
		if space.Purchasable() && space.Price <= 0 {
			t.Errorf("space %q is purchasable without a price", space.Name)
		}
	}
	if board[vegas.JailPosition].Type != vegas.SpaceJail {
		t.Errorf("space %d should be the jail", vegas.JailPosition)
	}
	if board[vegas.GoToJailPosition].Type != vegas.SpaceGoToJail {
		t.Errorf("space %d should send players to jail", vegas.GoToJailPosition)
	}

	// Board hands out a copy
	board[1].Price = 1
	assert.Equal(t, 60, vegas.SpaceAt(1).Price)
}

func TestRollFromStart(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{2, 3}))

	ev := act(t, g, "p0", vegas.ActionRollDice)
	rolled := ev.(*vegas.DiceRolled)

	assert.Equal(0, rolled.OldPosition)
	assert.Equal(5, rolled.NewPosition)
	assert.False(rolled.PassedGo)
	assert.Equal(5, rolled.Roll.Total)
	assert.Equal(vegas.StartingMoney, rolled.Money)
	assert.Equal(5, g.Players[0].Position)
	assert.Equal("p0", rolled.CurrentPlayerID)
}

func TestRollPassingGo(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{2, 3}))
	g.Players[0].Position = 40

	rolled := act(t, g, "p0", vegas.ActionRollDice).(*vegas.DiceRolled)

	assert.Equal(40, rolled.OldPosition)
	assert.Equal(3, rolled.NewPosition)
	assert.True(rolled.PassedGo)
	assert.Equal(vegas.StartingMoney+vegas.GoBonus, rolled.Money)
	assert.Equal(vegas.StartingMoney+vegas.GoBonus, g.Players[0].Money)
}

func TestRollLandingExactlyOnGoCountsAsPassing(t *testing.T) {
	// Why: the wrap-around test compares positions, so ending on GO wraps too.
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))
	g.Players[0].Position = 37

	rolled := act(t, g, "p0", vegas.ActionRollDice).(*vegas.DiceRolled)

	assert.Equal(t, 0, rolled.NewPosition)
	assert.True(t, rolled.PassedGo)
	assert.Equal(t, vegas.GoBonus, rolled.GoBonus)
	assert.Equal(t, vegas.StartingMoney+vegas.GoBonus, g.Players[0].Money)
}

func TestRollRejections(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))

	_, err := g.Apply("p1", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, vegas.ErrNotYourTurn)

	// Anyone who is not the current seat is refused the same way.
	_, err = g.Apply("nobody", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, vegas.ErrNotYourTurn)

	act(t, g, "p0", vegas.ActionRollDice)
	_, err = g.Apply("p0", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, vegas.ErrAlreadyRolled)
	assert.Equal(3, g.Players[0].Position)

	_, err = g.Apply("p0", vegas.Action{Type: "teleport"})
	assert.ErrorIs(err, vegas.ErrUnknownAction)
}

func TestTurnOrderCycles(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob", "Carol", "Dave"}, vegas.NewFixedDice())

	expected := []string{"p1", "p2", "p3", "p0", "p1", "p2", "p3", "p0"}
	for i, want := range expected {
		ended := act(t, g, g.CurrentPlayerID, vegas.ActionEndTurn).(*vegas.TurnEnded)
		if ended.CurrentPlayerID != want {
			t.Fatalf("end_turn %d: current player %s, %s expected", i, ended.CurrentPlayerID, want)
		}
		if g.Players[g.CurrentPlayerIndex].ID != want {
			t.Fatalf("end_turn %d: index %d does not point at %s", i, g.CurrentPlayerIndex, want)
		}
	}
}

func TestEndTurnResetsTurnRecord(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))

	act(t, g, "p0", vegas.ActionRollDice)
	assert.True(t, g.Turn.Rolled)

	ended := act(t, g, "p0", vegas.ActionEndTurn).(*vegas.TurnEnded)
	assert.Equal(t, "p0", ended.PreviousPlayerID)
	assert.Equal(t, "p1", ended.CurrentPlayerID)
	assert.False(t, g.Turn.Rolled)
	assert.Nil(t, g.Turn.LastRoll)
}

func TestBuyProperty(t *testing.T) {
	assert := assert.New(t)
	// 1 + 2 lands on Binion's Row ($60)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))
	act(t, g, "p0", vegas.ActionRollDice)

	bobBefore := g.Players[1].Money
	bought := act(t, g, "p0", vegas.ActionBuyProperty).(*vegas.PropertyPurchased)

	assert.Equal(3, bought.PropertyID)
	assert.Equal(60, bought.Price)
	assert.Equal(vegas.StartingMoney-60, bought.Money)
	assert.Equal(vegas.StartingMoney-60, g.Players[0].Money)
	assert.Equal(bobBefore, g.Players[1].Money)
	assert.Equal([]int{3}, g.Players[0].Properties)
	assert.Equal("p0", g.Owners[3])

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionBuyProperty})
	assert.ErrorIs(err, vegas.ErrAlreadyOwned)
}

func TestBuyPropertyOwnedByOther(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))
	g.Owners[3] = "p1"
	g.Players[1].Properties = []int{3}
	act(t, g, "p0", vegas.ActionRollDice)

	aliceBefore, bobBefore := g.Players[0].Money, g.Players[1].Money

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionBuyProperty})
	assert.ErrorIs(err, vegas.ErrAlreadyOwned)
	assert.Equal(aliceBefore, g.Players[0].Money)
	assert.Equal(bobBefore, g.Players[1].Money)
	assert.Equal("p1", g.Owners[3])
	assert.Empty(g.Players[0].Properties)
}

func TestBuyPropertyRejections(t *testing.T) {
	tests := []struct {
		name     string
		position int
		target   *int
		money    int
		roll     bool
		want     error
	}{
		{name: "not purchasable", position: 2, roll: true, money: 1500, want: vegas.ErrNotPurchasable},
		{name: "out of range", position: 3, target: intPtr(99), roll: true, money: 1500, want: vegas.ErrNotPurchasable},
		{name: "not on space", position: 3, target: intPtr(1), roll: true, money: 1500, want: vegas.ErrNotOnSpace},
		{name: "not rolled", position: 3, roll: false, money: 1500, want: vegas.ErrNotRolled},
		{name: "insufficient funds", position: 3, roll: true, money: 59, want: vegas.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())
			p := g.Players[0]
			p.Position = tt.position
			p.Money = tt.money
			g.Turn.Rolled = tt.roll

			_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionBuyProperty, PropertyID: tt.target})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.money, p.Money)
			assert.Empty(t, g.Owners)
		})
	}
}

func TestPayRentConservesMoney(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob", "Carol"}, vegas.NewFixedDice([2]int{1, 2}))
	g.Owners[3] = "p1"
	g.Players[1].Properties = []int{3}
	act(t, g, "p0", vegas.ActionRollDice)

	total := g.TotalMoney()
	carol := g.Players[2].Money

	paid := act(t, g, "p0", vegas.ActionPayRent).(*vegas.RentPaid)

	assert.Equal(4, paid.Amount)
	assert.Equal("p1", paid.OwnerID)
	assert.Equal(vegas.StartingMoney-4, g.Players[0].Money)
	assert.Equal(vegas.StartingMoney+4, g.Players[1].Money)
	assert.Equal(carol, g.Players[2].Money)
	assert.Equal(total, g.TotalMoney())

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionPayRent})
	assert.ErrorIs(err, vegas.ErrAlreadySettled)
}

func TestPayRentInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))
	g.Owners[3] = "p1"
	g.Players[0].Money = 3
	act(t, g, "p0", vegas.ActionRollDice)

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionPayRent})
	assert.ErrorIs(t, err, vegas.ErrInsufficientFunds)
	assert.Equal(t, 3, g.Players[0].Money)
	assert.Equal(t, vegas.StartingMoney, g.Players[1].Money)
	assert.False(t, g.Turn.Settled)
}

func TestPayRentWithoutOwner(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))
	act(t, g, "p0", vegas.ActionRollDice)

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionPayRent})
	assert.ErrorIs(t, err, vegas.ErrNoRentDue)

	g.Owners[3] = "p0"
	_, err = g.Apply("p0", vegas.Action{Type: vegas.ActionPayRent})
	assert.ErrorIs(t, err, vegas.ErrNoRentDue)
}

func TestRentFor(t *testing.T) {
	tests := []struct {
		name     string
		owners   map[int]string
		lastRoll *vegas.DiceRoll
		position int
		want     int
	}{
		{name: "base rent", owners: map[int]string{1: "p1"}, position: 1, want: 2},
		{name: "full colour group doubles", owners: map[int]string{1: "p1", 3: "p1"}, position: 1, want: 4},
		{name: "split colour group", owners: map[int]string{1: "p1", 3: "p0"}, position: 3, want: 4},
		{name: "one station", owners: map[int]string{5: "p1"}, position: 5, want: 25},
		{name: "three stations", owners: map[int]string{5: "p1", 16: "p1", 26: "p1"}, position: 16, want: 100},
		{name: "four stations", owners: map[int]string{5: "p1", 16: "p1", 26: "p1", 37: "p1"}, position: 37, want: 200},
		{name: "one utility", owners: map[int]string{13: "p1"}, lastRoll: &vegas.DiceRoll{Total: 8}, position: 13, want: 32},
		{name: "both utilities", owners: map[int]string{13: "p1", 29: "p1"}, lastRoll: &vegas.DiceRoll{Total: 8}, position: 29, want: 80},
		{name: "unowned", owners: map[int]string{}, position: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())
			g.Owners = tt.owners
			g.Turn.LastRoll = tt.lastRoll
			if got := g.RentFor(tt.position); got != tt.want {
				t.Errorf("RentFor(%d) = %d, %d expected", tt.position, got, tt.want)
			}
		})
	}
}

func TestPayTax(t *testing.T) {
	assert := assert.New(t)
	// 1 + 3 lands on the Resort Fee
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 3}))
	act(t, g, "p0", vegas.ActionRollDice)

	paid := act(t, g, "p0", vegas.ActionPayTax).(*vegas.TaxPaid)
	assert.Equal(200, paid.Amount)
	assert.Equal(vegas.StartingMoney-200, g.Players[0].Money)

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionPayTax})
	assert.ErrorIs(err, vegas.ErrAlreadySettled)
}

func TestLandingOnGoToJail(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{2, 2}))
	g.Players[0].Position = 28

	rolled := act(t, g, "p0", vegas.ActionRollDice).(*vegas.DiceRolled)

	assert.True(rolled.SentToJail)
	assert.True(rolled.InJail)
	assert.Equal(vegas.JailPosition, rolled.NewPosition)
	assert.True(g.Players[0].InJail)
	assert.Equal(vegas.StartingMoney, g.Players[0].Money)
}

func TestJailRolls(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 2}))
	alice := g.Players[0]
	alice.Position = vegas.JailPosition
	alice.InJail = true

	// Two failed attempts keep Alice in jail
	for attempt := 1; attempt <= 2; attempt++ {
		rolled := act(t, g, "p0", vegas.ActionRollDice).(*vegas.DiceRolled)
		assert.True(rolled.InJail)
		assert.Equal(attempt, rolled.JailTurns)
		assert.Equal(vegas.JailPosition, alice.Position)
		act(t, g, "p0", vegas.ActionEndTurn)
		act(t, g, "p1", vegas.ActionEndTurn)
	}

	// The third attempt forces the fine and moves her
	rolled := act(t, g, "p0", vegas.ActionRollDice).(*vegas.DiceRolled)
	assert.True(rolled.ReleasedFromJail)
	assert.Equal(vegas.JailFine, rolled.FinePaid)
	assert.False(alice.InJail)
	assert.Equal(vegas.JailPosition+3, alice.Position)
	assert.Equal(vegas.StartingMoney-vegas.JailFine, alice.Money)
}

func TestJailReleasedByDoubles(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{3, 3}))
	alice := g.Players[0]
	alice.Position = vegas.JailPosition
	alice.InJail = true

	rolled := act(t, g, "p0", vegas.ActionRollDice).(*vegas.DiceRolled)

	assert.True(t, rolled.ReleasedFromJail)
	assert.Zero(t, rolled.FinePaid)
	assert.Equal(t, vegas.JailPosition+6, alice.Position)
	assert.False(t, alice.InJail)
}

func TestPayJailFineAndUseCard(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())
	alice := g.Players[0]

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionPayJailFine})
	assert.ErrorIs(err, vegas.ErrNotInJail)

	alice.InJail = true
	_, err = g.Apply("p0", vegas.Action{Type: vegas.ActionUseJailCard})
	assert.ErrorIs(err, vegas.ErrNoJailCard)

	released := act(t, g, "p0", vegas.ActionPayJailFine).(*vegas.JailReleased)
	assert.Equal("fine", released.Method)
	assert.Equal(vegas.StartingMoney-vegas.JailFine, alice.Money)
	assert.False(alice.InJail)

	alice.InJail = true
	alice.HasGetOutOfJailFree = true
	released = act(t, g, "p0", vegas.ActionUseJailCard).(*vegas.JailReleased)
	assert.Equal("card", released.Method)
	assert.False(alice.HasGetOutOfJailFree)
	assert.False(alice.InJail)
}

func TestDrawCard(t *testing.T) {
	assert := assert.New(t)
	// 3 + 4 lands on the first Jackpot space; the unshuffled deck starts with "Advance to GO"
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{3, 4}))

	_, err := g.Apply("p0", vegas.Action{Type: vegas.ActionDrawCard})
	assert.ErrorIs(err, vegas.ErrNotCardSpace)

	act(t, g, "p0", vegas.ActionRollDice)
	drawn := act(t, g, "p0", vegas.ActionDrawCard).(*vegas.CardDrawn)

	assert.Equal(vegas.SpaceJackpot, drawn.Deck)
	assert.Equal(vegas.CardAdvanceTo, drawn.Card.Kind)
	assert.Equal(7, drawn.OldPosition)
	assert.Equal(0, drawn.NewPosition)
	assert.True(drawn.PassedGo)
	assert.Equal(vegas.StartingMoney+vegas.GoBonus, g.Players[0].Money)
	assert.Equal(2, drawn.Version)
	assert.Equal(2, g.Version)

	// Only one card per turn, even though the card left the player on GO.
	_, err = g.Apply("p0", vegas.Action{Type: vegas.ActionDrawCard})
	assert.ErrorIs(err, vegas.ErrAlreadyDrawn)
	assert.Equal(2, g.Version)
}

func TestDrawCasinoChestCard(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice([2]int{1, 1}))
	act(t, g, "p0", vegas.ActionRollDice)

	drawn := act(t, g, "p0", vegas.ActionDrawCard).(*vegas.CardDrawn)

	assert.Equal(t, vegas.SpaceCasinoCard, drawn.Deck)
	assert.Equal(t, vegas.CardCollect, drawn.Card.Kind)
	assert.Equal(t, vegas.StartingMoney+200, drawn.Money)
	assert.Equal(t, 2, g.Players[0].Position)
}

func TestDeclareBankruptcyEndsTwoPlayerGame(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())
	g.Owners[1] = "p0"
	g.Players[0].Properties = []int{1}

	ev := act(t, g, "p0", vegas.ActionDeclareBankruptcy).(*vegas.PlayerBankrupt)

	assert.True(ev.GameOver)
	assert.Equal("p1", ev.WinnerID)
	assert.Equal([]int{1}, ev.ReleasedProperties)
	assert.True(g.Finished)
	assert.Empty(g.Owners)
	assert.Equal("p1", g.CurrentPlayerID)

	_, err := g.Apply("p1", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, vegas.ErrGameOver)
}

func TestEliminatedPlayerIsSkipped(t *testing.T) {
	assert := assert.New(t)
	g := newGame(t, []string{"Alice", "Bob", "Carol"}, vegas.NewFixedDice())

	ev, err := g.Eliminate("p1")
	require.NoError(t, err)
	assert.False(ev.GameOver)
	assert.Equal("p0", g.CurrentPlayerID)

	ended := act(t, g, "p0", vegas.ActionEndTurn).(*vegas.TurnEnded)
	assert.Equal("p2", ended.CurrentPlayerID)
	ended = act(t, g, "p2", vegas.ActionEndTurn).(*vegas.TurnEnded)
	assert.Equal("p0", ended.CurrentPlayerID)

	_, err = g.Eliminate("p1")
	assert.ErrorIs(err, vegas.ErrPlayerBankrupt)
}

func TestEliminateCurrentPlayerPassesTurn(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob", "Carol"}, vegas.NewFixedDice())

	ev, err := g.Eliminate("p0")
	require.NoError(t, err)
	assert.Equal(t, "p1", ev.CurrentPlayerID)
	assert.Equal(t, 1, g.CurrentPlayerIndex)
}

func TestCloneIsIndependent(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())
	g.Owners[1] = "p0"
	g.Players[0].Properties = []int{1}

	c := g.Clone()
	c.Players[0].Money = 1
	c.Players[0].Properties = append(c.Players[0].Properties, 3)
	c.Owners[3] = "p0"

	assert.Equal(t, vegas.StartingMoney, g.Players[0].Money)
	assert.Equal(t, []int{1}, g.Players[0].Properties)
	assert.NotContains(t, g.Owners, 3)
}

func TestRehydrateAfterDecode(t *testing.T) {
	g := newGame(t, []string{"Alice", "Bob"}, vegas.NewFixedDice())
	g.Owners[3] = "p1"
	g.Players[1].Properties = []int{3}

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded vegas.GameState
	require.NoError(t, json.Unmarshal(data, &decoded))
	decoded.Rehydrate(vegas.WithDice(vegas.NewFixedDice([2]int{1, 2})))

	assert.Equal(t, "p1", decoded.Owners[3])
	assert.Len(t, decoded.Board, vegas.BoardSize)

	rolled, err := decoded.Apply("p0", vegas.Action{Type: vegas.ActionRollDice})
	require.NoError(t, err)
	assert.Equal(t, 3, rolled.(*vegas.DiceRolled).NewPosition)
}

func TestTokens(t *testing.T) {
	assert.True(t, vegas.ValidToken("elvis"))
	assert.False(t, vegas.ValidToken("thimble"))
	assert.False(t, vegas.ValidToken(""))
}

func intPtr(v int) *int { return &v }
