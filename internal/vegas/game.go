package vegas

import (
	"slices"
	"time"
)

type Player struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Token               string `json:"token"`
	Position            int    `json:"position"`
	Money               int    `json:"money"`
	Properties          []int  `json:"properties"`
	InJail              bool   `json:"inJail"`
	JailTurns           int    `json:"jailTurns"`
	HasGetOutOfJailFree bool   `json:"hasGetOutOfJailFree"`
	Bankrupt            bool   `json:"bankrupt"`
}

// Turn is the server's record of what the current player has done since the
// turn began. It is reset by end_turn.
type Turn struct {
	Rolled   bool      `json:"rolled"`
	Drawn    bool      `json:"drawn"`
	Settled  bool      `json:"settled"`
	LastRoll *DiceRoll `json:"lastRoll,omitempty"`
}

type GameState struct {
	Players            []*Player      `json:"players"`
	CurrentPlayerIndex int            `json:"currentPlayerIndex"`
	CurrentPlayerID    string         `json:"currentPlayerId"`
	Board              []Space        `json:"board"`
	Owners             map[int]string `json:"owners"`
	Turn               Turn           `json:"turn"`
	JackpotDeck        Deck           `json:"jackpotDeck"`
	CasinoChestDeck    Deck           `json:"casinoChestDeck"`
	Finished           bool           `json:"finished"`
	WinnerID           string         `json:"winnerId,omitempty"`
	// Version counts the events applied so far. Every event carries the
	// version it produced.
	Version int `json:"version"`

	dice Dice
}

// Participant is a seat frozen into the game at start.
type Participant struct {
	ID    string
	Name  string
	Token string
}

type Option func(*gameOptions)

type gameOptions struct {
	dice          Dice
	shuffleCards  bool
	startingMoney int
}

func WithDice(d Dice) Option {
	return func(o *gameOptions) { o.dice = d }
}

// WithUnshuffledCards keeps both card decks in their printed order.
func WithUnshuffledCards() Option {
	return func(o *gameOptions) { o.shuffleCards = false }
}

func WithStartingMoney(amount int) Option {
	return func(o *gameOptions) { o.startingMoney = amount }
}

func buildOptions(opts []Option) gameOptions {
	o := gameOptions{shuffleCards: true, startingMoney: StartingMoney}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dice == nil {
		o.dice = NewRandomDice(time.Now().UnixNano())
	}
	return o
}

// NewGame creates the game state for the given participants. Their order is
// the turn order for the whole game.
func NewGame(participants []Participant, opts ...Option) *GameState {
	o := buildOptions(opts)

	players := make([]*Player, 0, len(participants))
	for _, p := range participants {
		players = append(players, &Player{
			ID:         p.ID,
			Name:       p.Name,
			Token:      p.Token,
			Money:      o.startingMoney,
			Properties: make([]int, 0),
		})
	}

	g := &GameState{
		Players:         players,
		Board:           Board(),
		Owners:          make(map[int]string),
		JackpotDeck:     newDeck(len(jackpotCards), o.shuffleCards),
		CasinoChestDeck: newDeck(len(casinoChestCards), o.shuffleCards),
		dice:            o.dice,
	}
	g.syncCurrent()
	return g
}

// Rehydrate restores the parts of a game that are not serialized, after the
// state was decoded from JSON.
func (g *GameState) Rehydrate(opts ...Option) {
	o := buildOptions(opts)
	g.dice = o.dice
	g.Board = Board()
	if g.Owners == nil {
		g.Owners = make(map[int]string)
	}
	for _, p := range g.Players {
		if p.Properties == nil {
			p.Properties = make([]int, 0)
		}
	}
	g.syncCurrent()
}

// Clone returns a deep copy safe to hand out while the original keeps mutating.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	c := *g
	c.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		cp.Properties = slices.Clone(p.Properties)
		c.Players[i] = &cp
	}
	c.Board = slices.Clone(g.Board)
	c.Owners = make(map[int]string, len(g.Owners))
	for k, v := range g.Owners {
		c.Owners[k] = v
	}
	if g.Turn.LastRoll != nil {
		roll := *g.Turn.LastRoll
		c.Turn.LastRoll = &roll
	}
	c.JackpotDeck.Order = slices.Clone(g.JackpotDeck.Order)
	c.CasinoChestDeck.Order = slices.Clone(g.CasinoChestDeck.Order)
	return &c
}

func (g *GameState) PlayerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g *GameState) Player(id string) *Player {
	if i := g.PlayerIndex(id); i >= 0 {
		return g.Players[i]
	}
	return nil
}

func (g *GameState) CurrentPlayer() *Player {
	if len(g.Players) == 0 {
		return nil
	}
	return g.Players[g.CurrentPlayerIndex]
}

// ActiveCount is the number of players not yet eliminated.
func (g *GameState) ActiveCount() int {
	count := 0
	for _, p := range g.Players {
		if !p.Bankrupt {
			count++
		}
	}
	return count
}

// TotalMoney sums every player's balance.
func (g *GameState) TotalMoney() int {
	total := 0
	for _, p := range g.Players {
		total += p.Money
	}
	return total
}

func (g *GameState) syncCurrent() {
	if len(g.Players) == 0 {
		g.CurrentPlayerID = ""
		return
	}
	g.CurrentPlayerID = g.Players[g.CurrentPlayerIndex].ID
}

// advanceTurn moves to the next player in seat order who is still in the game.
func (g *GameState) advanceTurn() {
	n := len(g.Players)
	for i := 1; i <= n; i++ {
		next := (g.CurrentPlayerIndex + i) % n
		if !g.Players[next].Bankrupt {
			g.CurrentPlayerIndex = next
			break
		}
	}
	g.Turn = Turn{}
	g.syncCurrent()
}

func (g *GameState) sendToJail(p *Player) {
	p.Position = JailPosition
	p.InJail = true
	p.JailTurns = 0
}

func (g *GameState) releaseFromJail(p *Player) {
	p.InJail = false
	p.JailTurns = 0
}

// Eliminate removes a player from play: their properties return to the bank
// and, if it was their turn, play passes to the next player. The game ends
// when a single player remains.
func (g *GameState) Eliminate(playerID string) (*PlayerBankrupt, error) {
	if g.Finished {
		return nil, ErrGameOver
	}
	idx := g.PlayerIndex(playerID)
	if idx < 0 {
		return nil, ErrNotInGame
	}
	p := g.Players[idx]
	if p.Bankrupt {
		return nil, ErrPlayerBankrupt
	}

	released := slices.Clone(p.Properties)
	for _, pos := range released {
		delete(g.Owners, pos)
	}
	p.Properties = make([]int, 0)
	p.Money = 0
	p.Bankrupt = true
	p.InJail = false
	p.JailTurns = 0
	p.HasGetOutOfJailFree = false

	ev := &PlayerBankrupt{ReleasedProperties: released}

	if g.ActiveCount() <= 1 {
		g.Finished = true
		for _, other := range g.Players {
			if !other.Bankrupt {
				g.WinnerID = other.ID
				break
			}
		}
		if idx == g.CurrentPlayerIndex {
			g.advanceTurn()
		}
		ev.GameOver = true
		ev.WinnerID = g.WinnerID
	} else if idx == g.CurrentPlayerIndex {
		g.advanceTurn()
	}

	ev.PlayerID = playerID
	g.stamp(ev)
	return ev, nil
}

func (g *GameState) stamp(ev Event) {
	g.Version++
	b := ev.base()
	b.Version = g.Version
	b.CurrentPlayerID = g.CurrentPlayerID
	b.CurrentPlayerIndex = g.CurrentPlayerIndex
}
