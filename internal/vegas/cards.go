package vegas

import "math/rand"

type CardKind string

const (
	CardCollect   CardKind = "collect"
	CardAdvanceTo CardKind = "advance_to"
	CardMoveBack  CardKind = "move_back"
	CardGoToJail  CardKind = "go_to_jail"
	CardJailFree  CardKind = "jail_free"
)

type Card struct {
	Text   string   `json:"text"`
	Kind   CardKind `json:"kind"`
	Amount int      `json:"amount,omitempty"`
	Target int      `json:"target,omitempty"`
	Steps  int      `json:"steps,omitempty"`
}

var jackpotCards = []Card{
	{Text: "Advance to GO", Kind: CardAdvanceTo, Target: 0},
	{Text: "Hit the jackpot on the Fremont Street slots. Collect $150", Kind: CardCollect, Amount: 150},
	{Text: "Advance to Mandalay Bay", Kind: CardAdvanceTo, Target: 41},
	{Text: "Caught counting cards. Go directly to jail", Kind: CardGoToJail},
	{Text: "Comped suite. Get out of jail free", Kind: CardJailFree},
	{Text: "Go back three spaces", Kind: CardMoveBack, Steps: 3},
	{Text: "Ride the monorail to Harrah's Monorail Station", Kind: CardAdvanceTo, Target: 26},
	{Text: "Poker tournament winnings. Collect $100", Kind: CardCollect, Amount: 100},
}

var casinoChestCards = []Card{
	{Text: "Cashier error in your favour. Collect $200", Kind: CardCollect, Amount: 200},
	{Text: "Advance to GO", Kind: CardAdvanceTo, Target: 0},
	{Text: "Pit boss owes you one. Get out of jail free", Kind: CardJailFree},
	{Text: "Caught marking chips. Go directly to jail", Kind: CardGoToJail},
	{Text: "Buffet refund. Collect $20", Kind: CardCollect, Amount: 20},
	{Text: "Show tickets resold. Collect $50", Kind: CardCollect, Amount: 50},
	{Text: "Advance to The Venetian", Kind: CardAdvanceTo, Target: 24},
	{Text: "Birthday in Vegas. Collect $10", Kind: CardCollect, Amount: 10},
}

// Deck is a cycling draw order over one of the card lists.
type Deck struct {
	Order []int `json:"order"`
	Next  int   `json:"next"`
}

func newDeck(size int, shuffle bool) Deck {
	if shuffle {
		return Deck{Order: rand.Perm(size)}
	}
	order := make([]int, size)
	for i := range order {
		order[i] = i
	}
	return Deck{Order: order}
}

func (d *Deck) draw(cards []Card) Card {
	if len(d.Order) == 0 {
		*d = newDeck(len(cards), false)
	}
	card := cards[d.Order[d.Next%len(d.Order)]%len(cards)]
	d.Next = (d.Next + 1) % len(d.Order)
	return card
}
