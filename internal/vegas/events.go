package vegas

type EventType string

const (
	EventDiceRolled        EventType = "dice_rolled"
	EventPropertyPurchased EventType = "property_purchased"
	EventRentPaid          EventType = "rent_paid"
	EventTaxPaid           EventType = "tax_paid"
	EventCardDrawn         EventType = "card_drawn"
	EventJailReleased      EventType = "jail_released"
	EventTurnEnded         EventType = "turn_ended"
	EventPlayerBankrupt    EventType = "player_bankrupt"
)

// Event is the outcome of an accepted action. Every event names the acting
// player and the player whose turn it is once the action has been applied.
type Event interface {
	EventType() EventType
	base() *EventBase
}

type EventBase struct {
	PlayerID           string `json:"playerId"`
	CurrentPlayerID    string `json:"currentPlayerId"`
	CurrentPlayerIndex int    `json:"currentPlayerIndex"`
	Version            int    `json:"version"`
}

func (b *EventBase) base() *EventBase { return b }

type DiceRolled struct {
	EventBase
	Roll             DiceRoll `json:"roll"`
	OldPosition      int      `json:"oldPosition"`
	NewPosition      int      `json:"newPosition"`
	PassedGo         bool     `json:"passedGo"`
	GoBonus          int      `json:"goBonus"`
	Money            int      `json:"money"`
	InJail           bool     `json:"inJail"`
	JailTurns        int      `json:"jailTurns"`
	SentToJail       bool     `json:"sentToJail"`
	ReleasedFromJail bool     `json:"releasedFromJail"`
	FinePaid         int      `json:"finePaid,omitempty"`
	Space            Space    `json:"space"`
}

func (*DiceRolled) EventType() EventType { return EventDiceRolled }

type PropertyPurchased struct {
	EventBase
	PropertyID int    `json:"propertyId"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Money      int    `json:"money"`
}

func (*PropertyPurchased) EventType() EventType { return EventPropertyPurchased }

type RentPaid struct {
	EventBase
	OwnerID    string `json:"ownerId"`
	PropertyID int    `json:"propertyId"`
	Amount     int    `json:"amount"`
	Money      int    `json:"money"`
	OwnerMoney int    `json:"ownerMoney"`
}

func (*RentPaid) EventType() EventType { return EventRentPaid }

type TaxPaid struct {
	EventBase
	PropertyID int `json:"propertyId"`
	Amount     int `json:"amount"`
	Money      int `json:"money"`
}

func (*TaxPaid) EventType() EventType { return EventTaxPaid }

type CardDrawn struct {
	EventBase
	Deck                SpaceType `json:"deck"`
	Card                Card      `json:"card"`
	OldPosition         int       `json:"oldPosition"`
	NewPosition         int       `json:"newPosition"`
	PassedGo            bool      `json:"passedGo"`
	Money               int       `json:"money"`
	InJail              bool      `json:"inJail"`
	HasGetOutOfJailFree bool      `json:"hasGetOutOfJailFree"`
}

func (*CardDrawn) EventType() EventType { return EventCardDrawn }

type JailReleased struct {
	EventBase
	Method              string `json:"method"`
	Money               int    `json:"money"`
	HasGetOutOfJailFree bool   `json:"hasGetOutOfJailFree"`
}

func (*JailReleased) EventType() EventType { return EventJailReleased }

type TurnEnded struct {
	EventBase
	PreviousPlayerID string `json:"previousPlayerId"`
}

func (*TurnEnded) EventType() EventType { return EventTurnEnded }

type PlayerBankrupt struct {
	EventBase
	ReleasedProperties []int  `json:"releasedProperties"`
	GameOver           bool   `json:"gameOver"`
	WinnerID           string `json:"winnerId,omitempty"`
}

func (*PlayerBankrupt) EventType() EventType { return EventPlayerBankrupt }
