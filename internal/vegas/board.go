package vegas

type SpaceType string

const (
	SpaceGo         SpaceType = "go"
	SpaceProperty   SpaceType = "property"
	SpaceStation    SpaceType = "station"
	SpaceUtility    SpaceType = "utility"
	SpaceTax        SpaceType = "tax"
	SpaceJackpot    SpaceType = "jackpot"
	SpaceCasinoCard SpaceType = "casino_chest"
	SpaceJail       SpaceType = "jail"
	SpaceParking    SpaceType = "parking"
	SpaceGoToJail   SpaceType = "go_to_jail"
	SpaceFree       SpaceType = "free"
)

type Group string

const (
	GroupBrown     Group = "brown"
	GroupLightBlue Group = "light_blue"
	GroupPink      Group = "pink"
	GroupOrange    Group = "orange"
	GroupRed       Group = "red"
	GroupYellow    Group = "yellow"
	GroupGreen     Group = "green"
	GroupDarkBlue  Group = "dark_blue"
)

const (
	BoardSize     = 42
	GoBonus       = 200
	StartingMoney = 1500
	JailFine      = 50
	MaxJailTurns  = 3

	JailPosition     = 11
	GoToJailPosition = 32
)

type Space struct {
	Position int       `json:"position"`
	Name     string    `json:"name"`
	Type     SpaceType `json:"type"`
	Group    Group     `json:"group,omitempty"`
	Price    int       `json:"price,omitempty"`
	// Rent is the base rent for properties. Stations and utilities derive
	// theirs from ownership counts.
	Rent int `json:"rent,omitempty"`
	// Amount is the tax charged on tax spaces.
	Amount int `json:"amount,omitempty"`
}

// Purchasable reports whether the space can be owned.
func (s Space) Purchasable() bool {
	return s.Type == SpaceProperty || s.Type == SpaceStation || s.Type == SpaceUtility
}

// IsCardSpace reports whether landing on the space draws a card.
func (s Space) IsCardSpace() bool {
	return s.Type == SpaceJackpot || s.Type == SpaceCasinoCard
}

var board = [BoardSize]Space{
	{Name: "GO", Type: SpaceGo},
	{Name: "Fremont Street", Type: SpaceProperty, Group: GroupBrown, Price: 60, Rent: 2},
	{Name: "Casino Chest", Type: SpaceCasinoCard},
	{Name: "Binion's Row", Type: SpaceProperty, Group: GroupBrown, Price: 60, Rent: 4},
	{Name: "Resort Fee", Type: SpaceTax, Amount: 200},
	{Name: "Sahara Monorail Station", Type: SpaceStation, Price: 200},
	{Name: "Arts District", Type: SpaceProperty, Group: GroupLightBlue, Price: 100, Rent: 6},
	{Name: "Jackpot", Type: SpaceJackpot},
	{Name: "Container Park", Type: SpaceProperty, Group: GroupLightBlue, Price: 100, Rent: 6},
	{Name: "Neon Museum", Type: SpaceProperty, Group: GroupLightBlue, Price: 120, Rent: 8},
	{Name: "Welcome to Fabulous Las Vegas", Type: SpaceFree},
	{Name: "Clark County Jail", Type: SpaceJail},
	{Name: "Stratosphere Tower", Type: SpaceProperty, Group: GroupPink, Price: 140, Rent: 10},
	{Name: "Hoover Dam Power", Type: SpaceUtility, Price: 150},
	{Name: "Sahara Avenue", Type: SpaceProperty, Group: GroupPink, Price: 140, Rent: 10},
	{Name: "Riviera Row", Type: SpaceProperty, Group: GroupPink, Price: 160, Rent: 12},
	{Name: "Westgate Monorail Station", Type: SpaceStation, Price: 200},
	{Name: "Circus Circus", Type: SpaceProperty, Group: GroupOrange, Price: 180, Rent: 14},
	{Name: "Casino Chest", Type: SpaceCasinoCard},
	{Name: "Wynn Plaza", Type: SpaceProperty, Group: GroupOrange, Price: 180, Rent: 14},
	{Name: "Encore Way", Type: SpaceProperty, Group: GroupOrange, Price: 200, Rent: 16},
	{Name: "Valet Parking", Type: SpaceParking},
	{Name: "Treasure Island", Type: SpaceProperty, Group: GroupRed, Price: 220, Rent: 18},
	{Name: "Jackpot", Type: SpaceJackpot},
	{Name: "The Venetian", Type: SpaceProperty, Group: GroupRed, Price: 220, Rent: 18},
	{Name: "The Palazzo", Type: SpaceProperty, Group: GroupRed, Price: 240, Rent: 20},
	{Name: "Harrah's Monorail Station", Type: SpaceStation, Price: 200},
	{Name: "Caesars Palace", Type: SpaceProperty, Group: GroupYellow, Price: 260, Rent: 22},
	{Name: "The Mirage", Type: SpaceProperty, Group: GroupYellow, Price: 260, Rent: 22},
	{Name: "Lake Mead Water", Type: SpaceUtility, Price: 150},
	{Name: "Bellagio Fountains", Type: SpaceProperty, Group: GroupYellow, Price: 280, Rent: 24},
	{Name: "Little White Chapel", Type: SpaceFree},
	{Name: "Go To Jail", Type: SpaceGoToJail},
	{Name: "Paris Las Vegas", Type: SpaceProperty, Group: GroupGreen, Price: 300, Rent: 26},
	{Name: "Planet Hollywood", Type: SpaceProperty, Group: GroupGreen, Price: 300, Rent: 26},
	{Name: "Casino Chest", Type: SpaceCasinoCard},
	{Name: "The Cosmopolitan", Type: SpaceProperty, Group: GroupGreen, Price: 320, Rent: 28},
	{Name: "MGM Grand Monorail Station", Type: SpaceStation, Price: 200},
	{Name: "Jackpot", Type: SpaceJackpot},
	{Name: "Luxor", Type: SpaceProperty, Group: GroupDarkBlue, Price: 350, Rent: 35},
	{Name: "High Roller Tax", Type: SpaceTax, Amount: 100},
	{Name: "Mandalay Bay", Type: SpaceProperty, Group: GroupDarkBlue, Price: 400, Rent: 50},
}

func init() {
	for i := range board {
		board[i].Position = i
	}
}

// Board returns a copy of the fixed board.
func Board() []Space {
	spaces := make([]Space, BoardSize)
	copy(spaces, board[:])
	return spaces
}

// SpaceAt returns the space at position, wrapping out-of-range values.
func SpaceAt(position int) Space {
	return board[((position%BoardSize)+BoardSize)%BoardSize]
}

// groupPositions returns the positions sharing a rent group with space: the
// colour group for properties, the space type for stations and utilities.
func groupPositions(space Space) []int {
	positions := make([]int, 0, 4)
	for _, s := range board {
		if space.Type == SpaceProperty {
			if s.Type == SpaceProperty && s.Group == space.Group {
				positions = append(positions, s.Position)
			}
		} else if s.Type == space.Type {
			positions = append(positions, s.Position)
		}
	}
	return positions
}
