package vegas

import (
	"math/rand"
	"sync"
)

// Dice produces a pair of six-sided dice values.
type Dice interface {
	Roll() (int, int)
}

type randomDice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomDice returns uniform dice seeded from seed.
func NewRandomDice(seed int64) Dice {
	return &randomDice{rng: rand.New(rand.NewSource(seed))}
}

func (d *randomDice) Roll() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(6) + 1, d.rng.Intn(6) + 1
}

// FixedDice replays the given pairs in order, cycling when exhausted.
type FixedDice struct {
	mu    sync.Mutex
	Pairs [][2]int
	next  int
}

func NewFixedDice(pairs ...[2]int) *FixedDice {
	return &FixedDice{Pairs: pairs}
}

func (d *FixedDice) Roll() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Pairs) == 0 {
		return 1, 1
	}
	pair := d.Pairs[d.next%len(d.Pairs)]
	d.next++
	return pair[0], pair[1]
}

type DiceRoll struct {
	Die1    int  `json:"die1"`
	Die2    int  `json:"die2"`
	Total   int  `json:"total"`
	Doubles bool `json:"doubles"`
}

func newDiceRoll(d1, d2 int) DiceRoll {
	return DiceRoll{Die1: d1, Die2: d2, Total: d1 + d2, Doubles: d1 == d2}
}
