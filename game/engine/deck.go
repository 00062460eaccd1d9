package engine

// Card is an effect card drawn from a game's pile
type Card string

const (
	CardAdvance3       Card = "Advance 3"
	CardPlayAgain      Card = "Play again"
	CardRetreat2       Card = "Retreat 2"
	CardSwapWithLeader Card = "Swap with leader"
)

// cardSet is the fixed catalog: exactly one of each card
var cardSet = []Card{CardAdvance3, CardPlayAgain, CardRetreat2, CardSwapWithLeader}

// CardSet returns a fresh copy of the fixed card catalog
func CardSet() []Card {
	return append(make([]Card, 0, len(cardSet)), cardSet...)
}

// Valid reports whether c is one of the known cards
func (c Card) Valid() bool {
	switch c {
	case CardAdvance3, CardPlayAgain, CardRetreat2, CardSwapWithLeader:
		return true
	}
	return false
}

// Deck is the card pile of a single game, used as a stack: the top card is
// the last element.
type Deck struct {
	cards []Card
	rng   Rand
}

// NewDeck returns a freshly shuffled full deck
func NewDeck(rng Rand) *Deck {
	d := &Deck{rng: rng}
	d.Reshuffle()
	return d
}

// RestoreDeck wraps a persisted pile. The slice is copied.
func RestoreDeck(cards []Card, rng Rand) *Deck {
	return &Deck{
		cards: append(make([]Card, 0, len(cards)), cards...),
		rng:   rng,
	}
}

// Reshuffle replaces the pile with the full card set in a uniformly random
// order (Fisher-Yates)
func (d *Deck) Reshuffle() {
	d.cards = CardSet()
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card, refilling an empty pile first
func (d *Deck) Draw() Card {
	if len(d.cards) == 0 {
		d.Reshuffle()
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top
}

// Cards returns a copy of the pile, bottom first. Never nil.
func (d *Deck) Cards() []Card {
	return append(make([]Card, 0, len(d.cards)), d.cards...)
}

// Len returns the number of cards left in the pile
func (d *Deck) Len() int {
	return len(d.cards)
}
