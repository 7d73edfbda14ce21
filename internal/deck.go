package internal

import "math/rand"

// Deck is the room's draw pile. Tokens are conserved: every card ever created
// is in the deck, in a hand, in a revealed pile or drawn into an open exchange.
type Deck struct {
	cards       []Role
	rng         *rand.Rand
	created     int
	synthesized int
}

// CopiesPerRole sizes the deck for the number of seated players.
func CopiesPerRole(playerCount int) int {
	switch {
	case playerCount <= 4:
		return 3
	case playerCount <= 7:
		return 4
	default:
		return 5
	}
}

func NewDeck(playerCount int, rng *rand.Rand) *Deck {
	copies := CopiesPerRole(playerCount)
	cards := make([]Role, 0, copies*len(Roles))
	for _, role := range Roles {
		for i := 0; i < copies; i++ {
			cards = append(cards, role)
		}
	}

	d := &Deck{cards: cards, rng: rng, created: len(cards)}
	d.Shuffle()
	return d
}

func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes n tokens from the top. If the pile is short it first
// synthesizes needed-available+ReplenishPadding tokens cycling the roles.
func (d *Deck) Draw(n int) []Role {
	if n <= 0 {
		return nil
	}
	if n > len(d.cards) {
		d.replenish(n - len(d.cards) + ReplenishPadding)
	}

	drawn := make([]Role, n)
	copy(drawn, d.cards[len(d.cards)-n:])
	d.cards = d.cards[:len(d.cards)-n]
	return drawn
}

func (d *Deck) ReturnAndReshuffle(cards ...Role) {
	d.cards = append(d.cards, cards...)
	d.Shuffle()
}

func (d *Deck) replenish(count int) {
	for i := 0; i < count; i++ {
		d.cards = append(d.cards, Roles[i%len(Roles)])
	}
	d.created += count
	d.synthesized += count
	d.Shuffle()
}

func (d *Deck) Len() int { return len(d.cards) }

// Created is the number of tokens that exist for this game, synthesized ones included.
func (d *Deck) Created() int { return d.created }

func (d *Deck) Synthesized() int { return d.synthesized }

// Cards returns a copy of the pile, bottom first.
func (d *Deck) Cards() []Role {
	out := make([]Role, len(d.cards))
	copy(out, d.cards)
	return out
}
