package domain

import (
	"errors"
	"math/rand"
)

const (
	DeckSize     = 52
	HandSize     = 13
	SeatsPerRoom = 4
)

var ErrDeckExhausted = errors.New("not enough cards left in deck")

// Deck is owned by one room while dealing. Cards are drawn from the top.
type Deck struct {
	cards []Card
}

// NewDeck returns an ordered 52-card deck.
func NewDeck() *Deck {
	cards := make([]Card, 0, DeckSize)
	for r := RankThree; r <= RankTwo; r++ {
		for s := Spades; s <= Hearts; s++ {
			cards = append(cards, Card{Rank: r, Suit: s})
		}
	}
	return &Deck{cards: cards}
}

// Shuffle permutes the remaining cards with Fisher-Yates.
func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.cards), func(i, j int) { d.cards[i], d.cards[j] = d.cards[j], d.cards[i] })
}

// Draw removes n cards from the top of the deck.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n < 0 || n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	out := append([]Card(nil), d.cards[:n]...)
	d.cards = d.cards[n:]
	return out, nil
}

func (d *Deck) Len() int { return len(d.cards) }
