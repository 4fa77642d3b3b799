package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Suit orders ties between cards of equal rank: Spades < Clubs < Diamonds < Hearts.
type Suit int32

const (
	Spades Suit = iota
	Clubs
	Diamonds
	Hearts
)

// Rank is the face value of a card. Jack..Ace map to 11..14 and the Two is the
// highest rank at 15.
type Rank int32

const (
	RankThree Rank = 3
	RankJack  Rank = 11
	RankQueen Rank = 12
	RankKing  Rank = 13
	RankAce   Rank = 14
	RankTwo   Rank = 15
)

const (
	rankChars = "3456789TJQKA2"
	suitChars = "SCDH"
)

var ErrBadCardCode = errors.New("bad card code")

// Card is an immutable playing card.
type Card struct {
	Rank Rank
	Suit Suit
}

// ThreeOfSpades decides who leads the first trick.
var ThreeOfSpades = Card{Rank: RankThree, Suit: Spades}

// Strength totally orders the deck.
func (c Card) Strength() int32 {
	return int32(c.Rank)*10 + int32(c.Suit)
}

// Code renders the two-character wire form, e.g. "3S", "TD", "2H".
func (c Card) Code() string {
	if !c.valid() {
		return "??"
	}
	return string([]byte{rankChars[c.Rank-RankThree], suitChars[c.Suit]})
}

func (c Card) String() string { return c.Code() }

func (c Card) valid() bool {
	return c.Rank >= RankThree && c.Rank <= RankTwo && c.Suit >= Spades && c.Suit <= Hearts
}

func (c Card) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("%w: rank %d suit %d", ErrBadCardCode, c.Rank, c.Suit)
	}
	return []byte(c.Code()), nil
}

func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard accepts codes case-insensitively and ignores surrounding space.
func ParseCard(code string) (Card, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCardCode, code)
	}
	r := strings.IndexByte(rankChars, code[0])
	s := strings.IndexByte(suitChars, code[1])
	if r < 0 || s < 0 {
		return Card{}, fmt.Errorf("%w: %q", ErrBadCardCode, code)
	}
	return Card{Rank: RankThree + Rank(r), Suit: Suit(s)}, nil
}

// ParseCards parses every code or fails on the first bad one.
func ParseCards(codes []string) ([]Card, error) {
	out := make([]Card, 0, len(codes))
	for _, code := range codes {
		c, err := ParseCard(code)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Codes maps cards to their wire codes.
func Codes(cards []Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Code()
	}
	return out
}

// SortHand orders cards in place by ascending strength.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Strength() < cards[j].Strength()
	})
}

func sortedCopy(cards []Card) []Card {
	out := append([]Card(nil), cards...)
	SortHand(out)
	return out
}
