package domain

import (
	"math/rand"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		cards    string
		expected Kind
		size     int
	}{
		{name: "Single", cards: "3S", expected: Single, size: 1},
		{name: "Pair", cards: "3S 3C", expected: Pair, size: 2},
		{name: "Triple", cards: "7S 7C 7H", expected: Triple, size: 3},
		{name: "Quad", cards: "9S 9C 9D 9H", expected: Quad, size: 4},
		{name: "Straight 3", cards: "3S 4C 5D", expected: Straight, size: 3},
		{name: "Straight to Ace", cards: "TS JC QD KH AS", expected: Straight, size: 5},
		{name: "3 Consecutive Pairs", cards: "3S 3C 4S 4C 5D 5H", expected: PairRun, size: 3},
		{name: "4 Consecutive Pairs", cards: "6S 6C 7S 7C 8D 8H 9S 9H", expected: PairRun, size: 4},
		{name: "5 Consecutive Pairs", cards: "3S 3C 4S 4C 5D 5H 6S 6H 7C 7D", expected: PairRun, size: 5},
		{name: "Invalid: empty", cards: "", expected: Invalid},
		{name: "Invalid: mixed pair", cards: "3S 4S", expected: Invalid},
		{name: "Invalid: Two in Straight", cards: "KS AC 2D", expected: Invalid},
		{name: "Invalid: Consecutive Pairs with Two", cards: "KS KC AS AC 2S 2C", expected: Invalid},
		{name: "Invalid: Non-consecutive Pairs", cards: "3S 3C 5S 5C 6S 6C", expected: Invalid},
		{name: "Invalid: broken straight", cards: "3S 4S 6S", expected: Invalid},
		{name: "Invalid: two pairs", cards: "3S 3C 4S 4C", expected: Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			combo := Classify(mustCards(t, tt.cards))
			if combo.Kind != tt.expected {
				t.Fatalf("expected %v, got %v", tt.expected, combo.Kind)
			}
			if tt.expected != Invalid && combo.Size != tt.size {
				t.Errorf("size = %d, want %d", combo.Size, tt.size)
			}
		})
	}
}

func TestClassifyIgnoresOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, codes := range []string{"5D 3S 4C", "4S 4C 3S 3C 5D 5H", "9H 9S 9D 9C", "JS QS TS 9S 8S"} {
		cards := mustCards(t, codes)
		want := Classify(cards)
		for i := 0; i < 10; i++ {
			rng.Shuffle(len(cards), func(a, b int) { cards[a], cards[b] = cards[b], cards[a] })
			got := Classify(cards)
			if got.Kind != want.Kind || got.Size != want.Size || got.Highest() != want.Highest() {
				t.Fatalf("%s reordered as %v classified %v, want %v", codes, cards, got.Kind, want.Kind)
			}
		}
	}
}

func TestBeats(t *testing.T) {
	tests := []struct {
		name     string
		prev     string
		new      string
		expected bool
	}{
		{name: "Higher Single beats Lower Single", prev: "3S", new: "3C", expected: true},
		{name: "Lower Single loses", prev: "4S", new: "3D", expected: false},
		{name: "Higher Suit in Pair", prev: "8S 8C", new: "8D 8H", expected: true},
		{name: "Longer Straight cannot beat shorter", prev: "3S 4S 5S", new: "6S 7S 8S 9S", expected: false},
		{name: "Higher Straight same length", prev: "3S 4S 5S", new: "4C 5C 6C", expected: true},
		{name: "Pair cannot beat Single", prev: "3S", new: "4S 4C", expected: false},
		{name: "3-Pine chops Single 2", prev: "2S", new: "3S 3C 4S 4C 5S 5C", expected: true},
		{name: "3-Pine cannot chop Pair 2", prev: "2S 2C", new: "3S 3C 4S 4C 5S 5C", expected: false},
		{name: "Quad chops Single 2", prev: "2H", new: "3S 3C 3D 3H", expected: true},
		{name: "Quad chops Pair 2", prev: "2S 2C", new: "4S 4C 4D 4H", expected: true},
		{name: "Quad chops 3-Pine", prev: "3S 3C 4S 4C 5S 5C", new: "6S 6C 6D 6H", expected: true},
		{name: "Quad cannot chop Single Ace", prev: "AH", new: "6S 6C 6D 6H", expected: false},
		{name: "Higher Quad beats Quad", prev: "6S 6C 6D 6H", new: "7S 7C 7D 7H", expected: true},
		{name: "4-Pine chops Single 2", prev: "2H", new: "3S 3C 4S 4C 5S 5C 6S 6C", expected: true},
		{name: "4-Pine chops Pair 2", prev: "2D 2H", new: "3S 3C 4S 4C 5S 5C 6S 6C", expected: true},
		{name: "4-Pine chops 3-Pine", prev: "3S 3C 4S 4C 5S 5C", new: "6S 6C 7S 7C 8S 8C 9S 9C", expected: true},
		{name: "4-Pine chops Quad", prev: "3S 3C 3D 3H", new: "4S 4C 5S 5C 6S 6C 7S 7C", expected: true},
		{name: "Quad cannot chop 4-Pine", prev: "4S 4C 5S 5C 6S 6C 7S 7C", new: "KS KC KD KH", expected: false},
		{name: "5-Pine only beats 5-Pine", prev: "3S 3C 4S 4C 5S 5C 6S 6C", new: "7S 7C 8S 8C 9S 9C TS TC JS JC", expected: false},
		{name: "Higher 5-Pine beats 5-Pine", prev: "3S 3C 4S 4C 5S 5C 6S 6C 7S 7C", new: "4D 4H 5D 5H 6D 6H 7D 7H 8S 8C", expected: true},
		{name: "Higher 3-Pine beats Lower 3-Pine", prev: "3S 3C 4S 4C 5S 5C", new: "4D 4H 5D 5H 6S 6C", expected: true},
		{name: "3-Pine cannot beat 4-Pine", prev: "3S 3C 4S 4C 5S 5C 6S 6C", new: "8S 8C 9S 9C TS TC", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := Classify(mustCards(t, tt.prev))
			next := Classify(mustCards(t, tt.new))
			if got := Beats(&next, &prev); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestBeatsEmptyTableAndSelf(t *testing.T) {
	for _, codes := range []string{"3S", "2H", "7S 7C", "3S 4S 5S", "9S 9C 9D 9H", "3S 3C 4S 4C 5S 5C"} {
		c := Classify(mustCards(t, codes))
		if !Beats(&c, nil) {
			t.Errorf("%s should open an empty table", codes)
		}
		if Beats(&c, &c) {
			t.Errorf("%s should not beat itself", codes)
		}
	}
	invalid := Classify(mustCards(t, "3S 5C"))
	if Beats(&invalid, nil) {
		t.Error("invalid combination opened an empty table")
	}
}

func TestIsUnconditional(t *testing.T) {
	four := Classify(mustCards(t, "3S 3C 4S 4C 5S 5C 6S 6C"))
	three := Classify(mustCards(t, "3S 3C 4S 4C 5S 5C"))
	quad := Classify(mustCards(t, "3S 3C 3D 3H"))
	if !IsUnconditional(&four) {
		t.Error("four-pair run should be unconditional")
	}
	if IsUnconditional(&three) || IsUnconditional(&quad) || IsUnconditional(nil) {
		t.Error("only the four-pair run is unconditional")
	}
}
