package domain

import "strconv"

// Kind is the classification of a set of cards.
type Kind int

const (
	Invalid Kind = iota
	Single
	Pair
	Triple
	Quad
	Straight // 3+ distinct consecutive ranks, no Two
	PairRun  // consecutive pairs (doi thong), 3 to 5 pairs, no Two
)

const (
	minPairRun = 3
	maxPairRun = 5
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Pair:
		return "pair"
	case Triple:
		return "triple"
	case Quad:
		return "quad"
	case Straight:
		return "straight"
	case PairRun:
		return "pair_run"
	default:
		return "invalid"
	}
}

// Combination is a classified play. Size counts pairs for a PairRun and cards otherwise.
type Combination struct {
	Kind  Kind
	Cards []Card // ascending
	Size  int
}

func (c *Combination) Valid() bool { return c != nil && c.Kind != Invalid }

// Highest returns the strongest card, which decides same-kind comparisons.
func (c *Combination) Highest() Card {
	return c.Cards[len(c.Cards)-1]
}

// Label is the wire name, with the pair count appended for pair runs.
func (c *Combination) Label() string {
	if c.Kind == PairRun {
		return c.Kind.String() + "_" + strconv.Itoa(c.Size)
	}
	return c.Kind.String()
}

// Classify identifies the combination formed by cards. The input order does not
// matter and the input slice is left untouched.
func Classify(cards []Card) Combination {
	if len(cards) == 0 {
		return Combination{Kind: Invalid}
	}
	sorted := sortedCopy(cards)
	n := len(sorted)

	if allSameRank(sorted) {
		switch n {
		case 1:
			return Combination{Kind: Single, Cards: sorted, Size: 1}
		case 2:
			return Combination{Kind: Pair, Cards: sorted, Size: 2}
		case 3:
			return Combination{Kind: Triple, Cards: sorted, Size: 3}
		case 4:
			return Combination{Kind: Quad, Cards: sorted, Size: 4}
		}
		return Combination{Kind: Invalid}
	}

	if isStraight(sorted) {
		return Combination{Kind: Straight, Cards: sorted, Size: n}
	}

	if isPairRun(sorted) && n/2 >= minPairRun && n/2 <= maxPairRun {
		return Combination{Kind: PairRun, Cards: sorted, Size: n / 2}
	}

	return Combination{Kind: Invalid}
}

// Beats reports whether challenger may be played on top of current. A nil
// current means an empty table.
func Beats(challenger, current *Combination) bool {
	if !challenger.Valid() {
		return false
	}
	if current == nil {
		return true
	}
	if !current.Valid() {
		return false
	}

	// Pair runs of different lengths are different classes and only meet as bombs.
	sameClass := challenger.Kind == current.Kind && (challenger.Kind != PairRun || challenger.Size == current.Size)
	if sameClass {
		if len(challenger.Cards) != len(current.Cards) {
			return false
		}
		return challenger.Highest().Strength() > current.Highest().Strength()
	}

	// Chopping (chat heo): bombs beat Twos and smaller bombs across kinds.
	run := func(c *Combination, size int) bool { return c.Kind == PairRun && c.Size == size }
	switch {
	case current.Kind == Single && current.Highest().Rank == RankTwo:
		return run(challenger, 3) || challenger.Kind == Quad || run(challenger, 4)
	case current.Kind == Pair && current.Highest().Rank == RankTwo:
		return challenger.Kind == Quad || run(challenger, 4)
	case run(current, 3):
		return challenger.Kind == Quad || run(challenger, 4)
	case current.Kind == Quad:
		return run(challenger, 4)
	}
	return false
}

// IsUnconditional marks the four-pair run, which may be played out of turn.
func IsUnconditional(c *Combination) bool {
	return c != nil && c.Kind == PairRun && c.Size == 4
}

func allSameRank(cards []Card) bool {
	for _, c := range cards[1:] {
		if c.Rank != cards[0].Rank {
			return false
		}
	}
	return true
}

// isStraight expects cards sorted ascending.
func isStraight(cards []Card) bool {
	if len(cards) < 3 {
		return false
	}
	for i, c := range cards {
		if c.Rank == RankTwo {
			return false
		}
		if i > 0 && c.Rank != cards[i-1].Rank+1 {
			return false
		}
	}
	return true
}

// isPairRun expects cards sorted ascending.
func isPairRun(cards []Card) bool {
	if len(cards) < 6 || len(cards)%2 != 0 {
		return false
	}
	for i := 0; i < len(cards); i += 2 {
		if cards[i].Rank == RankTwo || cards[i].Rank != cards[i+1].Rank {
			return false
		}
		if i > 0 && cards[i].Rank != cards[i-2].Rank+1 {
			return false
		}
	}
	return true
}
