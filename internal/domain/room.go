package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Phase is the lifecycle stage of a room.
type Phase string

const (
	PhaseLobby    Phase = "Lobby"
	PhasePlaying  Phase = "Playing"
	PhaseFinished Phase = "Finished"
)

// Finish reasons reported once a room reaches PhaseFinished.
const (
	FinishReasonWinner     = "winner"
	FinishReasonPlayerLeft = "player_left"
)

var (
	ErrWrongPhase         = errors.New("action not allowed in current phase")
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadySeated      = errors.New("already in room")
	ErrNotSeated          = errors.New("player not in room")
	ErrCannotStart        = errors.New("room needs four ready players")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrNoCards            = errors.New("no cards selected")
	ErrDuplicateCard      = errors.New("card selected twice")
	ErrCardNotInHand      = errors.New("card not in hand")
	ErrInvalidCombination = errors.New("invalid combination")
	ErrDoesNotBeat        = errors.New("does not beat current trick")
	ErrEmptyTable         = errors.New("cannot pass on an empty table")
)

// Seat is a player's fixed position in turn order.
type Seat struct {
	PlayerID string
	Name     string
	Ready    bool
	Hand     []Card
}

// Room is the state machine for a single table. It does no locking of its own;
// callers serialize access.
type Room struct {
	ID    string
	Phase Phase
	Seats []*Seat

	CurrentTurn  string
	CurrentTrick *Combination
	LastPlayedBy string
	PassCount    int
	Winner       string

	FinishReason string
	FinishedAt   time.Time

	rng *rand.Rand
	now func() time.Time
}

// NewRoom returns an empty lobby. A nil rng gets a time-seeded source.
func NewRoom(id string, rng *rand.Rand) *Room {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Room{ID: id, Phase: PhaseLobby, rng: rng, now: time.Now}
}

// PlayResult describes an accepted play.
type PlayResult struct {
	PlayerID    string
	Combination Combination
	NextTurn    string
	Winner      string
}

// PassResult describes an accepted pass.
type PassResult struct {
	PlayerID     string
	NextTurn     string
	TrickCleared bool
}

// LeaveResult reports whether leaving ended a hand in progress.
type LeaveResult struct {
	PlayerID      string
	ForceFinished bool
	Empty         bool
}

func (r *Room) seat(playerID string) (int, *Seat) {
	for i, s := range r.Seats {
		if s.PlayerID == playerID {
			return i, s
		}
	}
	return -1, nil
}

// Has reports whether playerID holds a seat.
func (r *Room) Has(playerID string) bool {
	_, s := r.seat(playerID)
	return s != nil
}

// PlayerIDs lists seated players in seat order.
func (r *Room) PlayerIDs() []string {
	out := make([]string, len(r.Seats))
	for i, s := range r.Seats {
		out[i] = s.PlayerID
	}
	return out
}

func (r *Room) Join(playerID, name string) error {
	if r.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	if r.Has(playerID) {
		return ErrAlreadySeated
	}
	if len(r.Seats) >= SeatsPerRoom {
		return ErrRoomFull
	}
	r.Seats = append(r.Seats, &Seat{PlayerID: playerID, Name: name})
	return nil
}

// Leave removes the seat in any phase. Leaving mid-hand finishes the room with
// no winner.
func (r *Room) Leave(playerID string) (LeaveResult, error) {
	i, s := r.seat(playerID)
	if s == nil {
		return LeaveResult{}, ErrNotSeated
	}
	r.Seats = append(r.Seats[:i], r.Seats[i+1:]...)

	res := LeaveResult{PlayerID: playerID, Empty: len(r.Seats) == 0}
	if r.Phase == PhasePlaying {
		r.finish(FinishReasonPlayerLeft, "")
		res.ForceFinished = true
	}
	return res, nil
}

func (r *Room) SetReady(playerID string, ready bool) error {
	if r.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	_, s := r.seat(playerID)
	if s == nil {
		return ErrNotSeated
	}
	s.Ready = ready
	return nil
}

func (r *Room) CanStart() bool {
	if r.Phase != PhaseLobby || len(r.Seats) != SeatsPerRoom {
		return false
	}
	for _, s := range r.Seats {
		if !s.Ready {
			return false
		}
	}
	return true
}

// Start deals a fresh shuffled deck and hands the lead to the holder of the 3 of spades.
func (r *Room) Start() error {
	if !r.CanStart() {
		return ErrCannotStart
	}
	deck := NewDeck()
	deck.Shuffle(r.rng)
	for _, s := range r.Seats {
		hand, err := deck.Draw(HandSize)
		if err != nil {
			return err
		}
		SortHand(hand)
		s.Hand = hand
	}

	r.Phase = PhasePlaying
	r.CurrentTrick = nil
	r.LastPlayedBy = ""
	r.PassCount = 0
	r.Winner = ""
	r.CurrentTurn = r.Seats[0].PlayerID
	for _, s := range r.Seats {
		if containsCard(s.Hand, ThreeOfSpades) {
			r.CurrentTurn = s.PlayerID
			break
		}
	}
	return nil
}

// Play validates and applies a play. On error the room is unchanged.
func (r *Room) Play(playerID string, cards []Card) (PlayResult, error) {
	if r.Phase != PhasePlaying {
		return PlayResult{}, ErrWrongPhase
	}
	idx, s := r.seat(playerID)
	if s == nil {
		return PlayResult{}, ErrNotSeated
	}
	if len(cards) == 0 {
		return PlayResult{}, ErrNoCards
	}
	seen := make(map[Card]bool, len(cards))
	for _, c := range cards {
		if seen[c] {
			return PlayResult{}, fmt.Errorf("%w: %s", ErrDuplicateCard, c.Code())
		}
		seen[c] = true
		if !containsCard(s.Hand, c) {
			return PlayResult{}, fmt.Errorf("%w: %s", ErrCardNotInHand, c.Code())
		}
	}

	combo := Classify(cards)
	if combo.Kind == Invalid {
		return PlayResult{}, ErrInvalidCombination
	}
	if r.CurrentTurn != playerID {
		// A four-pair run may chop out of turn, but only onto a live trick.
		if !IsUnconditional(&combo) || r.CurrentTrick == nil {
			return PlayResult{}, ErrNotYourTurn
		}
	}
	if r.CurrentTrick != nil && !Beats(&combo, r.CurrentTrick) {
		return PlayResult{}, ErrDoesNotBeat
	}

	s.Hand = removeCards(s.Hand, seen)
	r.CurrentTrick = &combo
	r.LastPlayedBy = playerID
	r.PassCount = 0

	res := PlayResult{PlayerID: playerID, Combination: combo}
	if len(s.Hand) == 0 {
		r.finish(FinishReasonWinner, playerID)
		res.Winner = playerID
		return res, nil
	}
	r.CurrentTurn = r.Seats[(idx+1)%len(r.Seats)].PlayerID
	res.NextTurn = r.CurrentTurn
	return res, nil
}

// Pass gives up the current turn. Once every other player has passed, the trick
// clears and the last player to play leads again.
func (r *Room) Pass(playerID string) (PassResult, error) {
	if r.Phase != PhasePlaying {
		return PassResult{}, ErrWrongPhase
	}
	idx, s := r.seat(playerID)
	if s == nil {
		return PassResult{}, ErrNotSeated
	}
	if r.CurrentTurn != playerID {
		return PassResult{}, ErrNotYourTurn
	}
	if r.CurrentTrick == nil {
		return PassResult{}, ErrEmptyTable
	}

	r.PassCount++
	res := PassResult{PlayerID: playerID}
	if r.PassCount >= len(r.Seats)-1 {
		r.CurrentTrick = nil
		r.PassCount = 0
		r.CurrentTurn = r.LastPlayedBy
		res.TrickCleared = true
	} else {
		r.CurrentTurn = r.Seats[(idx+1)%len(r.Seats)].PlayerID
	}
	res.NextTurn = r.CurrentTurn
	return res, nil
}

// Hand returns a copy of the player's cards.
func (r *Room) Hand(playerID string) []Card {
	_, s := r.seat(playerID)
	if s == nil {
		return nil
	}
	return append([]Card(nil), s.Hand...)
}

func (r *Room) finish(reason, winner string) {
	r.Phase = PhaseFinished
	r.FinishReason = reason
	r.Winner = winner
	r.FinishedAt = r.now()
}

func containsCard(hand []Card, c Card) bool {
	for _, h := range hand {
		if h == c {
			return true
		}
	}
	return false
}

func removeCards(hand []Card, played map[Card]bool) []Card {
	out := hand[:0]
	for _, c := range hand {
		if !played[c] {
			out = append(out, c)
		}
	}
	return out
}
