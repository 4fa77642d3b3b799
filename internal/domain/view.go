package domain

// SeatView is the public part of a seat.
type SeatView struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Ready     bool   `json:"ready"`
	HandCount int    `json:"handCount"`
}

// TrickView is the combination on the table.
type TrickView struct {
	Type  string   `json:"type"`
	Cards []string `json:"cards"`
}

// PublicView is what every seated player may see.
type PublicView struct {
	RoomID       string     `json:"roomId"`
	Phase        Phase      `json:"phase"`
	Players      []SeatView `json:"players"`
	CurrentTurn  string     `json:"currentTurn,omitempty"`
	LastPlayedBy string     `json:"lastPlayedBy,omitempty"`
	CurrentTrick *TrickView `json:"currentTrick"`
	PassCount    int        `json:"passCount"`
	Winner       string     `json:"winner,omitempty"`
}

// PersonalView carries only the recipient's own hand.
type PersonalView struct {
	YourHand []string `json:"yourHand"`
}

func (r *Room) PublicView() PublicView {
	v := PublicView{
		RoomID:       r.ID,
		Phase:        r.Phase,
		Players:      make([]SeatView, 0, len(r.Seats)),
		CurrentTurn:  r.CurrentTurn,
		LastPlayedBy: r.LastPlayedBy,
		PassCount:    r.PassCount,
		Winner:       r.Winner,
	}
	if r.Phase != PhasePlaying {
		v.CurrentTurn = ""
	}
	for _, s := range r.Seats {
		v.Players = append(v.Players, SeatView{
			PlayerID:  s.PlayerID,
			Name:      s.Name,
			Ready:     s.Ready,
			HandCount: len(s.Hand),
		})
	}
	if r.CurrentTrick != nil {
		v.CurrentTrick = &TrickView{Type: r.CurrentTrick.Label(), Cards: Codes(r.CurrentTrick.Cards)}
	}
	return v
}

func (r *Room) PersonalView(playerID string) PersonalView {
	return PersonalView{YourHand: Codes(r.Hand(playerID))}
}
