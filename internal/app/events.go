package app

import "github.com/quyht-dev/tienlen/internal/domain"

// EventKind identifies room events broadcast to seated players.
type EventKind string

const (
	EventPlayerJoined EventKind = "player_joined"
	EventPlayerLeft   EventKind = "player_left"
	EventReadyUpdated EventKind = "ready_updated"
	EventGameStarted  EventKind = "game_started"
	EventPlayed       EventKind = "played"
	EventPassed       EventKind = "passed"
	EventGameFinished EventKind = "game_finished"
	EventChat         EventKind = "chat"
)

// Event is a named room event with its data.
type Event struct {
	Kind    EventKind
	Payload any
}

type PlayerJoinedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

type ReadyUpdatedPayload struct {
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

type GameStartedPayload struct {
	FirstTurn string `json:"firstTurn"`
}

type PlayedPayload struct {
	By       string   `json:"by"`
	Cards    []string `json:"cards"`
	Kind     string   `json:"kind"`
	NextTurn string   `json:"nextTurn"`
}

type PassedPayload struct {
	By           string `json:"by"`
	NextTurn     string `json:"nextTurn"`
	TrickCleared bool   `json:"trickCleared"`
}

type GameFinishedPayload struct {
	Winner string   `json:"winner,omitempty"`
	By     string   `json:"by,omitempty"`
	Cards  []string `json:"cards,omitempty"`
	Reason string   `json:"reason"`
}

type ChatPayload struct {
	From     string `json:"from"`
	PlayerID string `json:"playerId"`
	Text     string `json:"text"`
}

func playedEvent(res domain.PlayResult) Event {
	cards := domain.Codes(res.Combination.Cards)
	if res.Winner != "" {
		return Event{Kind: EventGameFinished, Payload: GameFinishedPayload{
			Winner: res.Winner,
			By:     res.PlayerID,
			Cards:  cards,
			Reason: domain.FinishReasonWinner,
		}}
	}
	return Event{Kind: EventPlayed, Payload: PlayedPayload{
		By:       res.PlayerID,
		Cards:    cards,
		Kind:     res.Combination.Label(),
		NextTurn: res.NextTurn,
	}}
}
