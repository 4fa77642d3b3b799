package app

import (
	"github.com/quyht-dev/tienlen/internal/domain"
	"github.com/quyht-dev/tienlen/internal/protocol"
)

// outbox is built under the room lock and delivered after it is released.
type outbox struct {
	events     []Event
	recipients []string
	states     []playerState
}

type playerState struct {
	playerID string
	state    protocol.StatePayload
}

// snapshot addresses events and a per-player state to everyone seated in r.
func snapshot(r *domain.Room, events ...Event) outbox {
	out := outbox{events: events, recipients: r.PlayerIDs()}
	pub := r.PublicView()
	for _, id := range out.recipients {
		out.states = append(out.states, playerState{
			playerID: id,
			state:    protocol.StatePayload{PublicState: pub, PersonalState: r.PersonalView(id)},
		})
	}
	return out
}

// personal is a state refresh for one player after a rejected action.
func personal(r *domain.Room, playerID string) outbox {
	if !r.Has(playerID) {
		return outbox{}
	}
	return outbox{states: []playerState{{
		playerID: playerID,
		state:    protocol.StatePayload{PublicState: r.PublicView(), PersonalState: r.PersonalView(playerID)},
	}}}
}

// deliver sends events first, then states. A failed send is logged and skipped.
func (d *Dispatcher) deliver(out outbox) {
	for _, ev := range out.events {
		payload := protocol.EventPayload{Name: string(ev.Kind), Data: ev.Payload}
		for _, id := range out.recipients {
			s, ok := d.sessions.Get(id)
			if !ok {
				continue
			}
			if err := s.Transport().SendEvent(payload); err != nil {
				d.log.Warn("event not delivered", "player", id, "event", ev.Kind, "error", err)
			}
		}
	}
	for _, ps := range out.states {
		s, ok := d.sessions.Get(ps.playerID)
		if !ok {
			continue
		}
		if err := s.Transport().SendState(ps.state); err != nil {
			d.log.Warn("state not delivered", "player", ps.playerID, "error", err)
		}
	}
}
