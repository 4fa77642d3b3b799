package app

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quyht-dev/tienlen/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

// roomHandle owns one room and its lock. Every transition and snapshot goes through do.
type roomHandle struct {
	mu   sync.Mutex
	room *domain.Room
}

func (h *roomHandle) do(fn func(r *domain.Room)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.room)
}

// RoomSummary is the listing view of a room.
type RoomSummary struct {
	RoomID  string       `json:"roomId"`
	Phase   domain.Phase `json:"phase"`
	Players int          `json:"players"`
}

// RoomRegistry maps room ids, case-insensitively, to rooms. Membership changes
// hold the registry lock and then the room lock; play, pass and ready only take
// the room lock.
type RoomRegistry struct {
	mu    sync.Mutex
	rooms map[string]*roomHandle

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// NewRoomRegistry seeds each new room's shuffle from rng. A nil rng is time seeded.
func NewRoomRegistry(rng *rand.Rand) *RoomRegistry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RoomRegistry{rooms: make(map[string]*roomHandle), rng: rng, now: time.Now}
}

func roomKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (g *RoomRegistry) newRoom(id string) *domain.Room {
	g.rngMu.Lock()
	seed := g.rng.Int63()
	g.rngMu.Unlock()
	return domain.NewRoom(id, rand.New(rand.NewSource(seed)))
}

func (g *RoomRegistry) get(id string) (*roomHandle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.rooms[roomKey(id)]
	return h, ok
}

// join runs fn on the room for id, creating it first if it is unknown. A
// finished room is replaced by a fresh lobby under the same id.
func (g *RoomRegistry) join(id string, fn func(r *domain.Room) error) error {
	key := roomKey(id)
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.rooms[key]
	if ok {
		finished := false
		h.do(func(r *domain.Room) { finished = r.Phase == domain.PhaseFinished })
		if finished {
			ok = false
		}
	}
	if !ok {
		h = &roomHandle{room: g.newRoom(strings.TrimSpace(id))}
	}

	var err error
	h.do(func(r *domain.Room) { err = fn(r) })
	if err != nil {
		return err
	}
	g.rooms[key] = h
	return nil
}

// leave unseats playerID from the room for id, then runs fn with the result
// under the same lock. The room is dropped once nobody is seated.
func (g *RoomRegistry) leave(id, playerID string, fn func(r *domain.Room, res domain.LeaveResult)) error {
	key := roomKey(id)
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.rooms[key]
	if !ok {
		return ErrRoomNotFound
	}
	var res domain.LeaveResult
	var err error
	h.do(func(r *domain.Room) {
		if res, err = r.Leave(playerID); err == nil {
			fn(r, res)
		}
	})
	if err != nil {
		return err
	}
	if res.Empty {
		delete(g.rooms, key)
	}
	return nil
}

// Reap removes rooms that finished more than ttl ago.
func (g *RoomRegistry) Reap(ttl time.Duration) int {
	cutoff := g.now().Add(-ttl)
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for key, h := range g.rooms {
		stale := false
		h.do(func(r *domain.Room) {
			stale = r.Phase == domain.PhaseFinished && !r.FinishedAt.After(cutoff)
		})
		if stale {
			delete(g.rooms, key)
			n++
		}
	}
	return n
}

// RunReaper calls Reap every interval until ctx is done.
func (g *RoomRegistry) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Reap(ttl)
		}
	}
}

// List summarizes every live room, ordered by id.
func (g *RoomRegistry) List() []RoomSummary {
	g.mu.Lock()
	handles := make([]*roomHandle, 0, len(g.rooms))
	for _, h := range g.rooms {
		handles = append(handles, h)
	}
	g.mu.Unlock()

	out := make([]RoomSummary, 0, len(handles))
	for _, h := range handles {
		h.do(func(r *domain.Room) {
			out = append(out, RoomSummary{RoomID: r.ID, Phase: r.Phase, Players: len(r.Seats)})
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func (g *RoomRegistry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
