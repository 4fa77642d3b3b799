package app

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quyht-dev/tienlen/internal/protocol"
)

// Transport is how a session reaches its client. Implementations must not block
// the caller for long; delivery is best effort.
type Transport interface {
	SendWelcome(playerID string) error
	SendState(state protocol.StatePayload) error
	SendEvent(event protocol.EventPayload) error
	SendError(requestID *string, code, message string) error
	// SendReply carries pong, ping and voice_token messages.
	SendReply(msgType string, requestID *string, payload json.RawMessage) error
	Close() error
}

// Session is one connected player.
type Session struct {
	ID        string
	transport Transport

	lastSeen atomic.Int64

	mu     sync.Mutex
	roomID string
	name   string

	closeOnce sync.Once
	closeErr  error
}

func NewSession(id string, t Transport, now time.Time) *Session {
	s := &Session{ID: id, transport: t}
	s.Touch(now)
	return s
}

// Touch records inbound activity.
func (s *Session) Touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Room returns the joined room id and display name, if any.
func (s *Session) Room() (roomID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.name
}

func (s *Session) setRoom(roomID, name string) {
	s.mu.Lock()
	s.roomID, s.name = roomID, name
	s.mu.Unlock()
}

func (s *Session) Transport() Transport { return s.transport }

// Close shuts the transport once. The transport's read loop then runs the
// normal disconnect path.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}

// Sessions is the table of connected players keyed by player id.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*Session)}
}

func (t *Sessions) Add(s *Session) {
	t.mu.Lock()
	t.m[s.ID] = s
	t.mu.Unlock()
}

// Remove reports whether the session was still present.
func (t *Sessions) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.m[id]; !ok {
		return false
	}
	delete(t.m, id)
	return true
}

func (t *Sessions) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.m[id]
	return s, ok
}

func (t *Sessions) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// All returns the sessions ordered by id.
func (t *Sessions) All() []*Session {
	t.mu.RLock()
	out := make([]*Session, 0, len(t.m))
	for _, s := range t.m {
		out = append(out, s)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
