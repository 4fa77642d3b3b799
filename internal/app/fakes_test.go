package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/quyht-dev/tienlen/internal/domain"
	"github.com/quyht-dev/tienlen/internal/protocol"
)

// sentMessage is one message recorded by fakeTransport.
type sentMessage struct {
	Type      string
	RequestID *string
	Event     protocol.EventPayload
	State     protocol.StatePayload
	Error     protocol.ErrorPayload
	Raw       json.RawMessage
}

// fakeTransport records everything sent to a session.
type fakeTransport struct {
	mu     sync.Mutex
	msgs   []sentMessage
	closed int
	fail   bool
}

func (f *fakeTransport) record(m sentMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeTransport) SendWelcome(playerID string) error {
	raw, _ := json.Marshal(protocol.WelcomePayload{PlayerID: playerID})
	return f.record(sentMessage{Type: protocol.TypeWelcome, Raw: raw})
}

func (f *fakeTransport) SendState(state protocol.StatePayload) error {
	return f.record(sentMessage{Type: protocol.TypeState, State: state})
}

func (f *fakeTransport) SendEvent(event protocol.EventPayload) error {
	return f.record(sentMessage{Type: protocol.TypeEvent, Event: event})
}

func (f *fakeTransport) SendError(requestID *string, code, message string) error {
	return f.record(sentMessage{Type: protocol.TypeError, RequestID: requestID, Error: protocol.ErrorPayload{Code: code, Message: message}})
}

func (f *fakeTransport) SendReply(msgType string, requestID *string, payload json.RawMessage) error {
	return f.record(sentMessage{Type: msgType, RequestID: requestID, Raw: payload})
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.msgs...)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

func (f *fakeTransport) events() []string {
	var out []string
	for _, m := range f.messages() {
		if m.Type == protocol.TypeEvent {
			out = append(out, m.Event.Name)
		}
	}
	return out
}

func (f *fakeTransport) errorCodes() []string {
	var out []string
	for _, m := range f.messages() {
		if m.Type == protocol.TypeError {
			out = append(out, m.Error.Code)
		}
	}
	return out
}

func (f *fakeTransport) lastState(t *testing.T) protocol.StatePayload {
	t.Helper()
	msgs := f.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == protocol.TypeState {
			return msgs[i].State
		}
	}
	t.Fatal("no state received")
	return protocol.StatePayload{}
}

func (f *fakeTransport) stateCount() int {
	n := 0
	for _, m := range f.messages() {
		if m.Type == protocol.TypeState {
			n++
		}
	}
	return n
}

type player struct {
	session   *Session
	transport *fakeTransport
}

func newTestDispatcher(voice *VoiceService) *Dispatcher {
	return NewDispatcher(NewSessions(), NewRoomRegistry(rand.New(rand.NewSource(3))), voice, slog.New(slog.DiscardHandler))
}

func connect(d *Dispatcher) player {
	ft := &fakeTransport{}
	return player{session: d.Connect(ft), transport: ft}
}

func send(d *Dispatcher, p player, msgType string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	d.Handle(p.session, protocol.Envelope{Type: msgType, Payload: raw})
}

// fullTable connects four players, seats them in ROOM-1 and readies them up.
func fullTable(t *testing.T, d *Dispatcher) []player {
	t.Helper()
	ps := make([]player, 4)
	for i := range ps {
		ps[i] = connect(d)
		send(d, ps[i], protocol.TypeJoin, protocol.JoinPayload{Name: "p", RoomID: "ROOM-1"})
	}
	for _, p := range ps {
		send(d, p, protocol.TypeReady, protocol.ReadyPayload{Ready: true})
	}
	return ps
}

// rigTable replaces every hand at the table and hands the turn to seat first.
func rigTable(t *testing.T, d *Dispatcher, ps []player, first int, hands ...string) {
	t.Helper()
	h, ok := d.rooms.get("ROOM-1")
	if !ok {
		t.Fatal("ROOM-1 missing")
	}
	h.do(func(r *domain.Room) {
		for i, s := range r.Seats {
			if s.PlayerID != ps[i].session.ID {
				t.Fatalf("seat %d is %s, want %s", i, s.PlayerID, ps[i].session.ID)
			}
			cards, err := domain.ParseCards(strings.Fields(hands[i]))
			if err != nil {
				t.Fatalf("rig hand %d: %v", i, err)
			}
			s.Hand = cards
		}
		r.CurrentTurn = ps[first].session.ID
		r.CurrentTrick = nil
		r.PassCount = 0
	})
	for _, p := range ps {
		p.transport.reset()
	}
}
