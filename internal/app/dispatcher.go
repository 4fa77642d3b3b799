package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quyht-dev/tienlen/internal/domain"
	"github.com/quyht-dev/tienlen/internal/protocol"
)

const (
	DefaultPlayerName = "Player"
	DefaultRoomID     = "ROOM-1"
)

// Dispatcher routes decoded client messages to rooms and fans results back out.
type Dispatcher struct {
	sessions *Sessions
	rooms    *RoomRegistry
	voice    *VoiceService
	log      *slog.Logger
	now      func() time.Time
}

// NewDispatcher wires the shared tables. voice may be nil to disable voice tokens.
func NewDispatcher(sessions *Sessions, rooms *RoomRegistry, voice *VoiceService, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sessions: sessions, rooms: rooms, voice: voice, log: logger, now: time.Now}
}

func (d *Dispatcher) Sessions() *Sessions   { return d.sessions }
func (d *Dispatcher) Rooms() *RoomRegistry { return d.rooms }

// Connect registers a new session for t and greets it with its player id.
func (d *Dispatcher) Connect(t Transport) *Session {
	s := NewSession(uuid.NewString(), t, d.now())
	d.sessions.Add(s)
	if err := t.SendWelcome(s.ID); err != nil {
		d.log.Warn("welcome not delivered", "player", s.ID, "error", err)
	}
	d.log.Info("session connected", "player", s.ID)
	return s
}

// Disconnect leaves the session's room and forgets the session. Repeated calls are no-ops.
func (d *Dispatcher) Disconnect(s *Session) {
	if !d.sessions.Remove(s.ID) {
		return
	}
	d.leaveRoom(s)
	d.log.Info("session disconnected", "player", s.ID)
}

// HandleFrame decodes one raw envelope and dispatches it. Decode failures are
// reported to the client and never end the session.
func (d *Dispatcher) HandleFrame(s *Session, data []byte) {
	s.Touch(d.now())
	env, err := protocol.Decode(data)
	switch {
	case errors.Is(err, protocol.ErrBadJSON):
		d.sendError(s, nil, protocol.CodeBadJSON, "invalid json")
		return
	case err != nil:
		d.sendError(s, env.RequestID, protocol.CodeBadMessage, "missing type")
		return
	}
	d.Handle(s, env)
}

// Handle dispatches a decoded envelope.
func (d *Dispatcher) Handle(s *Session, env protocol.Envelope) {
	s.Touch(d.now())
	d.log.Debug("message", "player", s.ID, "type", env.Type)

	switch env.Type {
	case protocol.TypeJoin:
		d.handleJoin(s, env)
	case protocol.TypeReady:
		d.handleReady(s, env)
	case protocol.TypePlay:
		d.handlePlay(s, env)
	case protocol.TypePass:
		d.handlePass(s, env)
	case protocol.TypeChat:
		d.handleChat(s, env)
	case protocol.TypePing:
		d.reply(s, protocol.TypePong, env.RequestID, env.Payload)
	case protocol.TypePong:
		// liveness only
	case protocol.TypeVoiceToken:
		d.handleVoiceToken(s, env)
	default:
		d.sendError(s, env.RequestID, protocol.CodeUnknownType, "unknown type: "+env.Type)
	}
}

func (d *Dispatcher) handleJoin(s *Session, env protocol.Envelope) {
	var p protocol.JoinPayload
	if err := env.DecodePayload(&p); err != nil {
		d.sendError(s, env.RequestID, protocol.CodeBadPayload, "bad join payload")
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = DefaultPlayerName
	}
	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		roomID = DefaultRoomID
	}

	if current, _ := s.Room(); current != "" {
		if h, ok := d.rooms.get(current); ok {
			seated := false
			h.do(func(r *domain.Room) { seated = r.Phase != domain.PhaseFinished && r.Has(s.ID) })
			if seated {
				d.sendError(s, env.RequestID, protocol.CodeJoinFailed, "already in room "+current)
				return
			}
		}
		d.leaveRoom(s)
	}

	var out outbox
	var joined string
	err := d.rooms.join(roomID, func(r *domain.Room) error {
		if err := r.Join(s.ID, name); err != nil {
			return err
		}
		joined = r.ID
		out = snapshot(r, Event{Kind: EventPlayerJoined, Payload: PlayerJoinedPayload{PlayerID: s.ID, Name: name}})
		return nil
	})
	if err != nil {
		d.sendError(s, env.RequestID, protocol.CodeJoinFailed, err.Error())
		return
	}
	s.setRoom(joined, name)
	d.log.Info("player joined", "player", s.ID, "room", joined)
	d.deliver(out)
}

func (d *Dispatcher) handleReady(s *Session, env protocol.Envelope) {
	var p protocol.ReadyPayload
	if err := env.DecodePayload(&p); err != nil {
		d.sendError(s, env.RequestID, protocol.CodeBadPayload, "bad ready payload")
		return
	}
	h, ok := d.roomOf(s, env.RequestID)
	if !ok {
		return
	}

	var out outbox
	var err error
	h.do(func(r *domain.Room) {
		if err = r.SetReady(s.ID, p.Ready); err != nil {
			out = personal(r, s.ID)
			return
		}
		if !r.CanStart() {
			out = snapshot(r, Event{Kind: EventReadyUpdated, Payload: ReadyUpdatedPayload{PlayerID: s.ID, Ready: p.Ready}})
			return
		}
		if err = r.Start(); err != nil {
			out = personal(r, s.ID)
			return
		}
		d.log.Info("game started", "room", r.ID, "first", r.CurrentTurn)
		out = snapshot(r, Event{Kind: EventGameStarted, Payload: GameStartedPayload{FirstTurn: r.CurrentTurn}})
	})
	if err != nil {
		d.sendError(s, env.RequestID, protocol.CodeReadyFailed, err.Error())
	}
	d.deliver(out)
}

func (d *Dispatcher) handlePlay(s *Session, env protocol.Envelope) {
	var p protocol.PlayPayload
	if err := env.DecodePayload(&p); err != nil || len(p.Cards) == 0 {
		d.sendError(s, env.RequestID, protocol.CodeBadPayload, "missing cards")
		return
	}
	cards, err := domain.ParseCards(p.Cards)
	if err != nil {
		d.sendError(s, env.RequestID, protocol.CodeBadPayload, err.Error())
		return
	}
	h, ok := d.roomOf(s, env.RequestID)
	if !ok {
		return
	}

	var out outbox
	h.do(func(r *domain.Room) {
		var res domain.PlayResult
		if res, err = r.Play(s.ID, cards); err != nil {
			out = personal(r, s.ID)
			return
		}
		if res.Winner != "" {
			d.log.Info("game finished", "room", r.ID, "winner", res.Winner)
		}
		out = snapshot(r, playedEvent(res))
	})
	if err != nil {
		d.sendError(s, env.RequestID, protocol.CodeInvalidMove, err.Error())
	}
	d.deliver(out)
}

func (d *Dispatcher) handlePass(s *Session, env protocol.Envelope) {
	h, ok := d.roomOf(s, env.RequestID)
	if !ok {
		return
	}

	var out outbox
	var err error
	h.do(func(r *domain.Room) {
		var res domain.PassResult
		if res, err = r.Pass(s.ID); err != nil {
			out = personal(r, s.ID)
			return
		}
		out = snapshot(r, Event{Kind: EventPassed, Payload: PassedPayload{
			By:           s.ID,
			NextTurn:     res.NextTurn,
			TrickCleared: res.TrickCleared,
		}})
	})
	if err != nil {
		d.sendError(s, env.RequestID, protocol.CodePassFailed, err.Error())
	}
	d.deliver(out)
}

func (d *Dispatcher) handleChat(s *Session, env protocol.Envelope) {
	var p protocol.ChatPayload
	if err := env.DecodePayload(&p); err != nil {
		d.sendError(s, env.RequestID, protocol.CodeBadPayload, "bad chat payload")
		return
	}
	h, ok := d.roomOf(s, env.RequestID)
	if !ok {
		return
	}
	_, name := s.Room()

	var out outbox
	h.do(func(r *domain.Room) {
		if !r.Has(s.ID) {
			return
		}
		out = outbox{
			events:     []Event{{Kind: EventChat, Payload: ChatPayload{From: name, PlayerID: s.ID, Text: p.Text}}},
			recipients: r.PlayerIDs(),
		}
	})
	if out.recipients == nil {
		d.sendError(s, env.RequestID, protocol.CodeNotInRoom, "not in room")
		return
	}
	d.deliver(out)
}

func (d *Dispatcher) handleVoiceToken(s *Session, env protocol.Envelope) {
	if d.voice == nil {
		d.sendError(s, env.RequestID, protocol.CodeVoiceDisabled, "voice chat is not configured")
		return
	}
	var p protocol.VoiceTokenRequest
	if err := env.DecodePayload(&p); err != nil {
		d.sendError(s, env.RequestID, protocol.CodeBadPayload, "bad voice_token payload")
		return
	}
	if p.Action == "" {
		p.Action = VoiceActionJoin
	}
	roomID, _ := s.Room()
	if p.Action == VoiceActionJoin && roomID == "" {
		d.sendError(s, env.RequestID, protocol.CodeNotInRoom, "join a room before its voice channel")
		return
	}

	token, channel, err := d.voice.GenerateToken(s.ID, p.Action, roomID)
	if err != nil {
		d.log.Warn("voice token failed", "player", s.ID, "error", err)
		d.sendError(s, env.RequestID, protocol.CodeVoiceFailed, err.Error())
		return
	}
	raw, _ := json.Marshal(protocol.VoiceTokenPayload{Token: token, Channel: channel})
	d.reply(s, protocol.TypeVoiceToken, env.RequestID, raw)
}

// roomOf resolves the session's room, reporting NOT_IN_ROOM or ROOM_NOT_FOUND.
func (d *Dispatcher) roomOf(s *Session, requestID *string) (*roomHandle, bool) {
	roomID, _ := s.Room()
	if roomID == "" {
		d.sendError(s, requestID, protocol.CodeNotInRoom, "not in room")
		return nil, false
	}
	h, ok := d.rooms.get(roomID)
	if !ok {
		s.setRoom("", "")
		d.sendError(s, requestID, protocol.CodeRoomNotFound, "room not found: "+roomID)
		return nil, false
	}
	// A finished room may have been replaced by a fresh lobby under the same id.
	seated := false
	h.do(func(r *domain.Room) { seated = r.Has(s.ID) })
	if !seated {
		s.setRoom("", "")
		d.sendError(s, requestID, protocol.CodeNotInRoom, "no longer seated in room "+roomID)
		return nil, false
	}
	return h, true
}

func (d *Dispatcher) leaveRoom(s *Session) {
	roomID, _ := s.Room()
	if roomID == "" {
		return
	}
	s.setRoom("", "")

	var out outbox
	err := d.rooms.leave(roomID, s.ID, func(r *domain.Room, res domain.LeaveResult) {
		events := []Event{{Kind: EventPlayerLeft, Payload: PlayerLeftPayload{PlayerID: s.ID}}}
		if res.ForceFinished {
			d.log.Info("game aborted", "room", r.ID, "player", s.ID)
			events = append(events, Event{Kind: EventGameFinished, Payload: GameFinishedPayload{Reason: domain.FinishReasonPlayerLeft}})
		}
		out = snapshot(r, events...)
	})
	if err != nil && !errors.Is(err, ErrRoomNotFound) && !errors.Is(err, domain.ErrNotSeated) {
		d.log.Warn("leave failed", "player", s.ID, "room", roomID, "error", err)
	}
	d.deliver(out)
}

func (d *Dispatcher) reply(s *Session, msgType string, requestID *string, payload json.RawMessage) {
	if err := s.Transport().SendReply(msgType, requestID, payload); err != nil {
		d.log.Warn("reply not delivered", "player", s.ID, "type", msgType, "error", err)
	}
}

func (d *Dispatcher) sendError(s *Session, requestID *string, code, message string) {
	if err := s.Transport().SendError(requestID, code, message); err != nil {
		d.log.Warn("error not delivered", "player", s.ID, "code", code, "error", err)
	}
}
