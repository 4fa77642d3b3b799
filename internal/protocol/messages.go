// Package protocol defines the JSON envelope exchanged with clients and the
// length-prefixed framing used on raw TCP connections.
package protocol

import (
	"encoding/json"

	"github.com/quyht-dev/tienlen/internal/domain"
)

// Message types.
const (
	TypeWelcome    = "welcome"
	TypeJoin       = "join"
	TypeReady      = "ready"
	TypePlay       = "play"
	TypePass       = "pass"
	TypeChat       = "chat"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeVoiceToken = "voice_token"
	TypeState      = "state"
	TypeEvent      = "event"
	TypeError      = "error"
)

// Error codes carried by TypeError messages.
const (
	CodeBadFrame      = "BAD_FRAME"
	CodeBadJSON       = "BAD_JSON"
	CodeBadMessage    = "BAD_MSG"
	CodeUnknownType   = "UNKNOWN_TYPE"
	CodeBadPayload    = "BAD_PAYLOAD"
	CodeJoinFailed    = "JOIN_FAILED"
	CodeReadyFailed   = "READY_FAILED"
	CodeInvalidMove   = "INVALID_MOVE"
	CodePassFailed    = "PASS_FAILED"
	CodeRoomNotFound  = "ROOM_NOT_FOUND"
	CodeNotInRoom     = "NOT_IN_ROOM"
	CodeVoiceDisabled = "VOICE_DISABLED"
	CodeVoiceFailed   = "VOICE_FAILED"
)

// Envelope is the outer shape of every message in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID *string         `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

type WelcomePayload struct {
	PlayerID string `json:"playerId"`
}

type JoinPayload struct {
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
}

type ReadyPayload struct {
	Ready bool `json:"ready"`
}

type PlayPayload struct {
	Cards []string `json:"cards"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type PingPayload struct {
	T int64 `json:"t,omitempty"`
}

type VoiceTokenRequest struct {
	Action string `json:"action"`
}

type VoiceTokenPayload struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

type StatePayload struct {
	PublicState   domain.PublicView   `json:"publicState"`
	PersonalState domain.PersonalView `json:"personalState"`
}

type EventPayload struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
