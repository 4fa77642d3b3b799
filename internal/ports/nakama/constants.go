package nakama

import "github.com/quyht-dev/tienlen/internal/protocol"

// RPC ids. Game RPCs share their names with the envelope types they carry.
const (
	RpcJoin       = protocol.TypeJoin
	RpcReady      = protocol.TypeReady
	RpcPlay       = protocol.TypePlay
	RpcPass       = protocol.TypePass
	RpcChat       = protocol.TypeChat
	RpcPing       = protocol.TypePing
	RpcVoiceToken = protocol.TypeVoiceToken
	RpcListRooms  = "list_rooms"
)

// gameRPCs are routed through the dispatcher as envelopes.
var gameRPCs = []string{RpcJoin, RpcReady, RpcPlay, RpcPass, RpcChat, RpcPing, RpcVoiceToken}

// Notification codes for server -> client messages. Nakama reserves codes <= 0.
const (
	NotifyWelcome    = 101
	NotifyState      = 102
	NotifyEvent      = 103
	NotifyError      = 104
	NotifyPong       = 105
	NotifyPing       = 106
	NotifyVoiceToken = 107
)

func notificationCode(msgType string) int {
	switch msgType {
	case protocol.TypeWelcome:
		return NotifyWelcome
	case protocol.TypeState:
		return NotifyState
	case protocol.TypeEvent:
		return NotifyEvent
	case protocol.TypeError:
		return NotifyError
	case protocol.TypePong:
		return NotifyPong
	case protocol.TypePing:
		return NotifyPing
	case protocol.TypeVoiceToken:
		return NotifyVoiceToken
	default:
		return 100
	}
}
