package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quyht-dev/tienlen/internal/protocol"
)

var errSessionEnded = errors.New("nakama session ended")

// notifier implements app.Transport with Nakama notifications. The subject is
// the message type; the content is {requestId, payload}.
type notifier struct {
	nk     runtime.NakamaModule
	userID string
	closed atomic.Bool
}

func newNotifier(nk runtime.NakamaModule, userID string) *notifier {
	return &notifier{nk: nk, userID: userID}
}

func (n *notifier) send(msgType string, requestID *string, payload any) error {
	if n.closed.Load() {
		return errSessionEnded
	}
	var raw json.RawMessage
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}

	content := map[string]interface{}{
		"requestId": nil,
		"payload":   raw,
	}
	if requestID != nil {
		content["requestId"] = *requestID
	}
	return n.nk.NotificationSend(context.Background(), n.userID, msgType, content, notificationCode(msgType), "", false)
}

func (n *notifier) SendWelcome(playerID string) error {
	return n.send(protocol.TypeWelcome, nil, protocol.WelcomePayload{PlayerID: playerID})
}

func (n *notifier) SendState(state protocol.StatePayload) error {
	return n.send(protocol.TypeState, nil, state)
}

func (n *notifier) SendEvent(event protocol.EventPayload) error {
	return n.send(protocol.TypeEvent, nil, event)
}

func (n *notifier) SendError(requestID *string, code, message string) error {
	return n.send(protocol.TypeError, requestID, protocol.ErrorPayload{Code: code, Message: message})
}

func (n *notifier) SendReply(msgType string, requestID *string, payload json.RawMessage) error {
	return n.send(msgType, requestID, payload)
}

// Close stops delivery. Nakama owns the socket itself.
func (n *notifier) Close() error {
	n.closed.Store(true)
	return nil
}
