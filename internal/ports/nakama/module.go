package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/quyht-dev/tienlen/internal/app"
	"github.com/quyht-dev/tienlen/internal/protocol"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

// Module adapts the dispatcher to Nakama: each Nakama user gets one game
// session, RPCs carry client messages in, notifications carry messages out.
type Module struct {
	dispatcher *app.Dispatcher
	nk         runtime.NakamaModule
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*app.Session // Nakama user id -> game session
	ended    map[string]struct{}     // users whose socket ended and has not restarted
}

func NewModule(d *app.Dispatcher, nk runtime.NakamaModule, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{
		dispatcher: d,
		nk:         nk,
		log:        logger.With("transport", "nakama"),
		sessions:   make(map[string]*app.Session),
		ended:      make(map[string]struct{}),
	}
}

// Register installs the RPCs and session lifecycle hooks.
func (m *Module) Register(initializer runtime.Initializer) error {
	for _, id := range gameRPCs {
		if err := initializer.RegisterRpc(id, m.rpc(id)); err != nil {
			return err
		}
	}
	if err := initializer.RegisterRpc(RpcListRooms, m.listRooms); err != nil {
		return err
	}
	if err := initializer.RegisterEventSessionStart(m.sessionStart); err != nil {
		return err
	}
	return initializer.RegisterEventSessionEnd(m.sessionEnd)
}

func (m *Module) sessionStart(ctx context.Context, _ runtime.Logger, _ *api.Event) {
	if _, err := m.session(ctx, true); err != nil {
		m.log.Warn("session start without user", "error", err)
	}
}

func (m *Module) sessionEnd(ctx context.Context, _ runtime.Logger, _ *api.Event) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return
	}
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.ended[userID] = struct{}{}
	m.mu.Unlock()
	if !ok {
		return
	}
	_ = s.Close()
	m.dispatcher.Disconnect(s)
}

// session returns the caller's game session, connecting one on first sight.
// Socket start and RPCs may arrive in either order, but once a user's socket
// has ended only a new socket start may connect them again.
func (m *Module) session(ctx context.Context, socketStart bool) (*app.Session, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return nil, runtime.NewError("authentication required", codeUnauthenticated)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if socketStart {
		delete(m.ended, userID)
	}
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	if _, gone := m.ended[userID]; gone {
		return nil, runtime.NewError("socket session ended", codeFailedPrecondition)
	}
	s := m.dispatcher.Connect(newNotifier(m.nk, userID))
	m.sessions[userID] = s
	return s, nil
}

func (m *Module) rpc(msgType string) func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
	return func(ctx context.Context, _ runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
		s, err := m.session(ctx, false)
		if err != nil {
			return "", err
		}
		var raw json.RawMessage
		if payload != "" {
			if !json.Valid([]byte(payload)) {
				return "", runtime.NewError("invalid json payload", codeInvalidArgument)
			}
			raw = json.RawMessage(payload)
		}

		requestID := uuid.NewString()
		m.dispatcher.Handle(s, protocol.Envelope{Type: msgType, RequestID: &requestID, Payload: raw})

		return marshalStruct(map[string]interface{}{
			"ok":        true,
			"type":      msgType,
			"requestId": requestID,
		})
	}
}

func (m *Module) listRooms(ctx context.Context, _ runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, _ string) (string, error) {
	summaries := m.dispatcher.Rooms().List()
	rooms := make([]interface{}, 0, len(summaries))
	for _, r := range summaries {
		rooms = append(rooms, map[string]interface{}{
			"roomId":  r.RoomID,
			"phase":   string(r.Phase),
			"players": r.Players,
		})
	}
	return marshalStruct(map[string]interface{}{"rooms": rooms})
}

func marshalStruct(v map[string]interface{}) (string, error) {
	st, err := structpb.NewStruct(v)
	if err != nil {
		return "", runtime.NewError("internal error", codeInternal)
	}
	data, err := protojson.Marshal(st)
	if err != nil {
		return "", runtime.NewError("internal error", codeInternal)
	}
	return string(data), nil
}
