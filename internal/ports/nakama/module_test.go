package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/require"

	"github.com/quyht-dev/tienlen/internal/app"
	"github.com/quyht-dev/tienlen/internal/protocol"
)

type rpcFunc = func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type notification struct {
	userID  string
	subject string
	content map[string]interface{}
	code    int
}

// fakeNakama records notifications; every other NakamaModule method panics.
type fakeNakama struct {
	runtime.NakamaModule

	mu   sync.Mutex
	sent []notification
}

func (f *fakeNakama) NotificationSend(_ context.Context, userID, subject string, content map[string]interface{}, code int, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{userID: userID, subject: subject, content: content, code: code})
	return nil
}

func (f *fakeNakama) to(userID, subject string) []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notification
	for _, n := range f.sent {
		if n.userID == userID && n.subject == subject {
			out = append(out, n)
		}
	}
	return out
}

type fakeInitializer struct {
	runtime.Initializer

	rpcs  map[string]rpcFunc
	start func(context.Context, runtime.Logger, *api.Event)
	end   func(context.Context, runtime.Logger, *api.Event)
}

func (f *fakeInitializer) RegisterRpc(id string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	f.rpcs[id] = fn
	return nil
}

func (f *fakeInitializer) RegisterEventSessionStart(fn func(ctx context.Context, logger runtime.Logger, evt *api.Event)) error {
	f.start = fn
	return nil
}

func (f *fakeInitializer) RegisterEventSessionEnd(fn func(ctx context.Context, logger runtime.Logger, evt *api.Event)) error {
	f.end = fn
	return nil
}

func setup(t *testing.T) (*app.Dispatcher, *fakeNakama, *fakeInitializer) {
	t.Helper()
	nk := &fakeNakama{}
	reg := &fakeInitializer{rpcs: make(map[string]rpcFunc)}
	d := app.NewDispatcher(app.NewSessions(), app.NewRoomRegistry(rand.New(rand.NewSource(5))), nil, slog.New(slog.DiscardHandler))
	require.NoError(t, NewModule(d, nk, nil).Register(reg))
	return d, nk, reg
}

func userCtx(userID string) context.Context {
	return context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
}

func call(t *testing.T, reg *fakeInitializer, userID, id, payload string) map[string]interface{} {
	t.Helper()
	fn, ok := reg.rpcs[id]
	require.True(t, ok, "rpc %s not registered", id)
	out, err := fn(userCtx(userID), noopLogger{}, nil, nil, payload)
	require.NoError(t, err)
	var ack map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &ack))
	return ack
}

func payloadOf(t *testing.T, n notification, v any) {
	t.Helper()
	raw, ok := n.content["payload"].(json.RawMessage)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestRegisterInstallsRPCsAndHooks(t *testing.T) {
	_, _, reg := setup(t)
	for _, id := range []string{"join", "ready", "play", "pass", "chat", "ping", "voice_token", "list_rooms"} {
		require.Contains(t, reg.rpcs, id)
	}
	require.NotNil(t, reg.start)
	require.NotNil(t, reg.end)
}

func TestSessionStartSendsWelcome(t *testing.T) {
	d, nk, reg := setup(t)
	reg.start(userCtx("u1"), noopLogger{}, &api.Event{})

	require.Equal(t, 1, d.Sessions().Len())
	welcome := nk.to("u1", protocol.TypeWelcome)
	require.Len(t, welcome, 1)
	require.Equal(t, NotifyWelcome, welcome[0].code)
	require.Nil(t, welcome[0].content["requestId"])

	var w protocol.WelcomePayload
	payloadOf(t, welcome[0], &w)
	require.NotEmpty(t, w.PlayerID)
}

func TestSessionStartKeepsExistingSeat(t *testing.T) {
	d, nk, reg := setup(t)
	call(t, reg, "u1", RpcJoin, `{"roomId":"r"}`)
	reg.start(userCtx("u1"), noopLogger{}, &api.Event{})

	require.Equal(t, 1, d.Sessions().Len())
	require.Equal(t, 1, d.Rooms().Len())
	require.Len(t, nk.to("u1", protocol.TypeWelcome), 1)
}

func TestRPCAfterSessionEndDoesNotReconnect(t *testing.T) {
	d, _, reg := setup(t)
	reg.start(userCtx("u1"), noopLogger{}, &api.Event{})
	reg.end(userCtx("u1"), noopLogger{}, &api.Event{})

	_, err := reg.rpcs[RpcJoin](userCtx("u1"), noopLogger{}, nil, nil, `{"roomId":"late"}`)
	var rerr *runtime.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, codeFailedPrecondition, rerr.Code)
	require.Equal(t, 0, d.Sessions().Len())
	require.Equal(t, 0, d.Rooms().Len())

	reg.start(userCtx("u1"), noopLogger{}, &api.Event{})
	call(t, reg, "u1", RpcJoin, `{"roomId":"late"}`)
	require.Equal(t, 1, d.Sessions().Len())
	require.Equal(t, 1, d.Rooms().Len())
}

func TestRPCGameFlowOverNotifications(t *testing.T) {
	d, nk, reg := setup(t)
	users := []string{"u1", "u2", "u3", "u4"}
	for _, u := range users {
		reg.start(userCtx(u), noopLogger{}, &api.Event{})
		ack := call(t, reg, u, RpcJoin, `{"name":"`+u+`","roomId":"nk-room"}`)
		require.Equal(t, true, ack["ok"])
		require.Equal(t, "join", ack["type"])
		require.NotEmpty(t, ack["requestId"])
	}
	for _, u := range users {
		call(t, reg, u, RpcReady, `{"ready":true}`)
	}

	total := 0
	for _, u := range users {
		var started bool
		for _, n := range nk.to(u, protocol.TypeEvent) {
			var ev struct {
				Name string `json:"name"`
			}
			payloadOf(t, n, &ev)
			started = started || ev.Name == "game_started"
		}
		require.True(t, started, "user %s missed game_started", u)

		states := nk.to(u, protocol.TypeState)
		require.NotEmpty(t, states)
		var st protocol.StatePayload
		payloadOf(t, states[len(states)-1], &st)
		require.Equal(t, "Playing", string(st.PublicState.Phase))
		require.Equal(t, NotifyState, states[len(states)-1].code)
		total += len(st.PersonalState.YourHand)
	}
	require.Equal(t, 52, total)

	// A session ending mid-game finishes the room for everyone else.
	reg.end(userCtx("u4"), noopLogger{}, &api.Event{})
	require.Equal(t, 3, d.Sessions().Len())
	states := nk.to("u1", protocol.TypeState)
	var st protocol.StatePayload
	payloadOf(t, states[len(states)-1], &st)
	require.Equal(t, "Finished", string(st.PublicState.Phase))
}

func TestRPCErrorCarriesRequestID(t *testing.T) {
	_, nk, reg := setup(t)
	ack := call(t, reg, "u1", RpcPass, "")

	errs := nk.to("u1", protocol.TypeError)
	require.Len(t, errs, 1)
	require.Equal(t, ack["requestId"], errs[0].content["requestId"])
	require.Equal(t, NotifyError, errs[0].code)

	var e protocol.ErrorPayload
	payloadOf(t, errs[0], &e)
	require.Equal(t, protocol.CodeNotInRoom, e.Code)
}

func TestPingRPCRepliesWithPong(t *testing.T) {
	_, nk, reg := setup(t)
	call(t, reg, "u1", RpcPing, `{"t":42}`)

	pongs := nk.to("u1", protocol.TypePong)
	require.Len(t, pongs, 1)
	require.Equal(t, NotifyPong, pongs[0].code)
	require.JSONEq(t, `{"t":42}`, string(pongs[0].content["payload"].(json.RawMessage)))
}

func TestRPCRejectsBadInput(t *testing.T) {
	_, _, reg := setup(t)

	_, err := reg.rpcs[RpcJoin](userCtx("u1"), noopLogger{}, nil, nil, "{nope")
	var rerr *runtime.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, codeInvalidArgument, rerr.Code)

	_, err = reg.rpcs[RpcJoin](context.Background(), noopLogger{}, nil, nil, "{}")
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, codeUnauthenticated, rerr.Code)
}

func TestListRoomsRPC(t *testing.T) {
	_, _, reg := setup(t)
	call(t, reg, "u1", RpcJoin, `{"roomId":"alpha"}`)
	call(t, reg, "u2", RpcJoin, `{"roomId":"ALPHA"}`)

	out, err := reg.rpcs[RpcListRooms](userCtx("u1"), noopLogger{}, nil, nil, "")
	require.NoError(t, err)
	var resp struct {
		Rooms []struct {
			RoomID  string  `json:"roomId"`
			Phase   string  `json:"phase"`
			Players float64 `json:"players"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Rooms, 1)
	require.Equal(t, "alpha", resp.Rooms[0].RoomID)
	require.Equal(t, "Lobby", resp.Rooms[0].Phase)
	require.Equal(t, float64(2), resp.Rooms[0].Players)
}

func TestSessionEndUnknownUserIsNoop(t *testing.T) {
	d, _, reg := setup(t)
	reg.end(userCtx("ghost"), noopLogger{}, &api.Event{})
	require.Equal(t, 0, d.Sessions().Len())
}
