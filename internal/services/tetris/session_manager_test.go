package tetris

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowSettings() Settings {
	s := DefaultSettings()
	s.FallInterval = time.Hour
	return s
}

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	sm := NewSessionManager(slowSettings())
	t.Cleanup(sm.Shutdown)
	return sm
}

// wsServer は ?user= のユーザーとしてセッションに WebSocket 接続させるテスト用サーバーです。
func wsServer(t *testing.T, sm *SessionManager, sessionID string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := sm.RegisterClient(sessionID, r.URL.Query().Get("user"), conn); err != nil {
			conn.Close()
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) StateMessage {
	t.Helper()
	var msg StateMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSessionManager_CreateSession(t *testing.T) {
	sm := newTestManager(t)

	_, err := sm.CreateSession("alice", nil, 0)
	assert.Error(t, err)

	seed := uint64(42)
	info, err := sm.CreateSession("alice", &seed, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "alice", info.OwnerID)
	assert.Equal(t, seed, info.Seed)
	assert.Equal(t, 2, info.Level)
	assert.Equal(t, 1, sm.ActiveSessions())

	snap, err := sm.Snapshot(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Level)
	assert.Equal(t, NewSeededSession(seed, 2, slowSettings()).Snapshot(), snap)

	got, err := sm.Info(info.ID)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	_, err = sm.Snapshot("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_EndSession(t *testing.T) {
	sm := newTestManager(t)
	info, err := sm.CreateSession("alice", nil, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, sm.EndSession(info.ID, "mallory"), ErrNotSessionOwner)
	require.NoError(t, sm.EndSession(info.ID, "alice"))

	_, err = sm.Snapshot(info.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, sm.EndSession(info.ID, "alice"), ErrSessionNotFound)
	assert.Equal(t, 0, sm.ActiveSessions())
}

func TestSessionManager_SendAction(t *testing.T) {
	sm := newTestManager(t)
	info, err := sm.CreateSession("alice", nil, 1)
	require.NoError(t, err)

	_, err = sm.SendAction(info.ID, "mallory", HardDrop)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	ok, err := sm.SendAction(info.ID, "alice", HardDrop)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		snap, err := sm.Snapshot(info.ID)
		return err == nil && snap.Score > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSessionManager_WebSocketPlay(t *testing.T) {
	sm := newTestManager(t)
	info, err := sm.CreateSession("alice", nil, 1)
	require.NoError(t, err)
	url := wsServer(t, sm, info.ID)

	conn := dial(t, url, "alice")
	first := readState(t, conn)
	assert.Equal(t, "state", first.Type)
	assert.Equal(t, info.ID, first.SessionID)
	assert.Equal(t, 0, first.State.Score)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "hard_drop"}))

	var msg StateMessage
	for msg.State.Score == 0 {
		msg = readState(t, conn)
	}
	assert.Equal(t, "state", msg.Type)
	assert.Greater(t, msg.State.Score, 0)

	require.NoError(t, sm.EndSession(info.ID, "alice"))
	for msg.Type != "game_over" {
		msg = readState(t, conn)
	}
	assert.Equal(t, info.ID, msg.SessionID)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}

func TestSessionManager_SpectatorCannotControl(t *testing.T) {
	sm := newTestManager(t)
	info, err := sm.CreateSession("alice", nil, 1)
	require.NoError(t, err)
	url := wsServer(t, sm, info.ID)

	conn := dial(t, url, "bob")
	readState(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "hard_drop"}))

	assert.Never(t, func() bool {
		snap, err := sm.Snapshot(info.ID)
		return err == nil && snap.Score > 0
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestSessionManager_RegisterUnknownSession(t *testing.T) {
	sm := newTestManager(t)
	err := sm.RegisterClient("missing", "alice", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_Shutdown(t *testing.T) {
	sm := NewSessionManager(slowSettings())
	for i := 0; i < 3; i++ {
		_, err := sm.CreateSession("alice", nil, 1)
		require.NoError(t, err)
	}

	sm.Shutdown()
	assert.Equal(t, 0, sm.ActiveSessions())

	_, err := sm.CreateSession("alice", nil, 1)
	assert.ErrorIs(t, err, ErrManagerStopped)

	// 2回呼んでも問題ない
	sm.Shutdown()
}
