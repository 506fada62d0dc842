package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplink/internal/auth"
	"uplink/internal/broker"
	"uplink/internal/history"
	"uplink/internal/ratelimit"
	"uplink/internal/session"
	"uplink/pkg/types"
)

func testSettings() Settings {
	return Settings{
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		SendBufferSize: 64,
		MaxFrameSize:   4096,
	}
}

func startTestServer(t *testing.T) (*httptest.Server, *broker.Broker) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	b := broker.New(
		session.NewRegistry(),
		ratelimit.NewLimiter(time.Second, 100, 5*time.Second),
		history.NewBuffer(50),
		auth.NewAuthority("trustno1"),
		broker.Options{MaxMessageLen: 500},
		logger,
	)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })

	h := NewHandler(b, testSettings(), []string{"*"}, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, b
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, ws *gws.Conn) wireEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev wireEvent
	require.NoError(t, ws.ReadJSON(&ev))
	return ev
}

func sendEvent(t *testing.T, ws *gws.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]any{"event": event, "data": data}))
}

func TestHandler_JoinHandshake(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dial(t, srv)

	sendEvent(t, ws, types.EventJoin, types.JoinPayload{Alias: "alice"})

	hist := readEvent(t, ws)
	assert.Equal(t, types.EventHistory, hist.Event)
	var msgs []types.Message
	require.NoError(t, json.Unmarshal(hist.Data, &msgs))
	assert.Empty(t, msgs)

	joined := readEvent(t, ws)
	require.Equal(t, types.EventJoined, joined.Event)
	var sess types.Session
	require.NoError(t, json.Unmarshal(joined.Data, &sess))
	assert.Equal(t, "alice", sess.Alias)
	assert.NotEmpty(t, sess.ConnectionID)
}

func TestHandler_RelayBetweenClients(t *testing.T) {
	srv, _ := startTestServer(t)

	alice := dial(t, srv)
	sendEvent(t, alice, types.EventJoin, types.JoinPayload{Alias: "alice"})
	readEvent(t, alice) // history
	readEvent(t, alice) // joined

	bob := dial(t, srv)
	sendEvent(t, bob, types.EventJoin, types.JoinPayload{Alias: "bob"})
	readEvent(t, bob) // history
	readEvent(t, bob) // joined

	notice := readEvent(t, alice)
	require.Equal(t, types.EventMessage, notice.Event)
	var sys types.Message
	require.NoError(t, json.Unmarshal(notice.Data, &sys))
	assert.Equal(t, types.MessageKindSystem, sys.Kind)
	assert.Contains(t, sys.Content, "bob has joined")

	sendEvent(t, bob, types.EventMessage, types.MessagePayload{Content: "hello"})

	relayed := readEvent(t, alice)
	require.Equal(t, types.EventMessage, relayed.Event)
	var msg types.Message
	require.NoError(t, json.Unmarshal(relayed.Data, &msg))
	assert.Equal(t, "bob", msg.Sender)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.ID)
}

func TestHandler_MalformedFramesIgnored(t *testing.T) {
	srv, b := startTestServer(t)
	ws := dial(t, srv)

	require.NoError(t, ws.WriteMessage(gws.TextMessage, []byte("not json at all")))
	require.NoError(t, ws.WriteMessage(gws.TextMessage, []byte(`{"event":"nonsense"}`)))

	// The connection survives and a valid join still goes through.
	sendEvent(t, ws, types.EventJoin, types.JoinPayload{Alias: "alice"})
	assert.Equal(t, types.EventHistory, readEvent(t, ws).Event)
	assert.Equal(t, types.EventJoined, readEvent(t, ws).Event)
	assert.Equal(t, 1, b.Stats()["active_sessions"])
}

func TestHandler_DisconnectCleansUp(t *testing.T) {
	srv, b := startTestServer(t)

	alice := dial(t, srv)
	sendEvent(t, alice, types.EventJoin, types.JoinPayload{Alias: "alice"})
	readEvent(t, alice)
	readEvent(t, alice)

	bob := dial(t, srv)
	sendEvent(t, bob, types.EventJoin, types.JoinPayload{Alias: "bob"})
	readEvent(t, bob)
	readEvent(t, bob)
	readEvent(t, alice) // bob's join notice

	require.NoError(t, bob.Close())

	lost := readEvent(t, alice)
	require.Equal(t, types.EventMessage, lost.Event)
	var msg types.Message
	require.NoError(t, json.Unmarshal(lost.Data, &msg))
	assert.Contains(t, msg.Content, "Connection lost: bob")

	require.Eventually(t, func() bool {
		return b.Stats()["active_sessions"] == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestConnection_SendAfterClose(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dial(t, srv)

	conn := NewConnection(ws, testSettings())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send(types.ServerEvent{Event: types.EventPurgeSignal}), ErrConnectionClosed)
	require.NoError(t, conn.Close(), "close is idempotent")
}
