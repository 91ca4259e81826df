package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/game"
	"github.com/atriumhq/atrium/pkg/protocol"
)

// wsClient drives one real WebSocket connection against a test server.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func startTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(DefaultConfig(), nil, nil, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWebSocket)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Shutdown()
		ts.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, payload any) {
	c.t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(c.t, err)
	frame, err := json.Marshal(protocol.Envelope{Type: msgType, Payload: body})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

// waitFor reads frames until one of the wanted type arrives, failing on
// timeout. Interleaved frames of other types are discarded.
func (c *wsClient) waitFor(msgType string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", msgType)

		var env protocol.Envelope
		require.NoError(c.t, json.Unmarshal(data, &env))
		if env.Type == msgType {
			return env.Payload
		}
	}
}

func (c *wsClient) join(roomID, userID, name string) {
	c.t.Helper()
	c.send(protocol.TypeRoomJoin, protocol.RoomJoin{RoomID: roomID, UserID: userID, Name: name})
	c.waitFor(protocol.TypeRoomJoined)
}

func TestWebSocketJoinAndSnapshot(t *testing.T) {
	_, ts := startTestServer(t)

	alice := dial(t, ts)
	alice.send(protocol.TypeRoomJoin, protocol.RoomJoin{RoomID: "lobby", UserID: "u1", Name: "Alice"})

	var state protocol.RoomState
	require.NoError(t, json.Unmarshal(alice.waitFor(protocol.TypeRoomState), &state))
	assert.Empty(t, state.Players)

	var joined protocol.RoomJoined
	require.NoError(t, json.Unmarshal(alice.waitFor(protocol.TypeRoomJoined), &joined))
	assert.Equal(t, "lobby", joined.RoomID)
	assert.Equal(t, RoleUser, joined.Role)

	// Second client sees Alice at the spawn point.
	bob := dial(t, ts)
	bob.send(protocol.TypeRoomJoin, protocol.RoomJoin{RoomID: "lobby", UserID: "u2", Name: "Bob"})

	require.NoError(t, json.Unmarshal(bob.waitFor(protocol.TypeRoomState), &state))
	require.Len(t, state.Players, 1)
	assert.Equal(t, "u1", state.Players[0].ID)
	assert.Equal(t, float64(SpawnX), state.Players[0].X)

	// Alice sees Bob join.
	var announce protocol.PlayerJoined
	require.NoError(t, json.Unmarshal(alice.waitFor(protocol.TypePlayerJoined), &announce))
	assert.Equal(t, "u2", announce.ID)
}

func TestWebSocketChatRoundTrip(t *testing.T) {
	_, ts := startTestServer(t)

	alice := dial(t, ts)
	alice.join("lobby", "u1", "Alice")
	bob := dial(t, ts)
	bob.join("lobby", "u2", "Bob")

	alice.send(protocol.TypeChatMessage, protocol.ChatMessage{Text: "hello room"})

	for _, c := range []*wsClient{alice, bob} {
		var msg protocol.ChatBroadcast
		require.NoError(t, json.Unmarshal(c.waitFor(protocol.TypeChatMessage), &msg))
		assert.Equal(t, "hello room", msg.Text)
		assert.Equal(t, "Alice", msg.Username)
		assert.NotEmpty(t, msg.ID)
	}
}

func TestWebSocketMoveRelay(t *testing.T) {
	_, ts := startTestServer(t)

	alice := dial(t, ts)
	alice.join("lobby", "u1", "Alice")
	bob := dial(t, ts)
	bob.join("lobby", "u2", "Bob")

	alice.send(protocol.TypePlayerMove, protocol.PlayerMove{X: 101, Y: 202})

	var moved protocol.PlayerMoved
	require.NoError(t, json.Unmarshal(bob.waitFor(protocol.TypePlayerMoved), &moved))
	assert.Equal(t, "u1", moved.PlayerID)
	assert.Equal(t, 101.0, moved.X)
	assert.Equal(t, 202.0, moved.Y)
}

func TestWebSocketPingPong(t *testing.T) {
	_, ts := startTestServer(t)

	c := dial(t, ts)
	c.send(protocol.TypePing, protocol.Ping{Timestamp: 1234567890})

	var pong protocol.Pong
	require.NoError(t, json.Unmarshal(c.waitFor(protocol.TypePong), &pong))
	assert.Equal(t, int64(1234567890), pong.Timestamp)
}

func TestWebSocketInvalidFrame(t *testing.T) {
	_, ts := startTestServer(t)

	c := dial(t, ts)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var ev protocol.ErrorEvent
	require.NoError(t, json.Unmarshal(c.waitFor(protocol.TypeError), &ev))
	assert.Equal(t, "Invalid message format", ev.Message)
}

func TestWebSocketDisconnectBroadcastsLeave(t *testing.T) {
	srv, ts := startTestServer(t)

	alice := dial(t, ts)
	alice.join("lobby", "u1", "Alice")
	bob := dial(t, ts)
	bob.join("lobby", "u2", "Bob")
	alice.waitFor(protocol.TypePlayerJoined)

	bob.conn.Close()

	var left protocol.PlayerLeft
	require.NoError(t, json.Unmarshal(alice.waitFor(protocol.TypePlayerLeft), &left))
	assert.Equal(t, "u2", left.PlayerID)

	require.Eventually(t, func() bool {
		return srv.Sessions().CountOnline() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketGhostEvictionEndToEnd(t *testing.T) {
	_, ts := startTestServer(t)

	first := dial(t, ts)
	first.join("lobby", "u1", "Alice")

	watcher := dial(t, ts)
	watcher.join("lobby", "u2", "Watcher")
	first.waitFor(protocol.TypePlayerJoined)

	// Same identity reconnects; the first connection gets evicted.
	second := dial(t, ts)
	second.join("lobby", "u1", "Alice")

	var left protocol.PlayerLeft
	require.NoError(t, json.Unmarshal(watcher.waitFor(protocol.TypePlayerLeft), &left))
	assert.Equal(t, "u1", left.PlayerID)

	var joined protocol.PlayerJoined
	require.NoError(t, json.Unmarshal(watcher.waitFor(protocol.TypePlayerJoined), &joined))
	assert.Equal(t, "u1", joined.ID)

	// The evicted transport is closed by the server.
	require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestWebSocketGameSession(t *testing.T) {
	_, ts := startTestServer(t)

	alice := dial(t, ts)
	alice.join("lobby", "u1", "Alice")

	alice.send(protocol.TypeGameJoin, protocol.GameJoin{
		RoomID: "lobby", ZoneID: "arcade", GameID: "quiz-1", UserID: "u1", Username: "Alice",
	})

	var joined protocol.GameJoined
	require.NoError(t, json.Unmarshal(alice.waitFor(protocol.TypeGameJoined), &joined))
	require.NotEmpty(t, joined.GameSessionID)
	assert.Equal(t, game.StateWaiting, joined.InitialState.State)

	// The questions reach the client without the answer key.
	raw, err := json.Marshal(joined.InitialState.Questions)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correctIndex")

	alice.send(protocol.TypeGameAction, protocol.GameAction{
		GameSessionID: joined.GameSessionID,
		ActionType:    protocol.ActionStartGame,
	})

	var state protocol.GameState
	require.NoError(t, json.Unmarshal(alice.waitFor(protocol.TypeGameState), &state))
	assert.Equal(t, game.StateInProgress, state.State)
}
