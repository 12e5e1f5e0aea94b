package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bintoss/backend/internal/game"
)

func setupWSServer(t *testing.T) (*httptest.Server, *game.TossSession) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if game.Manager == nil {
		game.InitializeManager(context.Background(), nil, nil, nil)
	}

	s, err := game.Manager.CreateSession("WSTester", "")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/api/v1/session/:token/ws", HandleWebSocket)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { game.Manager.EndSession(s.ID) })
	return srv, s
}

func dialSession(t *testing.T, srv *httptest.Server, s *game.TossSession) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/api/v1/session/" + s.Token + "/ws?pt=" + s.Player.PlayerToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntilType drains the stream (frames arrive continuously) until a
// message of the wanted type shows up.
func readUntilType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg["type"] == msgType {
			return msg
		}
	}
	t.Fatalf("Never received a %q message", msgType)
	return nil
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": msgType, "data": json.RawMessage(raw)}))
}

func TestConnectDeliversStateSnapshot(t *testing.T) {
	srv, s := setupWSServer(t)
	conn := dialSession(t, srv, s)

	state := readUntilType(t, conn, "state")
	assert.Equal(t, s.ID, state["session_id"])
	assert.Equal(t, "WSTester", state["display_name"])
	assert.Equal(t, string(game.PhaseIdle), state["phase"])
	assert.EqualValues(t, 0, state["score"])
}

func TestConnectStartsFrameStream(t *testing.T) {
	srv, s := setupWSServer(t)
	conn := dialSession(t, srv, s)

	frame := readUntilType(t, conn, "frame")
	payload, ok := frame["frame"].(map[string]interface{})
	require.True(t, ok, "frame event should carry a frame payload")
	ops, ok := payload["ops"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, ops, "frame should carry draw ops")
}

func TestWeakGestureRoundTrip(t *testing.T) {
	srv, s := setupWSServer(t)
	conn := dialSession(t, srv, s)
	readUntilType(t, conn, "state")

	send(t, conn, "gesture_begin", GestureData{X: 200, Y: 500})
	send(t, conn, "gesture_end", GestureData{X: 200, Y: 480}) // too weak
	send(t, conn, "get_state", struct{}{})

	state := readUntilType(t, conn, "state")
	assert.Equal(t, string(game.PhaseIdle), state["phase"], "weak gesture should cancel back to idle")
	assert.EqualValues(t, 0, state["toss_count"])
}

func TestThrowGestureRoundTrip(t *testing.T) {
	srv, s := setupWSServer(t)
	conn := dialSession(t, srv, s)
	readUntilType(t, conn, "state")

	send(t, conn, "gesture_begin", GestureData{X: 200, Y: 500})
	send(t, conn, "gesture_update", GestureData{X: 200, Y: 450})
	send(t, conn, "gesture_end", GestureData{X: 200, Y: 410})

	// The frame stream shows the throw in flight.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := readUntilType(t, conn, "frame")
		payload := frame["frame"].(map[string]interface{})
		if payload["phase"] == string(game.PhaseThrown) {
			return
		}
	}
	t.Fatal("Never saw a THROWN frame after the gesture")
}

func TestPointerLeaveResolvesLikeRelease(t *testing.T) {
	srv, s := setupWSServer(t)
	conn := dialSession(t, srv, s)
	readUntilType(t, conn, "state")

	send(t, conn, "gesture_begin", GestureData{X: 200, Y: 500})
	send(t, conn, "gesture_leave", GestureData{X: 200, Y: 410})
	send(t, conn, "get_state", struct{}{})

	state := readUntilType(t, conn, "state")
	assert.EqualValues(t, 1, state["toss_count"], "leave with a strong drag should commit the throw")
}

func TestUnknownMessageTypeGetsError(t *testing.T) {
	srv, s := setupWSServer(t)
	conn := dialSession(t, srv, s)
	readUntilType(t, conn, "state")

	send(t, conn, "teleport", struct{}{})
	msg := readUntilType(t, conn, "error")
	assert.Equal(t, "Unknown message type", msg["message"])
}

func TestWrongPlayerTokenIsRejected(t *testing.T) {
	srv, s := setupWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/api/v1/session/" + s.Token + "/ws?pt=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestMissingTokenIsRejected(t *testing.T) {
	srv, _ := setupWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/unknown/ws?pt=x"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestStateRequestDropsWhenBufferFull(t *testing.T) {
	if game.Manager == nil {
		game.InitializeManager(context.Background(), nil, nil, nil)
	}
	s, err := game.Manager.CreateSession("Saturated", "")
	require.NoError(t, err)
	t.Cleanup(func() { game.Manager.EndSession(s.ID) })
	s.MarkStarted()

	// Write pump stalled: the outbound buffer is already full.
	c := &Client{
		playerID:     s.Player.ID,
		sessionID:    s.ID,
		sessionToken: s.Token,
		send:         make(chan []byte, 1),
	}
	c.send <- []byte(`{"type":"frame"}`)

	done := make(chan struct{})
	go func() {
		c.handleMessage(WSMessage{Type: "get_state"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("State request blocked on a saturated client")
	}
}
