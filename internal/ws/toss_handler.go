package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bintoss/backend/internal/game"
	"github.com/bintoss/backend/internal/logging"
	"github.com/bintoss/backend/internal/scenery"
)

// Toss-specific message data types
type GestureData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ResizeData struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ChatData struct {
	Message string `json:"message"`
}

// GameHub is the single hub for all sessions.
var GameHub *Hub

func init() {
	GameHub = NewHub()
	go runGameHub(GameHub)
}

// HandleWebSocket upgrades a player connection onto their toss session.
func HandleWebSocket(c *gin.Context) {
	sessionToken := c.Param("token")
	if sessionToken == "" {
		sessionToken = c.Query("token")
	}
	playerToken := c.Query("pt")

	if sessionToken == "" || playerToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and pt required"})
		return
	}

	s, err := game.Manager.GetSessionByToken(sessionToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if s.Player.PlayerToken != playerToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid player token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.S.Warnf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:         conn,
		playerID:     s.Player.ID,
		sessionID:    s.ID,
		sessionToken: sessionToken,
		send:         make(chan []byte, 256),
	}

	GameHub.register <- client

	go client.writePump()
	go client.readPump()
}

// runGameHub owns registration and teardown for toss clients.
func runGameHub(h *Hub) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()

			if oldClient, exists := h.clients[client.playerID]; exists {
				logging.S.Infof("[WS] Player %s reconnecting - closing old connection", client.playerID)
				if err := oldClient.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"), time.Now().Add(5*time.Second)); err != nil {
					logging.S.Warnf("[WS] Error closing old connection for %s: %v", oldClient.playerID, err)
				}
				oldClient.conn.Close()
				select {
				case <-oldClient.send:
				default:
					close(oldClient.send)
				}
				delete(h.clients, client.playerID)
				if room, exists := h.rooms[oldClient.sessionID]; exists {
					delete(room, client.playerID)
				}
			}

			h.clients[client.playerID] = client
			if _, exists := h.rooms[client.sessionID]; !exists {
				h.rooms[client.sessionID] = make(map[string]*Client)
			}
			h.rooms[client.sessionID][client.playerID] = client
			h.mu.Unlock()

			logging.S.Infof("[WS] Player %s connected to session %s", client.playerID, client.sessionID)

			s, err := game.Manager.GetSessionByToken(client.sessionToken)
			if err != nil {
				logging.S.Warnf("[WS] Session not found for token %s: %v", client.sessionToken, err)
				continue
			}

			s.MarkStarted()
			s.SetPlayerConnected(true)
			game.Manager.StartLoop(s, h)
			s.SaveToRedis()

			state := s.GetStateForPlayer()
			state["type"] = "state"
			h.SendToPlayer(client.playerID, state)

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.playerID]; ok && cur == client {
				delete(h.clients, client.playerID)
				if room, exists := h.rooms[client.sessionID]; exists {
					delete(room, client.playerID)
					if len(room) == 0 {
						delete(h.rooms, client.sessionID)
					}
				}

				logging.S.Infof("[WS] Player %s disconnected from session %s", client.playerID, client.sessionID)

				if s, err := game.Manager.GetSessionByToken(client.sessionToken); err == nil {
					s.SetPlayerConnected(false)
					s.SaveToRedis()
					// Nobody is watching; the loop has nothing to publish to.
					// The session itself survives for reconnect until expiry.
					game.Manager.StopLoop(client.sessionID)
				}

				select {
				case <-client.send:
				default:
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// readPump reads messages for toss sessions.
func (c *Client) readPump() {
	defer func() {
		GameHub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.S.Warnf("[WS] Unexpected close for player %s: %v", c.playerID, err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage processes incoming toss messages. Gesture handlers run
// synchronously and only record the gesture or trigger a phase transition;
// the loop does all integration on its own tick.
func (c *Client) handleMessage(msg WSMessage) {
	s, err := game.Manager.GetSessionByToken(c.sessionToken)
	if err != nil {
		c.sendError("Session not found")
		return
	}

	switch msg.Type {
	case "gesture_begin":
		var data GestureData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid gesture data")
			return
		}
		if err := s.BeginGesture(data.X, data.Y); err != nil {
			c.sendError(err.Error())
		}

	case "gesture_update":
		var data GestureData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid gesture data")
			return
		}
		s.UpdateGesture(data.X, data.Y)

	case "gesture_end", "gesture_leave":
		// Pointer-leave resolves exactly like pointer-up.
		var data GestureData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid gesture data")
			return
		}
		if threw := s.EndGesture(data.X, data.Y); threw {
			s.SaveToRedis()
		}

	case "resize":
		var data ResizeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid resize data")
			return
		}
		s.Resize(data.Width, data.Height)

	case "get_state":
		state := s.GetStateForPlayer()
		state["type"] = "state"
		d, _ := json.Marshal(state)
		select {
		case c.send <- d:
		default:
		}

	case "chat":
		var data ChatData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid chat data")
			return
		}
		c.handleChat(data)

	default:
		c.sendError("Unknown message type")
	}
}

// handleChat relays a message to the assistant off the read loop. Failures
// surface as a canned reply, never as an error.
func (c *Client) handleChat(data ChatData) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reply := scenery.Default.Chat(ctx, data.Message)
		GameHub.SendToPlayer(c.playerID, map[string]interface{}{
			"type":  "chat_reply",
			"reply": reply,
		})
	}()
}
