package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bintoss/backend/internal/game"
)

// CreateSessionRequest is the body for POST /session.
type CreateSessionRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateSession registers a new toss session and hands back the tokens the
// client needs to open the websocket.
func CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.DisplayName) > 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display name too long"})
		return
	}

	s, err := game.Manager.CreateSession(req.DisplayName, c.ClientIP())
	if err != nil {
		if errors.Is(err, game.ErrTooManySessions) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many active sessions"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":    s.ID,
		"session_token": s.Token,
		"player_token":  s.Player.PlayerToken,
		"expires_at":    s.ExpiresAt,
		"ws_path":       fmt.Sprintf("/api/v1/session/%s/ws", s.Token),
	})
}

// GetSessionState returns the session snapshot for a polling client.
func GetSessionState(c *gin.Context) {
	token := c.Param("token")
	s, err := game.Manager.GetSessionByToken(token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, s.GetStateForPlayer())
}

// EndSession closes a session explicitly.
func EndSession(c *gin.Context) {
	token := c.Param("token")
	s, err := game.Manager.GetSessionByToken(token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if pt := c.Query("pt"); pt == "" || pt != s.Player.PlayerToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid player token"})
		return
	}

	if err := game.Manager.EndSession(s.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed", "score": s.GetScore()})
}
