package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bintoss/backend/internal/game"
	"github.com/bintoss/backend/internal/logging"
	"github.com/bintoss/backend/internal/scenery"
)

// BackgroundRequest is the body for POST /session/:token/background.
type BackgroundRequest struct {
	Prompt string `json:"prompt"`
	Tier   string `json:"tier"`
}

// GenerateBackground asks the scenery service for a background image and
// swaps it into the session's frames.
func GenerateBackground(c *gin.Context) {
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

	var req BackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Tier == "" {
		req.Tier = "1K"
	}
	if !scenery.ResolutionTiers[req.Tier] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier must be one of 1K, 2K, 4K"})
		return
	}

	if scenery.Default == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "background generation not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	url, err := scenery.Default.GenerateBackground(ctx, token, req.Prompt, req.Tier)
	if err != nil {
		if errors.Is(err, scenery.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "background requests are rate limited, try again shortly"})
			return
		}
		logging.S.Errorf("[BACKGROUND] Generation failed for session %s: %v", s.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "background generation failed"})
		return
	}

	s.SetBackground(url)
	c.JSON(http.StatusOK, gin.H{"url": url, "tier": req.Tier})
}
