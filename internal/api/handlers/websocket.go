package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/ws"
)

// HandleSessionWebSocket handles real-time toss gameplay communication
func HandleSessionWebSocket(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return ws.HandleWebSocket
}
