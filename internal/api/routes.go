package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/bintoss/backend/internal/api/handlers"
	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/logging"
	"github.com/bintoss/backend/internal/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.WebSocketCORSCheck(cfg))

	// No-cache headers for development
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		logging.S.Info("[DEV MODE] No-cache headers enabled for all routes")
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		v1.GET("/leaderboard", handlers.GetLeaderboard)

		// Session endpoints
		session := v1.Group("/session")
		{
			session.POST("", handlers.CreateSession)
			session.GET("/:token", handlers.GetSessionState)
			session.DELETE("/:token", handlers.EndSession)
			session.POST("/:token/background", handlers.GenerateBackground)
			session.GET("/:token/ws", handlers.HandleSessionWebSocket(db, rdb, cfg))
		}

		// Admin endpoints
		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(db, rdb, cfg))

			authed := adminGroup.Group("")
			authed.Use(handlers.AdminAuthMiddleware(cfg))
			{
				authed.GET("/stats", handlers.GetAdminStats(db))
				authed.GET("/audit", handlers.GetAdminAuditLog(db))
			}
		}
	}
}
