package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/bintoss/backend/internal/admin"
	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/game"
	"github.com/bintoss/backend/internal/logging"
)

const adminTokenTTL = 4 * time.Hour
const adminLoginRateLimit = 5 * time.Second

// AdminLogin validates operator credentials and issues a JWT
func AdminLogin(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		username := strings.TrimSpace(req.Username)
		password := strings.TrimSpace(req.Password)

		// Rate limit per username
		if rdb != nil {
			ctx := context.Background()
			key := fmt.Sprintf("admin_login_rate:%s", username)
			ok, err := rdb.SetNX(ctx, key, "1", adminLoginRateLimit).Result()
			if err == nil && !ok {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
				return
			}
		}

		acc, err := admin.GetAdminAccount(db, username)
		if err != nil || !admin.VerifyAdminPassword(acc.PasswordHash, password) {
			logging.S.Warnf("[ADMIN] Login failed for username %s", username)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login", map[string]interface{}{"username": username}, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		if len(acc.AllowedIPs) > 0 && !ipAllowed(acc.AllowedIPs, c.ClientIP()) {
			logging.S.Warnf("[ADMIN] Login from disallowed IP %s for %s", c.ClientIP(), username)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login_ip_blocked", nil, false)
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		exp := time.Now().Add(adminTokenTTL)
		claims := jwt.MapClaims{
			"username": acc.Username,
			"roles":    []string(acc.Roles),
			"exp":      exp.Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			logging.S.Errorf("[ADMIN] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/login", "login_success", nil, true)
		c.JSON(http.StatusOK, gin.H{
			"token":      signed,
			"expires_at": exp,
			"admin": gin.H{
				"username":     acc.Username,
				"display_name": acc.DisplayName,
				"roles":        acc.Roles,
			},
		})
	}
}

func ipAllowed(allowed []string, ip string) bool {
	for _, a := range allowed {
		if a == ip {
			return true
		}
	}
	return false
}

// AdminAuthMiddleware validates the bearer JWT on admin routes
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if username, ok := claims["username"].(string); ok {
				c.Set("admin_username", username)
			}
		}

		c.Next()
	}
}

// GetAdminStats returns operator-facing aggregates across players and sessions
func GetAdminStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("admin_username")

		var stats struct {
			TotalPlayers   int `db:"total_players"`
			TotalSessions  int `db:"total_sessions"`
			TotalScores    int `db:"total_scores"`
			SessionsToday  int `db:"sessions_today"`
			ScoresToday    int `db:"scores_today"`
			CompletedCount int `db:"completed_count"`
		}
		err := db.Get(&stats, `
			SELECT
				(SELECT COUNT(*) FROM players) AS total_players,
				(SELECT COUNT(*) FROM toss_sessions) AS total_sessions,
				(SELECT COUNT(*) FROM score_events) AS total_scores,
				(SELECT COUNT(*) FROM toss_sessions WHERE created_at >= CURRENT_DATE) AS sessions_today,
				(SELECT COUNT(*) FROM score_events WHERE created_at >= CURRENT_DATE) AS scores_today,
				(SELECT COUNT(*) FROM toss_sessions WHERE status = 'COMPLETED') AS completed_count
		`)
		if err != nil {
			logging.S.Errorf("[ADMIN] Failed to fetch stats: %v", err)
			admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/stats", "get_stats", nil, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
			return
		}

		admin.LogAdminAction(db, username, c.ClientIP(), "/api/v1/admin/stats", "get_stats", nil, true)
		c.JSON(http.StatusOK, gin.H{
			"active_sessions": game.Manager.GetActiveSessionCount(),
			"total_players":   stats.TotalPlayers,
			"total_sessions":  stats.TotalSessions,
			"total_scores":    stats.TotalScores,
			"sessions_today":  stats.SessionsToday,
			"scores_today":    stats.ScoresToday,
			"completed_count": stats.CompletedCount,
		})
	}
}

// GetAdminAuditLog returns recent admin actions with pagination
func GetAdminAuditLog(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		offset := 0
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		logs, err := admin.GetAdminAuditLogs(db, limit, offset)
		if err != nil {
			logging.S.Errorf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
	}
}
