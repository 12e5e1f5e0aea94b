package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Player represents a user in the system
type Player struct {
	ID            int          `db:"id" json:"id"`
	DisplayName   string       `db:"display_name" json:"display_name"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	TotalSessions int          `db:"total_sessions" json:"total_sessions"`
	TotalScore    int          `db:"total_score" json:"total_score"`
	BestScore     int          `db:"best_score" json:"best_score"`
	LastActive    sql.NullTime `db:"last_active" json:"last_active,omitempty"`
}

// TossSessionRecord is the persistent summary of one play session.
type TossSessionRecord struct {
	ID           int           `db:"id" json:"id"`
	SessionToken string        `db:"session_token" json:"session_token"`
	PlayerID     sql.NullInt64 `db:"player_id" json:"player_id,omitempty"`
	Score        int           `db:"score" json:"score"`
	TossCount    int           `db:"toss_count" json:"toss_count"`
	Status       string        `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	CompletedAt  sql.NullTime  `db:"completed_at" json:"completed_at,omitempty"`
	ExpiresAt    time.Time     `db:"expires_at" json:"expires_at"`
}

// ScoreEvent records a single scored toss with the wind at the moment of
// scoring.
type ScoreEvent struct {
	ID        int       `db:"id" json:"id"`
	SessionID int       `db:"session_id" json:"session_id"`
	PlayerID  int       `db:"player_id" json:"player_id"`
	Seq       int       `db:"seq" json:"seq"`
	WindSpeed float64   `db:"wind_speed" json:"wind_speed"`
	WindLabel string    `db:"wind_label" json:"wind_label"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AdminAccount is an operator login.
type AdminAccount struct {
	Username     string         `db:"username" json:"username"`
	DisplayName  string         `db:"display_name" json:"display_name"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
	AllowedIPs   pq.StringArray `db:"allowed_ips" json:"allowed_ips"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// AdminAudit is one entry in the admin action log.
type AdminAudit struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	IP        string    `db:"ip" json:"ip"`
	Route     string    `db:"route" json:"route"`
	Action    string    `db:"action" json:"action"`
	Details   []byte    `db:"details" json:"details"`
	Success   bool      `db:"success" json:"success"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
