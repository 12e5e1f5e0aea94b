package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/bintoss/backend/internal/config"
	"github.com/bintoss/backend/internal/logging"
)

// SessionManager owns all active toss sessions and their loop goroutines.
type SessionManager struct {
	sessions        map[string]*TossSession // keyed by session ID
	tokenToSession  map[string]string       // session token -> session ID
	playerToSession map[string]string       // player ID -> session ID
	loops           map[string]*loopHandle
	rdb             *redis.Client
	db              *sqlx.DB
	config          *config.Config
	rootCtx         context.Context
	mu              sync.RWMutex
}

// Manager is the global session manager instance.
var Manager *SessionManager

// InitializeManager initializes the global manager with Redis, DB and config
// and starts background jobs.
func InitializeManager(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	Manager = NewSessionManager(ctx, db, rdb, cfg)
	go Manager.StartExpiryChecker(ctx)
}

// NewSessionManager creates a session manager.
func NewSessionManager(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *SessionManager {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SessionManager{
		sessions:        make(map[string]*TossSession),
		tokenToSession:  make(map[string]string),
		playerToSession: make(map[string]string),
		loops:           make(map[string]*loopHandle),
		rdb:             rdb,
		db:              db,
		config:          cfg,
		rootCtx:         ctx,
	}
}

// generateToken generates a secure random token.
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetConfig returns the manager's config.
func (sm *SessionManager) GetConfig() *config.Config {
	return sm.config
}

// ErrTooManySessions is returned when an address already holds its full
// quota of live sessions.
var ErrTooManySessions = errors.New("too many active sessions for this address")

// CreateSession registers a new toss session for a player. The player row is
// upserted by display name so returning players keep their running totals.
// An empty clientIP skips the per-address quota.
func (sm *SessionManager) CreateSession(displayName, clientIP string) (*TossSession, error) {
	if displayName == "" {
		displayName = "Player"
	}

	if clientIP != "" && sm.config != nil && sm.config.MaxSessionsPerIP > 0 {
		sm.mu.RLock()
		active := 0
		for _, existing := range sm.sessions {
			if existing.ClientIP == clientIP {
				active++
			}
		}
		sm.mu.RUnlock()
		if active >= sm.config.MaxSessionsPerIP {
			logging.S.Warnf("[MANAGER] Session quota reached for %s", clientIP)
			return nil, ErrTooManySessions
		}
	}

	dbPlayerID := sm.upsertPlayer(displayName)

	sessionID := uuid.NewString()
	sessionToken := generateToken(16)
	playerID := "p_" + generateToken(8)
	playerToken := generateToken(16)

	s := NewTossSession(sessionID, sessionToken, playerID, playerToken, dbPlayerID, displayName)
	s.ClientIP = clientIP
	s.DBSessionID = sm.insertSessionRecord(s)

	sm.mu.Lock()
	sm.sessions[sessionID] = s
	sm.tokenToSession[sessionToken] = sessionID
	sm.playerToSession[playerID] = sessionID
	sm.mu.Unlock()

	sm.saveSessionToRedis(s)

	logging.S.Infof("[MANAGER] Session created: %s (player=%s)", sessionID, displayName)
	return s, nil
}

// GetSession returns a session by ID.
func (sm *SessionManager) GetSession(sessionID string) (*TossSession, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return nil, errors.New("session not found")
	}
	return s, nil
}

// GetSessionByToken returns a session by its public token, rehydrating from
// Redis if the process restarted since the session was created.
func (sm *SessionManager) GetSessionByToken(token string) (*TossSession, error) {
	sm.mu.RLock()
	if id, ok := sm.tokenToSession[token]; ok {
		if s, ok := sm.sessions[id]; ok {
			sm.mu.RUnlock()
			return s, nil
		}
	}
	sm.mu.RUnlock()

	s, err := sm.loadSessionFromRedis(token)
	if err != nil {
		return nil, errors.New("session not found")
	}

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.tokenToSession[s.Token] = s.ID
	sm.playerToSession[s.Player.ID] = s.ID
	sm.mu.Unlock()

	logging.S.Infof("[MANAGER] Session %s rehydrated from Redis", s.ID)
	return s, nil
}

// loopHandle identifies one loop goroutine's registration. The handle
// pointer is the ownership token: a loop may only unregister the entry it
// registered, so an exiting loop never removes a successor started for the
// same session.
type loopHandle struct {
	cancel context.CancelFunc
}

// StartLoop launches the session's simulation loop if it is not already
// running. Output goes to the given broadcaster.
func (sm *SessionManager) StartLoop(s *TossSession, sink Broadcaster) {
	sm.mu.Lock()
	if _, running := sm.loops[s.ID]; running {
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(sm.rootCtx)
	h := &loopHandle{cancel: cancel}
	sm.loops[s.ID] = h
	sm.mu.Unlock()

	loop := NewLoop(s, sink)
	go func() {
		loop.Run(ctx)
		sm.mu.Lock()
		if cur, ok := sm.loops[s.ID]; ok && cur == h {
			delete(sm.loops, s.ID)
		}
		sm.mu.Unlock()
	}()
}

// StopLoop cancels a session's loop goroutine.
func (sm *SessionManager) StopLoop(sessionID string) {
	sm.mu.Lock()
	h, ok := sm.loops[sessionID]
	if ok {
		delete(sm.loops, sessionID)
	}
	sm.mu.Unlock()
	if ok {
		h.cancel()
	}
}

// EndSession closes a session and persists its final state.
func (sm *SessionManager) EndSession(sessionID string) error {
	sm.mu.Lock()
	s, ok := sm.sessions[sessionID]
	if ok {
		delete(sm.sessions, sessionID)
		delete(sm.tokenToSession, s.Token)
		delete(sm.playerToSession, s.Player.ID)
	}
	sm.mu.Unlock()

	if !ok {
		return errors.New("session not found")
	}

	sm.StopLoop(sessionID)
	s.Close()
	sm.SaveFinalSessionState(s)
	return nil
}

// GetActiveSessionCount returns the number of live sessions.
func (sm *SessionManager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// RecordScoreEvent persists one scored toss and bumps the global
// leaderboard. Safe to call without DB or Redis configured.
func (sm *SessionManager) RecordScoreEvent(dbSessionID, dbPlayerID, seq int, wind Wind) {
	if sm == nil {
		return
	}

	if sm.db != nil && dbSessionID > 0 && dbPlayerID > 0 {
		_, err := sm.db.Exec(
			`INSERT INTO score_events (session_id, player_id, seq, wind_speed, wind_label, created_at) VALUES ($1,$2,$3,$4,$5,NOW())`,
			dbSessionID, dbPlayerID, seq, wind.Speed, wind.Label,
		)
		if err != nil {
			logging.S.Errorf("[DB] Failed to record score event for session %d: %v", dbSessionID, err)
		}
	}

	if sm.rdb != nil && dbPlayerID > 0 {
		ctx := context.Background()
		member := fmt.Sprintf("player:%d", dbPlayerID)
		if err := sm.rdb.ZIncrBy(ctx, "leaderboard", 1, member).Err(); err != nil {
			logging.S.Errorf("[REDIS] Failed to bump leaderboard for %s: %v", member, err)
		}
	}
}

// LeaderboardEntry is one row of the global leaderboard.
type LeaderboardEntry struct {
	DisplayName string  `json:"display_name" db:"display_name"`
	TotalScore  float64 `json:"total_score" db:"total_score"`
}

// Leaderboard returns the top scorers, preferring the Redis sorted set and
// falling back to the DB aggregate.
func (sm *SessionManager) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	if sm.rdb != nil {
		ctx := context.Background()
		zs, err := sm.rdb.ZRevRangeWithScores(ctx, "leaderboard", 0, int64(limit-1)).Result()
		if err == nil && len(zs) > 0 {
			entries := make([]LeaderboardEntry, 0, len(zs))
			for _, z := range zs {
				member, _ := z.Member.(string)
				entries = append(entries, LeaderboardEntry{
					DisplayName: sm.resolvePlayerName(member),
					TotalScore:  z.Score,
				})
			}
			return entries, nil
		}
	}

	if sm.db == nil {
		return []LeaderboardEntry{}, nil
	}

	var entries []LeaderboardEntry
	err := sm.db.Select(&entries,
		`SELECT display_name, total_score FROM players ORDER BY total_score DESC LIMIT $1`, limit)
	return entries, err
}

// resolvePlayerName turns a leaderboard member ("player:<id>") back into a
// display name, falling back to the raw member.
func (sm *SessionManager) resolvePlayerName(member string) string {
	if sm.db == nil {
		return member
	}
	var id int
	if _, err := fmt.Sscanf(member, "player:%d", &id); err != nil {
		return member
	}
	var name string
	if err := sm.db.Get(&name, `SELECT display_name FROM players WHERE id = $1`, id); err != nil {
		return member
	}
	return name
}

// SaveFinalSessionState writes the session summary and player totals.
func (sm *SessionManager) SaveFinalSessionState(s *TossSession) {
	if sm == nil || sm.db == nil || s.DBSessionID == 0 {
		return
	}

	s.mu.RLock()
	score := s.Score
	tossCount := s.TossCount
	status := string(s.Status)
	playerDBID := s.Player.DBPlayerID
	completedAt := s.CompletedAt
	s.mu.RUnlock()

	_, err := sm.db.Exec(
		`UPDATE toss_sessions SET score=$1, toss_count=$2, status=$3, completed_at=$4 WHERE id=$5`,
		score, tossCount, status, completedAt, s.DBSessionID,
	)
	if err != nil {
		logging.S.Errorf("[DB] Failed to save final state for session %d: %v", s.DBSessionID, err)
		return
	}

	if playerDBID > 0 {
		_, err = sm.db.Exec(
			`UPDATE players SET total_sessions = total_sessions + 1,
			        total_score = total_score + $1,
			        best_score = GREATEST(best_score, $1),
			        last_active = NOW()
			 WHERE id = $2`,
			score, playerDBID,
		)
		if err != nil {
			logging.S.Errorf("[DB] Failed to update totals for player %d: %v", playerDBID, err)
		}
	}
}

// StartExpiryChecker closes sessions that have lived past their expiry.
func (sm *SessionManager) StartExpiryChecker(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.expireStaleSessions()
		}
	}
}

func (sm *SessionManager) expireStaleSessions() {
	now := time.Now()

	var idleLimit time.Duration
	if sm.config != nil && sm.config.SessionTimeoutMin > 0 {
		idleLimit = time.Duration(sm.config.SessionTimeoutMin) * time.Minute
	}

	sm.mu.RLock()
	var stale []*TossSession
	for _, s := range sm.sessions {
		s.mu.RLock()
		live := s.Status != StatusCompleted && s.Status != StatusExpired
		expired := live && now.After(s.ExpiresAt)
		// A disconnected session that has gone quiet is reclaimed before
		// its hard expiry.
		idle := live && idleLimit > 0 && !s.Player.Connected && now.Sub(s.LastActivity) > idleLimit
		s.mu.RUnlock()
		if expired || idle {
			stale = append(stale, s)
		}
	}
	sm.mu.RUnlock()

	for _, s := range stale {
		logging.S.Infof("[EXPIRY] Session %s expired", s.ID)
		s.Expire()
		sm.StopLoop(s.ID)
		sm.SaveFinalSessionState(s)

		sm.mu.Lock()
		delete(sm.sessions, s.ID)
		delete(sm.tokenToSession, s.Token)
		delete(sm.playerToSession, s.Player.ID)
		sm.mu.Unlock()
	}
}

// === Persistence helpers ===

func (sm *SessionManager) upsertPlayer(displayName string) int {
	if sm.db == nil {
		return 0
	}
	var id int
	err := sm.db.Get(&id,
		`INSERT INTO players (display_name, created_at, last_active)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT (display_name) DO UPDATE SET last_active = NOW()
		 RETURNING id`,
		displayName,
	)
	if err != nil {
		logging.S.Errorf("[DB] Failed to upsert player %q: %v", displayName, err)
		return 0
	}
	return id
}

func (sm *SessionManager) insertSessionRecord(s *TossSession) int {
	if sm.db == nil {
		return 0
	}
	var id int
	err := sm.db.Get(&id,
		`INSERT INTO toss_sessions (session_token, player_id, status, created_at, expires_at)
		 VALUES ($1, NULLIF($2, 0), $3, $4, $5) RETURNING id`,
		s.Token, s.Player.DBPlayerID, string(s.Status), s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		logging.S.Errorf("[DB] Failed to insert session record for %s: %v", s.ID, err)
		return 0
	}
	return id
}

// sessionSnapshot is the Redis persistence format.
type sessionSnapshot struct {
	ID           string        `json:"id"`
	Token        string        `json:"token"`
	PlayerID     string        `json:"player_id"`
	PlayerToken  string        `json:"player_token"`
	DBPlayerID   int           `json:"db_player_id"`
	DBSessionID  int           `json:"db_session_id"`
	DisplayName  string        `json:"display_name"`
	Status       SessionStatus `json:"status"`
	Score        int           `json:"score"`
	TossCount    int           `json:"toss_count"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	LastActivity time.Time     `json:"last_activity"`
	ClientIP     string        `json:"client_ip,omitempty"`
}

func (sm *SessionManager) saveSessionToRedis(s *TossSession) {
	if sm == nil || sm.rdb == nil {
		return
	}

	s.mu.RLock()
	snap := sessionSnapshot{
		ID:           s.ID,
		Token:        s.Token,
		PlayerID:     s.Player.ID,
		PlayerToken:  s.Player.PlayerToken,
		DBPlayerID:   s.Player.DBPlayerID,
		DBSessionID:  s.DBSessionID,
		DisplayName:  s.Player.DisplayName,
		Status:       s.Status,
		Score:        s.Score,
		TossCount:    s.TossCount,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
		LastActivity: s.LastActivity,
		ClientIP:     s.ClientIP,
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		logging.S.Errorf("[REDIS] Failed to marshal session %s: %v", s.ID, err)
		return
	}

	ctx := context.Background()
	key := "session:" + s.Token + ":state"
	if err := sm.rdb.SetEx(ctx, key, data, time.Hour).Err(); err != nil {
		logging.S.Errorf("[REDIS] Failed to save session %s: %v", s.ID, err)
	}
}

func (sm *SessionManager) loadSessionFromRedis(token string) (*TossSession, error) {
	if sm.rdb == nil {
		return nil, errors.New("redis not configured")
	}

	ctx := context.Background()
	data, err := sm.rdb.Get(ctx, "session:"+token+":state").Bytes()
	if err != nil {
		return nil, err
	}

	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	s := NewTossSession(snap.ID, snap.Token, snap.PlayerID, snap.PlayerToken, snap.DBPlayerID, snap.DisplayName)
	s.DBSessionID = snap.DBSessionID
	s.Status = snap.Status
	s.Score = snap.Score
	s.TossCount = snap.TossCount
	s.CreatedAt = snap.CreatedAt
	s.ExpiresAt = snap.ExpiresAt
	s.LastActivity = snap.LastActivity
	s.ClientIP = snap.ClientIP
	return s, nil
}

// SaveToRedis saves the session state via the manager.
func (s *TossSession) SaveToRedis() {
	if Manager != nil && Manager.rdb != nil {
		Manager.saveSessionToRedis(s)
	}
}
