package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bintoss/backend/internal/config"
)

// Manager tests run without DB or Redis; persistence is best-effort and the
// in-memory path must work standalone.

func newTestManager() *SessionManager {
	return NewSessionManager(context.Background(), nil, nil, nil)
}

func TestCreateSessionRegistersLookups(t *testing.T) {
	sm := newTestManager()

	s, err := sm.CreateSession("Ada", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.Token == "" || s.Player.PlayerToken == "" {
		t.Fatal("Session must carry both tokens")
	}
	if s.Token == s.Player.PlayerToken {
		t.Fatal("Session and player tokens must differ")
	}
	if s.Player.DisplayName != "Ada" {
		t.Errorf("DisplayName=%q, want Ada", s.Player.DisplayName)
	}

	byID, err := sm.GetSession(s.ID)
	if err != nil || byID != s {
		t.Errorf("GetSession did not return the created session: %v", err)
	}
	byToken, err := sm.GetSessionByToken(s.Token)
	if err != nil || byToken != s {
		t.Errorf("GetSessionByToken did not return the created session: %v", err)
	}
	if got := sm.GetActiveSessionCount(); got != 1 {
		t.Errorf("Active count=%d, want 1", got)
	}
}

func TestCreateSessionDefaultsDisplayName(t *testing.T) {
	sm := newTestManager()

	s, err := sm.CreateSession("", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.Player.DisplayName != "Player" {
		t.Errorf("DisplayName=%q, want Player", s.Player.DisplayName)
	}
}

func TestUnknownTokenIsNotFound(t *testing.T) {
	sm := newTestManager()

	if _, err := sm.GetSessionByToken("nope"); err == nil {
		t.Error("Unknown token should return an error")
	}
	if _, err := sm.GetSession("nope"); err == nil {
		t.Error("Unknown session ID should return an error")
	}
}

func TestEndSessionRemovesAndCompletes(t *testing.T) {
	sm := newTestManager()

	s, _ := sm.CreateSession("Ada", "")
	s.MarkStarted()

	if err := sm.EndSession(s.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if got := s.GetStatus(); got != StatusCompleted {
		t.Errorf("Status=%v, want %v", got, StatusCompleted)
	}
	if got := sm.GetActiveSessionCount(); got != 0 {
		t.Errorf("Active count=%d, want 0", got)
	}
	if _, err := sm.GetSessionByToken(s.Token); err == nil {
		t.Error("Ended session should no longer resolve by token")
	}
	if err := sm.EndSession(s.ID); err == nil {
		t.Error("Ending twice should report not found")
	}
}

func TestStartLoopIsIdempotent(t *testing.T) {
	sm := newTestManager()

	s, _ := sm.CreateSession("Ada", "")
	s.MarkStarted()
	sink := &recordingSink{}

	sm.StartLoop(s, sink)
	sm.StartLoop(s, sink) // second call must not spawn another loop

	sm.mu.Lock()
	running := len(sm.loops)
	sm.mu.Unlock()
	if running != 1 {
		t.Errorf("Running loops=%d, want 1", running)
	}

	sm.StopLoop(s.ID)
	deadline := time.Now().Add(time.Second)
	for {
		sm.mu.Lock()
		running = len(sm.loops)
		sm.mu.Unlock()
		if running == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Loop did not unregister after StopLoop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExpireStaleSessions(t *testing.T) {
	sm := newTestManager()

	s, _ := sm.CreateSession("Ada", "")
	s.MarkStarted()
	s.mu.Lock()
	s.ExpiresAt = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	sm.expireStaleSessions()

	if got := s.GetStatus(); got != StatusExpired {
		t.Errorf("Status=%v, want %v", got, StatusExpired)
	}
	if got := sm.GetActiveSessionCount(); got != 0 {
		t.Errorf("Expired session should be dropped, active=%d", got)
	}
}

func TestRecordScoreEventWithoutBackends(t *testing.T) {
	sm := newTestManager()

	// Must be a no-op rather than a panic.
	sm.RecordScoreEvent(0, 0, 1, Wind{Speed: 1, Label: "Breezy"})
}

func TestLeaderboardWithoutBackendsIsEmpty(t *testing.T) {
	sm := newTestManager()

	entries, err := sm.Leaderboard(10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty leaderboard, got %d entries", len(entries))
	}
}

func TestRestartedLoopSurvivesPredecessorTeardown(t *testing.T) {
	sm := newTestManager()

	s, _ := sm.CreateSession("Ada", "")
	s.MarkStarted()
	sink := &recordingSink{}

	// Rapid stop/start cycles leave earlier loop goroutines still winding
	// down while a successor is already registered for the same session. An
	// exiting loop must only remove its own registration, or the successor
	// becomes an unstoppable orphan.
	for i := 0; i < 500; i++ {
		sm.StartLoop(s, sink)
		sm.StopLoop(s.ID)
	}
	sm.StartLoop(s, sink)
	sm.StopLoop(s.ID)

	deadline := time.Now().Add(2 * time.Second)
	for {
		sm.mu.Lock()
		running := len(sm.loops)
		sm.mu.Unlock()
		if running == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Loop registry did not drain after the final StopLoop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Every loop was stopped, so broadcasting must have ceased for good.
	time.Sleep(50 * time.Millisecond)
	before := len(sink.byType("frame"))
	time.Sleep(150 * time.Millisecond)
	if after := len(sink.byType("frame")); after != before {
		t.Fatalf("Orphaned loop still broadcasting: frames went %d -> %d after StopLoop", before, after)
	}
}

func TestCreateSessionEnforcesPerAddressQuota(t *testing.T) {
	cfg := &config.Config{MaxSessionsPerIP: 2}
	sm := NewSessionManager(context.Background(), nil, nil, cfg)

	if _, err := sm.CreateSession("Ada", "10.0.0.1"); err != nil {
		t.Fatalf("First session: %v", err)
	}
	if _, err := sm.CreateSession("Grace", "10.0.0.1"); err != nil {
		t.Fatalf("Second session: %v", err)
	}
	if _, err := sm.CreateSession("Edsger", "10.0.0.1"); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("Third session from the same address: err=%v, want ErrTooManySessions", err)
	}

	// Other addresses and clients with no resolvable address are unaffected.
	if _, err := sm.CreateSession("Barbara", "10.0.0.2"); err != nil {
		t.Errorf("Other address: %v", err)
	}
	if _, err := sm.CreateSession("Alan", ""); err != nil {
		t.Errorf("Unknown address: %v", err)
	}
}

func TestEndedSessionFreesAddressQuota(t *testing.T) {
	cfg := &config.Config{MaxSessionsPerIP: 1}
	sm := NewSessionManager(context.Background(), nil, nil, cfg)

	s, err := sm.CreateSession("Ada", "10.0.0.1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := sm.CreateSession("Ada", "10.0.0.1"); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("Quota should be exhausted, err=%v", err)
	}
	if err := sm.EndSession(s.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := sm.CreateSession("Ada", "10.0.0.1"); err != nil {
		t.Errorf("Quota should be free again after EndSession: %v", err)
	}
}

func TestIdleDisconnectedSessionExpires(t *testing.T) {
	cfg := &config.Config{SessionTimeoutMin: 1}
	sm := NewSessionManager(context.Background(), nil, nil, cfg)

	s, _ := sm.CreateSession("Ada", "")
	s.MarkStarted()
	s.mu.Lock()
	s.LastActivity = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	sm.expireStaleSessions()

	if got := s.GetStatus(); got != StatusExpired {
		t.Errorf("Status=%v, want %v", got, StatusExpired)
	}
	if got := sm.GetActiveSessionCount(); got != 0 {
		t.Errorf("Idle session should be dropped, active=%d", got)
	}
}

func TestConnectedSessionOutlivesIdleCutoff(t *testing.T) {
	cfg := &config.Config{SessionTimeoutMin: 1}
	sm := NewSessionManager(context.Background(), nil, nil, cfg)

	s, _ := sm.CreateSession("Ada", "")
	s.MarkStarted()
	s.SetPlayerConnected(true)
	s.mu.Lock()
	s.LastActivity = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	sm.expireStaleSessions()

	if got := s.GetStatus(); got != StatusInProgress {
		t.Errorf("Status=%v, want %v", got, StatusInProgress)
	}
}
