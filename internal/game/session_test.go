package game

import (
	"testing"
	"time"
)

func newTestSession() *TossSession {
	s := NewTossSession("sess-1", "tok-1", "p_1", "pt-1", 0, "Tester")
	s.MarkStarted()
	return s
}

// advanceUntilSettled ticks the session until the throw resolves or the
// tick limit runs out.
func advanceUntilSettled(s *TossSession, maxTicks int) (TickResult, int) {
	var last TickResult
	for i := 0; i < maxTicks; i++ {
		last = s.Advance()
		if last.Scored || last.Missed {
			return last, i + 1
		}
	}
	return last, maxTicks
}

func TestGestureRequiresInProgressSession(t *testing.T) {
	s := NewTossSession("sess-1", "tok-1", "p_1", "pt-1", 0, "Tester")

	if err := s.BeginGesture(100, 500); err == nil {
		t.Error("Gesture before the session starts should be rejected")
	}

	s.MarkStarted()
	if err := s.BeginGesture(100, 500); err != nil {
		t.Errorf("Gesture on a started session should work: %v", err)
	}
}

func TestGestureOnlyStartsFromIdle(t *testing.T) {
	s := newTestSession()

	if err := s.BeginGesture(100, 500); err != nil {
		t.Fatalf("BeginGesture: %v", err)
	}
	if got := s.GetPhase(); got != PhaseDragging {
		t.Fatalf("Phase=%v, want %v", got, PhaseDragging)
	}

	// A second begin while already dragging is rejected.
	if err := s.BeginGesture(120, 480); err == nil {
		t.Error("BeginGesture while dragging should be rejected")
	}
}

func TestWeakGestureCancelsBackToIdle(t *testing.T) {
	s := newTestSession()

	s.BeginGesture(200, 500)
	s.UpdateGesture(200, 490)
	thrown := s.EndGesture(200, 480) // only 20px up

	if thrown {
		t.Error("Weak gesture should not throw")
	}
	if got := s.GetPhase(); got != PhaseIdle {
		t.Errorf("Phase=%v, want %v", got, PhaseIdle)
	}
	if !s.Ball.Velocity.IsZero() {
		t.Errorf("Cancelled gesture must impart no velocity: %+v", s.Ball.Velocity)
	}
	if s.TossCount != 0 {
		t.Errorf("Cancelled gesture should not count as a toss: %d", s.TossCount)
	}
}

func TestCommittedThrowEntersThrown(t *testing.T) {
	s := newTestSession()

	s.BeginGesture(200, 500)
	thrown := s.EndGesture(200, 430) // 70px up

	if !thrown {
		t.Fatal("70px gesture should throw")
	}
	if got := s.GetPhase(); got != PhaseThrown {
		t.Errorf("Phase=%v, want %v", got, PhaseThrown)
	}
	if s.TossCount != 1 {
		t.Errorf("TossCount=%d, want 1", s.TossCount)
	}
	if s.Ball.Velocity.Y >= 0 || s.Ball.Velocity.Z <= 0 {
		t.Errorf("Throw velocity should go up and forward: %+v", s.Ball.Velocity)
	}

	// Further gestures are ignored while the ball is in flight.
	if err := s.BeginGesture(100, 500); err == nil {
		t.Error("Gesture during flight should be rejected")
	}
}

func TestStraightThrowScores(t *testing.T) {
	s := newTestSession()
	s.resetDelay = 10 * time.Millisecond

	s.BeginGesture(200, 500)
	if !s.EndGesture(200, 410) { // 90px up lands in the bin under calm wind
		t.Fatal("90px gesture should throw")
	}

	res, ticks := advanceUntilSettled(s, 200)
	if !res.Scored {
		t.Fatalf("Straight calm throw should score, got %+v after %d ticks", res, ticks)
	}
	if got := s.GetScore(); got != 1 {
		t.Errorf("Score=%d, want 1", got)
	}
	if got := s.GetPhase(); got != PhaseLanded {
		t.Errorf("Phase=%v, want %v", got, PhaseLanded)
	}

	// After the hold delay the session re-pins for the next toss.
	time.Sleep(50 * time.Millisecond)
	if got := s.GetPhase(); got != PhaseIdle {
		t.Errorf("Phase after reset=%v, want %v", got, PhaseIdle)
	}
	if !s.Ball.Position.IsEqualTo(NewVec3(LaunchX, LaunchY, LaunchZ)) {
		t.Errorf("Ball not re-pinned after reset: %+v", s.Ball.Position)
	}
	if got := s.GetScore(); got != 1 {
		t.Errorf("Score must survive the reset, got %d", got)
	}
}

func TestShortThrowMisses(t *testing.T) {
	s := newTestSession()
	s.resetDelay = 10 * time.Millisecond

	s.BeginGesture(200, 500)
	if !s.EndGesture(200, 430) { // 70px: enough to throw, not enough to reach
		t.Fatal("70px gesture should throw")
	}

	res, ticks := advanceUntilSettled(s, 300)
	if !res.Missed {
		t.Fatalf("Short throw should miss, got %+v after %d ticks", res, ticks)
	}
	if got := s.GetScore(); got != 0 {
		t.Errorf("Miss should not change score, got %d", got)
	}
	if got := s.GetPhase(); got != PhaseMissed {
		t.Errorf("Phase=%v, want %v", got, PhaseMissed)
	}

	time.Sleep(50 * time.Millisecond)
	if got := s.GetPhase(); got != PhaseIdle {
		t.Errorf("Phase after reset=%v, want %v", got, PhaseIdle)
	}
}

func TestWideThrowMisses(t *testing.T) {
	s := newTestSession()
	s.resetDelay = 10 * time.Millisecond

	s.BeginGesture(200, 500)
	if !s.EndGesture(500, 410) { // same lift as a scoring throw, way off-axis
		t.Fatal("Gesture should throw")
	}

	res, ticks := advanceUntilSettled(s, 300)
	if !res.Scored && !res.Missed {
		t.Fatalf("Throw did not settle within %d ticks", ticks)
	}
	if res.Scored {
		t.Error("Heavily off-axis throw should not score")
	}
}

func TestResizeAppliesAtNextTick(t *testing.T) {
	s := newTestSession()

	s.Resize(1200, 900)
	// Camera unchanged until the loop picks it up.
	if s.Camera.OriginX != 400 {
		t.Fatalf("Camera moved before the tick: %+v", s.Camera)
	}

	s.Advance()
	if s.Camera.OriginX != 600 || s.Camera.OriginY != 450 {
		t.Errorf("Camera after resize=(%v,%v), want (600,450)", s.Camera.OriginX, s.Camera.OriginY)
	}
}

func TestResizeRejectsBogusDimensions(t *testing.T) {
	s := newTestSession()

	s.Resize(0, 600)
	s.Resize(800, -1)
	s.Advance()

	if s.Camera.OriginX != 400 || s.Camera.OriginY != 300 {
		t.Errorf("Bogus resize should be ignored: %+v", s.Camera)
	}
}

func TestWindChangeMidFlightBendsTrajectory(t *testing.T) {
	calm := newTestSession()
	windy := newTestSession()

	for _, s := range []*TossSession{calm, windy} {
		s.BeginGesture(200, 500)
		s.EndGesture(200, 410)
	}
	windy.SetWind(Wind{Speed: 5, Label: "Windy"})

	for i := 0; i < 10; i++ {
		calm.Advance()
		windy.Advance()
	}

	if windy.Ball.Position.X <= calm.Ball.Position.X {
		t.Errorf("Wind change must affect the live flight: calm x=%v windy x=%v",
			calm.Ball.Position.X, windy.Ball.Position.X)
	}
}

func TestSuspendFoldsFlightBackToIdle(t *testing.T) {
	s := newTestSession()

	s.BeginGesture(200, 500)
	s.EndGesture(200, 410)
	s.Advance()

	s.SuspendLoop()

	if got := s.GetPhase(); got != PhaseIdle {
		t.Errorf("Phase after suspend=%v, want %v", got, PhaseIdle)
	}
	if got := s.GetStatus(); got != StatusInProgress {
		t.Errorf("Suspend must not end the session: %v", got)
	}
	if !s.Ball.Position.IsEqualTo(NewVec3(LaunchX, LaunchY, LaunchZ)) {
		t.Errorf("Ball should be re-pinned on suspend: %+v", s.Ball.Position)
	}
}

func TestCloseCompletesSessionAndStopsReset(t *testing.T) {
	s := newTestSession()
	s.resetDelay = 10 * time.Millisecond

	s.BeginGesture(200, 500)
	s.EndGesture(200, 410)
	advanceUntilSettled(s, 200)

	s.Close()
	if got := s.GetStatus(); got != StatusCompleted {
		t.Errorf("Status=%v, want %v", got, StatusCompleted)
	}

	phase := s.GetPhase()
	time.Sleep(50 * time.Millisecond)
	if got := s.GetPhase(); got != phase {
		t.Errorf("Reset timer fired into a closed session: %v -> %v", phase, got)
	}
}

func TestStaleResetTimerDoesNotClobberNewThrow(t *testing.T) {
	s := newTestSession()
	s.resetDelay = 30 * time.Millisecond

	s.BeginGesture(200, 500)
	s.EndGesture(200, 410)
	res, _ := advanceUntilSettled(s, 200)
	if !res.Scored {
		t.Fatal("Setup throw should score")
	}

	// Simulate the reset firing, then a new throw going up immediately.
	time.Sleep(60 * time.Millisecond)
	if got := s.GetPhase(); got != PhaseIdle {
		t.Fatalf("Expected idle after reset, got %v", got)
	}

	s.BeginGesture(200, 500)
	s.EndGesture(200, 410)
	time.Sleep(60 * time.Millisecond)

	if got := s.GetPhase(); got != PhaseThrown {
		t.Errorf("New throw should stay in flight, got %v", got)
	}
}

func TestScoringTickCarriesWindSample(t *testing.T) {
	s := newTestSession()
	// Zero speed leaves the trajectory alone; the label tags this sample.
	w := Wind{Speed: 0, Label: "Breezy"}
	s.SetWind(w)

	s.BeginGesture(200, 500)
	if !s.EndGesture(200, 410) {
		t.Fatal("90px gesture should throw")
	}

	// The result carries everything needed to persist the score, so the
	// caller never re-enters the session after the tick.
	res, ticks := advanceUntilSettled(s, 200)
	if !res.Scored {
		t.Fatalf("Throw should score, got %+v after %d ticks", res, ticks)
	}
	if res.Wind != w {
		t.Errorf("Scoring tick wind=%+v, want %+v", res.Wind, w)
	}
	if res.Score != 1 {
		t.Errorf("Scoring tick score=%d, want 1", res.Score)
	}
}
