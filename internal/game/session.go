package game

import (
	"errors"
	"sync"
	"time"
)

// TossPlayer represents the player who owns a session.
type TossPlayer struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name,omitempty"`
	DBPlayerID     int        `json:"db_player_id,omitempty"`
	PlayerToken    string     `json:"-"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"-"`
}

// Viewport is the client's current canvas size, pushed up on resize.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TickResult summarizes what one loop tick did to the session. A scored
// tick carries the wind sample it was scored under so the caller can persist
// the event without touching the session again.
type TickResult struct {
	Outcome Outcome
	Scored  bool
	Missed  bool
	Score   int
	Wind    Wind
}

// TossSession is the complete state of one player's toss game: the single
// ball, the current phase, the bin, the wind, and the camera. The loop
// goroutine and the websocket handlers share it through the mutex; the loop
// is the only component that integrates physics, handlers only record
// gestures and trigger phase transitions.
type TossSession struct {
	ID            string        `json:"id"`
	Token         string        `json:"token"`
	Player        *TossPlayer   `json:"player"`
	Status        SessionStatus `json:"status"`
	Phase         Phase         `json:"phase"`
	Ball          Ball          `json:"ball"`
	Target        Target        `json:"target"`
	Wind          Wind          `json:"wind"`
	Camera        Camera        `json:"camera"`
	Gesture       *DragGesture  `json:"gesture,omitempty"`
	Score         int           `json:"score"`
	TossCount     int           `json:"toss_count"`
	BackgroundURL string        `json:"background_url,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	LastActivity  time.Time     `json:"last_activity"`
	DBSessionID   int           `json:"db_session_id,omitempty"`
	ClientIP      string        `json:"-"`

	viewport        Viewport
	pendingViewport *Viewport
	backgroundDirty bool

	resetDelay time.Duration
	resetTimer *time.Timer
	resetGen   int
	closed     bool

	mu sync.RWMutex
}

// NewTossSession creates a session with the ball pinned at the launch point.
func NewTossSession(id, token, playerID, playerToken string, dbPlayerID int, displayName string) *TossSession {
	expiryMinutes := 30
	if Manager != nil && Manager.config != nil {
		expiryMinutes = Manager.config.SessionExpiryMinutes
	}

	now := time.Now()
	return &TossSession{
		ID:    id,
		Token: token,
		Player: &TossPlayer{
			ID:          playerID,
			DisplayName: displayName,
			DBPlayerID:  dbPlayerID,
			PlayerToken: playerToken,
		},
		Status:       StatusWaiting,
		Phase:        PhaseIdle,
		Ball:         NewBall(),
		Target:       DefaultTarget(),
		Wind:         Wind{Speed: 0, Label: WindLabel(0)},
		Camera:       NewCamera(800, 600),
		viewport:     Viewport{Width: 800, Height: 600},
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(expiryMinutes) * time.Minute),
		LastActivity: now,
		resetDelay:   ResetDelay,
	}
}

// MarkStarted transitions the session to in-progress when the player's
// websocket connects for the first time.
func (s *TossSession) MarkStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartedAt != nil {
		return
	}
	now := time.Now()
	s.StartedAt = &now
	s.Status = StatusInProgress
	s.LastActivity = now
}

// BeginGesture starts a drag. Only valid while Idle; the ball stays pinned.
func (s *TossSession) BeginGesture(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusInProgress {
		return errors.New("session is not in progress")
	}
	if s.Phase != PhaseIdle {
		return errors.New("not ready for a new toss")
	}

	p := Point2{X: x, Y: y}
	s.Gesture = &DragGesture{Start: p, Current: p}
	s.Phase = PhaseDragging
	s.LastActivity = time.Now()
	return nil
}

// UpdateGesture records pointer movement during a drag.
func (s *TossSession) UpdateGesture(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase != PhaseDragging || s.Gesture == nil {
		return
	}
	s.Gesture.Current = Point2{X: x, Y: y}
}

// EndGesture consumes the drag: a gesture at or above the strength threshold
// commits a throw, anything weaker cancels silently back to Idle with zero
// velocity imparted. Pointer-leave is routed here as well. Returns true when
// a throw was committed.
func (s *TossSession) EndGesture(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase != PhaseDragging || s.Gesture == nil {
		return false
	}

	s.Gesture.Current = Point2{X: x, Y: y}
	g := *s.Gesture
	s.Gesture = nil
	s.LastActivity = time.Now()

	if !g.IsThrow() {
		s.Phase = PhaseIdle
		s.Ball.PinToLaunch()
		return false
	}

	s.Ball.PinToLaunch()
	s.Ball.Velocity = g.LaunchVelocity()
	s.Phase = PhaseThrown
	s.TossCount++
	return true
}

// SetWind publishes a new wind sample. Read by the next integration step.
func (s *TossSession) SetWind(w Wind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Wind = w
}

// GetWind returns the current wind sample.
func (s *TossSession) GetWind() Wind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Wind
}

// Resize records a viewport change; the loop applies it at the next tick.
func (s *TossSession) Resize(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	s.pendingViewport = &Viewport{Width: width, Height: height}
}

// SetBackground swaps the scene background. The next frame carries the URL
// so clients decode the image once per change, not per frame.
func (s *TossSession) SetBackground(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url == s.BackgroundURL {
		return
	}
	s.BackgroundURL = url
	s.backgroundDirty = true
}

// Advance runs one tick of the simulation: apply any pending resize, then
// integrate and resolve if a throw is in flight, otherwise keep the ball
// pinned. Integration and collision always complete before the frame for
// this tick is built.
func (s *TossSession) Advance() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingViewport != nil {
		s.viewport = *s.pendingViewport
		s.Camera = NewCamera(s.viewport.Width, s.viewport.Height)
		s.pendingViewport = nil
		if s.Phase == PhaseIdle || s.Phase == PhaseDragging {
			s.Ball.PinToLaunch()
		}
	}

	res := TickResult{Outcome: OutcomeFlying, Score: s.Score}

	switch s.Phase {
	case PhaseThrown:
		StepBall(&s.Ball, s.Wind)
		outcome := s.Target.Resolve(&s.Ball)
		res.Outcome = outcome

		switch outcome {
		case OutcomeScored:
			s.Phase = PhaseLanded
			s.Score++
			res.Scored = true
			res.Score = s.Score
			res.Wind = s.Wind
			s.scheduleResetLocked()
		case OutcomeMissed:
			s.Phase = PhaseMissed
			res.Missed = true
			s.scheduleResetLocked()
		}

	case PhaseIdle, PhaseDragging:
		s.Ball.PinToLaunch()
	}

	return res
}

// scheduleResetLocked arms the one-second return to Idle. The generation
// counter keeps a stale timer from resetting a newer throw, and Close stops
// the timer so a torn-down session is never mutated.
func (s *TossSession) scheduleResetLocked() {
	s.resetGen++
	gen := s.resetGen
	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}
	s.resetTimer = time.AfterFunc(s.resetDelay, func() {
		s.finishReset(gen)
	})
}

func (s *TossSession) finishReset(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.resetGen {
		return
	}
	if s.Phase != PhaseLanded && s.Phase != PhaseMissed {
		return
	}
	s.Phase = PhaseIdle
	s.Ball.PinToLaunch()
}

// SuspendLoop parks the simulation when its loop exits (player disconnected
// or context cancelled). A pending auto-reset timer is stopped so it cannot
// fire into an unticked session, and any in-flight or terminal phase folds
// back to Idle so a reconnect starts clean.
func (s *TossSession) SuspendLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetGen++
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	if s.Phase != PhaseIdle {
		s.Phase = PhaseIdle
		s.Gesture = nil
		s.Ball.PinToLaunch()
	}
}

// Close tears the session down: any pending reset timer is cancelled so it
// cannot fire into a discarded state.
func (s *TossSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.resetTimer != nil {
		s.resetTimer.Stop()
		s.resetTimer = nil
	}
	if s.Status == StatusInProgress {
		s.Status = StatusCompleted
		now := time.Now()
		s.CompletedAt = &now
	}
}

// Closed reports whether the session has been torn down.
func (s *TossSession) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Expire marks a stale session expired. The loop shuts itself down when it
// sees the status change.
func (s *TossSession) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status == StatusCompleted || s.Status == StatusExpired {
		return
	}
	s.Status = StatusExpired
	now := time.Now()
	s.CompletedAt = &now
}

// SetPlayerConnected flips the player's connection flag.
func (s *TossSession) SetPlayerConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Player.Connected = connected
	if connected {
		s.Player.DisconnectedAt = nil
	} else {
		now := time.Now()
		s.Player.DisconnectedAt = &now
	}
	s.LastActivity = time.Now()
}

// GetPhase returns the current phase.
func (s *TossSession) GetPhase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Phase
}

// GetScore returns the current score.
func (s *TossSession) GetScore() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Score
}

// GetStatus returns the session lifecycle status.
func (s *TossSession) GetStatus() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// GetStateForPlayer returns the full state snapshot sent on connect and on
// explicit get_state requests.
func (s *TossSession) GetStateForPlayer() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"session_id":     s.ID,
		"token":          s.Token,
		"status":         s.Status,
		"phase":          s.Phase,
		"player_id":      s.Player.ID,
		"display_name":   s.Player.DisplayName,
		"connected":      s.Player.Connected,
		"score":          s.Score,
		"toss_count":     s.TossCount,
		"wind":           s.Wind,
		"ball":           s.Ball,
		"target":         s.Target,
		"background_url": s.BackgroundURL,
		"viewport":       s.viewport,
	}
}
