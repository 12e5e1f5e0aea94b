package game

import (
	"context"
	"math/rand"
	"time"

	"github.com/bintoss/backend/internal/logging"
)

// Broadcaster delivers loop output to whoever is watching the session. The
// websocket hub implements it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastToSession(sessionID string, message interface{})
}

// Loop drives one session at the display tick rate. It is the sole owner of
// the per-frame simulation sequence: resize handling, physics step, collision
// resolution, frame build, publish. Wind is resampled on its own ticker
// inside the same goroutine so the integrator never races its inputs.
type Loop struct {
	session      *TossSession
	sink         Broadcaster
	tickInterval time.Duration
	windInterval time.Duration
	rng          *rand.Rand
	tick         uint64
}

// NewLoop creates a loop for a session at the standard tick and wind rates.
func NewLoop(s *TossSession, sink Broadcaster) *Loop {
	return &Loop{
		session:      s,
		sink:         sink,
		tickInterval: TickInterval,
		windInterval: WindInterval,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks until the context is cancelled or the session leaves
// IN_PROGRESS. Teardown closes the session, which also cancels any pending
// auto-reset timer.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tickInterval)
	windTicker := time.NewTicker(l.windInterval)
	defer func() {
		ticker.Stop()
		windTicker.Stop()
		l.session.SuspendLoop()
	}()

	logging.S.Infof("[LOOP] Session %s loop started", l.session.ID)

	for {
		select {
		case <-ctx.Done():
			logging.S.Infof("[LOOP] Session %s loop stopping", l.session.ID)
			return

		case <-windTicker.C:
			w := RandomWind(l.rng)
			l.session.SetWind(w)
			l.sink.BroadcastToSession(l.session.ID, map[string]interface{}{
				"type": "wind",
				"wind": w,
			})

		case <-ticker.C:
			if st := l.session.GetStatus(); st != StatusInProgress {
				logging.S.Infof("[LOOP] Session %s is %s, loop exiting", l.session.ID, st)
				return
			}

			res := l.session.Advance()
			l.tick++
			frame := l.session.BuildFrame(l.tick)

			// Outcome events land in the same tick the condition was
			// detected, before the frame that shows it.
			if res.Scored {
				l.sink.BroadcastToSession(l.session.ID, map[string]interface{}{
					"type":  "score",
					"score": res.Score,
				})
				// Advance has already released the session lock; the DB and
				// Redis writes run off the critical path of the tick.
				Manager.RecordScoreEvent(l.session.DBSessionID, l.session.Player.DBPlayerID, res.Score, res.Wind)
			}
			if res.Missed {
				l.sink.BroadcastToSession(l.session.ID, map[string]interface{}{
					"type": "miss",
				})
			}

			l.sink.BroadcastToSession(l.session.ID, map[string]interface{}{
				"type":  "frame",
				"frame": frame,
			})
		}
	}
}
