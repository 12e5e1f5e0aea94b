package game

// SessionStatus represents the lifecycle state of a toss session
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "WAITING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusExpired    SessionStatus = "EXPIRED"
)

// Phase is the discrete game mode. Exactly one value is active at a time and
// it is the sole source of truth for what the loop simulates and draws.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseDragging Phase = "DRAGGING"
	PhaseThrown   Phase = "THROWN"
	PhaseLanded   Phase = "LANDED"
	PhaseMissed   Phase = "MISSED"
)
