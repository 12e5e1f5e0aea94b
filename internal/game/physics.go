package game

// Ball is the single simulated object: a position and velocity in world
// space, mutated in place once per tick while the session phase is Thrown.
type Ball struct {
	Position Vec3 `json:"position"`
	Velocity Vec3 `json:"velocity"`
}

// NewBall returns a ball pinned at the launch point with zero velocity.
func NewBall() Ball {
	return Ball{Position: NewVec3(LaunchX, LaunchY, LaunchZ)}
}

// PinToLaunch repositions the ball at the launch point and zeroes velocity.
func (b *Ball) PinToLaunch() {
	b.Position = NewVec3(LaunchX, LaunchY, LaunchZ)
	b.Velocity = Vec3{}
}

// StepBall advances the ball by one frame of explicit Euler integration:
// gravity on y, wind push on x, air resistance on x and z. Vertical velocity
// is deliberately not damped; gravity dominates vertical motion and the
// asymmetry is part of the game's feel.
func StepBall(b *Ball, w Wind) {
	b.Velocity.Y = fix(b.Velocity.Y + Gravity)
	b.Velocity.X = fix(b.Velocity.X + w.Speed*WindFactor)
	b.Velocity.X = fix(b.Velocity.X * AirResistance)
	b.Velocity.Z = fix(b.Velocity.Z * AirResistance)
	b.Position = b.Position.Plus(b.Velocity)
}
