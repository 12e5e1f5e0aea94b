package game

// Point2 is a raw pointer coordinate on the client canvas.
type Point2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DragGesture records a pointer-down origin and the latest pointer position.
// Created on gesture-begin, updated on gesture-update, consumed on
// gesture-end (converted to a launch velocity or cancelled).
type DragGesture struct {
	Start   Point2 `json:"start"`
	Current Point2 `json:"current"`
}

// Strength returns the throw power of the gesture. Only upward drag motion
// (negative vertical delta) counts; a flat or downward drag has zero power
// no matter how far it travels horizontally.
func (g DragGesture) Strength() float64 {
	dy := g.Current.Y - g.Start.Y
	if dy >= 0 {
		return 0
	}
	return fix(-dy)
}

// IsThrow reports whether the gesture is strong enough to commit a throw.
// Anything weaker cancels silently back to Idle.
func (g DragGesture) IsThrow() bool {
	return g.Strength() >= MinThrowDelta
}

// LaunchVelocity converts the gesture vector into an initial ball velocity:
// horizontal delta maps to sideways velocity, upward delta maps to both
// upward launch (negative y) and forward depth velocity.
func (g DragGesture) LaunchVelocity() Vec3 {
	dx := g.Current.X - g.Start.X
	dy := g.Current.Y - g.Start.Y
	return Vec3{
		X: fix(dx * SideFactor),
		Y: fix(dy * LiftFactor),
		Z: fix(-dy * DepthFactor),
	}
}
