package game

import "time"

// Simulation constants for the toss game.
// These MUST match the canvas client's tuning exactly: the client replays the
// same per-frame step when it interpolates between server frames.

const (
	TickRate     = 60
	TickInterval = time.Second / TickRate

	// Per-frame integration. One step per rendered frame, not dt-scaled.
	Gravity       = 0.55 // vertical accel per frame (y grows downward)
	AirResistance = 0.99 // x/z velocity damping per frame; y is never damped
	WindFactor    = 0.012

	// Gesture -> launch velocity. Only upward drag counts as throw power.
	MinThrowDelta = 50.0 // minimum upward drag distance to commit a throw
	SideFactor    = 0.1  // horizontal drag delta -> sideways velocity
	LiftFactor    = 0.16 // upward drag delta -> vertical launch velocity
	DepthFactor   = 0.14 // upward drag delta -> forward (depth) velocity

	// Camera. FocalLength + z must stay positive; the launch point and bin
	// geometry below keep z >= 0 for the ball's whole flight.
	FocalLength = 300.0

	// Ball
	BallRadius = 24.0
	LaunchX    = 0.0
	LaunchY    = 210.0
	LaunchZ    = 0.0

	// Target bin: circular rim at fixed depth and height.
	BinDepth      = 300.0 // front of the scoring depth band
	BinBandDepth  = 40.0  // depth band thickness
	BinRimY       = 60.0  // rim height in world units
	BinRimTol     = 50.0  // vertical tolerance around the rim
	BinRadius     = 60.0  // scoring aperture radius
	BinBodyHeight = 90.0  // visual body height below the rim

	// Miss thresholds
	FloorOvershootY = 260.0 // missed once the ball falls past this height
	DepthOvershoot  = 160.0 // missed once z exceeds BinDepth by this margin

	// Wind feed
	WindMaxSpeed   = 5.0
	WindInterval   = 5 * time.Second
	WindBreezyEdge = 1.0
	WindWindyEdge  = 3.0

	// Landed/Missed hold the result on screen before re-pinning the ball.
	ResetDelay = time.Second
)
