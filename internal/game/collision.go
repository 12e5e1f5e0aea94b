package game

import "math"

// Outcome classifies the ball's state after an integration step.
type Outcome string

const (
	OutcomeFlying Outcome = "FLYING"
	OutcomeScored Outcome = "SCORED"
	OutcomeMissed Outcome = "MISSED"
)

// Target is the bin's scoring geometry: a circular rim of radius Radius at
// depth Depth and height RimY. Immutable for the session.
type Target struct {
	Depth     float64 `json:"depth"`
	BandDepth float64 `json:"band_depth"`
	RimY      float64 `json:"rim_y"`
	RimTol    float64 `json:"rim_tol"`
	Radius    float64 `json:"radius"`
}

// DefaultTarget returns the session bin.
func DefaultTarget() Target {
	return Target{
		Depth:     BinDepth,
		BandDepth: BinBandDepth,
		RimY:      BinRimY,
		RimTol:    BinRimTol,
		Radius:    BinRadius,
	}
}

// Resolve decides the ball's outcome for this frame. Scoring requires the
// ball's depth inside the target band, its height within tolerance of the
// rim, and its horizontal offset inside the radius, all at once; the checks
// are order-independent. The scored check runs before the missed check, so a
// ball satisfying both in the same frame scores. A still-flying ball is
// re-evaluated every subsequent frame, so entering the depth band late can
// still score.
func (t Target) Resolve(b *Ball) Outcome {
	inBand := b.Position.Z >= t.Depth && b.Position.Z <= t.Depth+t.BandDepth
	atRim := math.Abs(b.Position.Y-t.RimY) < t.RimTol
	inAperture := math.Abs(b.Position.X) < t.Radius
	if inBand && atRim && inAperture {
		return OutcomeScored
	}

	if b.Position.Y > FloorOvershootY {
		return OutcomeMissed
	}
	if b.Position.Z > t.Depth+DepthOvershoot {
		return OutcomeMissed
	}

	return OutcomeFlying
}
