package game

import (
	"math"
	"math/rand"
)

// Wind is the external per-frame input to the integrator. Negative speed
// pushes the ball left, positive pushes right. Label is derived from speed
// magnitude and shown on the HUD.
type Wind struct {
	Speed float64 `json:"speed"`
	Label string  `json:"label"`
}

// WindLabel buckets a speed magnitude into the HUD category.
func WindLabel(speed float64) string {
	mag := math.Abs(speed)
	switch {
	case mag < WindBreezyEdge:
		return "Calm"
	case mag < WindWindyEdge:
		return "Breezy"
	default:
		return "Windy"
	}
}

// RandomWind samples a new wind value uniformly in [-WindMaxSpeed, WindMaxSpeed].
func RandomWind(rng *rand.Rand) Wind {
	speed := fix((rng.Float64()*2 - 1) * WindMaxSpeed)
	return Wind{Speed: speed, Label: WindLabel(speed)}
}
