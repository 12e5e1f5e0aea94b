package game

// ScreenPoint is a projected 2D point. Scale is the perspective
// foreshortening factor: 1.0 at the camera's reference plane (z=0),
// shrinking toward the vanishing point as depth grows. Callers reuse it to
// size on-screen radii.
type ScreenPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale"`
}

// Camera is a pinhole perspective model. OriginX/OriginY is the screen-space
// vanishing point, re-centered whenever the viewport changes.
type Camera struct {
	FocalLength float64 `json:"focal_length"`
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
}

// NewCamera creates a camera centered on a viewport.
func NewCamera(width, height float64) Camera {
	return Camera{
		FocalLength: FocalLength,
		OriginX:     fix(width / 2),
		OriginY:     fix(height / 2),
	}
}

// Project maps a world point to screen coordinates. Pure; identical inputs
// always yield the identical ScreenPoint.
func (c Camera) Project(p Vec3) ScreenPoint {
	scale := fix(c.FocalLength / (c.FocalLength + p.Z))
	return ScreenPoint{
		X:     fix(c.OriginX + p.X*scale),
		Y:     fix(c.OriginY + p.Y*scale),
		Scale: scale,
	}
}
