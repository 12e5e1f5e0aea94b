package game

// DrawOp is one paint instruction in a frame. Ops are ordered with a fixed
// painter's algorithm; clients draw them verbatim without re-sorting. The
// front rim is always painted after the ball regardless of true depth order,
// reproducing the reference look.
type DrawOp struct {
	Kind    string  `json:"kind"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	X2      float64 `json:"x2,omitempty"`
	Y2      float64 `json:"y2,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
	RadiusY float64 `json:"radius_y,omitempty"`
	Radius2 float64 `json:"radius2,omitempty"`
	Scale   float64 `json:"scale,omitempty"`
	Score   int     `json:"score,omitempty"`
	Wind    *Wind   `json:"wind,omitempty"`
	URL     string  `json:"url,omitempty"`
}

// Draw op kinds, in paint order.
const (
	OpBackground = "background"
	OpRimBack    = "rim_back"
	OpBinBody    = "bin_body"
	OpBall       = "ball"
	OpRimFront   = "rim_front"
	OpHUD        = "hud"
	OpDrag       = "drag"
)

// rimFlatten squashes the rim circles into ellipses for the simulated tilt.
const rimFlatten = 0.38

// Frame is one rendered tick, streamed to the client as a `frame` event.
// BackgroundURL is present only on the first frame after the background
// changes; clients cache the decoded image against the URL.
type Frame struct {
	Tick          uint64   `json:"tick"`
	Phase         Phase    `json:"phase"`
	Score         int      `json:"score"`
	Wind          Wind     `json:"wind"`
	BackgroundURL string   `json:"background_url,omitempty"`
	Ops           []DrawOp `json:"ops"`
}

// BuildFrame assembles the draw list for the current state. Called by the
// loop after Advance, so physics and collision for the tick are already
// settled.
func (s *TossSession) BuildFrame(tick uint64) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &Frame{
		Tick:  tick,
		Phase: s.Phase,
		Score: s.Score,
		Wind:  s.Wind,
	}
	if s.backgroundDirty {
		f.BackgroundURL = s.BackgroundURL
		s.backgroundDirty = false
	}

	cam := s.Camera
	t := s.Target

	// Background placeholder when no generated image is active. The client
	// draws a flat scene for this op unless it holds a cached image.
	f.Ops = append(f.Ops, DrawOp{Kind: OpBackground, URL: s.BackgroundURL})

	// Bin: back rim, body, then (after the ball) front rim.
	backRim := cam.Project(NewVec3(0, t.RimY, t.Depth+t.BandDepth))
	frontRim := cam.Project(NewVec3(0, t.RimY, t.Depth))
	binBottom := cam.Project(NewVec3(0, t.RimY+BinBodyHeight, t.Depth))

	f.Ops = append(f.Ops, DrawOp{
		Kind:    OpRimBack,
		X:       backRim.X,
		Y:       backRim.Y,
		Radius:  fix(t.Radius * backRim.Scale),
		RadiusY: fix(t.Radius * backRim.Scale * rimFlatten),
		Scale:   backRim.Scale,
	})
	f.Ops = append(f.Ops, DrawOp{
		Kind:    OpBinBody,
		X:       frontRim.X,
		Y:       frontRim.Y,
		X2:      binBottom.X,
		Y2:      binBottom.Y,
		Radius:  fix(t.Radius * frontRim.Scale),
		Radius2: fix(t.Radius * binBottom.Scale * 0.8),
	})

	ball := cam.Project(s.Ball.Position)
	f.Ops = append(f.Ops, DrawOp{
		Kind:   OpBall,
		X:      ball.X,
		Y:      ball.Y,
		Radius: fix(BallRadius * ball.Scale),
		Scale:  ball.Scale,
	})

	f.Ops = append(f.Ops, DrawOp{
		Kind:    OpRimFront,
		X:       frontRim.X,
		Y:       frontRim.Y,
		Radius:  fix(t.Radius * frontRim.Scale),
		RadiusY: fix(t.Radius * frontRim.Scale * rimFlatten),
		Scale:   frontRim.Scale,
	})

	wind := s.Wind
	f.Ops = append(f.Ops, DrawOp{Kind: OpHUD, Score: s.Score, Wind: &wind})

	if s.Phase == PhaseDragging && s.Gesture != nil {
		f.Ops = append(f.Ops, DrawOp{
			Kind: OpDrag,
			X:    s.Gesture.Start.X,
			Y:    s.Gesture.Start.Y,
			X2:   s.Gesture.Current.X,
			Y2:   s.Gesture.Current.Y,
		})
	}

	return f
}
