package vehicle

import (
	"math"

	"github.com/Versifine/kartsim/internal/physics"
)

// InputFrame is one tick of player intent. Boost is edge-triggered: it is true only
// on the tick the request happens.
type InputFrame struct {
	Throttle float64
	Steer    float64
	Brake    bool
	Drift    bool
	Boost    bool
}

// Sample captures raw axis values into a frame, clamping them into [-1, 1].
func Sample(throttle, steer float64, brake, drift, boost bool) InputFrame {
	return InputFrame{
		Throttle: clampAxis(throttle),
		Steer:    clampAxis(steer),
		Brake:    brake,
		Drift:    drift,
		Boost:    boost,
	}
}

// Clamped returns a copy with both axes forced into [-1, 1].
func (f InputFrame) Clamped() InputFrame {
	f.Throttle = clampAxis(f.Throttle)
	f.Steer = clampAxis(f.Steer)
	return f
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return physics.Clamp(v, -1, 1)
}

// EdgeTrigger turns a held button into a single-tick pulse.
type EdgeTrigger struct {
	held bool
}

// Update returns true only when pressed transitions from false to true.
func (e *EdgeTrigger) Update(pressed bool) bool {
	fired := pressed && !e.held
	e.held = pressed
	return fired
}
