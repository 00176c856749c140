package vehicle

import (
	"math"

	"github.com/Versifine/kartsim/internal/physics"
)

// DriftState tracks drift engagement and the gauge it charges.
type DriftState struct {
	Active    bool
	Gauge     float64
	TurnInput float64 // low-pass filtered steer
	Angle     float64 // visual slide angle, degrees
}

type driftTransition struct {
	started bool
	ended   bool
	filled  bool
}

// stepDrift runs the Idle/Drifting machine for one tick and charges or bleeds the gauge.
// Entry and exit thresholds differ so the state does not flicker at the boundary.
func stepDrift(d *DriftState, in InputFrame, speed float64, t Tuning, boosting bool, dt float64) driftTransition {
	var tr driftTransition
	steer := math.Abs(in.Steer)

	canDrift := in.Drift && steer > DriftEnterSteer && speed > DriftEnterSpeed
	mustStop := !in.Drift || steer < DriftExitSteer || speed < DriftExitSpeed

	switch {
	case canDrift && !d.Active:
		d.Active = true
		tr.started = true
	case d.Active && mustStop:
		d.Active = false
		d.Angle = 0
		tr.ended = true
	}

	prev := d.Gauge
	if d.Active {
		rate := t.DriftGaugeRate * steer * physics.SafeDiv(speed, t.MaxSpeed)
		d.Gauge = physics.Clamp(d.Gauge+rate*dt*t.ChargeMultiplier, 0, t.MaxDriftGauge)
		if prev < t.MaxDriftGauge && d.Gauge >= t.MaxDriftGauge && !boosting {
			tr.filled = true
		}
	} else {
		d.Gauge -= t.GaugeDecayRate * dt
	}
	d.Gauge = physics.Clamp(d.Gauge, 0, t.MaxDriftGauge)
	return tr
}
