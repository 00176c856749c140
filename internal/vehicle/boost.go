package vehicle

import "github.com/Versifine/kartsim/internal/physics"

// BoostState is a timed top-speed bonus paid for with the whole drift gauge.
// Power is fixed at activation and scales both the bonus and the duration.
type BoostState struct {
	Active    bool
	Power     float64
	Duration  float64 // full length set at activation
	Remaining float64
}

// boostTransition carries the power and duration of the boost that started or ended.
type boostTransition struct {
	started  bool
	ended    bool
	power    float64
	duration float64
}

// stepBoost activates a boost on a trigger with enough gauge, then counts the timer down.
// A trigger below MinBoostGauge is ignored outright.
func stepBoost(b *BoostState, d *DriftState, in InputFrame, t Tuning, dt float64) boostTransition {
	var tr boostTransition

	if in.Boost && !b.Active && d.Gauge >= t.MinBoostGauge {
		power := physics.Clamp01(physics.SafeDiv(d.Gauge, t.MaxBoostGauge))
		duration := t.BoostDuration * power
		if duration > 0 {
			b.Active = true
			b.Power = power
			b.Duration = duration
			b.Remaining = duration
			d.Gauge = 0
			tr.started = true
			tr.power = power
			tr.duration = duration
		}
	}

	if b.Active {
		b.Remaining -= dt
		if b.Remaining <= 0 {
			tr.ended = true
			tr.power = b.Power
			tr.duration = b.Duration
			*b = BoostState{}
		}
	}
	return tr
}
