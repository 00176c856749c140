package vehicle

import (
	"fmt"
	"math"
)

const (
	ReverseSpeedFactor = 0.5 // reverse cap as a fraction of MaxSpeed
	ReverseAccelFactor = 0.5
	CoastDecayFactor   = 0.1 // natural decay runs at Deceleration * CoastDecayFactor

	MinTurnAuthority  = 0.3
	TurnSpeedEpsilon  = 0.1
	TurnInputEpsilon  = 0.05
	DriftTurnScale    = 0.8
	DriftAngleDegrees = 20.0

	DriftEnterSteer = 0.2
	DriftEnterSpeed = 2.0
	DriftExitSteer  = 0.15
	DriftExitSpeed  = 1.5
	DriftSlideInput = 0.1
	DriftSlideScale = 0.5

	GroundStickVelocity = -2.0
)

// Tuning is the flat set of tunables a vehicle is built with.
type Tuning struct {
	MaxSpeed       float64 `yaml:"max_speed"`
	Acceleration   float64 `yaml:"acceleration"`
	Deceleration   float64 `yaml:"deceleration"`
	TurnSpeed      float64 `yaml:"turn_speed"`
	TurnSmoothness float64 `yaml:"turn_smoothness"`
	BrakeForce     float64 `yaml:"brake_force"`

	DriftSensitivity float64 `yaml:"drift_sensitivity"`
	DriftForce       float64 `yaml:"drift_force"`
	DriftGaugeRate   float64 `yaml:"drift_gauge_rate"`
	MaxDriftGauge    float64 `yaml:"max_drift_gauge"`
	ChargeMultiplier float64 `yaml:"charge_multiplier"`
	GaugeDecayRate   float64 `yaml:"gauge_decay_rate"`

	BoostTopSpeed float64 `yaml:"boost_speed"`
	BoostDuration float64 `yaml:"boost_duration"`
	MinBoostGauge float64 `yaml:"min_boost_gauge"`
	MaxBoostGauge float64 `yaml:"max_boost_gauge"`

	Gravity float64 `yaml:"gravity"`
}

func DefaultTuning() Tuning {
	return Tuning{
		MaxSpeed:       30,
		Acceleration:   0.1,
		Deceleration:   10,
		TurnSpeed:      80,
		TurnSmoothness: 5,
		BrakeForce:     20,

		DriftSensitivity: 1.3,
		DriftForce:       15,
		DriftGaugeRate:   1,
		MaxDriftGauge:    100,
		ChargeMultiplier: 15,
		GaugeDecayRate:   2,

		BoostTopSpeed: 45,
		BoostDuration: 2,
		MinBoostGauge: 25,
		MaxBoostGauge: 100,

		Gravity: 20,
	}
}

// Validate rejects tunables that would break the clamping guarantees.
func (t Tuning) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"max_speed", t.MaxSpeed},
		{"acceleration", t.Acceleration},
		{"deceleration", t.Deceleration},
		{"turn_speed", t.TurnSpeed},
		{"turn_smoothness", t.TurnSmoothness},
		{"brake_force", t.BrakeForce},
		{"drift_sensitivity", t.DriftSensitivity},
		{"drift_force", t.DriftForce},
		{"drift_gauge_rate", t.DriftGaugeRate},
		{"max_drift_gauge", t.MaxDriftGauge},
		{"charge_multiplier", t.ChargeMultiplier},
		{"gauge_decay_rate", t.GaugeDecayRate},
		{"boost_speed", t.BoostTopSpeed},
		{"boost_duration", t.BoostDuration},
		{"min_boost_gauge", t.MinBoostGauge},
		{"max_boost_gauge", t.MaxBoostGauge},
		{"gravity", t.Gravity},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be finite, got %v", f.name, f.value)
		}
		if f.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", f.name, f.value)
		}
	}
	if t.MinBoostGauge > t.MaxDriftGauge {
		return fmt.Errorf("min_boost_gauge (%v) exceeds max_drift_gauge (%v)", t.MinBoostGauge, t.MaxDriftGauge)
	}
	return nil
}

// EffectiveMaxSpeed is the forward speed cap for the given boost state. A boost never
// lowers the cap, even when BoostTopSpeed is configured below MaxSpeed.
func (t Tuning) EffectiveMaxSpeed(boost BoostState) float64 {
	if !boost.Active {
		return t.MaxSpeed
	}
	bonus := math.Max(0, t.BoostTopSpeed-t.MaxSpeed)
	return t.MaxSpeed + bonus*boost.Power
}

func (t Tuning) ReverseCap() float64 {
	return -t.MaxSpeed * ReverseSpeedFactor
}
