package vehicle

import (
	"math"

	"github.com/Versifine/kartsim/internal/physics"
)

// State is the authoritative pose and motion of one vehicle.
type State struct {
	Position         physics.Vec3
	Yaw              float64 // degrees, 0 faces +Z
	ForwardSpeed     float64
	VerticalVelocity float64
	Grounded         bool
	Braking          bool
}

// integrate advances speed and heading for one tick and returns the displacement
// the mover should apply.
func integrate(s *State, d *DriftState, boost BoostState, in InputFrame, t Tuning, dt float64) physics.Vec3 {
	s.ForwardSpeed = stepSpeed(s.ForwardSpeed, in, t, t.EffectiveMaxSpeed(boost), dt)
	s.Yaw = stepHeading(s.Yaw, s.ForwardSpeed, d, in, t, dt)

	move := physics.Forward(s.Yaw).Mul(s.ForwardSpeed)
	if d.Active && math.Abs(d.TurnInput) > DriftSlideInput {
		slide := d.TurnInput * t.DriftForce * DriftSlideScale * dt
		move = move.Add(physics.Right(s.Yaw).Mul(slide))
	}

	if s.Grounded && s.VerticalVelocity < 0 {
		s.VerticalVelocity = GroundStickVelocity
	} else {
		s.VerticalVelocity -= t.Gravity * dt
	}

	return move.Add(physics.Up.Mul(s.VerticalVelocity)).Mul(dt)
}

func stepSpeed(speed float64, in InputFrame, t Tuning, maxSpeed, dt float64) float64 {
	minSpeed := t.ReverseCap()

	switch {
	case in.Throttle > 0:
		speed += t.Acceleration * in.Throttle * dt
	case in.Throttle < 0:
		speed += t.Acceleration * in.Throttle * ReverseAccelFactor * dt
	case !in.Brake:
		speed = physics.Lerp(speed, 0, t.Deceleration*CoastDecayFactor*dt)
	}
	speed = physics.Clamp(speed, minSpeed, maxSpeed)

	if in.Brake {
		speed = physics.Lerp(speed, 0, t.BrakeForce*dt)
		speed = physics.Clamp(speed, minSpeed, maxSpeed)
	}
	return speed
}

// stepHeading smooths the steer input and turns the vehicle. Turning authority grows
// from MinTurnAuthority at standstill to full at MaxSpeed.
func stepHeading(yaw, speed float64, d *DriftState, in InputFrame, t Tuning, dt float64) float64 {
	d.TurnInput = physics.Lerp(d.TurnInput, in.Steer, t.TurnSmoothness*dt)
	if d.Active {
		d.Angle = d.TurnInput * DriftAngleDegrees
	}

	if math.Abs(speed) <= TurnSpeedEpsilon || math.Abs(d.TurnInput) <= TurnInputEpsilon {
		return yaw
	}

	speedFactor := physics.Clamp01(physics.SafeDiv(math.Abs(speed), t.MaxSpeed))
	turn := d.TurnInput * t.TurnSpeed * physics.Lerp(MinTurnAuthority, 1, speedFactor) * dt
	if d.Active {
		turn *= t.DriftSensitivity * DriftTurnScale
	}
	return physics.NormalizeAngle(yaw + turn)
}
