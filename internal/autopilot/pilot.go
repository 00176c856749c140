// Package autopilot drives a vehicle around a loop of waypoints, the way race bots do.
package autopilot

import (
	"math"

	"github.com/Versifine/kartsim/internal/physics"
	"github.com/Versifine/kartsim/internal/vehicle"
)

const (
	DefaultArriveRadius = 3.0
	DefaultSteerAngle   = 30.0
	DefaultDriftAngle   = 45.0
	DefaultBrakeAngle   = 75.0
	DefaultCornerSpeed  = 6.0
	boostAlignAngle     = 10.0
)

type Pilot struct {
	Waypoints    []physics.Vec3
	ArriveRadius float64
	Throttle     float64
	SteerAngle   float64 // heading error, degrees, that maps to full steer
	DriftAngle   float64 // heading error above which the pilot holds drift; 0 disables
	BrakeAngle   float64 // heading error above which the pilot brakes down to CornerSpeed
	CornerSpeed  float64
	UseBoost     bool

	// OnLap is called each time the last waypoint is reached.
	OnLap func(lap int)

	next  int
	laps  int
	boost vehicle.EdgeTrigger
}

func New(waypoints []physics.Vec3) *Pilot {
	return &Pilot{
		Waypoints:    waypoints,
		ArriveRadius: DefaultArriveRadius,
		Throttle:     1,
		SteerAngle:   DefaultSteerAngle,
		DriftAngle:   DefaultDriftAngle,
		BrakeAngle:   DefaultBrakeAngle,
		CornerSpeed:  DefaultCornerSpeed,
		UseBoost:     true,
	}
}

// Next returns the input for this tick given the vehicle's current snapshot.
func (p *Pilot) Next(s vehicle.Snapshot) vehicle.InputFrame {
	if p == nil || len(p.Waypoints) == 0 {
		return vehicle.InputFrame{}
	}

	target := p.Waypoints[p.next]
	if horizontalDistance(s.Position, target) <= p.ArriveRadius {
		p.advance()
		target = p.Waypoints[p.next]
	}

	headingErr := HeadingError(s.Position, s.Yaw, target)
	absErr := math.Abs(headingErr)

	steer := physics.SafeDiv(headingErr, p.SteerAngle)
	if p.SteerAngle <= 0 {
		steer = math.Copysign(1, headingErr)
	}

	// Slow down when the target sits inside the turning circle, otherwise the
	// kart orbits the waypoint.
	throttle := p.Throttle
	brake := p.BrakeAngle > 0 && absErr > p.BrakeAngle && s.Speed > p.CornerSpeed
	if brake {
		throttle = 0
	}

	wantBoost := p.UseBoost && !s.Boosting && s.Gauge >= s.MinBoostGauge && s.MaxGauge > 0 &&
		absErr < boostAlignAngle
	return vehicle.Sample(
		throttle,
		steer,
		brake,
		p.DriftAngle > 0 && absErr > p.DriftAngle,
		p.boost.Update(wantBoost),
	)
}

func (p *Pilot) advance() {
	p.next++
	if p.next >= len(p.Waypoints) {
		p.next = 0
		p.laps++
		if p.OnLap != nil {
			p.OnLap(p.laps)
		}
	}
}

func (p *Pilot) Laps() int {
	return p.laps
}

func (p *Pilot) NextWaypoint() int {
	return p.next
}

// Reset sends the pilot back to the first waypoint with no laps counted.
func (p *Pilot) Reset() {
	p.next = 0
	p.laps = 0
	p.boost = vehicle.EdgeTrigger{}
}

// HeadingError is the signed turn, in degrees, from yaw towards target.
// Positive means turn right.
func HeadingError(pos physics.Vec3, yaw float64, target physics.Vec3) float64 {
	dx := target.X() - pos.X()
	dz := target.Z() - pos.Z()
	if dx == 0 && dz == 0 {
		return 0
	}
	desired := math.Atan2(dx, dz) * 180 / math.Pi
	return physics.NormalizeAngle(desired - yaw)
}

func horizontalDistance(a, b physics.Vec3) float64 {
	return math.Hypot(a.X()-b.X(), a.Z()-b.Z())
}
