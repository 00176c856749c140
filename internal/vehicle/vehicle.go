// Package vehicle implements the arcade kart locomotion core: speed and heading
// integration, the drift gauge and the boost it pays for.
package vehicle

import (
	"log/slog"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/Versifine/kartsim/internal/event"
	"github.com/Versifine/kartsim/internal/physics"
)

// Notifier receives vehicle events. *event.Bus satisfies it.
type Notifier interface {
	Publish(eventName string, evt any)
}

// Spawn is the pose a vehicle starts from and returns to on reset.
type Spawn struct {
	Position physics.Vec3
	Yaw      float64
}

type Option func(*Vehicle)

func WithMover(m physics.Mover) Option {
	return func(v *Vehicle) { v.mover = m }
}

func WithNotifier(n Notifier) Option {
	return func(v *Vehicle) { v.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Vehicle) {
		if l != nil {
			v.logger = l
		}
	}
}

type pendingEvent struct {
	name    string
	payload any
}

type Vehicle struct {
	id     uuid.UUID
	tuning Tuning
	spawn  Spawn

	mover    physics.Mover
	notifier Notifier
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	drift         DriftState
	boost         BoostState
	pending       []pendingEvent
	warnedNoMover bool
}

func New(id uuid.UUID, tuning Tuning, spawn Spawn, opts ...Option) *Vehicle {
	v := &Vehicle{
		id:     id,
		tuning: tuning,
		spawn:  spawn,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("vehicle", id.String())
	v.state = v.initialState()
	return v
}

func (v *Vehicle) initialState() State {
	return State{
		Position: v.spawn.Position,
		Yaw:      physics.NormalizeAngle(v.spawn.Yaw),
	}
}

func (v *Vehicle) ID() uuid.UUID {
	return v.id
}

func (v *Vehicle) Tuning() Tuning {
	return v.tuning
}

// Tick runs one simulation step: drift, boost, locomotion, then pose application.
// A non-positive or non-finite dt leaves the vehicle untouched.
func (v *Vehicle) Tick(input InputFrame, dt float64) {
	if v == nil || !(dt > 0) || math.IsInf(dt, 1) {
		return
	}
	in := input.Clamped()

	v.mu.Lock()
	v.state.Braking = in.Brake

	dtr := stepDrift(&v.drift, in, v.state.ForwardSpeed, v.tuning, v.boost.Active, dt)
	v.recordDrift(dtr)

	btr := stepBoost(&v.boost, &v.drift, in, v.tuning, dt)
	v.recordBoost(btr)

	delta := integrate(&v.state, &v.drift, v.boost, in, v.tuning, dt)
	v.applyPose(delta)

	events := v.takePending()
	v.mu.Unlock()

	v.publish(events)
}

func (v *Vehicle) applyPose(delta physics.Vec3) {
	if v.mover == nil {
		if !v.warnedNoMover {
			v.logger.Warn("No mover attached, displacement is not applied")
			v.warnedNoMover = true
		}
		return
	}
	v.state.Position, v.state.Grounded = v.mover.Move(v.state.Position, delta)
}

func (v *Vehicle) recordDrift(tr driftTransition) {
	if tr.started {
		v.logger.Debug("Drift started", "speed", v.state.ForwardSpeed)
		v.queue(event.EventDriftStart, &event.DriftEvent{VehicleID: v.id, Gauge: v.drift.Gauge, Speed: v.state.ForwardSpeed})
	}
	if tr.ended {
		v.logger.Debug("Drift ended", "gauge", v.drift.Gauge)
		v.queue(event.EventDriftEnd, &event.DriftEvent{VehicleID: v.id, Gauge: v.drift.Gauge, Speed: v.state.ForwardSpeed})
	}
	if tr.filled {
		v.logger.Debug("Drift gauge full")
		v.queue(event.EventGaugeFull, &event.GaugeEvent{VehicleID: v.id, Gauge: v.drift.Gauge, MaxGauge: v.tuning.MaxDriftGauge})
	}
}

func (v *Vehicle) recordBoost(tr boostTransition) {
	if tr.started {
		v.logger.Debug("Boost started", "power", tr.power, "duration", tr.duration)
		v.queue(event.EventBoostStart, &event.BoostEvent{VehicleID: v.id, Power: tr.power, Duration: tr.duration})
	}
	if tr.ended {
		v.logger.Debug("Boost ended", "power", tr.power, "duration", tr.duration)
		v.queue(event.EventBoostEnd, &event.BoostEvent{VehicleID: v.id, Power: tr.power, Duration: tr.duration})
	}
}

func (v *Vehicle) queue(name string, payload any) {
	v.pending = append(v.pending, pendingEvent{name: name, payload: payload})
}

func (v *Vehicle) takePending() []pendingEvent {
	if len(v.pending) == 0 {
		return nil
	}
	events := v.pending
	v.pending = nil
	return events
}

// publish runs outside the lock so handlers may read telemetry back.
func (v *Vehicle) publish(events []pendingEvent) {
	if v.notifier == nil {
		return
	}
	for _, e := range events {
		v.notifier.Publish(e.name, e.payload)
	}
}

// SetBoostGaugeToMax fills the drift gauge instantly, as an item pickup does.
func (v *Vehicle) SetBoostGaugeToMax() {
	if v == nil {
		return
	}
	v.mu.Lock()
	prev := v.drift.Gauge
	v.drift.Gauge = v.tuning.MaxDriftGauge
	v.queue(event.EventGaugeRefill, &event.GaugeEvent{VehicleID: v.id, Gauge: v.drift.Gauge, MaxGauge: v.tuning.MaxDriftGauge})
	if prev < v.tuning.MaxDriftGauge && !v.boost.Active {
		v.queue(event.EventGaugeFull, &event.GaugeEvent{VehicleID: v.id, Gauge: v.drift.Gauge, MaxGauge: v.tuning.MaxDriftGauge})
	}
	events := v.takePending()
	v.mu.Unlock()

	v.publish(events)
}

// ResetToInitialState returns the vehicle to its spawn pose with every timer,
// gauge and speed zeroed.
func (v *Vehicle) ResetToInitialState() {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.state = v.initialState()
	v.drift = DriftState{}
	v.boost = BoostState{}
	v.pending = nil
	v.mu.Unlock()

	v.logger.Debug("Vehicle reset")
	v.publish([]pendingEvent{{name: event.EventVehicleReset, payload: &event.ResetEvent{VehicleID: v.id}}})
}

// SetSpawn moves the reset point, e.g. to a checkpoint. It does not move the vehicle.
func (v *Vehicle) SetSpawn(spawn Spawn) {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.spawn = spawn
	v.mu.Unlock()
}

func (v *Vehicle) CurrentSpeed() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.ForwardSpeed
}

func (v *Vehicle) IsGrounded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Grounded
}

func (v *Vehicle) IsBraking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Braking
}

func (v *Vehicle) IsDrifting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.drift.Active
}

func (v *Vehicle) IsBoosting() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boost.Active
}

// DriftAngle is the visual body offset in degrees; zero when not drifting.
func (v *Vehicle) DriftAngle() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.drift.Angle
}

// BoostPower is the gauge fraction the current boost was fired with.
func (v *Vehicle) BoostPower() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boost.Power
}

func (v *Vehicle) BoostRemaining() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boost.Remaining
}

func (v *Vehicle) CurrentDriftGauge() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.drift.Gauge
}

func (v *Vehicle) MaxDriftGauge() float64 {
	return v.tuning.MaxDriftGauge
}

func (v *Vehicle) EffectiveMaxSpeed() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tuning.EffectiveMaxSpeed(v.boost)
}

func (v *Vehicle) Position() physics.Vec3 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Position
}

func (v *Vehicle) Yaw() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Yaw
}

func (v *Vehicle) Heading() mgl64.Quat {
	return physics.YawRotation(v.Yaw())
}

// Snapshot is a consistent copy of everything collaborators read each frame.
type Snapshot struct {
	ID                uuid.UUID
	Position          physics.Vec3
	Yaw               float64
	Speed             float64
	EffectiveMaxSpeed float64
	VerticalVelocity  float64
	Grounded          bool
	Braking           bool
	Drifting          bool
	DriftAngle        float64
	TurnInput         float64
	Gauge             float64
	MaxGauge          float64
	MinBoostGauge     float64
	Boosting          bool
	BoostPower        float64
	BoostRemaining    float64
}

func (v *Vehicle) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{
		ID:                v.id,
		Position:          v.state.Position,
		Yaw:               v.state.Yaw,
		Speed:             v.state.ForwardSpeed,
		EffectiveMaxSpeed: v.tuning.EffectiveMaxSpeed(v.boost),
		VerticalVelocity:  v.state.VerticalVelocity,
		Grounded:          v.state.Grounded,
		Braking:           v.state.Braking,
		Drifting:          v.drift.Active,
		DriftAngle:        v.drift.Angle,
		TurnInput:         v.drift.TurnInput,
		Gauge:             v.drift.Gauge,
		MaxGauge:          v.tuning.MaxDriftGauge,
		MinBoostGauge:     v.tuning.MinBoostGauge,
		Boosting:          v.boost.Active,
		BoostPower:        v.boost.Power,
		BoostRemaining:    v.boost.Remaining,
	}
}

// Nudge shifts the vehicle through its mover without touching speed, used for
// separating overlapping karts.
func (v *Vehicle) Nudge(delta physics.Vec3) {
	if v == nil || delta.Len() == 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mover == nil {
		return
	}
	v.state.Position, v.state.Grounded = v.mover.Move(v.state.Position, delta)
}
