package vehicle

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Versifine/kartsim/internal/event"
	"github.com/Versifine/kartsim/internal/physics"
)

const frameDT = 1.0 / 60.0

type recordingNotifier struct {
	names    []string
	payloads []any
	onEvent  func(name string)
}

func (r *recordingNotifier) Publish(name string, evt any) {
	r.names = append(r.names, name)
	r.payloads = append(r.payloads, evt)
	if r.onEvent != nil {
		r.onEvent(name)
	}
}

func (r *recordingNotifier) count(name string) int {
	n := 0
	for _, got := range r.names {
		if got == name {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestVehicle(t *testing.T, tuning Tuning, opts ...Option) *Vehicle {
	t.Helper()
	require.NoError(t, tuning.Validate())
	base := []Option{WithMover(physics.PlaneMover{}), WithLogger(quietLogger())}
	return New(uuid.New(), tuning, Spawn{}, append(base, opts...)...)
}

func tickN(v *Vehicle, in InputFrame, n int) {
	for i := 0; i < n; i++ {
		v.Tick(in, frameDT)
	}
}

func requireFiniteState(t *testing.T, v *Vehicle) {
	t.Helper()
	s := v.Snapshot()
	require.True(t, physics.IsFiniteVec(s.Position), "position %v", s.Position)
	for name, f := range map[string]float64{
		"yaw":       s.Yaw,
		"speed":     s.Speed,
		"vertical":  s.VerticalVelocity,
		"gauge":     s.Gauge,
		"turnInput": s.TurnInput,
		"remaining": s.BoostRemaining,
	} {
		require.True(t, physics.IsFinite(f), "%s = %v", name, f)
	}
}

func TestThrottleFromRestUsesLiteralAcceleration(t *testing.T) {
	v := newTestVehicle(t, DefaultTuning())

	tickN(v, Sample(1, 0, false, false, false), 120)

	assert.InDelta(t, math.Min(30, 0.1*2), v.CurrentSpeed(), 1e-9)
}

func TestReverseAcceleratesAtHalfRateAndCapsAtHalfMaxSpeed(t *testing.T) {
	tuning := DefaultTuning()
	v := newTestVehicle(t, tuning)

	tickN(v, Sample(-1, 0, false, false, false), 60)
	assert.InDelta(t, -0.05, v.CurrentSpeed(), 1e-9)

	tuning.Acceleration = 100
	fast := newTestVehicle(t, tuning)
	tickN(fast, Sample(-1, 0, false, false, false), 120)
	assert.Equal(t, -tuning.MaxSpeed*ReverseSpeedFactor, fast.CurrentSpeed())
}

func TestForwardSpeedCappedAtMaxSpeed(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Acceleration = 100
	v := newTestVehicle(t, tuning)

	tickN(v, Sample(1, 0, false, false, false), 120)

	assert.Equal(t, tuning.MaxSpeed, v.CurrentSpeed())
}

func TestCoastingAndBrakingDecay(t *testing.T) {
	tuning := DefaultTuning()
	coast := newTestVehicle(t, tuning)
	brake := newTestVehicle(t, tuning)
	coast.state.ForwardSpeed = 10
	brake.state.ForwardSpeed = 10

	coast.Tick(Sample(0, 0, false, false, false), frameDT)
	brake.Tick(Sample(0, 0, true, false, false), frameDT)

	assert.InDelta(t, 10*(1-tuning.Deceleration*CoastDecayFactor*frameDT), coast.CurrentSpeed(), 1e-9)
	assert.InDelta(t, 10*(1-tuning.BrakeForce*frameDT), brake.CurrentSpeed(), 1e-9)
	assert.Less(t, brake.CurrentSpeed(), coast.CurrentSpeed())
	assert.True(t, brake.IsBraking())
	assert.False(t, coast.IsBraking())
}

func TestInputAxesAreClamped(t *testing.T) {
	clamped := newTestVehicle(t, DefaultTuning())
	unit := newTestVehicle(t, DefaultTuning())

	tickN(clamped, InputFrame{Throttle: 7, Steer: -12}, 30)
	tickN(unit, InputFrame{Throttle: 1, Steer: -1}, 30)

	assert.Equal(t, unit.Snapshot().Speed, clamped.Snapshot().Speed)
	assert.Equal(t, unit.Snapshot().Yaw, clamped.Snapshot().Yaw)

	f := Sample(math.NaN(), math.Inf(1), false, false, false)
	assert.Equal(t, 0.0, f.Throttle)
	assert.Equal(t, 1.0, f.Steer)
}

func TestInvalidDeltaTimeIsNoop(t *testing.T) {
	v := newTestVehicle(t, DefaultTuning())
	before := v.Snapshot()

	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		v.Tick(Sample(1, 1, false, true, true), dt)
	}

	assert.Equal(t, before, v.Snapshot())
}

func TestTurnAuthorityScalesWithSpeed(t *testing.T) {
	tuning := DefaultTuning()
	tuning.TurnSmoothness = 1e6 // filtered steer follows input immediately
	tuning.Deceleration = 0

	slow := newTestVehicle(t, tuning)
	fast := newTestVehicle(t, tuning)
	slow.state.ForwardSpeed = 1
	fast.state.ForwardSpeed = tuning.MaxSpeed

	slow.Tick(Sample(0, 1, false, false, false), frameDT)
	fast.Tick(Sample(0, 1, false, false, false), frameDT)

	wantSlow := tuning.TurnSpeed * physics.Lerp(MinTurnAuthority, 1, 1/tuning.MaxSpeed) * frameDT
	wantFast := tuning.TurnSpeed * frameDT
	assert.InDelta(t, wantSlow, slow.Yaw(), 1e-9)
	assert.InDelta(t, wantFast, fast.Yaw(), 1e-9)
}

func TestNoTurningWhileStationary(t *testing.T) {
	v := newTestVehicle(t, DefaultTuning())
	tickN(v, Sample(0, 1, false, false, false), 30)
	assert.Equal(t, 0.0, v.Yaw())
	assert.Greater(t, v.Snapshot().TurnInput, 0.0)
}

func TestDriftHysteresis(t *testing.T) {
	v := newTestVehicle(t, DefaultTuning())
	v.state.ForwardSpeed = 5

	v.Tick(Sample(0, 0.5, false, true, false), frameDT)
	require.True(t, v.IsDrifting(), "expected drift to engage")
	assert.Greater(t, v.DriftAngle(), 0.0)

	// Between the exit and entry thresholds the drift holds.
	v.Tick(Sample(0, 0.18, false, true, false), frameDT)
	require.True(t, v.IsDrifting(), "drift should hold above the exit threshold")

	v.Tick(Sample(0, 0.1, false, true, false), frameDT)
	require.False(t, v.IsDrifting(), "drift should end below the exit threshold")
	assert.Zero(t, v.DriftAngle())

	// The same in-between steer does not start a new drift.
	v.Tick(Sample(0, 0.18, false, true, false), frameDT)
	require.False(t, v.IsDrifting(), "drift should not engage below the entry threshold")
}

func TestDriftEndsOnReleaseOrLowSpeed(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		input InputFrame
	}{
		{"release", 5, Sample(0, 0.5, false, false, false)},
		{"too slow", 1.4, Sample(0, 0.5, false, true, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVehicle(t, DefaultTuning())
			v.state.ForwardSpeed = 5
			v.Tick(Sample(0, 0.5, false, true, false), frameDT)
			require.True(t, v.IsDrifting())

			v.state.ForwardSpeed = tt.speed
			v.Tick(tt.input, frameDT)
			assert.False(t, v.IsDrifting())
		})
	}
}

func TestDriftDoesNotEngageBelowEntrySpeed(t *testing.T) {
	v := newTestVehicle(t, DefaultTuning())
	v.state.ForwardSpeed = 1.9
	v.Tick(Sample(0, 1, false, true, false), frameDT)
	assert.False(t, v.IsDrifting())
}

func TestGaugeMonotonicity(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Acceleration = 5
	v := newTestVehicle(t, tuning)
	v.state.ForwardSpeed = 10

	drifting := Sample(1, 0.8, false, true, false)
	v.Tick(drifting, frameDT)
	require.True(t, v.IsDrifting())

	prev := v.CurrentDriftGauge()
	for i := 0; i < 600; i++ {
		v.Tick(drifting, frameDT)
		require.True(t, v.IsDrifting())
		g := v.CurrentDriftGauge()
		require.GreaterOrEqual(t, g, prev)
		require.LessOrEqual(t, g, tuning.MaxDriftGauge)
		prev = g
	}
	require.Greater(t, prev, 0.0)

	coasting := Sample(1, 0, false, false, false)
	for i := 0; i < 600; i++ {
		v.Tick(coasting, frameDT)
		require.False(t, v.IsDrifting())
		g := v.CurrentDriftGauge()
		require.LessOrEqual(t, g, prev)
		require.GreaterOrEqual(t, g, 0.0)
		prev = g
	}
}

func TestGaugeChargeRate(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Deceleration = 0
	v := newTestVehicle(t, tuning)
	v.state.ForwardSpeed = 15

	v.Tick(Sample(0, 0.5, false, true, false), frameDT)

	want := tuning.DriftGaugeRate * 0.5 * (15 / tuning.MaxSpeed) * frameDT * tuning.ChargeMultiplier
	assert.InDelta(t, want, v.CurrentDriftGauge(), 1e-12)
}

func TestBoostAllOrNothing(t *testing.T) {
	tuning := DefaultTuning()
	tuning.GaugeDecayRate = 0

	below := newTestVehicle(t, tuning)
	below.drift.Gauge = tuning.MinBoostGauge - 0.01
	below.Tick(Sample(0, 0, false, false, true), frameDT)
	assert.False(t, below.IsBoosting())
	assert.Equal(t, tuning.MinBoostGauge-0.01, below.CurrentDriftGauge())

	exact := newTestVehicle(t, tuning)
	exact.drift.Gauge = tuning.MinBoostGauge
	exact.Tick(Sample(0, 0, false, false, true), frameDT)
	assert.True(t, exact.IsBoosting())
	assert.Equal(t, 0.0, exact.CurrentDriftGauge())

	s := exact.Snapshot()
	assert.InDelta(t, 0.25, s.BoostPower, 1e-12)
	assert.InDelta(t, tuning.BoostDuration*0.25-frameDT, s.BoostRemaining, 1e-12)
}

func TestBoostIgnoredWhileAlreadyBoosting(t *testing.T) {
	tuning := DefaultTuning()
	tuning.GaugeDecayRate = 0
	v := newTestVehicle(t, tuning)
	v.SetBoostGaugeToMax()
	v.Tick(Sample(0, 0, false, false, true), frameDT)
	require.True(t, v.IsBoosting())

	v.SetBoostGaugeToMax()
	v.Tick(Sample(0, 0, false, false, true), frameDT)

	assert.True(t, v.IsBoosting())
	assert.Equal(t, v.MaxDriftGauge(), v.CurrentDriftGauge())
	assert.InDelta(t, tuning.BoostDuration-2*frameDT, v.Snapshot().BoostRemaining, 1e-9)
}

func TestBoostRaisesCeilingAndExpiryRestoresBaseline(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Acceleration = 200
	tuning.GaugeDecayRate = 0
	v := newTestVehicle(t, tuning)

	tickN(v, Sample(1, 0, false, false, false), 30)
	require.Equal(t, tuning.MaxSpeed, v.CurrentSpeed())

	v.SetBoostGaugeToMax()
	v.Tick(Sample(1, 0, false, false, true), frameDT)
	require.True(t, v.IsBoosting())
	assert.Equal(t, tuning.BoostTopSpeed, v.EffectiveMaxSpeed())

	for v.IsBoosting() {
		v.Tick(Sample(1, 0, false, false, false), frameDT)
		require.LessOrEqual(t, v.CurrentSpeed(), v.EffectiveMaxSpeed())
	}

	assert.Equal(t, tuning.MaxSpeed, v.EffectiveMaxSpeed())
	assert.Equal(t, tuning.MaxSpeed, v.CurrentSpeed())
	assert.Equal(t, 0.0, v.Snapshot().BoostRemaining)
}

func TestBoostDurationMatchesPower(t *testing.T) {
	tuning := DefaultTuning()
	tuning.GaugeDecayRate = 0
	v := newTestVehicle(t, tuning)
	v.drift.Gauge = 50

	v.Tick(Sample(0, 0, false, false, true), frameDT)
	require.True(t, v.IsBoosting())
	assert.InDelta(t, 0.5, v.BoostPower(), 1e-9)
	assert.InDelta(t, 1-frameDT, v.BoostRemaining(), 1e-9)
	ticks := 1
	for v.IsBoosting() {
		v.Tick(Sample(0, 0, false, false, false), frameDT)
		ticks++
	}

	// power 0.5 -> one second of boost
	assert.InDelta(t, 60, ticks, 1)
}

func TestBoostBelowBaseSpeedNeverLowersCeiling(t *testing.T) {
	tuning := DefaultTuning()
	tuning.BoostTopSpeed = 10
	assert.Equal(t, tuning.MaxSpeed, tuning.EffectiveMaxSpeed(BoostState{Active: true, Power: 1, Remaining: 1}))
}

func TestClampingInvariantUnderRandomInput(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Acceleration = 25
	rng := rand.New(rand.NewSource(7))
	v := newTestVehicle(t, tuning)

	for i := 0; i < 5000; i++ {
		in := InputFrame{
			Throttle: rng.Float64()*2.4 - 1.2,
			Steer:    rng.Float64()*2.4 - 1.2,
			Brake:    rng.Intn(10) == 0,
			Drift:    rng.Intn(3) != 0,
			Boost:    rng.Intn(40) == 0,
		}
		if rng.Intn(500) == 0 {
			v.SetBoostGaugeToMax()
		}
		v.Tick(in, frameDT*(0.5+rng.Float64()))

		s := v.Snapshot()
		require.GreaterOrEqual(t, s.Speed, tuning.ReverseCap())
		require.LessOrEqual(t, s.Speed, s.EffectiveMaxSpeed)
		require.GreaterOrEqual(t, s.Gauge, 0.0)
		require.LessOrEqual(t, s.Gauge, tuning.MaxDriftGauge)
		if s.Boosting {
			require.Greater(t, s.BoostRemaining, 0.0)
		}
		requireFiniteState(t, v)
	}
}

func TestZeroMaxSpeedStaysFinite(t *testing.T) {
	tuning := DefaultTuning()
	tuning.MaxSpeed = 0
	tuning.BoostTopSpeed = 0
	tuning.MaxDriftGauge = 0
	tuning.MinBoostGauge = 0
	tuning.MaxBoostGauge = 0
	v := newTestVehicle(t, tuning)

	for i := 0; i < 120; i++ {
		v.Tick(Sample(1, 1, i%7 == 0, true, i%11 == 0), frameDT)
		requireFiniteState(t, v)
	}
	assert.Equal(t, 0.0, v.CurrentSpeed())
	assert.False(t, v.IsBoosting())
}

func TestDriftAddsLateralSlide(t *testing.T) {
	tuning := DefaultTuning()
	tuning.TurnSpeed = 0
	tuning.TurnSmoothness = 1e6
	tuning.Deceleration = 0

	drifting := newTestVehicle(t, tuning)
	plain := newTestVehicle(t, tuning)
	drifting.state.ForwardSpeed = 10
	plain.state.ForwardSpeed = 10

	drifting.Tick(Sample(0, 0.5, false, true, false), frameDT)
	plain.Tick(Sample(0, 0.5, false, false, false), frameDT)

	require.True(t, drifting.IsDrifting())
	wantSlide := 0.5 * tuning.DriftForce * DriftSlideScale * frameDT * frameDT
	assert.InDelta(t, wantSlide, drifting.Position().X(), 1e-12)
	assert.Equal(t, 0.0, plain.Position().X())
	assert.InDelta(t, plain.Position().Z(), drifting.Position().Z(), 1e-12)
	assert.InDelta(t, 0.5*DriftAngleDegrees, drifting.Snapshot().DriftAngle, 1e-9)
}

func TestVerticalIntegration(t *testing.T) {
	tuning := DefaultTuning()
	v := New(uuid.New(), tuning, Spawn{Position: physics.Vec3{0, 10, 0}},
		WithMover(physics.PlaneMover{}), WithLogger(quietLogger()))

	v.Tick(InputFrame{}, frameDT)
	assert.InDelta(t, -tuning.Gravity*frameDT, v.Snapshot().VerticalVelocity, 1e-12)
	assert.False(t, v.IsGrounded())

	for i := 0; i < 600 && !v.IsGrounded(); i++ {
		v.Tick(InputFrame{}, frameDT)
	}
	require.True(t, v.IsGrounded())
	assert.Equal(t, 0.0, v.Position().Y())

	v.Tick(InputFrame{}, frameDT)
	assert.Equal(t, GroundStickVelocity, v.Snapshot().VerticalVelocity)
}

func TestResetIsIdempotentAcrossHistories(t *testing.T) {
	tuning := DefaultTuning()
	tuning.Acceleration = 20
	spawn := Spawn{Position: physics.Vec3{3, 0, -2}, Yaw: 45}
	newVehicle := func() *Vehicle {
		return New(uuid.New(), tuning, spawn, WithMover(physics.PlaneMover{}), WithLogger(quietLogger()))
	}

	midDrift := newVehicle()
	midDrift.state.ForwardSpeed = 10
	tickN(midDrift, Sample(1, 0.7, false, true, false), 30)
	require.True(t, midDrift.IsDrifting())

	midBoost := newVehicle()
	midBoost.SetBoostGaugeToMax()
	tickN(midBoost, Sample(1, 0.3, false, false, true), 5)
	require.True(t, midBoost.IsBoosting())

	airborne := New(uuid.New(), tuning, spawn, WithMover(physics.PlaneMover{Height: -50}), WithLogger(quietLogger()))
	tickN(airborne, Sample(1, -1, true, false, false), 20)
	require.False(t, airborne.IsGrounded())

	fresh := newVehicle()
	want := fresh.Snapshot()
	want.ID = uuid.Nil

	for _, v := range []*Vehicle{midDrift, midBoost, airborne, fresh} {
		v.ResetToInitialState()
		got := v.Snapshot()
		got.ID = uuid.Nil
		assert.Equal(t, want, got)

		v.ResetToInitialState()
		again := v.Snapshot()
		again.ID = uuid.Nil
		assert.Equal(t, got, again)
	}
	assert.Equal(t, tuning.MaxSpeed, midBoost.EffectiveMaxSpeed())
	assert.InDelta(t, 45.0, fresh.Yaw(), 1e-12)
}

func TestMissingMoverDegradesToInternalUpdate(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	v := New(uuid.New(), DefaultTuning(), Spawn{Position: physics.Vec3{1, 2, 3}}, WithLogger(logger))

	v.SetBoostGaugeToMax()
	tickN(v, Sample(1, 0, false, false, true), 10)

	assert.True(t, v.IsBoosting())
	assert.Greater(t, v.CurrentSpeed(), 0.0)
	assert.Equal(t, physics.Vec3{1, 2, 3}, v.Position())
	assert.Equal(t, 1, strings.Count(logs.String(), "No mover attached"))
}

func TestEventsArePublishedOutsideTheLock(t *testing.T) {
	notifier := &recordingNotifier{}
	tuning := DefaultTuning()
	tuning.Deceleration = 0
	v := newTestVehicle(t, tuning, WithNotifier(notifier))
	notifier.onEvent = func(string) {
		_ = v.Snapshot()
	}

	v.state.ForwardSpeed = 20
	v.drift.Gauge = tuning.MaxDriftGauge - 0.01
	v.Tick(Sample(0, 1, false, true, false), frameDT)
	v.Tick(Sample(0, 0, false, false, false), frameDT)
	v.Tick(Sample(0, 0, false, false, true), frameDT)
	for v.IsBoosting() {
		v.Tick(InputFrame{}, frameDT)
	}
	v.ResetToInitialState()

	assert.Equal(t, []string{
		event.EventDriftStart,
		event.EventGaugeFull,
		event.EventDriftEnd,
		event.EventBoostStart,
		event.EventBoostEnd,
		event.EventVehicleReset,
	}, notifier.names)

	boost, ok := notifier.payloads[3].(*event.BoostEvent)
	require.True(t, ok)
	assert.Equal(t, v.ID(), boost.VehicleID)
	assert.InDelta(t, 1.0, boost.Power, 0.01)

	// The end event reports the boost that just expired, not an empty one.
	end, ok := notifier.payloads[4].(*event.BoostEvent)
	require.True(t, ok)
	assert.Equal(t, boost.Power, end.Power)
	assert.Equal(t, boost.Duration, end.Duration)
	assert.Greater(t, end.Duration, 0.0)
}

func TestSetBoostGaugeToMaxEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	v := newTestVehicle(t, DefaultTuning(), WithNotifier(notifier))

	v.SetBoostGaugeToMax()
	v.SetBoostGaugeToMax()

	assert.Equal(t, v.MaxDriftGauge(), v.CurrentDriftGauge())
	assert.Equal(t, 2, notifier.count(event.EventGaugeRefill))
	assert.Equal(t, 1, notifier.count(event.EventGaugeFull))
}

func TestEdgeTrigger(t *testing.T) {
	var e EdgeTrigger
	got := []bool{e.Update(false), e.Update(true), e.Update(true), e.Update(false), e.Update(true)}
	assert.Equal(t, []bool{false, true, false, false, true}, got)
}

func TestTuningValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Tuning)
		wantErr string
	}{
		{"defaults", func(*Tuning) {}, ""},
		{"zero caps allowed", func(tn *Tuning) { tn.MaxSpeed = 0; tn.MaxDriftGauge = 0; tn.MinBoostGauge = 0 }, ""},
		{"infinite max speed", func(tn *Tuning) { tn.MaxSpeed = math.Inf(1) }, "max_speed"},
		{"negative accel", func(tn *Tuning) { tn.Acceleration = -1 }, "acceleration"},
		{"nan gravity", func(tn *Tuning) { tn.Gravity = math.NaN() }, "gravity"},
		{"unreachable boost", func(tn *Tuning) { tn.MinBoostGauge = 200 }, "min_boost_gauge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn := DefaultTuning()
			tt.mutate(&tn)
			err := tn.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
