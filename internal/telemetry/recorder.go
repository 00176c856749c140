// Package telemetry turns vehicle events into metrics and renders the driver HUD.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/Versifine/kartsim/internal/event"
)

const meterName = "github.com/Versifine/kartsim"

// Counts mirrors the recorded counters so the HUD and tests can read them back.
type Counts struct {
	DriftSessions    int64
	BoostActivations int64
	GaugeFull        int64
	GaugeRefills     int64
	Resets           int64
	Laps             int64
}

type Recorder struct {
	driftSessions metric.Int64Counter
	boosts        metric.Int64Counter
	gaugeFull     metric.Int64Counter
	refills       metric.Int64Counter
	resets        metric.Int64Counter
	laps          metric.Int64Counter
	boostPower    metric.Float64Histogram

	mu     sync.Mutex
	counts Counts
}

// NewRecorder creates the instruments on meter. A nil meter records nothing
// but still keeps Counts.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = noop.Meter{}
	}

	r := &Recorder{}
	var err error
	if r.driftSessions, err = meter.Int64Counter("kartsim.drift.sessions",
		metric.WithDescription("Drifts started"), metric.WithUnit("{drift}")); err != nil {
		return nil, fmt.Errorf("create drift counter: %w", err)
	}
	if r.boosts, err = meter.Int64Counter("kartsim.boost.activations",
		metric.WithDescription("Boosts activated"), metric.WithUnit("{boost}")); err != nil {
		return nil, fmt.Errorf("create boost counter: %w", err)
	}
	if r.gaugeFull, err = meter.Int64Counter("kartsim.gauge.full",
		metric.WithDescription("Times the drift gauge filled up")); err != nil {
		return nil, fmt.Errorf("create gauge counter: %w", err)
	}
	if r.refills, err = meter.Int64Counter("kartsim.gauge.refills",
		metric.WithDescription("Gauge refills from item pickups")); err != nil {
		return nil, fmt.Errorf("create refill counter: %w", err)
	}
	if r.resets, err = meter.Int64Counter("kartsim.vehicle.resets"); err != nil {
		return nil, fmt.Errorf("create reset counter: %w", err)
	}
	if r.laps, err = meter.Int64Counter("kartsim.laps", metric.WithUnit("{lap}")); err != nil {
		return nil, fmt.Errorf("create lap counter: %w", err)
	}
	if r.boostPower, err = meter.Float64Histogram("kartsim.boost.power",
		metric.WithDescription("Fraction of the gauge spent per boost"),
		metric.WithExplicitBucketBoundaries(0.25, 0.5, 0.75, 1)); err != nil {
		return nil, fmt.Errorf("create boost histogram: %w", err)
	}
	return r, nil
}

// Attach subscribes the recorder to every vehicle event on bus.
func (r *Recorder) Attach(bus *event.Bus) {
	bus.Subscribe(event.EventDriftStart, r.onDriftStart)
	bus.Subscribe(event.EventBoostStart, r.onBoostStart)
	bus.Subscribe(event.EventGaugeFull, r.onGaugeFull)
	bus.Subscribe(event.EventGaugeRefill, r.onGaugeRefill)
	bus.Subscribe(event.EventVehicleReset, r.onReset)
	bus.Subscribe(event.EventLapComplete, r.onLap)
}

func (r *Recorder) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

func (r *Recorder) onDriftStart(raw any) {
	evt, ok := raw.(*event.DriftEvent)
	if !ok {
		return
	}
	r.driftSessions.Add(context.Background(), 1, vehicleAttr(evt.VehicleID.String()))
	r.bump(func(c *Counts) { c.DriftSessions++ })
}

func (r *Recorder) onBoostStart(raw any) {
	evt, ok := raw.(*event.BoostEvent)
	if !ok {
		return
	}
	ctx := context.Background()
	attrs := vehicleAttr(evt.VehicleID.String())
	r.boosts.Add(ctx, 1, attrs)
	r.boostPower.Record(ctx, evt.Power, attrs)
	r.bump(func(c *Counts) { c.BoostActivations++ })
}

func (r *Recorder) onGaugeFull(raw any) {
	evt, ok := raw.(*event.GaugeEvent)
	if !ok {
		return
	}
	r.gaugeFull.Add(context.Background(), 1, vehicleAttr(evt.VehicleID.String()))
	r.bump(func(c *Counts) { c.GaugeFull++ })
}

func (r *Recorder) onGaugeRefill(raw any) {
	evt, ok := raw.(*event.GaugeEvent)
	if !ok {
		return
	}
	r.refills.Add(context.Background(), 1, vehicleAttr(evt.VehicleID.String()))
	r.bump(func(c *Counts) { c.GaugeRefills++ })
}

func (r *Recorder) onReset(raw any) {
	evt, ok := raw.(*event.ResetEvent)
	if !ok {
		return
	}
	r.resets.Add(context.Background(), 1, vehicleAttr(evt.VehicleID.String()))
	r.bump(func(c *Counts) { c.Resets++ })
}

func (r *Recorder) onLap(raw any) {
	evt, ok := raw.(*event.LapEvent)
	if !ok {
		return
	}
	r.laps.Add(context.Background(), 1, vehicleAttr(evt.VehicleID.String()))
	r.bump(func(c *Counts) { c.Laps++ })
}

func (r *Recorder) bump(f func(*Counts)) {
	r.mu.Lock()
	f(&r.counts)
	r.mu.Unlock()
}

func vehicleAttr(id string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("vehicle", id))
}
