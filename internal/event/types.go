package event

import "github.com/google/uuid"

const (
	EventDriftStart   = "drift.start"
	EventDriftEnd     = "drift.end"
	EventGaugeFull    = "gauge.full"
	EventGaugeRefill  = "gauge.refill"
	EventBoostStart   = "boost.start"
	EventBoostEnd     = "boost.end"
	EventVehicleReset = "vehicle.reset"
	EventLapComplete  = "lap.complete"
)

// All lists every vehicle event name, in a stable order.
var All = []string{
	EventDriftStart,
	EventDriftEnd,
	EventGaugeFull,
	EventGaugeRefill,
	EventBoostStart,
	EventBoostEnd,
	EventVehicleReset,
	EventLapComplete,
}

type DriftEvent struct {
	VehicleID uuid.UUID
	Gauge     float64
	Speed     float64
}

type GaugeEvent struct {
	VehicleID uuid.UUID
	Gauge     float64
	MaxGauge  float64
}

type BoostEvent struct {
	VehicleID uuid.UUID
	Power     float64
	Duration  float64
}

type ResetEvent struct {
	VehicleID uuid.UUID
}

type LapEvent struct {
	VehicleID uuid.UUID
	Lap       int
}
