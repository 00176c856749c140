// Package fleet owns a set of independent vehicles (the player and the bots) and
// steps them together once per frame.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Versifine/kartsim/internal/event"
	"github.com/Versifine/kartsim/internal/physics"
	"github.com/Versifine/kartsim/internal/vehicle"
)

var ErrUnknownVehicle = errors.New("unknown vehicle")

// InputSource produces the input for one vehicle each tick. Sources are only ever
// called from the goroutine ticking their own vehicle.
type InputSource interface {
	Next(s vehicle.Snapshot) vehicle.InputFrame
}

// InputFunc adapts a plain function to InputSource.
type InputFunc func(s vehicle.Snapshot) vehicle.InputFrame

func (f InputFunc) Next(s vehicle.Snapshot) vehicle.InputFrame {
	return f(s)
}

// Resetter is implemented by input sources that keep per-race progress.
type Resetter interface {
	Reset()
}

type member struct {
	vehicle *vehicle.Vehicle
	source  InputSource
}

type Fleet struct {
	bus    *event.Bus
	mover  physics.Mover
	logger *slog.Logger
	push   bool

	// stepMu serializes whole frames against resets and pickups, so input sources
	// are never touched from two goroutines at once.
	stepMu sync.Mutex

	mu      sync.Mutex
	order   []uuid.UUID
	members map[uuid.UUID]*member
}

type Option func(*Fleet)

func WithLogger(l *slog.Logger) Option {
	return func(f *Fleet) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithoutPush disables kart-to-kart separation.
func WithoutPush() Option {
	return func(f *Fleet) { f.push = false }
}

func New(bus *event.Bus, mover physics.Mover, opts ...Option) *Fleet {
	f := &Fleet{
		bus:     bus,
		mover:   mover,
		logger:  slog.Default(),
		push:    true,
		members: make(map[uuid.UUID]*member),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Spawn builds a vehicle wired to the fleet's mover and bus and registers it.
func (f *Fleet) Spawn(tuning vehicle.Tuning, spawn vehicle.Spawn, source InputSource) (*vehicle.Vehicle, error) {
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("spawn vehicle: %w", err)
	}

	id := uuid.New()
	opts := []vehicle.Option{
		vehicle.WithMover(f.mover),
		vehicle.WithLogger(f.logger),
	}
	if f.bus != nil {
		opts = append(opts, vehicle.WithNotifier(f.bus))
	}
	v := vehicle.New(id, tuning, spawn, opts...)

	f.mu.Lock()
	f.order = append(f.order, id)
	f.members[id] = &member{vehicle: v, source: source}
	f.mu.Unlock()

	f.logger.Info("Vehicle spawned", "vehicle", id.String(), "x", spawn.Position.X(), "z", spawn.Position.Z(), "yaw", spawn.Yaw)
	return v, nil
}

func (f *Fleet) Remove(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[id]; !ok {
		return false
	}
	delete(f.members, id)
	for i, got := range f.order {
		if got == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

func (f *Fleet) Get(id uuid.UUID) (*vehicle.Vehicle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, false
	}
	return m.vehicle, true
}

// Vehicles returns the vehicles in spawn order.
func (f *Fleet) Vehicles() []*vehicle.Vehicle {
	members := f.snapshotMembers()
	out := make([]*vehicle.Vehicle, len(members))
	for i, m := range members {
		out[i] = m.vehicle
	}
	return out
}

func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func (f *Fleet) snapshotMembers() []*member {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*member, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.members[id])
	}
	return out
}

// Step samples every input source and ticks every vehicle once. Vehicles share no
// state, so each one is ticked on its own goroutine; kart separation runs after all
// of them have finished. ctx is checked once before the frame starts: a frame that
// has started always completes for every vehicle.
func (f *Fleet) Step(ctx context.Context, dt float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.stepMu.Lock()
	defer f.stepMu.Unlock()

	members := f.snapshotMembers()

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, m := range members {
		g.Go(func() error {
			var in vehicle.InputFrame
			if m.source != nil {
				in = m.source.Next(m.vehicle.Snapshot())
			}
			m.vehicle.Tick(in, dt)
			return nil
		})
	}
	_ = g.Wait()

	if f.push {
		f.separate(members)
	}
	return nil
}

func (f *Fleet) separate(members []*member) {
	if len(members) < 2 {
		return
	}
	positions := make([]physics.Vec3, len(members))
	for i, m := range members {
		positions[i] = m.vehicle.Position()
	}

	others := make([]physics.Vec3, 0, len(members)-1)
	for i, m := range members {
		others = others[:0]
		others = append(others, positions[:i]...)
		others = append(others, positions[i+1:]...)
		m.vehicle.Nudge(physics.KartPush(positions[i], others))
	}
}

// Pickup fills the gauge of one vehicle, as driving through an item box does. Like
// ResetAll it is serialized against Step.
func (f *Fleet) Pickup(id uuid.UUID) error {
	v, ok := f.Get(id)
	if !ok {
		return fmt.Errorf("pickup %s: %w", id, ErrUnknownVehicle)
	}
	f.stepMu.Lock()
	defer f.stepMu.Unlock()
	v.SetBoostGaugeToMax()
	return nil
}

// ResetAll returns every vehicle to its spawn and resets input sources that track
// progress. It waits for an in-flight Step to finish, so it must not be called from
// an event handler or input source running inside Step.
func (f *Fleet) ResetAll() {
	f.stepMu.Lock()
	defer f.stepMu.Unlock()
	for _, m := range f.snapshotMembers() {
		m.vehicle.ResetToInitialState()
		if r, ok := m.source.(Resetter); ok {
			r.Reset()
		}
	}
	f.logger.Info("Fleet reset", "vehicles", f.Len())
}

// PublishLap reports a completed lap for a vehicle on the fleet's bus.
func (f *Fleet) PublishLap(id uuid.UUID, lap int) {
	f.logger.Info("Lap complete", "vehicle", id.String(), "lap", lap)
	if f.bus != nil {
		f.bus.Publish(event.EventLapComplete, &event.LapEvent{VehicleID: id, Lap: lap})
	}
}
