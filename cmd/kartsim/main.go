package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Versifine/kartsim/internal/autopilot"
	"github.com/Versifine/kartsim/internal/config"
	"github.com/Versifine/kartsim/internal/debug"
	"github.com/Versifine/kartsim/internal/event"
	"github.com/Versifine/kartsim/internal/fleet"
	"github.com/Versifine/kartsim/internal/logger"
	"github.com/Versifine/kartsim/internal/physics"
	"github.com/Versifine/kartsim/internal/telemetry"
	"github.com/Versifine/kartsim/internal/vehicle"
	"github.com/Versifine/kartsim/internal/world"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	headless := flag.Bool("headless", false, "let the autopilot drive every kart and exit after sim.headless_seconds")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	closer, err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		slog.Error("Failed to init logger", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *headless); err != nil {
		slog.Error("Simulation failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig falls back to the built-in defaults when the default path is absent.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return cfg, err
}

func run(ctx context.Context, cfg *config.Config, headless bool) error {
	log := logger.L()

	bus := event.NewBus()
	bus.SetLogger(log.With("component", "event"))
	recorder, err := telemetry.NewRecorder(nil)
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	recorder.Attach(bus)
	bus.SubscribeAll(func(raw any) {
		log.Debug("Vehicle event", "event", fmt.Sprintf("%T", raw))
	}, event.All...)

	mover, err := newMover(cfg)
	if err != nil {
		return err
	}
	f := fleet.New(bus, mover, fleet.WithLogger(log.With("component", "fleet")))

	var console *debug.Console
	var playerSource fleet.InputSource
	if headless {
		playerSource = newPilot(cfg)
	} else {
		console = debug.NewConsole(f, time.Duration(float64(time.Second)*cfg.TickInterval()))
		playerSource = console
	}

	player, err := f.Spawn(cfg.Vehicle, cfg.PlayerSpawn(), playerSource)
	if err != nil {
		return err
	}
	if p, ok := playerSource.(*autopilot.Pilot); ok {
		bindLaps(p, f, player)
	}
	for i := 0; i < cfg.Sim.Bots; i++ {
		pilot := newPilot(cfg)
		bot, err := f.Spawn(cfg.Vehicle, cfg.BotSpawn(i), pilot)
		if err != nil {
			return err
		}
		bindLaps(pilot, f, bot)
	}

	if !headless {
		console.SetPlayer(player)
		return console.Start(ctx)
	}
	return runHeadless(ctx, cfg, f, recorder)
}

// newMover builds the walled voxel circuit when enabled and snaps the spawn onto
// its surface; otherwise karts ride an open plane at spawn height.
func newMover(cfg *config.Config) (physics.Mover, error) {
	if !cfg.Track.Walls {
		return physics.PlaneMover{Height: cfg.Spawn.Y}, nil
	}
	grid, err := world.BuildTrack(world.TrackSpec{
		Waypoints:  cfg.Waypoints(),
		Width:      cfg.Track.Width,
		WallHeight: cfg.Track.WallHeight,
		FloorY:     cfg.Track.FloorY,
	})
	if err != nil {
		return nil, fmt.Errorf("build track: %w", err)
	}
	cfg.Spawn.Y = world.SurfaceY(cfg.Track.FloorY)
	logger.L().Info("Track built", "solid_cells", grid.SolidCount(), "chunks", grid.ChunkCount())
	return physics.NewGridMover(grid), nil
}

func newPilot(cfg *config.Config) *autopilot.Pilot {
	p := autopilot.New(cfg.Waypoints())
	if cfg.Track.ArriveRadius > 0 {
		p.ArriveRadius = cfg.Track.ArriveRadius
	}
	return p
}

func bindLaps(p *autopilot.Pilot, f *fleet.Fleet, v *vehicle.Vehicle) {
	id := v.ID()
	p.OnLap = func(lap int) { f.PublishLap(id, lap) }
}

// runHeadless steps the fleet as fast as possible for the configured simulated time.
func runHeadless(ctx context.Context, cfg *config.Config, f *fleet.Fleet, recorder *telemetry.Recorder) error {
	log := logger.L()
	dt := cfg.TickInterval()
	ticks := int(math.Ceil(cfg.Sim.HeadlessSeconds / dt))
	log.Info("Headless run", "karts", f.Len(), "ticks", ticks, "dt", dt)

	start := time.Now()
	for i := 0; i < ticks; i++ {
		if err := f.Step(ctx, dt); err != nil {
			if ctx.Err() != nil {
				log.Info("Headless run interrupted", "tick", i)
				break
			}
			return err
		}
	}

	for _, v := range f.Vehicles() {
		fmt.Println(telemetry.FormatHUD(v.Snapshot()))
	}
	c := recorder.Counts()
	log.Info("Headless run finished",
		"elapsed", time.Since(start),
		"drifts", c.DriftSessions,
		"boosts", c.BoostActivations,
		"gauge_full", c.GaugeFull,
		"laps", c.Laps,
	)
	return nil
}
