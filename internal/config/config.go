package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Versifine/kartsim/internal/physics"
	"github.com/Versifine/kartsim/internal/vehicle"
)

type Config struct {
	Logging LoggingConfig  `yaml:"logging"`
	Sim     SimConfig      `yaml:"sim"`
	Vehicle vehicle.Tuning `yaml:"vehicle"`
	Spawn   SpawnConfig    `yaml:"spawn"`
	Track   TrackConfig    `yaml:"track"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type SimConfig struct {
	TickRate        int     `yaml:"tick_rate"`
	Bots            int     `yaml:"bots"`
	HeadlessSeconds float64 `yaml:"headless_seconds"`
}

type SpawnConfig struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Z          float64 `yaml:"z"`
	Yaw        float64 `yaml:"yaw"`
	BotSpacing float64 `yaml:"bot_spacing"`
}

type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

type TrackConfig struct {
	Waypoints    []Point `yaml:"waypoints"`
	ArriveRadius float64 `yaml:"arrive_radius"`

	// Walls raises a voxel circuit along the waypoints; otherwise karts drive on an
	// open plane at spawn height.
	Walls      bool    `yaml:"walls"`
	Width      float64 `yaml:"width"`
	WallHeight int     `yaml:"wall_height"`
	FloorY     int     `yaml:"floor_y"`
}

// Default returns a config that runs without a file: one player, three bots on a
// rectangular loop.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Sim:     SimConfig{TickRate: 60, Bots: 3, HeadlessSeconds: 30},
		Vehicle: vehicle.DefaultTuning(),
		Spawn:   SpawnConfig{BotSpacing: 3},
		Track: TrackConfig{
			Waypoints: []Point{
				{X: 0, Z: 60},
				{X: 60, Z: 60},
				{X: 60, Z: 0},
				{X: 0, Z: 0},
			},
			ArriveRadius: 4,
			Width:        12,
			WallHeight:   2,
			FloorY:       -1,
		},
	}
}

// Load reads a YAML file on top of Default, so keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Sim.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("sim.tick_rate must be positive, got %d", c.Sim.TickRate))
	}
	if c.Sim.Bots < 0 {
		errs = append(errs, fmt.Errorf("sim.bots must not be negative, got %d", c.Sim.Bots))
	}
	if c.Sim.HeadlessSeconds < 0 {
		errs = append(errs, fmt.Errorf("sim.headless_seconds must not be negative, got %v", c.Sim.HeadlessSeconds))
	}
	if c.Sim.Bots > 0 && len(c.Track.Waypoints) == 0 {
		errs = append(errs, errors.New("track.waypoints required when sim.bots > 0"))
	}
	if c.Track.ArriveRadius < 0 {
		errs = append(errs, fmt.Errorf("track.arrive_radius must not be negative, got %v", c.Track.ArriveRadius))
	}
	if c.Track.Walls {
		if len(c.Track.Waypoints) < 2 {
			errs = append(errs, errors.New("track.walls needs at least two waypoints"))
		}
		if !(c.Track.Width > 0) {
			errs = append(errs, fmt.Errorf("track.width must be positive, got %v", c.Track.Width))
		}
		if c.Track.WallHeight < 0 {
			errs = append(errs, fmt.Errorf("track.wall_height must not be negative, got %d", c.Track.WallHeight))
		}
	}
	if err := c.Vehicle.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vehicle: %w", err))
	}
	return errors.Join(errs...)
}

// TickInterval is the fixed simulation step in seconds.
func (c *Config) TickInterval() float64 {
	if c.Sim.TickRate <= 0 {
		return 0
	}
	return 1 / float64(c.Sim.TickRate)
}

func (c *Config) PlayerSpawn() vehicle.Spawn {
	return vehicle.Spawn{
		Position: physics.Vec3{c.Spawn.X, c.Spawn.Y, c.Spawn.Z},
		Yaw:      c.Spawn.Yaw,
	}
}

// BotSpawn places bot i (zero based) on the grid behind the player, alternating sides.
func (c *Config) BotSpawn(i int) vehicle.Spawn {
	base := c.PlayerSpawn()
	row := float64(i/2 + 1)
	side := 1.0
	if i%2 == 1 {
		side = -1
	}
	offset := physics.Right(base.Yaw).Mul(side * c.Spawn.BotSpacing * 0.5).
		Add(physics.Forward(base.Yaw).Mul(-row * c.Spawn.BotSpacing))
	base.Position = base.Position.Add(offset)
	return base
}

func (c *Config) Waypoints() []physics.Vec3 {
	out := make([]physics.Vec3, len(c.Track.Waypoints))
	for i, p := range c.Track.Waypoints {
		out[i] = physics.Vec3{p.X, p.Y, p.Z}
	}
	return out
}
