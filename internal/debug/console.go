// Package debug drives the player kart from a raw-mode terminal.
package debug

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/Versifine/kartsim/internal/telemetry"
	"github.com/Versifine/kartsim/internal/vehicle"
)

const (
	defaultTickInterval = time.Second / 60
	defaultMovePulse    = 180 * time.Millisecond
)

// Simulation is the part of the fleet the console steers.
type Simulation interface {
	Step(ctx context.Context, dt float64) error
	Pickup(id uuid.UUID) error
	ResetAll()
}

// Player is the vehicle whose input comes from the keyboard.
type Player interface {
	ID() uuid.UUID
	Snapshot() vehicle.Snapshot
	SetSpawn(spawn vehicle.Spawn)
}

// Console turns key presses into vehicle input. A terminal only reports presses,
// never releases, so axes and the brake are held for a short pulse after each press.
type Console struct {
	sim          Simulation
	out          io.Writer
	tickInterval time.Duration
	movePulse    time.Duration
	now          func() time.Time

	// outMu keeps status redraws from the ticker and echoes from the key loop
	// from interleaving on the terminal.
	outMu sync.Mutex

	mu            sync.Mutex
	player        Player
	throttle      float64
	throttleUntil time.Time
	steer         float64
	steerUntil    time.Time
	brakeUntil    time.Time
	drift         bool
	boostQueued   bool
	commandMode   bool
	commandBuf    []rune
	statusWidth   int
	quit          context.CancelFunc
}

func NewConsole(sim Simulation, tickInterval time.Duration) *Console {
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}
	return &Console{
		sim:          sim,
		out:          os.Stdout,
		tickInterval: tickInterval,
		movePulse:    defaultMovePulse,
		now:          time.Now,
	}
}

// SetPlayer binds the vehicle the console renders and reacts for. The player is
// normally spawned with the console itself as its input source.
func (c *Console) SetPlayer(p Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = p
}

// Next implements fleet.InputSource.
func (c *Console) Next(vehicle.Snapshot) vehicle.InputFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expirePulsesLocked(c.now())

	in := vehicle.Sample(c.throttle, c.steer, !c.brakeUntil.IsZero(), c.drift, c.boostQueued)
	c.boostQueued = false
	return in
}

// Start puts the terminal in raw mode, steps the simulation on a ticker and reads
// keys until ctx is done or the user quits.
func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return errors.New("console is nil")
	}
	if c.sim == nil {
		return errors.New("console simulation is nil")
	}
	if c.currentPlayer() == nil {
		return errors.New("console player is nil")
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		c.print("\r\n")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.quit = cancel
	c.mu.Unlock()

	c.print("[kart] console started (W/S throttle, A/D steer, Space brake, Q drift, E boost, G pickup, R reset, X quit, : command)\r\n")
	c.renderStatusLine()

	tickErr := make(chan error, 1)
	go func() { tickErr <- c.tickLoop(ctx) }()

	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-tickErr:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("step simulation: %w", err)
			}
			return nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		case b := <-keys:
			c.HandleKey(b)
		}
	}
}

func (c *Console) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	dt := c.tickInterval.Seconds()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.sim.Step(ctx, dt); err != nil {
				return err
			}
			c.renderStatusLine()
		}
	}
}

// HandleKey applies one raw key byte.
func (c *Console) HandleKey(b byte) {
	if c.isCommandMode() {
		c.handleCommandByte(b)
		return
	}

	switch b {
	case ':':
		c.enterCommandMode()
		return
	case 'w', 'W':
		c.pulseThrottle(1)
	case 's', 'S':
		c.pulseThrottle(-1)
	case 'a', 'A':
		c.pulseSteer(-1)
	case 'd', 'D':
		c.pulseSteer(1)
	case ' ':
		c.pulseBrake()
	case 'q', 'Q':
		c.toggleDrift()
	case 'e', 'E':
		c.queueBoost()
	case 'g', 'G':
		c.pickup()
	case 'r', 'R':
		c.sim.ResetAll()
		c.clearInput()
	case 'x', 'X', 3: // 3 is Ctrl-C, which raw mode delivers as a byte
		c.requestQuit()
		return
	}
	c.renderStatusLine()
}

func (c *Console) enterCommandMode() {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	_, _ = io.WriteString(c.out, "\r\n:")
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		c.print("\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
	case 27: // ESC
		c.mu.Lock()
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()
		c.print("\r\n[kart] command cancelled\r\n")
		c.renderStatusLine()
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s \r:%s", buf, buf)
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	p := c.currentPlayer()
	if p == nil {
		c.print("[kart] no player\r\n")
		return
	}

	switch parts[0] {
	case "help":
		c.printHelp()
	case "state":
		s := p.Snapshot()
		c.printf("[kart] pos=(%.3f,%.3f,%.3f) yaw=%.2f speed=%.3f max=%.3f vy=%.3f ground=%t\r\n",
			s.Position.X(), s.Position.Y(), s.Position.Z(), s.Yaw, s.Speed, s.EffectiveMaxSpeed, s.VerticalVelocity, s.Grounded)
		c.printf("[kart] drift=%t angle=%.1f gauge=%.2f/%.0f boost=%t power=%.2f remaining=%.2f\r\n",
			s.Drifting, s.DriftAngle, s.Gauge, s.MaxGauge, s.Boosting, s.BoostPower, s.BoostRemaining)
	case "checkpoint":
		s := p.Snapshot()
		p.SetSpawn(vehicle.Spawn{Position: s.Position, Yaw: s.Yaw})
		c.printf("[kart] spawn set to (%.2f, %.2f, %.2f) yaw %.1f\r\n", s.Position.X(), s.Position.Y(), s.Position.Z(), s.Yaw)
	case "pickup":
		c.pickup()
	case "reset":
		c.sim.ResetAll()
		c.clearInput()
	default:
		c.printf("[kart] unknown command: %s\r\n", parts[0])
	}
}

const helpText = "[kart] keys:\r\n" +
	"  W/S: throttle pulse forward/reverse\r\n" +
	"  A/D: steer pulse left/right\r\n" +
	"  Space: brake pulse\r\n" +
	"  Q: toggle drift button\r\n" +
	"  E: boost\r\n" +
	"  G: item pickup (fill gauge)\r\n" +
	"  R: reset all karts\r\n" +
	"  X: quit\r\n" +
	"[kart] commands:\r\n" +
	"  :state\r\n" +
	"  :checkpoint\r\n" +
	"  :pickup\r\n" +
	"  :reset\r\n" +
	"  :help\r\n"

func (c *Console) printHelp() {
	c.print(helpText)
}

// renderStatusLine holds outMu for the whole redraw so a command prompt opened
// meanwhile is never overwritten.
func (c *Console) renderStatusLine() {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	c.mu.Lock()
	if c.commandMode || c.player == nil {
		c.mu.Unlock()
		return
	}
	p := c.player
	drift := c.drift
	width := c.statusWidth
	c.mu.Unlock()

	line := "[" + telemetry.FormatHUD(p.Snapshot())
	if drift {
		line += "  Q:held"
	}
	line += "]"

	padding := ""
	if width > len(line) {
		padding = strings.Repeat(" ", width-len(line))
	}
	_, _ = io.WriteString(c.out, "\r"+line+padding)

	c.mu.Lock()
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
	c.mu.Unlock()
}

func (c *Console) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	c.print(fmt.Sprintf(format, args...))
}

func (c *Console) currentPlayer() Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func (c *Console) pulseThrottle(dir float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttle = dir
	c.throttleUntil = c.now().Add(c.movePulse)
}

func (c *Console) pulseSteer(dir float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steer = dir
	c.steerUntil = c.now().Add(c.movePulse)
}

func (c *Console) pulseBrake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.brakeUntil = c.now().Add(c.movePulse)
}

func (c *Console) toggleDrift() {
	c.mu.Lock()
	c.drift = !c.drift
	enabled := c.drift
	c.mu.Unlock()
	slog.Debug("Drift button toggled", "enabled", enabled)
}

func (c *Console) queueBoost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boostQueued = true
}

func (c *Console) pickup() {
	p := c.currentPlayer()
	if p == nil {
		return
	}
	if err := c.sim.Pickup(p.ID()); err != nil {
		slog.Warn("Pickup failed", "error", err)
	}
}

func (c *Console) requestQuit() {
	c.mu.Lock()
	quit := c.quit
	c.mu.Unlock()
	if quit != nil {
		quit()
	}
}

func (c *Console) expirePulsesLocked(now time.Time) {
	if !c.throttleUntil.IsZero() && !now.Before(c.throttleUntil) {
		c.throttle = 0
		c.throttleUntil = time.Time{}
	}
	if !c.steerUntil.IsZero() && !now.Before(c.steerUntil) {
		c.steer = 0
		c.steerUntil = time.Time{}
	}
	if !c.brakeUntil.IsZero() && !now.Before(c.brakeUntil) {
		c.brakeUntil = time.Time{}
	}
}

func (c *Console) clearInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throttle, c.throttleUntil = 0, time.Time{}
	c.steer, c.steerUntil = 0, time.Time{}
	c.brakeUntil = time.Time{}
	c.drift = false
	c.boostQueued = false
}
