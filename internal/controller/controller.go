package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/vhtoggle/internal/device"
	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
	"github.com/nerrad567/vhtoggle/internal/notify"
)

// DefaultSettleDelay is the wait between a toggle command and the follow-up
// observation.
const DefaultSettleDelay = time.Second

// DeviceQuery observes the device and issues toggle commands.
// *virtualhere.Client implements it.
type DeviceQuery interface {
	ListDevices(ctx context.Context) device.Device
	Use(ctx context.Context, address string) (string, error)
	StopUsing(ctx context.Context, address string) (string, error)
}

// Config configures a Controller.
type Config struct {
	// DeviceID is stamped on history rows.
	DeviceID string

	// DeviceName is used in notification text.
	DeviceName string

	// SettleDelay is the wait after a toggle command.
	SettleDelay time.Duration
}

// Deps are the collaborators of a Controller. History may be nil.
type Deps struct {
	Query    DeviceQuery
	Store    device.StateStore
	History  device.StateHistoryRepository
	Notifier notify.Notifier
	Logger   *logging.Logger
}

// Outcome summarises one cycle.
type Outcome struct {
	// CycleID correlates log lines of one cycle.
	CycleID string `json:"cycle_id"`

	// Mode is the mode the cycle was started in.
	Mode string `json:"mode"`

	// Device is the last observation made by the cycle.
	Device device.Device `json:"device"`

	// Changed is true when any observation differed from the stored state.
	Changed bool `json:"changed"`

	// Toggled is true when a USE or STOP USING command was issued.
	Toggled bool `json:"toggled"`

	// Target is the requested state when Toggled.
	Target *device.State `json:"target,omitempty"`

	// StartedAt and Duration time the cycle.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Controller runs toggle cycles. Cycles are serialised by an internal lock,
// so RunCycle is safe to call from several goroutines.
type Controller struct {
	cfg  Config
	deps Deps

	runMu sync.Mutex

	lastMu sync.RWMutex
	last   *Outcome
}

// New creates a controller.
func New(cfg Config, deps Deps) *Controller {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Controller{cfg: cfg, deps: deps}
}

// RunCycle runs one cycle in the given mode.
//
// Parameters:
//   - ctx: Cancelling aborts retry and settle waits
//   - mode: ModeInteractive may toggle once; ModeBackground only observes
//
// Returns:
//   - Outcome: What was observed and done
//   - error: Only state store or history failures (wrapping ErrPersistence),
//     or ctx.Err() if cancelled during the settle delay
func (c *Controller) RunCycle(ctx context.Context, mode Mode) (Outcome, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	out := Outcome{
		CycleID:   uuid.NewString(),
		Mode:      mode.String(),
		StartedAt: time.Now().UTC(),
	}
	log := c.deps.Logger.With("cycle_id", out.CycleID, "mode", out.Mode)
	log.Debug("cycle started")

	err := c.cycle(ctx, mode, &out, log)
	out.Duration = time.Since(out.StartedAt)

	c.lastMu.Lock()
	last := out
	c.last = &last
	c.lastMu.Unlock()

	if err != nil {
		log.Error("cycle failed", "error", err)
		return out, err
	}

	log.Info("cycle finished",
		"device", out.Device.String(),
		"changed", out.Changed,
		"toggled", out.Toggled,
		"duration", out.Duration,
	)
	return out, nil
}

// cycle is the observe/record/toggle loop. The loop runs at most twice:
// once in the requested mode and, after a toggle, once in background mode.
func (c *Controller) cycle(ctx context.Context, mode Mode, out *Outcome, log *logging.Logger) error {
	for {
		dev := c.deps.Query.ListDevices(ctx)
		out.Device = dev

		changed, err := c.record(ctx, dev, mode, log)
		if err != nil {
			return err
		}
		out.Changed = out.Changed || changed

		if mode == ModeBackground {
			return nil
		}

		addr, ok := dev.Address()
		if !ok {
			log.Info("device unavailable, nothing to toggle")
			return nil
		}

		target := dev.State().Opposite()
		c.toggle(ctx, target, addr, log)
		out.Toggled = true
		out.Target = &target

		if err := sleep(ctx, c.cfg.SettleDelay); err != nil {
			return err
		}
		mode = ModeBackground
	}
}

// record compares dev with the stored state and, on a difference, saves it,
// appends history and notifies.
func (c *Controller) record(ctx context.Context, dev device.Device, mode Mode, log *logging.Logger) (bool, error) {
	current := dev.State()

	previous, found, err := c.deps.Store.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: loading state: %w", ErrPersistence, err)
	}
	if found && previous == current {
		return false, nil
	}

	if err := c.deps.Store.Save(ctx, current); err != nil {
		return false, fmt.Errorf("%w: saving state: %w", ErrPersistence, err)
	}

	var prev *device.State
	previousToken := "none"
	if found {
		prev = &previous
		previousToken = previous.String()
	}
	if c.deps.History != nil {
		if err := c.deps.History.RecordStateChange(ctx, c.cfg.DeviceID, prev, dev, mode.String()); err != nil {
			return false, fmt.Errorf("%w: recording history: %w", ErrPersistence, err)
		}
	}

	log.Info("state changed", "previous", previousToken, "state", current.String())
	c.deps.Notifier.StateChanged(ctx, notify.NewStateChange(c.cfg.DeviceName, dev, mode.String()))
	return true, nil
}

// toggle issues the command for target and shows the progress toast.
// Command output is not checked; the follow-up observation decides.
func (c *Controller) toggle(ctx context.Context, target device.State, address string, log *logging.Logger) {
	var (
		output  string
		err     error
		message string
	)

	if target == device.StateConnected {
		output, err = c.deps.Query.Use(ctx, address)
		message = "Connecting " + c.cfg.DeviceName + "..."
	} else {
		output, err = c.deps.Query.StopUsing(ctx, address)
		message = "Disconnecting " + c.cfg.DeviceName + "..."
	}

	if err != nil {
		log.Warn("toggle command failed", "target", target.String(), "address", address, "error", err)
	} else {
		log.Info("toggle command sent", "target", target.String(), "address", address, "output", output)
	}

	c.deps.Notifier.Progress(ctx, message)
}

// LastOutcome returns the most recent cycle outcome, if any.
func (c *Controller) LastOutcome() (Outcome, bool) {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// sleep waits d or returns ctx.Err().
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
