// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HWHardsoft/HVAC-car-control/pkg/logger"
)

// OutputBank drives the relay and PWM outputs.
type OutputBank interface {
	WriteOutput(o Output, on bool) error
	// WriteFanDuty sets the fan PWM duty, 0..MaxFanDuty.
	WriteFanDuty(duty int) error
}

// Hardware groups the controller's hardware collaborators.
type Hardware struct {
	Outputs     OutputBank
	Outside     Bus
	InsideLeft  Bus
	InsideRight Bus
}

// Observer is notified of controller events. Calls happen on the scheduler
// goroutine after the controller lock is released and must not block.
type Observer interface {
	FrameReceived(f *Frame, err error, handled bool)
	StatusPushed(r Reading)
	ControlEvaluated(s Snapshot)
}

// NopObserver implements Observer with no-ops, for embedding.
type NopObserver struct{}

func (NopObserver) FrameReceived(*Frame, error, bool) {}
func (NopObserver) StatusPushed(Reading)              {}
func (NopObserver) ControlEvaluated(Snapshot)         {}

// Config holds controller timing and behaviour options.
type Config struct {
	Pace           time.Duration
	ConversionWait time.Duration
	NoDeviceWait   time.Duration
	SettleWait     time.Duration
	BootSensorGap  time.Duration
	SensorPolicy   SensorPolicy

	// Wait implements every delay. Defaults to Sleep.
	Wait WaitFunc
}

// DefaultConfig returns the reference timing.
func DefaultConfig() Config {
	return Config{
		Pace:           DefaultPace,
		ConversionWait: DefaultConversionWait,
		NoDeviceWait:   DefaultNoDeviceWait,
		SettleWait:     DefaultSettleWait,
		BootSensorGap:  DefaultBootSensorGap,
		SensorPolicy:   SensorPolicyLegacy,
		Wait:           Sleep,
	}
}

// Controller runs the HVAC control loop.
//
// All mutable state sits behind mu. The scheduler goroutine takes it for
// each dispatch and thermostat evaluation; other goroutines take it through
// Snapshot and Stats. Sensor conversions run without the lock held.
type Controller struct {
	mu       sync.Mutex
	state    State
	applied  Actuators
	synced   bool
	retry    [numOutputs]bool // last write failed
	fanRetry bool
	tick     uint64
	stats    *Statistics

	cfg       Config
	hw        Hardware
	parser    *Parser
	inbox     ByteSource
	display   io.Writer
	reader    *SensorReader
	sched     *Scheduler
	observers []Observer
}

// NewController creates a controller reading display frames from inbox and
// pushing status to display. display may be nil.
func NewController(cfg Config, hw Hardware, inbox ByteSource, display io.Writer) (*Controller, error) {
	if hw.Outputs == nil {
		return nil, errors.New("hardware: no output bank")
	}
	if hw.Outside == nil || hw.InsideLeft == nil || hw.InsideRight == nil {
		return nil, errors.New("hardware: missing sensor bus")
	}
	if inbox == nil {
		return nil, errors.New("no display input")
	}
	if cfg.Wait == nil {
		cfg.Wait = Sleep
	}

	c := &Controller{
		state:   NewState(),
		stats:   NewStatistics(),
		cfg:     cfg,
		hw:      hw,
		parser:  NewParser(),
		inbox:   inbox,
		display: display,
	}
	c.reader = &SensorReader{
		Wait:           cfg.Wait,
		ConversionWait: cfg.ConversionWait,
		NoDeviceWait:   cfg.NoDeviceWait,
		Diagnostic:     c.assertDiagnostic,
	}

	c.sched = NewScheduler(cfg.Pace, cfg.Wait)
	c.sched.OnError = func(task string, err error) {
		logger.Warn("task %s: %v", task, err)
	}
	tasks := []Task{
		{Name: "commands", Period: 1, Offset: 0, Run: c.processCommands},
		{Name: "outside", Period: CycleLength, Offset: SlotOutside, Run: c.sampleOutside},
		{Name: "inside-right", Period: CycleLength, Offset: SlotInsideRight, Run: c.sampler(hw.InsideRight, func(r *Readings) *Reading { return &r.InsideRight })},
		{Name: "inside-left", Period: CycleLength, Offset: SlotInsideLeft, Run: c.sampler(hw.InsideLeft, func(r *Readings) *Reading { return &r.InsideLeft })},
		{Name: "control", Period: CycleLength, Offset: SlotControl, Run: c.control},
	}
	for _, t := range tasks {
		if err := c.sched.Add(t); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// AddObserver registers an observer. Call before Run.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Boot drives every output off, lets the hardware settle and takes the
// first reading from each sensor.
func (c *Controller) Boot(ctx context.Context) error {
	c.mu.Lock()
	c.syncOutputs()
	c.mu.Unlock()

	if err := c.cfg.Wait(ctx, c.cfg.SettleWait); err != nil {
		return err
	}

	buses := []struct {
		bus  Bus
		slot func(r *Readings) *Reading
	}{
		{c.hw.Outside, func(r *Readings) *Reading { return &r.Outside }},
		{c.hw.InsideRight, func(r *Readings) *Reading { return &r.InsideRight }},
		{c.hw.InsideLeft, func(r *Readings) *Reading { return &r.InsideLeft }},
	}
	for i, b := range buses {
		if i > 0 {
			if err := c.cfg.Wait(ctx, c.cfg.BootSensorGap); err != nil {
				return err
			}
		}
		if err := c.sampler(b.bus, b.slot)(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("boot %v", err)
		}
	}

	st := c.State()
	logger.Info("controller booted: outside=%s left=%s right=%s",
		st.Readings.Outside, st.Readings.InsideLeft, st.Readings.InsideRight)
	return nil
}

// Run boots the controller and runs the scheduler until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Boot(ctx); err != nil {
		return err
	}
	return c.sched.Run(ctx)
}

// Step runs one scheduler iteration without pacing.
func (c *Controller) Step(ctx context.Context) []string {
	return c.sched.Step(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newSnapshot(&c.state, c.tick)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a copy of the controller statistics.
func (c *Controller) Stats() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.stats
}

// processCommands polls the display input and dispatches a complete frame.
func (c *Controller) processCommands(ctx context.Context) error {
	c.mu.Lock()
	c.tick = c.sched.Tick()
	frame, err := c.parser.Poll(c.inbox)
	if frame == nil && err == nil {
		c.mu.Unlock()
		return nil
	}

	handled := false
	if frame != nil {
		handled = Dispatch(&c.state, frame.Command())
		if handled {
			c.syncOutputs()
		}
	}
	c.stats.RecordFrame(frame, err, handled)
	c.mu.Unlock()

	switch {
	case err != nil:
		logger.Debug("frame discarded: %v", err)
	case !handled:
		logger.Debug("frame ignored: id%02d value %q", frame.ID(), frame.Command().Value)
	default:
		logger.Debug("frame dispatched: %s", CommandName(frame.ID()))
	}

	for _, o := range c.observers {
		o.FrameReceived(frame, err, handled)
	}
	return nil
}

// sampler returns a task that reads bus and stores the result in the
// reading chosen by slot.
func (c *Controller) sampler(bus Bus, slot func(r *Readings) *Reading) TaskFunc {
	return func(ctx context.Context) error {
		celsius, err := c.reader.ReadTemperature(ctx, bus)
		if err != nil && ctx.Err() != nil {
			return err
		}

		c.mu.Lock()
		*slot(&c.state.Readings) = Reading{Celsius: celsius, Err: err}
		if err != nil {
			c.stats.SensorErrors++
		}
		c.mu.Unlock()

		if err != nil {
			return fmt.Errorf("sensor read: %w", err)
		}
		return nil
	}
}

// sampleOutside reads the outside sensor and pushes it to the display.
func (c *Controller) sampleOutside(ctx context.Context) error {
	readErr := c.sampler(c.hw.Outside, func(r *Readings) *Reading { return &r.Outside })(ctx)
	if ctx.Err() != nil {
		return readErr
	}

	c.mu.Lock()
	reading := c.state.Readings.Outside
	c.mu.Unlock()

	if c.display != nil {
		if _, err := c.display.Write(EncodeOutsideStatus(reading)); err != nil {
			logger.Warn("status push failed: %v", err)
		} else {
			c.mu.Lock()
			c.stats.StatusPushes++
			c.mu.Unlock()
		}
	}

	for _, o := range c.observers {
		o.StatusPushed(reading)
	}
	return readErr
}

// control runs the thermostat and drives the compressor and heater valve.
func (c *Controller) control(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state.Mode
	mode := evaluate(&c.state, c.cfg.SensorPolicy)
	c.syncOutputs()
	snap := newSnapshot(&c.state, c.tick)
	c.mu.Unlock()

	if mode != prev {
		logger.Info("climate mode %s -> %s (outside=%s setpoint=%d°C)",
			prev, mode, formatSample(snap.Outside), snap.SetpointLeft)
	}

	for _, o := range c.observers {
		o.ControlEvaluated(snap)
	}
	return nil
}

// assertDiagnostic raises the diagnostic output. Called by the sensor
// reader without the controller lock held.
func (c *Controller) assertDiagnostic() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Actuators.Diagnostic = true
	c.syncOutputs()
}

// syncOutputs writes every output whose commanded value differs from the
// last value written, or whose last write failed. Outputs switching off are
// written before outputs switching on, so a vent change never has both the
// old and new vents open. The first call writes everything. Caller holds mu.
func (c *Controller) syncOutputs() {
	want := c.state.Actuators

	for _, pass := range []bool{false, true} {
		for _, o := range Outputs {
			on := want.Get(o)
			if on != pass {
				continue
			}
			if c.synced && !c.retry[o] && c.applied.Get(o) == on {
				continue
			}
			c.retry[o] = false
			if err := c.hw.Outputs.WriteOutput(o, on); err != nil {
				c.retry[o] = true
				c.stats.HardwareErrors++
				logger.Error("write %s=%v: %v", o, on, err)
			}
		}
	}

	if !c.synced || c.fanRetry || c.applied.FanDuty != want.FanDuty {
		c.fanRetry = false
		if err := c.hw.Outputs.WriteFanDuty(want.FanDuty); err != nil {
			c.fanRetry = true
			c.stats.HardwareErrors++
			logger.Error("write fan duty %d: %v", want.FanDuty, err)
		}
	}

	c.applied = want
	c.synced = true
}
