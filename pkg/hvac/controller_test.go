// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/sim"
)

func noWait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

type rig struct {
	ctrl    *hvac.Controller
	outputs *sim.Outputs
	outside *sim.Sensor
	left    *sim.Sensor
	right   *sim.Sensor
	inbox   *hvac.Inbox
	display *bytes.Buffer
}

func newRig(t *testing.T, policy hvac.SensorPolicy, outside ...sim.Step) *rig {
	t.Helper()

	r := &rig{
		outputs: sim.NewOutputs(),
		outside: sim.NewSensor(hvac.FamilyDS18B20, 12, outside...),
		left:    sim.NewSensor(hvac.FamilyDS18B20, 12, sim.Temp(22)),
		right:   sim.NewSensor(hvac.FamilyDS18B20, 12, sim.Temp(23)),
		inbox:   hvac.NewInbox(),
		display: &bytes.Buffer{},
	}

	cfg := hvac.DefaultConfig()
	cfg.Wait = noWait
	cfg.SensorPolicy = policy

	ctrl, err := hvac.NewController(cfg, hvac.Hardware{
		Outputs:     r.outputs,
		Outside:     r.outside,
		InsideLeft:  r.left,
		InsideRight: r.right,
	}, r.inbox, r.display)
	require.NoError(t, err)
	r.ctrl = ctrl
	return r
}

func (r *rig) send(id uint8, value byte) {
	r.inbox.Write(hvac.EncodeFrame(id, value))
	r.ctrl.Step(context.Background())
}

func (r *rig) cycle() {
	for i := 0; i < hvac.CycleLength; i++ {
		r.ctrl.Step(context.Background())
	}
}

func TestNewControllerRequiresHardware(t *testing.T) {
	cfg := hvac.DefaultConfig()
	bus := sim.NewSensor(hvac.FamilyDS18B20, 12)

	_, err := hvac.NewController(cfg, hvac.Hardware{Outside: bus, InsideLeft: bus, InsideRight: bus}, hvac.NewInbox(), nil)
	assert.Error(t, err)

	_, err = hvac.NewController(cfg, hvac.Hardware{Outputs: sim.NewOutputs(), Outside: bus}, hvac.NewInbox(), nil)
	assert.Error(t, err)

	_, err = hvac.NewController(cfg, hvac.Hardware{Outputs: sim.NewOutputs(), Outside: bus, InsideLeft: bus, InsideRight: bus}, nil, nil)
	assert.Error(t, err)
}

func TestBoot(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Temp(12))
	require.NoError(t, r.ctrl.Boot(context.Background()))

	writes := r.outputs.Writes()
	require.Len(t, writes, len(hvac.Outputs)+1)
	for _, w := range writes[:len(hvac.Outputs)] {
		assert.False(t, w.On, "boot wrote %s", w)
	}
	assert.Equal(t, sim.FanDutyWrite, writes[len(writes)-1].Output)
	assert.Equal(t, 0, writes[len(writes)-1].Duty)

	st := r.ctrl.State()
	assert.Equal(t, 12, st.Readings.Outside.Celsius)
	assert.Equal(t, 22, st.Readings.InsideLeft.Celsius)
	assert.Equal(t, 23, st.Readings.InsideRight.Celsius)
	assert.NoError(t, st.Readings.Outside.Err)
	assert.Empty(t, r.display.Bytes(), "boot must not push status")
}

func TestBootTolerantOfSensorFaults(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Fail(sim.FaultNoDevice))
	require.NoError(t, r.ctrl.Boot(context.Background()))

	st := r.ctrl.State()
	assert.ErrorIs(t, st.Readings.Outside.Err, hvac.ErrNoDeviceFound)
	assert.Equal(t, uint64(1), r.ctrl.Stats().SensorErrors)
}

func TestSetpointRoundTrip(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	r.send(hvac.CmdSetpointLeft, '7')
	r.send(hvac.CmdSetpointRight, '4')

	st := r.ctrl.State()
	assert.Equal(t, 7, st.Setpoints.Left)
	assert.Equal(t, 4, st.Setpoints.Right)

	snap := r.ctrl.Snapshot()
	assert.Equal(t, 7, snap.SetpointLeft)
	assert.Equal(t, 4, snap.SetpointRight)
}

func TestStatusPushOnOutsideSlot(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Temp(23), sim.Fail(sim.FaultNoDevice))

	ran := r.ctrl.Step(context.Background())
	assert.Equal(t, []string{"commands", "outside"}, ran)
	assert.Equal(t, []byte("ID1.val=23\xff\xff\xff"), r.display.Bytes())

	r.display.Reset()
	for i := 1; i < hvac.CycleLength; i++ {
		r.ctrl.Step(context.Background())
	}
	assert.Empty(t, r.display.Bytes(), "status pushed outside slot 0")

	r.ctrl.Step(context.Background())
	assert.Equal(t, []byte("ID1.val=97\xff\xff\xff"), r.display.Bytes())
	assert.Equal(t, uint64(2), r.ctrl.Stats().StatusPushes)
}

func TestVentChangeWritesOffBeforeOn(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	require.NoError(t, r.ctrl.Boot(context.Background()))

	r.send(hvac.CmdVentFront, '1')
	assert.True(t, r.outputs.Get(hvac.OutputVentFront))

	r.outputs.ClearWrites()
	r.send(hvac.CmdVentFootWindow, '1')

	assert.Equal(t, []sim.Write{
		{Output: hvac.OutputVentFront, On: false},
		{Output: hvac.OutputVentFoot, On: true},
		{Output: hvac.OutputVentWindow, On: true},
	}, r.outputs.Writes())
}

func TestOnlyChangedOutputsAreWritten(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	require.NoError(t, r.ctrl.Boot(context.Background()))
	r.outputs.ClearWrites()

	r.send(hvac.CmdFogLight, '1')
	r.send(hvac.CmdFogLight, '1')
	r.send(hvac.CmdFogLight, 'x')

	assert.Equal(t, []sim.Write{{Output: hvac.OutputFogLight, On: true}}, r.outputs.Writes())
}

func TestFanAndShutdown(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	require.NoError(t, r.ctrl.Boot(context.Background()))

	r.send(hvac.CmdFanLevel, '5')
	assert.True(t, r.outputs.Get(hvac.OutputFanPower))
	assert.Equal(t, 731, r.outputs.FanDuty())

	r.send(hvac.CmdACEnable, '1')
	r.send(hvac.CmdWindowHeatRear, '1')
	r.send(hvac.CmdVentFrontFoot, '1')
	r.send(hvac.CmdHVACPower, '0')

	assert.Equal(t, 0, r.outputs.FanDuty())
	for _, o := range []hvac.Output{
		hvac.OutputFanPower,
		hvac.OutputWindowHeatRear,
		hvac.OutputVentFront,
		hvac.OutputVentFoot,
	} {
		assert.False(t, r.outputs.Get(o), "%s still on after shutdown", o)
	}
	assert.False(t, r.ctrl.State().ACEnabled)
}

func TestThermostatScenario(t *testing.T) {
	// The boot read takes the first sample.
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Temp(25), sim.Temp(25), sim.Temp(16), sim.Temp(20))
	require.NoError(t, r.ctrl.Boot(context.Background()))
	r.send(hvac.CmdACEnable, '1')

	want := []struct {
		mode        hvac.Mode
		compressor  bool
		heaterValve bool
	}{
		{hvac.ModeCooling, true, false},
		{hvac.ModeHeating, false, true},
		{hvac.ModeIdle, false, false},
	}

	// The AC frame consumed tick 0, so each cycle below starts at slot 1
	// and the outside slot runs last.
	r.cycle()
	for i, w := range want {
		assert.Equal(t, w.mode, r.ctrl.State().Mode, "cycle %d", i)
		assert.Equal(t, w.compressor, r.outputs.Get(hvac.OutputCompressor), "cycle %d compressor", i)
		assert.Equal(t, w.heaterValve, r.outputs.Get(hvac.OutputHeaterValve), "cycle %d heater valve", i)
		r.cycle()
	}
}

func TestSensorPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy hvac.SensorPolicy
		want   hvac.Mode
	}{
		{"legacy sentinel cools", hvac.SensorPolicyLegacy, hvac.ModeCooling},
		{"strict holds idle", hvac.SensorPolicyStrict, hvac.ModeIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.policy, sim.Fail(sim.FaultNoDevice))
			r.send(hvac.CmdACEnable, '1')
			r.cycle()

			st := r.ctrl.State()
			assert.ErrorIs(t, st.Readings.Outside.Err, hvac.ErrNoDeviceFound)
			assert.Equal(t, tt.want, st.Mode)
		})
	}
}

func TestTypeSSensorAssertsDiagnostic(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	r.left = sim.NewSensor(hvac.FamilyDS18S20, 9, sim.Temp(18))

	cfg := hvac.DefaultConfig()
	cfg.Wait = noWait
	ctrl, err := hvac.NewController(cfg, hvac.Hardware{
		Outputs:     r.outputs,
		Outside:     r.outside,
		InsideLeft:  r.left,
		InsideRight: r.right,
	}, r.inbox, nil)
	require.NoError(t, err)

	require.NoError(t, ctrl.Boot(context.Background()))
	assert.Equal(t, 18, ctrl.State().Readings.InsideLeft.Celsius)
	assert.True(t, ctrl.State().Actuators.Diagnostic)
	assert.True(t, r.outputs.Get(hvac.OutputDiagnostic))
}

func TestOutputFailuresAreCounted(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	r.outputs.FailOutput(hvac.OutputFogLight, errors.New("relay driver fault"))

	r.send(hvac.CmdFogLight, '1')
	assert.NotZero(t, r.ctrl.Stats().HardwareErrors)
	assert.True(t, r.ctrl.State().Actuators.FogLight)
}

func TestFailedOutputIsRedriven(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Temp(5))
	require.NoError(t, r.ctrl.Boot(context.Background()))

	r.outputs.FailOutput(hvac.OutputHeaterValve, errors.New("relay driver fault"))
	r.cycle()
	require.Equal(t, hvac.ModeHeating, r.ctrl.State().Mode)
	assert.False(t, r.outputs.Get(hvac.OutputHeaterValve))

	r.outputs.FailOutput(hvac.OutputHeaterValve, nil)
	r.cycle()
	assert.True(t, r.outputs.Get(hvac.OutputHeaterValve), "heater valve not re-driven")

	// Once written it is not rewritten
	r.outputs.ClearWrites()
	r.cycle()
	for _, w := range r.outputs.Writes() {
		assert.NotEqual(t, hvac.OutputHeaterValve, w.Output, "heater valve rewritten")
	}
}

func TestFailedFanDutyIsRedriven(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	require.NoError(t, r.ctrl.Boot(context.Background()))

	r.outputs.FailOutput(sim.FanDutyWrite, errors.New("pwm fault"))
	r.send(hvac.CmdFanLevel, '4')
	assert.Equal(t, 0, r.outputs.FanDuty())

	r.outputs.FailOutput(sim.FanDutyWrite, nil)
	r.cycle()
	assert.Equal(t, 585, r.outputs.FanDuty())
}

func TestFrameStatistics(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)

	r.send(hvac.CmdFogLight, '1')
	r.inbox.Write([]byte("noequalshere|"))
	r.ctrl.Step(context.Background())
	r.send(42, '1')

	stats := r.ctrl.Stats()
	assert.Equal(t, uint64(3), stats.TotalFrames)
	assert.Equal(t, uint64(1), stats.Dispatched)
	assert.Equal(t, uint64(1), stats.NoAssignment)
	assert.Equal(t, uint64(1), stats.UnknownCommands)
}

type recordingObserver struct {
	hvac.NopObserver
	frames   int
	statuses []hvac.Reading
	snaps    []hvac.Snapshot
}

func (o *recordingObserver) FrameReceived(*hvac.Frame, error, bool) { o.frames++ }
func (o *recordingObserver) StatusPushed(r hvac.Reading)            { o.statuses = append(o.statuses, r) }
func (o *recordingObserver) ControlEvaluated(s hvac.Snapshot)       { o.snaps = append(o.snaps, s) }

func TestObserversAreNotified(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Temp(30))
	obs := &recordingObserver{}
	r.ctrl.AddObserver(obs)

	r.send(hvac.CmdACEnable, '1')
	for i := 1; i < hvac.CycleLength; i++ {
		r.ctrl.Step(context.Background())
	}

	assert.Equal(t, 1, obs.frames)
	require.Len(t, obs.statuses, 1)
	assert.Equal(t, 30, obs.statuses[0].Celsius)
	require.Len(t, obs.snaps, 1)
	assert.Equal(t, hvac.ModeCooling, obs.snaps[0].Mode)
	assert.Equal(t, hvac.SlotControl, obs.snaps[0].Phase)
	assert.True(t, obs.snaps[0].Output(hvac.OutputCompressor))
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := hvac.DefaultConfig()
	cfg.Pace = time.Millisecond
	cfg.SettleWait = 0
	cfg.BootSensorGap = 0
	cfg.ConversionWait = time.Millisecond
	ctrl, err := hvac.NewController(cfg, hvac.Hardware{
		Outputs:     r.outputs,
		Outside:     r.outside,
		InsideLeft:  r.left,
		InsideRight: r.right,
	}, r.inbox, nil)
	require.NoError(t, err)

	err = ctrl.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
