// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package hvac_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/sim"
)

type recordingSink struct {
	hvac.NopObserver
	rec *hvac.Recorder
	err error
}

func (s *recordingSink) ControlEvaluated(snap hvac.Snapshot) {
	if err := s.rec.Record(snap); err != nil {
		s.err = err
	}
}

func TestRecorderReplaysControlCycles(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Temp(4), sim.Fail(sim.FaultCRC), sim.Temp(28))

	var buf bytes.Buffer
	sink := &recordingSink{rec: hvac.NewRecorder(&buf)}
	r.ctrl.AddObserver(sink)

	r.send(hvac.CmdACEnable, '1')
	r.send(hvac.CmdFanLevel, '3')
	r.cycle()
	r.cycle()
	r.cycle()
	require.NoError(t, sink.err)

	var got []hvac.Snapshot
	require.NoError(t, hvac.ReadRecording(&buf, func(s hvac.Snapshot) error {
		got = append(got, s)
		return nil
	}))
	require.Len(t, got, 3)

	assert.Equal(t, hvac.ModeHeating, got[0].Mode)
	assert.Equal(t, 4, got[0].Outside.Celsius)
	assert.Zero(t, got[0].Outside.Fault)
	assert.True(t, got[0].Output(hvac.OutputHeaterValve))
	assert.True(t, got[0].Output(hvac.OutputFanPower))
	assert.Equal(t, 3, got[0].FanLevel)
	assert.Equal(t, 439, got[0].FanDuty)
	assert.True(t, got[0].ACEnabled)

	assert.Equal(t, hvac.SentinelCRCMismatch, got[1].Outside.Fault)
	assert.Equal(t, hvac.ModeCooling, got[1].Mode)

	assert.Equal(t, hvac.ModeCooling, got[2].Mode)
	assert.Equal(t, 28, got[2].Outside.Celsius)
	assert.False(t, got[2].Output(hvac.OutputHeaterValve))

	for _, s := range got {
		assert.Equal(t, hvac.SlotControl, s.Phase)
	}
}

func TestReadRecordingStopsOnCallbackError(t *testing.T) {
	var buf bytes.Buffer
	rec := hvac.NewRecorder(&buf)
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Record(hvac.Snapshot{Tick: uint64(i)}))
	}

	stop := errors.New("stop")
	calls := 0
	err := hvac.ReadRecording(&buf, func(hvac.Snapshot) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestReadRecordingRejectsGarbage(t *testing.T) {
	err := hvac.ReadRecording(strings.NewReader("\xff\x00not cbor"), func(hvac.Snapshot) error { return nil })
	assert.Error(t, err)
}

func TestFormatSnapshot(t *testing.T) {
	r := newRig(t, hvac.SensorPolicyLegacy, sim.Fail(sim.FaultNoDevice))
	r.send(hvac.CmdFogLight, '1')
	r.ctrl.Step(context.Background())

	out := hvac.FormatSnapshot(r.ctrl.Snapshot())
	assert.Contains(t, out, "FOG_LIGHT")
	assert.Contains(t, out, "outside=FAULT(97)")
	assert.Contains(t, out, "left=20°C right=20°C")
}
