// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package sim

import (
	"fmt"
	"sync"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
)

// Write is one recorded output write. For fan duty writes Output is -1.
type Write struct {
	Output hvac.Output
	On     bool
	Duty   int
}

// FanDutyWrite marks a Write as a PWM duty write.
const FanDutyWrite hvac.Output = -1

// String formats the write for test failures and logs.
func (w Write) String() string {
	if w.Output == FanDutyWrite {
		return fmt.Sprintf("FAN_DUTY=%d", w.Duty)
	}
	return fmt.Sprintf("%s=%v", w.Output, w.On)
}

// Outputs is an in-memory relay and PWM bank that records every write.
type Outputs struct {
	mu     sync.Mutex
	state  map[hvac.Output]bool
	duty   int
	writes []Write
	fail   map[hvac.Output]error
}

// NewOutputs creates an output bank with every output off.
func NewOutputs() *Outputs {
	return &Outputs{
		state: make(map[hvac.Output]bool),
		fail:  make(map[hvac.Output]error),
	}
}

// WriteOutput implements hvac.OutputBank.
func (o *Outputs) WriteOutput(out hvac.Output, on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.fail[out]; err != nil {
		return err
	}
	o.state[out] = on
	o.writes = append(o.writes, Write{Output: out, On: on})
	return nil
}

// WriteFanDuty implements hvac.OutputBank.
func (o *Outputs) WriteFanDuty(duty int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if duty < 0 || duty > hvac.MaxFanDuty {
		return fmt.Errorf("fan duty %d out of range 0..%d", duty, hvac.MaxFanDuty)
	}
	if err := o.fail[FanDutyWrite]; err != nil {
		return err
	}
	o.duty = duty
	o.writes = append(o.writes, Write{Output: FanDutyWrite, Duty: duty})
	return nil
}

// FailOutput makes every write to out return err. A nil err clears it.
func (o *Outputs) FailOutput(out hvac.Output, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.fail, out)
		return
	}
	o.fail[out] = err
}

// Get returns the last value written to out.
func (o *Outputs) Get(out hvac.Output) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state[out]
}

// FanDuty returns the last duty written.
func (o *Outputs) FanDuty() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duty
}

// Writes returns a copy of the write log.
func (o *Outputs) Writes() []Write {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Write(nil), o.writes...)
}

// ClearWrites empties the write log.
func (o *Outputs) ClearWrites() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = nil
}
