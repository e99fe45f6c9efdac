// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package sim

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
)

// Scenario is a bench script for the simulated plant: what each sensor
// reports, and which display frames arrive when.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Sensors     SensorScripts  `yaml:"sensors"`
	Display     []DisplayEvent `yaml:"display"`
}

// SensorScripts holds one script per sensor bus.
type SensorScripts struct {
	Outside     SensorScript `yaml:"outside"`
	InsideLeft  SensorScript `yaml:"inside_left"`
	InsideRight SensorScript `yaml:"inside_right"`
}

// SensorScript describes one simulated sensor.
type SensorScript struct {
	// Family is ds18s20, ds18b20 or ds1822. Defaults to ds18b20.
	Family string `yaml:"family"`
	// Resolution in bits, 9..12. Defaults to 12.
	Resolution int    `yaml:"resolution"`
	Readings   []Step `yaml:"readings"`
}

// DisplayEvent is a frame injected on the display link At after start.
type DisplayEvent struct {
	At    time.Duration `yaml:"at"`
	Frame string        `yaml:"frame"`
}

// UnmarshalYAML accepts a number (degrees Celsius) or a fault name.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: reading must be a temperature or a fault name", value.Line)
	}

	switch value.Tag {
	case "!!int", "!!float":
		var c float64
		if err := value.Decode(&c); err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*s = Temp(c)
		return nil
	}

	f := Fault(strings.ToLower(value.Value))
	switch f {
	case FaultNoDevice, FaultCRC, FaultUnsupported:
		*s = Fail(f)
		return nil
	}
	return fmt.Errorf("line %d: unknown sensor fault %q (use no_device, crc or unsupported)", value.Line, value.Value)
}

// MarshalYAML writes a step in the form UnmarshalYAML reads.
func (s Step) MarshalYAML() (interface{}, error) {
	if s.Fault != FaultNone {
		return string(s.Fault), nil
	}
	return s.Celsius, nil
}

// ParseFamily maps a sensor family name to its 1-Wire family code.
func ParseFamily(name string) (byte, error) {
	switch strings.ToLower(name) {
	case "", "ds18b20":
		return hvac.FamilyDS18B20, nil
	case "ds18s20":
		return hvac.FamilyDS18S20, nil
	case "ds1822":
		return hvac.FamilyDS1822, nil
	}
	return 0, fmt.Errorf("unknown sensor family %q (use ds18s20, ds18b20 or ds1822)", name)
}

// DefaultScenario is a quiet plant: every sensor steady at the default
// temperature and no scripted display traffic.
func DefaultScenario() *Scenario {
	steady := SensorScript{Readings: []Step{Temp(hvac.DefaultTemperature)}}
	return &Scenario{
		Name:    "default",
		Sensors: SensorScripts{Outside: steady, InsideLeft: steady, InsideRight: steady},
	}
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks sensor families, resolutions and display frames.
func (sc *Scenario) Validate() error {
	for name, s := range sc.scripts() {
		if _, err := ParseFamily(s.Family); err != nil {
			return fmt.Errorf("sensor %s: %w", name, err)
		}
		if s.Resolution != 0 && (s.Resolution < 9 || s.Resolution > 12) {
			return fmt.Errorf("sensor %s: resolution %d outside 9..12", name, s.Resolution)
		}
	}
	for i, ev := range sc.Display {
		if ev.At < 0 {
			return fmt.Errorf("display event %d: negative time %v", i, ev.At)
		}
		if ev.Frame == "" {
			return fmt.Errorf("display event %d: empty frame", i)
		}
	}
	return nil
}

func (sc *Scenario) scripts() map[string]SensorScript {
	return map[string]SensorScript{
		"outside":      sc.Sensors.Outside,
		"inside_left":  sc.Sensors.InsideLeft,
		"inside_right": sc.Sensors.InsideRight,
	}
}

// Plant is the simulated hardware built from a scenario.
type Plant struct {
	Outputs     *Outputs
	Outside     *Sensor
	InsideLeft  *Sensor
	InsideRight *Sensor
}

// Build creates the simulated hardware.
func (sc *Scenario) Build() (*Plant, error) {
	build := func(s SensorScript) (*Sensor, error) {
		family, err := ParseFamily(s.Family)
		if err != nil {
			return nil, err
		}
		return NewSensor(family, s.Resolution, s.Readings...), nil
	}

	p := &Plant{Outputs: NewOutputs()}
	var err error
	if p.Outside, err = build(sc.Sensors.Outside); err != nil {
		return nil, fmt.Errorf("sensor outside: %w", err)
	}
	if p.InsideLeft, err = build(sc.Sensors.InsideLeft); err != nil {
		return nil, fmt.Errorf("sensor inside_left: %w", err)
	}
	if p.InsideRight, err = build(sc.Sensors.InsideRight); err != nil {
		return nil, fmt.Errorf("sensor inside_right: %w", err)
	}
	return p, nil
}

// Hardware returns the plant as controller hardware.
func (p *Plant) Hardware() hvac.Hardware {
	return hvac.Hardware{
		Outputs:     p.Outputs,
		Outside:     p.Outside,
		InsideLeft:  p.InsideLeft,
		InsideRight: p.InsideRight,
	}
}

// PlayDisplay writes the scripted display frames to w at their scheduled
// times. A frame without a terminator gets one.
func (sc *Scenario) PlayDisplay(ctx context.Context, w io.Writer, wait hvac.WaitFunc) error {
	if wait == nil {
		wait = hvac.Sleep
	}

	events := append([]DisplayEvent(nil), sc.Display...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	var elapsed time.Duration
	for _, ev := range events {
		if err := wait(ctx, ev.At-elapsed); err != nil {
			return err
		}
		elapsed = ev.At

		frame := ev.Frame
		if !strings.HasSuffix(frame, string(rune(hvac.Terminator))) {
			frame += string(rune(hvac.Terminator))
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return fmt.Errorf("failed to inject frame %q: %w", ev.Frame, err)
		}
	}
	return nil
}
