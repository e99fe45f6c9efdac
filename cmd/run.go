// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/logger"
	"github.com/HWHardsoft/HVAC-car-control/pkg/mqttpush"
	"github.com/HWHardsoft/HVAC-car-control/pkg/sim"
)

var (
	runScenario       string
	runSensorPolicy   string
	runRecord         string
	runPace           time.Duration
	runConversionWait time.Duration
	runShowSnapshots  bool
	runStatsInterval  int

	mqttBroker   string
	mqttPrefix   string
	mqttUsername string
	mqttClientID string
	mqttRetain   bool
)

// mqttPasswordEnv holds the MQTT broker password.
const mqttPasswordEnv = "HVAC_MQTT_PASSWORD"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the HVAC controller against the simulated plant",
	Long: `Run the controller loop with simulated sensors and outputs.

Display frames are read from the link (--port or --url) when one is given,
and status pushes are written back to it. Without a link, status pushes are
logged. A YAML scenario (--scenario) scripts sensor readings, sensor faults
and display frames.

Each thermostat evaluation can be recorded as CBOR (--record) for later
replay, and mirrored to an MQTT broker (--mqtt-broker).

The MQTT password is read from the HVAC_MQTT_PASSWORD environment variable.`,
	RunE: runController,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Bench scenario YAML file")
	runCmd.Flags().StringVar(&runSensorPolicy, "sensor-policy", "legacy", "Outside sensor fault handling (legacy, strict)")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Record thermostat evaluations to a CBOR file")
	runCmd.Flags().DurationVar(&runPace, "pace", hvac.DefaultPace, "Delay between scheduler iterations")
	runCmd.Flags().DurationVar(&runConversionWait, "conversion-wait", hvac.DefaultConversionWait, "Sensor conversion time")
	runCmd.Flags().BoolVar(&runShowSnapshots, "show-snapshots", false, "Print controller state after every thermostat evaluation")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 0, "Print statistics every N seconds (0 disables)")

	runCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL (tcp://host:1883)")
	runCmd.Flags().StringVar(&mqttPrefix, "mqtt-prefix", mqttpush.DefaultPrefix, "MQTT topic prefix")
	runCmd.Flags().StringVar(&mqttUsername, "mqtt-username", "", "MQTT username")
	runCmd.Flags().StringVar(&mqttClientID, "mqtt-client-id", "hvacctl", "MQTT client ID")
	runCmd.Flags().BoolVar(&mqttRetain, "mqtt-retain", true, "Publish retained MQTT messages")
}

// snapshotPrinter prints every thermostat evaluation.
type snapshotPrinter struct {
	hvac.NopObserver
	w io.Writer
}

func (p snapshotPrinter) ControlEvaluated(s hvac.Snapshot) {
	fmt.Fprint(p.w, hvac.FormatSnapshot(s))
}

// snapshotRecorder writes every thermostat evaluation to a recording.
type snapshotRecorder struct {
	hvac.NopObserver
	rec    *hvac.Recorder
	failed bool
}

func (r *snapshotRecorder) ControlEvaluated(s hvac.Snapshot) {
	if r.failed {
		return
	}
	if err := r.rec.Record(s); err != nil {
		logger.Error("recording stopped: %v", err)
		r.failed = true
	}
}

// statusLog stands in for the display when no link is open.
type statusLog struct {
	dec *hvac.StatusDecoder
}

func (l *statusLog) Write(p []byte) (int, error) {
	for _, b := range p {
		st, err := l.dec.DecodeByte(b)
		if err != nil {
			logger.Warn("status push: %v", err)
			continue
		}
		if st != nil {
			logger.Info("display %s=%d", st.Field, st.Value)
		}
	}
	return len(p), nil
}

// loadScenario loads a bench scenario, or the default one when path is empty.
func loadScenario(path string) (*sim.Scenario, error) {
	if path == "" {
		return sim.DefaultScenario(), nil
	}
	return sim.LoadScenario(path)
}

func runController(cmd *cobra.Command, args []string) error {
	policy, ok := hvac.ParseSensorPolicy(runSensorPolicy)
	if !ok {
		return fmt.Errorf("unknown sensor policy %q (use legacy or strict)", runSensorPolicy)
	}

	sc, err := loadScenario(runScenario)
	if err != nil {
		return err
	}
	plant, err := sc.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox := hvac.NewInbox()
	var display io.Writer = &statusLog{dec: hvac.NewStatusDecoder()}
	connInfo := "none (status pushes logged)"

	var conn Connection
	if hasConnection() {
		conn, connInfo, err = OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
		display = conn
	}

	cfg := hvac.DefaultConfig()
	cfg.Pace = runPace
	cfg.ConversionWait = runConversionWait
	cfg.SensorPolicy = policy

	ctrl, err := hvac.NewController(cfg, plant.Hardware(), inbox, display)
	if err != nil {
		return err
	}

	if runShowSnapshots {
		ctrl.AddObserver(snapshotPrinter{w: os.Stdout})
	}

	if runRecord != "" {
		f, err := os.Create(runRecord)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		ctrl.AddObserver(&snapshotRecorder{rec: hvac.NewRecorder(f)})
	}

	if mqttBroker != "" {
		pub, err := mqttpush.Connect(mqttpush.Config{
			Broker:   mqttBroker,
			Username: mqttUsername,
			Password: os.Getenv(mqttPasswordEnv),
			ClientID: mqttClientID,
			Prefix:   mqttPrefix,
			Retain:   mqttRetain,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		ctrl.AddObserver(pub)
	}

	fmt.Printf("hvacctl - Controller\n")
	fmt.Printf("Scenario: %s\n", sc.Name)
	fmt.Printf("Display link: %s\n", connInfo)
	fmt.Printf("Sensor policy: %s\n", policy)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ctrl.Run(gctx)
	})

	if len(sc.Display) > 0 {
		g.Go(func() error {
			return sc.PlayDisplay(gctx, inbox, nil)
		})
	}

	if conn != nil {
		g.Go(func() error {
			err := inbox.Pump(gctx, conn)
			if gctx.Err() == nil && (err == nil || isClosed(err)) {
				// The controller keeps running without its display.
				logger.Warn("display link closed")
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			conn.Close()
			return nil
		})
	}

	if runStatsInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(time.Duration(runStatsInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					st := ctrl.Stats()
					fmt.Print(st.String())
				}
			}
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || isClosed(err) {
		err = nil
	}

	st := ctrl.Stats()
	fmt.Printf("\n%s", st.String())
	if dropped := inbox.Dropped(); dropped > 0 {
		fmt.Printf("Inbox overflow: %d bytes dropped\n", dropped)
	}
	return err
}
