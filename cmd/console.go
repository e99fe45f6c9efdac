// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/logger"
	"github.com/HWHardsoft/HVAC-car-control/pkg/sim"
)

var (
	consoleScenario     string
	consoleSensorPolicy string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI driving the controller like the touch display",
	Long: `Run the controller against the simulated plant inside a terminal UI.

The console plays the role of the touch display:
  - Preset commands (vents, fan levels, setpoints, AC, HVAC power)
  - Raw frame entry for malformed or unknown frames
  - Live controller state, outputs and sensor readings
  - Outside temperature adjustment (+/-) and sensor fault injection (f)
  - Frame statistics and event logging

If --port or --url is given, frames from the real display are merged into
the controller inbox and status pushes are also sent to the link. The link
reconnects automatically when lost.

Tab switches between the preset list and the raw frame input.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleScenario, "scenario", "", "Bench scenario YAML file")
	consoleCmd.Flags().StringVar(&consoleSensorPolicy, "sensor-policy", "legacy", "Outside sensor fault handling (legacy, strict)")
}

// linkManager owns the optional display link and its reconnection
type linkManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	inbox    *hvac.Inbox
}

func (lm *linkManager) getConn() Connection {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.conn
}

func (lm *linkManager) setConn(conn Connection, connInfo string) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.conn = conn
	lm.connInfo = connInfo
}

// Write forwards status pushes to the link. Without a link, or while it is
// down, pushes are dropped.
func (lm *linkManager) Write(p []byte) (int, error) {
	conn := lm.getConn()
	if conn == nil {
		return len(p), nil
	}
	return conn.Write(p)
}

// pumpLoop copies link input into the inbox, reconnecting when the link drops
func (lm *linkManager) pumpLoop(ctx context.Context) {
	for {
		conn := lm.getConn()
		if conn == nil {
			return
		}

		err := lm.inbox.Pump(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !isClosed(err) {
			logger.Warn("display link: %v", err)
		}

		lm.p.Send(linkLostMsg{})
		if !lm.reconnect(ctx) {
			return
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (lm *linkManager) reconnect(ctx context.Context) bool {
	if conn := lm.getConn(); conn != nil {
		conn.Close()
	}
	lm.setConn(nil, "")

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			lm.setConn(conn, connInfo)
			lm.p.Send(linkRestoredMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// consoleFeed collects controller events and hands them to the TUI in
// batches, so the scheduler goroutine never blocks on the UI.
type consoleFeed struct {
	hvac.NopObserver
	events chan consoleEvent
}

func newConsoleFeed() *consoleFeed {
	return &consoleFeed{events: make(chan consoleEvent, 256)}
}

func (f *consoleFeed) push(ev consoleEvent) {
	select {
	case f.events <- ev:
	default:
	}
}

func (f *consoleFeed) FrameReceived(frame *hvac.Frame, err error, handled bool) {
	switch {
	case err != nil:
		f.push(consoleEvent{message: fmt.Sprintf("Frame discarded: %v", err), isError: true})
	case !handled:
		f.push(consoleEvent{message: "Frame ignored: " + strings.TrimSpace(hvac.FormatFrame(frame)), isError: true})
	default:
		f.push(consoleEvent{message: strings.TrimSpace(hvac.FormatFrame(frame))})
	}
}

func (f *consoleFeed) StatusPushed(r hvac.Reading) {
	f.push(consoleEvent{status: &r})
}

func (f *consoleFeed) ControlEvaluated(s hvac.Snapshot) {
	f.push(consoleEvent{snapshot: &s})
}

// Write receives log lines while the TUI owns the terminal.
func (f *consoleFeed) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if i := strings.Index(line, "["); i > 0 {
		line = line[i:]
	}
	isError := strings.HasPrefix(line, "[ERROR]") || strings.HasPrefix(line, "[WARN]")
	f.push(consoleEvent{message: line, isError: isError})
	return len(p), nil
}

// batchLoop sends queued events to the TUI at a fixed rate
func (f *consoleFeed) batchLoop(ctx context.Context, p *tea.Program) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var batch consoleBatchMsg
		drainLoop:
			for {
				select {
				case ev := <-f.events:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}
			if len(batch.events) > 0 {
				p.Send(batch)
			}
		}
	}
}

func runConsole(cmd *cobra.Command, args []string) error {
	policy, ok := hvac.ParseSensorPolicy(consoleSensorPolicy)
	if !ok {
		return fmt.Errorf("unknown sensor policy %q (use legacy or strict)", consoleSensorPolicy)
	}

	sc, err := loadScenario(consoleScenario)
	if err != nil {
		return err
	}
	plant, err := sc.Build()
	if err != nil {
		return err
	}

	inbox := hvac.NewInbox()
	lm := &linkManager{inbox: inbox}
	connInfo := "simulated display"
	if hasConnection() {
		conn, info, err := OpenConnection()
		if err != nil {
			return err
		}
		lm.setConn(conn, info)
		connInfo = info
	}

	cfg := hvac.DefaultConfig()
	cfg.SensorPolicy = policy
	ctrl, err := hvac.NewController(cfg, plant.Hardware(), inbox, lm)
	if err != nil {
		return err
	}

	feed := newConsoleFeed()
	ctrl.AddObserver(feed)

	// The TUI owns the terminal; route the log into the event panel
	logger.SetOutput(feed)
	defer logger.SetOutput(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := initialConsoleModel(consoleSession{
		inbox:    inbox,
		ctrl:     ctrl,
		plant:    plant,
		scenario: sc.Name,
		connInfo: connInfo,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	lm.p = p

	go feed.batchLoop(ctx, p)
	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("controller stopped: %v", err)
		}
	}()
	if len(sc.Display) > 0 {
		go sc.PlayDisplay(ctx, inbox, nil)
	}
	if lm.getConn() != nil {
		go lm.pumpLoop(ctx)
	}

	_, runErr := p.Run()
	cancel()
	if conn := lm.getConn(); conn != nil {
		conn.Close()
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}

	st := ctrl.Stats()
	fmt.Print(st.String())
	return nil
}

// consoleSession is what the TUI needs to drive the running controller.
type consoleSession struct {
	inbox    *hvac.Inbox
	ctrl     *hvac.Controller
	plant    *sim.Plant
	scenario string
	connInfo string
}
