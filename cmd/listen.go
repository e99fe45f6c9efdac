// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/logger"
)

// readErrorBackoff is the pause after a read error that does not close the link.
var readErrorBackoff = 100 * time.Millisecond

var (
	listenShowAll       bool
	listenStatus        bool
	listenStatsInterval int
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Decode display frames or status pushes on the link",
	Long: `Continuously decode traffic on the display link.

By default the link is treated as the display side: command frames (idNN=V|)
are parsed exactly as the controller parses them and applied to a shadow
controller state, so rejected values and unknown ids are reported. Malformed
and oversized frames are always shown.

With --status the link is treated as the controller side and status pushes
(ID1.val=N FF FF FF) are decoded instead.

Statistics are printed at the configured interval.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&listenShowAll, "show-all", false, "Show dispatched frames (not just discarded ones)")
	listenCmd.Flags().BoolVar(&listenStatus, "status", false, "Decode controller status pushes instead of display frames")
	listenCmd.Flags().IntVar(&listenStatsInterval, "stats-interval", 10, "Statistics update interval (seconds, 0 disables)")
}

var (
	discardColor = color.New(color.FgRed, color.Bold)
	rejectColor  = color.New(color.FgYellow, color.Bold)
	statusColor  = color.New(color.FgGreen, color.Bold)
)

// singleByte hands the parser one byte at a time, so the residual drain
// after a frame never swallows bytes still to be shown.
type singleByte struct {
	b     byte
	ready bool
}

func (s *singleByte) TryReadByte() (byte, bool) {
	if !s.ready {
		return 0, false
	}
	s.ready = false
	return s.b, true
}

// frameMonitor parses display frames and applies them to a shadow state.
type frameMonitor struct {
	parser  *hvac.Parser
	state   hvac.State
	stats   *hvac.Statistics
	showAll bool
}

func newFrameMonitor(showAll bool) *frameMonitor {
	return &frameMonitor{
		parser:  hvac.NewParser(),
		state:   hvac.NewState(),
		stats:   hvac.NewStatistics(),
		showAll: showAll,
	}
}

func (m *frameMonitor) feed(b byte) {
	src := &singleByte{b: b, ready: true}
	frame, err := m.parser.Poll(src)
	if err != nil {
		m.stats.RecordFrame(nil, err, false)
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Printf("[%s] %s %v\n", timestamp, discardColor.Sprint("DISCARDED:"), err)
		return
	}
	if frame == nil {
		return
	}

	handled := hvac.Dispatch(&m.state, frame.Command())
	m.stats.RecordFrame(frame, nil, handled)

	switch {
	case !handled:
		fmt.Printf("%s %s", rejectColor.Sprint("IGNORED:"), hvac.FormatFrame(frame))
	case m.showAll:
		fmt.Print(hvac.FormatFrame(frame))
	}
}

func runListen(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("hvacctl - Listen\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if listenStatus {
		fmt.Printf("Mode: Status pushes\n")
	} else if listenShowAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Discarded and ignored frames only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	monitor := newFrameMonitor(listenShowAll)
	statusDecoder := hvac.NewStatusDecoder()

	// Channel for non-blocking reads
	linkBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go readLoop(conn, linkBuf, readErr)

	var statsC <-chan time.Time
	if listenStatsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(listenStatsInterval) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case data := <-linkBuf:
			for _, b := range data {
				if !listenStatus {
					monitor.feed(b)
					continue
				}
				status, err := statusDecoder.DecodeByte(b)
				if err != nil {
					fmt.Printf("%s %v\n", discardColor.Sprint("BAD STATUS:"), err)
					continue
				}
				if status != nil {
					monitor.stats.StatusPushes++
					fmt.Printf("[%s] %s %s=%d\n", status.Timestamp.Format("15:04:05.000"),
						statusColor.Sprint("STATUS:"), status.Field, status.Value)
				}
			}

		case err := <-readErr:
			logger.Info("connection closed: %v", err)
			fmt.Println()
			fmt.Print(monitor.stats.String())
			return nil

		case <-statsC:
			fmt.Println()
			fmt.Print(monitor.stats.String())
			fmt.Println()
		}
	}
}

// readLoop copies link input into out until the link closes, then sends the
// closing error on closed. Other read errors are logged and retried after
// readErrorBackoff.
func readLoop(r io.Reader, out chan<- []byte, closed chan<- error) {
	buf := make([]byte, 128)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- data
		}
		if err == nil {
			continue
		}
		if isClosed(err) {
			closed <- err
			return
		}
		logger.Warn("read error: %v", err)
		time.Sleep(readErrorBackoff)
	}
}
