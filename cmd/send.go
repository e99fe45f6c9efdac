// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
)

var (
	sendRaw     string
	sendWait    bool
	sendTimeout int
)

var sendCmd = &cobra.Command{
	Use:   "send [id value]",
	Short: "Send one display command frame to the controller",
	Long: `Act as the display and send a single command frame.

The frame is built from a two-digit command id and a single value character,
for example "send 13 3" sends id13=3| (fan level 3). Use --raw to send an
arbitrary frame, for example --raw "id10=1|".

With --wait, the command then waits for the next status push from the
controller (ID1.val=N).

Exit codes:
  0 - Frame sent (and status push received with --wait)
  1 - Timeout reached without receiving a status push
  2 - Connection error or invalid arguments`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendRaw, "raw", "", "Send this text verbatim instead of id/value")
	sendCmd.Flags().BoolVar(&sendWait, "wait", false, "Wait for a status push after sending")
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 10, "Timeout in seconds to wait for a status push")
}

// buildFrame returns the bytes to send for the command line.
func buildFrame(args []string) ([]byte, error) {
	if sendRaw != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--raw cannot be combined with id/value arguments")
		}
		return []byte(sendRaw), nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("expected <id> <value> or --raw")
	}

	id, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil || id > 99 {
		return nil, fmt.Errorf("invalid command id %q (0-99)", args[0])
	}
	if len(args[1]) != 1 {
		return nil, fmt.Errorf("value must be a single character, got %q", args[1])
	}
	return hvac.EncodeFrame(uint8(id), args[1][0]), nil
}

func runSend(cmd *cobra.Command, args []string) error {
	frame, err := buildFrame(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("hvacctl - Send\n")
	fmt.Printf("Connection: %s\n", connInfo)

	if _, err := conn.Write(frame); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		os.Exit(2)
	}

	if parsed, err := hvac.ParseFrame(frame); err == nil {
		fmt.Printf("Sent: %s", hvac.FormatFrame(parsed))
	} else {
		fmt.Printf("Sent %q (controller will discard it: %v)\n", frame, err)
	}

	if !sendWait {
		return nil
	}

	fmt.Printf("Waiting for status push (%d seconds)...\n", sendTimeout)

	statusChan := make(chan *hvac.Status, 1)
	errChan := make(chan error, 1)

	go func() {
		decoder := hvac.NewStatusDecoder()
		buf := make([]byte, 128)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			for i := 0; i < n; i++ {
				status, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					continue
				}
				if status != nil {
					statusChan <- status
					return
				}
			}
		}
	}()

	select {
	case status := <-statusChan:
		fmt.Printf("SUCCESS: %s=%d\n", status.Field, status.Value)
		if status.Value >= hvac.SentinelNoDevice && status.Value <= hvac.SentinelUnsupported {
			fmt.Printf("  (outside sensor fault sentinel)\n")
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(sendTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No status push received within %d seconds\n", sendTimeout)
		os.Exit(1)
	}

	return nil
}
