// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
)

var replayModeChanges bool

var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Print a recorded controller session",
	Long: `Decode a CBOR recording written by "run --record" and print every
thermostat evaluation in order.

Use --mode-changes to print only the evaluations where the climate mode
changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayModeChanges, "mode-changes", false, "Only print evaluations that changed the mode")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	var (
		count   int
		shown   int
		last    hvac.Mode
		started bool
	)
	modes := make(map[hvac.Mode]int)

	err = hvac.ReadRecording(f, func(s hvac.Snapshot) error {
		count++
		modes[s.Mode]++
		changed := !started || s.Mode != last
		started = true
		last = s.Mode

		if replayModeChanges && !changed {
			return nil
		}
		shown++
		fmt.Print(hvac.FormatSnapshot(s))
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%d evaluations (%d shown)\n", count, shown)
	for _, m := range []hvac.Mode{hvac.ModeIdle, hvac.ModeHeating, hvac.ModeCooling} {
		fmt.Printf("  %-8s %d\n", m.String()+":", modes[m])
	}
	return nil
}
