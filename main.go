// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 HWHardsoft

package main

import (
	"os"

	"github.com/HWHardsoft/HVAC-car-control/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
