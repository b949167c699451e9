// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// advcast - BLE advertisement remote-control emulator
//
// Emulates the 2.4 GHz remotes of FanLamp and Zhijia ceiling fans and lamps
// by broadcasting their advertisement packets, and identifies the packets
// sent by physical remotes.

package main

import (
	"os"

	"github.com/Thermoquad/advcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
