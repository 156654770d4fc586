// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Potmouse - PS/2 to Commodore 1351 mouse bridge
//
// Host tools for the bridge: a full simulation of the bridge against a
// virtual mouse and SID, plus decoding, recording and replay of PS/2 byte
// streams captured from real hardware.

package main

import (
	"os"

	"github.com/Thermoquad/potmouse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
