// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/mouse"
)

const simInterval = 20 * time.Millisecond

var (
	simButtons      string
	simMode         string
	simResolution   int
	simMoves        int
	simStep         int
	simSeed         int64
	simParityFaults int
	simTUI          bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the bridge against a simulated mouse and SID",
	Long: `Run the complete bridge firmware logic on a simulated board.

A simulated PS/2 mouse is booted by the bridge exactly like a real one,
including the button chord read at startup:
  --buttons right    joystick (1350) mode
  --buttons left     fast analog mouse
  --buttons middle   slow analog mouse
  (none)             normal analog mouse

In text mode random movements are generated and the resulting position
counters, SID pot readings and joystick lines are printed. With --tui the
arrow keys move the mouse, 1/2/3 toggle the buttons and h/j/k/l/space are
the bridge console keys.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simButtons, "buttons", "", "Buttons held at boot (left, right, middle, joined with +)")
	simulateCmd.Flags().StringVar(&simMode, "mode", "", "Force output mode: auto, analog or joystick")
	simulateCmd.Flags().IntVar(&simResolution, "resolution", -1, "Force resolution code 0-3")
	simulateCmd.Flags().IntVar(&simMoves, "moves", 20, "Random movements to generate (text mode)")
	simulateCmd.Flags().IntVar(&simStep, "step", 5, "Largest movement per axis")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed (0 uses the clock)")
	simulateCmd.Flags().IntVar(&simParityFaults, "parity-faults", 0, "Corrupt the parity of this many frames after boot")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Use terminal UI")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	held, err := parseButtons(simButtons)
	if err != nil {
		return err
	}
	bc, err := benchConfig(simMode, simResolution)
	if err != nil {
		return err
	}
	if simStep < 1 {
		simStep = 1
	}

	b := newBench(bc, held)
	opts, err := b.boot()
	if err != nil {
		return err
	}
	b.board.Mouse.ParityFaults = simParityFaults

	if simTUI {
		return runSimulateTUI(b, held, opts)
	}

	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	fmt.Printf("Potmouse - Simulation\n")
	fmt.Printf("Held at boot: %s\n", held)
	fmt.Printf("Profile: %s, mode %s, %d counts/mm\n", opts.Profile, opts.Mode, b.bridge.Session.Resolution().CountsPerMM())
	fmt.Printf("Seed: %d\n\n", seed)

	for i := 0; i < simMoves; i++ {
		dx := rng.Intn(2*simStep+1) - simStep
		dy := rng.Intn(2*simStep+1) - simStep
		var buttons mouse.Buttons
		if rng.Intn(8) == 0 {
			buttons = mouse.Buttons(1 << rng.Intn(3))
		}

		b.board.Mouse.Move(dx, dy, byte(buttons))
		b.run(simInterval)
		fmt.Printf("move %+3d %+3d %s  ->  %s\n", dx, dy, buttons, b.describe())
	}

	fmt.Println()
	fmt.Print(b.summary())
	return nil
}
