// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/mouse"
	"github.com/Thermoquad/potmouse/pkg/trace"
)

// replaySettle covers one packet on the wire plus a full SID cycle.
const replaySettle = 5 * time.Millisecond

var (
	replayInput string
	replayMode  string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded trace through the simulated bridge",
	Long: `Feed the packets of a trace file to a simulated mouse, with their
original timing, and show what the bridge outputs for each: the position
counters, the pot values measured by the simulated SID and the joystick
lines.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayInput, "input", "i", "", "Trace file to replay")
	replayCmd.Flags().StringVar(&replayMode, "mode", "", "Output mode: analog or joystick (default from config)")
	replayCmd.MarkFlagRequired("input")
}

func runReplay(cmd *cobra.Command, args []string) error {
	r, err := trace.Open(afero.NewOsFs(), replayInput)
	if err != nil {
		return err
	}
	defer r.Close()

	bc, err := benchConfig(replayMode, -1)
	if err != nil {
		return err
	}

	hdr := r.Header()
	fmt.Printf("Potmouse - Replay\n")
	fmt.Printf("Trace: %s (recorded %s from %s)\n\n", replayInput, hdr.Created.Local().Format(time.DateTime), hdr.Source)

	b := newBench(bc, 0)
	opts, err := b.boot()
	if err != nil {
		return err
	}
	fmt.Printf("Bridge booted in %s, mode %s\n\n", b.now().Round(time.Millisecond), opts.Mode)

	base := b.now()
	count := 0
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if wait := base + ev.Offset - b.now(); wait > 0 {
			b.run(wait)
		}
		b.board.Mouse.Inject(ev.Raw[:]...)
		b.run(replaySettle)
		count++

		fmt.Printf("[%10s] %s  %s\n", ev.Offset.Round(time.Millisecond), mouse.FormatFrame(ev.Raw), b.describe())
	}

	fmt.Printf("\nReplayed %d packets\n", count)
	fmt.Print(b.summary())
	return nil
}
