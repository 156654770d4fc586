// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed packets and errors",
	Long: `Track packet errors, lost synchronisation and anomalous movement with statistics.

This command validates each packet and detects:
  - Packets whose first byte lacks the always-one bit
  - Bytes dropped while resynchronising on a packet boundary
  - X and Y overflow flags
  - Implausibly large deltas
  - Statistics and trends (packet rate, error rate, button changes)

By default, only errors are displayed. Use --show-all to display valid packets too.

Packets are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn)
	}
	return runTextMode(conn)
}

// syncTracker splits the bytes the router dropped into those skipped before
// the first packet and those lost afterwards.
type syncTracker struct {
	router  *bridge.Router
	synced  bool
	dropped uint64
}

// packet returns, for a packet just forwarded, whether it is the first one
// and how many bytes were dropped since the previous packet.
func (s *syncTracker) packet() (first bool, dropped uint64) {
	total := s.router.Statistics().DroppedBytes
	dropped = total - s.dropped
	s.dropped = total
	if !s.synced {
		s.synced = true
		return true, dropped
	}
	return false, dropped
}

// printDropped prints bytes lost between packets in highlighted format
func printDropped(n uint64) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mSYNC LOST:\033[0m dropped %d bytes\n\n", timestamp, n)
}

// printValidationErrors prints validation errors for a packet
func printValidationErrors(f mouse.RawFrame, errs []mouse.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %02X %02X %02X\n", timestamp, f[0], f[1], f[2])
	for i, err := range errs {
		switch err.Type {
		case mouse.AnomalySyncBit:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case mouse.AnomalyXOverflow, mouse.AnomalyYOverflow:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			fmt.Printf("    Delta saturated, movement lost\n")
		case mouse.AnomalyLargeDelta:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Printf("  Decoded: %s\n", mouse.FormatMovement(mouse.Decode(f)))
	fmt.Printf("  >>> PACKET FLAGGED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection) error {
	m := initialModel(conn.String(), statsInterval, showAll)
	p := tea.NewProgram(m)

	stream := newByteStream(conn)
	router := bridge.NewRouter(stream, &positionSink{zero: cfg.ZeroPoint})
	tracker := &syncTracker{router: router}
	router.OnPacket = func(f mouse.RawFrame, mv mouse.Movement) {
		first, dropped := tracker.packet()
		if first {
			p.Send(syncMsg{invalidBytes: int(dropped)})
			dropped = 0
		}
		p.Send(packetMsg{
			frame:            f,
			movement:         mv,
			dropped:          dropped,
			validationErrors: mouse.ValidateFrame(f),
		})
	}

	// Stream consumer goroutine
	go func() {
		stream.start()
		for {
			select {
			case <-stream.ready:
				stream.poll(router)
			case err := <-stream.errs:
				stream.poll(router)
				p.Send(connectionClosedMsg{err: err})
				return
			}
		}
	}()

	// Run TUI
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection) error {
	fmt.Printf("Potmouse - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", conn)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stream := newByteStream(conn)
	sink := &positionSink{zero: cfg.ZeroPoint}
	router := bridge.NewRouter(stream, sink)
	tracker := &syncTracker{router: router}
	router.OnPacket = func(f mouse.RawFrame, mv mouse.Movement) {
		first, dropped := tracker.packet()
		switch {
		case first && dropped > 0:
			fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", dropped)
		case first:
			fmt.Printf("[SYNC] Synchronized\n\n")
		case dropped > 0:
			printDropped(dropped)
		}

		if errs := mouse.ValidateFrame(f); len(errs) > 0 {
			printValidationErrors(f, errs)
		} else if showAll {
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), mouse.FormatFrame(f))
		}
	}

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	stream.start()
	for {
		select {
		case <-stream.ready:
			stream.poll(router)

		case err := <-stream.errs:
			stream.poll(router)
			fmt.Println()
			fmt.Print(router.Statistics().String())
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)

		case <-statsTicker.C:
			// Print statistics
			fmt.Println()
			fmt.Print(router.Statistics().String())
			fmt.Printf("Position:        %s\n", sink)
			fmt.Println()
		}
	}
}
