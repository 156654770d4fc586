// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display PS/2 movement packets in human-readable format",
	Long: `Continuously decode and display PS/2 mouse packets as they arrive.

The connection carries the raw bytes received from the mouse. Every packet
is shown with its bytes, the decoded buttons and deltas, and the pot
counters and pulse delays a C1351 would output after it.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Potmouse - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", conn)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stream := newByteStream(conn)
	var frame mouse.RawFrame
	sink := &positionSink{
		zero: cfg.ZeroPoint,
		onMove: func(p *positionSink) {
			fmt.Printf("[%s] %s  %s\n", time.Now().Format("15:04:05.000"), mouse.FormatFrame(frame), p)
		},
	}
	router := bridge.NewRouter(stream, sink)
	router.OnPacket = func(f mouse.RawFrame, m mouse.Movement) { frame = f }

	stream.start()
	var lost uint32
	for {
		select {
		case <-stream.ready:
			stream.poll(router)
			if o := stream.Overflows(); o != lost {
				log.WithField("bytes", o-lost).Warn("receive queue overflow")
				lost = o
			}
		case err := <-stream.errs:
			stream.poll(router)
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				log.Info("connection closed")
				fmt.Print(router.Statistics().String())
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}
