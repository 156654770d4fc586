// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid movement packet",
	Long: `Wait for a valid PS/2 movement packet on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a complete
three byte movement packet with the always-one bit set and no overflow.
Bytes that cannot start a packet are skipped.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Move the mouse while the test runs: an idle mouse sends nothing.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Potmouse - Packet Test\n")
	fmt.Printf("Connection: %s\n", conn)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for a movement packet...\n\n")

	stream := newByteStream(conn)
	var (
		got  *mouse.RawFrame
		sink positionSink
	)
	router := bridge.NewRouter(stream, &sink)
	router.OnPacket = func(f mouse.RawFrame, m mouse.Movement) {
		if got == nil && len(mouse.ValidateFrame(f)) == 0 {
			got = &f
		}
	}

	stream.start()
	timeout := time.After(time.Duration(packetTestTimeout) * time.Second)
	for {
		select {
		case <-stream.ready:
			stream.poll(router)
			if got == nil {
				continue
			}
			if skipped := router.Statistics().DroppedBytes; skipped > 0 {
				fmt.Printf("(skipped %d bytes before sync)\n", skipped)
			}
			m := mouse.Decode(*got)
			fmt.Printf("SUCCESS: Received valid packet\n")
			fmt.Printf("  Bytes: %02X %02X %02X\n", got[0], got[1], got[2])
			fmt.Printf("  Buttons: %s\n", m.Buttons)
			fmt.Printf("  Delta: dx=%d dy=%d\n", m.DX, m.DY)
			os.Exit(0)

		case err := <-stream.errs:
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-timeout:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
			os.Exit(1)
		}
	}
}
