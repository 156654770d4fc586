// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/mouse"
	"github.com/Thermoquad/potmouse/pkg/trace"
)

var (
	recordOutput   string
	recordDuration int
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture movement packets into a trace file",
	Long: `Record every movement packet received on the connection into a CBOR
trace file, with the time it arrived. The trace can be replayed later with
the replay command.

Recording stops after --duration seconds, when the connection closes or on
Ctrl+C.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "Trace file to write")
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Stop after this many seconds (0 records until interrupted)")
	recordCmd.MarkFlagRequired("output")
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	w, err := trace.Create(afero.NewOsFs(), recordOutput, conn.String())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recordDuration)*time.Second)
		defer cancel()
	}

	fmt.Printf("Potmouse - Record\n")
	fmt.Printf("Connection: %s\n", conn)
	fmt.Printf("Output: %s\n", recordOutput)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	start := time.Now()
	stream := newByteStream(conn)
	router := bridge.NewRouter(stream, &positionSink{zero: cfg.ZeroPoint})
	var writeErr error
	router.OnPacket = func(f mouse.RawFrame, m mouse.Movement) {
		if writeErr != nil {
			return
		}
		writeErr = w.Write(f, time.Since(start))
		log.WithField("packet", mouse.FormatFrame(f)).Debug("recorded")
	}

	stream.start()
	err = recordLoop(ctx, stream, router)
	if writeErr != nil {
		err = writeErr
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}

	fmt.Printf("\nRecorded %d packets in %s\n", w.Count(), time.Since(start).Round(time.Millisecond))
	fmt.Print(router.Statistics().String())
	return err
}

func recordLoop(ctx context.Context, stream *byteStream, router *bridge.Router) error {
	for {
		select {
		case <-stream.ready:
			stream.poll(router)
		case err := <-stream.errs:
			stream.poll(router)
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		case <-ctx.Done():
			return nil
		}
	}
}
