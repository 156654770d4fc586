// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potmouse/pkg/config"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	verbose    bool

	// cfg is the startup configuration after flags were merged in
	cfg = config.Default()

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "potmouse",
	Short: "PS/2 to Commodore 1351 mouse bridge tools",
	Long: `Potmouse - Host tools for the PS/2 to Commodore 1351/1350 mouse bridge.

Runs the complete bridge against a simulated mouse and SID, decodes PS/2
byte streams captured from a real bridge, records them and replays them
through the analog pipeline.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the POTMOUSE_PASSWORD
environment variable, or prompted interactively if not set.

Settings may also come from a JSON5 file given with --config. Flags win
over the file.`,
	Version:           "1.0.0",
	PersistentPreRunE: loadConfig,
}

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON5 configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol traffic")
}

// loadConfig reads the configuration file and fills in every connection
// flag the user did not set.
func loadConfig(cmd *cobra.Command, args []string) error {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if configPath != "" {
		loaded, err := config.Load(afero.NewOsFs(), configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		log.WithField("path", configPath).Debug("configuration loaded")
	}

	flags := cmd.Flags()
	if flags.Changed("port") || cfg.Port == "" {
		cfg.Port = portName
	}
	if flags.Changed("baud") || cfg.Baud == 0 {
		cfg.Baud = baudRate
	}
	if flags.Changed("url") || cfg.URL == "" {
		cfg.URL = wsURL
	}
	if flags.Changed("username") || cfg.Username == "" {
		cfg.Username = wsUsername
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
