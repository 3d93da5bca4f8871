// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/internal/config"
	"github.com/benlbrm/ha-hottoh-component/internal/logger"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

var (
	configFile string
	envFile    string

	// Loaded in PersistentPreRunE
	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hottoh",
	Short: "HottoH pellet stove client",
	Long: `hottoh - A client for HottoH pellet stoves.

Connects to the stove's WiFi module, a serial adapter or a WebSocket bridge,
keeps a cache of the stove's telemetry and sends commands.

Connection modes:
  TCP:       --host 192.168.4.10 [--port 5001]
  Serial:    --serial /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from HOTTOH_* environment variables, a .env file or
hottoh.yaml in the working directory or ./configs. Flags take precedence.

For WebSocket authentication, the password is read from HOTTOH_PASSWORD, or
prompted interactively if not set. The --password flag is intentionally not
provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		loaded, err := config.Load(v, configFile, envFile)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.New(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&configFile, "config", "", "Config file (default ./hottoh.yaml or ./configs/hottoh.yaml)")
	pf.StringVar(&envFile, "env-file", "", "Environment file (default .env)")

	// TCP connection flags
	pf.String("host", hottoh.DefaultHost, "Stove WiFi module address")
	pf.Int("port", hottoh.DefaultPort, "Stove WiFi module port")

	// Serial connection flags
	pf.StringP("serial", "s", "", "Serial port device")
	pf.IntP("baud", "b", hottoh.DefaultBaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	pf.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.String("username", "", "Username for HTTP Basic auth")
	pf.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Session flags
	pf.Duration("connect-timeout", hottoh.DefaultConnectTimeout, "Time allowed for connect and handshake")
	pf.Duration("disconnect-timeout", hottoh.DefaultDisconnectTimeout, "Time allowed for disconnect")
	pf.Duration("command-timeout", hottoh.DefaultCommandTimeout, "Time allowed for a command to be confirmed")
	pf.Duration("poll-interval", hottoh.DefaultPollInterval, "Telemetry poll interval (negative disables)")

	pf.String("log-level", logger.InfoLevel, "Log level: debug, info, warn, error")
	pf.String("log-format", logger.FormatConsole, "Log format: console or json")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
