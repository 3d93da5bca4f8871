// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benlbrm/ha-hottoh-component/internal/api"
	"github.com/benlbrm/ha-hottoh-component/internal/history"
	"github.com/benlbrm/ha-hottoh-component/internal/metrics"
	"github.com/benlbrm/ha-hottoh-component/internal/mqtt"
	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep a session open and expose it over HTTP and MQTT",
	Long: `Hold one session to the stove, reconnecting whenever the link drops, and
expose it to home automation hosts:

  - REST API and WebSocket state stream on --listen
  - Prometheus metrics on /metrics
  - MQTT state publishing and service calls when --mqtt-broker is set
  - SQLite event and snapshot history when --history-db is set`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	serveCmd.Flags().String("mqtt-topic", "hottoh", "MQTT topic prefix")
	serveCmd.Flags().String("history-db", "", "SQLite database for event history")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, connInfo, err := newSession()
	if err != nil {
		return err
	}
	log.Info("serving stove", zap.String("connection", connInfo), zap.String("listen", cfg.HTTP.Listen))

	var wg sync.WaitGroup
	start := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.Debug("stopped", zap.String("component", name))
		}()
	}

	opts := api.Options{
		Session:  s,
		Registry: metrics.NewRegistry(s),
		Presets:  cfg.Presets,
		Logger:   log,
	}

	if cfg.History.DB != "" {
		db, err := history.Open(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.History = history.NewStore(db)
		opts.Recorder = history.NewRecorder(opts.History, s, cfg.History.Interval, log)
		start("history", func() { opts.Recorder.Run(ctx) })
	}

	if cfg.MQTT.Broker != "" {
		bridge, err := mqtt.Dial(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Logger:   log,
		}, s)
		if err != nil {
			return err
		}
		start("mqtt", func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("mqtt bridge", zap.Error(err))
			}
		})
	}

	start("session", func() {
		keepConnected(ctx, s, func(state hottoh.ConnState, err error) {
			log.Info("connection state", zap.Stringer("state", state), zap.Error(err))
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.NewHandler(opts).InitRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err = <-srvErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", zap.Error(serr))
	}
	wg.Wait()
	closeSession(s)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
