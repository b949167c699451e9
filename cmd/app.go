// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/internal/config"
	"github.com/Thermoquad/advcast/internal/db"
	"github.com/Thermoquad/advcast/pkg/advertiser"
	"github.com/Thermoquad/advcast/pkg/advlink"
	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/controller"
)

// radioDriver overrides radio.driver from the configuration
var radioDriver string

func init() {
	rootCmd.PersistentFlags().StringVar(&radioDriver, "radio", "", "Radio driver override (bluetooth, link, log)")
}

// loadConfig reads the configuration file. A missing file yields the
// defaults unless --config was given explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if !rootCmd.PersistentFlags().Changed("log-level") {
		setupLogging(cfg.Log.Level, cfg.Log.JSON || logJSON, cfg.Log.Colors)
	}

	// connection flags select the bridge
	if portName != "" || wsURL != "" {
		cfg.Radio.Driver = config.DriverLink
	}
	if radioDriver != "" {
		cfg.Radio.Driver = radioDriver
	}
	cfg.Radio.Link = linkSettings(cfg.Radio.Link)
	return cfg, nil
}

// app holds the runtime shared by the daemon style commands
type app struct {
	cfg       *config.Config
	registry  *bleadv.Registry
	radio     advertiser.Radio
	conn      Connection
	connInfo  string
	link      *advlink.Link
	db        *db.DB
	store     controller.StateStore
	scheduler *advertiser.Scheduler
	driver    *controller.Driver
}

// newApp validates cfg, opens the radio and state database and builds every
// configured controller
func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		registry: bleadv.DefaultRegistry(nil),
	}
	if err := cfg.Validate(a.registry); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	if err := a.openRadio(); err != nil {
		return nil, err
	}

	if cfg.State.Path != "" {
		database, err := db.Open(cfg.State.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = database
		a.store = db.NewControllerStore(database)
		log.Info().Str("path", cfg.State.Path).Msg("state database opened")
	}

	a.scheduler = advertiser.NewScheduler(a.radio)

	var controllers []*controller.Controller
	for _, cc := range cfg.Controllers {
		c, err := controller.New(cc.Controller(), a.registry, a.scheduler, a.store)
		if err != nil {
			a.Close()
			return nil, err
		}
		controllers = append(controllers, c)
	}

	driver, err := controller.NewDriver(a.scheduler, controllers...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.driver = driver
	return a, nil
}

func (a *app) openRadio() error {
	switch a.cfg.Radio.Driver {
	case config.DriverLog:
		a.radio = advertiser.LogRadio{}
		a.connInfo = "log only"

	case config.DriverLink:
		conn, info, err := OpenConnection(a.cfg.Radio.Link)
		if err != nil {
			return err
		}
		a.conn = conn
		a.connInfo = info
		a.link = advlink.NewLink(conn)
		a.radio = advertiser.NewLinkRadio(a.link)

	default:
		radio, err := advertiser.NewBluetoothRadio(hostAdapter(a.cfg.Radio.Adapter), a.cfg.Radio.Interval.Duration())
		if err != nil {
			return err
		}
		a.radio = radio
		a.connInfo = "Bluetooth: host adapter"
	}
	log.Info().Str("radio", a.connInfo).Msg("radio ready")
	return nil
}

// Close releases the bridge connection and state database
func (a *app) Close() {
	if a.conn != nil {
		a.conn.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	return ctx
}
