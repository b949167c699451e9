// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/advcast/internal/script"
	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/capture"
)

var (
	runScript  string
	runCapture bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured controllers until interrupted",
	Long: `Start every configured controller and advertise their commands until
SIGINT or SIGTERM.

A Lua script given by --script (or the script setting) drives the controllers
through the advcast module. With capture enabled, advertisements sent by
physical remotes nearby are identified and logged.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runScript, "script", "", "Lua script to run against the controllers")
	runCmd.Flags().BoolVar(&runCapture, "capture", false, "Identify advertisements heard nearby")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runScript != "" {
		cfg.Script = runScript
	}
	if cmd.Flags().Changed("capture") {
		cfg.Capture.Enabled = runCapture
	}
	if len(cfg.Controllers) == 0 && !cfg.Capture.Enabled {
		return fmt.Errorf("no controllers configured in %s", configPath)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := signalContext()
	a.closeOnDone(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.driver.Run(gctx, cfg.Scheduler.Tick.Duration())
	})

	if cfg.Script != "" {
		g.Go(func() error {
			err := script.NewRunner(a.driver).RunFile(gctx, cfg.Script)
			if err != nil && gctx.Err() == nil {
				log.Error().Err(err).Msg("script failed")
			}
			return nil
		})
	}

	if cfg.Capture.Enabled {
		g.Go(func() error {
			return a.runCapture(gctx, logCapture)
		})
	}
	if a.linkNeedsDrain() {
		g.Go(func() error {
			return a.drainLink(gctx)
		})
	}

	log.Info().
		Int("controllers", len(a.driver.Controllers())).
		Str("radio", a.connInfo).
		Bool("capture", cfg.Capture.Enabled).
		Msg("advcast running")

	err = g.Wait()
	stats := a.scheduler.Stats()
	fmt.Print(stats.String())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logCapture(res capture.Result) {
	log.Info().
		Str("codec", res.ID.Codec.ID()).
		Str("address", res.Address).
		Int16("rssi", res.RSSI).
		Str("id", fmt.Sprintf("0x%X", res.ID.Params.ID)).
		Uint8("index", res.ID.Params.Index).
		Uint8("tx", res.ID.Params.TxCount).
		Str("command", res.ID.Command.String()).
		Str("raw", bleadv.FormatHex(res.Raw)).
		Bool("no_diff", res.ID.NoDiff).
		Msg("remote heard")
}
