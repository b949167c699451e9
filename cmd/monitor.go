// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/advcast/pkg/capture"
)

var monitorCapture bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live view of the advertisement scheduler",
	Long: `Run the configured controllers and show the scheduler live.

The view shows the advertisement on air, the pending FIFO with its removal
marks, scheduler statistics, per-controller queues and, with capture enabled,
the remotes heard nearby.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorCapture, "capture", false, "Identify advertisements heard nearby")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("capture") {
		cfg.Capture.Enabled = monitorCapture
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	quietLogging()

	ctx, cancel := context.WithCancel(signalContext())
	defer cancel()
	a.closeOnDone(ctx)

	p := tea.NewProgram(initialMonitorModel(a.driver, a.connInfo, cfg.Capture.Enabled), tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		done <- a.driver.Run(ctx, cfg.Scheduler.Tick.Duration())
	}()
	if cfg.Capture.Enabled {
		go func() {
			err := a.runCapture(ctx, func(res capture.Result) {
				p.Send(captureMsg(res))
			})
			if err != nil && ctx.Err() == nil {
				p.Send(captureErrMsg{err})
			}
		}()
	}
	if a.linkNeedsDrain() {
		go a.drainLink(ctx)
	}

	_, err = p.Run()

	cancel()
	<-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("monitor failed")
		return err
	}

	stats := a.scheduler.Stats()
	fmt.Print(stats.String())
	return nil
}
