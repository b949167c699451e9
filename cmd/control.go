// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving the configured controllers",
	Long: `Drive the configured controllers from an interactive terminal UI.

Features:
  - Controller list with codec, transmitter id and queue depth
  - Command picker limited to what the selected codec supports
  - Live scheduler state and the advertisement on air
  - Statistics and event log

Tab cycles between the controller list, the command list and the argument
field. Enter sends the selected command with the typed arguments.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Controllers) == 0 {
		return fmt.Errorf("no controllers configured in %s", configPath)
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

	done := make(chan error, 1)
	go func() {
		done <- a.driver.Run(ctx, cfg.Scheduler.Tick.Duration())
	}()
	if a.link != nil {
		go a.drainLink(ctx)
	}

	p := tea.NewProgram(initialControlModel(a.driver, a.connInfo), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()

	cancel()
	<-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := a.scheduler.Stats()
	fmt.Print(stats.String())
	return nil
}
