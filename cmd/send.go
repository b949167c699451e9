// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sendHold time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <controller> <kind> [args...]",
	Short: "Send one command from a configured controller",
	Long: `Queue a command on a configured controller, advertise it and exit.

The last packet stays on air for --hold after the queue drains:

  advcast send "Living Room Fan" fan_onoff_speed 3 6
  advcast send Lamp pair --hold 5s`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendHold, "hold", time.Second, "How long the last packet stays on air")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := parseCommand(args[1:])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	c, ok := a.driver.Controller(args[0])
	if !ok {
		return fmt.Errorf("unknown controller %q", args[0])
	}
	if !c.Enqueue(command) {
		return fmt.Errorf("%s (%s) does not support %s", c.Name(), c.Codec().ID(), command.Kind)
	}

	ctx, cancel := context.WithCancel(signalContext())
	defer cancel()
	a.closeOnDone(ctx)

	done := make(chan error, 1)
	go func() {
		done <- a.driver.Run(ctx, cfg.Scheduler.Tick.Duration())
	}()

	ticker := time.NewTicker(cfg.Scheduler.Tick.Duration())
	defer ticker.Stop()
	var drained time.Time
	for drained.IsZero() || time.Since(drained) < sendHold {
		select {
		case <-ctx.Done():
			<-done
			if drained.IsZero() {
				return fmt.Errorf("interrupted before %s was advertised", command.Kind)
			}
			return nil
		case <-ticker.C:
		}
		if drained.IsZero() && c.Pending() == 0 && c.Advertising() {
			drained = time.Now()
		}
	}

	cancel()
	<-done
	log.Info().Str("controller", c.Name()).Stringer("command", command.Kind).Msg("sent")
	return nil
}
