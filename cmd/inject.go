// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

var injectDuration time.Duration

var injectCmd = &cobra.Command{
	Use:   "inject <hex>",
	Short: "Advertise a raw advertisement",
	Long: `Advertise raw bytes for a while, bypassing every codec. Useful to replay
a capture or to test a receiver against a hand-made packet:

  advcast inject "02.01.1A.1B.FF.F0.FF..." --duration 2s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInject,
}

func init() {
	injectCmd.Flags().DurationVarP(&injectDuration, "duration", "d", time.Second, "How long to advertise")
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) error {
	wp := bleadv.FromHexString(strings.Join(args, ""))
	if wp.Len() == 0 {
		return fmt.Errorf("empty advertisement")
	}
	wp.Duration = injectDuration

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Controllers = nil
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Radio:   %s\n", a.connInfo)
	fmt.Printf("Packet:  %s\n", bleadv.FormatWireParam(wp))

	ctx, cancel := context.WithTimeout(signalContext(), injectDuration)
	defer cancel()

	token := a.scheduler.AddBatch([]*bleadv.WireParam{wp})
	a.scheduler.Tick(a.scheduler.Now())
	<-ctx.Done()
	a.scheduler.RemoveBatch(token)
	a.scheduler.Shutdown()

	stats := a.scheduler.Stats()
	if stats.RadioErrors > 0 {
		return fmt.Errorf("radio reported %d errors", stats.RadioErrors)
	}
	return nil
}
