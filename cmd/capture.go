// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/advcast/internal/config"
	"github.com/Thermoquad/advcast/internal/db"
	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/capture"
)

var (
	captureSource    string
	captureIgnoreBLE bool
	captureSnippet   bool
	captureHistory   int
	capturePrune     time.Duration
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Identify advertisements sent by physical remotes",
	Long: `Listen for advertisements and print every one a codec recognises, with the
configuration needed to emulate the remote that sent it.

Advertisements are heard through the host Bluetooth adapter, or through an
advertising bridge with --source link. Repeats of the same packet are shown
once. With a state database configured, identified packets are recorded and
--history lists the most recent ones instead of listening.`,
	RunE: runCaptureCmd,
}

func init() {
	captureCmd.Flags().StringVar(&captureSource, "source", "", "Capture source (bluetooth, link)")
	captureCmd.Flags().BoolVar(&captureIgnoreBLE, "ignore-ble", false, "Try codecs regardless of flags and AD type")
	captureCmd.Flags().BoolVar(&captureSnippet, "snippet", false, "Print a configuration snippet for every remote")
	captureCmd.Flags().IntVar(&captureHistory, "history", 0, "List the N most recent recorded captures and exit")
	captureCmd.Flags().DurationVar(&capturePrune, "prune", 0, "Delete recorded captures older than this and exit")
	rootCmd.AddCommand(captureCmd)
}

func runCaptureCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if capturePrune > 0 {
		return pruneCaptureHistory(cfg, capturePrune)
	}
	if captureHistory > 0 {
		return printCaptureHistory(cfg, captureHistory)
	}

	cfg.Capture.Enabled = true
	if captureSource != "" {
		cfg.Capture.Source = captureSource
	}
	if captureIgnoreBLE {
		cfg.Capture.IgnoreBLEParam = true
	}
	if portName != "" || wsURL != "" {
		cfg.Capture.Source = config.SourceLink
	}
	// nothing is advertised while capturing from the host adapter
	if cfg.Capture.Source != config.SourceLink {
		cfg.Radio.Driver = config.DriverLog
	}
	cfg.Controllers = nil

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Advcast - Capture\n")
	fmt.Printf("Source: %s\n", cfg.Capture.Source)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx := signalContext()
	a.closeOnDone(ctx)
	err = a.runCapture(ctx, func(res capture.Result) {
		fmt.Printf("[%s] %s rssi=%d\n", res.Time.Format("15:04:05.000"), res.Address, res.RSSI)
		fmt.Printf("Packet:  %s\n", bleadv.FormatWireParam(res.ID.Raw))
		fmt.Print(bleadv.FormatIdentification(res.ID))
		if captureSnippet {
			fmt.Print(res.ID.ConfigSnippet())
		}
		fmt.Println()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openCaptureLog(cfg *config.Config) (*db.DB, *db.CaptureLog, error) {
	if cfg.State.Path == "" {
		return nil, nil, fmt.Errorf("state.path is not configured")
	}
	database, err := db.Open(cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return database, db.NewCaptureLog(database), nil
}

func pruneCaptureHistory(cfg *config.Config, age time.Duration) error {
	database, captures, err := openCaptureLog(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := captures.Prune(time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d captures older than %s\n", n, age)
	return nil
}

func printCaptureHistory(cfg *config.Config, limit int) error {
	database, captures, err := openCaptureLog(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := captures.Recent(limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		status := "DIFF"
		if r.NoDiff {
			status = "NO DIFF"
		}
		fmt.Printf("%s  %-22s id=0x%X index=%d tx=%-3d opcode=0x%02X  %s  %s\n",
			r.Timestamp.Local().Format(time.DateTime), r.Codec,
			r.Params.ID, r.Params.Index, r.Params.TxCount, r.Opcode,
			bleadv.FormatHex(r.Raw), status)
	}
	return nil
}
