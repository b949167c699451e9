// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

var decodeIgnoreBLE bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Identify a captured advertisement",
	Long: `Try every codec on a captured advertisement and print the command and
controller parameters it carries, with a configuration snippet to emulate
the remote that sent it.

The advertisement is given as a hex dump, with or without separators:

  advcast decode "02.01.19.1B.16.F0.08.10.80..."`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeIgnoreBLE, "ignore-ble", false, "Try codecs regardless of flags and AD type")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	registry := bleadv.DefaultRegistry(nil)
	wp := bleadv.FromHexString(strings.Join(args, ""))

	fmt.Printf("Packet:  %s\n", bleadv.FormatWireParam(wp))
	id, ok := registry.Identify(wp, decodeIgnoreBLE || !wp.HasADFlag())
	if !ok {
		return fmt.Errorf("no codec recognised the advertisement")
	}

	fmt.Print(bleadv.FormatIdentification(id))
	fmt.Println()
	fmt.Print(id.ConfigSnippet())
	return nil
}
