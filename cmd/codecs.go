// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

var codecsCmd = &cobra.Command{
	Use:   "codecs [family]",
	Short: "List the supported codecs and command kinds",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCodecs,
}

func init() {
	rootCmd.AddCommand(codecsCmd)
}

func runCodecs(cmd *cobra.Command, args []string) error {
	registry := bleadv.DefaultRegistry(nil)
	family := ""
	if len(args) == 1 {
		family = args[0]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODEC\tFLAG\tAD TYPE\tCOMMANDS")
	for _, id := range registry.IDs(family) {
		c, err := registry.Lookup(id)
		if err != nil {
			return err
		}
		adFlag, dataType := c.BLEParams()

		var kinds []string
		for _, k := range bleadv.CommandKinds() {
			cmd := bleadv.NewCommand(k)
			if k == bleadv.CmdCustom {
				cmd.Opcode = 1
			}
			if k != bleadv.CmdNoOp && c.IsSupported(cmd) {
				kinds = append(kinds, k.String())
			}
		}
		fmt.Fprintf(w, "%s\t0x%02X\t0x%02X\t%s\n", id, adFlag, dataType, strings.Join(kinds, " "))
	}
	return w.Flush()
}
