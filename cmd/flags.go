// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// hexIDValue is a transmitter id accepting decimal or 0x-prefixed input
type hexIDValue uint32

var _ pflag.Value = (*hexIDValue)(nil)

func (v *hexIDValue) String() string { return fmt.Sprintf("0x%X", uint32(*v)) }
func (v *hexIDValue) Type() string   { return "id" }

func (v *hexIDValue) Set(s string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*v = hexIDValue(n)
	return nil
}

// codecValue names a registry codec, validated on Set
type codecValue struct {
	registry *bleadv.Registry
	id       string
}

var _ pflag.Value = (*codecValue)(nil)

func (v *codecValue) String() string { return v.id }
func (v *codecValue) Type() string   { return "codec" }

func (v *codecValue) Set(s string) error {
	if _, err := v.registry.Lookup(s); err != nil {
		return fmt.Errorf("%w (see 'advcast codecs')", err)
	}
	v.id = s
	return nil
}

// parseByte reads a decimal or 0x-prefixed byte
func parseByte(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return uint8(n), nil
}

// parseCommand builds a command from "<kind> [args...]". Custom commands
// take the opcode as their first argument.
func parseCommand(args []string) (bleadv.Command, error) {
	if len(args) == 0 {
		return bleadv.Command{}, fmt.Errorf("missing command kind")
	}
	kind, err := bleadv.ParseCommandKind(args[0])
	if err != nil {
		return bleadv.Command{}, err
	}

	values := make([]uint8, 0, len(args)-1)
	for _, a := range args[1:] {
		b, err := parseByte(a)
		if err != nil {
			return bleadv.Command{}, err
		}
		values = append(values, b)
	}

	if kind == bleadv.CmdCustom {
		if len(values) == 0 {
			return bleadv.Command{}, fmt.Errorf("custom needs an opcode")
		}
		return bleadv.NewCustomCommand(values[0], values[1:]...), nil
	}
	if len(values) > bleadv.ArgCount {
		return bleadv.Command{}, fmt.Errorf("at most %d arguments", bleadv.ArgCount)
	}
	return bleadv.NewCommand(kind, values...), nil
}
