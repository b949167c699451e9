// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"fmt"
	"math/rand"
	"sort"
)

// CommandKind identifies a logical remote control action
type CommandKind uint8

// Command kinds
const (
	CmdNoOp              CommandKind = 0
	CmdPair              CommandKind = 1
	CmdUnpair            CommandKind = 2
	CmdCustom            CommandKind = 3
	CmdLightOn           CommandKind = 13
	CmdLightOff          CommandKind = 14
	CmdLightDim          CommandKind = 15
	CmdLightCCT          CommandKind = 16
	CmdLightWhiteColor   CommandKind = 17
	CmdLightSecondaryOn  CommandKind = 18
	CmdLightSecondaryOff CommandKind = 19
	CmdFanOn             CommandKind = 30
	CmdFanOff            CommandKind = 31
	CmdFanSpeed          CommandKind = 32
	CmdFanOnOffSpeed     CommandKind = 33
	CmdFanDirection      CommandKind = 34
	CmdFanOscillate      CommandKind = 35
)

var commandKindNames = map[CommandKind]string{
	CmdNoOp:              "noop",
	CmdPair:              "pair",
	CmdUnpair:            "unpair",
	CmdCustom:            "custom",
	CmdLightOn:           "light_on",
	CmdLightOff:          "light_off",
	CmdLightDim:          "light_dim",
	CmdLightCCT:          "light_cct",
	CmdLightWhiteColor:   "light_wcolor",
	CmdLightSecondaryOn:  "light_sec_on",
	CmdLightSecondaryOff: "light_sec_off",
	CmdFanOn:             "fan_on",
	CmdFanOff:            "fan_off",
	CmdFanSpeed:          "fan_speed",
	CmdFanOnOffSpeed:     "fan_onoff_speed",
	CmdFanDirection:      "fan_dir",
	CmdFanOscillate:      "fan_osc",
}

// String returns the snake_case name of the kind
func (k CommandKind) String() string {
	if name, ok := commandKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseCommandKind returns the kind named s
func ParseCommandKind(s string) (CommandKind, error) {
	for k, name := range commandKindNames {
		if name == s {
			return k, nil
		}
	}
	return CmdNoOp, fmt.Errorf("unknown command kind: %q", s)
}

// CommandKinds lists every named kind in numeric order
func CommandKinds() []CommandKind {
	kinds := make([]CommandKind, 0, len(commandKindNames))
	for k := range commandKindNames {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ArgCount is the number of argument bytes carried by a Command
const ArgCount = 5

// Command is a logical action. For CmdCustom, Opcode and Args are sent as-is;
// for every other kind the codec's translation fills them.
type Command struct {
	Kind   CommandKind
	Opcode uint8
	Args   [ArgCount]uint8
}

// NewCommand builds a command of the given kind. Extra args are dropped.
func NewCommand(kind CommandKind, args ...uint8) Command {
	cmd := Command{Kind: kind}
	copy(cmd.Args[:], args)
	return cmd
}

// NewCustomCommand builds a raw opcode command that bypasses translation
func NewCustomCommand(opcode uint8, args ...uint8) Command {
	cmd := NewCommand(CmdCustom, args...)
	cmd.Opcode = opcode
	return cmd
}

// String formats the command for logs
func (c Command) String() string {
	return fmt.Sprintf("%s opcode=0x%02X args=[%d,%d,%d,%d,%d]",
		c.Kind, c.Opcode, c.Args[0], c.Args[1], c.Args[2], c.Args[3], c.Args[4])
}

// ControllerParams is the identity and rolling state of one emulated remote
type ControllerParams struct {
	ID      uint32
	Index   uint8
	TxCount uint8
	Seed    uint16 // 0 draws a fresh seed per packet
}

// NextTxCount returns the counter value following tx, wrapping to 1 at TxCountCeiling
func NextTxCount(tx uint8) uint8 {
	next := int(tx) + 1
	if next >= TxCountCeiling {
		return 1
	}
	return uint8(next)
}

// SeedSource provides packet randomization seeds
type SeedSource interface {
	Seed() uint16
}

// SeedFunc adapts a function to SeedSource
type SeedFunc func() uint16

// Seed implements SeedSource
func (f SeedFunc) Seed() uint16 {
	return f()
}

// RandomSeeds draws seeds from math/rand
var RandomSeeds SeedSource = SeedFunc(func() uint16 {
	return uint16(rand.Intn(0x10000))
})

// FixedSeed always returns the same seed
func FixedSeed(seed uint16) SeedSource {
	return SeedFunc(func() uint16 { return seed })
}
