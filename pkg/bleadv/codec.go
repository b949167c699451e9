// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Decode failures. A codec returning one of these is simply not the source
// of the packet; identification moves on to the next codec.
var (
	ErrLength       = errors.New("length mismatch")
	ErrHeader       = errors.New("header mismatch")
	ErrField        = errors.New("field check failed")
	ErrCRC          = errors.New("CRC mismatch")
	ErrSignature    = errors.New("signature mismatch")
	ErrNotSupported = errors.New("decode not supported")
)

// Codec encodes commands into advertisements for one protocol variant, and
// decodes captured advertisements of that variant.
type Codec interface {
	// ID is "<family> - <variant>", unique within a Registry
	ID() string
	Family() string
	Variant() string

	// IsSupported reports whether cmd yields at least one wire command
	IsSupported(cmd Command) bool

	// Translate maps a logical command to the wire commands of the family.
	// It has no side effects.
	Translate(cmd Command, params ControllerParams) []Command

	// Encode produces one advertisement per wire command, advancing
	// params.TxCount once per advertisement.
	Encode(cmd Command, params *ControllerParams) []*WireParam

	// Decode validates and inverts a captured advertisement. The returned
	// command has kind CmdCustom with the wire opcode and arguments.
	Decode(wp *WireParam) (Command, ControllerParams, error)

	// BLEParams returns the flags value and AD type the variant advertises with
	BLEParams() (adFlag, dataType uint8)
}

// layout is the family specific part of a codec: the packet layout behind
// the header. Implementations are the closed set fanlampV1, fanlampV2,
// zhijiaV0, zhijiaV1 and zhijiaV2.
type layout interface {
	size() int
	translate(cmd Command, params ControllerParams) []Command
	encode(buf []byte, cmd Command, params ControllerParams, seeds SeedSource)
	decode(buf []byte) (Command, ControllerParams, error)
}

// codec binds a layout to its identity, BLE parameters and header bytes
type codec struct {
	family   string
	variant  string
	adFlag   uint8
	dataType uint8
	header   []byte
	seeds    SeedSource
	layout   layout
}

func (c *codec) ID() string      { return c.family + " - " + c.variant }
func (c *codec) Family() string  { return c.family }
func (c *codec) Variant() string { return c.variant }

func (c *codec) BLEParams() (uint8, uint8) {
	return c.adFlag, c.dataType
}

// Header returns the fixed bytes preceding the layout in the vendor data
func (c *codec) Header() []byte {
	return append([]byte(nil), c.header...)
}

func (c *codec) IsSupported(cmd Command) bool {
	if cmd.Kind == CmdCustom {
		return cmd.Opcode != 0
	}
	return len(c.layout.translate(cmd, ControllerParams{})) > 0
}

func (c *codec) Translate(cmd Command, params ControllerParams) []Command {
	return c.layout.translate(cmd, params)
}

func (c *codec) Encode(cmd Command, params *ControllerParams) []*WireParam {
	cmds := []Command{cmd}
	if cmd.Kind != CmdCustom {
		cmds = c.layout.translate(cmd, *params)
	}

	packets := make([]*WireParam, 0, len(cmds))
	for _, real := range cmds {
		params.TxCount = NextTxCount(params.TxCount)
		packets = append(packets, c.encodeWire(real, *params))
	}
	return packets
}

func (c *codec) Decode(wp *WireParam) (Command, ControllerParams, error) {
	data := wp.Data()
	if len(data)-len(c.header) != c.layout.size() {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrLength, len(c.header)+c.layout.size(), len(data))
	}
	if !bytes.HasPrefix(data, c.header) {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: expected % X", ErrHeader, c.header)
	}
	// data is a private copy, the layout may unwhiten it in place
	return c.layout.decode(data[len(c.header):])
}

func mismatch(err error, what string, expected, got uint16) error {
	return fmt.Errorf("%w: %s expected 0x%04X, got 0x%04X", err, what, expected, got)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// encodeWire lays out one wire command with params as given, tx_count
// included
func (c *codec) encodeWire(real Command, params ControllerParams) *WireParam {
	wp := NewWireParam(c.adFlag, c.dataType)
	buf := wp.dataBuf()
	copy(buf, c.header)

	log.Debug().
		Str("codec", c.ID()).
		Str("id", fmt.Sprintf("0x%X", params.ID)).
		Uint8("index", params.Index).
		Uint8("tx", params.TxCount).
		Str("opcode", fmt.Sprintf("0x%02X", real.Opcode)).
		Hex("args", real.Args[:]).
		Msg("encode")

	n := len(c.header) + c.layout.size()
	c.layout.encode(buf[len(c.header):n], real, params, c.seeds)
	wp.SetDataLen(n)
	return wp
}
