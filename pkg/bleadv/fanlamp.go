// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FanLamp v1 packet sizes
const (
	fanlampV1DataLen = 14 // cmd..crc16
	fanlampV1CodeLen = 24
	fanlampV2CodeLen = 24
)

var fanlampV1Prefix = []byte{0xAA, 0x98, 0x43, 0xAF, 0x0B, 0x46, 0x46, 0x46}
var fanlampV2Prefix = []byte{0x10, 0x80, 0x00}

// fanlampTranslate maps a logical command to the opcode shared by every
// FanLamp variant. Arguments are filled by the variant.
func fanlampTranslate(cmd Command) (Command, bool) {
	real := Command{Kind: cmd.Kind}
	switch cmd.Kind {
	case CmdPair:
		real.Opcode = fanlampOpPair
	case CmdUnpair:
		real.Opcode = fanlampOpUnpair
	case CmdLightOn:
		real.Opcode = fanlampOpLightOn
	case CmdLightOff:
		real.Opcode = fanlampOpLightOff
	case CmdLightWhiteColor, CmdLightDim:
		real.Opcode = fanlampOpWhiteColor
	case CmdLightSecondaryOn:
		real.Opcode = fanlampOpSecOn
	case CmdLightSecondaryOff:
		real.Opcode = fanlampOpSecOff
	case CmdFanOnOffSpeed:
		real.Opcode = fanlampOpFanLevel
	case CmdFanDirection:
		real.Opcode = fanlampOpFanDir
	case CmdFanOscillate:
		real.Opcode = fanlampOpFanOsc
	}
	return real, real.Opcode != 0
}

// fanlampSeed returns the forced seed, or a random one below 0xFFF5
func fanlampSeed(forced uint16, seeds SeedSource) uint16 {
	if forced != 0 {
		return forced
	}
	return seeds.Seed() % 0xFFF5
}

// ============================================================
// FanLamp v1
// ============================================================

// fanlampV1 layout:
//
//	prefix(8|9) cmd(1) group_index(2 LE) args(3) tx(1) outs(1) src(1) r2(1) seed(2 BE) crc(2 BE) trailer(2|1)
//
// The whole buffer is bit reversed then LFSR whitened. Variants sharing a
// prefix are told apart by args[2] and by r2.
type fanlampV1 struct {
	prefix            []byte
	pairArg3          uint8
	pairArgOnlyOnPair bool
	xor1              bool
	withCRC2          bool
}

func newFanLampV1(pairArg3 uint8, pairArgOnlyOnPair, xor1 bool, suppPrefix uint8) *fanlampV1 {
	l := &fanlampV1{
		prefix:            fanlampV1Prefix,
		pairArg3:          pairArg3,
		pairArgOnlyOnPair: pairArgOnlyOnPair,
		xor1:              xor1,
		withCRC2:          suppPrefix == 0,
	}
	if suppPrefix != 0 {
		l.prefix = append([]byte{suppPrefix}, fanlampV1Prefix...)
	}
	return l
}

func (l *fanlampV1) size() int { return fanlampV1CodeLen }

func (l *fanlampV1) translate(cmd Command, params ControllerParams) []Command {
	real, ok := fanlampTranslate(cmd)
	if !ok {
		return nil
	}
	switch cmd.Kind {
	case CmdPair:
		real.Args[0] = uint8(params.ID)
		real.Args[1] = uint8(params.ID>>8) & 0xF0
		real.Args[2] = l.pairArg3
	case CmdLightWhiteColor:
		real.Args[0] = cmd.Args[0]
		real.Args[1] = cmd.Args[1]
	case CmdLightDim:
		// both white channels at the same level
		real.Args[0] = cmd.Args[0]
		real.Args[1] = cmd.Args[0]
	case CmdFanOnOffSpeed:
		// six level fans use the gear opcode
		real.Args[0] = cmd.Args[0]
		if cmd.Args[1] == fanlampSixLevelSpeed {
			real.Opcode = fanlampOpFanGear
			real.Args[1] = fanlampSixLevelSpeed
		}
	case CmdFanDirection:
		real.Args[0] = boolByte(cmd.Args[0] == 0)
	case CmdFanOscillate:
		real.Args[0] = cmd.Args[0]
	}
	return []Command{real}
}

func (l *fanlampV1) r2(seed8 uint8) uint8 {
	if l.xor1 {
		return seed8 ^ 1
	}
	return seed8
}

func (l *fanlampV1) encode(buf []byte, cmd Command, params ControllerParams, seeds SeedSource) {
	copy(buf, l.prefix)
	d := buf[len(l.prefix) : len(l.prefix)+fanlampV1DataLen]

	seed := fanlampSeed(params.Seed, seeds)
	seed8 := uint8(seed)

	d[0] = cmd.Opcode
	binary.LittleEndian.PutUint16(d[1:3], uint16(params.ID&0xF0FF)+uint16(params.Index&0x0F)<<8)
	d[3] = cmd.Args[0]
	d[4] = cmd.Args[1]
	if l.pairArgOnlyOnPair {
		d[5] = cmd.Args[2]
	} else {
		d[5] = l.pairArg3
	}
	d[6] = params.TxCount
	d[7] = 0
	if l.xor1 {
		d[8] = seed8 ^ 1
	} else {
		d[8] = seed8 ^ uint8(params.ID>>16)
	}
	d[9] = l.r2(seed8)
	binary.BigEndian.PutUint16(d[10:12], seed)
	binary.BigEndian.PutUint16(d[12:14], CRC16CCITT(d[0:12], ^seed))

	if l.withCRC2 {
		mac := CRC16CCITT(buf[1:6], 0xFFFF)
		binary.BigEndian.PutUint16(buf[len(buf)-2:], CRC16CCITT(d, mac))
	} else {
		buf[len(buf)-1] = 0xAA
	}

	ReverseBitsAll(buf)
	WhitenLFSR(buf, seedFanLampV1)
}

func (l *fanlampV1) decode(buf []byte) (Command, ControllerParams, error) {
	WhitenLFSR(buf, seedFanLampV1)
	ReverseBitsAll(buf)
	if !bytes.HasPrefix(buf, l.prefix) {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: prefix % X", ErrHeader, buf[:len(l.prefix)])
	}
	d := buf[len(l.prefix) : len(l.prefix)+fanlampV1DataLen]

	// args[2] separates the fanlamp and lampsmart apps
	opcode, arg3 := d[0], d[5]
	switch {
	case opcode == fanlampOpPair && arg3 != l.pairArg3:
		return Command{}, ControllerParams{}, fmt.Errorf("%w: pair arg3 0x%02X", ErrField, arg3)
	case opcode != fanlampOpPair && !l.pairArgOnlyOnPair && arg3 != l.pairArg3:
		return Command{}, ControllerParams{}, fmt.Errorf("%w: arg3 0x%02X", ErrField, arg3)
	case opcode != fanlampOpPair && l.pairArgOnlyOnPair && arg3 != 0:
		return Command{}, ControllerParams{}, fmt.Errorf("%w: arg3 0x%02X on non pair command", ErrField, arg3)
	}

	seed := binary.BigEndian.Uint16(d[10:12])
	seed8 := uint8(seed)
	if d[9] != l.r2(seed8) {
		return Command{}, ControllerParams{}, mismatch(ErrField, "r2", uint16(l.r2(seed8)), uint16(d[9]))
	}

	crc := CRC16CCITT(d[0:12], ^seed)
	if got := binary.BigEndian.Uint16(d[12:14]); got != crc {
		return Command{}, ControllerParams{}, mismatch(ErrCRC, "crc16", crc, got)
	}

	if l.withCRC2 {
		crc2 := CRC16CCITT(d, CRC16CCITT(buf[1:6], 0xFFFF))
		if got := binary.BigEndian.Uint16(buf[len(buf)-2:]); got != crc2 {
			return Command{}, ControllerParams{}, mismatch(ErrCRC, "crc16_2", crc2, got)
		}
	}

	groupIndex := binary.LittleEndian.Uint16(d[1:3])
	cmd := Command{Kind: CmdCustom, Opcode: opcode}
	copy(cmd.Args[:], d[3:6])
	// xor1 remotes always transmit seed8^1, so their ids read back as 0x01xxxx
	id := uint32(groupIndex&0xF0FF) | uint32(d[8]^seed8)<<16
	params := ControllerParams{
		ID:      id,
		Index:   uint8(groupIndex>>8) & 0x0F,
		TxCount: d[6],
		Seed:    seed,
	}
	return cmd, params, nil
}

// ============================================================
// FanLamp v2 / v3
// ============================================================

// fanlampV2 layout, little endian fields:
//
//	prefix(3) tx(1) type(2) id(4) group_index(1) cmd(2) args(4) sign(2) spare(1) seed(2) crc(2)
//
// Bytes 2..19 are table whitened with the seed; the CRC covers the whitened
// bytes 0..21. v3 receivers additionally require an AES signature.
type fanlampV2 struct {
	deviceType uint16
	withSign   bool
}

func (l *fanlampV2) size() int { return fanlampV2CodeLen }

func (l *fanlampV2) translate(cmd Command, _ ControllerParams) []Command {
	real, ok := fanlampTranslate(cmd)
	if !ok {
		return nil
	}
	switch cmd.Kind {
	case CmdLightWhiteColor:
		real.Args[2] = cmd.Args[0]
		real.Args[3] = cmd.Args[1]
	case CmdLightDim:
		real.Args[2] = cmd.Args[0]
		real.Args[3] = cmd.Args[0]
	case CmdFanOnOffSpeed:
		if cmd.Args[1] == fanlampSixLevelSpeed {
			real.Args[1] = 0x20
		}
		real.Args[2] = cmd.Args[0]
	case CmdFanDirection:
		real.Args[1] = boolByte(cmd.Args[0] == 0)
	case CmdFanOscillate:
		real.Args[1] = cmd.Args[0]
	}
	return []Command{real}
}

func (l *fanlampV2) encode(buf []byte, cmd Command, params ControllerParams, seeds SeedSource) {
	copy(buf, fanlampV2Prefix)
	seed := fanlampSeed(params.Seed, seeds)

	buf[3] = params.TxCount
	binary.LittleEndian.PutUint16(buf[4:6], l.deviceType)
	binary.LittleEndian.PutUint32(buf[6:10], params.ID)
	buf[10] = params.Index
	binary.LittleEndian.PutUint16(buf[11:13], uint16(cmd.Opcode))
	copy(buf[13:17], cmd.Args[:4])
	binary.LittleEndian.PutUint16(buf[17:19], 0)
	buf[19] = 0
	binary.LittleEndian.PutUint16(buf[20:22], seed)

	if l.withSign {
		binary.LittleEndian.PutUint16(buf[17:19], SignAES(buf[1:17], seed, params.TxCount))
	}

	WhitenTable(buf[2:20], uint8(seed), 0)
	binary.LittleEndian.PutUint16(buf[22:24], CRC16CCITT(buf[0:22], ^seed))
}

func (l *fanlampV2) decode(buf []byte) (Command, ControllerParams, error) {
	seed := binary.LittleEndian.Uint16(buf[20:22])
	crc := CRC16CCITT(buf[0:22], ^seed)

	WhitenTable(buf[2:20], uint8(seed), 0)
	if !bytes.HasPrefix(buf, fanlampV2Prefix) {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: prefix % X", ErrHeader, buf[:3])
	}
	if devType := binary.LittleEndian.Uint16(buf[4:6]); devType != l.deviceType {
		return Command{}, ControllerParams{}, mismatch(ErrField, "device type", l.deviceType, devType)
	}

	sign := binary.LittleEndian.Uint16(buf[17:19])
	if l.withSign && sign == 0 {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: missing", ErrSignature)
	}
	if !l.withSign && sign != 0 {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: unexpected 0x%04X", ErrSignature, sign)
	}

	if got := binary.LittleEndian.Uint16(buf[22:24]); got != crc {
		return Command{}, ControllerParams{}, mismatch(ErrCRC, "crc16", crc, got)
	}

	tx := buf[3]
	if l.withSign {
		if expected := SignAES(buf[1:17], seed, tx); expected != sign {
			return Command{}, ControllerParams{}, mismatch(ErrSignature, "sign", expected, sign)
		}
	}

	cmd := Command{Kind: CmdCustom, Opcode: uint8(binary.LittleEndian.Uint16(buf[11:13]))}
	copy(cmd.Args[:4], buf[13:17])
	params := ControllerParams{
		ID:      binary.LittleEndian.Uint32(buf[6:10]),
		Index:   buf[10],
		TxCount: tx,
		Seed:    seed,
	}
	return cmd, params, nil
}
