// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// zhijiaMAC is the fixed pseudo address shared by every Zhijia remote
var zhijiaMAC = [4]byte{0x19, 0x01, 0x10, 0xAA}

// Zhijia group marker bytes
const (
	zhijiaV0Group = 0xFF
	zhijiaGroup   = 0x7F
)

// Zhijia layout sizes, header excluded
const (
	zhijiaV0AddrLen = 3
	zhijiaV0TxLen   = 8
	zhijiaV0CodeLen = zhijiaV0AddrLen + zhijiaV0TxLen + 2

	zhijiaV1AddrLen = 4
	zhijiaV1TxLen   = 17
	zhijiaV1CodeLen = zhijiaV1AddrLen + zhijiaV1TxLen + 2

	zhijiaV2TxLen     = 17 // pivot included
	zhijiaV2SpareLen  = 7
	zhijiaV2CodeLen   = zhijiaV2TxLen + zhijiaV2SpareLen
	zhijiaV2MidLength = 22
)

// zhijiaUUID splits id into n big endian bytes
func zhijiaUUID(id uint32, n int) []byte {
	u := make([]byte, n)
	for i := 0; i < n; i++ {
		u[n-1-i] = byte(id >> (8 * i))
	}
	return u
}

// zhijiaID is the inverse of zhijiaUUID
func zhijiaID(u []byte) uint32 {
	var id uint32
	for _, b := range u {
		id = id<<8 | uint32(b)
	}
	return id
}

// zhijiaPivot flips every bit of even values, odd values pass through
func zhijiaPivot(x uint8) uint8 {
	return x ^ ((x & 1) - 1)
}

// zhijiaAddr writes the first n bytes of the MAC in reverse order, each bit reversed
func zhijiaAddr(buf []byte, n int) {
	for i := 0; i < n; i++ {
		buf[n-1-i] = ReverseBits(zhijiaMAC[i])
	}
}

func zhijiaCheckAddr(buf []byte, n int) error {
	var want [zhijiaV1AddrLen]byte
	zhijiaAddr(want[:n], n)
	if !bytes.Equal(buf[:n], want[:n]) {
		return fmt.Errorf("%w: address % X", ErrField, buf[:n])
	}
	return nil
}

// zhijiaTranslate maps a logical command to Zhijia opcodes. v0 receivers use
// their own table; fan commands only exist on v2.
func zhijiaTranslate(cmd Command, v0, v2 bool) []Command {
	real := Command{Kind: cmd.Kind}
	pick := func(v0op, op uint8) uint8 {
		if v0 {
			return v0op
		}
		return op
	}

	switch cmd.Kind {
	case CmdPair:
		real.Opcode = pick(zhijiaV0OpPair, zhijiaOpPair)
	case CmdUnpair:
		real.Opcode = pick(zhijiaV0OpUnpair, zhijiaOpUnpair)
	case CmdLightOn:
		real.Opcode = pick(zhijiaV0OpLightOn, zhijiaOpLightOn)
	case CmdLightOff:
		real.Opcode = pick(zhijiaV0OpLightOff, zhijiaOpLightOff)
	case CmdLightDim, CmdLightCCT:
		if cmd.Kind == CmdLightDim {
			real.Opcode = pick(zhijiaV0OpDim, zhijiaOpDim)
		} else {
			real.Opcode = pick(zhijiaV0OpCCT, zhijiaOpCCT)
		}
		if v0 {
			// 0..255 scaled to 0..999, big endian
			v := uint16(999 * uint32(cmd.Args[0]) / 255)
			real.Args[1] = uint8(v >> 8)
			real.Args[2] = uint8(v)
		} else {
			real.Args[0] = uint8(249 * uint32(cmd.Args[0]) / 255)
		}
	case CmdLightSecondaryOn:
		real.Opcode = pick(zhijiaV0OpSec, zhijiaOpSecOn)
		if v0 {
			real.Args[0] = 1
		}
	case CmdLightSecondaryOff:
		real.Opcode = pick(zhijiaV0OpSec, zhijiaOpSecOff)
		if v0 {
			real.Args[0] = 2
		}
	case CmdFanOn:
		if v2 {
			real.Opcode = zhijiaOpFanOn
		}
	case CmdFanOff:
		if v2 {
			real.Opcode = zhijiaOpFanOff
		}
	case CmdFanSpeed:
		if v2 {
			// three level fans step by two on the six level scale
			level := cmd.Args[0]
			if cmd.Args[1] == 3 {
				level = 2 * cmd.Args[0]
			}
			real.Opcode = zhijiaOpFanSpeed + level
		}
	}

	if real.Opcode == 0 {
		return nil
	}
	return []Command{real}
}

func zhijiaCommand(op, a0, a1, a2 uint8) Command {
	cmd := Command{Kind: CmdCustom, Opcode: op}
	cmd.Args[0], cmd.Args[1], cmd.Args[2] = a0, a1, a2
	return cmd
}

// ============================================================
// Zhijia v0 (MSC16)
// ============================================================

// zhijiaV0 layout: addr(3) txdata(8) crc(2 LE), double whitened
type zhijiaV0 struct{}

func (zhijiaV0) size() int { return zhijiaV0CodeLen }

func (zhijiaV0) translate(cmd Command, _ ControllerParams) []Command {
	return zhijiaTranslate(cmd, true, false)
}

func (zhijiaV0) encode(buf []byte, cmd Command, params ControllerParams, _ SeedSource) {
	u := zhijiaUUID(params.ID, 2)
	sn := params.TxCount
	a0, a1, a2 := cmd.Args[0], cmd.Args[1], cmd.Args[2]

	zhijiaAddr(buf, zhijiaV0AddrLen)
	t := buf[zhijiaV0AddrLen : zhijiaV0AddrLen+zhijiaV0TxLen]
	x := a2 ^ sn
	t[0] = x ^ u[0]
	t[1] = x ^ a0
	t[2] = x ^ zhijiaV0Group
	t[3] = x ^ a1
	t[4] = x ^ cmd.Opcode
	t[5] = (x ^ u[1]) - 1
	t[6] = a2 ^ u[0]
	t[7] = a0 ^ sn

	n := zhijiaV0AddrLen + zhijiaV0TxLen
	binary.LittleEndian.PutUint16(buf[n:n+2], zhijiaCRC(buf[:n]))

	WhitenLFSR(buf, seedZhijiaAddr)
	WhitenLFSR(buf, seedZhijiaData)
}

func (zhijiaV0) decode(buf []byte) (Command, ControllerParams, error) {
	WhitenLFSR(buf, seedZhijiaData)
	WhitenLFSR(buf, seedZhijiaAddr)

	if err := zhijiaCheckAddr(buf, zhijiaV0AddrLen); err != nil {
		return Command{}, ControllerParams{}, err
	}
	n := zhijiaV0AddrLen + zhijiaV0TxLen
	crc := zhijiaCRC(buf[:n])
	if got := binary.LittleEndian.Uint16(buf[n : n+2]); got != crc {
		return Command{}, ControllerParams{}, mismatch(ErrCRC, "crc16", crc, got)
	}

	t := buf[zhijiaV0AddrLen:n]
	sn := t[0] ^ t[6]
	a0 := t[7] ^ sn
	x := t[1] ^ a0
	a2 := x ^ sn
	u0 := t[6] ^ a2
	a1 := t[3] ^ x
	op := t[4] ^ x
	if g := t[2] ^ x; g != zhijiaV0Group {
		return Command{}, ControllerParams{}, mismatch(ErrField, "group", zhijiaV0Group, uint16(g))
	}
	u1 := (t[5] + 1) ^ x

	params := ControllerParams{ID: zhijiaID([]byte{u0, u1}), TxCount: sn}
	return zhijiaCommand(op, a0, a1, a2), params, nil
}

// ============================================================
// Zhijia v1 (MSC26)
// ============================================================

// zhijiaV1 layout: addr(4) txdata(17) crc(2 LE), whitened once
type zhijiaV1 struct{}

func (zhijiaV1) size() int { return zhijiaV1CodeLen }

func (zhijiaV1) translate(cmd Command, _ ControllerParams) []Command {
	return zhijiaTranslate(cmd, false, false)
}

func (zhijiaV1) encode(buf []byte, cmd Command, params ControllerParams, _ SeedSource) {
	u := zhijiaUUID(params.ID, 3)
	uid := zhijiaMAC[:3]
	sn := params.TxCount
	op := cmd.Opcode
	a0, a1, a2 := cmd.Args[0], cmd.Args[1], cmd.Args[2]

	zhijiaAddr(buf, zhijiaV1AddrLen)
	t := buf[zhijiaV1AddrLen : zhijiaV1AddrLen+zhijiaV1TxLen]
	p := zhijiaPivot(uid[2] ^ u[1] ^ u[2])
	t[0] = p ^ a0
	t[1] = p ^ a0 ^ u[0] ^ a1 ^ sn ^ a2 ^ zhijiaGroup ^ uid[0] ^ op ^ uid[1] ^ u[1] ^ uid[2] ^ u[2]
	t[2] = p ^ u[0]
	t[3] = p ^ a1
	t[4] = p ^ sn
	t[5] = p ^ a2
	t[6] = p ^ zhijiaGroup
	t[7] = p ^ uid[0]
	t[8] = p
	t[9] = p ^ op
	t[10] = p ^ uid[1]
	t[11] = p
	t[12] = u[1] ^ t[2]
	t[13] = uid[2] ^ t[4]
	t[14] = t[7]
	t[15] = u[2] ^ t[9]
	t[16] = p

	n := zhijiaV1AddrLen + zhijiaV1TxLen
	binary.LittleEndian.PutUint16(buf[n:n+2], zhijiaCRC(buf[:n]))

	WhitenLFSR(buf, seedZhijiaData)
}

func (zhijiaV1) decode(buf []byte) (Command, ControllerParams, error) {
	WhitenLFSR(buf, seedZhijiaData)

	if err := zhijiaCheckAddr(buf, zhijiaV1AddrLen); err != nil {
		return Command{}, ControllerParams{}, err
	}
	n := zhijiaV1AddrLen + zhijiaV1TxLen
	crc := zhijiaCRC(buf[:n])
	if got := binary.LittleEndian.Uint16(buf[n : n+2]); got != crc {
		return Command{}, ControllerParams{}, mismatch(ErrCRC, "crc16", crc, got)
	}

	t := buf[zhijiaV1AddrLen:n]
	p := t[8]
	if t[11] != p || t[16] != p || t[14] != t[7] {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: pivot copies", ErrField)
	}

	a0, u0, a1, sn, a2 := t[0]^p, t[2]^p, t[3]^p, t[4]^p, t[5]^p
	g, uid0, op, uid1 := t[6]^p, t[7]^p, t[9]^p, t[10]^p
	u1 := t[12] ^ t[2]
	uid2 := t[13] ^ t[4]
	u2 := t[15] ^ t[9]

	if g != zhijiaGroup {
		return Command{}, ControllerParams{}, mismatch(ErrField, "group", zhijiaGroup, uint16(g))
	}
	if uid0 != zhijiaMAC[0] || uid1 != zhijiaMAC[1] || uid2 != zhijiaMAC[2] {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: uid %02X %02X %02X", ErrField, uid0, uid1, uid2)
	}
	if key := p ^ a0 ^ u0 ^ a1 ^ sn ^ a2 ^ g ^ uid0 ^ op ^ uid1 ^ u1 ^ uid2 ^ u2; t[1] != key {
		return Command{}, ControllerParams{}, mismatch(ErrField, "key", uint16(key), uint16(t[1]))
	}
	if expected := zhijiaPivot(uid2 ^ u1 ^ u2); expected != p {
		return Command{}, ControllerParams{}, mismatch(ErrField, "pivot", uint16(expected), uint16(p))
	}

	params := ControllerParams{ID: zhijiaID([]byte{u0, u1, u2}), TxCount: sn}
	return zhijiaCommand(op, a0, a1, a2), params, nil
}

// ============================================================
// Zhijia v2 (MSC26A)
// ============================================================

// zhijiaV2 layout: txdata(16) pivot(1) spare(7). The first 22 bytes are
// whitened with a mid-stream seed, then the full 24 bytes again.
type zhijiaV2 struct{}

func (zhijiaV2) size() int { return zhijiaV2CodeLen }

func (zhijiaV2) translate(cmd Command, _ ControllerParams) []Command {
	return zhijiaTranslate(cmd, false, true)
}

func (zhijiaV2) encode(buf []byte, cmd Command, params ControllerParams, _ SeedSource) {
	u := zhijiaUUID(params.ID, 3)
	m := zhijiaMAC
	sn := params.TxCount
	op := cmd.Opcode
	a0, a1, a2 := cmd.Args[0], cmd.Args[1], cmd.Args[2]

	k := u[0] ^ u[1] ^ u[2] ^ sn ^ a1 ^ m[0] ^ m[2] ^ op
	p := zhijiaPivot(k)
	key := a0 ^ a1 ^ a2 ^ zhijiaGroup ^ sn ^ m[0] ^ m[1] ^ m[2] ^ u[0] ^ u[1] ^ u[2]

	t := buf[:zhijiaV2TxLen]
	t[0] = p ^ a0
	t[1] = p ^ key
	t[2] = p ^ u[0]
	t[3] = p ^ a1
	t[4] = p ^ sn
	t[5] = p ^ a2
	t[6] = p ^ zhijiaGroup
	t[7] = p ^ m[0]
	t[8] = p ^ u[0] ^ sn ^ a1 ^ m[0]
	t[9] = p ^ op
	t[10] = p ^ m[1]
	t[11] = p
	t[12] = p ^ u[0] ^ u[1]
	t[13] = p ^ sn ^ m[2]
	t[14] = p ^ u[0] ^ sn ^ a1 ^ op
	t[15] = p ^ op ^ u[2]
	t[16] = p
	clear(buf[zhijiaV2TxLen:zhijiaV2CodeLen])

	WhitenLFSR(buf[:zhijiaV2MidLength], seedZhijiaV2Mid)
	WhitenLFSR(buf[:zhijiaV2CodeLen], seedZhijiaV2Full)
}

func (zhijiaV2) decode(buf []byte) (Command, ControllerParams, error) {
	WhitenLFSR(buf[:zhijiaV2CodeLen], seedZhijiaV2Full)
	WhitenLFSR(buf[:zhijiaV2MidLength], seedZhijiaV2Mid)

	for _, b := range buf[zhijiaV2TxLen:zhijiaV2CodeLen] {
		if b != 0 {
			return Command{}, ControllerParams{}, fmt.Errorf("%w: spare % X", ErrField, buf[zhijiaV2TxLen:zhijiaV2CodeLen])
		}
	}

	t := buf[:zhijiaV2TxLen]
	p := t[16]
	if t[11] != p {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: pivot copies", ErrField)
	}

	a0, u0, a1, sn, a2 := t[0]^p, t[2]^p, t[3]^p, t[4]^p, t[5]^p
	g, m0, op, m1 := t[6]^p, t[7]^p, t[9]^p, t[10]^p
	u1 := t[12] ^ p ^ u0
	m2 := t[13] ^ p ^ sn
	u2 := t[15] ^ p ^ op

	if g != zhijiaGroup {
		return Command{}, ControllerParams{}, mismatch(ErrField, "group", zhijiaGroup, uint16(g))
	}
	if m0 != zhijiaMAC[0] || m1 != zhijiaMAC[1] || m2 != zhijiaMAC[2] {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: mac %02X %02X %02X", ErrField, m0, m1, m2)
	}
	if t[8] != p^u0^sn^a1^m0 || t[14] != p^u0^sn^a1^op {
		return Command{}, ControllerParams{}, fmt.Errorf("%w: redundant bytes", ErrField)
	}
	if key := a0 ^ a1 ^ a2 ^ g ^ sn ^ m0 ^ m1 ^ m2 ^ u0 ^ u1 ^ u2; t[1] != p^key {
		return Command{}, ControllerParams{}, mismatch(ErrField, "key", uint16(p^key), uint16(t[1]))
	}
	if expected := zhijiaPivot(u0 ^ u1 ^ u2 ^ sn ^ a1 ^ m0 ^ m2 ^ op); expected != p {
		return Command{}, ControllerParams{}, mismatch(ErrField, "pivot", uint16(expected), uint16(p))
	}

	params := ControllerParams{ID: zhijiaID([]byte{u0, u1, u2}), TxCount: sn}
	return zhijiaCommand(op, a0, a1, a2), params, nil
}
