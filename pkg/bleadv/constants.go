// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bleadv implements the advertisement codecs used by BLE remote
// controlled ceiling fans and lamps.
//
// A logical Command is translated into one or more vendor packets, each
// carried as manufacturer or service data of a non-connectable BLE
// advertisement. The package provides the bit-level primitives (whitening,
// bit reversal, CRCs, AES signature), the FanLamp and Zhijia codec families,
// a Registry that owns every codec instance, and the identification path
// that decodes a captured advertisement back into a Command.
package bleadv

// Advertisement size limits
const (
	MaxPacketLen = 31 // BLE legacy advertisement payload
	MaxDataLen   = 26 // Largest vendor data field carried in one TLV
)

// BLE AD types
const (
	ADTypeFlags            = 0x01
	ADTypeComplete16BitIDs = 0x03
	ADTypeServiceData16    = 0x16
	ADTypeManufacturer     = 0xFF
)

// TxCountCeiling is the exclusive upper bound of the rolling tx counter.
// Receivers window on this value so it wraps to 1, never to 0.
const TxCountCeiling = 128

// Codec families
const (
	FamilyFanLampPro   = "fanlamp_pro"
	FamilyLampSmartPro = "lampsmart_pro"
	FamilyZhijia       = "zhijia"
)

// VariantAll names the aggregate codec of a family.
const VariantAll = "All"

// FanLamp opcodes
const (
	fanlampOpPair        = 0x28
	fanlampOpUnpair      = 0x45
	fanlampOpLightOn     = 0x10
	fanlampOpLightOff    = 0x11
	fanlampOpWhiteColor  = 0x21
	fanlampOpSecOn       = 0x12
	fanlampOpSecOff      = 0x13
	fanlampOpFanLevel    = 0x31
	fanlampOpFanGear     = 0x32
	fanlampOpFanDir      = 0x15
	fanlampOpFanOsc      = 0x16
	fanlampSixLevelSpeed = 6
)

// Zhijia opcodes. V0 receivers use a distinct table.
const (
	zhijiaV0OpPair     = 0xB4
	zhijiaV0OpUnpair   = 0xB0
	zhijiaV0OpLightOn  = 0xB3
	zhijiaV0OpLightOff = 0xB2
	zhijiaV0OpDim      = 0xB5
	zhijiaV0OpCCT      = 0xB7
	zhijiaV0OpSec      = 0xA6

	zhijiaOpPair     = 0xA2
	zhijiaOpUnpair   = 0xA3
	zhijiaOpLightOn  = 0xA5
	zhijiaOpLightOff = 0xA6
	zhijiaOpDim      = 0xAD
	zhijiaOpCCT      = 0xAE
	zhijiaOpSecOn    = 0xAF
	zhijiaOpSecOff   = 0xB0
	zhijiaOpFanOn    = 0xD2
	zhijiaOpFanOff   = 0xD3
	zhijiaOpFanSpeed = 0xDB
)

// Whitening seeds
const (
	seedFanLampV1    = 0x6F
	seedZhijiaAddr   = 0x7F
	seedZhijiaData   = 0x37
	seedZhijiaV2Mid  = 0xD3
	seedZhijiaV2Full = 0x6F
)
