// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package advlink implements the serial link to an external advertising bridge.
//
// A bridge is a small BLE-capable board that advertises raw payloads on behalf
// of the host and reports advertisements it hears. Frames are byte-stuffed,
// CRC protected and carry a CBOR message of the form [msg_type, payload_map].
package advlink

// Framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxFrameSize   = 128 // 5 overhead + 123 payload
	MaxPayloadSize = 123
	SeqSize        = 2
	MaxRawAdvSize  = 31 // legacy advertising PDU data
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message types - Advertising (Host → Bridge) 0x10-0x1F
const (
	MsgAdvStart = 0x10
	MsgAdvStop  = 0x11
)

// Message types - Diagnostics 0x20-0x2F
const (
	MsgPingRequest  = 0x20
	MsgPingResponse = 0x21
)

// Message types - Scanning (Bridge → Host) 0x30-0x3F
const (
	MsgCaptured = 0x30
)

// Message types - Replies (Bridge → Host) 0x40-0x4F
const (
	MsgAck   = 0x40
	MsgError = 0x4F
)

// Bridge error codes carried by MsgError
const (
	ErrCodeNone       = 0
	ErrCodeBadFrame   = 1
	ErrCodeBadPayload = 2
	ErrCodeRadio      = 3
	ErrCodeBusy       = 4
)

// Decoder states
const (
	stateIdle = iota
	stateLength
	stateSeq
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
