// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import "time"

// Frame is one decoded or outgoing link message
type Frame struct {
	length      uint8
	seq         uint16
	cborPayload []byte // [msg_type, payload_map]
	crc         uint16
	timestamp   time.Time

	msgType    uint8
	payloadMap map[int]interface{}
	parsed     bool
	parseErr   error
}

// NewFrame creates a frame from its wire fields
func NewFrame(seq uint16, cborPayload []byte, crc uint16) *Frame {
	return &Frame{
		length:      uint8(len(cborPayload)),
		seq:         seq,
		cborPayload: cborPayload,
		crc:         crc,
		timestamp:   time.Now(),
	}
}

// NewFrameWithPayload creates an outgoing frame. The CBOR encoding and CRC
// are computed when the frame is encoded.
func NewFrameWithPayload(seq uint16, msgType uint8, payload map[int]interface{}) *Frame {
	return &Frame{
		seq:        seq,
		msgType:    msgType,
		payloadMap: payload,
		parsed:     true,
		timestamp:  time.Now(),
	}
}

func (f *Frame) ensureParsed() {
	if f.parsed {
		return
	}
	f.parsed = true
	if len(f.cborPayload) == 0 {
		return
	}
	f.msgType, f.payloadMap, f.parseErr = ParseCBORMessage(f.cborPayload)
}

// Length returns the CBOR payload length
func (f *Frame) Length() uint8 {
	return f.length
}

// Seq returns the frame sequence number
func (f *Frame) Seq() uint16 {
	return f.seq
}

// Type returns the message type
func (f *Frame) Type() uint8 {
	f.ensureParsed()
	return f.msgType
}

// Payload returns the raw CBOR bytes
func (f *Frame) Payload() []byte {
	return f.cborPayload
}

// PayloadMap returns the decoded payload map (nil for empty payloads)
func (f *Frame) PayloadMap() map[int]interface{} {
	f.ensureParsed()
	return f.payloadMap
}

// ParseError returns any error from parsing the CBOR payload
func (f *Frame) ParseError() error {
	f.ensureParsed()
	return f.parseErr
}

// CRC returns the frame CRC
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns the decode (or creation) time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// IsReply reports whether the frame answers an earlier request
func (f *Frame) IsReply() bool {
	switch f.Type() {
	case MsgAck, MsgError, MsgPingResponse:
		return true
	}
	return false
}
