// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import "time"

// Builder functions create frames ready for Encoder.Encode, which numbers
// them. Payload keys follow the table in each function comment.

// NewAdvStart creates an ADV_START frame (0x10).
// 0 => raw advertisement, 1 => minimum duration in ms.
// The bridge advertises raw until ADV_STOP or the next ADV_START.
func NewAdvStart(raw []byte, duration time.Duration) *Frame {
	payload := map[int]interface{}{
		0: raw,
		1: uint64(duration.Milliseconds()),
	}
	return NewFrameWithPayload(0, MsgAdvStart, payload)
}

// NewAdvStop creates an ADV_STOP frame (0x11)
func NewAdvStop() *Frame {
	return NewFrameWithPayload(0, MsgAdvStop, nil)
}

// NewPingRequest creates a PING_REQUEST frame (0x20).
// Bridges answer with PING_RESPONSE carrying their uptime.
func NewPingRequest() *Frame {
	return NewFrameWithPayload(0, MsgPingRequest, nil)
}

// NewPingResponse creates a PING_RESPONSE frame (0x21). 0 => uptime in ms.
func NewPingResponse(seq uint16, uptime time.Duration) *Frame {
	return NewFrameWithPayload(seq, MsgPingResponse, map[int]interface{}{
		0: uint64(uptime.Milliseconds()),
	})
}

// NewCaptured creates a CAPTURED frame (0x30). 0 => raw advertisement, 1 => rssi.
func NewCaptured(seq uint16, raw []byte, rssi int16) *Frame {
	return NewFrameWithPayload(seq, MsgCaptured, map[int]interface{}{
		0: raw,
		1: int64(rssi),
	})
}

// NewAck creates an ACK frame (0x40) for the request numbered ackSeq
func NewAck(seq, ackSeq uint16) *Frame {
	return NewFrameWithPayload(seq, MsgAck, map[int]interface{}{
		0: uint64(ackSeq),
	})
}

// NewError creates an ERROR frame (0x4F). 0 => code, 1 => message.
func NewError(seq uint16, code uint8, message string) *Frame {
	return NewFrameWithPayload(seq, MsgError, map[int]interface{}{
		0: uint64(code),
		1: message,
	})
}
