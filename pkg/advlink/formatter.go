// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) seq=%d len=%d\n",
		timestamp, FormatMessageType(f.Type()), f.Type(), f.seq, f.length)
	if err := f.ParseError(); err != nil {
		return result + fmt.Sprintf("  Parse Error: %v\n", err)
	}
	return result + FormatPayloadMap(f.Type(), f.PayloadMap())
}

// FormatMessageType returns the name of a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgAdvStart:
		return "ADV_START"
	case MsgAdvStop:
		return "ADV_STOP"
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgCaptured:
		return "CAPTURED"
	case MsgAck:
		return "ACK"
	case MsgError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FormatErrorCode returns the name of a bridge error code
func FormatErrorCode(code uint64) string {
	switch code {
	case ErrCodeNone:
		return "NONE"
	case ErrCodeBadFrame:
		return "BAD_FRAME"
	case ErrCodeBadPayload:
		return "BAD_PAYLOAD"
	case ErrCodeRadio:
		return "RADIO"
	case ErrCodeBusy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// FormatPayloadMap formats the payload map of msgType
func FormatPayloadMap(msgType uint8, m map[int]interface{}) string {
	switch msgType {
	case MsgAdvStop, MsgPingRequest:
		return "  (no payload)\n"

	case MsgAdvStart:
		// 0 => raw, 1 => duration-ms
		raw, _ := GetMapBytes(m, 0)
		duration, _ := GetMapUint(m, 1)
		return fmt.Sprintf("  Raw: %s, Duration: %d ms\n", formatRaw(raw), duration)

	case MsgPingResponse:
		// 0 => uptime-ms
		uptime, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Uptime: %s\n", formatDuration(uptime))

	case MsgCaptured:
		// 0 => raw, 1 => rssi
		raw, _ := GetMapBytes(m, 0)
		rssi, _ := GetMapInt(m, 1)
		return fmt.Sprintf("  Raw: %s, RSSI: %d dBm\n", formatRaw(raw), rssi)

	case MsgAck:
		// 0 => acked seq
		seq, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Acked: %d\n", seq)

	case MsgError:
		// 0 => code, 1 => message
		code, _ := GetMapUint(m, 0)
		msg, _ := GetMapString(m, 1)
		return fmt.Sprintf("  Code: %s (%d), Message: %q\n", FormatErrorCode(code), code, msg)
	}

	if len(m) == 0 {
		return "  (no payload)\n"
	}
	return fmt.Sprintf("  %v\n", m)
}

func formatRaw(raw []byte) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(raw))
	for i, b := range raw {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("%s (%d)", strings.Join(parts, "."), len(raw))
}

func formatDuration(ms uint64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
