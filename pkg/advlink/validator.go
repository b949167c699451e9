// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyUnknownType AnomalyType = iota
	AnomalyMissingField
	AnomalyOversizeRaw
	AnomalyInvalidValue
	AnomalyDecodeError
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a frame against its message type.
// Returns an empty slice if the frame is valid.
func ValidateFrame(f *Frame) []ValidationError {
	if err := f.ParseError(); err != nil {
		return []ValidationError{{
			Type:    AnomalyDecodeError,
			Message: fmt.Sprintf("CBOR decode failed: %v", err),
		}}
	}

	m := f.PayloadMap()
	switch f.Type() {
	case MsgAdvStart:
		errors := validateRaw(m, "ADV_START")
		if _, ok := GetMapUint(m, 1); !ok {
			errors = append(errors, missingField("ADV_START", "duration"))
		}
		return errors
	case MsgCaptured:
		errors := validateRaw(m, "CAPTURED")
		if rssi, ok := GetMapInt(m, 1); ok && (rssi > 20 || rssi < -127) {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid RSSI=%d dBm (valid -127..20)", rssi),
				Details: map[string]interface{}{"rssi": rssi},
			})
		}
		return errors
	case MsgAck:
		if _, ok := GetMapUint(m, 0); !ok {
			return []ValidationError{missingField("ACK", "seq")}
		}
	case MsgError:
		if _, ok := GetMapUint(m, 0); !ok {
			return []ValidationError{missingField("ERROR", "code")}
		}
	case MsgPingResponse:
		if _, ok := GetMapUint(m, 0); !ok {
			return []ValidationError{missingField("PING_RESPONSE", "uptime")}
		}
	case MsgAdvStop, MsgPingRequest:
	default:
		return []ValidationError{{
			Type:    AnomalyUnknownType,
			Message: fmt.Sprintf("Unknown message type 0x%02X", f.Type()),
			Details: map[string]interface{}{"type": f.Type()},
		}}
	}
	return []ValidationError{}
}

func validateRaw(m map[int]interface{}, name string) []ValidationError {
	raw, ok := GetMapBytes(m, 0)
	if !ok || len(raw) == 0 {
		return []ValidationError{missingField(name, "raw")}
	}
	if len(raw) > MaxRawAdvSize {
		return []ValidationError{{
			Type:    AnomalyOversizeRaw,
			Message: fmt.Sprintf("%s raw advertisement too long: %d bytes (max %d)", name, len(raw), MaxRawAdvSize),
			Details: map[string]interface{}{"length": len(raw), "max": MaxRawAdvSize},
		}}
	}
	return []ValidationError{}
}

func missingField(name, field string) ValidationError {
	return ValidationError{
		Type:    AnomalyMissingField,
		Message: fmt.Sprintf("%s missing %s", name, field),
		Details: map[string]interface{}{"field": field},
	}
}
