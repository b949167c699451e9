// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Encoder encodes frames and numbers them when they carry no sequence
type Encoder struct {
	mu      sync.Mutex
	nextSeq uint16
}

// NewEncoder creates a new frame encoder
func NewEncoder() *Encoder {
	return &Encoder{nextSeq: 1}
}

// NextSeq returns a fresh sequence number, skipping 0
func (e *Encoder) NextSeq() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.nextSeq
	e.nextSeq++
	if e.nextSeq == 0 {
		e.nextSeq = 1
	}
	return seq
}

// Encode encodes f to wire format. A zero sequence number is replaced by
// NextSeq and written back to f.
func (e *Encoder) Encode(f *Frame) ([]byte, error) {
	if f.seq == 0 {
		f.seq = e.NextSeq()
	}
	return EncodeFrameFromValues(f.Seq(), f.Type(), f.PayloadMap())
}

// EncodeFrameFromValues creates a complete wire-formatted frame, including
// framing and byte stuffing.
func EncodeFrameFromValues(seq uint16, msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(msgType, payloadMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}

	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	// length + seq + CBOR payload, CRC'd and stuffed
	data := make([]byte, 1+SeqSize+len(cborPayload), 1+SeqSize+len(cborPayload)+2)
	data[0] = uint8(len(cborPayload))
	binary.LittleEndian.PutUint16(data[1:3], seq)
	copy(data[3:], cborPayload)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)

	return frame, nil
}

// EncodeFrame encodes f without numbering it.
// Panics on encoding error (use Encoder.Encode for error handling).
func EncodeFrame(f *Frame) []byte {
	data, err := EncodeFrameFromValues(f.Seq(), f.Type(), f.PayloadMap())
	if err != nil {
		panic(fmt.Sprintf("advlink: encode error: %v", err))
	}
	return data
}

func encodeCBORPayload(msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	var msg interface{}
	if len(payloadMap) == 0 {
		msg = []interface{}{uint64(msgType), nil}
	} else {
		msg = []interface{}{uint64(msgType), payloadMap}
	}
	return cbor.Marshal(msg)
}

// stuffBytes replaces START, END and ESC with ESC + (byte XOR EscXor)
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// UnstuffBytes is the inverse of the encoder's byte stuffing
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		switch {
		case escapeNext:
			result = append(result, b^EscXor)
			escapeNext = false
		case b == EscByte:
			escapeNext = true
		default:
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}
	return result, nil
}
