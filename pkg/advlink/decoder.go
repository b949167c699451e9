// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import (
	"fmt"
	"io"
	"time"
)

// Decoder is the frame decoder state machine
type Decoder struct {
	state       int
	buffer      []byte
	bufferIndex int
	escapeNext  bool
	seqBytes    int
	frame       *Frame
	rawBuffer   []byte // raw bytes including framing
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxFrameSize),
		rawBuffer: make([]byte, 0, MaxFrameSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.seqBytes = 0
	d.escapeNext = false
	d.frame = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes accumulated since the last frame start
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte to the decoder. It returns a frame once an END
// byte completes a frame with a valid CRC, and nil while incomplete.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	if b == EscByte && !d.escapeNext {
		d.escapeNext = true
		return nil, nil
	}

	escaped := d.escapeNext
	if escaped {
		b ^= EscXor
		d.escapeNext = false
	}

	if !escaped && b == StartByte {
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, StartByte)
		d.state = stateLength
		return nil, nil
	}

	if !escaped && b == EndByte {
		if d.state == stateEnd {
			frame := d.frame
			calculatedCRC := CalculateCRC(d.buffer[:d.bufferIndex])
			d.Reset()

			if frame.crc != calculatedCRC {
				return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", calculatedCRC, frame.crc)
			}
			frame.timestamp = time.Now()
			return frame, nil
		}
		state := d.state
		d.Reset()
		if state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", state)
	}

	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength:
		if b > MaxPayloadSize {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		d.frame = &Frame{length: b, cborPayload: make([]byte, 0, b)}
		d.push(b)
		d.seqBytes = 0
		d.state = stateSeq
		return nil, nil

	case stateSeq:
		d.frame.seq |= uint16(b) << (d.seqBytes * 8)
		d.push(b)
		d.seqBytes++
		if d.seqBytes >= SeqSize {
			if d.frame.length == 0 {
				d.state = stateCRC1
			} else {
				d.state = statePayload
			}
		}
		return nil, nil

	case statePayload:
		if d.bufferIndex >= MaxFrameSize {
			d.Reset()
			return nil, fmt.Errorf("buffer overflow: frame exceeds max size")
		}
		d.frame.cborPayload = append(d.frame.cborPayload, b)
		d.push(b)
		if len(d.frame.cborPayload) >= int(d.frame.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.frame.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.frame.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("expected END byte, got 0x%02X", b)

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

func (d *Decoder) push(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}

// Decode feeds data to the decoder and returns every completed frame along
// with the decode errors met on the way.
func (d *Decoder) Decode(data []byte) ([]*Frame, []error) {
	var frames []*Frame
	var errs []error
	for _, b := range data {
		f, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
	return frames, errs
}

// ReadFrame reads from r until one frame completes. Decode errors are passed
// to onError, when set, and decoding continues. Read errors end the call.
func (d *Decoder) ReadFrame(r io.Reader, onError func(error)) (*Frame, error) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			f, decErr := d.DecodeByte(buf[0])
			if decErr != nil && onError != nil {
				onError(decErr)
			}
			if f != nil {
				return f, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}
