// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advlink

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

// decodeAll feeds data to a fresh decoder and fails on any decode error
func decodeAll(t *testing.T, data []byte) []*Frame {
	t.Helper()
	frames, errs := NewDecoder().Decode(data)
	for _, err := range errs {
		t.Fatalf("Decoder error: %v", err)
	}
	return frames
}

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"check string", []byte("123456789"), 0x29B1},
		{"single zero", []byte{0x00}, 0xE1F0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateCRC(tt.data); got != tt.want {
				t.Errorf("CalculateCRC(%X) = 0x%04X, want 0x%04X", tt.data, got, tt.want)
			}
		})
	}
}

// ============================================================
// Encoder / Decoder Round Trip Tests
// ============================================================

func TestEncodeFrame_RoundTrip(t *testing.T) {
	raw := []byte{0x02, 0x01, 0x19, 0x1B, 0x03, 0xF9, 0x08, 0x49}

	tests := []struct {
		name  string
		frame *Frame
		check func(t *testing.T, f *Frame)
	}{
		{
			name:  "adv start",
			frame: NewAdvStart(raw, 150*time.Millisecond),
			check: func(t *testing.T, f *Frame) {
				got, ok := GetMapBytes(f.PayloadMap(), 0)
				if !ok || !bytes.Equal(got, raw) {
					t.Errorf("raw = %X, want %X", got, raw)
				}
				if ms, _ := GetMapUint(f.PayloadMap(), 1); ms != 150 {
					t.Errorf("duration = %d, want 150", ms)
				}
			},
		},
		{
			name:  "adv stop",
			frame: NewAdvStop(),
			check: func(t *testing.T, f *Frame) {
				if f.PayloadMap() != nil {
					t.Errorf("expected nil payload, got %v", f.PayloadMap())
				}
			},
		},
		{
			name:  "ping request",
			frame: NewPingRequest(),
		},
		{
			name:  "ping response",
			frame: NewPingResponse(9, 90*time.Second),
			check: func(t *testing.T, f *Frame) {
				if ms, _ := GetMapUint(f.PayloadMap(), 0); ms != 90000 {
					t.Errorf("uptime = %d, want 90000", ms)
				}
			},
		},
		{
			name:  "captured with negative rssi",
			frame: NewCaptured(3, raw, -67),
			check: func(t *testing.T, f *Frame) {
				if rssi, ok := GetMapInt(f.PayloadMap(), 1); !ok || rssi != -67 {
					t.Errorf("rssi = %d (%v), want -67", rssi, ok)
				}
			},
		},
		{
			name:  "ack",
			frame: NewAck(4, 0x7E7D),
			check: func(t *testing.T, f *Frame) {
				if seq, _ := GetMapUint(f.PayloadMap(), 0); seq != 0x7E7D {
					t.Errorf("acked seq = 0x%04X, want 0x7E7D", seq)
				}
			},
		},
		{
			name:  "error",
			frame: NewError(5, ErrCodeRadio, "adv busy"),
			check: func(t *testing.T, f *Frame) {
				if msg, _ := GetMapString(f.PayloadMap(), 1); msg != "adv busy" {
					t.Errorf("message = %q", msg)
				}
			},
		},
	}

	enc := NewEncoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgType := tt.frame.Type()
			encoded, err := enc.Encode(tt.frame)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if encoded[0] != StartByte || encoded[len(encoded)-1] != EndByte {
				t.Fatalf("bad framing: %X", encoded)
			}

			frames := decodeAll(t, encoded)
			if len(frames) != 1 {
				t.Fatalf("expected 1 frame, got %d", len(frames))
			}
			f := frames[0]
			if f.Type() != msgType {
				t.Errorf("type = 0x%02X, want 0x%02X", f.Type(), msgType)
			}
			if f.Seq() != tt.frame.Seq() {
				t.Errorf("seq = %d, want %d", f.Seq(), tt.frame.Seq())
			}
			if f.ParseError() != nil {
				t.Errorf("parse error: %v", f.ParseError())
			}
			if errs := ValidateFrame(f); len(errs) != 0 {
				t.Errorf("unexpected validation errors: %v", errs)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestEncoder_NumbersFrames(t *testing.T) {
	enc := NewEncoder()
	a, b := NewAdvStop(), NewAdvStop()
	if _, err := enc.Encode(a); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Encode(b); err != nil {
		t.Fatal(err)
	}
	if a.Seq() != 1 || b.Seq() != 2 {
		t.Errorf("seq = %d, %d, want 1, 2", a.Seq(), b.Seq())
	}

	// explicit numbers are kept
	c := NewAck(77, 1)
	if _, err := enc.Encode(c); err != nil {
		t.Fatal(err)
	}
	if c.Seq() != 77 {
		t.Errorf("seq = %d, want 77", c.Seq())
	}
}

func TestEncoder_SeqSkipsZero(t *testing.T) {
	enc := &Encoder{nextSeq: 0xFFFF}
	if got := enc.NextSeq(); got != 0xFFFF {
		t.Errorf("NextSeq = %d, want 65535", got)
	}
	if got := enc.NextSeq(); got != 1 {
		t.Errorf("NextSeq after wrap = %d, want 1", got)
	}
}

func TestEncodeFrame_PayloadTooLarge(t *testing.T) {
	_, err := EncodeFrameFromValues(1, MsgAdvStart, map[int]interface{}{0: make([]byte, MaxPayloadSize)})
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected payload too large error, got %v", err)
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_ByteStuffing(t *testing.T) {
	// sequence number made of special bytes forces escapes in the header
	encoded, err := EncodeFrameFromValues(0x7D7E, MsgAdvStop, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Count(encoded, []byte{EscByte}) < 2 {
		t.Fatalf("expected escaped sequence bytes in %X", encoded)
	}

	frames := decodeAll(t, encoded)
	if len(frames) != 1 || frames[0].Seq() != 0x7D7E {
		t.Fatalf("decoded %v", frames)
	}

	body, err := UnstuffBytes(encoded[1 : len(encoded)-1])
	if err != nil {
		t.Fatal(err)
	}
	if body[1] != 0x7E || body[2] != 0x7D {
		t.Errorf("unstuffed seq bytes = %02X %02X", body[1], body[2])
	}
}

func TestUnstuffBytes_IncompleteEscape(t *testing.T) {
	if _, err := UnstuffBytes([]byte{0x01, EscByte}); err == nil {
		t.Error("expected error for trailing escape")
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	encoded := EncodeFrame(NewAck(1, 2))
	encoded[len(encoded)-2] ^= 0x01 // low CRC byte, never a special byte here

	d := NewDecoder()
	var gotErr error
	for _, b := range encoded {
		f, err := d.DecodeByte(b)
		if f != nil {
			t.Fatal("corrupt frame was accepted")
		}
		if err != nil {
			gotErr = err
		}
	}
	if gotErr == nil || !strings.HasPrefix(gotErr.Error(), "CRC mismatch: expected 0x") {
		t.Errorf("expected CRC mismatch, got %v", gotErr)
	}
}

func TestDecoder_InvalidLength(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(StartByte)
	if _, err := d.DecodeByte(MaxPayloadSize + 1); err == nil {
		t.Error("expected invalid length error")
	}
}

func TestDecoder_StartByteResetsState(t *testing.T) {
	good := EncodeFrame(NewAck(1, 2))
	data := append([]byte{StartByte, 0x05, 0x01}, good...)

	frames := decodeAll(t, data)
	if len(frames) != 1 || frames[0].Type() != MsgAck {
		t.Fatalf("expected one ACK frame, got %v", frames)
	}
}

func TestDecoder_GarbageAfterCRC(t *testing.T) {
	good := EncodeFrame(NewAdvStop())
	bad := append(append([]byte{}, good[:len(good)-1]...), 0x00, EndByte)

	frames, errs := NewDecoder().Decode(bad)
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
	if len(errs) == 0 {
		t.Error("expected an error for the extra byte")
	}
}

func TestDecoder_MultipleFrames(t *testing.T) {
	var stream []byte
	for i := uint16(1); i <= 3; i++ {
		stream = append(stream, EncodeFrame(NewAck(i, i))...)
	}
	frames := decodeAll(t, stream)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Seq() != uint16(i+1) {
			t.Errorf("frame %d seq = %d", i, f.Seq())
		}
	}
}

func TestDecoder_GetRawBytes(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(0x00)
	d.DecodeByte(StartByte)
	d.DecodeByte(0x00)
	raw := d.GetRawBytes()
	if !bytes.Equal(raw, []byte{StartByte, 0x00}) {
		t.Errorf("raw = %X", raw)
	}
}

// ============================================================
// Link Tests
// ============================================================

type failingWriter struct{ bytes.Buffer }

func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("port gone")
}

func TestLink_SendReceive(t *testing.T) {
	var buf bytes.Buffer
	l := NewLink(&buf)

	seq, err := l.Send(NewAdvStart([]byte{0x02, 0x01, 0x1A}, time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if _, err := l.Send(NewAdvStop()); err != nil {
		t.Fatal(err)
	}

	var decodeErrs []error
	onError := func(err error) { decodeErrs = append(decodeErrs, err) }

	f, err := l.Receive(onError)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type() != MsgAdvStart {
		t.Errorf("first frame = %s", FormatMessageType(f.Type()))
	}
	f, err = l.Receive(onError)
	if err != nil {
		t.Fatal(err)
	}
	if f.Type() != MsgAdvStop || f.Seq() != 2 {
		t.Errorf("second frame = %s seq %d", FormatMessageType(f.Type()), f.Seq())
	}
	if len(decodeErrs) != 0 {
		t.Errorf("unexpected decode errors: %v", decodeErrs)
	}

	// drained stream ends with the reader's error
	if _, err := l.Receive(onError); err == nil {
		t.Error("expected EOF")
	}
}

func TestLink_SendError(t *testing.T) {
	l := NewLink(&failingWriter{})
	_, err := l.Send(NewAdvStop())
	if err == nil || !strings.Contains(err.Error(), "ADV_STOP") {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  []AnomalyType
	}{
		{"valid adv start", NewAdvStart([]byte{1, 2, 3}, time.Second), nil},
		{"empty raw", NewAdvStart(nil, time.Second), []AnomalyType{AnomalyMissingField}},
		{"oversize raw", NewAdvStart(make([]byte, MaxRawAdvSize+1), time.Second), []AnomalyType{AnomalyOversizeRaw}},
		{"missing duration", NewFrameWithPayload(1, MsgAdvStart, map[int]interface{}{0: []byte{1}}), []AnomalyType{AnomalyMissingField}},
		{"bad rssi", NewCaptured(1, []byte{1}, 90), []AnomalyType{AnomalyInvalidValue}},
		{"ack without seq", NewFrameWithPayload(1, MsgAck, nil), []AnomalyType{AnomalyMissingField}},
		{"unknown type", NewFrameWithPayload(1, 0x99, nil), []AnomalyType{AnomalyUnknownType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// go through the wire so values carry decoded CBOR types
			frames := decodeAll(t, EncodeFrame(tt.frame))
			errs := ValidateFrame(frames[0])
			if len(errs) != len(tt.want) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.want))
			}
			for i, e := range errs {
				if e.Type != tt.want[i] {
					t.Errorf("error %d type = %d, want %d", i, e.Type, tt.want[i])
				}
				if e.Error() == "" {
					t.Errorf("error %d has empty message", i)
				}
			}
		})
	}
}

func TestValidateFrame_DecodeError(t *testing.T) {
	f := NewFrame(1, []byte{0xFF}, 0)
	errs := ValidateFrame(f)
	if len(errs) != 1 || errs[0].Type != AnomalyDecodeError {
		t.Errorf("expected decode error anomaly, got %v", errs)
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	frames := decodeAll(t, EncodeFrame(NewCaptured(12, []byte{0xAA, 0x98}, -40)))
	out := FormatFrame(frames[0])

	for _, want := range []string{"CAPTURED (0x30)", "seq=12", "Raw: AA.98 (2)", "RSSI: -40 dBm"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatPayloadMap(t *testing.T) {
	tests := []struct {
		msgType uint8
		m       map[int]interface{}
		want    string
	}{
		{MsgAdvStop, nil, "(no payload)"},
		{MsgPingResponse, map[int]interface{}{0: uint64(61000)}, "Uptime: 1m1s"},
		{MsgAck, map[int]interface{}{0: uint64(7)}, "Acked: 7"},
		{MsgError, map[int]interface{}{0: uint64(ErrCodeBusy), 1: "later"}, `BUSY (4), Message: "later"`},
		{MsgAdvStart, map[int]interface{}{0: []byte{}, 1: uint64(5)}, "Raw: (empty), Duration: 5 ms"},
	}
	for _, tt := range tests {
		t.Run(FormatMessageType(tt.msgType), func(t *testing.T) {
			if got := FormatPayloadMap(tt.msgType, tt.m); !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	f := decodeAll(t, EncodeFrame(NewAck(1, 2)))[0]

	s.Update(f, nil, nil)
	s.Update(nil, errors.New("CRC mismatch: expected 0x0000, got 0x0001"), nil)
	s.Update(nil, errors.New("invalid length: 200"), nil)
	s.Update(f, nil, []ValidationError{{Type: AnomalyUnknownType}})
	s.Update(f, nil, []ValidationError{{Type: AnomalyOversizeRaw}, {Type: AnomalyInvalidValue}})

	if s.TotalFrames != 5 || s.ValidFrames != 1 {
		t.Errorf("total=%d valid=%d, want 5 and 1", s.TotalFrames, s.ValidFrames)
	}
	if s.CRCErrors != 1 || s.DecodeErrors != 1 {
		t.Errorf("crc=%d decode=%d, want 1 and 1", s.CRCErrors, s.DecodeErrors)
	}
	if s.MalformedFrames != 1 || s.UnknownTypes != 1 {
		t.Errorf("malformed=%d unknown=%d, want 1 and 1", s.MalformedFrames, s.UnknownTypes)
	}
	if s.AnomalousValues != 2 || s.Errors() != 5 {
		t.Errorf("anomalous=%d errors=%d, want 2 and 5", s.AnomalousValues, s.Errors())
	}

	out := s.String()
	for _, want := range []string{"Total Frames:", "CRC Errors:", "Oversize Adv:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalFrames != 0 || s.Errors() != 0 {
		t.Errorf("Reset left counters: %+v", s)
	}
}
