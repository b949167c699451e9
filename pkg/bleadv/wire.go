// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// WireParam is one raw advertisement: the BLE TLV payload plus the index of
// its flags field, the index of the vendor data field and the requested
// on-air duration.
type WireParam struct {
	buf       [MaxPacketLen]byte
	length    int
	flagIndex int // -1 without a flags TLV
	dataIndex int // -1 without a vendor data TLV
	Duration  time.Duration
}

// NewWireParam prepares an advertisement with an optional flags TLV
// (adFlag != 0) followed by a data TLV of type dataType.
func NewWireParam(adFlag, dataType uint8) *WireParam {
	wp := &WireParam{flagIndex: -1}
	if adFlag != 0 {
		wp.flagIndex = 0
		wp.buf[0] = 2
		wp.buf[1] = ADTypeFlags
		wp.buf[2] = adFlag
		wp.dataIndex = 3
	}
	wp.buf[wp.dataIndex+1] = dataType
	wp.length = wp.dataIndex + 2
	return wp
}

// FromRaw wraps a captured advertisement, locating the flags and vendor data
// TLVs. Input beyond MaxPacketLen is dropped.
func FromRaw(raw []byte) *WireParam {
	wp := &WireParam{flagIndex: -1, dataIndex: -1}
	wp.length = copy(wp.buf[:], raw)

	cur := 0
	for cur+2 < wp.length {
		sub := int(wp.buf[cur])
		switch wp.buf[cur+1] {
		case ADTypeFlags:
			wp.flagIndex = cur
		case ADTypeManufacturer, ADTypeComplete16BitIDs, ADTypeServiceData16:
			wp.dataIndex = cur
		}
		cur += sub + 1
	}
	return wp
}

// FromHexString parses a hex dump such as "02.01.19.1B.03 (31)" or
// "0x0201191B03". Text after '(' is ignored, '.' and ' ' separators are
// removed and the result is clamped to MaxPacketLen. Malformed pairs
// decode as zero.
func FromHexString(s string) *WireParam {
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	s = strings.NewReplacer(".", "", " ", "").Replace(s)
	s = strings.TrimPrefix(s, "0x")

	n := min(len(s)/2, MaxPacketLen)
	raw := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			log.Debug().Str("pair", s[2*i:2*i+2]).Int("offset", i).Msg("invalid hex pair")
			continue
		}
		raw[i] = byte(v)
	}
	return FromRaw(raw)
}

// SetDataLen records n vendor data bytes in the data TLV header and updates
// the advertisement length.
func (w *WireParam) SetDataLen(n int) {
	n = min(n, MaxPacketLen-w.dataIndex-2)
	w.buf[w.dataIndex] = byte(n + 1)
	w.length = w.dataIndex + 2 + n
}

// dataBuf exposes the writable area following the data TLV header
func (w *WireParam) dataBuf() []byte {
	return w.buf[w.dataIndex+2:]
}

// HasData reports whether a non-empty vendor data TLV is present
func (w *WireParam) HasData() bool {
	return w.DataLen() > 0
}

// DataLen returns the vendor data length declared by its TLV, bounded by the captured length
func (w *WireParam) DataLen() int {
	if w.dataIndex < 0 || w.dataIndex+2 > w.length {
		return 0
	}
	n := int(w.buf[w.dataIndex]) - 1
	if avail := w.length - w.dataIndex - 2; n > avail {
		n = avail
	}
	return max(n, 0)
}

// Data returns a copy of the vendor data bytes
func (w *WireParam) Data() []byte {
	n := w.DataLen()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, w.buf[w.dataIndex+2:])
	return out
}

// Bytes returns a copy of the full advertisement payload
func (w *WireParam) Bytes() []byte {
	out := make([]byte, w.length)
	copy(out, w.buf[:w.length])
	return out
}

// Len returns the advertisement payload length
func (w *WireParam) Len() int {
	return w.length
}

// HasADFlag reports whether a flags TLV is present
func (w *WireParam) HasADFlag() bool {
	return w.flagIndex >= 0
}

// ADFlag returns the BLE flags value, 0 if absent
func (w *WireParam) ADFlag() uint8 {
	if w.flagIndex < 0 || w.flagIndex+2 >= w.length {
		return 0
	}
	return w.buf[w.flagIndex+2]
}

// DataType returns the AD type of the vendor data TLV, 0 if absent
func (w *WireParam) DataType() uint8 {
	if w.dataIndex < 0 || w.dataIndex+1 >= w.length {
		return 0
	}
	return w.buf[w.dataIndex+1]
}

// Equal compares the advertisement payloads
func (w *WireParam) Equal(o *WireParam) bool {
	return o != nil && bytes.Equal(w.buf[:w.length], o.buf[:o.length])
}

// DataEqual compares the vendor data regions
func (w *WireParam) DataEqual(o *WireParam) bool {
	return o != nil && bytes.Equal(w.Data(), o.Data())
}

// Clone returns an independent copy
func (w *WireParam) Clone() *WireParam {
	c := *w
	return &c
}
