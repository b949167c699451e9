// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a random number generator seeded from FUZZ_SEED or the clock
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Construction Tests
// ============================================================

func TestNewWireParam_WithFlags(t *testing.T) {
	wp := NewWireParam(0x19, ADTypeServiceData16)
	copy(wp.dataBuf(), []byte{0xF0, 0x08, 0x10})
	wp.SetDataLen(3)

	assert.Equal(t, []byte{0x02, 0x01, 0x19, 0x04, 0x16, 0xF0, 0x08, 0x10}, wp.Bytes())
	assert.True(t, wp.HasADFlag())
	assert.Equal(t, uint8(0x19), wp.ADFlag())
	assert.Equal(t, uint8(ADTypeServiceData16), wp.DataType())
	assert.Equal(t, []byte{0xF0, 0x08, 0x10}, wp.Data())
}

func TestNewWireParam_WithoutFlags(t *testing.T) {
	wp := NewWireParam(0, ADTypeManufacturer)
	wp.SetDataLen(2)

	assert.False(t, wp.HasADFlag())
	assert.Equal(t, uint8(0), wp.ADFlag())
	assert.Equal(t, []byte{0x03, 0xFF, 0x00, 0x00}, wp.Bytes())
}

func TestWireParam_SetDataLenClamped(t *testing.T) {
	wp := NewWireParam(0x1A, ADTypeManufacturer)
	wp.SetDataLen(100)
	assert.Equal(t, MaxPacketLen, wp.Len())
	assert.Equal(t, MaxPacketLen-5, wp.DataLen())
}

// ============================================================
// Parsing Tests
// ============================================================

func TestFromRaw(t *testing.T) {
	raw := []byte{0x02, 0x01, 0x1A, 0x05, 0xFF, 0xF9, 0x08, 0x49, 0x11}
	wp := FromRaw(raw)

	assert.True(t, wp.HasADFlag())
	assert.Equal(t, uint8(0x1A), wp.ADFlag())
	assert.Equal(t, uint8(ADTypeManufacturer), wp.DataType())
	assert.Equal(t, []byte{0xF9, 0x08, 0x49, 0x11}, wp.Data())
	assert.Equal(t, raw, wp.Bytes())
}

func TestFromRaw_TruncatedData(t *testing.T) {
	// declared 8 data bytes, only 2 captured
	wp := FromRaw([]byte{0x09, 0xFF, 0x01, 0x02})
	assert.Equal(t, 2, wp.DataLen())
}

func TestFromRaw_Oversize(t *testing.T) {
	raw := make([]byte, 40)
	wp := FromRaw(raw)
	assert.Equal(t, MaxPacketLen, wp.Len())
}

func TestFromHexString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []byte
	}{
		{"dotted with length", "02.01.1A.03.FF.AA.BB (7)", []byte{0x02, 0x01, 0x1A, 0x03, 0xFF, 0xAA, 0xBB}},
		{"prefixed", "0x02011A03FFAABB", []byte{0x02, 0x01, 0x1A, 0x03, 0xFF, 0xAA, 0xBB}},
		{"spaces", "02 01 1A", []byte{0x02, 0x01, 0x1A}},
		{"bad pair is zero", "02 ZZ 1A", []byte{0x02, 0x00, 0x1A}},
		{"odd trailing nibble dropped", "02011", []byte{0x02, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromHexString(tt.input).Bytes())
		})
	}
}

func TestFromHexString_Clamped(t *testing.T) {
	s := ""
	for i := 0; i < 40; i++ {
		s += "AB"
	}
	assert.Equal(t, MaxPacketLen, FromHexString(s).Len())
}

func TestFormatHex_RoundTrip(t *testing.T) {
	raw := []byte{0x02, 0x01, 0x19, 0x03, 0x03, 0x77, 0xF8}
	s := FormatHex(raw)
	assert.Equal(t, "02.01.19.03.03.77.F8 (7)", s)
	assert.Equal(t, raw, FromHexString(s).Bytes())
}

func TestWireParam_EqualAndClone(t *testing.T) {
	a := FromHexString("02.01.19.03.03.77.F8")
	b := a.Clone()
	require.True(t, a.Equal(b))
	require.True(t, a.DataEqual(b))

	b.buf[6] = 0x00
	assert.False(t, a.Equal(b))
	assert.False(t, a.DataEqual(b))
	assert.False(t, a.Equal(nil))
}

// ============================================================
// Fuzz Tests
// ============================================================

func TestFuzz_FromRaw(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		raw := make([]byte, rng.Intn(48))
		rng.Read(raw)

		wp := FromRaw(raw)
		if wp.Len() > MaxPacketLen {
			t.Fatalf("round %d: length %d exceeds maximum", i, wp.Len())
		}
		if wp.DataLen() > MaxPacketLen {
			t.Fatalf("round %d: data length %d exceeds maximum", i, wp.DataLen())
		}
		_ = wp.Data()
		_ = wp.ADFlag()
		_ = wp.DataType()
	}
}

func TestFuzz_FromHexString(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	const alphabet = "0123456789abcdefABCDEFxX .()-zZ"

	for i := 0; i < rounds; i++ {
		s := make([]byte, rng.Intn(90))
		for j := range s {
			s[j] = alphabet[rng.Intn(len(alphabet))]
		}
		wp := FromHexString(string(s))
		if wp.Len() > MaxPacketLen {
			t.Fatalf("round %d: %q parsed to %d bytes", i, s, wp.Len())
		}
	}
}
