// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCRC16CCITT_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		initial  uint16
		expected uint16
	}{
		{"ASCII '123456789'", []byte("123456789"), 0xFFFF, 0x29B1},
		{"XMODEM '123456789'", []byte("123456789"), 0x0000, 0x31C3},
		{"empty", []byte{}, 0x1D0F, 0x1D0F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := CRC16CCITT(tt.data, tt.initial)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

func TestZhijiaCRC_X25(t *testing.T) {
	crc := zhijiaCRC([]byte("123456789"))
	if crc != 0x906E {
		t.Errorf("CRC mismatch: expected 0x906E, got 0x%04X", crc)
	}
}

func TestCRC16Reflected_Empty(t *testing.T) {
	if crc := CRC16Reflected(nil, 0xFFFF); crc != 0xFFFF {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

// ============================================================
// Whitening Tests
// ============================================================

func TestWhitenLFSR_SelfInverse(t *testing.T) {
	for seed := 0; seed < 256; seed++ {
		for n := 1; n <= MaxDataLen; n++ {
			orig := make([]byte, n)
			for i := range orig {
				orig[i] = byte(i*37 + seed)
			}
			buf := append([]byte(nil), orig...)
			WhitenLFSR(buf, uint8(seed))
			WhitenLFSR(buf, uint8(seed))
			if !bytes.Equal(buf, orig) {
				t.Fatalf("seed 0x%02X len %d: not restored: % X", seed, n, buf)
			}
		}
	}
}

func TestWhitenTable_SelfInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orig := rapid.SliceOfN(rapid.Byte(), 1, MaxDataLen).Draw(t, "buf")
		seed := rapid.Byte().Draw(t, "seed")
		salt := rapid.Byte().Draw(t, "salt")

		buf := append([]byte(nil), orig...)
		WhitenTable(buf, seed, salt)
		WhitenTable(buf, seed, salt)
		assert.Equal(t, orig, buf)
	})
}

func TestWhitenLFSR_PrefixStable(t *testing.T) {
	// whitening a prefix must match the head of whitening the whole buffer
	rapid.Check(t, func(t *rapid.T) {
		buf := rapid.SliceOfN(rapid.Byte(), 2, MaxDataLen).Draw(t, "buf")
		n := rapid.IntRange(1, len(buf)).Draw(t, "n")
		seed := rapid.Byte().Draw(t, "seed")

		whole := append([]byte(nil), buf...)
		WhitenLFSR(whole, seed)
		head := append([]byte(nil), buf[:n]...)
		WhitenLFSR(head, seed)
		assert.Equal(t, whole[:n], head)
	})
}

func TestWhitenLFSR_ZhijiaHeader(t *testing.T) {
	// the Zhijia v0/v1 header is the bit reversed 71 0F 55 sync word
	// whitened at the same stream position
	buf := []byte{ReverseBits(0x71), ReverseBits(0x0F), ReverseBits(0x55)}
	WhitenLFSR(buf, 0x79)
	assert.Equal(t, []byte{0xF9, 0x08, 0x49}, buf)
}

// ============================================================
// Bit Reversal Tests
// ============================================================

func TestReverseBits(t *testing.T) {
	tests := []struct{ in, out byte }{
		{0x00, 0x00},
		{0x01, 0x80},
		{0x0F, 0xF0},
		{0xAA, 0x55},
		{0x19, 0x98},
	}
	for _, tt := range tests {
		if got := ReverseBits(tt.in); got != tt.out {
			t.Errorf("ReverseBits(0x%02X): expected 0x%02X, got 0x%02X", tt.in, tt.out, got)
		}
	}
}

func TestReverseBitsAll_Involution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orig := rapid.SliceOf(rapid.Byte()).Draw(t, "buf")
		buf := append([]byte(nil), orig...)
		ReverseBitsAll(buf)
		ReverseBitsAll(buf)
		assert.Equal(t, orig, buf)
	})
}

func TestReverseBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	ReverseBytes(buf)
	assert.Equal(t, []byte{5, 4, 3, 2, 1}, buf)
}

// ============================================================
// Signature Tests
// ============================================================

func TestSignAES_Deterministic(t *testing.T) {
	plain := []byte{0x80, 0x00, 0x01, 0x00, 0x04, 0x34, 0x12, 0, 0, 0, 0x10, 0, 0, 0, 0, 0}
	a := SignAES(plain, 0x1234, 1)
	b := SignAES(plain, 0x1234, 1)
	assert.Equal(t, a, b)
	assert.NotZero(t, a)
}

func TestSignAES_KeyDependsOnTxAndSeed(t *testing.T) {
	plain := make([]byte, SignBlockSize)
	base := SignAES(plain, 0x1234, 1)
	assert.NotEqual(t, base, SignAES(plain, 0x1234, 2), "tx count is part of the key")
	assert.NotEqual(t, base, SignAES(plain, 0x4321, 1), "seed is part of the key")
}

func TestSignAES_NeverZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plain := rapid.SliceOfN(rapid.Byte(), SignBlockSize, SignBlockSize).Draw(t, "plain")
		seed := rapid.Uint16().Draw(t, "seed")
		tx := rapid.Uint8().Draw(t, "tx")
		assert.NotZero(t, SignAES(plain, seed, tx))
	})
}

// ============================================================
// Pivot Tests
// ============================================================

func TestZhijiaPivot(t *testing.T) {
	for x := 0; x < 256; x++ {
		got := zhijiaPivot(uint8(x))
		if x&1 == 1 && got != uint8(x) {
			t.Errorf("odd 0x%02X should pass through, got 0x%02X", x, got)
		}
		if x&1 == 0 && got != ^uint8(x) {
			t.Errorf("even 0x%02X should be inverted, got 0x%02X", x, got)
		}
	}
}
