// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

// xboxes is the FanLamp v2 whitening table: four rows of 32 bytes selected by salt.
var xboxes = [128]byte{
	0xB7, 0xFD, 0x93, 0x26, 0x36, 0x3F, 0xF7, 0xCC,
	0x34, 0xA5, 0xE5, 0xF1, 0x71, 0xD8, 0x31, 0x15,
	0x04, 0xC7, 0x23, 0xC3, 0x18, 0x96, 0x05, 0x9A,
	0x07, 0x12, 0x80, 0xE2, 0xEB, 0x27, 0xB2, 0x75,
	0xD0, 0xEF, 0xAA, 0xFB, 0x43, 0x4D, 0x33, 0x85,
	0x45, 0xF9, 0x02, 0x7F, 0x50, 0x3C, 0x9F, 0xA8,
	0x51, 0xA3, 0x40, 0x8F, 0x92, 0x9D, 0x38, 0xF5,
	0xBC, 0xB6, 0xDA, 0x21, 0x10, 0xFF, 0xF3, 0xD2,
	0xE0, 0x32, 0x3A, 0x0A, 0x49, 0x06, 0x24, 0x5C,
	0xC2, 0xD3, 0xAC, 0x62, 0x91, 0x95, 0xE4, 0x79,
	0xE7, 0xC8, 0x37, 0x6D, 0x8D, 0xD5, 0x4E, 0xA9,
	0x6C, 0x56, 0xF4, 0xEA, 0x65, 0x7A, 0xAE, 0x08,
	0xE1, 0xF8, 0x98, 0x11, 0x69, 0xD9, 0x8E, 0x94,
	0x9B, 0x1E, 0x87, 0xE9, 0xCE, 0x55, 0x28, 0xDF,
	0x8C, 0xA1, 0x89, 0x0D, 0xBF, 0xE6, 0x42, 0x68,
	0x41, 0x99, 0x2D, 0x0F, 0xB0, 0x54, 0xBB, 0x16,
}

// WhitenLFSR XORs buf with the stream of a 7-bit LFSR (feedback 0x11) seeded
// with seed. Bit j of each output byte is the register carry after j+1 shifts.
// Applying it twice with the same seed restores the input. Only the low
// seven bits of seed are significant.
func WhitenLFSR(buf []byte, seed uint8) {
	r := seed
	for i := range buf {
		var b byte
		for j := 0; j < 8; j++ {
			r <<= 1
			if r&0x80 != 0 {
				r ^= 0x11
				b |= 1 << j
			}
			r &= 0x7F
		}
		buf[i] ^= b
	}
}

// WhitenTable XORs each byte of buf with an xboxes entry and with seed.
// It is its own inverse.
func WhitenTable(buf []byte, seed, salt uint8) {
	row := int(salt&0x03) * 0x20
	for i := range buf {
		buf[i] ^= xboxes[(int(seed)+i+9)&0x1F+row]
		buf[i] ^= seed
	}
}

// ReverseBits mirrors the bit order of one byte.
func ReverseBits(x byte) byte {
	x = (x&0x55)<<1 | (x&0xAA)>>1
	x = (x&0x33)<<2 | (x&0xCC)>>2
	x = (x&0x0F)<<4 | (x&0xF0)>>4
	return x
}

// ReverseBitsAll mirrors the bit order of every byte of buf in place.
func ReverseBitsAll(buf []byte) {
	for i := range buf {
		buf[i] = ReverseBits(buf[i])
	}
}

// ReverseBytes reverses the byte order of buf in place.
func ReverseBytes(buf []byte) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}
