// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"crypto/aes"
	"encoding/binary"
)

// SignBlockSize is the plaintext length covered by SignAES.
const SignBlockSize = aes.BlockSize

// signKeyTail holds the fixed bytes 3..15 of the signing key.
var signKeyTail = [13]byte{0x0D, 0xBF, 0xE6, 0x42, 0x68, 0x41, 0x99, 0x2D, 0x0F, 0xB0, 0x54, 0xBB, 0x16}

// SignAES computes the FanLamp v3 signature of a 16 byte block.
// The key is {seed lo, seed hi, txCount} followed by signKeyTail. The result
// is the little endian first word of the AES-128 ciphertext; 0 is reserved
// for unsigned packets and is replaced by 0xFFFF.
func SignAES(plain []byte, seed uint16, txCount uint8) uint16 {
	var key [16]byte
	key[0] = byte(seed)
	key[1] = byte(seed >> 8)
	key[2] = txCount
	copy(key[3:], signKeyTail[:])

	// NewCipher only fails on a bad key length
	block, _ := aes.NewCipher(key[:])

	var in, out [aes.BlockSize]byte
	copy(in[:], plain)
	block.Encrypt(out[:], in[:])

	sign := binary.LittleEndian.Uint16(out[0:2])
	if sign == 0 {
		return 0xFFFF
	}
	return sign
}
