// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

const (
	crcPolynomial          = 0x1021
	crcPolynomialReflected = 0x8408
	crcZhijiaInitial       = 0xFFFF
)

// CRC16CCITT computes a bit-at-a-time MSB-first CRC-16 with polynomial 0x1021
// and no final XOR. FanLamp packets seed it with the complement of the packet seed.
func CRC16CCITT(data []byte, initial uint16) uint16 {
	crc := initial
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC16Reflected computes an LSB-first CRC-16 with the reflected polynomial 0x8408.
func CRC16Reflected(data []byte, initial uint16) uint16 {
	crc := initial
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomialReflected
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// zhijiaCRC is the Zhijia checksum over the in-buffer address and payload.
func zhijiaCRC(data []byte) uint16 {
	return CRC16Reflected(data, crcZhijiaInitial) ^ 0xFFFF
}
