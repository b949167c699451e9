// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture listens for advertisements sent by physical remotes and
// identifies the codec, command and controller parameters they carry.
package capture

import (
	"context"
	"time"
)

// Observation is one advertisement heard by a Source
type Observation struct {
	Time    time.Time
	Address string // sender address, empty when the source does not report one
	RSSI    int16
	Raw     []byte // BLE advertisement payload (TLV sequence)
}

// Source produces observations until ctx is cancelled or it fails
type Source interface {
	Observe(ctx context.Context, out chan<- Observation) error
}
