// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// Scanner observes advertisements through the host Bluetooth adapter
type Scanner struct {
	adapter *bluetooth.Adapter
}

// NewScanner enables adapter, or the default adapter when nil
func NewScanner(adapter *bluetooth.Adapter) (*Scanner, error) {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	return &Scanner{adapter: adapter}, nil
}

// Observe implements Source. Scanning stops when ctx is cancelled.
func (s *Scanner) Observe(ctx context.Context, out chan<- Observation) error {
	stop := context.AfterFunc(ctx, func() {
		if err := s.adapter.StopScan(); err != nil {
			log.Warn().Err(err).Msg("failed to stop scan")
		}
	})
	defer stop()

	log.Info().Msg("scanning for advertisements")
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		raw := result.AdvertisementPayload.Bytes()
		if len(raw) == 0 {
			raw = RebuildPayload(result.ManufacturerData(), result.ServiceData())
		}
		if len(raw) == 0 {
			return
		}
		select {
		case out <- Observation{
			Time:    time.Now(),
			Address: result.Address.String(),
			RSSI:    result.RSSI,
			Raw:     raw,
		}:
		case <-ctx.Done():
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return ctx.Err()
}

// RebuildPayload reconstructs the vendor TLVs of an advertisement from the
// fields reported by a host stack that hides the raw bytes. The flags field
// is not reported and is left out. Service data with 128-bit UUIDs is
// skipped.
func RebuildPayload(mfg []bluetooth.ManufacturerDataElement, svc []bluetooth.ServiceDataElement) []byte {
	var raw []byte
	appendTLV := func(adType uint8, id uint16, data []byte) {
		if len(raw)+4+len(data) > bleadv.MaxPacketLen {
			return
		}
		raw = append(raw, byte(len(data)+3), adType)
		raw = binary.LittleEndian.AppendUint16(raw, id)
		raw = append(raw, data...)
	}

	for _, m := range mfg {
		appendTLV(bleadv.ADTypeManufacturer, m.CompanyID, m.Data)
	}
	for _, s := range svc {
		if !s.UUID.Is16Bit() {
			continue
		}
		appendTLV(bleadv.ADTypeServiceData16, s.UUID.Get16Bit(), s.Data)
	}
	return raw
}
