// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advertiser

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// ErrUnsupportedADType is returned for vendor data the host stack cannot advertise
var ErrUnsupportedADType = errors.New("unsupported AD type")

// DefaultInterval is the advertising interval used when none is configured
const DefaultInterval = 20 * time.Millisecond

// BluetoothRadio advertises through the host Bluetooth adapter. The host
// stack owns the flags field, so only the vendor data TLV is reproduced.
type BluetoothRadio struct {
	adapter  *bluetooth.Adapter
	adv      *bluetooth.Advertisement
	interval time.Duration
	active   bool
}

// NewBluetoothRadio enables adapter and prepares its default advertisement
func NewBluetoothRadio(adapter *bluetooth.Adapter, interval time.Duration) (*BluetoothRadio, error) {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth: %w", err)
	}
	return &BluetoothRadio{
		adapter:  adapter,
		adv:      adapter.DefaultAdvertisement(),
		interval: interval,
	}, nil
}

// AdvertisementOptions maps the vendor data TLV of wp onto advertisement options
func AdvertisementOptions(wp *bleadv.WireParam, interval time.Duration) (bluetooth.AdvertisementOptions, error) {
	opts := bluetooth.AdvertisementOptions{
		AdvertisementType: bluetooth.AdvertisingTypeNonConnInd,
		Interval:          bluetooth.NewDuration(interval),
	}

	data := wp.Data()
	switch wp.DataType() {
	case bleadv.ADTypeManufacturer:
		if len(data) < 2 {
			return opts, fmt.Errorf("manufacturer data too short: %d bytes", len(data))
		}
		opts.ManufacturerData = []bluetooth.ManufacturerDataElement{{
			CompanyID: binary.LittleEndian.Uint16(data[0:2]),
			Data:      data[2:],
		}}
	case bleadv.ADTypeServiceData16:
		if len(data) < 2 {
			return opts, fmt.Errorf("service data too short: %d bytes", len(data))
		}
		opts.ServiceData = []bluetooth.ServiceDataElement{{
			UUID: bluetooth.New16BitUUID(binary.LittleEndian.Uint16(data[0:2])),
			Data: data[2:],
		}}
	case bleadv.ADTypeComplete16BitIDs:
		if len(data)%2 != 0 {
			return opts, fmt.Errorf("odd 16-bit UUID list length: %d", len(data))
		}
		for i := 0; i < len(data); i += 2 {
			opts.ServiceUUIDs = append(opts.ServiceUUIDs, bluetooth.New16BitUUID(binary.LittleEndian.Uint16(data[i:i+2])))
		}
	default:
		return opts, fmt.Errorf("%w: 0x%02X", ErrUnsupportedADType, wp.DataType())
	}
	return opts, nil
}

// Start implements Radio
func (r *BluetoothRadio) Start(wp *bleadv.WireParam) error {
	opts, err := AdvertisementOptions(wp, r.interval)
	if err != nil {
		return err
	}
	if err := r.adv.Configure(opts); err != nil {
		return fmt.Errorf("failed to configure advertisement: %w", err)
	}
	if err := r.adv.Start(); err != nil {
		return fmt.Errorf("failed to start advertisement: %w", err)
	}
	r.active = true
	log.Trace().Str("raw", bleadv.FormatHex(wp.Bytes())).Msg("bluetooth advertising")
	return nil
}

// Stop implements Radio
func (r *BluetoothRadio) Stop() error {
	if !r.active {
		return nil
	}
	r.active = false
	if err := r.adv.Stop(); err != nil {
		return fmt.Errorf("failed to stop advertisement: %w", err)
	}
	return nil
}
