// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !linux

package cmd

import (
	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

func hostAdapter(id string) *bluetooth.Adapter {
	if id != "" {
		log.Warn().Str("adapter", id).Msg("adapter selection is only supported on linux, using the default")
	}
	return bluetooth.DefaultAdapter
}
