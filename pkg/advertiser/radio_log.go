// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advertiser

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// LogRadio only logs what would be advertised. It backs the "log" driver
// used for dry runs.
type LogRadio struct{}

func (LogRadio) Start(wp *bleadv.WireParam) error {
	log.Info().
		Str("raw", bleadv.FormatHex(wp.Bytes())).
		Dur("duration", wp.Duration).
		Msg("adv start")
	return nil
}

func (LogRadio) Stop() error {
	log.Info().Msg("adv stop")
	return nil
}

// RadioCall is one recorded radio operation
type RadioCall struct {
	Start bool
	Raw   []byte
}

// RecordingRadio records every call, for tests and the monitor view.
// StartErr and StopErr are returned by the next calls when set.
type RecordingRadio struct {
	mu       sync.Mutex
	calls    []RadioCall
	onAir    bool
	StartErr error
	StopErr  error
}

func (r *RecordingRadio) Start(wp *bleadv.WireParam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RadioCall{Start: true, Raw: wp.Bytes()})
	r.onAir = true
	return r.StartErr
}

func (r *RecordingRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RadioCall{})
	r.onAir = false
	return r.StopErr
}

// Calls returns the recorded calls in order
func (r *RecordingRadio) Calls() []RadioCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RadioCall(nil), r.calls...)
}

// Started returns the payloads passed to Start in order
func (r *RecordingRadio) Started() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]byte
	for _, c := range r.calls {
		if c.Start {
			out = append(out, c.Raw)
		}
	}
	return out
}

// Counts returns the number of Start and Stop calls
func (r *RecordingRadio) Counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Start {
			starts++
		} else {
			stops++
		}
	}
	return starts, stops
}

// OnAir reports whether the last call was a Start
func (r *RecordingRadio) OnAir() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onAir
}
