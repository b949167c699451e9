// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// Result is an identified observation
type Result struct {
	Observation
	ID *bleadv.Identification
}

// Listener identifies observations against a registry
type Listener struct {
	registry  *bleadv.Registry
	ignoreBLE bool
	history   *History

	// Counters
	Observed     uint64
	Duplicates   uint64
	Unidentified uint64
	Identified   uint64
}

// NewListener creates a listener. When ignoreBLE is set, codecs are tried
// regardless of the captured flags and AD type. history may be nil.
func NewListener(registry *bleadv.Registry, ignoreBLE bool, history *History) *Listener {
	return &Listener{
		registry:  registry,
		ignoreBLE: ignoreBLE,
		history:   history,
	}
}

// Process identifies obs. It returns false for repeats and for
// advertisements no codec accepts.
func (l *Listener) Process(obs Observation) (Result, bool) {
	l.Observed++
	if l.history != nil && l.history.Seen(obs.Raw, obs.Time) {
		l.Duplicates++
		return Result{}, false
	}

	wp := bleadv.FromRaw(obs.Raw)
	if !wp.HasData() {
		l.Unidentified++
		return Result{}, false
	}

	// payloads rebuilt by the host stack carry no flags field
	ignoreBLE := l.ignoreBLE || !wp.HasADFlag()
	id, ok := l.registry.Identify(wp, ignoreBLE)
	if !ok {
		l.Unidentified++
		log.Trace().Str("raw", bleadv.FormatHex(obs.Raw)).Msg("unidentified advertisement")
		return Result{}, false
	}

	l.Identified++
	log.Debug().
		Str("codec", id.Codec.ID()).
		Str("address", obs.Address).
		Int16("rssi", obs.RSSI).
		Str("command", id.Command.String()).
		Bool("no_diff", id.NoDiff).
		Msg("advertisement identified")
	return Result{Observation: obs, ID: id}, true
}

// Run reads src and sends every identified observation to results until ctx
// is cancelled or src fails. results is not closed.
func (l *Listener) Run(ctx context.Context, src Source, results chan<- Result) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	observations := make(chan Observation, 64)
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- src.Observe(ctx, observations)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-srcErr:
			// deliver what the source produced before it stopped
			for {
				select {
				case obs := <-observations:
					if !l.deliver(ctx, obs, results) {
						return ctx.Err()
					}
					continue
				default:
				}
				break
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return err
		case obs := <-observations:
			if !l.deliver(ctx, obs, results) {
				return ctx.Err()
			}
		}
	}
}

// deliver processes obs and forwards a result; false when ctx ended first
func (l *Listener) deliver(ctx context.Context, obs Observation, results chan<- Result) bool {
	res, ok := l.Process(obs)
	if !ok {
		return true
	}
	select {
	case results <- res:
		return true
	case <-ctx.Done():
		return false
	}
}
