// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/internal/config"
	"github.com/Thermoquad/advcast/internal/db"
	"github.com/Thermoquad/advcast/pkg/advlink"
	"github.com/Thermoquad/advcast/pkg/capture"
)

// closeOnDone closes the bridge connection when ctx ends so that blocked
// link reads return
func (a *app) closeOnDone(ctx context.Context) {
	if a.conn == nil {
		return
	}
	context.AfterFunc(ctx, func() {
		a.conn.Close()
	})
}

func (a *app) captureSource() (capture.Source, error) {
	switch a.cfg.Capture.Source {
	case config.SourceLink:
		if a.link == nil {
			return nil, fmt.Errorf("link capture needs a bridge connection")
		}
		return capture.NewLinkSource(a.link, a.connInfo), nil
	default:
		return capture.NewScanner(hostAdapter(a.cfg.Radio.Adapter))
	}
}

// runCapture identifies advertisements until ctx ends, recording each one
// when a state database is open and handing it to onResult
func (a *app) runCapture(ctx context.Context, onResult func(capture.Result)) error {
	src, err := a.captureSource()
	if err != nil {
		return err
	}

	var captures *db.CaptureLog
	if a.db != nil {
		captures = db.NewCaptureLog(a.db)
	}

	history := capture.NewHistory(a.cfg.Capture.DedupeTTL.Duration())
	listener := capture.NewListener(a.registry, a.cfg.Capture.IgnoreBLEParam, history)
	results := make(chan capture.Result, 16)

	errc := make(chan error, 1)
	go func() {
		errc <- listener.Run(ctx, src, results)
	}()

	handle := func(res capture.Result) {
		if captures != nil {
			if err := captures.Record(res.Time, res.ID); err != nil {
				log.Error().Err(err).Msg("failed to record capture")
			}
		}
		if onResult != nil {
			onResult(res)
		}
	}

	for {
		select {
		case res := <-results:
			handle(res)
		case err := <-errc:
			for {
				select {
				case res := <-results:
					handle(res)
					continue
				default:
				}
				break
			}
			log.Info().
				Uint64("observed", listener.Observed).
				Uint64("identified", listener.Identified).
				Uint64("duplicates", listener.Duplicates).
				Msg("capture stopped")
			return err
		}
	}
}

// linkNeedsDrain reports whether bridge frames have no other reader
func (a *app) linkNeedsDrain() bool {
	if a.link == nil {
		return false
	}
	return !a.cfg.Capture.Enabled || a.cfg.Capture.Source != config.SourceLink
}

// drainLink reads bridge replies when nothing else consumes the link
func (a *app) drainLink(ctx context.Context) error {
	if a.link == nil {
		return nil
	}
	for ctx.Err() == nil {
		f, err := a.link.Receive(func(err error) {
			log.Debug().Err(err).Msg("link decode error")
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("bridge connection lost: %w", err)
		}
		switch f.Type() {
		case advlink.MsgError:
			code, _ := advlink.GetMapUint(f.PayloadMap(), 0)
			msg, _ := advlink.GetMapString(f.PayloadMap(), 1)
			log.Warn().Str("code", advlink.FormatErrorCode(code)).Str("message", msg).Msg("bridge error")
		default:
			log.Trace().Str("type", advlink.FormatMessageType(f.Type())).Uint16("seq", f.Seq()).Msg("bridge reply")
		}
	}
	return nil
}
