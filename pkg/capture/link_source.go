// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/advlink"
)

// FrameReceiver is the receiving half of an advlink.Link
type FrameReceiver interface {
	Receive(onError func(error)) (*advlink.Frame, error)
}

// LinkSource observes advertisements captured by a radio bridge. Receive
// blocks on the underlying stream, so the caller closes the stream to end
// Observe early.
type LinkSource struct {
	link    FrameReceiver
	address string
}

// NewLinkSource creates a source reading link. address labels observations.
func NewLinkSource(link FrameReceiver, address string) *LinkSource {
	return &LinkSource{link: link, address: address}
}

// Observe implements Source
func (s *LinkSource) Observe(ctx context.Context, out chan<- Observation) error {
	onError := func(err error) {
		log.Debug().Err(err).Msg("link decode error")
	}

	for ctx.Err() == nil {
		f, err := s.link.Receive(onError)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		switch f.Type() {
		case advlink.MsgCaptured:
			raw, ok := advlink.GetMapBytes(f.PayloadMap(), 0)
			if !ok || len(raw) == 0 {
				log.Warn().Uint16("seq", f.Seq()).Msg("captured frame without payload")
				continue
			}
			rssi, _ := advlink.GetMapInt(f.PayloadMap(), 1)
			obs := Observation{
				Time:    f.Timestamp(),
				Address: s.address,
				RSSI:    int16(rssi),
				Raw:     raw,
			}
			if obs.Time.IsZero() {
				obs.Time = time.Now()
			}
			select {
			case out <- obs:
			case <-ctx.Done():
			}
		case advlink.MsgError:
			code, _ := advlink.GetMapUint(f.PayloadMap(), 0)
			msg, _ := advlink.GetMapString(f.PayloadMap(), 1)
			log.Warn().Str("code", advlink.FormatErrorCode(code)).Str("message", msg).Msg("bridge error")
		default:
			log.Trace().Str("type", advlink.FormatMessageType(f.Type())).Uint16("seq", f.Seq()).Msg("link frame ignored")
		}
	}
	return ctx.Err()
}
