// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advertiser

import (
	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/advlink"
	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// FrameSender writes link frames to an advertising bridge
type FrameSender interface {
	Send(f *advlink.Frame) (uint16, error)
}

// LinkRadio advertises through an external bridge by sending ADV_START and
// ADV_STOP frames. Bridge replies are not awaited.
type LinkRadio struct {
	link FrameSender
}

// NewLinkRadio creates a radio writing to link
func NewLinkRadio(link FrameSender) *LinkRadio {
	return &LinkRadio{link: link}
}

func (r *LinkRadio) Start(wp *bleadv.WireParam) error {
	seq, err := r.link.Send(advlink.NewAdvStart(wp.Bytes(), wp.Duration))
	if err != nil {
		return err
	}
	log.Trace().Uint16("seq", seq).Str("raw", bleadv.FormatHex(wp.Bytes())).Msg("link adv start")
	return nil
}

func (r *LinkRadio) Stop() error {
	_, err := r.link.Send(advlink.NewAdvStop())
	return err
}
