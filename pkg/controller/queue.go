// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// Entry is one queued command, already encoded
type Entry struct {
	Kind    bleadv.CommandKind
	Packets []*bleadv.WireParam
}

// Queue is the outbound queue of one controller. It is not safe for
// concurrent use; the owning Controller serializes access.
type Queue struct {
	entries []Entry
}

// PacketDuration returns the on-air duration of each packet: seq when it is
// set and shorter than minTx, minTx otherwise.
func PacketDuration(seq, minTx time.Duration) time.Duration {
	if seq > 0 && seq < minTx {
		return seq
	}
	return minTx
}

// supersedes reports whether a new command of kind replaces pending ones.
// Custom commands and the combined on/off/speed command carry different
// meanings under one kind, so they accumulate.
func supersedes(kind bleadv.CommandKind) bool {
	return kind != bleadv.CmdCustom && kind != bleadv.CmdFanOnOffSpeed
}

// Enqueue encodes cmd with codec and appends it. Pending entries of the same
// kind are dropped first. It returns false, leaving the queue and params
// untouched, when codec does not support cmd.
func (q *Queue) Enqueue(codec bleadv.Codec, cmd bleadv.Command, params *bleadv.ControllerParams, duration time.Duration) bool {
	if !codec.IsSupported(cmd) {
		log.Warn().Str("codec", codec.ID()).Stringer("command", cmd.Kind).Msg("unsupported command")
		return false
	}

	if supersedes(cmd.Kind) {
		kept := q.entries[:0]
		for _, e := range q.entries {
			if e.Kind != cmd.Kind {
				kept = append(kept, e)
			}
		}
		if removed := len(q.entries) - len(kept); removed > 0 {
			log.Debug().Stringer("command", cmd.Kind).Int("removed", removed).Msg("superseded pending commands")
		}
		clear(q.entries[len(kept):])
		q.entries = kept
	}

	packets := codec.Encode(cmd, params)
	for _, wp := range packets {
		wp.Duration = duration
	}
	q.entries = append(q.entries, Entry{Kind: cmd.Kind, Packets: packets})
	return true
}

// DequeueFront pops the oldest entry
func (q *Queue) DequeueFront() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	return e, true
}

// Len returns the number of pending entries
func (q *Queue) Len() int {
	return len(q.entries)
}

// Kinds returns the kinds of the pending entries in order
func (q *Queue) Kinds() []bleadv.CommandKind {
	kinds := make([]bleadv.CommandKind, len(q.entries))
	for i, e := range q.entries {
		kinds[i] = e.Kind
	}
	return kinds
}

// Clear drops every pending entry
func (q *Queue) Clear() {
	q.entries = nil
}
