// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package advertiser multiplexes advertisement batches from many controllers
// onto one radio. At most one advertisement is on air at any time; batches
// are served round-robin and removal is deferred until the current packet
// has been visible for its full duration.
package advertiser

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// Radio advertises one raw advertisement at a time
type Radio interface {
	// Start configures and starts advertising wp until Stop is called
	Start(wp *bleadv.WireParam) error
	Stop() error
}

// Token identifies a batch added to the scheduler
type Token uint64

// State of the scheduler
type State int

const (
	StateIdle State = iota
	StateBroadcasting
)

func (s State) String() string {
	if s == StateBroadcasting {
		return "BROADCASTING"
	}
	return "IDLE"
}

type pending struct {
	token         Token
	wp            *bleadv.WireParam
	processedOnce bool
	toBeRemoved   bool
}

// Scheduler owns the advertisement FIFO and drives the radio
type Scheduler struct {
	mu        sync.Mutex
	radio     Radio
	clock     func() time.Time
	queue     []*pending
	nextToken Token
	state     State
	deadline  time.Time
	stats     *Statistics
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests and replay
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// NewScheduler creates an idle scheduler driving radio
func NewScheduler(radio Radio, opts ...Option) *Scheduler {
	s := &Scheduler{
		radio: radio,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats = NewStatistics(s.clock())
	return s
}

// AddBatch appends packets under a fresh token. Tokens increase from 1.
func (s *Scheduler) AddBatch(packets []*bleadv.WireParam) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextToken++
	token := s.nextToken
	for _, wp := range packets {
		s.queue = append(s.queue, &pending{token: token, wp: wp})
	}
	s.stats.PacketsQueued += uint64(len(packets))
	s.stats.Update(s.clock(), EventBatchAdded, nil)

	log.Debug().Uint64("token", uint64(token)).Int("packets", len(packets)).Msg("batch added")
	return token
}

// RemoveBatch marks every packet of token for removal. Packets are evicted
// by Tick once they have been advertised at least once.
func (s *Scheduler) RemoveBatch(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for _, p := range s.queue {
		if p.token == token {
			p.toBeRemoved = true
			marked++
		}
	}
	s.stats.Update(s.clock(), EventBatchRemoved, nil)
	log.Debug().Uint64("token", uint64(token)).Int("packets", marked).Msg("batch removal requested")
}

// Tick advances the state machine to now
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		s.evictProcessed(now)
		if len(s.queue) == 0 {
			return
		}
		front := s.queue[0]
		err := s.radio.Start(front.wp)
		if err != nil {
			log.Error().Err(err).Uint64("token", uint64(front.token)).Msg("radio start failed")
		}
		s.stats.Update(now, EventStart, err)
		front.processedOnce = true
		s.state = StateBroadcasting
		s.deadline = now.Add(front.wp.Duration)
		log.Trace().
			Uint64("token", uint64(front.token)).
			Str("raw", bleadv.FormatHex(front.wp.Bytes())).
			Dur("duration", front.wp.Duration).
			Msg("advertising")

	case StateBroadcasting:
		front := s.queue[0]
		if !now.After(s.deadline) || (len(s.queue) == 1 && !front.toBeRemoved) {
			return
		}
		err := s.radio.Stop()
		if err != nil {
			log.Error().Err(err).Uint64("token", uint64(front.token)).Msg("radio stop failed")
		}
		s.stats.Update(now, EventStop, err)
		s.state = StateIdle

		s.queue = s.queue[1:]
		if front.toBeRemoved {
			s.stats.Update(now, EventEvict, nil)
		} else {
			s.queue = append(s.queue, front)
			s.stats.Update(now, EventRotate, nil)
		}
	}
}

// evictProcessed drops every packet already advertised and marked for removal
func (s *Scheduler) evictProcessed(now time.Time) {
	kept := s.queue[:0]
	for _, p := range s.queue {
		if p.processedOnce && p.toBeRemoved {
			s.stats.Update(now, EventEvict, nil)
			continue
		}
		kept = append(kept, p)
	}
	clear(s.queue[len(kept):])
	s.queue = kept
}

// Run ticks the scheduler every interval until ctx is cancelled, then stops
// the radio if a packet is on air.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			s.Tick(s.clock())
		}
	}
}

// Shutdown stops the radio if broadcasting and drops every pending packet
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateBroadcasting {
		err := s.radio.Stop()
		if err != nil {
			log.Error().Err(err).Msg("radio stop failed")
		}
		s.stats.Update(s.clock(), EventStop, err)
		s.state = StateIdle
	}
	s.queue = nil
}

// Now returns the scheduler clock reading
func (s *Scheduler) Now() time.Time {
	return s.clock()
}

// PendingView is a read-only copy of one queued advertisement
type PendingView struct {
	Token         Token
	Raw           []byte
	Duration      time.Duration
	ProcessedOnce bool
	ToBeRemoved   bool
}

// Snapshot is a read-only copy of the scheduler state
type Snapshot struct {
	State    State
	Deadline time.Time
	Pending  []PendingView // front is on air while broadcasting
}

// Snapshot copies the current state
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, Deadline: s.deadline}
	for _, p := range s.queue {
		snap.Pending = append(snap.Pending, PendingView{
			Token:         p.token,
			Raw:           p.wp.Bytes(),
			Duration:      p.wp.Duration,
			ProcessedOnce: p.processedOnce,
			ToBeRemoved:   p.toBeRemoved,
		})
	}
	return snap
}

// Stats returns a copy of the scheduler statistics
func (s *Scheduler) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.stats
}
