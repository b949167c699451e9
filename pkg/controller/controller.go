// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller emulates the physical remotes. Each Controller owns a
// command queue, encodes commands with its selected codec and hands one
// batch at a time to the shared advertiser.
package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/advcast/pkg/advertiser"
	"github.com/Thermoquad/advcast/pkg/bleadv"
)

// Timing defaults and bounds
const (
	DefaultMinTxDuration = 100 * time.Millisecond
	MinTxDurationLower   = 100 * time.Millisecond
	MinTxDurationUpper   = 500 * time.Millisecond
	DefaultMaxTxDuration = 3000 * time.Millisecond
	DefaultSeqDuration   = 150 * time.Millisecond
)

// Advertiser accepts batches of packets to advertise
type Advertiser interface {
	AddBatch(packets []*bleadv.WireParam) advertiser.Token
	RemoveBatch(token advertiser.Token)
}

// State is the rolling state persisted across restarts
type State struct {
	TxCount    uint8
	Seed       uint16
	DeviceUUID string
}

// StateStore persists controller state by controller name
type StateStore interface {
	LoadState(name string) (State, bool, error)
	SaveState(name string, st State) error
}

// Config describes one emulated remote
type Config struct {
	Name     string
	Codec    string  // codec id, "<family> - <variant>"
	ForcedID *uint32 // nil derives the id, see ResolveID
	UseUUID  bool
	Index    uint8
	Seed     uint16 // 0 draws a fresh seed per packet

	MinTxDuration time.Duration // 0 means DefaultMinTxDuration
	MaxTxDuration time.Duration // 0 means DefaultMaxTxDuration
	SeqDuration   time.Duration // negative disables sequencing, 0 means DefaultSeqDuration
}

// Controller is one emulated remote
type Controller struct {
	mu       sync.Mutex
	name     string
	registry *bleadv.Registry
	codec    bleadv.Codec
	params   bleadv.ControllerParams
	state    State
	store    StateStore
	adv      Advertiser

	minTx time.Duration
	maxTx time.Duration
	seq   time.Duration

	queue       Queue
	advertising bool
	token       advertiser.Token
	startedAt   time.Time
}

// New creates a controller, restoring its rolling state from store when one
// is given
func New(cfg Config, registry *bleadv.Registry, adv Advertiser, store StateStore) (*Controller, error) {
	codec, err := registry.Lookup(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("controller %q: %w", cfg.Name, err)
	}

	c := &Controller{
		name:     cfg.Name,
		registry: registry,
		codec:    codec,
		store:    store,
		adv:      adv,
		minTx:    DefaultMinTxDuration,
		maxTx:    DefaultMaxTxDuration,
		seq:      DefaultSeqDuration,
	}
	if cfg.MinTxDuration != 0 {
		c.minTx = clampMinTx(cfg.MinTxDuration)
	}
	if cfg.MaxTxDuration != 0 {
		c.maxTx = cfg.MaxTxDuration
	}
	switch {
	case cfg.SeqDuration < 0:
		c.seq = 0
	case cfg.SeqDuration > 0:
		c.seq = cfg.SeqDuration
	}

	if store != nil {
		st, found, err := store.LoadState(cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("controller %q: failed to load state: %w", cfg.Name, err)
		}
		if found {
			c.state = st
		}
	}
	hadUUID := c.state.DeviceUUID != ""

	c.params = bleadv.ControllerParams{
		ID:      ResolveID(cfg.ForcedID, cfg.Name, cfg.UseUUID, &c.state),
		Index:   cfg.Index,
		TxCount: c.state.TxCount % bleadv.TxCountCeiling,
		Seed:    cfg.Seed,
	}
	if c.params.Seed == 0 {
		c.params.Seed = c.state.Seed
	}
	if !hadUUID && c.state.DeviceUUID != "" {
		c.saveState()
	}

	log.Info().
		Str("controller", c.name).
		Str("codec", codec.ID()).
		Str("id", fmt.Sprintf("0x%X", c.params.ID)).
		Uint8("index", c.params.Index).
		Uint8("tx", c.params.TxCount).
		Dur("min_tx", c.minTx).
		Dur("max_tx", c.maxTx).
		Dur("seq", c.seq).
		Msg("controller ready")
	return c, nil
}

func clampMinTx(d time.Duration) time.Duration {
	return min(max(d, MinTxDurationLower), MinTxDurationUpper)
}

// Name returns the controller name
func (c *Controller) Name() string {
	return c.name
}

// Codec returns the selected codec
func (c *Controller) Codec() bleadv.Codec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec
}

// Params returns a copy of the identity and rolling state
func (c *Controller) Params() bleadv.ControllerParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// DeviceUUID returns the persisted uuid, empty when the id does not derive from one
func (c *Controller) DeviceUUID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.DeviceUUID
}

// MinTxDuration returns the per-packet minimum visibility
func (c *Controller) MinTxDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minTx
}

// SetMinTxDuration changes the minimum visibility, clamped to 100..500ms.
// Already queued packets keep their duration.
func (c *Controller) SetMinTxDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minTx = clampMinTx(d)
	log.Debug().Str("controller", c.name).Dur("min_tx", c.minTx).Msg("min tx duration changed")
}

// SetCodec switches to another registered codec
func (c *Controller) SetCodec(id string) error {
	codec, err := c.registry.Lookup(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codec = codec
	log.Info().Str("controller", c.name).Str("codec", id).Msg("codec changed")
	return nil
}

// IsSupported reports whether the selected codec can encode cmd
func (c *Controller) IsSupported(cmd bleadv.Command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec.IsSupported(cmd)
}

// Enqueue encodes cmd and queues it. It returns false when the selected
// codec does not support cmd.
func (c *Controller) Enqueue(cmd bleadv.Command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.queue.Enqueue(c.codec, cmd, &c.params, PacketDuration(c.seq, c.minTx)) {
		return false
	}
	log.Debug().
		Str("controller", c.name).
		Stringer("command", cmd.Kind).
		Uint8("tx", c.params.TxCount).
		Int("pending", c.queue.Len()).
		Msg("command queued")

	c.state.TxCount = c.params.TxCount
	c.saveState()
	return true
}

// saveState persists the rolling state; failures are logged only
func (c *Controller) saveState() {
	if c.store == nil {
		return
	}
	if err := c.store.SaveState(c.name, c.state); err != nil {
		log.Error().Err(err).Str("controller", c.name).Msg("failed to save state")
	}
}

// Send queues a command of kind with args
func (c *Controller) Send(kind bleadv.CommandKind, args ...uint8) bool {
	return c.Enqueue(bleadv.NewCommand(kind, args...))
}

// Pair queues a pairing command
func (c *Controller) Pair() bool {
	return c.Send(bleadv.CmdPair)
}

// Unpair queues an unpairing command
func (c *Controller) Unpair() bool {
	return c.Send(bleadv.CmdUnpair)
}

// Custom queues a raw opcode with args, bypassing translation
func (c *Controller) Custom(opcode uint8, args ...uint8) bool {
	return c.Enqueue(bleadv.NewCustomCommand(opcode, args...))
}

// Pending returns the number of queued commands
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// PendingKinds returns the kinds of the queued commands in order
func (c *Controller) PendingKinds() []bleadv.CommandKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Kinds()
}

// Advertising reports whether a batch of this controller is with the advertiser
func (c *Controller) Advertising() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advertising
}

// Tick hands the next queued batch to the advertiser, or withdraws the
// current one once it has been visible long enough: minTx when more
// commands wait, maxTx otherwise.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.advertising {
		entry, ok := c.queue.DequeueFront()
		if !ok {
			return
		}
		for _, wp := range entry.Packets {
			log.Debug().Str("controller", c.name).Str("raw", bleadv.FormatHex(wp.Bytes())).Msg("request start advertising")
		}
		c.token = c.adv.AddBatch(entry.Packets)
		c.startedAt = now
		c.advertising = true
		return
	}

	limit := c.maxTx
	if c.queue.Len() > 0 {
		limit = c.minTx
	}
	if now.After(c.startedAt.Add(limit)) {
		c.advertising = false
		log.Debug().Str("controller", c.name).Uint64("token", uint64(c.token)).Msg("request stop advertising")
		c.adv.RemoveBatch(c.token)
	}
}

// Close withdraws the current batch and drops pending commands
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.advertising {
		c.adv.RemoveBatch(c.token)
		c.advertising = false
	}
	c.queue.Clear()
}
