// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package advertiser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Thermoquad/advcast/pkg/bleadv"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// packet returns a distinct manufacturer data advertisement visible for d
func packet(tag byte, d time.Duration) *bleadv.WireParam {
	wp := bleadv.FromRaw([]byte{0x02, 0x01, 0x1A, 0x04, 0xFF, 0xF0, 0xFF, tag})
	wp.Duration = d
	return wp
}

// tag returns the last byte of a recorded advertisement
func tag(raw []byte) byte {
	return raw[len(raw)-1]
}

func startedTags(r *RecordingRadio) []byte {
	var tags []byte
	for _, raw := range r.Started() {
		tags = append(tags, tag(raw))
	}
	return tags
}

func newTestScheduler() (*Scheduler, *RecordingRadio) {
	radio := &RecordingRadio{}
	return NewScheduler(radio, WithClock(func() time.Time { return epoch })), radio
}

// ============================================================
// Tick Tests
// ============================================================

func TestScheduler_IdleWithoutPackets(t *testing.T) {
	s, radio := newTestScheduler()
	s.Tick(epoch)
	s.Tick(epoch.Add(time.Second))

	assert.Empty(t, radio.Calls())
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestScheduler_TokensIncreaseFromOne(t *testing.T) {
	s, _ := newTestScheduler()
	assert.Equal(t, Token(1), s.AddBatch([]*bleadv.WireParam{packet(1, time.Millisecond)}))
	assert.Equal(t, Token(2), s.AddBatch(nil))
	assert.Equal(t, Token(3), s.AddBatch([]*bleadv.WireParam{packet(2, time.Millisecond)}))
}

func TestScheduler_LonePacketStaysOnAir(t *testing.T) {
	s, radio := newTestScheduler()
	token := s.AddBatch([]*bleadv.WireParam{packet(0xA, 100*time.Millisecond)})

	s.Tick(epoch)
	snap := s.Snapshot()
	assert.Equal(t, StateBroadcasting, snap.State)
	assert.Equal(t, epoch.Add(100*time.Millisecond), snap.Deadline)

	// past the deadline with nothing else queued: keep advertising
	s.Tick(epoch.Add(time.Second))
	s.Tick(epoch.Add(2 * time.Second))
	starts, stops := radio.Counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, stops)

	s.RemoveBatch(token)
	s.Tick(epoch.Add(3 * time.Second))
	starts, stops = radio.Counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().Pending)

	s.Tick(epoch.Add(4 * time.Second))
	assert.Len(t, radio.Calls(), 2)
}

func TestScheduler_DeadlineIsExclusive(t *testing.T) {
	s, radio := newTestScheduler()
	s.AddBatch([]*bleadv.WireParam{packet(1, 100*time.Millisecond)})
	s.AddBatch([]*bleadv.WireParam{packet(2, 100*time.Millisecond)})

	s.Tick(epoch)
	s.Tick(epoch.Add(100 * time.Millisecond))
	_, stops := radio.Counts()
	assert.Equal(t, 0, stops, "must stay on air until strictly past the deadline")

	s.Tick(epoch.Add(101 * time.Millisecond))
	_, stops = radio.Counts()
	assert.Equal(t, 1, stops)
}

func TestScheduler_RoundRobin(t *testing.T) {
	s, radio := newTestScheduler()
	for _, tg := range []byte{1, 2, 3} {
		s.AddBatch([]*bleadv.WireParam{packet(tg, 10*time.Millisecond)})
	}

	now := epoch
	for i := 0; i < 14; i++ {
		s.Tick(now)
		now = now.Add(11 * time.Millisecond)
	}

	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3, 1}, startedTags(radio))
	assert.Equal(t, uint64(7), s.Stats().Rotations)
}

func TestScheduler_BatchPacketsInOrder(t *testing.T) {
	s, radio := newTestScheduler()
	token := s.AddBatch([]*bleadv.WireParam{
		packet(1, 10*time.Millisecond),
		packet(2, 10*time.Millisecond),
	})
	s.RemoveBatch(token)

	now := epoch
	for i := 0; i < 8; i++ {
		s.Tick(now)
		now = now.Add(11 * time.Millisecond)
	}

	assert.Equal(t, []byte{1, 2}, startedTags(radio))
	assert.Empty(t, s.Snapshot().Pending)
}

func TestScheduler_RemovedBeforeAdvertisedIsSentOnce(t *testing.T) {
	s, radio := newTestScheduler()
	s.AddBatch([]*bleadv.WireParam{packet(0xA, 100*time.Millisecond)})
	b := s.AddBatch([]*bleadv.WireParam{packet(0xB, 100*time.Millisecond)})

	s.Tick(epoch) // start A
	s.RemoveBatch(b)
	s.Tick(epoch.Add(101 * time.Millisecond)) // stop A, rotate
	s.Tick(epoch.Add(102 * time.Millisecond)) // B was never on air: start it
	s.Tick(epoch.Add(203 * time.Millisecond)) // stop B, pop
	s.Tick(epoch.Add(204 * time.Millisecond)) // start A

	assert.Equal(t, []byte{0xA, 0xB, 0xA}, startedTags(radio))
	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, Token(1), snap.Pending[0].Token)
}

func TestScheduler_RemoveOnAirIsDeferred(t *testing.T) {
	for _, tc := range []struct {
		name   string
		others int
	}{
		{"lone", 0},
		{"with queued batch", 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, radio := newTestScheduler()
			a := s.AddBatch([]*bleadv.WireParam{packet(0xA, 100*time.Millisecond)})
			for i := 0; i < tc.others; i++ {
				s.AddBatch([]*bleadv.WireParam{packet(0xB, 100*time.Millisecond)})
			}

			s.Tick(epoch) // start A
			s.RemoveBatch(a)

			for _, at := range []time.Duration{50 * time.Millisecond, 100 * time.Millisecond} {
				s.Tick(epoch.Add(at))
				_, stops := radio.Counts()
				assert.Equal(t, 0, stops, "stopped at +%v", at)
				assert.True(t, radio.OnAir())

				snap := s.Snapshot()
				assert.Equal(t, StateBroadcasting, snap.State)
				require.NotEmpty(t, snap.Pending)
				assert.Equal(t, a, snap.Pending[0].Token)
				assert.True(t, snap.Pending[0].ToBeRemoved)
			}
			assert.Zero(t, s.Stats().Evictions)

			s.Tick(epoch.Add(100*time.Millisecond + time.Nanosecond))
			_, stops := radio.Counts()
			assert.Equal(t, 1, stops)
			assert.Equal(t, uint64(1), s.Stats().Evictions)

			snap := s.Snapshot()
			assert.Equal(t, StateIdle, snap.State)
			assert.Len(t, snap.Pending, tc.others)
			for _, p := range snap.Pending {
				assert.NotEqual(t, a, p.Token)
			}
		})
	}
}

func TestScheduler_EvictsProcessedWhenIdle(t *testing.T) {
	s, radio := newTestScheduler()
	a := s.AddBatch([]*bleadv.WireParam{packet(0xA, 10*time.Millisecond)})
	s.AddBatch([]*bleadv.WireParam{packet(0xB, 10*time.Millisecond)})

	s.Tick(epoch)                            // start A
	s.Tick(epoch.Add(11 * time.Millisecond)) // stop A, rotate behind B
	s.RemoveBatch(a)
	s.Tick(epoch.Add(12 * time.Millisecond)) // evict A, start B

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, Token(2), snap.Pending[0].Token)
	assert.Equal(t, []byte{0xA, 0xB}, startedTags(radio))
	assert.Equal(t, uint64(1), s.Stats().Evictions)
}

func TestScheduler_RadioErrorsCounted(t *testing.T) {
	s, radio := newTestScheduler()
	radio.StartErr = errors.New("adapter busy")
	token := s.AddBatch([]*bleadv.WireParam{packet(1, 10*time.Millisecond)})

	s.Tick(epoch)
	assert.Equal(t, StateBroadcasting, s.Snapshot().State, "errors are not retried")

	radio.StopErr = errors.New("adapter gone")
	s.RemoveBatch(token)
	s.Tick(epoch.Add(11 * time.Millisecond))

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.StartErrors)
	assert.Equal(t, uint64(1), stats.StopErrors)
	assert.Equal(t, uint64(2), stats.RadioErrors)
	assert.Equal(t, StateIdle, s.Snapshot().State)
}

func TestScheduler_Snapshot(t *testing.T) {
	s, _ := newTestScheduler()
	token := s.AddBatch([]*bleadv.WireParam{packet(7, 50*time.Millisecond)})
	s.Tick(epoch)
	s.RemoveBatch(token)

	snap := s.Snapshot()
	require.Len(t, snap.Pending, 1)
	p := snap.Pending[0]
	assert.Equal(t, token, p.Token)
	assert.Equal(t, byte(7), tag(p.Raw))
	assert.Equal(t, 50*time.Millisecond, p.Duration)
	assert.True(t, p.ProcessedOnce)
	assert.True(t, p.ToBeRemoved)

	// the view is a copy
	p.Raw[0] = 0xEE
	assert.NotEqual(t, byte(0xEE), s.Snapshot().Pending[0].Raw[0])
}

func TestScheduler_Shutdown(t *testing.T) {
	s, radio := newTestScheduler()
	s.AddBatch([]*bleadv.WireParam{packet(1, time.Second)})
	s.Tick(epoch)
	require.True(t, radio.OnAir())

	s.Shutdown()
	assert.False(t, radio.OnAir())
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().Pending)
}

func TestScheduler_Run(t *testing.T) {
	radio := &RecordingRadio{}
	s := NewScheduler(radio)
	s.AddBatch([]*bleadv.WireParam{packet(1, time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	require.Eventually(t, radio.OnAir, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, radio.OnAir())
}

// ============================================================
// Property Tests
// ============================================================

// TestScheduler_SingleFlight drives random operations and checks that at
// most one advertisement is ever on air and that it matches the state.
func TestScheduler_SingleFlight(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		radio := &RecordingRadio{}
		now := epoch
		s := NewScheduler(radio, WithClock(func() time.Time { return now }))
		var tokens []Token

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				n := rapid.IntRange(1, 3).Draw(t, "packets")
				var batch []*bleadv.WireParam
				for j := 0; j < n; j++ {
					d := time.Duration(rapid.IntRange(1, 50).Draw(t, "ms")) * time.Millisecond
					batch = append(batch, packet(byte(j), d))
				}
				tokens = append(tokens, s.AddBatch(batch))
			case 1:
				if len(tokens) > 0 {
					s.RemoveBatch(tokens[rapid.IntRange(0, len(tokens)-1).Draw(t, "token")])
				}
			default:
				now = now.Add(time.Duration(rapid.IntRange(0, 60).Draw(t, "advance")) * time.Millisecond)
				s.Tick(now)
			}

			starts, stops := radio.Counts()
			if starts-stops != 0 && starts-stops != 1 {
				t.Fatalf("starts=%d stops=%d", starts, stops)
			}
			snap := s.Snapshot()
			if (snap.State == StateBroadcasting) != (starts-stops == 1) {
				t.Fatalf("state %s with %d starts and %d stops", snap.State, starts, stops)
			}
			if snap.State == StateBroadcasting && len(snap.Pending) == 0 {
				t.Fatal("broadcasting with an empty queue")
			}
		}
	})
}
